package handler

import (
	"encoding/json"
	"net/http"

	"cellarsync/internal/lookup"
	"cellarsync/internal/model"
	"cellarsync/internal/netmon"
	"cellarsync/internal/queue"
	"cellarsync/internal/remote"
	"cellarsync/pkg/apierror"
	"cellarsync/pkg/response"

	"github.com/go-chi/chi/v5"
)

// InventoryHandler handles barcode lookups and inventory mutations.
type InventoryHandler struct {
	lookup  *lookup.Service
	remote  *remote.Client
	queue   queue.Store
	network *netmon.Monitor
}

// NewInventoryHandler creates an inventory handler.
func NewInventoryHandler(lookupSvc *lookup.Service, client *remote.Client, store queue.Store, network *netmon.Monitor) *InventoryHandler {
	return &InventoryHandler{
		lookup:  lookupSvc,
		remote:  client,
		queue:   store,
		network: network,
	}
}

// LookupBarcode handles GET /api/v1/barcodes/{code}
func (h *InventoryHandler) LookupBarcode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		response.Error(w, apierror.BadRequest("code is required"))
		return
	}

	matches, err := h.lookup.FindItemByBarcode(r.Context(), code)
	if err != nil {
		response.Error(w, apierror.ServiceUnavailable("barcode lookup failed: "+err.Error()))
		return
	}

	response.OK(w, map[string]interface{}{
		"barcode": code,
		"matches": matches,
	})
}

// SearchBarcode handles GET /api/v1/barcodes/{code}/search - the server-side
// search procedure, returning lighter rows than the full lookup.
func (h *InventoryHandler) SearchBarcode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		response.Error(w, apierror.BadRequest("code is required"))
		return
	}

	rows, err := h.remote.SearchByBarcode(r.Context(), code)
	if err != nil {
		response.Error(w, apierror.ServiceUnavailable("barcode search failed: "+err.Error()))
		return
	}

	response.OK(w, map[string]interface{}{
		"barcode": code,
		"results": rows,
	})
}

type incrementRequest struct {
	By int `json:"by"`
}

// Increment handles POST /api/v1/inventory/{id}/increment. Online it goes
// straight to the atomic server-side increment; offline it queues the job.
func (h *InventoryHandler) Increment(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	if itemID == "" {
		response.Error(w, apierror.BadRequest("id is required"))
		return
	}

	var req incrementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}
	if req.By <= 0 {
		req.By = 1
	}

	if h.network.IsAvailable(r.Context()) {
		if err := h.remote.IncrementQuantity(r.Context(), itemID, req.By); err != nil {
			response.Error(w, apierror.ServiceUnavailable("increment failed: "+err.Error()))
			return
		}
		response.OK(w, map[string]interface{}{
			"item_id": itemID,
			"by":      req.By,
			"queued":  false,
		})
		return
	}

	if err := h.queue.Enqueue(r.Context(), model.NewIncrementJob(itemID, req.By)); err != nil {
		response.Error(w, apierror.InternalError("failed to queue increment: "+err.Error()))
		return
	}
	response.JSON(w, http.StatusAccepted, map[string]interface{}{
		"item_id": itemID,
		"by":      req.By,
		"queued":  true,
	})
}

// Count handles GET /api/v1/inventory/{kind}/{ref}/count
func (h *InventoryHandler) Count(w http.ResponseWriter, r *http.Request) {
	kind, err := model.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		response.Error(w, apierror.BadRequest("kind must be cigar or bottle"))
		return
	}
	refID := chi.URLParam(r, "ref")
	if refID == "" {
		response.Error(w, apierror.BadRequest("ref is required"))
		return
	}

	count, err := h.remote.CurrentInventory(r.Context(), kind, refID)
	if err != nil {
		response.Error(w, apierror.ServiceUnavailable("count failed: "+err.Error()))
		return
	}

	response.OK(w, map[string]interface{}{
		"kind":  kind,
		"ref":   refID,
		"count": count,
	})
}

type photoRequest struct {
	Kind      string `json:"kind"`
	RefID     string `json:"ref_id"`
	LocalPath string `json:"local_path"`
}

// UploadPhoto handles POST /api/v1/photos. Online it uploads immediately and
// stamps the catalog row; offline the upload goes onto the pending list.
func (h *InventoryHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	var req photoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}

	kind, err := model.ParseKind(req.Kind)
	if err != nil {
		response.Error(w, apierror.BadRequest("kind must be cigar or bottle"))
		return
	}
	if req.RefID == "" {
		response.Error(w, apierror.BadRequest("ref_id is required"))
		return
	}
	if req.LocalPath == "" {
		response.Error(w, apierror.BadRequest("local_path is required"))
		return
	}

	if h.network.IsAvailable(r.Context()) {
		url, err := h.remote.UploadPhoto(r.Context(), kind, req.LocalPath)
		if err != nil {
			response.Error(w, apierror.ServiceUnavailable("upload failed: "+err.Error()))
			return
		}
		if err := h.remote.SetPhotoURL(r.Context(), kind, req.RefID, url); err != nil {
			response.Error(w, apierror.ServiceUnavailable("failed to link photo: "+err.Error()))
			return
		}
		response.OK(w, map[string]interface{}{
			"photo_url": url,
			"queued":    false,
		})
		return
	}

	up := model.NewPendingUpload(req.RefID, kind, req.LocalPath)
	if err := h.queue.QueueUpload(r.Context(), up); err != nil {
		response.Error(w, apierror.InternalError("failed to queue upload: "+err.Error()))
		return
	}
	response.JSON(w, http.StatusAccepted, map[string]interface{}{
		"upload_id": up.ID,
		"queued":    true,
	})
}
