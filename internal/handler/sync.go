package handler

import (
	"net/http"

	"cellarsync/internal/netmon"
	"cellarsync/internal/queue"
	"cellarsync/internal/syncer"
	"cellarsync/pkg/apierror"
	"cellarsync/pkg/response"
)

// SyncHandler exposes the offline queue and the sync engine over HTTP.
type SyncHandler struct {
	queue   queue.Store
	engine  *syncer.Engine
	network *netmon.Monitor
}

// NewSyncHandler creates a sync handler.
func NewSyncHandler(store queue.Store, engine *syncer.Engine, network *netmon.Monitor) *SyncHandler {
	return &SyncHandler{queue: store, engine: engine, network: network}
}

// GetQueue handles GET /api/v1/queue
func (h *SyncHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.queue.Jobs(r.Context())
	if err != nil {
		response.Error(w, apierror.InternalError("failed to read queue: "+err.Error()))
		return
	}
	uploads, err := h.queue.PendingUploads(r.Context())
	if err != nil {
		response.Error(w, apierror.InternalError("failed to read pending uploads: "+err.Error()))
		return
	}

	response.OK(w, map[string]interface{}{
		"jobs":            jobs,
		"size":            len(jobs),
		"pending_uploads": uploads,
		"processing":      h.engine.Processing(),
	})
}

// ClearQueue handles DELETE /api/v1/queue
func (h *SyncHandler) ClearQueue(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.Clear(r.Context()); err != nil {
		response.Error(w, apierror.InternalError("failed to clear queue: "+err.Error()))
		return
	}
	response.NoContent(w)
}

// TriggerSync handles POST /api/v1/sync - an on-demand drain of the queue and
// the pending upload list.
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if !h.network.IsAvailable(r.Context()) {
		response.Error(w, apierror.ServiceUnavailable("network unavailable"))
		return
	}

	if err := h.engine.ProcessQueue(r.Context()); err != nil {
		response.Error(w, apierror.InternalError("sync failed: "+err.Error()))
		return
	}
	successful, failed, err := h.engine.RetryPendingUploads(r.Context())
	if err != nil {
		response.Error(w, apierror.InternalError("upload retry failed: "+err.Error()))
		return
	}

	remaining, err := h.queue.Size(r.Context())
	if err != nil {
		remaining = -1
	}

	response.OK(w, map[string]interface{}{
		"remaining_jobs":     remaining,
		"uploads_successful": successful,
		"uploads_failed":     failed,
	})
}

// GetNetwork handles GET /api/v1/network
func (h *SyncHandler) GetNetwork(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.network.GetState(r.Context()))
}
