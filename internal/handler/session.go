package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"cellarsync/internal/model"
	"cellarsync/internal/scanner"
	"cellarsync/pkg/apierror"
	"cellarsync/pkg/response"
)

// SessionHandler exposes scan-session lifecycle and confirmation over HTTP.
type SessionHandler struct {
	session *scanner.Session
	machine *scanner.Machine
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(session *scanner.Session, machine *scanner.Machine) *SessionHandler {
	return &SessionHandler{session: session, machine: machine}
}

func (h *SessionHandler) sessionInfo() map[string]interface{} {
	added, failed := h.session.Counts()
	return map[string]interface{}{
		"id":           h.session.ID(),
		"active":       h.session.Active(),
		"items_added":  added,
		"items_failed": failed,
	}
}

// Start handles POST /api/v1/sessions
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	if h.session.Active() {
		response.Error(w, apierror.Conflict("a scan session is already active"))
		return
	}
	h.session.Start(r.Context())
	h.machine.Activate()
	response.Created(w, h.sessionInfo())
}

// Get handles GET /api/v1/sessions
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.sessionInfo())
}

// End handles POST /api/v1/sessions/end
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	if !h.session.Active() {
		response.Error(w, apierror.NotFound("no active scan session"))
		return
	}
	added, failed := h.session.End(r.Context())
	h.machine.Reset()
	response.OK(w, map[string]interface{}{
		"items_added":  added,
		"items_failed": failed,
	})
}

type confirmRequest struct {
	Quantity int `json:"quantity"`
}

// Confirm handles POST /api/v1/sessions/confirm. It applies the machine's
// current single-match outcome and rearms the scanner for the next code.
func (h *SessionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	snap := h.machine.Snapshot()
	if snap.State != scanner.StateKnown || len(snap.Matches) != 1 {
		response.Error(w, apierror.Conflict("no single-match scan to confirm, current state: "+snap.State.String()))
		return
	}

	queued, err := h.session.Confirm(r.Context(), snap.Code, snap.Matches[0], req.Quantity)
	if err != nil {
		response.Error(w, sessionError(err))
		return
	}
	h.machine.Reset()

	response.OK(w, map[string]interface{}{
		"item":     snap.Matches[0],
		"quantity": req.Quantity,
		"queued":   queued,
	})
}

type manualRequest struct {
	Kind     string        `json:"kind"`
	Barcode  string        `json:"barcode"`
	Quantity int           `json:"quantity"`
	Location string        `json:"location"`
	Cigar    *model.Cigar  `json:"cigar,omitempty"`
	Bottle   *model.Bottle `json:"bottle,omitempty"`
}

// Manual handles POST /api/v1/sessions/manual: create a catalog entry and
// inventory line for a barcode the lookup could not resolve. When the machine
// sits in the unknown outcome and the request carries no barcode, the scanned
// code is carried onto the new line.
func (h *SessionHandler) Manual(w http.ResponseWriter, r *http.Request) {
	var req manualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}

	kind, err := model.ParseKind(req.Kind)
	if err != nil {
		response.Error(w, apierror.BadRequest("kind must be cigar or bottle"))
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	barcode := req.Barcode
	snap := h.machine.Snapshot()
	if barcode == "" && snap.State == scanner.StateUnknown {
		barcode = snap.Code
	}

	item, err := h.session.CreateManual(r.Context(), scanner.ManualEntry{
		Kind:     kind,
		Barcode:  barcode,
		Quantity: req.Quantity,
		Location: req.Location,
		Cigar:    req.Cigar,
		Bottle:   req.Bottle,
	})
	if err != nil {
		response.Error(w, sessionError(err))
		return
	}
	if snap.State == scanner.StateUnknown {
		h.machine.Reset()
	}

	response.Created(w, item)
}

type linkRequest struct {
	InventoryItemID string `json:"inventory_item_id"`
	Barcode         string `json:"barcode"`
	Quantity        int    `json:"quantity"`
}

// Link handles POST /api/v1/sessions/link: register an unresolved barcode as
// an alt code on an inventory line that is already in the cellar and
// increment that line. When the machine sits in the unknown outcome and the
// request carries no barcode, the scanned code is used.
func (h *SessionHandler) Link(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}
	if req.InventoryItemID == "" {
		response.Error(w, apierror.BadRequest("inventory_item_id required"))
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	barcode := req.Barcode
	snap := h.machine.Snapshot()
	if barcode == "" && snap.State == scanner.StateUnknown {
		barcode = snap.Code
	}
	if barcode == "" {
		response.Error(w, apierror.BadRequest("no barcode given and none scanned"))
		return
	}

	item, err := h.session.LinkExisting(r.Context(), barcode, req.InventoryItemID, req.Quantity)
	if err != nil {
		response.Error(w, sessionError(err))
		return
	}
	if snap.State == scanner.StateUnknown {
		h.machine.Reset()
	}

	response.OK(w, map[string]interface{}{
		"item":     item,
		"barcode":  barcode,
		"quantity": req.Quantity,
	})
}

// sessionError maps session errors onto API errors.
func sessionError(err error) error {
	switch {
	case errors.Is(err, scanner.ErrNoActiveSession):
		return apierror.NotFound(err.Error())
	case errors.Is(err, scanner.ErrDuplicateScan):
		return apierror.Conflict(err.Error())
	case errors.Is(err, scanner.ErrOfflineManual), errors.Is(err, scanner.ErrOfflineLink):
		return apierror.ServiceUnavailable(err.Error())
	default:
		return apierror.InternalError(err.Error())
	}
}
