package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"cellarsync/internal/model"
	"cellarsync/internal/scanner"
	"cellarsync/pkg/apierror"
	"cellarsync/pkg/response"
)

// ScannerHandler exposes the scan-resolution machine over HTTP.
type ScannerHandler struct {
	machine  *scanner.Machine
	detector *scanner.ChannelDetector
}

// NewScannerHandler creates a scanner handler.
func NewScannerHandler(machine *scanner.Machine, detector *scanner.ChannelDetector) *ScannerHandler {
	return &ScannerHandler{machine: machine, detector: detector}
}

type detectionRequest struct {
	Code      string `json:"code"`
	Symbology string `json:"symbology"`
}

// PostDetection handles POST /api/v1/scanner/detections. The scanning
// hardware (or anything standing in for it) pushes raw barcode detections
// here; the machine decides whether each one is acted on.
func (h *ScannerHandler) PostDetection(w http.ResponseWriter, r *http.Request) {
	var req detectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}
	if req.Code == "" {
		response.Error(w, apierror.BadRequest("code is required"))
		return
	}
	if req.Symbology == "" {
		req.Symbology = "ean-13"
	}

	h.machine.Activate()
	accepted := h.detector.Offer(model.ScanDetection{
		Code:      req.Code,
		Symbology: req.Symbology,
		At:        time.Now(),
	})

	response.OK(w, map[string]interface{}{
		"accepted": accepted,
	})
}

// GetState handles GET /api/v1/scanner/state
func (h *ScannerHandler) GetState(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.machine.Snapshot())
}

// Reset handles POST /api/v1/scanner/reset
func (h *ScannerHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.machine.Reset()
	response.OK(w, h.machine.Snapshot())
}

type modeRequest struct {
	Mode string `json:"mode"`
}

// SetMode handles PUT /api/v1/scanner/mode
func (h *ScannerHandler) SetMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}

	kind, err := model.ParseKind(req.Mode)
	if err != nil {
		response.Error(w, apierror.BadRequest("mode must be cigar or bottle"))
		return
	}

	if err := h.machine.SetMode(kind); err != nil {
		response.Error(w, apierror.Conflict(err.Error()))
		return
	}
	response.OK(w, h.machine.Snapshot())
}
