package handler

import (
	"net/http"
	"runtime"
	"time"

	"cellarsync/internal/netmon"
	"cellarsync/internal/queue"
	"cellarsync/pkg/response"
)

// StartTime tracks when the daemon started for uptime calculation
var StartTime = time.Now()

// Handler contains the shared health and status endpoints.
type Handler struct {
	queue   queue.Store
	network *netmon.Monitor
}

// New creates the shared handler.
func New(store queue.Store, network *netmon.Monitor) *Handler {
	return &Handler{queue: store, network: network}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   "1.0.0",
	}
	response.OK(w, resp)
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Ready     bool      `json:"ready"`
	Timestamp time.Time `json:"timestamp"`
	Checks    []Check   `json:"checks"`
}

// Check represents an individual readiness check.
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Ready handles GET /api/v1/ready. Being offline does not fail readiness;
// running without connectivity is the point of the queue.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	// Size degrades to empty on read failure; Ping surfaces the store error.
	queueStatus := "ok"
	if err := h.queue.Ping(r.Context()); err != nil {
		queueStatus = "error"
	}

	checks := []Check{
		{Name: "queue", Status: queueStatus},
	}

	allReady := true
	for _, check := range checks {
		if check.Status != "ok" {
			allReady = false
			break
		}
	}

	resp := ReadyResponse{
		Ready:     allReady,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	}

	if !allReady {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	response.OK(w, resp)
}

// StatusChecks represents the checks in status response
type StatusChecks struct {
	Queue    string  `json:"queue"`
	Network  string  `json:"network"`
	MemoryMB float64 `json:"memory_mb"`
}

// StatusResponse represents the unified status response for monitoring
type StatusResponse struct {
	Service       string       `json:"service"`
	Status        string       `json:"status"`
	Timestamp     string       `json:"timestamp"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	PingMS        int64        `json:"ping_ms"`
	QueuedJobs    int          `json:"queued_jobs"`
	Checks        StatusChecks `json:"checks"`
}

// Status handles GET /api/status - unified health check for monitoring
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	requestStart := time.Now()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	memoryMB := float64(memStats.Alloc) / 1024 / 1024

	queueStatus := "ok"
	if err := h.queue.Ping(r.Context()); err != nil {
		queueStatus = "error"
	}
	queued, _ := h.queue.Size(r.Context())

	networkStatus := "offline"
	if h.network.GetState(r.Context()).Online() {
		networkStatus = "online"
	}

	pingMS := time.Since(requestStart).Milliseconds()
	uptimeSeconds := int64(time.Since(StartTime).Seconds())

	resp := StatusResponse{
		Service:       "cellarsync",
		Status:        "ok",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: uptimeSeconds,
		PingMS:        pingMS,
		QueuedJobs:    queued,
		Checks: StatusChecks{
			Queue:    queueStatus,
			Network:  networkStatus,
			MemoryMB: float64(int(memoryMB*100)) / 100,
		},
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	response.OK(w, resp)
}
