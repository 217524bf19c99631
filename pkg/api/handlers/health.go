package handlers

import (
	"net/http"
	"time"
)

// HealthHandler handles the health probes.
type HealthHandler struct {
	// Ready reports whether the relay front end is accepting sessions.
	Ready func() bool

	// ActiveSessions reports the current TCP session count.
	ActiveSessions func() int

	startTime time.Time
}

// NewHealthHandler creates a health handler. The probe functions may be nil:
// a nil ready probe makes readiness report unavailable, and a nil session
// counter omits active_sessions from the readiness body.
func NewHealthHandler(ready func() bool, activeSessions func() int) *HealthHandler {
	return &HealthHandler{
		Ready:          ready,
		ActiveSessions: activeSessions,
		startTime:      time.Now(),
	}
}

// Liveness handles GET /health. Succeeds whenever the HTTP server responds.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "nfcmitm",
	}))
}

// Readiness handles GET /health/ready: 200 when the relay listener is up,
// 503 otherwise.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.Ready == nil || !h.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("relay listener not ready"))
		return
	}

	data := map[string]interface{}{
		"uptime_seconds": time.Since(h.startTime).Seconds(),
	}
	if h.ActiveSessions != nil {
		data["active_sessions"] = h.ActiveSessions()
	}
	writeJSON(w, http.StatusOK, healthyResponse(data))
}
