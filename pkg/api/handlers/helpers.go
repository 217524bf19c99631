package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// requestID returns the chi request id for log correlation.
func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

// response mirrors the api package wrapper locally to avoid an import cycle.
type response struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

func healthyResponse(data interface{}) response {
	return response{Status: "healthy", Timestamp: time.Now().UTC(), Data: data}
}

func unhealthyResponse(errMsg string) response {
	return response{Status: "unhealthy", Timestamp: time.Now().UTC(), Error: errMsg}
}

func okResponse(data interface{}) response {
	return response{Status: "ok", Timestamp: time.Now().UTC(), Data: data}
}

func errorResponse(errMsg string) response {
	return response{Status: "error", Timestamp: time.Now().UTC(), Error: errMsg}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
