package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ghostfacexx/nfcmitm/internal/logger"
	"github.com/ghostfacexx/nfcmitm/pkg/api/auth"
	"github.com/ghostfacexx/nfcmitm/pkg/api/handlers"
	apiMiddleware "github.com/ghostfacexx/nfcmitm/pkg/api/middleware"
	"github.com/ghostfacexx/nfcmitm/pkg/metrics"
	"github.com/ghostfacexx/nfcmitm/pkg/policy"
)

// RouterDeps carries the collaborators the router wires together.
type RouterDeps struct {
	Policy  *policy.Store
	Metrics metrics.RelayMetrics // may be nil

	// Ready and ActiveSessions feed the readiness probe; both may be nil.
	Ready          func() bool
	ActiveSessions func() int
}

// NewRouter creates and configures the chi router.
//
// Routes:
//   - POST / - JSON relay (same envelope contract as the NFC_DATA body)
//   - GET /health - liveness probe
//   - GET /health/ready - readiness probe
//   - GET /api/v1/policy - policy snapshot (admin bearer token)
//   - PATCH /api/v1/policy - policy patch (admin bearer token)
func NewRouter(cfg APIConfig, deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	relayHandler := handlers.NewRelayHandler(deps.Policy, deps.Metrics, cfg.MaxInFlight)
	r.Post("/", relayHandler.Relay)

	healthHandler := handlers.NewHealthHandler(deps.Ready, deps.ActiveSessions)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	// Policy admin surface: only mounted when a secret is configured.
	if cfg.AdminSecret != "" {
		authService := auth.NewService(cfg.AdminSecret)
		policyHandler := handlers.NewPolicyHandler(deps.Policy)

		r.Route("/api/v1/policy", func(r chi.Router) {
			r.Use(apiMiddleware.BearerAuth(authService))
			r.Use(apiMiddleware.RequireAdmin())

			r.Get("/", policyHandler.Get)
			r.Patch("/", policyHandler.Patch)
		})
	}

	return r
}

// requestLogger logs requests through the internal logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("HTTP request completed",
			logger.KeyRequestID, requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.KeyDurationMs, float64(time.Since(start).Microseconds())/1000.0,
		)
	})
}
