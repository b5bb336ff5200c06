package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/voicegate/voicegate/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs and returns an HTTP handler that serves the voice
// authentication API. It applies JSON content-type enforcement and request
// logging, and mounts the enrollment and verification endpoints under /api.
//
// Routes:
//
//	POST /api/enroll                 → enrollHandler.Start
//	POST /api/enroll/{id}/sample     → enrollHandler.AddSample
//	POST /api/enroll/{id}/complete   → enrollHandler.Complete
//	POST /api/enroll/{id}/abort      → enrollHandler.Abort
//	POST /api/verify                 → verifyHandler.Start
//	POST /api/verify/{id}/challenge  → verifyHandler.SubmitChallenge
//	GET  /api/verify/{id}/decision   → verifyHandler.Decision
//	POST /api/verify/{id}/abort      → verifyHandler.Abort
//	GET  /metrics                    → Prometheus metrics
func NewRouter(
	enrollHandler *EnrollHandler,
	verifyHandler *VerifyHandler,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Only allow requests with Content-Type: application/json
	r.Use(chiMiddleware.AllowContentType("application/json"))

	// Log each request and its metadata
	r.Use(middleware.WithRequestLogging(logger))

	// Mount API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/enroll", func(r chi.Router) {
			r.Post("/", enrollHandler.Start)
			r.Post("/{id}/sample", enrollHandler.AddSample)
			r.Post("/{id}/complete", enrollHandler.Complete)
			r.Post("/{id}/abort", enrollHandler.Abort)
		})
		r.Route("/verify", func(r chi.Router) {
			r.Post("/", verifyHandler.Start)
			r.Post("/{id}/challenge", verifyHandler.SubmitChallenge)
			r.Get("/{id}/decision", verifyHandler.Decision)
			r.Post("/{id}/abort", verifyHandler.Abort)
		})
	})

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	return r
}
