package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/target/renderjobs/internal/core"
	"github.com/target/renderjobs/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Jobs    *service.JobService
	Results core.ResultApplier

	// Callback configures the shared-secret check on worker callbacks.
	Callback        CallbackAuthConfig
	CallbackTimeout time.Duration

	// MaxBodyBytes caps job submission and callback bodies. Zero disables the cap.
	MaxBodyBytes int64

	// Readiness lists dependencies checked by /readyz.
	Readiness []ReadinessCheck

	Logger *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	services.Callback.Logger = logger

	jobHandlers := NewJobHandlers(JobHandlers{
		Svc:             services.Jobs,
		Results:         services.Results,
		CallbackTimeout: services.CallbackTimeout,
		Logger:          logger,
	})

	registerJobRoutes(mux, jobHandlers, services)
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("GET /readyz", readyHandler(services.Readiness, logger))

	return mux
}

func registerJobRoutes(mux *http.ServeMux, h *JobHandlers, services RouterServices) {
	limit := LimitBody(services.MaxBodyBytes)
	callback := RequireCallbackSecret(services.Callback)

	mux.Handle("POST /api/jobs", limit(http.HandlerFunc(h.CreateJob)))
	mux.Handle("GET /api/jobs/{id}", http.HandlerFunc(h.GetJob))

	// Secret check runs before the body limit so rejected callers never have their body read.
	mux.Handle("POST /api/jobs/{id}/result", callback(limit(http.HandlerFunc(h.SubmitResult))))
	mux.Handle("POST /api/jobs/{id}/running", callback(http.HandlerFunc(h.MarkRunning)))
}
