package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hackgods/therapy-scheduling/internal/appointment"
	"github.com/hackgods/therapy-scheduling/internal/fixtures"
	"github.com/hackgods/therapy-scheduling/pkg/logging"
)

type RouterConfig struct {
	Service  *appointment.Service
	Fixtures *fixtures.Store
	Logger   *logging.Logger
	Checks   []DependencyCheck
	// Metrics serves /metrics. Nil means the default Prometheus registry.
	Metrics http.Handler
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = promhttp.Handler()
	}
	h := &handlers{svc: cfg.Service, fixtures: cfg.Fixtures, logger: cfg.Logger}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", cfg.Metrics)

	r.Route("/patients", func(r chi.Router) {
		r.Get("/", h.listPatients)
		r.Post("/", h.registerPatient)
		r.Get("/{id}", h.getPatient)
		r.Get("/{id}/buckets", h.patientBuckets)
	})

	r.Route("/therapists", func(r chi.Router) {
		r.Get("/", h.listTherapists)
		r.Get("/{id}", h.getTherapist)
		r.Get("/{id}/slots", h.therapistSlots)
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Get("/", h.listAppointments)
		r.Post("/", h.createAppointment)
		r.Get("/{id}", h.getAppointment)
		r.Post("/{id}/cancel", h.cancelAppointment)
		r.Post("/{id}/reschedule", h.rescheduleAppointment)
		r.Post("/{id}/complete", h.completeAppointment)
		r.Post("/{id}/feedback", h.submitFeedback)
	})

	r.Route("/waiting-list", func(r chi.Router) {
		r.Get("/", h.listWaitingList)
		r.Post("/", h.addToWaitingList)
		r.Delete("/{id}", h.removeFromWaitingList)
	})

	r.Get("/posts", h.listPosts)
	r.Get("/conversations", h.listConversations)

	return r
}
