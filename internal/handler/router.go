package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	AdminKey string
	// SubmitLimiter wraps the submission route. Nil disables rate limiting.
	SubmitLimiter func(http.Handler) http.Handler
	Log           zerolog.Logger
}

// NewRouter builds the HTTP API.
func NewRouter(h *RegistrationHandler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(cfg.Log))         // structured access log
	r.Use(CORS)

	r.Get("/status", Status)

	submit := http.Handler(http.HandlerFunc(h.Submit))
	if cfg.SubmitLimiter != nil {
		submit = cfg.SubmitLimiter(submit)
	}

	r.Route("/happening", func(r chi.Router) {
		r.Post("/count/registrations", h.CountRegistrations)

		r.Method(http.MethodPost, "/{slug}/registrations", submit)
		r.Get("/{link}/registrations", h.ListRegistrations)
		r.Delete("/{link}/registrations/{email}", h.Cancel)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuth(cfg.AdminKey))
			r.Put("/{slug}", h.PutHappening)
			r.Get("/{slug}", h.GetHappeningInfo)
			r.Delete("/{slug}", h.DeleteHappening)
		})
	})

	return r
}
