package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/signalix/smsverify/internal/http/handlers"
)

// NewRouter creates a new HTTP router with all routes configured.
// trustProxy enables X-Forwarded-For / X-Real-IP handling; leave it off unless a
// trusted proxy overwrites those headers, since the rate limiter keys on the client IP.
func NewRouter(verificationHandler *handlers.VerificationHandler, healthHandler *handlers.HealthHandler, trustProxy bool) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	if trustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/v1/verifications", func(r chi.Router) {
		r.Post("/", verificationHandler.HandleRequestVerification)
		r.Post("/confirm", verificationHandler.HandleConfirmVerification)
	})

	return r
}
