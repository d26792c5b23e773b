package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter assembles the HTTP surface. CORS is deliberately permissive:
// any origin may call the API.
func NewRouter(authHandler *AuthHandler, userHandler *UserHandler, healthHandler http.HandlerFunc) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/otp", authHandler.IssueOTP)
			r.Post("/otp/verify", authHandler.VerifyOTP)
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/", userHandler.CreateUser)
			r.Route("/{userID}", func(r chi.Router) {
				r.Get("/profile", userHandler.GetProfile)
				r.Patch("/profile", userHandler.UpdateProfile)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondWithMessage(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondWithMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}
