package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	apiMiddleware "github.com/phrazzld/storefront-api/internal/api/middleware"
	"github.com/phrazzld/storefront-api/internal/domain"
	"github.com/phrazzld/storefront-api/internal/service/auth"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps holds everything NewRouter mounts.
type RouterDeps struct {
	Auth       *AuthHandler
	Users      *UserHandler
	Games      *GameHandler
	Promotions *PromotionHandler

	JWTService auth.JWTService
	// LoginLimiter throttles POST /api/auth/login per client. Optional.
	LoginLimiter *apiMiddleware.RateLimiter
	// Ping reports database health on /health. Optional.
	Ping   func(ctx context.Context) error
	Logger *slog.Logger
}

// NewRouter builds the HTTP routes of the storefront.
//
// Login, registration and token refresh are public. Every other /api route
// needs a valid access token carrying the user role, and catalog, promotion
// and user mutations additionally need the administrator role.
func NewRouter(deps RouterDeps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(log))

	authMiddleware := apiMiddleware.NewAuthMiddleware(deps.JWTService)
	adminOnly := apiMiddleware.RequireRole(domain.RoleAdministrator)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", deps.Auth.Register)
		r.Post("/auth/refresh", deps.Auth.RefreshToken)
		r.Group(func(r chi.Router) {
			if deps.LoginLimiter != nil {
				r.Use(deps.LoginLimiter.Handler)
			}
			r.Post("/auth/login", deps.Auth.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Use(apiMiddleware.RequireRole(domain.RoleUser))

			r.Get("/auth/profile", deps.Auth.Profile)
			r.Put("/auth/password", deps.Auth.ChangePassword)
			r.Get("/library", deps.Users.Library)

			r.Get("/games", deps.Games.List)
			r.Get("/games/{id}", deps.Games.Get)
			r.Get("/promotions", deps.Promotions.List)
			r.Get("/promotions/{id}", deps.Promotions.Get)

			r.Group(func(r chi.Router) {
				r.Use(adminOnly)

				r.Post("/games", deps.Games.Create)
				r.Put("/games/{id}", deps.Games.Update)
				r.Patch("/games/{id}/activate", deps.Games.Activate)
				r.Patch("/games/{id}/deactivate", deps.Games.Deactivate)
				r.Delete("/games/{id}", deps.Games.Delete)

				r.Post("/promotions", deps.Promotions.Create)
				r.Put("/promotions/{id}", deps.Promotions.Edit)
				r.Patch("/promotions/{id}/activate", deps.Promotions.Activate)
				r.Patch("/promotions/{id}/deactivate", deps.Promotions.Deactivate)
				r.Delete("/promotions/{id}", deps.Promotions.Delete)

				r.Get("/users", deps.Users.List)
				r.Post("/users", deps.Users.Create)
				r.Get("/users/{id}", deps.Users.Get)
				r.Delete("/users/{id}", deps.Users.Delete)
				r.Post("/users/{id}/library", deps.Users.AddToLibrary)
			})
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ping != nil {
			if err := deps.Ping(r.Context()); err != nil {
				log.Error("health check failed", slog.String("error", err.Error()))
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error("failed to write health check response", slog.String("error", err.Error()))
		}
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
