package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/turu-api/internal/api/handlers"
	"github.com/isdelr/turu-api/internal/auth"
	"github.com/isdelr/turu-api/internal/config"
	"github.com/isdelr/turu-api/internal/metrics"
	"github.com/isdelr/turu-api/internal/services"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

const authRealm = "turu"

// NewRouter creates and configures a new Chi router.
func NewRouter(cfg *config.Config, accountService services.AccountServiceProvider) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request handled")
	}))
	r.Use(middleware.Recoverer)
	if cfg.MetricsEnabled {
		r.Use(metrics.InstrumentHandler)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	accountHandler := handlers.NewAccountHandler(accountService)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", handlers.Ping)
		r.Post("/login", accountHandler.Login)
		r.Post("/register", accountHandler.Register)

		r.Route("/user/{id}", func(r chi.Router) {
			if cfg.ProtectUserRoutes {
				r.Use(auth.BasicAuthMiddleware(accountService, authRealm))
				r.Use(auth.RequireSelf("id"))
			}
			r.Put("/", accountHandler.UpdateProfile)
			r.Put("/password", accountHandler.UpdatePassword)
		})
	})

	if cfg.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	return r
}
