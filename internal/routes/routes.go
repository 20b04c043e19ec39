package routes

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/DevCodeRift/boundless-saga/internal/handlers"
	middlewareCustom "github.com/DevCodeRift/boundless-saga/internal/middleware"
	pkghttp "github.com/DevCodeRift/boundless-saga/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// HealthChecker reports whether the backing store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Options configures the router
type Options struct {
	Env            string
	AllowedOrigins []string
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// NewRouter builds the chi router with the middleware stack and all routes
func NewRouter(
	opts Options,
	authHandler *handlers.AuthHandler,
	discordHandler *handlers.DiscordOAuthHandler,
	health HealthChecker,
) chi.Router {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: opts.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(opts.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(opts.Logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(opts.RequestTimeout))

	RegisterRoutes(router, authHandler, discordHandler)
	router.Get("/health", healthHandler(health))

	return router
}

// RegisterRoutes registers the authentication routes
func RegisterRoutes(router chi.Router, authHandler *handlers.AuthHandler, discordHandler *handlers.DiscordOAuthHandler) {
	// Browser OAuth hops
	router.Get("/auth/discord/start", discordHandler.Start)
	router.Get("/auth/discord/callback", discordHandler.Callback)

	router.Route("/api/auth", func(r chi.Router) {
		r.Post("/discord", authHandler.DiscordAuth)
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/verify-email", authHandler.VerifyEmail)
	})
}

func healthHandler(health HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := health.HealthCheck(ctx); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "down"})
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "database": "up"})
	}
}
