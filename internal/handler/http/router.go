package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/service"
	"github.com/Capstone-POKI/Pitchcoach-BACK/pkg/health"
	"github.com/Capstone-POKI/Pitchcoach-BACK/pkg/middleware"
)

const serviceName = "auth"

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	CORS              middleware.CORSConfig
	PprofEnabled      bool
	PprofAllowedCIDRs []string
}

// NewRouter creates a chi router with all auth service routes registered.
func NewRouter(
	authService *service.AuthService,
	authenticator *service.Authenticator,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	if cfg.PprofEnabled {
		middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)
	}

	requireAuth := middleware.Auth(authenticator.Middleware())
	authHandler := NewAuthHandler(authService, logger)
	userHandler := NewUserHandler(authService, logger)

	r.Route("/api/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.NoStore)

		// Public
		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/google", authHandler.Google)

		// Authenticated
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})
	})

	r.Route("/api/users/me", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(requireAuth)

		r.Patch("/password", userHandler.ChangePassword)
		r.Delete("/", userHandler.DeleteAccount)
	})

	return r
}
