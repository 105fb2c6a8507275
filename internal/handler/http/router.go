package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Souradip121/sentiment-service/internal/service"
	"github.com/Souradip121/sentiment-service/pkg/health"
	"github.com/Souradip121/sentiment-service/pkg/middleware"
)

// NewRouter creates a chi router with all sentiment service routes registered.
func NewRouter(
	authService *service.AuthService,
	sentimentService *service.SentimentService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsConfig middleware.CORSConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(corsConfig))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Tracing("sentiment"))
	r.Use(middleware.PrometheusMetrics("sentiment"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Token validator that bridges to the auth service (signature, expiry,
	// denylist).
	tokenValidator := func(ctx context.Context, token string) (*middleware.Claims, error) {
		claims, err := authService.ValidateToken(ctx, token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID:   claims.UserID,
			Username: claims.Username,
			Role:     claims.Role,
			Scopes:   claims.Scopes,
		}, nil
	}

	authHandler := NewAuthHandler(authService, logger)

	// Public auth endpoints
	r.Route("/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)

		// Authenticated auth endpoints
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokenValidator))

			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})
	})

	// Sentiment endpoints (auth required)
	sentimentHandler := NewSentimentHandler(sentimentService, logger)
	r.Route("/sentiment", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(tokenValidator))

		r.Post("/analyze", sentimentHandler.Analyze)
		r.Get("/history", sentimentHandler.History)
	})

	return r
}
