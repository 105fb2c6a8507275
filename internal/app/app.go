// Package app wires together all dependencies and runs the sentiment service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/Souradip121/sentiment-service/internal/auth"
	"github.com/Souradip121/sentiment-service/internal/breaker"
	"github.com/Souradip121/sentiment-service/internal/config"
	"github.com/Souradip121/sentiment-service/internal/event"
	handler "github.com/Souradip121/sentiment-service/internal/handler/http"
	"github.com/Souradip121/sentiment-service/internal/repository/postgres"
	"github.com/Souradip121/sentiment-service/internal/scorer"
	"github.com/Souradip121/sentiment-service/internal/service"
	"github.com/Souradip121/sentiment-service/migrations"
	"github.com/Souradip121/sentiment-service/pkg/database"
	"github.com/Souradip121/sentiment-service/pkg/health"
	pkgkafka "github.com/Souradip121/sentiment-service/pkg/kafka"
	"github.com/Souradip121/sentiment-service/pkg/middleware"
	"github.com/Souradip121/sentiment-service/pkg/tracing"
)

// App holds the service's long-lived resources.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redisClient    *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "sentiment",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.TracingEndpoint,
		SampleRate:     cfg.TracingSampleRate,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pgCfg := database.DefaultPostgresConfig()
	pgCfg.Host = cfg.PostgresHost
	pgCfg.Port = cfg.PostgresPort
	pgCfg.User = cfg.PostgresUser
	pgCfg.Password = cfg.PostgresPass
	pgCfg.DBName = cfg.PostgresDB
	pgCfg.SSLMode = cfg.PostgresSSL

	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, "sentiment")
	database.SetSlowQueryLogging(500*time.Millisecond, logger)

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Initialize Redis for the token denylist.
	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr()))

	// Initialize Kafka producer.
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Build the dependency graph.
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiry, cfg.JWTLeeway)
	denylist := auth.NewDenylist(redisClient)
	userRepo := postgres.NewUserRepository(pool)
	analysisRepo := postgres.NewAnalysisRepository(pool)
	publisher := event.NewPublisher(producer, logger)

	authService, err := service.NewAuthService(userRepo, tokenManager, denylist, publisher, cfg.BcryptCost, logger)
	if err != nil {
		pool.Close()
		redisClient.Close()
		return nil, fmt.Errorf("init auth service: %w", err)
	}

	lexicon, err := scorer.NewLexicon()
	if err != nil {
		pool.Close()
		redisClient.Close()
		return nil, fmt.Errorf("load fallback lexicon: %w", err)
	}
	logger.Info("fallback lexicon loaded", slog.Int("entries", lexicon.Size()))

	remoteCfg := scorer.DefaultRemoteConfig(cfg.ScorerURL, cfg.ScorerAPIKey)
	remoteCfg.Timeout = cfg.ScorerTimeout
	remote := scorer.NewRemoteClient(remoteCfg, logger)

	brk := breaker.New(breaker.Config{
		Name:             "remote-scorer",
		FailureThreshold: cfg.BreakerFailureThreshold,
		Cooldown:         cfg.BreakerCooldown,
	}, logger)

	sentimentService := service.NewSentimentService(remote, lexicon, brk, analysisRepo, publisher, service.SentimentConfig{
		MaxAttempts:  cfg.ScorerMaxAttempts,
		MaxTextBytes: cfg.MaxTextBytes,
		Backoff: scorer.BackoffPolicy{
			Base:      cfg.BackoffBase,
			MaxDelay:  cfg.BackoffMaxDelay,
			MaxJitter: cfg.BackoffMaxJitter,
		},
	}, logger)

	// Health checks. The remote scorer is deliberately not checked: the
	// service stays ready on lexicon fallback when the upstream is down.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	// HTTP router.
	router := handler.NewRouter(authService, sentimentService, healthHandler, logger, middleware.CORSConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Environment:    cfg.Environment,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           http.TimeoutHandler(router, cfg.RequestTimeout, `{"error":{"code":"INTERNAL_ERROR","message":"request timed out"}}`),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redisClient:    redisClient,
		producer:       producer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order: drain HTTP, flush
// spans, close Kafka, close Redis, close the pool.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.redisClient.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
