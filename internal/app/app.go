package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/auth"
	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/config"
	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/event"
	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/federation"
	handler "github.com/Capstone-POKI/Pitchcoach-BACK/internal/handler/http"
	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/repository"
	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/repository/memory"
	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/repository/postgres"
	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/service"
	"github.com/Capstone-POKI/Pitchcoach-BACK/migrations"
	"github.com/Capstone-POKI/Pitchcoach-BACK/pkg/database"
	"github.com/Capstone-POKI/Pitchcoach-BACK/pkg/health"
	"github.com/Capstone-POKI/Pitchcoach-BACK/pkg/httpclient"
	pkgkafka "github.com/Capstone-POKI/Pitchcoach-BACK/pkg/kafka"
	"github.com/Capstone-POKI/Pitchcoach-BACK/pkg/middleware"
	"github.com/Capstone-POKI/Pitchcoach-BACK/pkg/tracing"
)

const serviceName = "auth"

// App wires together all dependencies and runs the auth service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTelEndpoint,
		SampleRate:     cfg.OTelSampleRate,
		Enabled:        cfg.OTelEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	a := &App{
		cfg:            cfg,
		logger:         logger,
		tracerShutdown: tracerShutdown,
	}
	healthHandler := health.NewHandler()

	// Account store.
	var accounts repository.AccountRepository
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Warn("using in-memory account store; data is lost on restart")
		accounts = memory.NewAccountRepository()
	default:
		pool, err := a.connectPostgres(ctx)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		accounts = postgres.NewAccountRepository(pool)
		healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
			return pool.Ping(ctx)
		})
	}

	// Kafka producer. Events are best effort, so the broker is a
	// non-critical dependency.
	var publisher event.Publisher
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = a.producer
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}
	eventProducer := event.NewProducer(publisher, logger)

	// Token issuer and hasher.
	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry)
	if err != nil {
		return nil, err
	}
	hasher := auth.NewHasher(auth.DefaultCost)

	// Google ID token verification. JWKS fetches go through a circuit breaker
	// so an unreachable Google endpoint fails fast.
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = 5 * time.Second
	jwksClient := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpCfg),
		httpclient.DefaultCircuitBreakerConfig("google-jwks"),
		logger,
	)
	verifier, err := federation.NewGoogleVerifier(cfg.GoogleClientID, cfg.GoogleJWKSURL, jwksClient, logger)
	if err != nil {
		return nil, fmt.Errorf("create google verifier: %w", err)
	}

	// Build the dependency graph.
	authService := service.NewAuthService(accounts, hasher, tokens, verifier, eventProducer, logger)
	authenticator := service.NewAuthenticator(accounts, tokens, logger)

	router := handler.NewRouter(authService, authenticator, healthHandler, logger, handler.RouterConfig{
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			ExposedHeaders: []string{"X-Correlation-ID"},
			Environment:    cfg.Environment,
		},
		PprofEnabled:      cfg.PprofEnabled,
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// connectPostgres opens the pool, registers its metrics and applies the
// embedded migrations.
func (a *App) connectPostgres(ctx context.Context) (*pgxpool.Pool, error) {
	cfg := a.cfg
	pgCfg := database.DefaultPostgresConfig()
	pgCfg.Host = cfg.PostgresHost
	pgCfg.Port = cfg.PostgresPort
	pgCfg.User = cfg.PostgresUser
	pgCfg.Password = cfg.PostgresPass
	pgCfg.DBName = cfg.PostgresDB
	pgCfg.SSLMode = cfg.PostgresSSL
	pgCfg.MaxConns = cfg.PostgresMaxConns
	pgCfg.MinConns = cfg.PostgresMinConns

	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, serviceName)

	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	a.logger.Info("database migrations completed")

	if threshold := cfg.SlowQueryThreshold(); threshold > 0 {
		database.SetSlowQueryLogging(threshold, a.logger)
	}

	return pool, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka producer
// 4. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 3. Close Kafka producer.
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 4. Close PostgreSQL pool.
	if a.pool != nil {
		a.pool.Close()
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
