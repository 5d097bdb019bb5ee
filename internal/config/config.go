package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/Capstone-POKI/Pitchcoach-BACK/pkg/config"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds all configuration for the auth service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// Account store
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`

	// PostgreSQL
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"pitchcoach"`
	PostgresPass     string `env:"POSTGRES_PASSWORD" envDefault:"pitchcoach_secret"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"pitchcoach"`
	PostgresSSL      string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	PostgresMaxConns int32  `env:"POSTGRES_MAX_CONNS" envDefault:"25"`
	PostgresMinConns int32  `env:"POSTGRES_MIN_CONNS" envDefault:"5"`

	// Queries slower than this are logged at WARN.
	SlowQueryThresholdMS int `env:"SLOW_QUERY_THRESHOLD_MS" envDefault:"200"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// JWT
	JWTSecret        string        `env:"JWT_SECRET,required"`
	JWTIssuer        string        `env:"JWT_ISSUER" envDefault:"pitchcoach"`
	JWTAccessExpiry  time.Duration `env:"JWT_ACCESS_TOKEN_EXPIRY" envDefault:"1h"`
	JWTRefreshExpiry time.Duration `env:"JWT_REFRESH_TOKEN_EXPIRY" envDefault:"168h"`

	// Google identity federation
	GoogleClientID string `env:"GOOGLE_CLIENT_ID,required"`
	GoogleJWKSURL  string `env:"GOOGLE_JWKS_URL" envDefault:"https://www.googleapis.com/oauth2/v3/certs"`

	// OpenTelemetry
	OTelEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTelSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// pprof endpoints, reachable only from the allowlisted networks.
	PprofEnabled      bool     `env:"PPROF_ENABLED" envDefault:"false"`
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load auth config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q: want %q or %q", cfg.StoreDriver, StoreDriverPostgres, StoreDriverMemory)
	}

	// A missing variable is caught by the required tag; an empty one is not.
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must not be empty")
	}
	if cfg.GoogleClientID == "" {
		return nil, fmt.Errorf("GOOGLE_CLIENT_ID must not be empty")
	}

	// In non-development environments, require a strong JWT secret.
	if cfg.Environment != "development" && len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(cfg.JWTSecret))
	}

	if cfg.OTelSampleRate < 0 || cfg.OTelSampleRate > 1 {
		return nil, fmt.Errorf("invalid OTEL_SAMPLE_RATE: %v", cfg.OTelSampleRate)
	}

	return cfg, nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}

// SlowQueryThreshold returns the slow query threshold as a duration.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryThresholdMS) * time.Millisecond
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
