// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, store selection, rate limiting, and
// observability.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Application environments.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
	EnvTest        = "test"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// DefaultSQLitePath is used when the sqlite store is selected without DB_PATH.
const DefaultSQLitePath = "file::memory:?cache=shared"

// StoreConfig selects and seeds the budget store.
type StoreConfig struct {
	Driver string `env:"STORE_DRIVER,default=memory"` // memory|sqlite
	DBPath string `env:"DB_PATH"`                     // SQLite path or file: URI
	Seed   bool   `env:"SEED_BUDGETS,default=true"`   // insert the two initial budgets
}

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool          `env:"ENABLE_HSTS,default=false"`
	HSTSMaxAge time.Duration `env:"HSTS_MAX_AGE,default=4320h"`
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    `env:"OTEL_ENABLED,default=false"`
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT,default=localhost:4317"`
	Insecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE,default=true"`
	ServiceName string  `env:"OTEL_SERVICE_NAME,default=go-budget-api"`
	SampleRatio float64 `env:"OTEL_TRACES_SAMPLER_ARG,default=1"` // [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        `env:"PORT,default=3000"`
	AppEnv            string        `env:"APP_ENV,default=production"` // production|development|test
	ReadTimeout       time.Duration `env:"READ_TIMEOUT,default=15s"`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT,default=10s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT,default=20s"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT,default=60s"`
	MaxHeaderBytes    int           `env:"MAX_HEADER_BYTES,default=1048576"`
	GinMode           string        `env:"GIN_MODE,default=release"` // debug|release|test

	// Shutdown
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	ShutdownDrainOnFatal bool          `env:"SHUTDOWN_DRAIN_ON_FATAL,default=false"`

	// Logging / Docs
	LogLevel       string `env:"LOG_LEVEL,default=info"`  // debug|info|warn|error|fatal|panic
	LogFormat      string `env:"LOG_FORMAT,default=json"` // json|console
	SwaggerEnabled bool   `env:"SWAGGER_ENABLED,default=false"`
	PprofEnabled   bool   `env:"ENABLE_PPROF,default=false"`
	APIBasePath    string `env:"API_BASE_PATH,default=/api"`

	// Store
	Store StoreConfig

	// Rate limiting
	RateRPS   float64 `env:"RATE_RPS,default=20"`   // tokens per second (>= 0)
	RateBurst int     `env:"RATE_BURST,default=40"` // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL,default=24h"`

	// Observability
	OTEL OTELConfig
}

// IsDevelopment reports whether error responses may carry stacks and details.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment || c.AppEnv == EnvTest
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load(context.Background())
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from the process environment.
func Load(ctx context.Context) (Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration from l, applies defaults, normalizes values,
// and validates the result.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return cfg, fmt.Errorf("loading config: %w", err)
	}

	normalize(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func normalize(cfg *Config) {
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	cfg.GinMode = strings.ToLower(strings.TrimSpace(cfg.GinMode))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	cfg.APIBasePath = normalizeBasePath(cfg.APIBasePath)
	cfg.CORS.AllowedOrigins = compact(cfg.CORS.AllowedOrigins)

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.Store.Driver == StoreSQLite && strings.TrimSpace(cfg.Store.DBPath) == "" {
		cfg.Store.DBPath = DefaultSQLitePath
	}
}

func validate(cfg Config) error {
	switch cfg.AppEnv {
	case EnvProduction, EnvDevelopment, EnvTest:
	default:
		return errors.New("APP_ENV must be one of: production, development, test")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	switch cfg.LogFormat {
	case "json", "console":
	default:
		return errors.New("LOG_FORMAT must be one of: json, console")
	}
	switch cfg.Store.Driver {
	case StoreMemory, StoreSQLite:
	default:
		return errors.New("STORE_DRIVER must be one of: memory, sqlite")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return errors.New("timeouts must be positive durations")
	}
	if cfg.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be > 0")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.RateRPS < 0 {
		return errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return nil
}

// compact trims entries and drops empty ones.
func compact(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, p := range in {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
