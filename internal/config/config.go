// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Cache backends.
const (
	BackendMemory    = "memory"
	BackendRedis     = "redis"
	BackendRistretto = "ristretto"
)

// ErrInvalid is returned when a loaded value fails validation.
var ErrInvalid = errors.New("config: invalid value")

// Config is the full service configuration.
type Config struct {
	App       App
	Cache     Cache
	HRAPI     HRAPI
	Sentry    Sentry
	Tracing   Tracing
	Directory Directory
}

// App configures the HTTP server.
type App struct {
	Addr            string        `env:"APP_ADDR" env-default:":8080"`
	LogLevel        string        `env:"LOG_LEVEL" env-default:"info"`
	LogFormat       string        `env:"LOG_FORMAT" env-default:"json"`
	Env             string        `env:"APP_ENV" env-default:"development"`
	ShutdownTimeout time.Duration `env:"APP_SHUTDOWN_TIMEOUT" env-default:"30s"`
	RequestTimeout  time.Duration `env:"APP_REQUEST_TIMEOUT" env-default:"30s"`
	CORSOrigins     []string      `env:"APP_CORS_ORIGINS" env-separator:"," env-default:"*"`
}

// Cache selects and configures the cache backend.
type Cache struct {
	Backend    string        `env:"CACHE_BACKEND" env-default:"memory"`
	RedisURL   string        `env:"CACHE_REDIS_URL" env-default:"redis://localhost:6379/0"`
	Prefix     string        `env:"CACHE_PREFIX" env-default:"fetchkit"`
	DefaultTTL time.Duration `env:"CACHE_DEFAULT_TTL" env-default:"5m"`
	MaxCost    int64         `env:"CACHE_MAX_COST" env-default:"10000"`
	MaxEntries int           `env:"CACHE_MAX_ENTRIES" env-default:"0"`
}

// HRAPI configures the employees backend client.
type HRAPI struct {
	BaseURL    string        `env:"HRAPI_BASE_URL" env-default:"http://localhost:8000"`
	Token      string        `env:"HRAPI_TOKEN"`
	Timeout    time.Duration `env:"HRAPI_TIMEOUT" env-default:"10s"`
	RetryDelay time.Duration `env:"HRAPI_RETRY_DELAY" env-default:"1s"`
	Retries    int           `env:"HRAPI_RETRIES" env-default:"3"`
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64 `env:"HRAPI_RATE_LIMIT" env-default:"0"`
}

// Sentry enables error reporting when DSN is set.
type Sentry struct {
	DSN        string  `env:"SENTRY_DSN"`
	SampleRate float64 `env:"SENTRY_SAMPLE_RATE" env-default:"1"`
}

// Tracing configures the OTLP exporter.
type Tracing struct {
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:"localhost:4318"`
	ServiceName string  `env:"OTEL_SERVICE_NAME" env-default:"fetchkit"`
	SampleRate  float64 `env:"OTEL_TRACE_SAMPLE_RATE" env-default:"0.1"`
	Enabled     bool    `env:"OTEL_ENABLED" env-default:"false"`
	Insecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" env-default:"true"`
}

// Directory configures the employee directory controllers.
type Directory struct {
	TTL             time.Duration `env:"DIRECTORY_TTL" env-default:"5m"`
	RefetchInterval time.Duration `env:"DIRECTORY_REFETCH_INTERVAL" env-default:"0s"`
	PageSize        int           `env:"DIRECTORY_PAGE_SIZE" env-default:"20"`
}

// Load reads the given dotenv files, if they exist, then the process
// environment. Variables already set in the environment win over files.
func Load(files ...string) (Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints cleanenv cannot express.
func (c Config) Validate() error {
	var errs []error

	switch c.Cache.Backend {
	case BackendMemory, BackendRedis, BackendRistretto:
	default:
		errs = append(errs, fmt.Errorf("%w: CACHE_BACKEND %q", ErrInvalid, c.Cache.Backend))
	}
	if c.Cache.DefaultTTL < 0 {
		errs = append(errs, fmt.Errorf("%w: CACHE_DEFAULT_TTL must not be negative", ErrInvalid))
	}
	if c.HRAPI.BaseURL == "" {
		errs = append(errs, fmt.Errorf("%w: HRAPI_BASE_URL is required", ErrInvalid))
	}
	if c.HRAPI.Retries < 0 {
		errs = append(errs, fmt.Errorf("%w: HRAPI_RETRIES must not be negative", ErrInvalid))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("%w: OTEL_TRACE_SAMPLE_RATE must be within [0, 1]", ErrInvalid))
	}
	if c.Directory.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: DIRECTORY_PAGE_SIZE must be positive", ErrInvalid))
	}

	return errors.Join(errs...)
}

// Usage describes every supported variable.
func Usage() string {
	var cfg Config
	desc, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return err.Error()
	}
	return desc
}
