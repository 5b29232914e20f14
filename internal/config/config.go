package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds service configuration loaded from the environment.
type Config struct {
	AppEnv string
	Port   string

	DatabaseURL string
	RedisURL    string

	// CallbackBaseURL is the public base the gateway posts callbacks
	// to; ResultBaseURL is where buyers land after checkout.
	CallbackBaseURL string
	ResultBaseURL   string

	// AdminJWTSecret signs bearer tokens for the profile admin API.
	AdminJWTSecret   string
	AdminJWTIssuer   string
	AdminJWTAudience string

	ReplayTTL       time.Duration
	RateLimitWindow time.Duration
	RateLimitMax    int

	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	TracingEnabled   bool
	TracingEndpoint  string
	TracingSampling  float64
}

// Load reads configuration from environment variables and an optional
// .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:           valueOrDefault(k.String("APP_ENV"), "development"),
		Port:             valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:      k.String("DATABASE_URL"),
		RedisURL:         k.String("REDIS_URL"),
		CallbackBaseURL:  strings.TrimRight(k.String("CALLBACK_BASE_URL"), "/"),
		ResultBaseURL:    strings.TrimRight(k.String("RESULT_BASE_URL"), "/"),
		AdminJWTSecret:   k.String("ADMIN_JWT_SECRET"),
		AdminJWTIssuer:   valueOrDefault(k.String("ADMIN_JWT_ISSUER"), "paygate-liqpay"),
		AdminJWTAudience: valueOrDefault(k.String("ADMIN_JWT_AUDIENCE"), "paygate-admin"),
		ReplayTTL:        parseDuration(k.String("CALLBACK_REPLAY_TTL"), "24h"),
		RateLimitWindow:  parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RateLimitMax:     intOrDefault(k.Int("RATE_LIMIT_MAX"), 60),
		LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "paygate"),
		TracingEnabled:   parseBool(k.String("OBS_ENABLE_TRACING")),
		TracingEndpoint:  k.String("OBS_OTLP_ENDPOINT"),
		TracingSampling:  floatOrDefault(k.Float64("OBS_TRACING_SAMPLING_RATIO"), 1.0),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.CallbackBaseURL == "" {
		return nil, errors.New("CALLBACK_BASE_URL is required")
	}
	if cfg.AdminJWTSecret == "" {
		return nil, errors.New("ADMIN_JWT_SECRET is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func intOrDefault(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

func floatOrDefault(value, fallback float64) float64 {
	if value > 0 {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// LoadForTests overrides environment variables for the duration of one
// Load call, restoring them afterwards.
func LoadForTests(vars map[string]string) (*Config, error) {
	original := make(map[string]string, len(vars))
	for key := range vars {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, vars[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
