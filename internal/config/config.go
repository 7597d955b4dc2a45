package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	RunMigrations      bool
	BodyLimitBytes     int64
	ShutdownTimeout    time.Duration

	KafkaBrokers    []string
	KafkaOrderTopic string
	RelayInterval   time.Duration
	RelayBatch      int

	SessionTTL           time.Duration
	SessionLockTTL       time.Duration
	SessionSubmitTimeout time.Duration
	SettingsCacheTTL     time.Duration
	IdempotencyTTL       time.Duration

	SubmitRateLimitMax     int
	SubmitRateLimitWindow  time.Duration
	SubmitRateLimitBackend string

	Obs ObsConfig
}

// ObsConfig groups logging, metrics and tracing switches.
type ObsConfig struct {
	LogFormat         string
	LogLevel          string
	MetricsEnabled    bool
	MetricsNamespace  string
	MetricsBucketsMS  string
	TracingEnabled    bool
	TracingExporter   string
	OTLPEndpoint      string
	TracingSampling   float64
	ReadyDBTimeout    time.Duration
	ReadyRedisTimeout time.Duration
	ReadyKafkaTimeout time.Duration

	PprofEnabled bool
	PprofUser    string
	PprofPass    string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		RunMigrations:      parseBoolDefault(k.String("RUN_MIGRATIONS"), true),
		BodyLimitBytes:     int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		ShutdownTimeout:    parseDuration(k.String("SHUTDOWN_TIMEOUT"), "15s"),

		KafkaBrokers:    splitAndTrim(k.String("KAFKA_BROKERS")),
		KafkaOrderTopic: valueOrDefault(k.String("KAFKA_ORDER_TOPIC"), "resto.orders"),
		RelayInterval:   parseDuration(k.String("EVENT_RELAY_INTERVAL"), "10s"),
		RelayBatch:      parseInt(k.String("EVENT_RELAY_BATCH"), 100),

		SessionTTL:           parseDuration(k.String("SESSION_TTL"), "12h"),
		SessionLockTTL:       parseDuration(k.String("SESSION_LOCK_TTL"), "5s"),
		SessionSubmitTimeout: parseDuration(k.String("SESSION_SUBMIT_TIMEOUT"), "30s"),
		SettingsCacheTTL:     parseDuration(k.String("SETTINGS_CACHE_TTL"), "5m"),
		IdempotencyTTL:       parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		SubmitRateLimitMax:     parseInt(k.String("SUBMIT_RATE_LIMIT_MAX"), 30),
		SubmitRateLimitWindow:  parseDuration(k.String("SUBMIT_RATE_LIMIT_WINDOW"), "1m"),
		SubmitRateLimitBackend: strings.ToLower(valueOrDefault(k.String("RATE_LIMIT_BACKEND"), "sliding")),

		Obs: ObsConfig{
			LogFormat:         valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:          valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsEnabled:    parseBoolDefault(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsNamespace:  valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "resto"),
			MetricsBucketsMS:  k.String("OBS_METRICS_BUCKETS_MS"),
			TracingEnabled:    parseBoolDefault(k.String("OBS_ENABLE_TRACING"), false),
			TracingExporter:   valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			OTLPEndpoint:      k.String("OBS_OTLP_ENDPOINT"),
			TracingSampling:   parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
			ReadyDBTimeout:    parseDuration(k.String("HEALTH_READY_DB_TIMEOUT"), "500ms"),
			ReadyRedisTimeout: parseDuration(k.String("HEALTH_READY_REDIS_TIMEOUT"), "300ms"),
			ReadyKafkaTimeout: parseDuration(k.String("HEALTH_READY_KAFKA_TIMEOUT"), "1s"),
			PprofEnabled:      parseBoolDefault(k.String("OBS_ENABLE_PPROF"), false),
			PprofUser:         k.String("SECURE_PPROF_BASIC_AUTH_USER"),
			PprofPass:         k.String("SECURE_PPROF_BASIC_AUTH_PASS"),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.SessionSubmitTimeout <= cfg.SessionLockTTL {
		return nil, errors.New("SESSION_SUBMIT_TIMEOUT must exceed SESSION_LOCK_TTL")
	}
	switch cfg.SubmitRateLimitBackend {
	case "sliding", "ulule":
	default:
		return nil, fmt.Errorf("RATE_LIMIT_BACKEND %q is not supported", cfg.SubmitRateLimitBackend)
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

// KafkaEnabled reports whether order events should be published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
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

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
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
