package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is read from config.yaml (CONFIG_PATH), then overridden by env vars.
// A .env file in the working directory is loaded first when present.
type Config struct {
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	HTTPPort      string `yaml:"http_port"`
	LogMode       string `yaml:"log_mode"`

	JWTSecret    string `yaml:"jwt_secret"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`

	Engine    EngineConfig    `yaml:"engine"`
	Retention RetentionConfig `yaml:"retention"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// EngineConfig holds the defaults used when a business has no combination rule
type EngineConfig struct {
	MaxCallDurationSeconds int     `yaml:"max_call_duration_seconds"`
	TargetQuestionCount    int     `yaml:"target_question_count"`
	TriggerBoostFactor     float64 `yaml:"trigger_boost_factor"`
	ThresholdMS            int     `yaml:"threshold_ms"`
	CacheTTLSeconds        int     `yaml:"cache_ttl_seconds"`
	// Backend is "redis" or "memory" for the frequency store, combination
	// cache and sequence counter.
	Backend        string `yaml:"backend"`
	LogQueueSize   int    `yaml:"log_queue_size"`
	RequestTimeout int    `yaml:"request_timeout_ms"`
}

type RetentionConfig struct {
	Schedule string `yaml:"schedule"` // 5-field cron; empty disables the sweep
	Days     int    `yaml:"days"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
	Environment string  `yaml:"environment"`
}

// CacheTTL is the combination cache entry lifetime
func (e EngineConfig) CacheTTL() time.Duration {
	return time.Duration(e.CacheTTLSeconds) * time.Second
}

// Load reads the config file at path (missing file is fine), applies env
// overrides and defaults, then validates.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		path = envPath
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	envOverride(&cfg.MongoURI, "MONGO_URI")
	envOverride(&cfg.MongoDatabase, "MONGO_DATABASE")
	envOverride(&cfg.RedisAddr, "REDIS_ADDR")
	envOverride(&cfg.RedisPassword, "REDIS_PASSWORD")
	envOverride(&cfg.HTTPPort, "HTTP_PORT")
	envOverride(&cfg.LogMode, "LOG_MODE")
	envOverride(&cfg.JWTSecret, "JWT_SECRET")
	envOverride(&cfg.ClientID, "CLIENT_ID")
	envOverride(&cfg.ClientSecret, "CLIENT_SECRET")
	envOverride(&cfg.Engine.Backend, "ENGINE_BACKEND")
	envOverride(&cfg.Retention.Schedule, "RETENTION_SCHEDULE")
	envOverride(&cfg.Tracing.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	envOverride(&cfg.Tracing.Environment, "ENVIRONMENT")

	for _, o := range []struct {
		field *int
		key   string
	}{
		{&cfg.Engine.MaxCallDurationSeconds, "ENGINE_MAX_CALL_DURATION_SECONDS"},
		{&cfg.Engine.TargetQuestionCount, "ENGINE_TARGET_QUESTION_COUNT"},
		{&cfg.Engine.ThresholdMS, "ENGINE_THRESHOLD_MS"},
		{&cfg.Engine.CacheTTLSeconds, "ENGINE_CACHE_TTL_SECONDS"},
		{&cfg.Engine.LogQueueSize, "ENGINE_LOG_QUEUE_SIZE"},
		{&cfg.Engine.RequestTimeout, "ENGINE_REQUEST_TIMEOUT_MS"},
		{&cfg.Retention.Days, "RETENTION_DAYS"},
	} {
		if err := envOverrideInt(o.field, o.key); err != nil {
			return err
		}
	}
	if err := envOverrideFloat(&cfg.Engine.TriggerBoostFactor, "ENGINE_TRIGGER_BOOST_FACTOR"); err != nil {
		return err
	}
	if err := envOverrideFloat(&cfg.Tracing.SampleRatio, "OTEL_SAMPLER_RATIO"); err != nil {
		return err
	}
	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		cfg.Tracing.Enabled = isTrue(v)
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_INSECURE"); v != "" {
		cfg.Tracing.Insecure = isTrue(v)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	setDefault(&cfg.MongoURI, "mongodb://localhost:27017")
	setDefault(&cfg.MongoDatabase, "voicefeedback")
	setDefault(&cfg.RedisAddr, "localhost:6379")
	setDefault(&cfg.HTTPPort, "8080")
	setDefault(&cfg.LogMode, "dev")
	setDefault(&cfg.JWTSecret, "super-secret-key-change-in-production")
	setDefault(&cfg.ClientID, "orchestrator")
	setDefault(&cfg.ClientSecret, "orchestrator-secret")
	setDefault(&cfg.Engine.Backend, "redis")

	if cfg.Engine.MaxCallDurationSeconds == 0 {
		cfg.Engine.MaxCallDurationSeconds = 120
	}
	if cfg.Engine.TargetQuestionCount == 0 {
		cfg.Engine.TargetQuestionCount = 5
	}
	if cfg.Engine.TriggerBoostFactor == 0 {
		cfg.Engine.TriggerBoostFactor = 1.0
	}
	if cfg.Engine.ThresholdMS == 0 {
		cfg.Engine.ThresholdMS = 50
	}
	if cfg.Engine.CacheTTLSeconds == 0 {
		cfg.Engine.CacheTTLSeconds = 300
	}
	if cfg.Engine.LogQueueSize == 0 {
		cfg.Engine.LogQueueSize = 256
	}
	if cfg.Engine.RequestTimeout == 0 {
		cfg.Engine.RequestTimeout = 2000
	}
	if cfg.Retention.Days == 0 {
		cfg.Retention.Days = 90
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 0.1
	}
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	switch strings.ToLower(c.Engine.Backend) {
	case "redis", "memory":
	default:
		return fmt.Errorf("engine.backend must be 'redis' or 'memory', got %q", c.Engine.Backend)
	}
	if c.Engine.MaxCallDurationSeconds < 0 {
		return fmt.Errorf("engine.max_call_duration_seconds must be >= 0")
	}
	if c.Engine.TargetQuestionCount < 0 {
		return fmt.Errorf("engine.target_question_count must be >= 0")
	}
	if c.Engine.TriggerBoostFactor < 0 {
		return fmt.Errorf("engine.trigger_boost_factor must be >= 0")
	}
	if c.Retention.Days < 1 {
		return fmt.Errorf("retention.days must be >= 1")
	}
	return nil
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideFloat(field *float64, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func setDefault(field *string, val string) {
	if *field == "" {
		*field = val
	}
}

func isTrue(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
