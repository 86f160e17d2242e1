package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration required by the API process.
// All values come from env, optionally seeded from a .env file.
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Vapi      VapiConfig
	Reconcile ReconcileConfig
	Scheduler SchedulerConfig
	Registry  RegistryConfig
	Storage   StorageConfig
	Notify    NotifyConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type VapiConfig struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	Timeout       time.Duration
}

// ReconcileConfig mirrors reconcile.Policy. Zero values take the policy
// defaults.
type ReconcileConfig struct {
	CompletionInitialDelay  time.Duration
	CompletionMaxDelay      time.Duration
	CompletionErrorMaxDelay time.Duration
	AnalysisInitialDelay    time.Duration
	AnalysisMaxDelay        time.Duration
	MaxRetries              int
}

type SchedulerConfig struct {
	// Backend is timer (in-process) or asynq (Redis-backed delayed tasks).
	Backend     string
	Queue       string
	Concurrency int
}

type RegistryConfig struct {
	// Backend is memory or redis.
	Backend   string
	KeyPrefix string
}

type StorageConfig struct {
	// Backend is postgres or memory. memory is rejected in production.
	Backend string
}

type NotifyConfig struct {
	// RedisChannel enables outcome pub/sub when set.
	RedisChannel string
	// VendorPatchBack patches outcomes onto the vendor call metadata.
	VendorPatchBack bool
}

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendTimer    = "timer"
	BackendAsynq    = "asynq"
)

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv parses and validates the process environment.
func FromEnv() (Config, error) {
	c := Config{}
	var parseErrs []error
	intVar := func(key string, required bool) int {
		n, err := parseInt(key, required)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		return n
	}
	durVar := func(key string) time.Duration {
		d, err := parseDuration(key)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		return d
	}

	c.App.Env = env("APP_ENV")
	c.App.Port = intVar("APP_PORT", true)

	c.DB.Host = env("DB_HOST")
	c.DB.Port = intVar("DB_PORT", false)
	c.DB.User = env("DB_USER")
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = env("DB_NAME")
	c.DB.SSLMode = env("DB_SSLMODE")

	c.Redis.Host = env("REDIS_HOST")
	c.Redis.Port = intVar("REDIS_PORT", false)
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	c.Redis.DB = intVar("REDIS_DB", false)

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = env("JWT_ISSUER")
	c.Auth.JWTAudience = env("JWT_AUDIENCE")
	c.Auth.AccessTokenTTL = durVar("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = durVar("JWT_REFRESH_TTL")

	c.Vapi.BaseURL = env("VAPI_BASE_URL")
	c.Vapi.APIKey = os.Getenv("VAPI_API_KEY")
	c.Vapi.WebhookSecret = os.Getenv("VAPI_WEBHOOK_SECRET")
	c.Vapi.Timeout = durVar("VAPI_TIMEOUT")

	c.Reconcile.CompletionInitialDelay = durVar("RECONCILE_COMPLETION_INITIAL_DELAY")
	c.Reconcile.CompletionMaxDelay = durVar("RECONCILE_COMPLETION_MAX_DELAY")
	c.Reconcile.CompletionErrorMaxDelay = durVar("RECONCILE_COMPLETION_ERROR_MAX_DELAY")
	c.Reconcile.AnalysisInitialDelay = durVar("RECONCILE_ANALYSIS_INITIAL_DELAY")
	c.Reconcile.AnalysisMaxDelay = durVar("RECONCILE_ANALYSIS_MAX_DELAY")
	c.Reconcile.MaxRetries = intVar("RECONCILE_MAX_RETRIES", false)

	c.Scheduler.Backend = strings.ToLower(env("SCHEDULER_BACKEND"))
	c.Scheduler.Queue = env("SCHEDULER_QUEUE")
	c.Scheduler.Concurrency = intVar("SCHEDULER_CONCURRENCY", false)

	c.Registry.Backend = strings.ToLower(env("REGISTRY_BACKEND"))
	c.Registry.KeyPrefix = env("REGISTRY_KEY_PREFIX")

	c.Storage.Backend = strings.ToLower(env("STORAGE_BACKEND"))

	c.Notify.RedisChannel = env("NOTIFY_REDIS_CHANNEL")
	c.Notify.VendorPatchBack = strings.EqualFold(env("NOTIFY_VENDOR_PATCH_BACK"), "true")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate applies defaults and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendPostgres
	}
	switch c.Storage.Backend {
	case BackendPostgres:
		errs = append(errs, c.validateDB()...)
	case BackendMemory:
		if c.IsProduction() {
			errs = append(errs, errors.New("STORAGE_BACKEND=memory is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be postgres or memory, got %q", c.Storage.Backend))
	}

	if c.Registry.Backend == "" {
		c.Registry.Backend = BackendMemory
	}
	if c.Registry.Backend != BackendMemory && c.Registry.Backend != BackendRedis {
		errs = append(errs, fmt.Errorf("REGISTRY_BACKEND must be memory or redis, got %q", c.Registry.Backend))
	}
	if c.Scheduler.Backend == "" {
		c.Scheduler.Backend = BackendTimer
	}
	if c.Scheduler.Backend != BackendTimer && c.Scheduler.Backend != BackendAsynq {
		errs = append(errs, fmt.Errorf("SCHEDULER_BACKEND must be timer or asynq, got %q", c.Scheduler.Backend))
	}
	if c.Scheduler.Backend == BackendAsynq && c.Registry.Backend != BackendRedis {
		// Durable wakes pointing at an in-memory registry would find nothing after a restart.
		errs = append(errs, errors.New("SCHEDULER_BACKEND=asynq requires REGISTRY_BACKEND=redis"))
	}
	if c.Scheduler.Queue == "" {
		c.Scheduler.Queue = "reconcile"
	}
	if c.Scheduler.Concurrency <= 0 {
		c.Scheduler.Concurrency = 10
	}

	if c.NeedsRedis() {
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("REDIS_HOST is required"))
		}
		if c.Redis.Port == 0 {
			c.Redis.Port = 6379
		}
		if c.Redis.Port < 0 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
		}
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Vapi.APIKey == "" {
		errs = append(errs, errors.New("VAPI_API_KEY is required"))
	}
	if c.IsProduction() && c.Vapi.WebhookSecret == "" {
		errs = append(errs, errors.New("VAPI_WEBHOOK_SECRET is required in production"))
	}
	if c.Vapi.Timeout <= 0 {
		c.Vapi.Timeout = 10 * time.Second
	}

	if c.Reconcile.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("RECONCILE_MAX_RETRIES must not be negative, got %d", c.Reconcile.MaxRetries))
	}

	return joinErrors(errs)
}

func (c *Config) validateDB() []error {
	var errs []error
	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port == 0 {
		c.DB.Port = 5432
	}
	if c.DB.Port < 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}
	return errs
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

// NeedsRedis reports whether any configured component talks to Redis.
func (c Config) NeedsRedis() bool {
	return c.Registry.Backend == BackendRedis || c.Scheduler.Backend == BackendAsynq || c.Notify.RedisChannel != ""
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func parseInt(key string, required bool) (int, error) {
	v := env(key)
	if v == "" {
		if required {
			return 0, fmt.Errorf("%s is required", key)
		}
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func parseDuration(key string) (time.Duration, error) {
	v := env(key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration, got %q", key, v)
	}
	return d, nil
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
