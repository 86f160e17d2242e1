package config

import (
	"strings"
	"testing"
	"time"
)

func validLocal() Config {
	return Config{
		App:  AppConfig{Env: "local", Port: 8080},
		DB:   DBConfig{Host: "localhost", User: "postgres", Password: "x", Name: "telehealth"},
		Auth: AuthConfig{JWTSecret: "secret"},
		Vapi: VapiConfig{APIKey: "key"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"APP_ENV", "DB_HOST", "JWT_SECRET", "VAPI_API_KEY"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %v", want, err)
		}
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" || c.DB.Port != 5432 {
		t.Fatalf("expected db defaults, got %+v", c.DB)
	}
	if c.Registry.Backend != BackendMemory || c.Scheduler.Backend != BackendTimer || c.Storage.Backend != BackendPostgres {
		t.Fatalf("unexpected backend defaults: %+v %+v %+v", c.Registry, c.Scheduler, c.Storage)
	}
	if c.Vapi.Timeout != 10*time.Second || c.Auth.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("unexpected defaults: %+v %+v", c.Vapi, c.Auth)
	}
	if c.NeedsRedis() {
		t.Fatalf("memory/timer profile must not need redis")
	}
}

func TestValidate_ProductionRequirements(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected production errors")
	}
	for _, want := range []string{"DB_SSLMODE", "JWT_ISSUER", "VAPI_WEBHOOK_SECRET"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %v", want, err)
		}
	}
}

func TestValidate_AsynqRequiresRedisRegistry(t *testing.T) {
	c := validLocal()
	c.Scheduler.Backend = BackendAsynq
	c.Redis.Host = "localhost"
	err := c.Validate()
	if err == nil || !strings.Contains(err.Error(), "REGISTRY_BACKEND=redis") {
		t.Fatalf("expected registry error, got %v", err)
	}

	c.Registry.Backend = BackendRedis
	if err := c.Validate(); err != nil {
		t.Fatalf("expected valid durable config, got %v", err)
	}
	if c.Redis.Port != 6379 || c.Scheduler.Queue != "reconcile" {
		t.Fatalf("unexpected defaults: %+v %+v", c.Redis, c.Scheduler)
	}
}

func TestValidate_MemoryStorageSkipsDB(t *testing.T) {
	c := Config{
		App:     AppConfig{Env: "dev", Port: 8080},
		Auth:    AuthConfig{JWTSecret: "secret"},
		Vapi:    VapiConfig{APIKey: "key"},
		Storage: StorageConfig{Backend: BackendMemory},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("VAPI_API_KEY", "k")
	t.Setenv("RECONCILE_ANALYSIS_INITIAL_DELAY", "5s")
	t.Setenv("RECONCILE_MAX_RETRIES", "4")
	t.Setenv("NOTIFY_REDIS_CHANNEL", "outcomes")
	t.Setenv("REDIS_HOST", "cache")

	c, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if c.App.Port != 9090 || c.Reconcile.AnalysisInitialDelay != 5*time.Second || c.Reconcile.MaxRetries != 4 {
		t.Fatalf("unexpected config: %+v", c)
	}
	if !c.NeedsRedis() || c.RedisAddr() != "cache:6379" {
		t.Fatalf("expected redis for pub/sub, got %q", c.RedisAddr())
	}
}

func TestFromEnv_BadDuration(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("VAPI_TIMEOUT", "soon")
	if _, err := FromEnv(); err == nil || !strings.Contains(err.Error(), "VAPI_TIMEOUT") {
		t.Fatalf("expected duration error, got %v", err)
	}
}
