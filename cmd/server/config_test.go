package main

import (
	"strings"
	"testing"
	"time"

	"github.com/ConfabulousDev/lovelog/internal/queue"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func requiredEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL":              "postgres://localhost/lovelog",
		"S3_ENDPOINT":               "localhost:9000",
		"AWS_ACCESS_KEY_ID":         "minio",
		"AWS_SECRET_ACCESS_KEY":     "minio123",
		"BUCKET_NAME":               "lovelog",
		"LINE_CHANNEL_SECRET":       "secret",
		"LINE_CHANNEL_ACCESS_TOKEN": "token",
	}
}

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := parseConfig(envMap(requiredEnv()))
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.ReadTimeout != 30*time.Second || cfg.WriteTimeout != 30*time.Second {
		t.Errorf("timeouts = %v/%v, want 30s", cfg.ReadTimeout, cfg.WriteTimeout)
	}
	if !cfg.S3Config.UseSSL {
		t.Error("UseSSL should default to true")
	}
	if cfg.Subject != queue.DefaultSubject {
		t.Errorf("Subject = %q, want %q", cfg.Subject, queue.DefaultSubject)
	}
	if cfg.MaxLogBytes != 5<<20 {
		t.Errorf("MaxLogBytes = %d, want 5 MiB", cfg.MaxLogBytes)
	}
	if cfg.NATSURL != "" || cfg.MigrateOnStart {
		t.Error("queue mode and migrations should be off by default")
	}
	if !cfg.VocabEnabled {
		t.Error("VocabEnabled should default to true")
	}
	if cfg.RateLimitRPS != 1 || cfg.RateLimitBurst != 5 {
		t.Errorf("rate limit = %v/%d, want 1/5", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
}

func TestParseConfig_Overrides(t *testing.T) {
	env := requiredEnv()
	env["PORT"] = "9090"
	env["HTTP_READ_TIMEOUT"] = "5s"
	env["S3_USE_SSL"] = "false"
	env["NATS_URL"] = "nats://localhost:4222"
	env["ALLOWED_ORIGINS"] = "https://a.example, ,https://b.example"
	env["MIGRATE_ON_START"] = "true"
	env["MAX_LOG_BYTES"] = "1024"

	cfg, err := parseConfig(envMap(env))
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if cfg.Port != 9090 || cfg.ReadTimeout != 5*time.Second {
		t.Errorf("Port/ReadTimeout = %d/%v", cfg.Port, cfg.ReadTimeout)
	}
	if cfg.S3Config.UseSSL {
		t.Error("UseSSL should be false")
	}
	if cfg.NATSURL != "nats://localhost:4222" || !cfg.MigrateOnStart || cfg.MaxLogBytes != 1024 {
		t.Errorf("cfg = %+v", cfg.ServiceConfig)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestParseConfig_ReportsEveryProblem(t *testing.T) {
	env := requiredEnv()
	delete(env, "DATABASE_URL")
	delete(env, "LINE_CHANNEL_SECRET")
	env["PORT"] = "eighty"
	env["MAX_LOG_BYTES"] = "0"

	_, err := parseConfig(envMap(env))
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, want := range []string{"DATABASE_URL", "LINE_CHANNEL_SECRET", "PORT", "MAX_LOG_BYTES"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestParseServiceConfig_IgnoresServerVars(t *testing.T) {
	env := requiredEnv()
	env["PORT"] = "not-a-port"

	if _, err := parseServiceConfig(envMap(env)); err != nil {
		t.Errorf("parseServiceConfig: %v", err)
	}
}

func TestParseServiceConfig_RejectsNonPositiveJobTimeout(t *testing.T) {
	for _, v := range []string{"0s", "-1m"} {
		env := requiredEnv()
		env["JOB_TIMEOUT"] = v

		_, err := parseServiceConfig(envMap(env))
		if err == nil || !strings.Contains(err.Error(), "JOB_TIMEOUT") {
			t.Errorf("JOB_TIMEOUT=%s: err = %v, want a JOB_TIMEOUT error", v, err)
		}
	}
}
