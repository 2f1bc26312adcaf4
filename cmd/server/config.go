package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ConfabulousDev/lovelog/internal/diagnosis"
	"github.com/ConfabulousDev/lovelog/internal/logger"
	"github.com/ConfabulousDev/lovelog/internal/queue"
	"github.com/ConfabulousDev/lovelog/internal/storage"
)

// ServiceConfig is what both the server and the worker need to run
// diagnosis jobs.
type ServiceConfig struct {
	DatabaseURL    string
	MigrateOnStart bool
	S3Config       storage.S3Config

	ChannelSecret string
	ChannelToken  string

	NATSURL string
	Subject string

	MaxLogBytes  int64
	JobTimeout   time.Duration
	VocabEnabled bool
}

// Config is the HTTP server configuration.
type Config struct {
	ServiceConfig

	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	APIKey         string
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

func loadConfig() Config {
	cfg, err := parseConfig(os.Getenv)
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	return cfg
}

func loadWorkerConfig() ServiceConfig {
	cfg, err := parseServiceConfig(os.Getenv)
	if err == nil && cfg.NATSURL == "" {
		err = errors.New("missing required env var NATS_URL")
	}
	if err != nil {
		logger.Fatal("invalid worker configuration", "error", err)
	}
	return cfg
}

// envReader collects every problem instead of stopping at the first one.
type envReader struct {
	getenv func(string) string
	errs   []error
}

func (e *envReader) required(name string) string {
	v := e.getenv(name)
	if v == "" {
		e.errs = append(e.errs, fmt.Errorf("missing required env var %s", name))
	}
	return v
}

func (e *envReader) str(name, def string) string {
	if v := e.getenv(name); v != "" {
		return v
	}
	return def
}

func (e *envReader) integer(name string, def int) int {
	v := e.getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", name, v))
		return def
	}
	return n
}

func (e *envReader) float(name string, def float64) float64 {
	v := e.getenv(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a number", name, v))
		return def
	}
	return f
}

func (e *envReader) duration(name string, def time.Duration) time.Duration {
	v := e.getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", name, err))
		return def
	}
	return d
}

func (e *envReader) boolean(name string, def bool) bool {
	v := e.getenv(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a boolean", name, v))
		return def
	}
	return b
}

func (e *envReader) err() error {
	return errors.Join(e.errs...)
}

func readServiceConfig(env *envReader) ServiceConfig {
	return ServiceConfig{
		DatabaseURL:    env.required("DATABASE_URL"),
		MigrateOnStart: env.boolean("MIGRATE_ON_START", false),
		S3Config: storage.S3Config{
			Endpoint:        env.required("S3_ENDPOINT"),
			AccessKeyID:     env.required("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: env.required("AWS_SECRET_ACCESS_KEY"),
			BucketName:      env.required("BUCKET_NAME"),
			UseSSL:          env.boolean("S3_USE_SSL", true),
		},
		ChannelSecret: env.required("LINE_CHANNEL_SECRET"),
		ChannelToken:  env.required("LINE_CHANNEL_ACCESS_TOKEN"),
		NATSURL:       env.str("NATS_URL", ""),
		Subject:       env.str("LINE_EVENTS_SUBJECT", queue.DefaultSubject),
		MaxLogBytes:   int64(env.integer("MAX_LOG_BYTES", diagnosis.DefaultMaxLogBytes)),
		JobTimeout:    env.duration("JOB_TIMEOUT", diagnosis.DefaultJobTimeout),
		VocabEnabled:  env.boolean("VOCAB_ENABLED", true),
	}
}

// checkServiceConfig reports values that parse but cannot work.
func checkServiceConfig(env *envReader, cfg ServiceConfig) {
	if cfg.MaxLogBytes <= 0 {
		env.errs = append(env.errs, errors.New("MAX_LOG_BYTES must be positive"))
	}
	if cfg.JobTimeout <= 0 {
		env.errs = append(env.errs, errors.New("JOB_TIMEOUT must be positive"))
	}
}

func parseServiceConfig(getenv func(string) string) (ServiceConfig, error) {
	env := &envReader{getenv: getenv}
	cfg := readServiceConfig(env)
	checkServiceConfig(env, cfg)
	return cfg, env.err()
}

func parseConfig(getenv func(string) string) (Config, error) {
	env := &envReader{getenv: getenv}
	cfg := Config{
		ServiceConfig:  readServiceConfig(env),
		Port:           env.integer("PORT", 8080),
		ReadTimeout:    env.duration("HTTP_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   env.duration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		APIKey:         env.str("API_KEY", ""),
		AllowedOrigins: splitList(env.str("ALLOWED_ORIGINS", "")),
		RateLimitRPS:   env.float("RATE_LIMIT_RPS", 1),
		RateLimitBurst: env.integer("RATE_LIMIT_BURST", 5),
	}
	checkServiceConfig(env, cfg.ServiceConfig)
	return cfg, env.err()
}

// splitList parses a comma-separated env value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
