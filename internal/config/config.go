/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	DBBackend   DatabaseBackend
	DBDSN       string
	MetricsBind string

	// Redis (generation lock + schedule cache)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// NATS job queue
	NATSURL           string
	JobStreamName     string
	JobDurableName    string
	WorkerCount       int           // simultaneous jobs per process
	JobMaxAttempts    int           // delivery attempts before permanent failure
	JobAckWait        time.Duration // redelivery timeout for in-flight jobs
	GenerationLockTTL time.Duration

	// Expansion bounds
	LookaheadDays        int // next-occurrence query horizon
	MaxOccurrencesPerRun int

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	InstanceID string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("SKIRNIR_ENV", "development"),
		HTTPBind:    getEnv("SKIRNIR_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("SKIRNIR_HTTP_PORT", 8080),
		DBBackend:   DatabaseBackend(getEnv("SKIRNIR_DB_BACKEND", string(DatabasePostgres))),
		DBDSN:       getEnv("SKIRNIR_DB_DSN", ""),
		MetricsBind: getEnv("SKIRNIR_METRICS_BIND", "127.0.0.1:9000"),

		RedisAddr:     getEnv("SKIRNIR_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("SKIRNIR_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("SKIRNIR_REDIS_DB", 0),

		NATSURL:           getEnv("SKIRNIR_NATS_URL", "nats://localhost:4222"),
		JobStreamName:     getEnv("SKIRNIR_JOB_STREAM", "SKIRNIR_JOBS"),
		JobDurableName:    getEnv("SKIRNIR_JOB_DURABLE", "skirnir-worker"),
		WorkerCount:       getEnvInt("SKIRNIR_WORKER_COUNT", 5),
		JobMaxAttempts:    getEnvInt("SKIRNIR_JOB_MAX_ATTEMPTS", 5),
		JobAckWait:        time.Duration(getEnvInt("SKIRNIR_JOB_ACK_WAIT_SECONDS", 120)) * time.Second,
		GenerationLockTTL: time.Duration(getEnvInt("SKIRNIR_GENERATION_LOCK_TTL_SECONDS", 60)) * time.Second,

		LookaheadDays:        getEnvInt("SKIRNIR_LOOKAHEAD_DAYS", 365),
		MaxOccurrencesPerRun: getEnvInt("SKIRNIR_MAX_OCCURRENCES_PER_RUN", 1000),

		TracingEnabled:    getEnvBool("SKIRNIR_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("SKIRNIR_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("SKIRNIR_TRACING_SAMPLE_RATE", 1.0),

		InstanceID: getEnv("SKIRNIR_INSTANCE_ID", ""),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("SKIRNIR_DB_DSN must be provided")
	}

	if cfg.WorkerCount < 1 {
		return nil, fmt.Errorf("SKIRNIR_WORKER_COUNT must be at least 1")
	}

	if cfg.JobMaxAttempts < 1 {
		return nil, fmt.Errorf("SKIRNIR_JOB_MAX_ATTEMPTS must be at least 1")
	}

	if cfg.GenerationLockTTL < time.Second {
		return nil, fmt.Errorf("SKIRNIR_GENERATION_LOCK_TTL_SECONDS must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "true" || v == "1" || v == "yes" {
			return true
		}
		if v == "false" || v == "0" || v == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}
