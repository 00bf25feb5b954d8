// Package config reads process configuration from the environment so main
// stays lean. Every knob has a working default; a bare `tridcheck-server`
// starts with the embedded schedule, an in-memory audit store, and no
// external dependencies.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is everything the binaries read from the environment.
type Config struct {
	Server    Server
	Log       Log
	Schedule  Schedule
	Postgres  Postgres
	Redis     Redis
	Kafka     Kafka
	RateLimit RateLimit
	Audit     Audit
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Log captures logging configuration.
type Log struct {
	// Level is one of debug, info, warn, error.
	Level string
}

// Schedule locates the tolerance schedule document.
type Schedule struct {
	// Path points at a schedule JSON file. Empty means the embedded
	// default schedule.
	Path string
}

// Postgres captures the audit store connection. Empty DSN means the
// in-memory store (development and tests only; events do not survive
// restarts).
type Postgres struct {
	DSN string
}

// Redis captures the rate limit store connection. Empty URL means the
// in-process memory store.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka captures audit streaming configuration. No brokers means the outbox
// relay and consumers stay offline; events still land in the store.
type Kafka struct {
	Brokers       []string
	ConsumerGroup string
	Partitions    int32
}

// RateLimit captures per-endpoint-class request budgets.
type RateLimit struct {
	Enabled        bool
	CheckPerWindow int
	ReadPerWindow  int
	Window         time.Duration
}

// Audit captures publisher tuning.
type Audit struct {
	OpsSampleRate      float64
	SecurityBufferSize int
}

// FromEnv builds a Config from TRIDCHECK_* environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:            getString("TRIDCHECK_ADDR", ":8080"),
			ShutdownTimeout: getDuration("TRIDCHECK_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Log: Log{
			Level: getString("TRIDCHECK_LOG_LEVEL", "info"),
		},
		Schedule: Schedule{
			Path: os.Getenv("TRIDCHECK_SCHEDULE_PATH"),
		},
		Postgres: Postgres{
			DSN: os.Getenv("TRIDCHECK_POSTGRES_DSN"),
		},
		Redis: Redis{
			URL:          os.Getenv("TRIDCHECK_REDIS_URL"),
			PoolSize:     getInt("TRIDCHECK_REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("TRIDCHECK_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("TRIDCHECK_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("TRIDCHECK_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("TRIDCHECK_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:       getList("TRIDCHECK_KAFKA_BROKERS"),
			ConsumerGroup: getString("TRIDCHECK_KAFKA_GROUP", "tridcheck-audit"),
			Partitions:    int32(getInt("TRIDCHECK_KAFKA_PARTITIONS", 3)),
		},
		RateLimit: RateLimit{
			Enabled:        getBool("TRIDCHECK_RATE_LIMIT_ENABLED", true),
			CheckPerWindow: getInt("TRIDCHECK_RATE_LIMIT_CHECK_PER_WINDOW", 60),
			ReadPerWindow:  getInt("TRIDCHECK_RATE_LIMIT_READ_PER_WINDOW", 300),
			Window:         getDuration("TRIDCHECK_RATE_LIMIT_WINDOW", time.Minute),
		},
		Audit: Audit{
			OpsSampleRate:      getFloat("TRIDCHECK_AUDIT_OPS_SAMPLE_RATE", 1.0),
			SecurityBufferSize: getInt("TRIDCHECK_AUDIT_SECURITY_BUFFER", 10000),
		},
	}
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// getList splits a comma-separated value, dropping empty entries.
func getList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
