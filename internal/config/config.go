package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the immutable startup configuration. Values that operators
// change at runtime (kill switch, live rate limits) live in Runtime.
type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	EngineBaseURL        string
	EngineToken          string
	EngineTimeoutSeconds int

	ArtifactRegion       string
	ArtifactCheckEnabled bool
	ArtifactSchemes      []string
	ArtifactSources      []string
	ArtifactContentTypes []string
	MaxArtifactBytes     int64

	IdempotencyTTLHours int

	ReadRateLimit   int
	MutateRateLimit int

	AllowPromotionJumps bool
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:             addr,
		PostgresDSN:          os.Getenv("POSTGRES_DSN"),
		LogLevel:             envDefault("LOG_LEVEL", "info"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              envIntDefault("REDIS_DB", 0),
		EngineBaseURL:        os.Getenv("ENGINE_BASE_URL"),
		EngineToken:          os.Getenv("ENGINE_TOKEN"),
		EngineTimeoutSeconds: envIntDefault("ENGINE_TIMEOUT_SECONDS", 5),
		ArtifactRegion:       os.Getenv("ARTIFACT_REGION"),
		ArtifactCheckEnabled: envBoolDefault("ARTIFACT_CHECK_ENABLED", false),
		ArtifactSchemes:      envListDefault("ARTIFACT_SCHEMES", []string{"s3"}),
		ArtifactSources:      envListDefault("ARTIFACT_SOURCES", nil),
		ArtifactContentTypes: envListDefault("ARTIFACT_CONTENT_TYPES", []string{"application/zip", "application/gzip", "application/octet-stream"}),
		MaxArtifactBytes:     envInt64Default("MAX_ARTIFACT_BYTES", 2<<30),
		IdempotencyTTLHours:  envIntDefault("IDEMPOTENCY_TTL_HOURS", 24),
		ReadRateLimit:        envIntDefault("READ_RATE_LIMIT", 120),
		MutateRateLimit:      envIntDefault("MUTATE_RATE_LIMIT", 30),
		AllowPromotionJumps:  envBoolDefault("ALLOW_PROMOTION_JUMPS", false),
	}
}

func (c Config) EngineTimeout() time.Duration {
	if c.EngineTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.EngineTimeoutSeconds) * time.Second
}

func (c Config) IdempotencyTTL() time.Duration {
	if c.IdempotencyTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.IdempotencyTTLHours) * time.Hour
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envInt64Default(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}

func envListDefault(key string, def []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
