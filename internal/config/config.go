package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string
	DatabaseURL string // Empty in dev selects the in-memory store
	CORSOrigins string
	TablePrefix string
	// Auth
	JWTSecret string // HS256 shared secret
	JWKSURL   string // RS256/ES256 key set; takes precedence over JWTSecret
	// Blob storage
	BlobDir     string
	BlobBaseURL string
	// Resize worker
	ResizerURL       string // Empty selects the in-process resizer
	ResizeTimeout    time.Duration
	ThumbnailMode    string // "sync" or "async"
	ThumbnailWorkers int
	// Upload limits
	MaxUploadBytes int64
	MaxUploadFiles int
	// Logging
	LogDir      string
	LogMaxFiles int
	// Metrics
	MetricsEnabled bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	port := getEnv("PORT", "8080")

	return &Config{
		Port:             port,
		Environment:      env,
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		CORSOrigins:      getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix:      getTablePrefix(env),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWKSURL:          getEnv("JWKS_URL", ""),
		BlobDir:          getEnv("BLOB_DIR", "./data/blobs"),
		BlobBaseURL:      strings.TrimSuffix(getEnv("BLOB_BASE_URL", "http://localhost:"+port+"/blobs"), "/"),
		ResizerURL:       getEnv("RESIZER_URL", ""),
		ResizeTimeout:    getDuration("RESIZE_TIMEOUT", DefaultResizeTimeout),
		ThumbnailMode:    getEnv("THUMBNAIL_MODE", ThumbnailModeSync),
		ThumbnailWorkers: getInt("THUMBNAIL_WORKERS", 4),
		MaxUploadBytes:   int64(getInt("MAX_UPLOAD_BYTES", MaxUploadFileBytes)),
		MaxUploadFiles:   getInt("MAX_UPLOAD_FILES", MaxUploadBatchFiles),
		LogDir:           getEnv("LOG_DIR", ""),
		LogMaxFiles:      getInt("LOG_MAX_FILES", 10),
		MetricsEnabled:   getEnv("METRICS_ENABLED", "true") == "true",
	}
}

// Thumbnail modes
const (
	ThumbnailModeSync  = "sync"
	ThumbnailModeAsync = "async"
)

// UseMemoryStore reports whether the in-process metadata store should be used
func (c *Config) UseMemoryStore() bool {
	return c.DatabaseURL == "" && c.Environment != "prod"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

// getDuration accepts Go durations ("45s") or plain seconds ("45")
func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
