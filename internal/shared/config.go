package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Config carries infrastructure wiring read from the environment.
// Panel-managed sync settings live in Settings (settings.yaml).
type Config struct {
	AppEnv       string
	HTTPAddr     string
	MetricsAddr  string
	MySQLDSN     string
	RedisAddr    string
	RedisDB      int
	RedisPass    string
	MinioAddr    string
	MinioAccess  string
	MinioSecret  string
	MinioBucket  string
	MinioSSL     bool
	SMTPAddr     string
	SMTPFrom     string
	SettingsPath string
	CacheTTL     time.Duration
	SyncTimeout  time.Duration
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:       env("APP_ENV", "prod"),
		HTTPAddr:     env("HTTP_ADDR", ":8080"),
		MetricsAddr:  env("METRICS_ADDR", ":9100"),
		MySQLDSN:     env("MYSQL_DSN", "root:root@tcp(localhost:3306)/place_reviews?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:    env("REDIS_ADDR", "localhost:6379"),
		RedisPass:    env("REDIS_PASSWORD", ""),
		RedisDB:      atoi("REDIS_DB", 0),
		MinioAddr:    env("MINIO_ADDR", "localhost:9000"),
		MinioAccess:  env("MINIO_ACCESS_KEY", ""),
		MinioSecret:  env("MINIO_SECRET_KEY", ""),
		MinioBucket:  env("MINIO_BUCKET", "review-avatars"),
		MinioSSL:     env("MINIO_USE_SSL", "") == "true",
		SMTPAddr:     env("SMTP_ADDR", "localhost:1025"),
		SMTPFrom:     env("SMTP_FROM", "noreply@place-reviews.local"),
		SettingsPath: env("SETTINGS_PATH", "settings.yaml"),
		CacheTTL:     time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
		SyncTimeout:  time.Duration(atoi("SYNC_TIMEOUT_SECONDS", 300)) * time.Second,
	}
	if c.MinioAccess == "" {
		log.Warn().Msg("MINIO_ACCESS_KEY is empty; avatar sideloading disabled")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
