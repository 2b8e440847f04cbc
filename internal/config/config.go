package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port            int
	DBDSN           string
	BaseURL         string // used for returning absolute short URLs
	RedisAddr       string // empty: in-process cache
	DefaultTTL      time.Duration
	AllowedOrigins  []string
	CachePrewarm    int
	CreateRateRPS   float64
	CreateRateBurst int
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getfloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return def
}

func getdur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getlist(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func Load() Config {
	return Config{
		Port:            getint("PORT", 8080),
		DBDSN:           getenv("DB_DSN", "file:shortly.db"),
		BaseURL:         getenv("BASE_URL", "http://localhost:8080"),
		RedisAddr:       getenv("REDIS_ADDR", ""),
		DefaultTTL:      getdur("DEFAULT_TTL", 7*24*time.Hour),
		AllowedOrigins:  getlist("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		CachePrewarm:    getint("CACHE_PREWARM", 100),
		CreateRateRPS:   getfloat("CREATE_RATE_RPS", 2.0),
		CreateRateBurst: getint("CREATE_RATE_BURST", 5),
	}
}
