package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port          string
	AllowOrigins  string
	JWTSecret     string
	TokenTTLHours int
	ReqTimeoutSec int
	DBMaxOpen     int
	DBMaxIdle     int
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func Load() *Config {
	return &Config{
		Port:          getenv("PORT", "8080"),
		AllowOrigins:  getenv("ALLOW_ORIGINS", "*"),
		JWTSecret:     getenv("JWT_SECRET", "dev-secret-change-me"),
		TokenTTLHours: atoi("TOKEN_TTL_HOURS", 72),
		ReqTimeoutSec: atoi("REQUEST_TIMEOUT_SECONDS", 30),
		DBMaxOpen:     atoi("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdle:     atoi("DB_MAX_IDLE_CONNS", 5),
	}
}
