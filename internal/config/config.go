package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr       string
	CORSOrigin string

	// Data service. An absent or invalid token surfaces as a transport
	// failure on first use, not at startup.
	FaunaURL   string
	FaunaToken string

	// Sessions. Empty RedisURL selects the in-memory store.
	RedisURL   string
	SessionTTL time.Duration

	// Upper bound for one round trip to the data service.
	GatewayTimeout time.Duration
}

func Load() Config {
	return Config{
		Addr:           getenv("API_ADDR", ":8080"),
		CORSOrigin:     getenv("TODO_CORS_ORIGIN", "*"),
		FaunaURL:       getenv("FAUNA_GRAPHQL_URL", ""),
		FaunaToken:     getenv("FAUNA_TOKEN", ""),
		RedisURL:       getenv("REDIS_URL", ""),
		SessionTTL:     time.Duration(getenvInt("TODO_SESSION_TTL_SECONDS", 86400)) * time.Second,
		GatewayTimeout: time.Duration(getenvInt("TODO_GATEWAY_TIMEOUT_SECONDS", 10)) * time.Second,
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
