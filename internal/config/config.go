// Package config loads runtime configuration from the environment, with a
// .env file picked up when present.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port                    string
	AllowedOrigins          string
	DatabaseURL             string
	RedisAddr               string
	RedisPassword           string
	RedisDB                 int
	OpenAIAPIKey            string
	LogLevel                string
	// OverpayTolerance is the amount by which the sum of deposits may
	// overshoot an order total before a payment is rejected.
	OverpayTolerance        decimal.Decimal
	CacheTTLSeconds         int
	ReconcileLockTTLSeconds int
}

func Load() Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	cacheTTL, err := strconv.Atoi(getEnv("CACHE_TTL_SECONDS", "30"))
	if err != nil || cacheTTL < 1 {
		cacheTTL = 30
	}
	lockTTL, err := strconv.Atoi(getEnv("RECONCILE_LOCK_TTL_SECONDS", "120"))
	if err != nil || lockTTL < 1 {
		lockTTL = 120
	}
	tolerance, err := decimal.NewFromString(getEnv("OVERPAY_TOLERANCE", "0.01"))
	if err != nil || tolerance.IsNegative() {
		tolerance = decimal.NewFromFloat(0.01)
	}

	return Config{
		Port:                    getEnv("SERVER_PORT", "8080"),
		AllowedOrigins:          getEnv("ALLOWED_ORIGINS", "*"),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		RedisAddr:               os.Getenv("REDIS_ADDR"),
		RedisPassword:           os.Getenv("REDIS_PASSWORD"),
		RedisDB:                 redisDB,
		OpenAIAPIKey:            os.Getenv("OPENAI_API_KEY"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		OverpayTolerance:        tolerance,
		CacheTTLSeconds:         cacheTTL,
		ReconcileLockTTLSeconds: lockTTL,
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
