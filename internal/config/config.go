package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	DriverMySQL  = "mysql"
	DriverMongo  = "mongo"
	DriverMemory = "memory"

	defaultJWTSecret = "default-secret-key-change-in-production"
)

type Config struct {
	Port        string
	StoreDriver string
	DBUrl       string
	MongoURI    string
	MongoDB     string
	JWTSecret   string
	LogLevel    string
	LogPretty   bool
	RateLimit   float64
	RateBurst   int
	SeedFile    string
	CORSOrigins []string
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, using environment and defaults")
	}

	return Config{
		Port:        getEnv("PORT", "8080"),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", DriverMySQL)),
		DBUrl:       os.Getenv("DB_URL"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:     getEnv("MONGO_DB", "green_rewards"),
		JWTSecret:   getEnv("JWT_SECRET", defaultJWTSecret),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogPretty:   getBool("LOG_PRETTY", true),
		RateLimit:   getFloat("RATE_LIMIT_RPS", 10),
		RateBurst:   getInt("RATE_LIMIT_BURST", 20),
		SeedFile:    os.Getenv("SEED_FILE"),
		CORSOrigins: getList("CORS_ORIGINS", []string{"*"}),
	}
}

// UsesDefaultSecret reports whether JWT_SECRET was left unset.
func (c Config) UsesDefaultSecret() bool {
	return c.JWTSecret == defaultJWTSecret
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && f > 0 {
		return f
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
