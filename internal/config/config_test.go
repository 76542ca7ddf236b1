package config

import (
	"reflect"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "STORE_DRIVER", "DB_URL", "MONGO_URI", "MONGO_DB", "JWT_SECRET", "LOG_LEVEL",
		"LOG_PRETTY", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "SEED_FILE", "CORS_ORIGINS",
	} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()
	if cfg.Port != "8080" || cfg.StoreDriver != DriverMySQL || cfg.MongoDB != "green_rewards" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if !cfg.UsesDefaultSecret() {
		t.Fatal("UsesDefaultSecret() = false with JWT_SECRET unset")
	}
	if cfg.RateLimit != 10 || cfg.RateBurst != 20 {
		t.Fatalf("rate limit = %v/%d", cfg.RateLimit, cfg.RateBurst)
	}
	if !reflect.DeepEqual(cfg.CORSOrigins, []string{"*"}) {
		t.Fatalf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STORE_DRIVER", "Mongo")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("LOG_PRETTY", "false")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "not-a-number")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")

	cfg := LoadConfig()
	if cfg.Port != "9000" || cfg.StoreDriver != DriverMongo || cfg.LogPretty {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.UsesDefaultSecret() {
		t.Fatal("UsesDefaultSecret() = true with JWT_SECRET set")
	}
	if cfg.RateLimit != 2.5 || cfg.RateBurst != 20 {
		t.Fatalf("rate limit = %v/%d", cfg.RateLimit, cfg.RateBurst)
	}
	want := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(cfg.CORSOrigins, want) {
		t.Fatalf("CORSOrigins = %v, want %v", cfg.CORSOrigins, want)
	}
}
