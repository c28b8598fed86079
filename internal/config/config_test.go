package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.AccessTokenTTL() != 7*24*time.Hour {
		t.Fatalf("expected 7 day token lifetime, got %s", cfg.Auth.AccessTokenTTL())
	}
	if cfg.Store.ConnectRetryDelay() != 5*time.Second {
		t.Fatalf("expected 5s retry delay, got %s", cfg.Store.ConnectRetryDelay())
	}
	if cfg.AI.Classifier != "keyword" {
		t.Fatalf("expected keyword classifier by default, got %q", cfg.AI.Classifier)
	}
	if len(cfg.Kafka.Brokers) != 0 {
		t.Fatalf("expected no kafka brokers, got %v", cfg.Kafka.Brokers)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown store driver")
	}
}

func TestLoadRequiresSecretInProduction(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for default secret in production")
	}
}

func TestGetEnvAsList(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")
	got := getEnvAsList("KAFKA_BROKERS")
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Fatalf("unexpected brokers %v", got)
	}
}
