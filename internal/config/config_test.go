package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("CONTEXT_TTL", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.ContextTTL != 24*time.Hour {
		t.Fatalf("expected default context TTL, got %s", cfg.ContextTTL)
	}
	if cfg.HistoryLimit != 20 {
		t.Fatalf("expected default history limit, got %d", cfg.HistoryLimit)
	}
	if cfg.WidgetRateLimit != 2 {
		t.Fatalf("expected default widget rate limit, got %f", cfg.WidgetRateLimit)
	}
	if cfg.CORSAllowedOrigins != nil {
		t.Fatalf("expected no CORS origins by default, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("USE_MEMORY_QUEUE", "true")
	t.Setenv("CONTEXT_TTL", "36h")
	t.Setenv("WIDGET_RATE_LIMIT", "5.5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected database url override, got %s", cfg.DatabaseURL)
	}
	if !cfg.UseMemoryQueue {
		t.Fatal("expected memory queue enabled")
	}
	if cfg.ContextTTL != 36*time.Hour {
		t.Fatalf("expected context TTL override, got %s", cfg.ContextTTL)
	}
	if cfg.WidgetRateLimit != 5.5 {
		t.Fatalf("expected widget rate limit override, got %f", cfg.WidgetRateLimit)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("expected trimmed CORS origins, got %v", cfg.CORSAllowedOrigins)
	}
}
