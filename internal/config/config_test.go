package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ALLOWED_ORIGIN", "")
	t.Setenv("LOW_STOCK_TTL_SECONDS", "")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
	if cfg.LowStockTTL() != time.Minute {
		t.Fatalf("expected default low stock TTL of 1m, got %s", cfg.LowStockTTL())
	}
}

func TestLoadRejectsInvalidTTL(t *testing.T) {
	t.Setenv("LOW_STOCK_TTL_SECONDS", "-5")

	cfg := Load()
	if cfg.LowStockTTLSeconds != 60 {
		t.Fatalf("expected fallback TTL 60, got %d", cfg.LowStockTTLSeconds)
	}
}
