package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.DBHost != "localhost" || cfg.DBPort != 5432 {
		t.Errorf("DB defaults = %s:%d, want localhost:5432", cfg.DBHost, cfg.DBPort)
	}
	if cfg.LettaBaseURL != "http://localhost:8283" {
		t.Errorf("LettaBaseURL = %q, want http://localhost:8283", cfg.LettaBaseURL)
	}
	if cfg.PollInterval != 60*time.Second {
		t.Errorf("PollInterval = %v, want 60s", cfg.PollInterval)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("LETTA_BASE_URL", "https://letta.example.com")
	t.Setenv("LETTA_TIMEOUT", "10s")
	t.Setenv("POLL_INTERVAL", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.DBHost != "db.internal" {
		t.Errorf("DBHost = %q, want db.internal", cfg.DBHost)
	}
	if cfg.LettaBaseURL != "https://letta.example.com" {
		t.Errorf("LettaBaseURL = %q", cfg.LettaBaseURL)
	}
	if cfg.LettaTimeout != 10*time.Second {
		t.Errorf("LettaTimeout = %v, want 10s", cfg.LettaTimeout)
	}
	if cfg.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v, want 30s", cfg.PollInterval)
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	if _, err := Load(); err == nil {
		t.Error("expected error for invalid PORT")
	}
}

func TestLoad_InvalidPollInterval(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "soon")
	if _, err := Load(); err == nil {
		t.Error("expected error for unparsable POLL_INTERVAL")
	}

	t.Setenv("POLL_INTERVAL", "-5s")
	if _, err := Load(); err == nil {
		t.Error("expected error for negative POLL_INTERVAL")
	}
}
