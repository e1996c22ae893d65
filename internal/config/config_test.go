package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.LogLevel != DefaultServerLogLevel {
		t.Errorf("Expected default log level %s, got %s", DefaultServerLogLevel, cfg.Server.LogLevel)
	}
	if cfg.Models.Default != DefaultModelDefault {
		t.Errorf("Expected default model %s, got %s", DefaultModelDefault, cfg.Models.Default)
	}
	if cfg.Security.MaxConsumerQuantity != DefaultSecurityMaxConsumerQuantity {
		t.Errorf("Expected consumer quantity ceiling %d, got %d", DefaultSecurityMaxConsumerQuantity, cfg.Security.MaxConsumerQuantity)
	}
	if cfg.Security.MaxBusinessQuantity != DefaultSecurityMaxBusinessQuantity {
		t.Errorf("Expected business quantity ceiling %d, got %d", DefaultSecurityMaxBusinessQuantity, cfg.Security.MaxBusinessQuantity)
	}
	if cfg.Security.EscalationThreshold != DefaultSecurityEscalationThreshold {
		t.Errorf("Expected escalation threshold %d, got %d", DefaultSecurityEscalationThreshold, cfg.Security.EscalationThreshold)
	}
	if cfg.Recovery.BreakerThreshold != DefaultRecoveryBreakerThreshold {
		t.Errorf("Expected breaker threshold %d, got %d", DefaultRecoveryBreakerThreshold, cfg.Recovery.BreakerThreshold)
	}
	if cfg.Recovery.BreakerKeying != DefaultRecoveryBreakerKeying {
		t.Errorf("Expected breaker keying %s, got %s", DefaultRecoveryBreakerKeying, cfg.Recovery.BreakerKeying)
	}
	if cfg.Graph.MaxMessagesPerTurn != DefaultGraphMaxMessagesPerTurn {
		t.Errorf("Expected message ceiling %d, got %d", DefaultGraphMaxMessagesPerTurn, cfg.Graph.MaxMessagesPerTurn)
	}
	if cfg.Graph.ComparisonCapacity != DefaultGraphComparisonCapacity {
		t.Errorf("Expected comparison capacity %d, got %d", DefaultGraphComparisonCapacity, cfg.Graph.ComparisonCapacity)
	}
	if cfg.Checkpoint.Enabled {
		t.Error("Expected checkpointing disabled by default")
	}
}

func TestLoadConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".akindo")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}

	content := []byte("security:\n  max_consumer_quantity: 50\ngraph:\n  max_messages_per_turn: 6\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Security.MaxConsumerQuantity != 50 {
		t.Errorf("Expected overridden consumer quantity 50, got %d", cfg.Security.MaxConsumerQuantity)
	}
	if cfg.Graph.MaxMessagesPerTurn != 6 {
		t.Errorf("Expected overridden message ceiling 6, got %d", cfg.Graph.MaxMessagesPerTurn)
	}
	// Untouched keys keep their defaults.
	if cfg.Security.MaxBusinessQuantity != DefaultSecurityMaxBusinessQuantity {
		t.Errorf("Expected business ceiling default, got %d", cfg.Security.MaxBusinessQuantity)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("AKINDO_MODELS_DEFAULT", "gpt-4o")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Models.Default != "gpt-4o" {
		t.Errorf("Expected env override gpt-4o, got %s", cfg.Models.Default)
	}
}

func TestDurationOrDefault(t *testing.T) {
	d, err := DurationOrDefault("", "5s")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 5*time.Second {
		t.Errorf("Expected 5s, got %v", d)
	}

	d, err = DurationOrDefault("250ms", "5s")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %v", d)
	}

	if _, err = DurationOrDefault("nonsense", "5s"); err == nil {
		t.Error("Expected parse error")
	}
}
