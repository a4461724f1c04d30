package config

import (
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	MinCreationStake int64         `env:"GOVERNING_SPACE_TEST_MIN_CREATION_STAKE" envDefault:"1000"`
	UnbondingPeriod  time.Duration `env:"GOVERNING_SPACE_TEST_UNBONDING_PERIOD" envDefault:"168h"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.MinCreationStake != 1000 || cfg.UnbondingPeriod != 7*24*time.Hour {
		t.Fatalf("config = %+v", cfg)
	}
}

func TestParseEnvOverride(t *testing.T) {
	t.Setenv("GOVERNING_SPACE_TEST_MIN_CREATION_STAKE", "250")
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.MinCreationStake != 250 {
		t.Fatalf("min creation stake = %d, want 250", cfg.MinCreationStake)
	}
}

func TestParseEnvMapIgnoresProcessEnvironment(t *testing.T) {
	t.Setenv("GOVERNING_SPACE_TEST_MIN_CREATION_STAKE", "250")
	var cfg envTestConfig

	err := ParseEnvMap(&cfg, map[string]string{"GOVERNING_SPACE_TEST_UNBONDING_PERIOD": "1h"})
	if err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.MinCreationStake != 1000 || cfg.UnbondingPeriod != time.Hour {
		t.Fatalf("config = %+v", cfg)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig

	err := ParseEnvMap(&cfg, map[string]string{"GOVERNING_SPACE_TEST_MIN_CREATION_STAKE": "lots"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
