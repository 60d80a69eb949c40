package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentsim.yaml")
	content := `
scenario: infection
seed: 7
max_steps: 500
delay: 250ms
properties:
  infection_rate: 0.4
logging:
  level: debug
api:
  enabled: true
  port: 9090
  admin_key: ${TEST_AGENTSIM_KEY}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TEST_AGENTSIM_KEY", "sekrit")

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Scenario != "infection" || cfg.Seed != 7 || cfg.MaxSteps != 500 {
		t.Errorf("core fields = %+v", cfg)
	}
	if cfg.Delay != 250*time.Millisecond {
		t.Errorf("delay = %v", cfg.Delay)
	}
	if cfg.Properties["infection_rate"] != 0.4 {
		t.Errorf("properties = %v", cfg.Properties)
	}
	if cfg.API.AdminKey != "sekrit" || cfg.API.Port != 9090 {
		t.Errorf("api = %+v", cfg.API)
	}
	// Unset keys keep their defaults.
	if cfg.Journal.FlushEvery != 100 || cfg.API.RatePerMinute != 120 {
		t.Errorf("defaults lost: %+v %+v", cfg.Journal, cfg.API)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AGENTSIM_SCENARIO", "life")
	t.Setenv("AGENTSIM_SEED", "99")
	t.Setenv("AGENTSIM_DELAY", "1s")
	t.Setenv("AGENTSIM_API_ENABLED", "1")
	t.Setenv("AGENTSIM_JOURNAL", "/tmp/j.db")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing explicit file")
	}

	cfg, err = Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Scenario != "life" || cfg.Seed != 99 || cfg.Delay != time.Second || !cfg.API.Enabled || cfg.Journal.Path != "/tmp/j.db" {
		t.Errorf("cfg = %+v", cfg)
	}

	t.Setenv("AGENTSIM_SEED", "nope")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "AGENTSIM_SEED") {
		t.Errorf("bad seed error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty scenario", func(c *Config) { c.Scenario = "" }},
		{"negative delay", func(c *Config) { c.Delay = -time.Second }},
		{"bad port", func(c *Config) { c.API.Enabled = true; c.API.Port = 0 }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestAdminKeyRedacted(t *testing.T) {
	c := APIConfig{AdminKey: "sekrit"}
	if strings.Contains(c.String(), "sekrit") {
		t.Error("admin key leaked by String")
	}
}
