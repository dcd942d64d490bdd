package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/talgya/civil-violence/internal/engine"
	"github.com/talgya/civil-violence/internal/social"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "civilsim.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Model.Width != 40 || cfg.Model.GraphType != social.TopologyRandom {
		t.Errorf("unexpected defaults: %+v", cfg.Model)
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("TEST_CIVILSIM_KEY", "s3cret")
	path := writeConfig(t, `
model:
  width: 20
  height: 15
  graph_type: WATTS_STROGATZ
  p_ws: 0.25
  seed: 99
  tackle_inf: true
logging:
  level: debug
store:
  path: runs.db
api:
  admin_key: ${TEST_CIVILSIM_KEY}
`)
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	m := cfg.Model
	if m.Width != 20 || m.Height != 15 {
		t.Errorf("dims = %dx%d, want 20x15", m.Width, m.Height)
	}
	if m.GraphType != social.TopologySmallWorld || m.PWS != 0.25 || !m.TackleInf {
		t.Errorf("network settings = %v p_ws=%v tackle=%v", m.GraphType, m.PWS, m.TackleInf)
	}
	if m.Seed == nil || *m.Seed != 99 {
		t.Errorf("seed = %v, want 99", m.Seed)
	}
	// Omitted keys keep their defaults.
	if m.K != engine.DefaultParams().K || m.MaxJailTerm != 30 {
		t.Errorf("defaults lost: k=%v max_jail_term=%d", m.K, m.MaxJailTerm)
	}
	if cfg.Logging.Level != "debug" || cfg.Store.Path != "runs.db" {
		t.Errorf("ambient settings = %+v %+v", cfg.Logging, cfg.Store)
	}
	if cfg.API.AdminKey != "s3cret" {
		t.Errorf("admin key not expanded: %q", cfg.API.AdminKey)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("port = %d, want default 8080", cfg.API.Port)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	path := writeConfig(t, "model:\n  graph_type: HYPERCUBE\n")
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for unknown graph type")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CIVILSIM_SEED", "7")
	t.Setenv("CIVILSIM_MAX_ITER", "250")
	t.Setenv("CIVILSIM_LOG_LEVEL", "warn")
	t.Setenv("CIVILSIM_DB", "/tmp/x.db")
	t.Setenv("CIVILSIM_ADMIN_KEY", "k")
	t.Setenv("CIVILSIM_PORT", "9000")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.Seed == nil || *cfg.Model.Seed != 7 || cfg.Model.MaxIter != 250 {
		t.Errorf("model overrides = seed %v, max_iter %d", cfg.Model.Seed, cfg.Model.MaxIter)
	}
	if cfg.Logging.Level != "warn" || cfg.Store.Path != "/tmp/x.db" {
		t.Errorf("ambient overrides = %+v %+v", cfg.Logging, cfg.Store)
	}
	if cfg.API.AdminKey != "k" || cfg.API.Port != 9000 {
		t.Errorf("api overrides = %v", cfg.API)
	}
}

func TestEnvOverrideMalformed(t *testing.T) {
	t.Setenv("CIVILSIM_SEED", "abc")
	if _, err := Load(""); err == nil {
		t.Error("expected error for malformed CIVILSIM_SEED")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"density budget", func(c *Config) { c.Model.CopDensity = 0.5 }},
		{"zero width", func(c *Config) { c.Model.Width = 0 }},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"port", func(c *Config) { c.API.Port = 70000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}

	cfg := Default()
	cfg.Model.Width = -1
	if err := cfg.Validate(); !errors.Is(err, engine.ErrInvalidParams) {
		t.Errorf("model errors should keep ErrInvalidParams in the chain: %v", err)
	}
}

func TestAPIConfigStringRedactsKey(t *testing.T) {
	s := APIConfig{Port: 1, AdminKey: "hunter2"}.String()
	if s != "APIConfig{Port:1, AdminKey:(set)}" {
		t.Errorf("String() = %q", s)
	}
}

func TestStewardSection(t *testing.T) {
	t.Setenv("CIVILSIM_API_URL", "http://sim:9000")
	path := writeConfig(t, `
steward:
  interval: 30s
  threshold: 40
  action: remove_influencer
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	st := cfg.Steward
	if st.Interval != 30*time.Second || st.Threshold != 40 || st.Action != "remove_influencer" {
		t.Errorf("steward = %+v", st)
	}
	if st.Cooldown != 20 {
		t.Errorf("cooldown = %d, want default 20", st.Cooldown)
	}
	if st.URL != "http://sim:9000" {
		t.Errorf("url = %q, want env override", st.URL)
	}

	cfg.Steward.Interval = 0
	if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
		t.Errorf("zero interval: Validate() = %v", err)
	}
}
