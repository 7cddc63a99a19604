package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Name:    "test",
		Version: 1,
		Steps: []StepConfig{
			{ID: "prepare", Type: StepPrepare},
			{ID: "extract", Type: StepExtract},
			{ID: "render", Type: StepTemplate},
			{ID: "validate", Type: StepValidate},
			{ID: "gate", Type: StepGate},
		},
	}
}

func TestConfigValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty name", func(c *Config) { c.Name = "" }},
		{"zero version", func(c *Config) { c.Version = 0 }},
		{"no steps", func(c *Config) { c.Steps = nil }},
		{"missing step id", func(c *Config) { c.Steps[0].ID = "" }},
		{"duplicate step id", func(c *Config) { c.Steps[1].ID = "prepare" }},
		{"unknown step type", func(c *Config) { c.Steps[2].Type = "transmogrify" }},
		{"extract before prepare", func(c *Config) {
			c.Steps[0], c.Steps[1] = c.Steps[1], c.Steps[0]
		}},
		{"validate without extract", func(c *Config) {
			c.Steps = []StepConfig{
				{ID: "prepare", Type: StepPrepare},
				{ID: "validate", Type: StepValidate},
			}
		}},
	}
	for _, tt := range tests {
		cfg := validConfig()
		tt.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: accepted", tt.name)
		}
	}
}

func TestLoaderEmbeddedDefault(t *testing.T) {
	loader := NewLoader("")

	for _, name := range []string{"", DefaultPipeline} {
		cfg, err := loader.Load(name)
		if err != nil {
			t.Fatalf("Load(%q): %v", name, err)
		}
		if cfg.Name != "standard" {
			t.Errorf("name = %q, want standard", cfg.Name)
		}
		if len(cfg.Steps) != 5 {
			t.Errorf("steps = %d, want 5", len(cfg.Steps))
		}
		if cfg.Steps[0].Type != StepPrepare {
			t.Errorf("first step type = %q, want prepare", cfg.Steps[0].Type)
		}
	}

	if _, err := loader.Load("nonexistent"); err == nil {
		t.Error("unknown pipeline accepted")
	}
}

func TestLoaderDirectoryOverride(t *testing.T) {
	dir := t.TempDir()
	custom := `name: custom
version: 1
steps:
  - id: prepare
    type: prepare
  - id: extract
    type: extract
`
	if err := os.WriteFile(filepath.Join(dir, "custom.yaml"), []byte(custom), 0o644); err != nil {
		t.Fatalf("writing pipeline file: %v", err)
	}

	loader := NewLoader(dir)
	cfg, err := loader.Load("custom")
	if err != nil {
		t.Fatalf("Load(custom): %v", err)
	}
	if cfg.Name != "custom" || len(cfg.Steps) != 2 {
		t.Errorf("cfg = %+v", cfg)
	}

	// The embedded standard pipeline still resolves when the directory has
	// no file for it.
	if _, err := loader.Load(DefaultPipeline); err != nil {
		t.Errorf("Load(standard) with dir: %v", err)
	}
}

func TestLoaderRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	broken := `name: broken
version: 1
steps:
  - id: extract
    type: extract
`
	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte(broken), 0o644); err != nil {
		t.Fatalf("writing pipeline file: %v", err)
	}

	if _, err := NewLoader(dir).Load("broken"); err == nil {
		t.Error("pipeline without prepare accepted")
	}
}

func TestBackoffBase(t *testing.T) {
	tests := []struct {
		backoff string
		want    time.Duration
	}{
		{"250ms", 250 * time.Millisecond},
		{"2s", 2 * time.Second},
		{"", 500 * time.Millisecond},
		{"bogus", 500 * time.Millisecond},
		{"-1s", 500 * time.Millisecond},
	}
	for _, tt := range tests {
		r := RetryConfig{Backoff: tt.backoff}
		if got := r.BackoffBase(); got != tt.want {
			t.Errorf("BackoffBase(%q) = %v, want %v", tt.backoff, got, tt.want)
		}
	}
}

func TestStepConfigHelpers(t *testing.T) {
	cfg := map[string]any{
		"keys":  []any{"scope", 42, "eligibility"},
		"label": "standard",
	}
	keys := stringSlice(cfg, "keys")
	if len(keys) != 2 || keys[0] != "scope" || keys[1] != "eligibility" {
		t.Errorf("stringSlice = %v", keys)
	}
	if got := stringVal(cfg, "label"); got != "standard" {
		t.Errorf("stringVal = %q", got)
	}
	if got := stringVal(cfg, "missing"); got != "" {
		t.Errorf("stringVal(missing) = %q", got)
	}
}
