package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Model != "fedbatch" {
		t.Errorf("expected model fedbatch, got %s", cfg.Model)
	}
	if cfg.Duration <= 0 {
		t.Error("duration should be positive")
	}
	if cfg.NCP != 500 {
		t.Errorf("expected 500 output intervals, got %d", cfg.NCP)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no model", func(c *Config) { c.Model = "" }},
		{"bad integrator", func(c *Config) { c.Integrator = "verlet" }},
		{"zero duration", func(c *Config) { c.Duration = 0 }},
		{"zero ncp", func(c *Config) { c.NCP = 0 }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"no data dir", func(c *Config) { c.DataDir = "" }},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestLoadSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")

	cfg := DefaultConfig()
	cfg.Duration = 12
	cfg.Layout = "Focus DO-control"
	cfg.Parameters = map[string]any{"K": 15.5}
	cfg.Init = map[string]any{"V_start": 5.5}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Duration != 12 {
		t.Errorf("expected duration 12, got %f", got.Duration)
	}
	if got.Layout != "Focus DO-control" {
		t.Errorf("expected layout Focus DO-control, got %s", got.Layout)
	}
	if got.Parameters["K"] != 15.5 {
		t.Errorf("expected K 15.5, got %v", got.Parameters["K"])
	}
	if got.Init["V_start"] != 5.5 {
		t.Errorf("expected V_start 5.5, got %v", got.Init["V_start"])
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	if err := os.WriteFile(path, []byte("duration: 3\nparameters:\n  K: 12\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model != DefaultModel || cfg.NCP != DefaultNCP {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if cfg.Parameters["K"] != 12 {
		t.Errorf("expected K 12, got %v", cfg.Parameters["K"])
	}
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("duration: -1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for negative duration")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMerge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Merge(&Config{Parameters: map[string]any{"K": 1.0}, Init: map[string]any{"V_start": 2.0}})
	cfg.Merge(&Config{Parameters: map[string]any{"Ti": 3.0}})
	cfg.Merge(nil)

	if len(cfg.Parameters) != 2 || cfg.Parameters["Ti"] != 3.0 {
		t.Errorf("unexpected parameters %v", cfg.Parameters)
	}
	if cfg.Init["V_start"] != 2.0 {
		t.Errorf("unexpected init %v", cfg.Init)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("fedbatch", "do-control")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Layout != "Focus DO-control" {
		t.Errorf("expected Focus DO-control layout, got %s", cfg.Layout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("preset invalid: %v", err)
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("fedbatch", "nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
	if cfg := GetPreset("nonexistent", "default"); cfg != nil {
		t.Error("expected nil for nonexistent model")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets("fedbatch")
	want := []string{"batch", "default", "do-control", "high-feed"}
	if len(presets) != len(want) {
		t.Fatalf("expected %v, got %v", want, presets)
	}
	for i := range want {
		if presets[i] != want[i] {
			t.Errorf("expected %v, got %v", want, presets)
		}
	}

	if presets := ListPresets("nonexistent"); presets != nil {
		t.Error("expected nil for nonexistent model")
	}
}
