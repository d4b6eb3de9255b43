package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Validation.Disabled {
		t.Errorf("Expected validation enabled by default")
	}
	if cfg.Validation.SpectralWidthTolerance != 1e-4 {
		t.Errorf("Expected tolerance 1e-4, got %v", cfg.Validation.SpectralWidthTolerance)
	}
	if !cfg.Conjugate.OnCreate {
		t.Errorf("Expected conjugation on create by default")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Output.Directory != "." {
		t.Errorf("Expected default output directory, got %q", cfg.Output.Directory)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Validation.SpectralWidthTolerance = 0.01
	cfg.Output.Verbose = true

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got.Validation.SpectralWidthTolerance != 0.01 {
		t.Errorf("Expected tolerance 0.01, got %v", got.Validation.SpectralWidthTolerance)
	}
	if !got.Output.Verbose {
		t.Errorf("Expected verbose output to survive the round trip")
	}
}
