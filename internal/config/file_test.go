package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileOverrides_MissingPathIsNotAnError(t *testing.T) {
	var cfg EnvConfig
	if err := LoadFileOverrides(filepath.Join(t.TempDir(), "absent.yaml"), &cfg); err != nil {
		t.Fatalf("expected no error for a missing file, got %v", err)
	}
}

func TestLoadFileOverrides_AppliesPresentFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locationd.yaml")
	contents := "" +
		"cache_dir: /override/cache\n" +
		"geoip:\n" +
		"  update_schedule: \"0 3 * * *\"\n" +
		"engine:\n" +
		"  update_selection_cutoff: 45s\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := EnvConfig{CacheDir: "/default/cache", GeoIPUpdateSchedule: "0 7 * * *", UpdateSelectionCutoff: 2 * time.Minute}
	if err := LoadFileOverrides(path, &cfg); err != nil {
		t.Fatalf("LoadFileOverrides: %v", err)
	}
	if cfg.CacheDir != "/override/cache" {
		t.Errorf("expected overridden CacheDir, got %q", cfg.CacheDir)
	}
	if cfg.GeoIPUpdateSchedule != "0 3 * * *" {
		t.Errorf("expected overridden GeoIPUpdateSchedule, got %q", cfg.GeoIPUpdateSchedule)
	}
	if cfg.UpdateSelectionCutoff != 45*time.Second {
		t.Errorf("expected overridden UpdateSelectionCutoff, got %v", cfg.UpdateSelectionCutoff)
	}
}

func TestLoadFileOverrides_RejectsInvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locationd.yaml")
	contents := "engine:\n  update_selection_cutoff: not-a-duration\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var cfg EnvConfig
	if err := LoadFileOverrides(path, &cfg); err == nil {
		t.Fatal("expected an error for an invalid duration override")
	}
}
