package config

import (
	"os"
	"testing"
	"time"
)

func clearLocationdEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"LOCATIOND_CACHE_DIR",
		"LOCATIOND_STATE_DIR",
		"LOCATIOND_BUS_ADDRESS",
		"LOCATIOND_GEOIP_UPDATE_SCHEDULE",
		"LOCATIOND_GEOIP_DB_FILENAME",
		"LOCATIOND_UPDATE_SELECTION_CUTOFF",
		"LOCATIOND_PERMISSION_AGENT_TIMEOUT",
		"LOCATIOND_HARVESTER_REPORT_TIMEOUT",
		"LOCATIOND_HARVESTER_HEALTH_SCHEDULE",
		"LOCATIOND_IS_RUNNING_UNDER_TESTING",
	}
	for _, k := range keys {
		os.Unsetenv(k)
	}
	t.Cleanup(func() {
		for _, k := range keys {
			os.Unsetenv(k)
		}
	})
}

func TestLoadEnvConfig_Defaults(t *testing.T) {
	clearLocationdEnv(t)

	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("LoadEnvConfig: %v", err)
	}
	if cfg.CacheDir != "/var/cache/locationd" {
		t.Errorf("unexpected CacheDir default: %q", cfg.CacheDir)
	}
	if cfg.GeoIPUpdateSchedule != "0 7 * * *" {
		t.Errorf("unexpected GeoIPUpdateSchedule default: %q", cfg.GeoIPUpdateSchedule)
	}
	if cfg.UpdateSelectionCutoff != 2*time.Minute {
		t.Errorf("unexpected UpdateSelectionCutoff default: %v", cfg.UpdateSelectionCutoff)
	}
	if cfg.IsRunningUnderTesting {
		t.Error("expected IsRunningUnderTesting false by default")
	}
}

func TestLoadEnvConfig_OverridesApplied(t *testing.T) {
	clearLocationdEnv(t)

	os.Setenv("LOCATIOND_CACHE_DIR", "/tmp/cache")
	os.Setenv("LOCATIOND_UPDATE_SELECTION_CUTOFF", "30s")
	os.Setenv("LOCATIOND_IS_RUNNING_UNDER_TESTING", "1")

	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("LoadEnvConfig: %v", err)
	}
	if cfg.CacheDir != "/tmp/cache" {
		t.Errorf("expected overridden CacheDir, got %q", cfg.CacheDir)
	}
	if cfg.UpdateSelectionCutoff != 30*time.Second {
		t.Errorf("expected overridden UpdateSelectionCutoff, got %v", cfg.UpdateSelectionCutoff)
	}
	if !cfg.IsRunningUnderTesting {
		t.Error("expected IsRunningUnderTesting true")
	}
}

func TestLoadEnvConfig_RejectsInvalidCronSchedule(t *testing.T) {
	clearLocationdEnv(t)
	os.Setenv("LOCATIOND_GEOIP_UPDATE_SCHEDULE", "not a cron expression")

	if _, err := LoadEnvConfig(); err == nil {
		t.Fatal("expected an error for an invalid GeoIP update schedule")
	}
}

func TestLoadEnvConfig_RejectsInvalidDuration(t *testing.T) {
	clearLocationdEnv(t)
	os.Setenv("LOCATIOND_UPDATE_SELECTION_CUTOFF", "not-a-duration")

	if _, err := LoadEnvConfig(); err == nil {
		t.Fatal("expected an error for an invalid duration")
	}
}

func TestLoadEnvConfig_RejectsNonPositiveDuration(t *testing.T) {
	clearLocationdEnv(t)
	os.Setenv("LOCATIOND_PERMISSION_AGENT_TIMEOUT", "0s")

	if _, err := LoadEnvConfig(); err == nil {
		t.Fatal("expected an error for a non-positive duration")
	}
}

func TestLoadEnvConfig_RejectsEmptyCacheDir(t *testing.T) {
	clearLocationdEnv(t)
	os.Setenv("LOCATIOND_CACHE_DIR", "")

	if _, err := LoadEnvConfig(); err == nil {
		t.Fatal("expected an error for an empty cache dir")
	}
}
