// Package config handles environment-variable-driven daemon configuration.
// Grounded on the teacher's internal/config/env.go: LookupEnv-with-default
// helpers, an accumulated []string of validation errors, one combined
// error returned at the end.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// EnvConfig holds every environment-variable-driven setting (not
// hot-updatable; compare to the engine's own Config Properties, which
// are).
type EnvConfig struct {
	// Directories
	CacheDir string
	StateDir string

	// IPC — meaningful to internal/ipc's transport only.
	BusAddress string

	// GeoIP network-positioning provider
	GeoIPUpdateSchedule string
	GeoIPDBFilename     string

	// Engine
	UpdateSelectionCutoff time.Duration

	// Permission manager
	PermissionAgentTimeout time.Duration

	// Harvester
	HarvesterReportTimeout  time.Duration
	HarvesterHealthSchedule string

	// Testing bypass (spec.md §6)
	IsRunningUnderTesting bool
}

// LoadEnvConfig reads environment variables and returns a validated
// EnvConfig.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	// --- Directories / IPC ---
	cfg.CacheDir = envStr("LOCATIOND_CACHE_DIR", "/var/cache/locationd")
	cfg.StateDir = envStr("LOCATIOND_STATE_DIR", "/var/lib/locationd")
	cfg.BusAddress = envStr("LOCATIOND_BUS_ADDRESS", "unix:path=/run/locationd/bus")

	// --- GeoIP ---
	cfg.GeoIPUpdateSchedule = envStr("LOCATIOND_GEOIP_UPDATE_SCHEDULE", "0 7 * * *")
	cfg.GeoIPDBFilename = envStr("LOCATIOND_GEOIP_DB_FILENAME", "city.mmdb")

	// --- Engine / permission / harvester ---
	cfg.UpdateSelectionCutoff = envDuration("LOCATIOND_UPDATE_SELECTION_CUTOFF", 2*time.Minute, &errs)
	cfg.PermissionAgentTimeout = envDuration("LOCATIOND_PERMISSION_AGENT_TIMEOUT", time.Second, &errs)
	cfg.HarvesterReportTimeout = envDuration("LOCATIOND_HARVESTER_REPORT_TIMEOUT", 5*time.Second, &errs)
	cfg.HarvesterHealthSchedule = envStr("LOCATIOND_HARVESTER_HEALTH_SCHEDULE", "*/5 * * * *")

	cfg.IsRunningUnderTesting = envStr("LOCATIOND_IS_RUNNING_UNDER_TESTING", "") == "1"

	// --- Validation ---
	if cfg.CacheDir == "" {
		errs = append(errs, "LOCATIOND_CACHE_DIR must not be empty")
	}
	if cfg.StateDir == "" {
		errs = append(errs, "LOCATIOND_STATE_DIR must not be empty")
	}
	if _, err := cron.ParseStandard(cfg.GeoIPUpdateSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("LOCATIOND_GEOIP_UPDATE_SCHEDULE: invalid cron expression %q: %v", cfg.GeoIPUpdateSchedule, err))
	}
	if _, err := cron.ParseStandard(cfg.HarvesterHealthSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("LOCATIOND_HARVESTER_HEALTH_SCHEDULE: invalid cron expression %q: %v", cfg.HarvesterHealthSchedule, err))
	}
	if cfg.UpdateSelectionCutoff <= 0 {
		errs = append(errs, "LOCATIOND_UPDATE_SELECTION_CUTOFF must be positive")
	}
	if cfg.PermissionAgentTimeout <= 0 {
		errs = append(errs, "LOCATIOND_PERMISSION_AGENT_TIMEOUT must be positive")
	}
	if cfg.HarvesterReportTimeout <= 0 {
		errs = append(errs, "LOCATIOND_HARVESTER_REPORT_TIMEOUT must be positive")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return cfg, nil
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}
