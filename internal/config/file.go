package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

func parseOptionalDuration(field, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: invalid duration %q: %w", field, raw, err)
	}
	return d, nil
}

// fileOverrides mirrors EnvConfig's dotted-key names as a nested YAML
// document. Every field is optional; a present value overrides the
// environment/default for that setting.
type fileOverrides struct {
	CacheDir string `yaml:"cache_dir"`
	StateDir string `yaml:"state_dir"`

	BusAddress string `yaml:"bus_address"`

	GeoIP struct {
		UpdateSchedule string `yaml:"update_schedule"`
		DBFilename     string `yaml:"db_filename"`
	} `yaml:"geoip"`

	Engine struct {
		UpdateSelectionCutoff string `yaml:"update_selection_cutoff"`
	} `yaml:"engine"`

	Permission struct {
		AgentTimeout string `yaml:"agent_timeout"`
	} `yaml:"permission"`

	Harvester struct {
		ReportTimeout  string `yaml:"report_timeout"`
		HealthSchedule string `yaml:"health_schedule"`
	} `yaml:"harvester"`
}

// LoadFileOverrides reads a dotted-key YAML config file at path and
// applies any present values onto cfg, in place. Duration values must
// parse; LoadEnvConfig's validation (non-empty directories, positive
// durations, valid cron schedules) is not run on the applied values.
// A missing path is not an error; locationd runs
// entirely off environment variables and defaults by default.
func LoadFileOverrides(path string, cfg *EnvConfig) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var f fileOverrides
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	if f.CacheDir != "" {
		cfg.CacheDir = f.CacheDir
	}
	if f.StateDir != "" {
		cfg.StateDir = f.StateDir
	}
	if f.BusAddress != "" {
		cfg.BusAddress = f.BusAddress
	}
	if f.GeoIP.UpdateSchedule != "" {
		cfg.GeoIPUpdateSchedule = f.GeoIP.UpdateSchedule
	}
	if f.GeoIP.DBFilename != "" {
		cfg.GeoIPDBFilename = f.GeoIP.DBFilename
	}
	if d, err := parseOptionalDuration("engine.update_selection_cutoff", f.Engine.UpdateSelectionCutoff); err != nil {
		return err
	} else if d != 0 {
		cfg.UpdateSelectionCutoff = d
	}
	if d, err := parseOptionalDuration("permission.agent_timeout", f.Permission.AgentTimeout); err != nil {
		return err
	} else if d != 0 {
		cfg.PermissionAgentTimeout = d
	}
	if d, err := parseOptionalDuration("harvester.report_timeout", f.Harvester.ReportTimeout); err != nil {
		return err
	} else if d != 0 {
		cfg.HarvesterReportTimeout = d
	}
	if f.Harvester.HealthSchedule != "" {
		cfg.HarvesterHealthSchedule = f.Harvester.HealthSchedule
	}

	return nil
}
