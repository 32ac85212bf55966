package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	config, err := LoadConfig("../config.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Simulation.Name != "killweb" {
		t.Errorf("Expected simulation name 'killweb', got '%s'", config.Simulation.Name)
	}

	if config.Simulation.Duration != 20*time.Minute {
		t.Errorf("Expected duration 20m, got %v", config.Simulation.Duration)
	}

	if len(config.C2Nodes) != 3 {
		t.Fatalf("Expected 3 C2 nodes, got %d", len(config.C2Nodes))
	}

	if config.C2Nodes[1].Superior != "brigade" {
		t.Errorf("Expected bn-west under brigade, got '%s'", config.C2Nodes[1].Superior)
	}

	if config.C2Nodes[0].AgeOut != 30*time.Second {
		t.Errorf("Expected age out 30s, got %v", config.C2Nodes[0].AgeOut)
	}

	if len(config.FireUnits) != 4 {
		t.Errorf("Expected 4 fire units, got %d", len(config.FireUnits))
	}

	ic, ok := config.Interceptor("SAM-A")
	if !ok {
		t.Fatal("Expected interceptor type SAM-A")
	}
	if ic.TerminalPeriod != 100*time.Millisecond {
		t.Errorf("Expected terminal period 100ms, got %v", ic.TerminalPeriod)
	}

	if len(config.Raid) != 6 {
		t.Fatalf("Expected 6 raid aircraft, got %d", len(config.Raid))
	}

	if config.Raid[5].Jammer == nil || config.Raid[5].Jammer.Power != 0.9 {
		t.Errorf("Expected escort-1 to carry a 0.9 power jammer")
	}

	if config.RaidPoints() != 70 {
		t.Errorf("Expected 70 raid points, got %d", config.RaidPoints())
	}

	if config.Jamming.Threshold != 0.6 {
		t.Errorf("Expected jamming threshold 0.6, got %f", config.Jamming.Threshold)
	}
}

func TestReferenceScenarioMatchesDefault(t *testing.T) {
	file, err := LoadConfig("../config.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	def := GetDefaultConfig()

	if len(file.C2Nodes) != len(def.C2Nodes) || len(file.FireUnits) != len(def.FireUnits) ||
		len(file.Radars) != len(def.Radars) || len(file.Raid) != len(def.Raid) {
		t.Fatal("Reference scenario and default config have different entity counts")
	}
	for i := range def.FireUnits {
		if file.FireUnits[i].Name != def.FireUnits[i].Name || file.FireUnits[i].Tracker != def.FireUnits[i].Tracker {
			t.Errorf("Fire unit %d differs: %s vs %s", i, file.FireUnits[i].Name, def.FireUnits[i].Name)
		}
	}
	for i := range def.Raid {
		if file.Raid[i].Name != def.Raid[i].Name || file.Raid[i].Points != def.Raid[i].Points {
			t.Errorf("Aircraft %d differs: %s vs %s", i, file.Raid[i].Name, def.Raid[i].Name)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	config := GetDefaultConfig()

	if err := config.Validate(); err != nil {
		t.Fatalf("Default config validation failed: %v", err)
	}

	if config.Simulation.Name != "killweb" {
		t.Errorf("Expected default simulation name 'killweb', got '%s'", config.Simulation.Name)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *SimulationConfig)
		hasErr bool
	}{
		{"valid config", func(c *SimulationConfig) {}, false},
		{"empty name", func(c *SimulationConfig) { c.Simulation.Name = "" }, true},
		{"zero duration", func(c *SimulationConfig) { c.Simulation.Duration = 0 }, true},
		{"no c2 nodes", func(c *SimulationConfig) { c.C2Nodes = nil }, true},
		{"empty raid", func(c *SimulationConfig) { c.Raid = nil }, true},
		{"zero capacity", func(c *SimulationConfig) { c.C2Nodes[0].TargetCapacity = 0 }, true},
		{"unknown superior", func(c *SimulationConfig) { c.C2Nodes[1].Superior = "corps" }, true},
		{"command loop", func(c *SimulationConfig) { c.C2Nodes[0].Superior = "bn-west" }, true},
		{"self superior", func(c *SimulationConfig) { c.C2Nodes[0].Superior = "brigade" }, true},
		{"min delay above mean", func(c *SimulationConfig) { c.C2Nodes[0].MinReportDelay = 10 * time.Second }, true},
		{"duplicate name", func(c *SimulationConfig) { c.Radars[0].Name = "fu-w1" }, true},
		{"unknown c2", func(c *SimulationConfig) { c.FireUnits[0].C2 = "nobody" }, true},
		{"unknown interceptor", func(c *SimulationConfig) { c.FireUnits[0].Interceptor = "SAM-Z" }, true},
		{"tracker not TT", func(c *SimulationConfig) { c.FireUnits[0].Tracker = "ew-1" }, true},
		{"no tracker", func(c *SimulationConfig) { c.FireUnits[0].Tracker = "" }, false},
		{"inverted range", func(c *SimulationConfig) { c.FireUnits[0].MinRangeNM = 40 }, true},
		{"zero channels", func(c *SimulationConfig) { c.FireUnits[0].Channels = 0 }, true},
		{"empty magazine", func(c *SimulationConfig) { c.FireUnits[0].Rounds = 0 }, false},
		{"slow terminal period", func(c *SimulationConfig) { c.Interceptors[0].TerminalPeriod = 2 * c.Interceptors[0].NominalPeriod }, true},
		{"equal guidance periods", func(c *SimulationConfig) { c.Interceptors[0].TerminalPeriod = c.Interceptors[0].NominalPeriod }, false},
		{"pk above one", func(c *SimulationConfig) { c.Interceptors[0].Pk = 1.5 }, true},
		{"unknown function", func(c *SimulationConfig) { c.Radars[0].Function = "FC" }, true},
		{"pd below zero", func(c *SimulationConfig) { c.Radars[0].Pd = -0.1 }, true},
		{"zero speed", func(c *SimulationConfig) { c.Raid[0].SpeedKts = 0 }, true},
		{"jammer power", func(c *SimulationConfig) { c.Raid[5].Jammer.Power = 2 }, true},
		{"zero threshold", func(c *SimulationConfig) { c.Jamming.Threshold = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := GetDefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.hasErr && err == nil {
				t.Errorf("Expected validation error for %s", tt.name)
			}
			if !tt.hasErr && err != nil {
				t.Errorf("Unexpected validation error for %s: %v", tt.name, err)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected error to wrap ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("simulation:\n  name: x\n  tick_rate: 5\n"))
	if err == nil {
		t.Fatal("Expected error for unknown field")
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "scenario.yaml")
	config := GetDefaultConfig()
	config.Simulation.Seed = 42

	if err := SaveConfig(config, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Expected file to exist: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to reload: %v", err)
	}
	if loaded.Simulation.Seed != 42 {
		t.Errorf("Expected seed 42, got %d", loaded.Simulation.Seed)
	}
	if loaded.C2Nodes[0].MeanReportDelay != 4*time.Second {
		t.Errorf("Expected mean report delay 4s, got %v", loaded.C2Nodes[0].MeanReportDelay)
	}
}

func TestSaveConfigRejectsInvalid(t *testing.T) {
	config := GetDefaultConfig()
	config.Simulation.Name = ""
	if err := SaveConfig(config, filepath.Join(t.TempDir(), "x.yaml")); err == nil {
		t.Error("Expected SaveConfig to reject an invalid config")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	config := GetDefaultConfig()

	t.Setenv("KILLWEB_DURATION", "5m")
	t.Setenv("KILLWEB_SEED", "7")
	t.Setenv("KILLWEB_JAMMING_THRESHOLD", "0.8")
	t.Setenv("KILLWEB_ROUNDS_PER_UNIT", "2")
	t.Setenv("KILLWEB_AAR_FORMAT", "JSON")
	t.Setenv("KILLWEB_ENABLE_METRICS", "true")
	t.Setenv("LOG_LEVEL", "DEBUG")

	MergeWithEnvironment(config)

	if config.Simulation.Duration != 5*time.Minute {
		t.Errorf("Expected duration 5m, got %v", config.Simulation.Duration)
	}
	if config.Simulation.Seed != 7 {
		t.Errorf("Expected seed 7, got %d", config.Simulation.Seed)
	}
	if config.Jamming.Threshold != 0.8 {
		t.Errorf("Expected jamming threshold 0.8, got %f", config.Jamming.Threshold)
	}
	for _, fu := range config.FireUnits {
		if fu.Rounds != 2 {
			t.Errorf("Expected %s to carry 2 rounds, got %d", fu.Name, fu.Rounds)
		}
	}
	if config.Logging.AARFormat != "json" {
		t.Errorf("Expected AAR format 'json', got '%s'", config.Logging.AARFormat)
	}
	if !config.Logging.EnableMetrics {
		t.Error("Expected metrics to be enabled")
	}
	if config.Logging.ConsoleLevel != "debug" {
		t.Errorf("Expected log level 'debug', got '%s'", config.Logging.ConsoleLevel)
	}
}

func TestEnvironmentOverridesIgnoreInvalid(t *testing.T) {
	config := GetDefaultConfig()

	t.Setenv("KILLWEB_DURATION", "soon")
	t.Setenv("KILLWEB_JAMMING_THRESHOLD", "3")
	t.Setenv("LOG_LEVEL", "chatty")

	MergeWithEnvironment(config)

	if config.Simulation.Duration != 20*time.Minute {
		t.Errorf("Expected duration to stay 20m, got %v", config.Simulation.Duration)
	}
	if config.Jamming.Threshold != 0.6 {
		t.Errorf("Expected threshold to stay 0.6, got %f", config.Jamming.Threshold)
	}
	if config.Logging.ConsoleLevel != "info" {
		t.Errorf("Expected log level to stay 'info', got '%s'", config.Logging.ConsoleLevel)
	}
}

func TestCLIOverrides(t *testing.T) {
	config := GetDefaultConfig()

	overrides := map[string]interface{}{
		"duration":          "90s",
		"seed":              99,
		"rounds_per_unit":   6,
		"interceptor_pk":    0.9,
		"raid_speed_kts":    550.0,
		"aar_format":        "json",
		"aar_detail":        "full",
		"enable_aar":        false,
		"log_level":         "warn",
		"jamming_threshold": 1.5, // out of range, ignored
	}

	MergeWithCLIOverrides(config, overrides)

	if config.Simulation.Duration != 90*time.Second {
		t.Errorf("Expected duration 90s, got %v", config.Simulation.Duration)
	}
	if config.Simulation.Seed != 99 {
		t.Errorf("Expected seed 99, got %d", config.Simulation.Seed)
	}
	if config.FireUnits[3].Rounds != 6 {
		t.Errorf("Expected 6 rounds, got %d", config.FireUnits[3].Rounds)
	}
	if config.Interceptors[0].Pk != 0.9 {
		t.Errorf("Expected pk 0.9, got %f", config.Interceptors[0].Pk)
	}
	if config.Raid[0].SpeedKts != 550 {
		t.Errorf("Expected raid speed 550, got %f", config.Raid[0].SpeedKts)
	}
	if config.Logging.AARFormat != "json" || config.Logging.AARDetail != "full" || config.Logging.EnableAAR {
		t.Errorf("Unexpected AAR settings: %+v", config.Logging)
	}
	if config.Logging.ConsoleLevel != "warn" {
		t.Errorf("Expected log level 'warn', got '%s'", config.Logging.ConsoleLevel)
	}
	if config.Jamming.Threshold != 0.6 {
		t.Errorf("Expected jamming threshold to stay 0.6, got %f", config.Jamming.Threshold)
	}
}

func TestLoadConfigWithOverridesFallsBackToDefault(t *testing.T) {
	t.Chdir(t.TempDir())

	config, err := LoadConfigWithOverrides("missing.yaml", map[string]interface{}{"seed": 3})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if config.Simulation.Seed != 3 {
		t.Errorf("Expected seed 3, got %d", config.Simulation.Seed)
	}
	if config.Simulation.Name != "killweb" {
		t.Errorf("Expected default scenario, got '%s'", config.Simulation.Name)
	}
}
