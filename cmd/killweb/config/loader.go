package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/picogrid/killweb-simulations/pkg/logger"
)

var (
	validLevels     = []string{"debug", "info", "warn", "error"}
	validSeverities = []string{"debug", "info", "warning", "error", "critical"}
	validAARFormats = []string{"json", "markdown"}
	validAARDetails = []string{"summary", "detailed", "full"}
)

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*SimulationConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("error loading %s: %w", path, err)
	}
	return config, nil
}

// Parse decodes and validates a YAML scenario
func Parse(data []byte) (*SimulationConfig, error) {
	var config SimulationConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadConfigOrDefault loads config from file or falls back to the default
// locations and finally the built-in scenario. Environment overrides are
// always applied.
func LoadConfigOrDefault(path string) (*SimulationConfig, error) {
	var config *SimulationConfig

	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			logger.Warnf("Could not load config from %s: %v", path, err)
		} else {
			config = loaded
		}
	}

	if config == nil {
		defaultPaths := []string{
			"config.yaml",
			"killweb.yaml",
			filepath.Join("cmd", "killweb", "config.yaml"),
		}
		for _, p := range defaultPaths {
			if _, err := os.Stat(p); err != nil {
				continue
			}
			if loaded, err := LoadConfig(p); err == nil {
				logger.Infof("Loaded config from: %s", p)
				config = loaded
				break
			}
		}
	}

	if config == nil {
		logger.Info("Using default configuration")
		config = GetDefaultConfig()
	}

	MergeWithEnvironment(config)
	return config, nil
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(config *SimulationConfig, path string) error {
	if err := config.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// MergeWithCLIOverrides applies interactive or flag parameters
func MergeWithCLIOverrides(config *SimulationConfig, overrides map[string]interface{}) {
	for key, value := range overrides {
		switch key {
		case "duration":
			if d, ok := asDuration(value); ok && d > 0 {
				config.Simulation.Duration = d
			}
		case "seed":
			if seed, ok := asInt(value); ok && seed >= 0 {
				config.Simulation.Seed = uint64(seed)
			}
		case "rounds_per_unit":
			if rounds, ok := asInt(value); ok && rounds >= 0 {
				for i := range config.FireUnits {
					config.FireUnits[i].Rounds = rounds
				}
			}
		case "interceptor_pk":
			if pk, ok := value.(float64); ok && pk >= 0 && pk <= 1 {
				for i := range config.Interceptors {
					config.Interceptors[i].Pk = pk
				}
			}
		case "jamming_threshold":
			if th, ok := value.(float64); ok && th > 0 && th <= 1 {
				config.Jamming.Threshold = th
			}
		case "raid_speed_kts":
			if v, ok := value.(float64); ok && v > 0 {
				for i := range config.Raid {
					config.Raid[i].SpeedKts = v
				}
			}
		case "enable_aar":
			if enable, ok := value.(bool); ok {
				config.Logging.EnableAAR = enable
			}
		case "aar_format":
			if f, ok := value.(string); ok && slices.Contains(validAARFormats, f) {
				config.Logging.AARFormat = f
			}
		case "aar_detail":
			if d, ok := value.(string); ok && slices.Contains(validAARDetails, d) {
				config.Logging.AARDetail = d
			}
		case "aar_output_path":
			if p, ok := value.(string); ok && p != "" {
				config.Logging.AAROutputPath = p
			}
		case "journal_path":
			if p, ok := value.(string); ok {
				config.Logging.JournalPath = p
			}
		case "enable_metrics":
			if enable, ok := value.(bool); ok {
				config.Logging.EnableMetrics = enable
			}
		case "log_level":
			if level, ok := value.(string); ok && slices.Contains(validLevels, level) {
				config.Logging.ConsoleLevel = level
			}
		case "event_level":
			if level, ok := value.(string); ok && slices.Contains(validSeverities, level) {
				config.Logging.EventLevel = level
			}
		}
	}
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), n == float64(int(n))
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}

func asDuration(v interface{}) (time.Duration, bool) {
	switch d := v.(type) {
	case time.Duration:
		return d, true
	case string:
		parsed, err := time.ParseDuration(d)
		return parsed, err == nil
	}
	return 0, false
}

// LoadConfigWithOverrides loads config and applies both environment and CLI overrides
func LoadConfigWithOverrides(path string, cliOverrides map[string]interface{}) (*SimulationConfig, error) {
	config, err := LoadConfigOrDefault(path)
	if err != nil {
		return nil, err
	}

	if cliOverrides != nil {
		MergeWithCLIOverrides(config, cliOverrides)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed after overrides: %w", err)
	}
	return config, nil
}

// MergeWithEnvironment merges config with KILLWEB_* environment variables
func MergeWithEnvironment(config *SimulationConfig) {
	if v := os.Getenv("KILLWEB_DURATION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			config.Simulation.Duration = d
		}
	}

	if v := os.Getenv("KILLWEB_SEED"); v != "" {
		if seed, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.Simulation.Seed = seed
		}
	}

	if v := os.Getenv("KILLWEB_JAMMING_THRESHOLD"); v != "" {
		if th, err := strconv.ParseFloat(v, 64); err == nil && th > 0 && th <= 1 {
			config.Jamming.Threshold = th
		}
	}

	if v := os.Getenv("KILLWEB_ROUNDS_PER_UNIT"); v != "" {
		if rounds, err := strconv.Atoi(v); err == nil && rounds >= 0 {
			for i := range config.FireUnits {
				config.FireUnits[i].Rounds = rounds
			}
		}
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		if l := strings.ToLower(logLevel); slices.Contains(validLevels, l) {
			config.Logging.ConsoleLevel = l
		}
	}

	if v := os.Getenv("KILLWEB_EVENT_LEVEL"); v != "" {
		if l := strings.ToLower(v); slices.Contains(validSeverities, l) {
			config.Logging.EventLevel = l
		}
	}

	if v := os.Getenv("KILLWEB_ENABLE_AAR"); v != "" {
		if enable, err := strconv.ParseBool(v); err == nil {
			config.Logging.EnableAAR = enable
		}
	}

	if v := os.Getenv("KILLWEB_AAR_OUTPUT_PATH"); v != "" {
		config.Logging.AAROutputPath = v
	}

	if v := os.Getenv("KILLWEB_AAR_FORMAT"); v != "" {
		if f := strings.ToLower(v); slices.Contains(validAARFormats, f) {
			config.Logging.AARFormat = f
		}
	}

	if v := os.Getenv("KILLWEB_JOURNAL_PATH"); v != "" {
		config.Logging.JournalPath = v
	}

	if v := os.Getenv("KILLWEB_ENABLE_METRICS"); v != "" {
		if enable, err := strconv.ParseBool(v); err == nil {
			config.Logging.EnableMetrics = enable
		}
	}
}
