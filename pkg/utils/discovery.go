package utils

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/picogrid/killweb-simulations/pkg/logger"
	"github.com/picogrid/killweb-simulations/pkg/simulation"
)

// DescriptorFile is the name of a simulation's parameter descriptor
const DescriptorFile = "simulation.yaml"

// SimulationInfo describes a simulation found on disk
type SimulationInfo struct {
	Path   string
	Config simulation.SimulationConfig
}

// DiscoverSimulations finds every simulation descriptor under the project's
// cmd directory, sorted by name
func DiscoverSimulations() ([]SimulationInfo, error) {
	rootDir, err := findProjectRoot()
	if err != nil {
		return nil, err
	}
	return DiscoverSimulationsIn(filepath.Join(rootDir, "cmd"))
}

// DiscoverSimulationsIn walks dir for simulation descriptors. Unreadable
// descriptors are logged and skipped.
func DiscoverSimulationsIn(dir string) ([]SimulationInfo, error) {
	var sims []SimulationInfo

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != DescriptorFile {
			return nil
		}
		info, err := loadDescriptor(path)
		if err != nil {
			logger.Warnf("Skipping %s: %v", path, err)
			return nil
		}
		sims = append(sims, *info)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan for simulations: %w", err)
	}

	sort.Slice(sims, func(i, j int) bool { return sims[i].Config.Name < sims[j].Config.Name })
	return sims, nil
}

// FindSimulation returns the descriptor for the named simulation
func FindSimulation(sims []SimulationInfo, name string) (*SimulationInfo, error) {
	for i := range sims {
		if sims[i].Config.Name == name {
			return &sims[i], nil
		}
	}
	return nil, fmt.Errorf("simulation configuration not found for %s", name)
}

func loadDescriptor(path string) (*SimulationInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read simulation config: %w", err)
	}

	var config simulation.SimulationConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse simulation config: %w", err)
	}
	if config.Name == "" {
		return nil, fmt.Errorf("descriptor has no name")
	}

	return &SimulationInfo{
		Path:   filepath.Dir(path),
		Config: config,
	}, nil
}

// findProjectRoot walks up from the working directory to the nearest go.mod
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find project root (no go.mod found)")
		}
		dir = parent
	}
}
