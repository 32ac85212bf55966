package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// DirName is the per-user settings directory under $HOME
const DirName = ".killweb-sim"

// Profile is a named set of run parameters: a scenario file and the
// overrides applied on top of it
type Profile struct {
	Name        string                 `yaml:"name"`
	Simulation  string                 `yaml:"simulation,omitempty"`
	Scenario    string                 `yaml:"scenario,omitempty"`
	Description string                 `yaml:"description,omitempty"`
	Parameters  map[string]interface{} `yaml:"parameters,omitempty"`
}

// Params returns the profile as simulation parameters
func (p Profile) Params() map[string]interface{} {
	params := make(map[string]interface{}, len(p.Parameters)+1)
	for k, v := range p.Parameters {
		params[k] = v
	}
	if p.Scenario != "" {
		params["scenario"] = p.Scenario
	}
	return params
}

// Profiles holds the saved profiles
type Profiles struct {
	Profiles []Profile `yaml:"profiles"`
	Selected string    `yaml:"selected,omitempty"`
}

// Find returns the named profile
func (c *Profiles) Find(name string) (Profile, bool) {
	for _, p := range c.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

// Put adds p, replacing any profile with the same name
func (c *Profiles) Put(p Profile) error {
	if p.Name == "" {
		return fmt.Errorf("profile name is required")
	}
	i := slices.IndexFunc(c.Profiles, func(x Profile) bool { return x.Name == p.Name })
	if i >= 0 {
		c.Profiles[i] = p
		return nil
	}
	c.Profiles = append(c.Profiles, p)
	return nil
}

// Remove deletes the named profile
func (c *Profiles) Remove(name string) error {
	i := slices.IndexFunc(c.Profiles, func(x Profile) bool { return x.Name == name })
	if i < 0 {
		return fmt.Errorf("profile %s not found", name)
	}
	c.Profiles = slices.Delete(c.Profiles, i, i+1)
	if c.Selected == name {
		c.Selected = ""
	}
	return nil
}

// Names lists the profile names in file order
func (c *Profiles) Names() []string {
	names := make([]string, len(c.Profiles))
	for i, p := range c.Profiles {
		names[i] = p.Name
	}
	return names
}

// ProfilesPath returns the default profiles file
func ProfilesPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, DirName, "profiles.yaml"), nil
}

// LoadProfiles loads profiles from the default location
func LoadProfiles() (*Profiles, error) {
	path, err := ProfilesPath()
	if err != nil {
		return nil, err
	}
	return LoadProfilesFromFile(path)
}

// LoadProfilesFromFile loads profiles from path. A missing file yields the
// built-in profiles.
func LoadProfilesFromFile(path string) (*Profiles, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return defaultProfiles(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles file: %w", err)
	}

	var profiles Profiles
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("failed to parse profiles file: %w", err)
	}
	return &profiles, nil
}

// SaveProfiles saves profiles to the default location
func SaveProfiles(profiles *Profiles) error {
	path, err := ProfilesPath()
	if err != nil {
		return err
	}
	return SaveProfilesToFile(profiles, path)
}

// SaveProfilesToFile writes profiles to path, creating its directory
func SaveProfilesToFile(profiles *Profiles, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(profiles)
	if err != nil {
		return fmt.Errorf("failed to marshal profiles: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write profiles file: %w", err)
	}
	return nil
}

// defaultProfiles are offered before the user has saved any
func defaultProfiles() *Profiles {
	return &Profiles{
		Profiles: []Profile{
			{
				Name:        "reference",
				Simulation:  "Kill Web Air Defense",
				Description: "Reference brigade defense with the built-in raid",
			},
			{
				Name:        "thin-magazine",
				Simulation:  "Kill Web Air Defense",
				Description: "Reference defense with two rounds per fire unit",
				Parameters:  map[string]interface{}{"rounds_per_unit": 2},
			},
		},
	}
}
