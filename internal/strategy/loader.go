package strategy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type profileFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// ParseProfiles decodes a YAML document with a top-level "profiles" list and
// validates every entry
func ParseProfiles(data []byte) ([]Profile, error) {
	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse profiles: %w", err)
	}
	if len(file.Profiles) == 0 {
		return nil, fmt.Errorf("no profiles defined")
	}
	names := make(map[string]bool, len(file.Profiles))
	for _, p := range file.Profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if names[p.Name] {
			return nil, fmt.Errorf("profile %s defined twice", p.Name)
		}
		names[p.Name] = true
	}
	return file.Profiles, nil
}

// LoadProfiles reads and validates a profile file
func LoadProfiles(path string) ([]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}
	return ParseProfiles(data)
}

// Load registers every profile in the file with the registry
func (r *Registry) Load(path string) error {
	profiles, err := LoadProfiles(path)
	if err != nil {
		return err
	}
	for _, p := range profiles {
		if err := r.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// MarshalProfiles encodes profiles in the format ParseProfiles reads
func MarshalProfiles(profiles []Profile) ([]byte, error) {
	return yaml.Marshal(profileFile{Profiles: profiles})
}
