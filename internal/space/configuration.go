package space

import (
	"encoding/json"
	"fmt"
	"os"
)

// Configuration assigns a value to every parameter of a Space.
type Configuration map[ParamName]Value

func (c Configuration) Clone() Configuration {
	res := make(Configuration, len(c))
	for k, v := range c {
		res[k] = v
	}
	return res
}

// ParseConfiguration decodes a name -> value JSON object. Names are checked
// against the space while decoding.
func (s *Space) ParseConfiguration(data []byte) (Configuration, error) {
	var raw map[string]Value
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	cfg := make(Configuration, len(raw))
	for rawName, v := range raw {
		name, err := s.Lookup(rawName)
		if err != nil {
			return nil, err
		}
		cfg[name] = v
	}
	if err := s.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *Space) LoadConfiguration(path string) (Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	return s.ParseConfiguration(data)
}

// SaveConfiguration writes cfg as an indented JSON object.
func SaveConfiguration(path string, cfg Configuration) error {
	data, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to move configuration into place: %w", err)
	}
	return nil
}
