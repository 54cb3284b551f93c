// Package config loads optional scanner defaults from a YAML file.
// Command-line flags always win over file values.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses YAML scalars like "750ms" or "2s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts back to the standard duration type.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// File mirrors the YAML defaults document.
type File struct {
	LogLevel    string   `yaml:"log_level"`
	Threads     int      `yaml:"threads"`
	Timeout     Duration `yaml:"timeout"`
	RecvTimeout Duration `yaml:"recv_timeout"`
	SendTimeout Duration `yaml:"send_timeout"`
	URI         string   `yaml:"uri"`
	MetricsAddr string   `yaml:"metrics_addr"`
	DatabaseURL string   `yaml:"database_url"`
}

// Load reads and parses the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &f, nil
}
