// Package config loads the YAML configuration for a DC-09 SPT client:
// account identity, the path lattice, poll/routine schedules and the
// demo HTTP server.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root document.
type Config struct {
	Account  AccountConfig  `yaml:"account"`
	Paths    []PathConfig   `yaml:"paths"`
	Poll     PollConfig     `yaml:"poll"`
	Routines []RoutineEntry `yaml:"routines"`
	Server   ServerConfig   `yaml:"server"`
	Logs     LogsConfig     `yaml:"logs"`
}

// AccountConfig carries the SPT-level identity defaults. Any of these
// may be omitted and inherited from the first path that supplies them.
type AccountConfig struct {
	Account  string `yaml:"account"`
	Receiver *int   `yaml:"receiver"`
	Line     *int   `yaml:"line"`
}

// PathConfig describes one cell of the 2x2 path lattice.
type PathConfig struct {
	Branch    string `yaml:"branch"`    // "main" or "back-up"
	Slot      string `yaml:"slot"`      // "primary" or "secondary"
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Transport string `yaml:"transport"` // "tcp" or "udp"
	Account   string `yaml:"account"`
	Key       string `yaml:"key"` // hex-encoded AES key, 16 or 32 bytes
	Receiver  *int   `yaml:"receiver"`
	Line      *int   `yaml:"line"`
	Timeout   time.Duration `yaml:"timeout"`
}

// PollConfig configures heartbeat scheduling.
type PollConfig struct {
	MainInterval   *time.Duration `yaml:"main_interval"`
	BackupInterval *time.Duration `yaml:"backup_interval"`
	RetryDelay     time.Duration  `yaml:"retry_delay"`
}

// RoutineEntry configures one scheduled routine message.
type RoutineEntry struct {
	Code     string        `yaml:"code"`
	Zone     string        `yaml:"zone"`
	Interval time.Duration `yaml:"interval"`
	Start    *int          `yaml:"start"`
}

// ServerConfig configures the demo HTTP server exposing /state and /metrics.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LogsConfig configures the logrus output used by the demo harness.
type LogsConfig struct {
	Level string `yaml:"level"`
}

// Load reads and parses path, applying the same documented defaults the
// demo harness relies on when a field is left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{
		Poll: PollConfig{
			RetryDelay: 5 * time.Second,
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Logs: LogsConfig{
			Level: "info",
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	for i := range cfg.Paths {
		if cfg.Paths[i].Transport == "" {
			cfg.Paths[i].Transport = "tcp"
		}
		if cfg.Paths[i].Timeout <= 0 {
			cfg.Paths[i].Timeout = 5 * time.Second
		}
	}

	return cfg, nil
}
