// Package config loads qamrx-gateway's YAML configuration file, in the
// same shape as 90karatinsa-ch10gate's cmd/ch10d/main.go loadConfig:
// gopkg.in/yaml.v3 unmarshal into a struct of nested sub-configs, then
// fill in defaults for anything left zero.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/n1adj/qamrx/qam"
)

// LogConfig controls the rotating log file, mirroring ch10d's
// lumberjack.Logger field set.
type LogConfig struct {
	Directory  string `yaml:"directory"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
	Debug      bool   `yaml:"debug"`
}

// SourceConfig selects the receiver's symbol front end.
type SourceConfig struct {
	Kind    string             `yaml:"kind"` // "file", "stdin", or "serial"
	Path    string             `yaml:"path"`
	Serial  SerialSourceConfig `yaml:"serial"`
	Capture string             `yaml:"capture"` // optional: tee symbols to this zstd capture file
}

type SerialSourceConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// TransportConfig controls the websocket frame broadcaster.
type TransportConfig struct {
	Listen string `yaml:"listen"`
	Path   string `yaml:"path"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Path    string `yaml:"path"`
}

// GPIOConfig drives the optional on-air status line.
type GPIOConfig struct {
	Enabled bool   `yaml:"enabled"`
	Chip    string `yaml:"chip"`
	Line    int    `yaml:"line"`
}

// Config is the full qamrx-gateway configuration.
type Config struct {
	QAM       qam.Config      `yaml:"qam"`
	Source    SourceConfig    `yaml:"source"`
	Transport TransportConfig `yaml:"transport"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	GPIO      GPIOConfig      `yaml:"gpio"`
	Logs      LogConfig       `yaml:"logs"`
}

// Default returns the configuration used when no file is supplied:
// qam.DefaultConfig plumbed in, stdin source, transport and metrics on
// their conventional ports.
func Default() Config {
	return Config{
		QAM: qam.DefaultConfig(),
		Source: SourceConfig{
			Kind: "stdin",
		},
		Transport: TransportConfig{
			Listen: ":8080",
			Path:   "/ws",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Listen:  ":9090",
			Path:    "/metrics",
		},
		Logs: LogConfig{
			Directory:  "logs",
			MaxSizeMB:  25,
			MaxAgeDays: 7,
			MaxBackups: 5,
		},
	}
}

// Load reads and parses filename, filling any zero-valued fields from
// Default(), following ch10d's loadConfig pattern of unmarshal-then-
// backfill rather than a struct literal default merged via yaml tags.
func Load(filename string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", filename, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", filename, err)
	}

	if cfg.Logs.Directory == "" {
		cfg.Logs.Directory = "logs"
	}
	if cfg.Logs.MaxSizeMB <= 0 {
		cfg.Logs.MaxSizeMB = 25
	}
	if cfg.Logs.MaxAgeDays <= 0 {
		cfg.Logs.MaxAgeDays = 7
	}
	if cfg.Logs.MaxBackups <= 0 {
		cfg.Logs.MaxBackups = 5
	}
	if cfg.Transport.Path == "" {
		cfg.Transport.Path = "/ws"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	return cfg, nil
}
