// Package config defines the partition supervisor's configuration
// surface: a Config struct settable programmatically or loaded from an
// optional YAML file merged over in-code defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every supervisor-tunable option. Every field may be set
// directly (DefaultConfig returns sane defaults for programmatic use) or
// loaded from a YAML manifest via Load.
type Config struct {
	// HealthCheckTick is the period between health monitor polls.
	HealthCheckTick time.Duration `yaml:"health_check_tick"`

	// StepOpenTimeout optionally bounds every startup step's open/close
	// call. Zero disables the timeout.
	StepOpenTimeout time.Duration `yaml:"step_open_timeout"`

	// AdminHTTPAddr optionally names the bind address of the health HTTP
	// exporter, which serves the aggregated health status at /healthz.
	// Empty disables it. Metrics are not served on this address.
	AdminHTTPAddr string `yaml:"admin_http_addr"`

	// MetadataStorePath optionally points the embedded metadata store at
	// a directory on disk. Empty keeps metadata in memory only.
	MetadataStorePath string `yaml:"metadata_store_path"`
}

// DefaultConfig returns the in-code defaults: a 1s health check tick, no
// step timeout, no admin HTTP server, and an in-memory metadata store.
func DefaultConfig() Config {
	return Config{
		HealthCheckTick:   time.Second,
		StepOpenTimeout:   0,
		AdminHTTPAddr:     "",
		MetadataStorePath: "",
	}
}

// Load reads a YAML manifest at path and merges it over DefaultConfig.
// Fields absent from the file keep their default value.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %q: %w", path, err)
	}

	return cfg, nil
}
