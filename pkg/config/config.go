// Package config loads and validates the MeshFS configuration from
// file, environment, and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the complete MeshFS configuration, shared by the naming
// and storage roles. Sources, in order of precedence:
//  1. Environment variables (MESHFS_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Naming configures the naming server role
	Naming NamingConfig `mapstructure:"naming"`

	// Storage configures the storage server role
	Storage StorageConfig `mapstructure:"storage"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format is the log output format
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// NamingConfig holds the naming server's settings. The two ports are
// the well-known bootstrap addresses: clients dial the service port,
// storage servers dial the registration port.
type NamingConfig struct {
	ServicePort      int `mapstructure:"service_port" validate:"gte=0,lte=65535"`
	RegistrationPort int `mapstructure:"registration_port" validate:"gte=0,lte=65535"`

	// ReplicationThreshold is the read count that triggers replication
	ReplicationThreshold int `mapstructure:"replication_threshold" validate:"gt=0"`

	// WorkerPoolSize bounds concurrent replication/invalidation tasks
	WorkerPoolSize int `mapstructure:"worker_pool_size" validate:"gt=0"`

	// WorkerRate and WorkerBurst throttle task execution (a zero rate
	// is unlimited; a zero burst equals the rate)
	WorkerRate  uint `mapstructure:"worker_rate"`
	WorkerBurst uint `mapstructure:"worker_burst"`
}

// ServiceAddr renders the client service listen address.
func (c NamingConfig) ServiceAddr() string {
	return fmt.Sprintf(":%d", c.ServicePort)
}

// RegistrationAddr renders the registration listen address.
func (c NamingConfig) RegistrationAddr() string {
	return fmt.Sprintf(":%d", c.RegistrationPort)
}

// StorageConfig holds a storage server's settings.
type StorageConfig struct {
	// Hostname is the externally-routable host advertised to the
	// naming server; empty falls back to the bound listener host
	Hostname string `mapstructure:"hostname"`

	// NamingAddr is the naming server's registration endpoint
	NamingAddr string `mapstructure:"naming_addr"`

	// DataPort and CommandPort are the two listen ports (0 = ephemeral)
	DataPort    int `mapstructure:"data_port" validate:"gte=0,lte=65535"`
	CommandPort int `mapstructure:"command_port" validate:"gte=0,lte=65535"`

	// CopyChunkSize bounds a single transfer during replica copies
	CopyChunkSize int32 `mapstructure:"copy_chunk_size" validate:"gt=0"`

	// Content selects and configures the content store backend
	Content ContentConfig `mapstructure:"content"`
}

// DataAddr renders the data listen address.
func (c StorageConfig) DataAddr() string {
	return fmt.Sprintf(":%d", c.DataPort)
}

// CommandAddr renders the command listen address.
func (c StorageConfig) CommandAddr() string {
	return fmt.Sprintf(":%d", c.CommandPort)
}

// ContentConfig selects the content store implementation. Only the
// section matching Type is used.
type ContentConfig struct {
	// Type is the backend: fs or memory
	Type string `mapstructure:"type" validate:"required,oneof=fs memory"`

	// Fs configures the filesystem backend
	Fs map[string]any `mapstructure:"fs"`

	// Memory configures the in-memory backend
	Memory map[string]any `mapstructure:"memory"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port" validate:"gte=0,lte=65535"`
}

// Load reads the configuration from the given file (or the default
// location when empty), applies environment overrides and defaults,
// and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("MESHFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Missing file is fine, defaults apply; anything else is not.
			if configPath != "" || !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// getConfigDir returns the configuration directory, honoring
// XDG_CONFIG_HOME.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "meshfs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "meshfs")
}
