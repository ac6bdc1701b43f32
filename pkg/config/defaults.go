package config

import "strings"

// Well-known bootstrap ports. Clients and storage servers must be able
// to reach a naming server on these values without prior discovery.
const (
	DefaultServicePort      = 6000
	DefaultRegistrationPort = 6001
)

// ApplyDefaults fills unset fields with working values. Explicit
// values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyNamingDefaults(&cfg.Naming)
	applyStorageDefaults(&cfg.Storage)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
}

func applyNamingDefaults(cfg *NamingConfig) {
	if cfg.ServicePort == 0 {
		cfg.ServicePort = DefaultServicePort
	}
	if cfg.RegistrationPort == 0 {
		cfg.RegistrationPort = DefaultRegistrationPort
	}
	if cfg.ReplicationThreshold == 0 {
		cfg.ReplicationThreshold = 20
	}
	if cfg.WorkerPoolSize == 0 {
		cfg.WorkerPoolSize = 4
	}
}

func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.NamingAddr == "" {
		cfg.NamingAddr = "127.0.0.1:6001"
	}
	if cfg.CopyChunkSize == 0 {
		cfg.CopyChunkSize = 8192
	}

	if cfg.Content.Type == "" {
		cfg.Content.Type = "fs"
	}
	if cfg.Content.Fs == nil {
		cfg.Content.Fs = make(map[string]any)
	}
	if cfg.Content.Memory == nil {
		cfg.Content.Memory = make(map[string]any)
	}
	if _, ok := cfg.Content.Fs["root"]; !ok {
		cfg.Content.Fs["root"] = "/var/lib/meshfs/content"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}
