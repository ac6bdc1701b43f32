package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfigFile(t *testing.T, doc map[string]any) string {
	t.Helper()

	data, err := yaml.Marshal(doc)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, map[string]any{}))
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, DefaultServicePort, cfg.Naming.ServicePort)
	assert.Equal(t, DefaultRegistrationPort, cfg.Naming.RegistrationPort)
	assert.Equal(t, 20, cfg.Naming.ReplicationThreshold)
	assert.Equal(t, 4, cfg.Naming.WorkerPoolSize)
	assert.EqualValues(t, 8192, cfg.Storage.CopyChunkSize)
	assert.Equal(t, "fs", cfg.Storage.Content.Type)
	assert.Equal(t, 9090, cfg.Metrics.Port)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, map[string]any{
		"logging": map[string]any{"level": "debug", "format": "json"},
		"naming": map[string]any{
			"service_port":          7100,
			"registration_port":     7101,
			"replication_threshold": 5,
		},
		"storage": map[string]any{
			"naming_addr": "names.internal:7101",
			"content": map[string]any{
				"type": "fs",
				"fs":   map[string]any{"root": "/srv/meshfs"},
			},
		},
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level, "level is normalized to uppercase")
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 7100, cfg.Naming.ServicePort)
	assert.Equal(t, 5, cfg.Naming.ReplicationThreshold)
	assert.Equal(t, "names.internal:7101", cfg.Storage.NamingAddr)
	assert.Equal(t, "/srv/meshfs", cfg.Storage.Content.Fs["root"])
}

func TestAddrHelpers(t *testing.T) {
	cfg := NamingConfig{ServicePort: 6000, RegistrationPort: 6001}
	assert.Equal(t, ":6000", cfg.ServiceAddr())
	assert.Equal(t, ":6001", cfg.RegistrationAddr())

	st := StorageConfig{DataPort: 7000, CommandPort: 7001}
	assert.Equal(t, ":7000", st.DataAddr())
	assert.Equal(t, ":7001", st.CommandAddr())
}

func TestValidationRejectsBadLevel(t *testing.T) {
	_, err := Load(writeConfigFile(t, map[string]any{
		"logging": map[string]any{"level": "LOUD"},
	}))
	assert.Error(t, err)
}

func TestValidationRejectsEqualNamingPorts(t *testing.T) {
	_, err := Load(writeConfigFile(t, map[string]any{
		"naming": map[string]any{
			"service_port":      7000,
			"registration_port": 7000,
		},
	}))
	assert.Error(t, err)
}

func TestValidationRejectsUnknownStore(t *testing.T) {
	_, err := Load(writeConfigFile(t, map[string]any{
		"storage": map[string]any{
			"content": map[string]any{"type": "tape"},
		},
	}))
	assert.Error(t, err)
}
