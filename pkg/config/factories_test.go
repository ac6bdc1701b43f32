package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubbit/meshfs/pkg/content/fs"
	"github.com/cubbit/meshfs/pkg/content/memory"
)

func TestNewContentStoreFs(t *testing.T) {
	store, err := NewContentStore(ContentConfig{
		Type: "fs",
		Fs:   map[string]any{"root": t.TempDir()},
	})
	require.NoError(t, err)
	assert.IsType(t, &fs.Store{}, store)
}

func TestNewContentStoreMemory(t *testing.T) {
	store, err := NewContentStore(ContentConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, store)
}

func TestNewContentStoreUnknown(t *testing.T) {
	_, err := NewContentStore(ContentConfig{Type: "tape"})
	assert.Error(t, err)
}
