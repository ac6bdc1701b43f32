package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/cubbit/meshfs/pkg/content"
	"github.com/cubbit/meshfs/pkg/content/fs"
	"github.com/cubbit/meshfs/pkg/content/memory"
)

// FsStoreConfig is the typed form of the content.fs section.
type FsStoreConfig struct {
	Root string `mapstructure:"root"`
}

// NewContentStore builds the content store selected by the
// configuration.
func NewContentStore(cfg ContentConfig) (content.Store, error) {
	switch cfg.Type {
	case "fs":
		var fsCfg FsStoreConfig
		if err := mapstructure.Decode(cfg.Fs, &fsCfg); err != nil {
			return nil, fmt.Errorf("decode content.fs config: %w", err)
		}
		return fs.New(fsCfg.Root)
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown content store type %q", cfg.Type)
	}
}
