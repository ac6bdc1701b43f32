package memory_test

import (
	"testing"

	"github.com/cubbit/meshfs/pkg/content"
	"github.com/cubbit/meshfs/pkg/content/memory"
	contenttest "github.com/cubbit/meshfs/pkg/content/testing"
)

func TestStoreSuite(t *testing.T) {
	contenttest.RunStoreSuite(t, func(t *testing.T) content.Store {
		return memory.New()
	})
}
