// Package content defines the local store a storage server keeps its
// file contents in. Backends are selected by configuration: fs stores
// files under a root directory on the local filesystem, memory keeps
// them in process memory for tests and ephemeral nodes.
package content

import "github.com/cubbit/meshfs/pkg/fspath"

// Store holds file contents addressed by filesystem paths.
//
// Offsets and lengths follow the storage service contract: negative
// values are InvalidArgument, reads past the end of the file are
// InvalidArgument except for a read starting exactly at the end, which
// returns no bytes. Writes may start beyond the current end and grow
// the file.
type Store interface {
	// Size returns the length of the file in bytes. A missing path or
	// a directory is NotFound.
	Size(path fspath.Path) (int64, error)

	// Read returns length bytes starting at offset.
	Read(path fspath.Path, offset int64, length int32) ([]byte, error)

	// Write stores data at offset, growing the file if needed.
	Write(path fspath.Path, offset int64, data []byte) error

	// Create makes an empty file, creating parent directories as
	// needed. It returns false if the file already exists or the path
	// is the root.
	Create(path fspath.Path) (bool, error)

	// Delete removes the path, recursively for directories. Deleting
	// the root or a missing path returns false.
	Delete(path fspath.Path) (bool, error)

	// List returns the paths of all files in the store, in no
	// particular order.
	List() ([]fspath.Path, error)

	// PruneEmptyDirs removes directories that no longer contain any
	// file, bottom-up. The root itself is kept.
	PruneEmptyDirs() error
}
