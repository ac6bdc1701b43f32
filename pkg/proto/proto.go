// Package proto defines the MeshFS remote interfaces: the naming
// server's Service and Registration, and the storage server's Storage
// and Command. Each method is an explicit request/reply message pair
// with a hand-written dispatch table; there are no reflection proxies.
// Skeleton adapters and typed stubs for all four interfaces live here
// so both peers share a single definition of the wire contract.
package proto

import (
	"fmt"

	"github.com/cubbit/meshfs/pkg/fspath"
)

// StorageID identifies one storage server: the endpoint serving file
// data (size, read, write) and the endpoint serving commands (create,
// delete, copy). Two identities are equal iff both endpoints match.
type StorageID struct {
	Data    string
	Command string
}

// String renders the identity for logs.
func (id StorageID) String() string {
	return fmt.Sprintf("storage(data=%s, command=%s)", id.Data, id.Command)
}

// Service is the naming server's client-facing interface.
type Service interface {
	// Lock acquires the path's lock chain: every ancestor shared, the
	// path itself shared or exclusive.
	Lock(path fspath.Path, exclusive bool) error

	// Unlock releases a chain previously acquired by Lock.
	Unlock(path fspath.Path, exclusive bool) error

	// IsDirectory reports whether the path resolves to a directory.
	IsDirectory(path fspath.Path) (bool, error)

	// List returns the child names of a directory.
	List(dir fspath.Path) ([]string, error)

	// CreateFile creates an empty file on one storage server chosen at
	// random. It returns false if anything already exists at the path.
	CreateFile(path fspath.Path) (bool, error)

	// CreateDirectory inserts a directory node. It returns false if
	// anything already exists at the path.
	CreateDirectory(path fspath.Path) (bool, error)

	// Delete removes the path from the tree and commands every hosting
	// storage server to drop its copy. It reports whether all storage
	// servers succeeded.
	Delete(path fspath.Path) (bool, error)

	// GetStorage returns one of the storage identities hosting a file,
	// chosen uniformly at random.
	GetStorage(path fspath.Path) (StorageID, error)
}

// Registration is the naming server's storage-facing interface.
type Registration interface {
	// Register announces a storage server and the files it hosts. The
	// returned paths are duplicates already known to the naming server;
	// the caller must delete them from its local store.
	Register(id StorageID, files []fspath.Path) ([]fspath.Path, error)
}

// Storage is the data interface of a storage server.
type Storage interface {
	// Size returns the length of a file in bytes.
	Size(path fspath.Path) (int64, error)

	// Read returns length bytes starting at offset.
	Read(path fspath.Path, offset int64, length int32) ([]byte, error)

	// Write stores data at offset, growing the file if needed.
	Write(path fspath.Path, offset int64, data []byte) error
}

// Command is the control interface of a storage server, used only by
// the naming server.
type Command interface {
	// Create makes an empty file, creating parent directories as
	// needed. It returns false if the file already exists.
	Create(path fspath.Path) (bool, error)

	// Delete removes a file or directory tree. Deleting the root
	// returns false.
	Delete(path fspath.Path) (bool, error)

	// Copy fetches the file from the storage server at the given data
	// endpoint and stores it locally, replacing any existing copy.
	Copy(path fspath.Path, source string) (bool, error)
}
