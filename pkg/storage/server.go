// Package storage implements the MeshFS storage server: a node that
// holds file contents in a local store and serves them through two
// remote interfaces, one for data access and one for commands from the
// naming server.
package storage

import (
	"fmt"
	"net"
	"sync"

	"github.com/cubbit/meshfs/internal/logger"
	"github.com/cubbit/meshfs/pkg/content"
	"github.com/cubbit/meshfs/pkg/fspath"
	"github.com/cubbit/meshfs/pkg/metrics"
	"github.com/cubbit/meshfs/pkg/proto"
	"github.com/cubbit/meshfs/pkg/rpc"
)

// DefaultCopyChunkSize bounds a single transfer during Copy so files
// larger than process memory can be replicated.
const DefaultCopyChunkSize = 8 * 1024

// Config holds the storage server's listen and advertisement settings.
type Config struct {
	// Hostname is the externally-routable host advertised to the
	// naming server. When empty, the bound listener host is used, with
	// wildcard addresses rewritten to the loopback address.
	Hostname string

	// DataAddr and CommandAddr are the listen addresses of the two
	// interfaces. Empty means an ephemeral port.
	DataAddr    string
	CommandAddr string

	// CopyChunkSize overrides DefaultCopyChunkSize when positive.
	CopyChunkSize int32
}

// Server is a storage node. It implements proto.Storage and
// proto.Command over a content store and registers itself with a
// naming server on start.
type Server struct {
	store content.Store
	cfg   Config

	dataSkeleton    *rpc.Skeleton
	commandSkeleton *rpc.Skeleton

	mu      sync.Mutex
	started bool
	id      proto.StorageID
}

// New creates a storage server over the given content store. The
// server is not started and nothing is bound yet.
func New(store content.Store, cfg Config) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("storage server needs a content store: %w", rpc.ErrInvalidArgument)
	}
	if cfg.CopyChunkSize <= 0 {
		cfg.CopyChunkSize = DefaultCopyChunkSize
	}

	s := &Server{store: store, cfg: cfg}

	var err error
	s.dataSkeleton, err = proto.NewStorageSkeleton(s, cfg.DataAddr)
	if err != nil {
		return nil, err
	}
	s.commandSkeleton, err = proto.NewCommandSkeleton(s, cfg.CommandAddr)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Start brings both interfaces up and registers with the naming
// server: announce the local file set, delete every path the naming
// server reports as a duplicate, then prune directories left empty.
func (s *Server) Start(naming *proto.RegistrationStub) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("storage server already started: %w", rpc.ErrInvalidState)
	}
	s.started = true
	s.mu.Unlock()

	if err := s.dataSkeleton.Start(); err != nil {
		s.markStopped()
		return err
	}
	if err := s.commandSkeleton.Start(); err != nil {
		s.dataSkeleton.Stop()
		s.markStopped()
		return err
	}

	id := proto.StorageID{
		Data:    advertiseAddr(s.dataSkeleton.Addr(), s.cfg.Hostname),
		Command: advertiseAddr(s.commandSkeleton.Addr(), s.cfg.Hostname),
	}
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()

	files, err := s.store.List()
	if err != nil {
		s.Stop()
		return err
	}

	logger.Info("Registering %s with %d file(s)", id, len(files))

	duplicates, err := naming.Register(id, files)
	if err != nil {
		s.Stop()
		return fmt.Errorf("register with naming server: %w", err)
	}

	for _, p := range duplicates {
		if _, err := s.store.Delete(p); err != nil {
			logger.Warn("Could not drop duplicate %s: %v", p, err)
		}
	}
	if len(duplicates) > 0 {
		logger.Info("Dropped %d duplicate file(s) after registration", len(duplicates))
	}

	if err := s.store.PruneEmptyDirs(); err != nil {
		logger.Warn("Could not prune empty directories: %v", err)
	}

	return nil
}

// Stop shuts both interfaces down and waits for in-flight requests.
func (s *Server) Stop() {
	s.commandSkeleton.Stop()
	s.dataSkeleton.Stop()
	s.markStopped()
}

func (s *Server) markStopped() {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
}

// ID returns the identity advertised to the naming server. It is only
// meaningful after Start.
func (s *Server) ID() proto.StorageID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Size implements proto.Storage.
func (s *Server) Size(path fspath.Path) (int64, error) {
	return s.store.Size(path)
}

// Read implements proto.Storage.
func (s *Server) Read(path fspath.Path, offset int64, length int32) ([]byte, error) {
	data, err := s.store.Read(path, offset, length)
	if err == nil {
		metrics.StorageBytesRead.Add(float64(len(data)))
	}
	return data, err
}

// Write implements proto.Storage.
func (s *Server) Write(path fspath.Path, offset int64, data []byte) error {
	err := s.store.Write(path, offset, data)
	if err == nil {
		metrics.StorageBytesWritten.Add(float64(len(data)))
	}
	return err
}

// Create implements proto.Command.
func (s *Server) Create(path fspath.Path) (bool, error) {
	return s.store.Create(path)
}

// Delete implements proto.Command.
func (s *Server) Delete(path fspath.Path) (bool, error) {
	return s.store.Delete(path)
}

// Copy implements proto.Command. It pulls the file from the source
// data endpoint in bounded chunks and replaces any local copy.
func (s *Server) Copy(path fspath.Path, source string) (bool, error) {
	src, err := proto.NewStorageStub(source)
	if err != nil {
		return false, err
	}

	size, err := src.Size(path)
	if err != nil {
		return false, err
	}

	// Replace whatever is at the path locally.
	if _, err := s.store.Delete(path); err != nil {
		return false, err
	}
	if _, err := s.store.Create(path); err != nil {
		return false, err
	}

	for offset := int64(0); offset < size; {
		chunk := s.cfg.CopyChunkSize
		if remaining := size - offset; remaining < int64(chunk) {
			chunk = int32(remaining)
		}

		data, err := src.Read(path, offset, chunk)
		if err != nil {
			return false, err
		}
		if len(data) == 0 {
			return false, fmt.Errorf("source returned no data at offset %d of %s: %w", offset, path, rpc.ErrIO)
		}
		if err := s.store.Write(path, offset, data); err != nil {
			return false, err
		}
		offset += int64(len(data))
	}

	logger.Debug("Copied %s (%d bytes) from %s", path, size, source)
	return true, nil
}

// advertiseAddr rewrites a bound listen address into one reachable by
// remote peers.
func advertiseAddr(bound, hostname string) string {
	host, port, err := net.SplitHostPort(bound)
	if err != nil {
		return bound
	}
	if hostname != "" {
		return net.JoinHostPort(hostname, port)
	}
	switch host {
	case "", "::", "0.0.0.0":
		return net.JoinHostPort("127.0.0.1", port)
	}
	return bound
}
