// Package memory implements the content store in process memory.
package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cubbit/meshfs/pkg/fspath"
	"github.com/cubbit/meshfs/pkg/rpc"
)

// Store keeps file contents in maps. It exists for tests and for
// ephemeral storage nodes; nothing survives the process.
type Store struct {
	mu    sync.RWMutex
	files map[string][]byte
	dirs  map[string]bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
}

// Size returns the length of the file in bytes.
func (s *Store) Size(p fspath.Path) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.files[p.String()]
	if !ok {
		return 0, fmt.Errorf("%s is not a file: %w", p, rpc.ErrNotFound)
	}
	return int64(len(data)), nil
}

// Read returns length bytes starting at offset.
func (s *Store) Read(p fspath.Path, offset int64, length int32) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, fmt.Errorf("read %s with offset %d length %d: %w", p, offset, length, rpc.ErrInvalidArgument)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.files[p.String()]
	if !ok {
		return nil, fmt.Errorf("%s is not a file: %w", p, rpc.ErrNotFound)
	}

	size := int64(len(data))
	if offset == size {
		return []byte{}, nil
	}
	if offset > size || offset+int64(length) > size {
		return nil, fmt.Errorf("read %s [%d,%d) past end %d: %w", p, offset, offset+int64(length), size, rpc.ErrInvalidArgument)
	}

	out := make([]byte, length)
	copy(out, data[offset:offset+int64(length)])
	return out, nil
}

// Write stores data at offset, zero-filling any gap past the old end.
func (s *Store) Write(p fspath.Path, offset int64, data []byte) error {
	if offset < 0 {
		return fmt.Errorf("write %s with offset %d: %w", p, offset, rpc.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.files[p.String()]
	if !ok {
		return fmt.Errorf("%s is not a file: %w", p, rpc.ErrNotFound)
	}

	end := offset + int64(len(data))
	if end < int64(len(old)) {
		end = int64(len(old))
	}
	grown := make([]byte, end)
	copy(grown, old)
	copy(grown[offset:], data)
	s.files[p.String()] = grown
	return nil
}

// Create makes an empty file, recording parent directories as needed.
func (s *Store) Create(p fspath.Path) (bool, error) {
	if p.IsRoot() {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := p.String()
	if _, ok := s.files[key]; ok {
		return false, nil
	}

	for q := p; !q.IsRoot(); {
		parent, err := q.Parent()
		if err != nil {
			return false, err
		}
		if !parent.IsRoot() {
			s.dirs[parent.String()] = true
		}
		q = parent
	}

	s.files[key] = []byte{}
	return true, nil
}

// Delete removes the path, recursively for directories.
func (s *Store) Delete(p fspath.Path) (bool, error) {
	if p.IsRoot() {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := p.String()
	if _, ok := s.files[key]; ok {
		delete(s.files, key)
		return true, nil
	}
	if !s.dirs[key] {
		return false, nil
	}

	prefix := key + fspath.Separator
	for k := range s.files {
		if strings.HasPrefix(k, prefix) {
			delete(s.files, k)
		}
	}
	for k := range s.dirs {
		if k == key || strings.HasPrefix(k, prefix) {
			delete(s.dirs, k)
		}
	}
	return true, nil
}

// List returns the paths of all files in the store.
func (s *Store) List() ([]fspath.Path, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.files))
	for k := range s.files {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]fspath.Path, len(keys))
	for i, k := range keys {
		p, err := fspath.Parse(k)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// PruneEmptyDirs drops directory records that no longer contain any
// file.
func (s *Store) PruneEmptyDirs() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for dir := range s.dirs {
		prefix := dir + fspath.Separator
		used := false
		for k := range s.files {
			if strings.HasPrefix(k, prefix) {
				used = true
				break
			}
		}
		if !used {
			delete(s.dirs, dir)
		}
	}
	return nil
}
