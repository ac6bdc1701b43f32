// Package fs implements the content store on the local filesystem.
package fs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cubbit/meshfs/pkg/fspath"
	"github.com/cubbit/meshfs/pkg/rpc"
)

// Store keeps file contents under a root directory. Paths map directly
// onto the directory tree below the root.
//
// Filesystem operations are thread-safe at the OS level; callers that
// need read/write consistency for a single file serialize access
// through the naming server's lock protocol, not here.
type Store struct {
	root string
}

// New creates a filesystem store rooted at root, creating the
// directory if it does not exist.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("content store root is empty: %w", rpc.ErrInvalidArgument)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create content root: %v: %w", err, rpc.ErrIO)
	}
	return &Store{root: root}, nil
}

// Root returns the root directory of the store.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) localPath(p fspath.Path) string {
	return filepath.Join(s.root, filepath.Join(p.Components()...))
}

// Size returns the length of the file in bytes.
func (s *Store) Size(p fspath.Path) (int64, error) {
	info, err := os.Stat(s.localPath(p))
	if err != nil || info.IsDir() {
		return 0, fmt.Errorf("%s is not a file: %w", p, rpc.ErrNotFound)
	}
	return info.Size(), nil
}

// Read returns length bytes starting at offset.
func (s *Store) Read(p fspath.Path, offset int64, length int32) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, fmt.Errorf("read %s with offset %d length %d: %w", p, offset, length, rpc.ErrInvalidArgument)
	}

	size, err := s.Size(p)
	if err != nil {
		return nil, err
	}
	if offset == size {
		return []byte{}, nil
	}
	if offset > size || offset+int64(length) > size {
		return nil, fmt.Errorf("read %s [%d,%d) past end %d: %w", p, offset, offset+int64(length), size, rpc.ErrInvalidArgument)
	}

	f, err := os.Open(s.localPath(p))
	if err != nil {
		return nil, fmt.Errorf("open %s: %v: %w", p, err, rpc.ErrIO)
	}
	defer f.Close()

	buf := make([]byte, length)
	n, err := f.ReadAt(buf, offset)
	if n < len(buf) && err != nil {
		return nil, fmt.Errorf("read %s: %v: %w", p, err, rpc.ErrIO)
	}
	return buf, nil
}

// Write stores data at offset, growing the file if needed. The gap
// between the old end and the offset, if any, is zero-filled.
func (s *Store) Write(p fspath.Path, offset int64, data []byte) error {
	if offset < 0 {
		return fmt.Errorf("write %s with offset %d: %w", p, offset, rpc.ErrInvalidArgument)
	}

	local := s.localPath(p)
	info, err := os.Stat(local)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%s is not a file: %w", p, rpc.ErrNotFound)
	}

	f, err := os.OpenFile(local, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open %s for writing: %v: %w", p, err, rpc.ErrIO)
	}
	defer f.Close()

	if _, err := f.WriteAt(data, offset); err != nil {
		return fmt.Errorf("write %s: %v: %w", p, err, rpc.ErrIO)
	}
	return nil
}

// Create makes an empty file, creating parent directories as needed.
func (s *Store) Create(p fspath.Path) (bool, error) {
	if p.IsRoot() {
		return false, nil
	}

	parent, err := p.Parent()
	if err != nil {
		return false, err
	}
	if err := os.MkdirAll(s.localPath(parent), 0o755); err != nil {
		return false, fmt.Errorf("create parents of %s: %v: %w", p, err, rpc.ErrIO)
	}

	f, err := os.OpenFile(s.localPath(p), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("create %s: %v: %w", p, err, rpc.ErrIO)
	}
	f.Close()
	return true, nil
}

// Delete removes the path, recursively for directories.
func (s *Store) Delete(p fspath.Path) (bool, error) {
	if p.IsRoot() {
		return false, nil
	}

	local := s.localPath(p)
	if _, err := os.Stat(local); err != nil {
		return false, nil
	}
	if err := os.RemoveAll(local); err != nil {
		return false, fmt.Errorf("delete %s: %v: %w", p, err, rpc.ErrIO)
	}
	return true, nil
}

// List returns the paths of all files below the root.
func (s *Store) List() ([]fspath.Path, error) {
	var files []fspath.Path

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		p, err := fspath.Parse("/" + filepath.ToSlash(rel))
		if err != nil {
			// Local names with reserved characters are not servable.
			return fmt.Errorf("local file %s: %w", rel, err)
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list content root: %v: %w", err, rpc.ErrIO)
	}
	return files, nil
}

// PruneEmptyDirs removes directories that contain no files, bottom-up,
// keeping the root itself.
func (s *Store) PruneEmptyDirs() error {
	// Collect directories in walk order (parents before children), then
	// visit them in reverse so children go before parents.
	var dirs []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && path != s.root {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan content root: %v: %w", err, rpc.ErrIO)
	}

	for i := len(dirs) - 1; i >= 0; i-- {
		entries, err := os.ReadDir(dirs[i])
		if err != nil {
			continue
		}
		if len(entries) == 0 {
			os.Remove(dirs[i])
		}
	}
	return nil
}
