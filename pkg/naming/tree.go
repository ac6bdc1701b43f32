package naming

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/cubbit/meshfs/pkg/fspath"
	"github.com/cubbit/meshfs/pkg/proto"
	"github.com/cubbit/meshfs/pkg/rpc"
)

// node is one entry of the directory tree: a directory with children,
// or a file with a replica set. The tree owns its nodes exclusively;
// storage identities are plain values.
type node struct {
	name     string
	isFile   bool
	children map[string]*node
	replicas []proto.StorageID
}

func newDirNode(name string) *node {
	return &node{name: name, children: make(map[string]*node)}
}

func newFileNode(name string, id proto.StorageID) *node {
	return &node{name: name, isFile: true, replicas: []proto.StorageID{id}}
}

// tree is the in-memory directory tree. A single mutex guards all
// structural access; traversals are short and never block on anything
// but the mutex itself. Consistency between concurrent clients is the
// lock protocol's job, not the tree's.
type tree struct {
	mu   sync.Mutex
	root *node
}

func newTree() *tree {
	return &tree{root: newDirNode("")}
}

// resolve walks the tree without locking. Callers hold t.mu.
func (t *tree) resolve(p fspath.Path) *node {
	current := t.root
	for _, component := range p.Components() {
		if current.isFile {
			return nil
		}
		current = current.children[component]
		if current == nil {
			return nil
		}
	}
	return current
}

// exists reports whether the path resolves to any node.
func (t *tree) exists(p fspath.Path) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resolve(p) != nil
}

// isDirectory reports whether the path resolves to a directory.
func (t *tree) isDirectory(p fspath.Path) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.resolve(p)
	if n == nil {
		return false, fmt.Errorf("%s does not exist: %w", p, rpc.ErrNotFound)
	}
	return !n.isFile, nil
}

// isFile reports whether the path resolves to a file.
func (t *tree) isFile(p fspath.Path) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.resolve(p)
	return n != nil && n.isFile
}

// list snapshots the child names of a directory.
func (t *tree) list(p fspath.Path) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.resolve(p)
	if n == nil || n.isFile {
		return nil, fmt.Errorf("%s is not a directory: %w", p, rpc.ErrNotFound)
	}

	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	return names, nil
}

// insertFile adds a file node at p hosted by id, creating intermediate
// directories. It fails if anything exists at p or if an intermediate
// component resolves to a file.
func (t *tree) insertFile(p fspath.Path, id proto.StorageID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.insertFileLocked(p, id)
}

func (t *tree) insertFileLocked(p fspath.Path, id proto.StorageID) error {
	if p.IsRoot() {
		return fmt.Errorf("cannot create a file at the root: %w", rpc.ErrInvalidArgument)
	}

	components := p.Components()
	current := t.root
	for _, component := range components[:len(components)-1] {
		child := current.children[component]
		if child == nil {
			child = newDirNode(component)
			current.children[component] = child
		}
		if child.isFile {
			return fmt.Errorf("%s crosses a file: %w", p, rpc.ErrNotFound)
		}
		current = child
	}

	leaf := components[len(components)-1]
	if current.children[leaf] != nil {
		return fmt.Errorf("%s already exists: %w", p, rpc.ErrInvalidState)
	}
	current.children[leaf] = newFileNode(leaf, id)
	return nil
}

// createFile inserts a file node under an existing parent directory.
// It returns false when anything already exists at p.
func (t *tree) createFile(p fspath.Path, id proto.StorageID) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p.IsRoot() {
		return false, nil
	}

	parent, err := p.Parent()
	if err != nil {
		return false, err
	}
	parentNode := t.resolve(parent)
	if parentNode == nil || parentNode.isFile {
		return false, fmt.Errorf("parent of %s is not a directory: %w", p, rpc.ErrNotFound)
	}

	leaf, err := p.Last()
	if err != nil {
		return false, err
	}
	if parentNode.children[leaf] != nil {
		return false, nil
	}

	parentNode.children[leaf] = newFileNode(leaf, id)
	return true, nil
}

// createDirectory inserts a directory node under an existing parent
// directory. It returns false when anything already exists at p.
func (t *tree) createDirectory(p fspath.Path) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p.IsRoot() {
		return false, nil
	}

	parent, err := p.Parent()
	if err != nil {
		return false, err
	}
	parentNode := t.resolve(parent)
	if parentNode == nil || parentNode.isFile {
		return false, fmt.Errorf("parent of %s is not a directory: %w", p, rpc.ErrNotFound)
	}

	leaf, err := p.Last()
	if err != nil {
		return false, err
	}
	if parentNode.children[leaf] != nil {
		return false, nil
	}

	parentNode.children[leaf] = newDirNode(leaf)
	return true, nil
}

// remove detaches the node at p from its parent. Removing the root
// fails.
func (t *tree) remove(p fspath.Path) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p.IsRoot() {
		return fmt.Errorf("cannot remove the root: %w", rpc.ErrInvalidArgument)
	}

	parent, err := p.Parent()
	if err != nil {
		return err
	}
	parentNode := t.resolve(parent)
	if parentNode == nil || parentNode.isFile {
		return fmt.Errorf("%s does not exist: %w", p, rpc.ErrNotFound)
	}

	leaf, err := p.Last()
	if err != nil {
		return err
	}
	if parentNode.children[leaf] == nil {
		return fmt.Errorf("%s does not exist: %w", p, rpc.ErrNotFound)
	}

	delete(parentNode.children, leaf)
	return nil
}

// replicas snapshots the replica set of a file.
func (t *tree) replicas(p fspath.Path) ([]proto.StorageID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.resolve(p)
	if n == nil || !n.isFile {
		return nil, fmt.Errorf("%s is not a file: %w", p, rpc.ErrNotFound)
	}

	out := make([]proto.StorageID, len(n.replicas))
	copy(out, n.replicas)
	return out, nil
}

// randomReplica returns one hosting identity chosen uniformly at
// random.
func (t *tree) randomReplica(p fspath.Path) (proto.StorageID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.resolve(p)
	if n == nil || !n.isFile {
		return proto.StorageID{}, fmt.Errorf("%s is not a file: %w", p, rpc.ErrNotFound)
	}
	if len(n.replicas) == 0 {
		return proto.StorageID{}, fmt.Errorf("%s has no replicas: %w", p, rpc.ErrInvalidState)
	}
	return n.replicas[rand.Intn(len(n.replicas))], nil
}

// addReplica records an additional hosting identity for a file.
func (t *tree) addReplica(p fspath.Path, id proto.StorageID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.resolve(p)
	if n == nil || !n.isFile {
		return fmt.Errorf("%s is not a file: %w", p, rpc.ErrNotFound)
	}

	for _, existing := range n.replicas {
		if existing == id {
			return nil
		}
	}
	n.replicas = append(n.replicas, id)
	return nil
}

// removeReplica drops a hosting identity from a file's replica set.
func (t *tree) removeReplica(p fspath.Path, id proto.StorageID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.resolve(p)
	if n == nil || !n.isFile {
		return fmt.Errorf("%s is not a file: %w", p, rpc.ErrNotFound)
	}

	for i, existing := range n.replicas {
		if existing == id {
			n.replicas = append(n.replicas[:i], n.replicas[i+1:]...)
			return nil
		}
	}
	return nil
}
