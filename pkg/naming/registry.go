package naming

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/cubbit/meshfs/pkg/proto"
	"github.com/cubbit/meshfs/pkg/rpc"
)

// storageEntry pairs a storage identity with ready-made stubs for its
// two endpoints, so the coordinator never rebuilds them per call.
type storageEntry struct {
	id      proto.StorageID
	storage *proto.StorageStub
	command *proto.CommandStub
}

// registry is the set of known storage servers. A single mutex guards
// it; readers observe either the pre- or post-insert state of a
// concurrent registration.
type registry struct {
	mu      sync.Mutex
	entries []*storageEntry
	byID    map[proto.StorageID]*storageEntry
}

func newRegistry() *registry {
	return &registry{byID: make(map[proto.StorageID]*storageEntry)}
}

// add inserts a storage identity. Registering the same identity twice
// is an InvalidState error.
func (r *registry) add(id proto.StorageID) (*storageEntry, error) {
	storage, err := proto.NewStorageStub(id.Data)
	if err != nil {
		return nil, err
	}
	command, err := proto.NewCommandStub(id.Command)
	if err != nil {
		return nil, err
	}

	entry := &storageEntry{id: id, storage: storage, command: command}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; ok {
		return nil, fmt.Errorf("%s is already registered: %w", id, rpc.ErrInvalidState)
	}
	r.entries = append(r.entries, entry)
	r.byID[id] = entry
	return entry, nil
}

// snapshot copies the current entry list.
func (r *registry) snapshot() []*storageEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*storageEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// random returns one registered storage server chosen uniformly at
// random, or InvalidState when none is registered.
func (r *registry) random() (*storageEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) == 0 {
		return nil, fmt.Errorf("no storage servers registered: %w", rpc.ErrInvalidState)
	}
	return r.entries[rand.Intn(len(r.entries))], nil
}

// lookup resolves an identity to its entry.
func (r *registry) lookup(id proto.StorageID) (*storageEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byID[id]
	return entry, ok
}

// size returns the number of registered storage servers.
func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
