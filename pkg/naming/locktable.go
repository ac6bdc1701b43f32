package naming

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cubbit/meshfs/pkg/fspath"
	"github.com/cubbit/meshfs/pkg/rpc"
)

// lockHooks let the coordinator observe lock events on the chain's
// target. They fire while no table-internal mutex is held.
type lockHooks struct {
	// sharedAcquired runs after the target has been acquired in shared
	// mode.
	sharedAcquired func(p fspath.Path)

	// exclusiveRequested runs just before the caller blocks on the
	// target's exclusive lock, so a task dispatched here serializes
	// behind the caller.
	exclusiveRequested func(p fspath.Path)
}

// lockTable maps paths to their lock records. Records are created on
// first use and live for the table's lifetime, so a path can be
// unlocked through the same record that locked it even after the tree
// node is gone.
type lockTable struct {
	mu      sync.Mutex
	records map[string]*pathLock
	hooks   lockHooks
}

func newLockTable(hooks lockHooks) *lockTable {
	return &lockTable{
		records: make(map[string]*pathLock),
		hooks:   hooks,
	}
}

func (t *lockTable) record(p fspath.Path) *pathLock {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := p.String()
	l, ok := t.records[key]
	if !ok {
		l = newPathLock()
		t.records[key] = l
	}
	return l
}

// chain returns the path and all of its strict ancestors, sorted into
// the global path order so every caller acquires them identically.
func chain(p fspath.Path) []fspath.Path {
	paths := []fspath.Path{p}
	for q := p; !q.IsRoot(); {
		parent, _ := q.Parent()
		paths = append(paths, parent)
		q = parent
	}

	sort.Slice(paths, func(i, j int) bool {
		return paths[i].Compare(paths[j]) < 0
	})
	return paths
}

// lock acquires the chain of p: ancestors shared, p itself shared or
// exclusive. If the wait is cancelled part-way, every lock already
// acquired is released and the caller holds nothing.
func (t *lockTable) lock(ctx context.Context, p fspath.Path, exclusive bool) error {
	return t.lockChain(ctx, p, exclusive, true)
}

// lockInternal is lock without the replication hooks. The replication
// and invalidation tasks acquire through it: their own acquisitions
// must not count as client accesses or dispatch further tasks.
func (t *lockTable) lockInternal(ctx context.Context, p fspath.Path, exclusive bool) error {
	return t.lockChain(ctx, p, exclusive, false)
}

func (t *lockTable) lockChain(ctx context.Context, p fspath.Path, exclusive, withHooks bool) error {
	paths := chain(p)

	for i, q := range paths {
		target := i == len(paths)-1

		var err error
		if target && exclusive {
			if withHooks && t.hooks.exclusiveRequested != nil {
				t.hooks.exclusiveRequested(q)
			}
			err = t.record(q).lockWrite(ctx)
		} else {
			err = t.record(q).lockRead(ctx)
		}

		if err != nil {
			// Unwind the prefix acquired so far, deepest first.
			for j := i - 1; j >= 0; j-- {
				t.record(paths[j]).unlockRead()
			}
			return fmt.Errorf("lock %s: %w", p, rpc.ErrCancelled)
		}

		if target && !exclusive && withHooks && t.hooks.sharedAcquired != nil {
			t.hooks.sharedAcquired(q)
		}
	}
	return nil
}

// unlock releases the chain of p in reverse acquisition order.
func (t *lockTable) unlock(p fspath.Path, exclusive bool) {
	paths := chain(p)

	for i := len(paths) - 1; i >= 0; i-- {
		if i == len(paths)-1 && exclusive {
			t.record(paths[i]).unlockWrite()
		} else {
			t.record(paths[i]).unlockRead()
		}
	}
}
