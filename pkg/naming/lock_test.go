package naming

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubbit/meshfs/pkg/fspath"
	"github.com/cubbit/meshfs/pkg/rpc"
)

func TestPathLockSharedReaders(t *testing.T) {
	l := newPathLock()
	ctx := context.Background()

	require.NoError(t, l.lockRead(ctx))
	require.NoError(t, l.lockRead(ctx))
	assert.Equal(t, 2, l.readers)

	l.unlockRead()
	l.unlockRead()
	assert.Equal(t, 0, l.readers)
}

func TestPathLockWriterExcludesReaders(t *testing.T) {
	l := newPathLock()
	ctx := context.Background()

	require.NoError(t, l.lockWrite(ctx))

	acquired := make(chan struct{})
	go func() {
		if l.lockRead(ctx) == nil {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("reader acquired while writer held the lock")
	case <-time.After(50 * time.Millisecond):
	}

	l.unlockWrite()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("reader never acquired after writer released")
	}
}

func TestPathLockWritePreference(t *testing.T) {
	l := newPathLock()
	ctx := context.Background()

	// A reader holds the lock; a writer queues behind it.
	require.NoError(t, l.lockRead(ctx))

	writerIn := make(chan struct{})
	go func() {
		if l.lockWrite(ctx) == nil {
			close(writerIn)
		}
	}()

	// Wait for the write request to register.
	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.writeRequests == 1
	}, time.Second, time.Millisecond)

	// A new reader must now block even though only readers hold the
	// lock: the queued writer goes first.
	readerIn := make(chan struct{})
	go func() {
		if l.lockRead(ctx) == nil {
			close(readerIn)
		}
	}()

	select {
	case <-readerIn:
		t.Fatal("reader jumped the queued writer")
	case <-time.After(50 * time.Millisecond):
	}

	l.unlockRead()
	<-writerIn

	select {
	case <-readerIn:
		t.Fatal("reader acquired while writer held the lock")
	case <-time.After(50 * time.Millisecond):
	}

	l.unlockWrite()
	<-readerIn
}

func TestPathLockCancelledWriterUnblocksReaders(t *testing.T) {
	l := newPathLock()
	ctx := context.Background()

	require.NoError(t, l.lockRead(ctx))

	cancelCtx, cancel := context.WithCancel(ctx)
	writerErr := make(chan error, 1)
	go func() {
		writerErr <- l.lockWrite(cancelCtx)
	}()

	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.writeRequests == 1
	}, time.Second, time.Millisecond)

	cancel()
	require.Error(t, <-writerErr)

	// The withdrawn request no longer blocks new readers.
	require.NoError(t, l.lockRead(ctx))
	l.unlockRead()
	l.unlockRead()
}

func newTestLockTable() *lockTable {
	return newLockTable(lockHooks{})
}

func TestChainOrder(t *testing.T) {
	paths := chain(fspath.MustParse("/a/b/c"))

	got := make([]string, len(paths))
	for i, p := range paths {
		got[i] = p.String()
	}
	assert.Equal(t, []string{"/", "/a", "/a/b", "/a/b/c"}, got)
}

func TestLockTableSiblingsConcurrent(t *testing.T) {
	table := newTestLockTable()
	ctx := context.Background()

	// Two exclusive locks on siblings coexist: only their shared
	// ancestors overlap.
	require.NoError(t, table.lock(ctx, fspath.MustParse("/a/b"), true))
	require.NoError(t, table.lock(ctx, fspath.MustParse("/a/c"), true))

	table.unlock(fspath.MustParse("/a/b"), true)
	table.unlock(fspath.MustParse("/a/c"), true)
}

func TestLockTableAncestorWaitsForDescendants(t *testing.T) {
	table := newTestLockTable()
	ctx := context.Background()

	// Clients A and B hold exclusive locks on two siblings; client C
	// wants their parent exclusively and must wait for both.
	require.NoError(t, table.lock(ctx, fspath.MustParse("/a/b"), true))
	require.NoError(t, table.lock(ctx, fspath.MustParse("/a/c"), true))

	cIn := make(chan struct{})
	go func() {
		if table.lock(ctx, fspath.MustParse("/a"), true) == nil {
			close(cIn)
		}
	}()

	select {
	case <-cIn:
		t.Fatal("parent lock acquired while children were exclusively held")
	case <-time.After(50 * time.Millisecond):
	}

	table.unlock(fspath.MustParse("/a/b"), true)

	select {
	case <-cIn:
		t.Fatal("parent lock acquired while one child was still held")
	case <-time.After(50 * time.Millisecond):
	}

	table.unlock(fspath.MustParse("/a/c"), true)

	select {
	case <-cIn:
	case <-time.After(time.Second):
		t.Fatal("parent lock never acquired after children released")
	}

	table.unlock(fspath.MustParse("/a"), true)

	// Nothing remains blocked: a fresh exclusive lock on the root
	// chain succeeds immediately.
	require.NoError(t, table.lock(ctx, fspath.MustParse("/a"), true))
	table.unlock(fspath.MustParse("/a"), true)
}

func TestLockTableCancelUnwindsPrefix(t *testing.T) {
	table := newTestLockTable()
	ctx := context.Background()

	// Hold /a/b exclusively so a second exclusive chain on the same
	// path blocks on its target after acquiring the ancestors.
	require.NoError(t, table.lock(ctx, fspath.MustParse("/a/b"), true))

	cancelCtx, cancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() {
		errCh <- table.lock(cancelCtx, fspath.MustParse("/a/b"), true)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	err := <-errCh
	require.ErrorIs(t, err, rpc.ErrCancelled)

	table.unlock(fspath.MustParse("/a/b"), true)

	// The cancelled attempt must have released its ancestor locks: an
	// exclusive lock on the root succeeds.
	require.NoError(t, table.lock(ctx, fspath.Root(), true))
	table.unlock(fspath.Root(), true)
}

func TestLockTableStress(t *testing.T) {
	table := newTestLockTable()
	ctx := context.Background()

	paths := []fspath.Path{
		fspath.MustParse("/a"),
		fspath.MustParse("/a/b"),
		fspath.MustParse("/a/b/c"),
		fspath.MustParse("/a/d"),
		fspath.MustParse("/e"),
	}

	var ops atomic.Int64
	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				p := paths[(worker+i)%len(paths)]
				exclusive := (worker+i)%3 == 0
				if table.lock(ctx, p, exclusive) != nil {
					return
				}
				ops.Add(1)
				table.unlock(p, exclusive)
			}
		}(worker)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		assert.EqualValues(t, 8*200, ops.Load())
	case <-time.After(10 * time.Second):
		t.Fatal("lock stress did not finish: possible deadlock")
	}
}

func TestHooksFireOnTarget(t *testing.T) {
	var shared, exclusive []string
	var mu sync.Mutex

	table := newLockTable(lockHooks{
		sharedAcquired: func(p fspath.Path) {
			mu.Lock()
			shared = append(shared, p.String())
			mu.Unlock()
		},
		exclusiveRequested: func(p fspath.Path) {
			mu.Lock()
			exclusive = append(exclusive, p.String())
			mu.Unlock()
		},
	})
	ctx := context.Background()

	require.NoError(t, table.lock(ctx, fspath.MustParse("/a/b"), false))
	table.unlock(fspath.MustParse("/a/b"), false)

	require.NoError(t, table.lock(ctx, fspath.MustParse("/a/b"), true))
	table.unlock(fspath.MustParse("/a/b"), true)

	// Internal acquisitions stay invisible to the hooks.
	require.NoError(t, table.lockInternal(ctx, fspath.MustParse("/a/b"), false))
	table.unlock(fspath.MustParse("/a/b"), false)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/a/b"}, shared, "only the target fires the shared hook")
	assert.Equal(t, []string{"/a/b"}, exclusive)
}
