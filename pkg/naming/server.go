// Package naming implements the MeshFS naming server: the single
// process that owns the directory tree, the storage registry, and the
// path lock table, and that coordinates replication and invalidation
// across storage servers.
package naming

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cubbit/meshfs/internal/logger"
	"github.com/cubbit/meshfs/internal/ratelimiter"
	"github.com/cubbit/meshfs/pkg/fspath"
	"github.com/cubbit/meshfs/pkg/metrics"
	"github.com/cubbit/meshfs/pkg/proto"
	"github.com/cubbit/meshfs/pkg/rpc"
)

// DefaultReplicationThreshold is the number of shared-lock
// acquisitions of a file that triggers replication.
const DefaultReplicationThreshold = 20

// Config holds the naming server's listen and tuning settings.
type Config struct {
	// ServiceAddr and RegistrationAddr are the listen addresses of the
	// two interfaces. Empty means an ephemeral port.
	ServiceAddr      string
	RegistrationAddr string

	// ReplicationThreshold overrides DefaultReplicationThreshold when
	// positive.
	ReplicationThreshold int

	// WorkerPoolSize bounds the goroutines running replication and
	// invalidation tasks.
	WorkerPoolSize int

	// WorkerRate and WorkerBurst throttle task execution. Zero rate
	// means unlimited.
	WorkerRate  uint
	WorkerBurst uint
}

// Server is the naming coordinator. It implements proto.Service for
// clients and proto.Registration for storage servers, each exposed by
// its own skeleton on its own port.
type Server struct {
	cfg Config

	tree     *tree
	registry *registry
	locks    *lockTable
	counters *accessCounters
	pool     *workerPool

	serviceSkeleton      *rpc.Skeleton
	registrationSkeleton *rpc.Skeleton

	// Stopped, when set, is invoked once after both skeletons have shut
	// down. The cause is nil for an explicit Stop.
	Stopped func(error)

	mu          sync.Mutex
	started     bool
	ctx         context.Context
	cancel      context.CancelFunc
	stopped     map[*rpc.Skeleton]bool
	stoppedOnce *sync.Once
}

// New creates a naming server. Nothing is bound until Start.
func New(cfg Config) (*Server, error) {
	if cfg.ReplicationThreshold <= 0 {
		cfg.ReplicationThreshold = DefaultReplicationThreshold
	}

	s := &Server{
		cfg:      cfg,
		tree:     newTree(),
		registry: newRegistry(),
		counters: newAccessCounters(),
		pool:     newWorkerPool(cfg.WorkerPoolSize, ratelimiter.New(cfg.WorkerRate, cfg.WorkerBurst)),
	}

	s.locks = newLockTable(lockHooks{
		sharedAcquired:     s.onSharedAcquired,
		exclusiveRequested: s.onExclusiveRequested,
	})

	var err error
	s.serviceSkeleton, err = proto.NewServiceSkeleton(s, cfg.ServiceAddr)
	if err != nil {
		return nil, err
	}
	s.registrationSkeleton, err = proto.NewRegistrationSkeleton(s, cfg.RegistrationAddr)
	if err != nil {
		return nil, err
	}

	s.serviceSkeleton.Stopped = func(cause error) { s.skeletonStopped(s.serviceSkeleton, cause) }
	s.registrationSkeleton.Stopped = func(cause error) { s.skeletonStopped(s.registrationSkeleton, cause) }

	return s, nil
}

// Start binds both interfaces and launches the worker pool. The
// context governs every lock wait and background task: cancelling it
// interrupts waiters and begins shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("naming server already started: %w", rpc.ErrInvalidState)
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.stopped = make(map[*rpc.Skeleton]bool)
	s.stoppedOnce = &sync.Once{}
	s.mu.Unlock()

	var g errgroup.Group
	g.Go(s.serviceSkeleton.Start)
	g.Go(s.registrationSkeleton.Start)
	if err := g.Wait(); err != nil {
		s.serviceSkeleton.Stop()
		s.registrationSkeleton.Stop()
		s.markStopped()
		return err
	}

	s.pool.start(s.ctx)

	logger.Info("Naming server up: service=%s registration=%s",
		s.serviceSkeleton.Addr(), s.registrationSkeleton.Addr())
	return nil
}

// Stop interrupts lock waiters, shuts both skeletons down, and stops
// the worker pool. In-flight requests drain before Stop returns.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.mu.Unlock()

	// Waiters must observe cancellation before the skeletons wait for
	// their in-flight requests, or Stop would deadlock on a blocked
	// Lock call.
	cancel()

	s.serviceSkeleton.Stop()
	s.registrationSkeleton.Stop()
	s.pool.stop()
	s.markStopped()
}

func (s *Server) markStopped() {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
}

// skeletonStopped fires the server-level Stopped hook once both
// skeletons are down.
func (s *Server) skeletonStopped(sk *rpc.Skeleton, cause error) {
	s.mu.Lock()
	if s.stopped == nil {
		s.mu.Unlock()
		return
	}
	s.stopped[sk] = true
	both := s.stopped[s.serviceSkeleton] && s.stopped[s.registrationSkeleton]
	once := s.stoppedOnce
	s.mu.Unlock()

	if both && once != nil {
		once.Do(func() {
			if s.Stopped != nil {
				s.Stopped(cause)
			}
		})
	}
}

// ServiceAddr returns the bound address of the client service.
func (s *Server) ServiceAddr() string {
	return s.serviceSkeleton.Addr()
}

// RegistrationAddr returns the bound address of the registration
// service.
func (s *Server) RegistrationAddr() string {
	return s.registrationSkeleton.Addr()
}

func (s *Server) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil {
		return s.ctx
	}
	return context.Background()
}

// Lock implements proto.Service. A cancelled wait (server shutdown)
// collapses to a no-op return: the caller holds nothing and sees no
// error.
func (s *Server) Lock(path fspath.Path, exclusive bool) error {
	if !s.tree.exists(path) {
		return fmt.Errorf("%s does not exist: %w", path, rpc.ErrNotFound)
	}

	if err := s.locks.lock(s.baseContext(), path, exclusive); err != nil {
		logger.Debug("Lock of %s interrupted: %v", path, err)
	}
	return nil
}

// Unlock implements proto.Service.
func (s *Server) Unlock(path fspath.Path, exclusive bool) error {
	if !s.tree.exists(path) {
		return fmt.Errorf("%s does not exist: %w", path, rpc.ErrInvalidArgument)
	}

	s.locks.unlock(path, exclusive)
	return nil
}

// IsDirectory implements proto.Service.
func (s *Server) IsDirectory(path fspath.Path) (bool, error) {
	dir, err := s.tree.isDirectory(path)
	s.countOp("is_directory", err)
	return dir, err
}

// List implements proto.Service. The shared lock makes the snapshot
// consistent: no concurrent mutation of the directory can be half
// visible.
func (s *Server) List(dir fspath.Path) ([]string, error) {
	if isDir, err := s.tree.isDirectory(dir); err != nil {
		s.countOp("list", err)
		return nil, err
	} else if !isDir {
		err := fmt.Errorf("%s is not a directory: %w", dir, rpc.ErrNotFound)
		s.countOp("list", err)
		return nil, err
	}

	if err := s.locks.lock(s.baseContext(), dir, false); err != nil {
		return nil, nil
	}
	defer s.locks.unlock(dir, false)

	names, err := s.tree.list(dir)
	s.countOp("list", err)
	return names, err
}

// CreateFile implements proto.Service. The file is materialized on one
// storage server chosen uniformly at random before the tree node
// appears, so a visible file is always readable somewhere.
func (s *Server) CreateFile(path fspath.Path) (bool, error) {
	if path.IsRoot() {
		return false, nil
	}

	parent, err := path.Parent()
	if err != nil {
		return false, err
	}
	if dir, err := s.tree.isDirectory(parent); err != nil {
		s.countOp("create_file", err)
		return false, err
	} else if !dir {
		err := fmt.Errorf("parent of %s is not a directory: %w", path, rpc.ErrNotFound)
		s.countOp("create_file", err)
		return false, err
	}

	if s.tree.exists(path) {
		return false, nil
	}

	entry, err := s.registry.random()
	if err != nil {
		s.countOp("create_file", err)
		return false, err
	}

	if _, err := entry.command.Create(path); err != nil {
		s.countOp("create_file", err)
		return false, fmt.Errorf("create %s on %s: %w", path, entry.id, err)
	}

	created, err := s.tree.createFile(path, entry.id)
	s.countOp("create_file", err)
	return created, err
}

// CreateDirectory implements proto.Service.
func (s *Server) CreateDirectory(path fspath.Path) (bool, error) {
	if path.IsRoot() {
		return false, nil
	}

	parent, err := path.Parent()
	if err != nil {
		return false, err
	}
	if dir, err := s.tree.isDirectory(parent); err != nil {
		s.countOp("create_directory", err)
		return false, err
	} else if !dir {
		err := fmt.Errorf("parent of %s is not a directory: %w", path, rpc.ErrNotFound)
		s.countOp("create_directory", err)
		return false, err
	}

	created, err := s.tree.createDirectory(path)
	s.countOp("create_directory", err)
	return created, err
}

// Delete implements proto.Service. The tree entry goes away even when
// a storage server fails its delete; the failure is reported through
// the returned boolean so callers can retry cleanup, but the namespace
// never keeps entries for known-failed storage.
func (s *Server) Delete(path fspath.Path) (bool, error) {
	if path.IsRoot() {
		return false, nil
	}
	if !s.tree.exists(path) {
		err := fmt.Errorf("%s does not exist: %w", path, rpc.ErrNotFound)
		s.countOp("delete", err)
		return false, err
	}

	if err := s.locks.lock(s.baseContext(), path, true); err != nil {
		return false, nil
	}
	defer s.locks.unlock(path, true)

	// Re-check under the lock; a concurrent delete may have won.
	isDir, err := s.tree.isDirectory(path)
	if err != nil {
		s.countOp("delete", err)
		return false, err
	}

	status := true
	if isDir {
		// Directories may have files anywhere below them on any
		// storage server; enumerating would be expensive, so every
		// registered server gets the delete.
		for _, entry := range s.registry.snapshot() {
			ok, err := entry.command.Delete(path)
			if err != nil {
				logger.Warn("Delete %s on %s failed: %v", path, entry.id, err)
				status = false
			} else if !ok {
				status = false
			}
		}
	} else {
		replicas, err := s.tree.replicas(path)
		if err != nil {
			s.countOp("delete", err)
			return false, err
		}
		for _, id := range replicas {
			ok, err := s.commandFor(id).Delete(path)
			if err != nil {
				logger.Warn("Delete %s on %s failed: %v", path, id, err)
				status = false
			} else if !ok {
				status = false
			}
		}
	}

	if err := s.tree.remove(path); err != nil {
		s.countOp("delete", err)
		return false, err
	}

	s.countOp("delete", nil)
	return status, nil
}

// GetStorage implements proto.Service.
func (s *Server) GetStorage(path fspath.Path) (proto.StorageID, error) {
	id, err := s.tree.randomReplica(path)
	s.countOp("get_storage", err)
	return id, err
}

// Register implements proto.Registration. The identity is committed
// before the file walk, so a crash mid-walk never loses the
// registration itself.
func (s *Server) Register(id proto.StorageID, files []fspath.Path) ([]fspath.Path, error) {
	if _, err := s.registry.add(id); err != nil {
		metrics.Registrations.WithLabelValues("rejected").Inc()
		return nil, err
	}

	duplicates := []fspath.Path{}
	for _, p := range files {
		if p.IsRoot() {
			continue
		}
		if s.tree.exists(p) {
			duplicates = append(duplicates, p)
			continue
		}
		if err := s.tree.insertFile(p, id); err != nil {
			// The path crosses an existing file; the storage server
			// cannot host it, so have it dropped like a duplicate.
			logger.Warn("Cannot adopt %s from %s: %v", p, id, err)
			duplicates = append(duplicates, p)
		}
	}

	metrics.Registrations.WithLabelValues("accepted").Inc()
	logger.Info("Registered %s: %d file(s), %d duplicate(s)", id, len(files), len(duplicates))
	return duplicates, nil
}

// commandFor resolves a replica identity to a command stub, reusing
// the registry's stub when the identity is registered.
func (s *Server) commandFor(id proto.StorageID) *proto.CommandStub {
	if entry, ok := s.registry.lookup(id); ok {
		return entry.command
	}
	stub, err := proto.NewCommandStub(id.Command)
	if err != nil {
		// Identity endpoints were validated at registration; an
		// unresolvable one here means the registry and tree diverged.
		panic(fmt.Sprintf("replica %s has no usable command endpoint: %v", id, err))
	}
	return stub
}

func (s *Server) countOp(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.NamingOperations.WithLabelValues(op, outcome).Inc()
}

// onSharedAcquired is the lock-table hook for shared acquisitions of a
// chain target. Reads of files feed the access counter; reaching the
// threshold dispatches a replication task.
func (s *Server) onSharedAcquired(p fspath.Path) {
	if !s.tree.isFile(p) {
		return
	}

	if s.counters.bump(p) >= s.cfg.ReplicationThreshold {
		s.pool.dispatch(s.baseContext(), func(ctx context.Context) {
			s.replicate(ctx, p)
		})
	}
}

// onExclusiveRequested is the lock-table hook fired before a writer
// queues on a file. The invalidation task dispatched here acquires the
// same lock itself, so it runs after the writer releases.
func (s *Server) onExclusiveRequested(p fspath.Path) {
	if !s.tree.isFile(p) {
		return
	}

	s.pool.dispatch(s.baseContext(), func(ctx context.Context) {
		s.invalidate(ctx, p)
	})
}

// replicate copies a heavily read file onto one more storage server.
// Errors are swallowed: replication is best effort and the trigger is
// restored so it fires again.
func (s *Server) replicate(ctx context.Context, p fspath.Path) {
	count := s.counters.take(p)
	if count < s.cfg.ReplicationThreshold {
		return
	}

	if err := s.locks.lockInternal(ctx, p, false); err != nil {
		return
	}
	defer s.locks.unlock(p, false)

	replicas, err := s.tree.replicas(p)
	if err != nil {
		// Deleted between dispatch and acquisition.
		return
	}

	hosting := make(map[proto.StorageID]bool, len(replicas))
	for _, id := range replicas {
		hosting[id] = true
	}

	var candidates []*storageEntry
	for _, entry := range s.registry.snapshot() {
		if !hosting[entry.id] {
			candidates = append(candidates, entry)
		}
	}
	if len(candidates) == 0 {
		metrics.Replications.WithLabelValues("skipped").Inc()
		return
	}

	target := candidates[rand.Intn(len(candidates))]
	source := replicas[rand.Intn(len(replicas))]

	ok, err := target.command.Copy(p, source.Data)
	if err != nil || !ok {
		logger.Debug("Replication of %s to %s failed: %v", p, target.id, err)
		metrics.Replications.WithLabelValues("failed").Inc()
		s.counters.restore(p, count)
		return
	}

	if err := s.tree.addReplica(p, target.id); err != nil {
		metrics.Replications.WithLabelValues("failed").Inc()
		return
	}

	s.counters.take(p)
	metrics.Replications.WithLabelValues("copied").Inc()
	logger.Debug("Replicated %s to %s", p, target.id)
}

// invalidate prunes a written file back to a single replica so stale
// copies never serve reads. Errors are swallowed; the counter is
// cleared so the next read cycle starts fresh.
func (s *Server) invalidate(ctx context.Context, p fspath.Path) {
	s.counters.take(p)

	if err := s.locks.lockInternal(ctx, p, true); err != nil {
		return
	}
	defer s.locks.unlock(p, true)

	replicas, err := s.tree.replicas(p)
	if err != nil {
		// Deleted between dispatch and acquisition.
		return
	}
	if len(replicas) <= 1 {
		metrics.Invalidations.WithLabelValues("skipped").Inc()
		return
	}

	keep := replicas[rand.Intn(len(replicas))]
	for _, id := range replicas {
		if id == keep {
			continue
		}
		if _, err := s.commandFor(id).Delete(p); err != nil {
			logger.Debug("Invalidation delete of %s on %s failed: %v", p, id, err)
		}
		if err := s.tree.removeReplica(p, id); err != nil {
			return
		}
	}

	s.counters.take(p)
	metrics.Invalidations.WithLabelValues("pruned").Inc()
	logger.Debug("Invalidated %s down to %s", p, keep)
}
