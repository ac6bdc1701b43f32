package naming

import (
	"context"
	"sync"

	"github.com/cubbit/meshfs/internal/logger"
	"github.com/cubbit/meshfs/internal/ratelimiter"
)

// workerPool runs replication and invalidation tasks on a fixed set of
// goroutines instead of one goroutine per lock event, so a read storm
// cannot exhaust the process.
type workerPool struct {
	tasks   chan func(context.Context)
	limiter *ratelimiter.RateLimiter
	size    int
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

const workerQueueDepth = 1024

func newWorkerPool(size int, limiter *ratelimiter.RateLimiter) *workerPool {
	if size <= 0 {
		size = 4
	}
	return &workerPool{
		tasks:   make(chan func(context.Context), workerQueueDepth),
		limiter: limiter,
		size:    size,
	}
}

// start launches the workers under the given context. Tasks observe
// cancellation through the context they receive.
func (p *workerPool) start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(p.size)
	for i := 0; i < p.size; i++ {
		go p.run(ctx)
	}
}

func (p *workerPool) run(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-p.tasks:
			if p.limiter != nil {
				if err := p.limiter.Wait(ctx); err != nil {
					return
				}
			}
			task(ctx)
		}
	}
}

// dispatch enqueues a task. When the queue is full the task runs on
// its own goroutine rather than blocking the lock path.
func (p *workerPool) dispatch(ctx context.Context, task func(context.Context)) {
	select {
	case p.tasks <- task:
	default:
		logger.Debug("Worker queue full, running task on its own goroutine")
		go task(ctx)
	}
}

// stop cancels the workers and waits for them to exit. Queued tasks
// that have not started are dropped.
func (p *workerPool) stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}
