package dispatch

import (
    "context"
    "sync/atomic"

    "golang.org/x/sync/semaphore"

    "github.com/example/cacheproxy/internal/metrics"
)

// Handler processes one dequeued connection. It owns closing conn.Conn
// when it is done, regardless of outcome.
type Handler func(ctx context.Context, item Item, scratch []byte)

// Pool is the fixed-size worker pool plus its bounded work queue and
// the idle/request counting semaphores gating admission, grounded on
// original_source/proxy/proxy.c's worker()/main() pairing.
type Pool struct {
    size         int
    scratchBytes int

    q       *queue
    idleSem *semaphore.Weighted // available idle worker slots
    reqSem  *semaphore.Weighted // queued-but-unprocessed requests

    handler Handler
    m       *metrics.Metrics

    idleCount int64 // atomic, mirrors idleSem's value for metrics only
}

// NewPool builds a pool of size workers sharing a queue of the same
// capacity, each with a scratchBytes-sized reusable buffer. m may be
// nil when metrics are not wired (e.g. in tests).
func NewPool(size, scratchBytes int, handler Handler, m *metrics.Metrics) *Pool {
    idleSem := semaphore.NewWeighted(int64(size))
    reqSem := semaphore.NewWeighted(int64(size))
    // POSIX sem_init(&sem, 0, 0) starts both semaphores empty; drain
    // the full starting weight to match, since Weighted otherwise
    // starts fully available.
    _ = idleSem.Acquire(context.Background(), int64(size))
    _ = reqSem.Acquire(context.Background(), int64(size))

    return &Pool{
        size:         size,
        scratchBytes: scratchBytes,
        q:            newQueue(size),
        idleSem:      idleSem,
        reqSem:       reqSem,
        handler:      handler,
        m:            m,
    }
}

// Start launches the pool's workers, each running until ctx is
// cancelled. The process lifetime owns them; Start does not block.
func (p *Pool) Start(ctx context.Context) {
    for i := 0; i < p.size; i++ {
        go p.runWorker(ctx)
    }
}

// runWorker is a single worker's loop: signal idle, wait for work,
// dequeue, run the handler, repeat. It never returns except when ctx
// is cancelled, matching the original's never-exits worker thread.
func (p *Pool) runWorker(ctx context.Context) {
    scratch := make([]byte, p.scratchBytes)

    for {
        p.idleSem.Release(1)
        n := atomic.AddInt64(&p.idleCount, 1)
        if p.m != nil {
            p.m.SetIdleWorkers(int(n))
        }

        if err := p.reqSem.Acquire(ctx, 1); err != nil {
            return
        }
        n = atomic.AddInt64(&p.idleCount, -1)
        if p.m != nil {
            p.m.SetIdleWorkers(int(n))
        }

        item := p.q.pop()
        if p.m != nil {
            p.m.SetQueueDepth(p.q.depth())
        }

        p.handler(ctx, item, scratch)
    }
}

// Submit is called by the acceptor once per accepted connection: it
// blocks until an idle worker is available, pushes item onto the
// queue, then signals a worker to pick it up. The capacity of the
// underlying queue equals the pool size, so idleSem gating it is what
// guarantees push never overflows the ring buffer.
func (p *Pool) Submit(ctx context.Context, item Item) error {
    if err := p.idleSem.Acquire(ctx, 1); err != nil {
        return err
    }

    p.q.push(item)
    if p.m != nil {
        p.m.SetQueueDepth(p.q.depth())
    }

    p.reqSem.Release(1)
    return nil
}
