package dispatch

import (
    "context"
    "net"
    "sync"
    "sync/atomic"
    "testing"
    "time"
)

func TestPoolProcessesSubmittedItems(t *testing.T) {
    var processed int64
    var wg sync.WaitGroup
    wg.Add(5)

    pool := NewPool(2, 64, func(ctx context.Context, item Item, scratch []byte) {
        atomic.AddInt64(&processed, 1)
        wg.Done()
    }, nil)

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    pool.Start(ctx)

    for i := 0; i < 5; i++ {
        if err := pool.Submit(ctx, Item{}); err != nil {
            t.Fatalf("submit %d failed: %v", i, err)
        }
    }

    done := make(chan struct{})
    go func() {
        wg.Wait()
        close(done)
    }()

    select {
    case <-done:
    case <-time.After(2 * time.Second):
        t.Fatalf("timed out waiting for items to be processed, got %d", atomic.LoadInt64(&processed))
    }

    if atomic.LoadInt64(&processed) != 5 {
        t.Fatalf("expected 5 processed items, got %d", processed)
    }
}

func TestPoolSubmitBlocksWhenNoIdleWorkers(t *testing.T) {
    release := make(chan struct{})
    started := make(chan struct{}, 1)

    pool := NewPool(1, 64, func(ctx context.Context, item Item, scratch []byte) {
        select {
        case started <- struct{}{}:
        default:
        }
        <-release
    }, nil)

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    pool.Start(ctx)

    if err := pool.Submit(ctx, Item{}); err != nil {
        t.Fatalf("first submit failed: %v", err)
    }
    <-started

    submitDone := make(chan error, 1)
    go func() {
        submitDone <- pool.Submit(ctx, Item{})
    }()

    select {
    case <-submitDone:
        t.Fatalf("expected second submit to block while the sole worker is busy")
    case <-time.After(100 * time.Millisecond):
    }

    close(release)

    select {
    case err := <-submitDone:
        if err != nil {
            t.Fatalf("unexpected error: %v", err)
        }
    case <-time.After(2 * time.Second):
        t.Fatalf("second submit never unblocked after worker freed up")
    }
}

func TestPoolHandlerReceivesConn(t *testing.T) {
    c1, c2 := net.Pipe()
    defer c2.Close()

    got := make(chan net.Conn, 1)
    pool := NewPool(1, 16, func(ctx context.Context, item Item, scratch []byte) {
        got <- item.Conn
    }, nil)

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    pool.Start(ctx)

    if err := pool.Submit(ctx, Item{Conn: c1, Peer: "1.2.3.4:5"}); err != nil {
        t.Fatalf("submit failed: %v", err)
    }

    select {
    case conn := <-got:
        if conn != c1 {
            t.Fatalf("handler received wrong conn")
        }
    case <-time.After(time.Second):
        t.Fatalf("handler never ran")
    }
}
