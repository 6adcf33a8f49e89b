package dispatch

import (
    "context"
    "net"
    "testing"
    "time"

    "github.com/example/cacheproxy/internal/ratelimit"
)

func TestAcceptorDispatchesAcceptedConnections(t *testing.T) {
    ln, err := net.Listen("tcp", "127.0.0.1:0")
    if err != nil {
        t.Fatalf("failed to listen: %v", err)
    }
    defer ln.Close()

    got := make(chan Item, 1)
    pool := NewPool(2, 64, func(ctx context.Context, item Item, scratch []byte) {
        item.Conn.Close()
        got <- item
    }, nil)

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    pool.Start(ctx)

    acc := NewAcceptor(ln, pool, nil, nil)
    go acc.Run(ctx)

    conn, err := net.Dial("tcp", ln.Addr().String())
    if err != nil {
        t.Fatalf("dial failed: %v", err)
    }
    defer conn.Close()

    select {
    case item := <-got:
        if item.Peer == "" {
            t.Fatalf("expected a non-empty peer address")
        }
    case <-time.After(2 * time.Second):
        t.Fatalf("acceptor never dispatched the connection")
    }
}

func TestAcceptorRejectsOverRateLimit(t *testing.T) {
    ln, err := net.Listen("tcp", "127.0.0.1:0")
    if err != nil {
        t.Fatalf("failed to listen: %v", err)
    }
    defer ln.Close()

    dispatched := make(chan Item, 4)
    pool := NewPool(2, 64, func(ctx context.Context, item Item, scratch []byte) {
        item.Conn.Close()
        dispatched <- item
    }, nil)

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    pool.Start(ctx)

    limiter := ratelimit.NewLimiter(1, 1)
    acc := NewAcceptor(ln, pool, limiter, nil)
    go acc.Run(ctx)

    for i := 0; i < 2; i++ {
        conn, err := net.Dial("tcp", ln.Addr().String())
        if err != nil {
            t.Fatalf("dial %d failed: %v", i, err)
        }
        conn.Close()
    }

    select {
    case <-dispatched:
    case <-time.After(2 * time.Second):
        t.Fatalf("expected exactly one dispatch before the rate limit kicked in")
    }

    select {
    case item := <-dispatched:
        t.Fatalf("expected second connection to be rejected by the rate limiter, got %+v", item)
    case <-time.After(200 * time.Millisecond):
    }
}
