package upstream

import (
    "context"
    "errors"
    "net"
    "testing"
    "time"
)

func TestDialToLoopbackSucceeds(t *testing.T) {
    ln, err := net.Listen("tcp", "127.0.0.1:0")
    if err != nil {
        t.Fatalf("failed to start fake origin: %v", err)
    }
    defer ln.Close()
    go func() {
        for {
            conn, err := ln.Accept()
            if err != nil {
                return
            }
            conn.Close()
        }
    }()

    port := ln.Addr().(*net.TCPAddr).Port
    c := New("round-robin", time.Second, time.Minute, nil, nil)

    conn, err := c.Dial(context.Background(), "127.0.0.1", port)
    if err != nil {
        t.Fatalf("unexpected dial error: %v", err)
    }
    conn.Close()
}

func TestDialUnreachableReturnsWrappedSentinel(t *testing.T) {
    c := New("round-robin", 200*time.Millisecond, time.Minute, nil, nil)

    // Port 1 on loopback should refuse immediately rather than hang.
    _, err := c.Dial(context.Background(), "127.0.0.1", 1)
    if err == nil {
        t.Fatalf("expected dial failure")
    }
    if !errors.Is(err, ErrNoUpstream) {
        t.Fatalf("expected error wrapping ErrNoUpstream, got %v", err)
    }
}

func TestDialCachesResolution(t *testing.T) {
    ln, err := net.Listen("tcp", "127.0.0.1:0")
    if err != nil {
        t.Fatalf("failed to start fake origin: %v", err)
    }
    defer ln.Close()
    go func() {
        for {
            conn, err := ln.Accept()
            if err != nil {
                return
            }
            conn.Close()
        }
    }()
    port := ln.Addr().(*net.TCPAddr).Port

    c := New("round-robin", time.Second, time.Hour, nil, nil)
    for i := 0; i < 3; i++ {
        conn, err := c.Dial(context.Background(), "127.0.0.1", port)
        if err != nil {
            t.Fatalf("dial %d: unexpected error: %v", i, err)
        }
        conn.Close()
    }

    if len(c.cache) != 1 {
        t.Fatalf("expected exactly one cached resolution, got %d", len(c.cache))
    }
}

func TestDialUnhealthyAddressMarkedAfterFailure(t *testing.T) {
    c := New("round-robin", 200*time.Millisecond, time.Hour, nil, nil)
    host := "127.0.0.1"

    // Prime the resolution cache for host, then dial it on a closed port.
    bal, err := c.resolve(host)
    if err != nil {
        t.Fatalf("resolve failed: %v", err)
    }
    addrs := bal.Addresses()
    if len(addrs) == 0 {
        t.Fatalf("expected at least one resolved address")
    }

    if _, err := c.Dial(context.Background(), host, 1); err == nil {
        t.Fatalf("expected dial failure against closed port")
    }

    for _, a := range addrs {
        if a.IP() == "127.0.0.1" && a.IsHealthy() {
            t.Fatalf("expected address to be marked unhealthy after failed dial")
        }
    }
}
