package dispatch

import (
    "context"
    "errors"
    "log/slog"
    "net"

    "github.com/example/cacheproxy/internal/logging"
    "github.com/example/cacheproxy/internal/ratelimit"
)

// Acceptor runs the proxy's accept loop: accept a connection, optionally
// gate it through a rate limiter keyed by peer IP, then hand it to a
// Pool. Grounded on original_source/proxy/proxy.c's main() accept loop.
type Acceptor struct {
    listener net.Listener
    pool     *Pool
    limiter  *ratelimit.Limiter // nil disables rate limiting
    logger   *logging.Logger
}

// NewAcceptor builds an Acceptor over listener, dispatching accepted
// connections to pool. limiter may be nil.
func NewAcceptor(listener net.Listener, pool *Pool, limiter *ratelimit.Limiter, logger *logging.Logger) *Acceptor {
    return &Acceptor{listener: listener, pool: pool, limiter: limiter, logger: logger}
}

// Run accepts connections until ctx is cancelled or the listener is
// closed. A failed accept is logged and the loop continues, per
// spec: "accept failure: log; acceptor continues."
func (a *Acceptor) Run(ctx context.Context) {
    for {
        conn, err := a.listener.Accept()
        if err != nil {
            select {
            case <-ctx.Done():
                return
            default:
            }
            if errors.Is(err, net.ErrClosed) {
                return
            }
            if a.logger != nil {
                a.logger.Error(ctx, "accept failed", err)
            }
            continue
        }

        peer := conn.RemoteAddr().String()

        if a.limiter != nil {
            host, _, splitErr := net.SplitHostPort(peer)
            if splitErr != nil {
                host = peer
            }
            if !a.limiter.Allow(host) {
                conn.Close()
                continue
            }
        }

        if a.logger != nil {
            a.logger.Info(ctx, "connected", slog.String("peer", peer))
        }

        if err := a.pool.Submit(ctx, Item{Conn: conn, Peer: peer}); err != nil {
            conn.Close()
            return
        }
    }
}
