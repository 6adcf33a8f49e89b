// Package proxy assembles the cache, upstream connector, dispatch
// pipeline, and optional admin surface into one runnable Server.
package proxy

import (
    "context"
    "fmt"
    "net"
    "net/http"

    "github.com/example/cacheproxy/internal/cache"
    "github.com/example/cacheproxy/internal/config"
    "github.com/example/cacheproxy/internal/dispatch"
    "github.com/example/cacheproxy/internal/logging"
    "github.com/example/cacheproxy/internal/metrics"
    "github.com/example/cacheproxy/internal/pipeline"
    "github.com/example/cacheproxy/internal/ratelimit"
    "github.com/example/cacheproxy/internal/upstream"
)

// Server is the running proxy: a data-plane TCP listener feeding a
// bounded worker pool, plus an optional admin HTTP server exposing
// /metrics and /healthz. Grounded on the original design's accept loop
// (main()) and worker pool (worker()), generalised with the ambient
// observability surface.
type Server struct {
    cfg *config.Config

    listener  net.Listener
    acceptor  *dispatch.Acceptor
    pool      *dispatch.Pool
    cache     *cache.Cache
    connector *upstream.Connector
    logger    *logging.Logger
    metrics   *metrics.Metrics

    admin *http.Server
}

// NewServer wires every component from cfg but does not yet bind the
// listening socket; call Start for that.
// Time Complexity: O(1).
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
    m := metrics.NewMetrics()

    c := cache.New(cfg.Cache.MaxObjectBytes, cfg.Cache.MaxTotalBytes)
    c.OnEvict(func(freedBytes int) {
        m.IncCacheEvictions()
        // The callback runs under the cache's write lock, so the
        // occupancy snapshot is taken once that lock is released.
        go func() {
            stats := c.Stats()
            m.SetCacheOccupancy(stats.BytesUsed, stats.Entries)
        }()
    })

    connector := upstream.New(cfg.Upstream.Algorithm, cfg.Upstream.DialTimeout, cfg.Upstream.AddressTTL, logger, m)

    pl := pipeline.New(c, connector, logger, m)

    pool := dispatch.NewPool(cfg.Server.PoolSize, 2*cfg.Cache.MaxObjectBytes, pl.Handle, m)

    s := &Server{
        cfg:       cfg,
        pool:      pool,
        cache:     c,
        connector: connector,
        logger:    logger,
        metrics:   m,
    }

    if cfg.Admin.Enabled {
        mux := http.NewServeMux()
        mux.Handle("/metrics", m.Handler())
        mux.HandleFunc("/healthz", s.handleHealthz)
        s.admin = &http.Server{
            Addr:    cfg.Admin.Addr,
            Handler: mux,
        }
    }

    return s, nil
}

// Start binds the data-plane listener, launches the worker pool, the
// acceptor and the upstream address refresh loop, and (if configured)
// the admin HTTP server. It blocks until ctx is cancelled or a
// component fails, mirroring the original accept loop's lifetime.
func (s *Server) Start(ctx context.Context) error {
    ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Server.Port))
    if err != nil {
        return fmt.Errorf("binding listener: %w", err)
    }
    s.listener = ln

    acceptor := dispatch.NewAcceptor(ln, s.pool, s.limiter(), s.logger)
    s.acceptor = acceptor

    s.pool.Start(ctx)
    go acceptor.Run(ctx)
    go s.connector.RefreshLoop(ctx, s.cfg.Upstream.RefreshInterval)

    errChan := make(chan error, 1)
    if s.admin != nil {
        go func() {
            if err := s.admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
                errChan <- fmt.Errorf("admin server error: %w", err)
            }
        }()
    }

    select {
    case err := <-errChan:
        return err
    case <-ctx.Done():
        return ctx.Err()
    }
}

// Shutdown closes the data-plane listener and, if running, gracefully
// stops the admin HTTP server within ctx's deadline. In-flight
// connections already dispatched to a worker are not forcibly closed;
// they complete (or time out on their own I/O) on their own.
func (s *Server) Shutdown(ctx context.Context) error {
    if s.listener != nil {
        if err := s.listener.Close(); err != nil {
            return fmt.Errorf("closing listener: %w", err)
        }
    }

    if s.admin != nil {
        if err := s.admin.Shutdown(ctx); err != nil {
            return fmt.Errorf("shutting down admin server: %w", err)
        }
    }

    return nil
}

func (s *Server) limiter() *ratelimit.Limiter {
    if !s.cfg.RateLimit.Enabled {
        return nil
    }
    return ratelimit.NewLimiter(s.cfg.RateLimit.Capacity, s.cfg.RateLimit.RefillRate)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
    stats := s.cache.Stats()
    w.Header().Set("Content-Type", "text/plain; charset=utf-8")
    w.WriteHeader(http.StatusOK)
    fmt.Fprintf(w, "ok\ncache_entries %d\ncache_bytes_used %d\n", stats.Entries, stats.BytesUsed)
}
