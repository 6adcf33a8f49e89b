// Package upstream dials the origin server a request is ultimately
// destined for, generalising the reference proxy's single h_addr_list[0]
// dial into selection among every address a hostname resolves to.
//
// Grounded on original_source/proxy/proxy.c's open_client_socket (the
// dnsLock-equivalent mutex around gethostbyname, since that call is not
// reentrant) and on the teacher's internal/proxy/server.go health-check
// ticker for the background refresh loop.
package upstream

import (
    "context"
    "fmt"
    "log/slog"
    "net"
    "strconv"
    "sync"
    "time"

    "github.com/example/cacheproxy/internal/loadbalancer"
    "github.com/example/cacheproxy/internal/logging"
    "github.com/example/cacheproxy/internal/metrics"
)

// resolution is a cached DNS answer for one hostname.
type resolution struct {
    balancer  loadbalancer.Balancer
    expiresAt time.Time
}

// Connector resolves hostnames and dials the selected address, caching
// resolved address sets per hostname and re-probing unhealthy addresses
// on a background interval.
type Connector struct {
    algorithm   string
    dialTimeout time.Duration
    addressTTL  time.Duration

    dnsLock sync.Mutex // serializes the resolver, assumed non-reentrant
    cache   map[string]*resolution

    dialer net.Dialer
    logger *logging.Logger
    m      *metrics.Metrics
}

// New builds a Connector. logger and m may be nil in tests that don't
// care about observability output.
func New(algorithm string, dialTimeout, addressTTL time.Duration, logger *logging.Logger, m *metrics.Metrics) *Connector {
    return &Connector{
        algorithm:   algorithm,
        dialTimeout: dialTimeout,
        addressTTL:  addressTTL,
        cache:       make(map[string]*resolution),
        dialer:      net.Dialer{Timeout: dialTimeout},
        logger:      logger,
        m:           m,
    }
}

// ErrNoUpstream is returned, wrapped with context, whenever resolution,
// balancer selection, or dial fails. Callers treat it as a sentinel:
// log and abandon the request, never terminate the worker.
var ErrNoUpstream = fmt.Errorf("upstream: no reachable address")

// Dial resolves host, selects an address via the configured balancing
// algorithm, and connects to (address, port). Every failure is wrapped
// around ErrNoUpstream rather than propagated as a fatal error, since a
// single bad origin must never take down the worker that requested it.
func (c *Connector) Dial(ctx context.Context, host string, port int) (net.Conn, error) {
    bal, err := c.resolve(host)
    if err != nil {
        return nil, fmt.Errorf("%w: resolving %s: %v", ErrNoUpstream, host, err)
    }

    addr, err := bal.SelectAddress()
    if err != nil {
        return nil, fmt.Errorf("%w: selecting address for %s: %v", ErrNoUpstream, host, err)
    }

    start := time.Now()
    conn, err := c.dialer.DialContext(ctx, "tcp", net.JoinHostPort(addr.IP(), strconv.Itoa(port)))
    elapsed := time.Since(start)

    if err != nil {
        addr.SetHealthy(false)
        if c.m != nil {
            c.m.RecordUpstreamConnect("error", elapsed)
            c.m.SetAddressHealth(addr.IP(), false)
        }
        return nil, fmt.Errorf("%w: dialing %s:%d: %v", ErrNoUpstream, addr.IP(), port, err)
    }

    addr.SetHealthy(true)
    if c.m != nil {
        c.m.RecordUpstreamConnect("ok", elapsed)
        c.m.SetAddressHealth(addr.IP(), true)
    }
    return conn, nil
}

// resolve returns the cached balancer for host, refreshing it via
// net.DefaultResolver.LookupHost (serialized by dnsLock) if absent or
// expired.
func (c *Connector) resolve(host string) (loadbalancer.Balancer, error) {
    c.dnsLock.Lock()
    defer c.dnsLock.Unlock()

    if r, ok := c.cache[host]; ok && time.Now().Before(r.expiresAt) {
        return r.balancer, nil
    }

    ips, err := net.DefaultResolver.LookupHost(context.Background(), host)
    if err != nil {
        return nil, err
    }
    bal, err := loadbalancer.New(c.algorithm, ips)
    if err != nil {
        return nil, err
    }

    c.cache[host] = &resolution{
        balancer:  bal,
        expiresAt: time.Now().Add(c.addressTTL),
    }
    return bal, nil
}

// RefreshLoop periodically re-probes every cached, currently unhealthy
// address with a bare TCP dial and re-resolves hostnames whose cached
// answer has expired, so a transient origin failure does not
// permanently exclude an address from selection. Grounded on the
// teacher's startHealthChecks/performHealthChecks ticker pattern.
// Runs until ctx is cancelled; callers start it in its own goroutine.
func (c *Connector) RefreshLoop(ctx context.Context, interval time.Duration) {
    ticker := time.NewTicker(interval)
    defer ticker.Stop()

    for {
        select {
        case <-ticker.C:
            c.refreshOnce(ctx)
        case <-ctx.Done():
            return
        }
    }
}

func (c *Connector) refreshOnce(ctx context.Context) {
    c.dnsLock.Lock()
    hosts := make([]string, 0, len(c.cache))
    for host, r := range c.cache {
        if time.Now().After(r.expiresAt) {
            delete(c.cache, host)
            hosts = append(hosts, host)
        }
    }
    var toProbe []loadbalancer.Address
    for _, r := range c.cache {
        for _, addr := range r.balancer.Addresses() {
            if !addr.IsHealthy() {
                toProbe = append(toProbe, addr)
            }
        }
    }
    c.dnsLock.Unlock()

    for _, host := range hosts {
        if _, err := c.resolve(host); err != nil && c.logger != nil {
            c.logger.Warn(ctx, "background re-resolve failed",
                slog.String("host", host),
                slog.String("error", err.Error()),
            )
        }
    }

    for _, addr := range toProbe {
        conn, err := net.DialTimeout("tcp", net.JoinHostPort(addr.IP(), "80"), c.dialTimeout)
        if err == nil {
            conn.Close()
            addr.SetHealthy(true)
            if c.m != nil {
                c.m.SetAddressHealth(addr.IP(), true)
            }
        }
    }
}
