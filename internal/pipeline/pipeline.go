// Package pipeline runs a single accepted connection through the full
// request/response cycle: read the request line, parse its URI,
// consume headers, serve from cache or fetch from the origin, and
// relay the response back to the client.
//
// Grounded on original_source/proxy/proxy.c's process_req, which this
// package follows step for step; see relay.go for the cache-miss
// upstream fetch and response capture.
package pipeline

import (
    "context"
    "log/slog"
    "strings"
    "time"

    "github.com/google/uuid"

    "github.com/example/cacheproxy/internal/cache"
    "github.com/example/cacheproxy/internal/config"
    "github.com/example/cacheproxy/internal/dispatch"
    "github.com/example/cacheproxy/internal/httpuri"
    "github.com/example/cacheproxy/internal/logging"
    "github.com/example/cacheproxy/internal/metrics"
    "github.com/example/cacheproxy/internal/netio"
    "github.com/example/cacheproxy/internal/upstream"
)

// Pipeline holds the shared, per-proxy state a request handler needs:
// the object cache and the upstream connector. It carries no per-request
// state itself, so a single Pipeline is shared by every worker.
type Pipeline struct {
    cache     *cache.Cache
    connector *upstream.Connector
    logger    *logging.Logger
    metrics   *metrics.Metrics
}

// New builds a Pipeline. logger and m may be nil in tests that don't
// care about observability output.
func New(c *cache.Cache, connector *upstream.Connector, logger *logging.Logger, m *metrics.Metrics) *Pipeline {
    return &Pipeline{cache: c, connector: connector, logger: logger, metrics: m}
}

// Handle processes one connection end to end and always closes it
// before returning, matching dispatch.Handler's contract. Its
// signature is shaped to be passed directly as a dispatch.Handler.
func (p *Pipeline) Handle(ctx context.Context, item dispatch.Item, scratch []byte) {
    defer item.Conn.Close()

    ctx = logging.WithRequestID(ctx, uuid.NewString())

    start := time.Now()
    outcome := "error"
    defer func() {
        if p.metrics != nil {
            p.metrics.RecordRequest(outcome, time.Since(start))
        }
    }()

    if p.logger != nil {
        p.logger.Info(ctx, "connected", slog.String("peer", item.Peer))
    }

    reader := netio.NewLineReader(item.Conn)

    var lineBuf [config.LineBufferSize]byte

    parseCtx, parseSpan := p.startSpan(ctx, "proxy.parse")
    n, err := reader.ReadLine(lineBuf[:])
    if err != nil {
        p.logError(parseCtx, "reading request line", err)
        parseSpan.End()
        return
    }
    if n == 0 {
        parseSpan.End()
        return // peer closed before sending anything
    }

    fields := strings.Fields(string(lineBuf[:n]))
    if len(fields) != 3 || !strings.EqualFold(fields[0], "GET") {
        // Malformed request line or non-GET method: silently dropped.
        parseSpan.End()
        return
    }
    uri := fields[1]

    parsed, err := httpuri.Parse(uri)
    if err != nil || parsed.Kind == httpuri.Invalid {
        parseSpan.End()
        return
    }
    parseSpan.End()

    host := parsed.Host
    port := parsed.Port
    path := parsed.Path

    headerEnd, noAccept, noAcceptEnc, noUserAgent, ok := p.readHeaders(ctx, reader, lineBuf[:], scratch, parsed.Kind, &host)
    if !ok {
        return
    }

    if host == "" {
        // Relative-form request that never carried a Host: header.
        return
    }

    key := httpuri.Serialize(host, port, path)

    lookupCtx, lookupSpan := p.startSpan(ctx, "proxy.cache_lookup")
    if body, hit := p.cache.Lookup(key); hit {
        if p.logger != nil {
            p.logger.Info(lookupCtx, "reading from cache", slog.String("uri", key))
        }
        if _, err := item.Conn.Write(body); err != nil {
            p.logError(lookupCtx, "writing cached response to client", err)
            lookupSpan.End()
            return
        }
        p.cache.Promote(key)
        lookupSpan.End()
        outcome = "hit"
        return
    }
    lookupSpan.End()

    cacheable := p.relay(ctx, item, host, port, path, key, headerEnd, noAccept, noAcceptEnc, noUserAgent, scratch)
    if cacheable {
        outcome = "miss"
    }
}

// readHeaders consumes header lines until the terminating blank line,
// dropping Connection/Proxy-Connection/Keep-Alive, recording a Host:
// value when the URI was relative, and copying every other header
// verbatim into scratch. It reports how much of scratch holds forwarded
// headers and which of Accept/Accept-Encoding/User-Agent were absent.
func (p *Pipeline) readHeaders(ctx context.Context, reader *netio.LineReader, lineBuf, scratch []byte, kind httpuri.Kind, host *string) (headerEnd int, noAccept, noAcceptEnc, noUserAgent bool, ok bool) {
    noAccept, noAcceptEnc, noUserAgent = true, true, true

    for {
        n, err := reader.ReadLine(lineBuf)
        if err != nil {
            p.logError(ctx, "reading headers from client", err)
            return 0, false, false, false, false
        }
        if n == 0 {
            // Client closed mid-headers without a blank line.
            return 0, false, false, false, false
        }

        line := string(lineBuf[:n])
        if line == "\r\n" {
            break
        }

        switch {
        case hasFoldPrefix(line, "Host:"):
            if kind == httpuri.Relative {
                *host = strings.TrimSpace(strings.TrimPrefix(line, line[:len("Host:")]))
            }
            continue
        case hasFoldPrefix(line, "Connection:"),
            hasFoldPrefix(line, "Proxy-Connection:"),
            hasFoldPrefix(line, "Keep-Alive:"):
            continue
        }

        if hasFoldPrefix(line, "Accept:") {
            noAccept = false
        }
        if hasFoldPrefix(line, "Accept-Encoding:") {
            noAcceptEnc = false
        }
        if hasFoldPrefix(line, "User-Agent:") {
            noUserAgent = false
        }

        if headerEnd+len(line) <= len(scratch) {
            headerEnd += copy(scratch[headerEnd:], line)
        }
    }

    return headerEnd, noAccept, noAcceptEnc, noUserAgent, true
}

func hasFoldPrefix(s, prefix string) bool {
    return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func (p *Pipeline) logError(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
    if p.logger != nil {
        p.logger.Error(ctx, msg, err, attrs...)
    }
}

func (p *Pipeline) startSpan(ctx context.Context, name string) (context.Context, interface{ End() }) {
    if p.logger == nil {
        return ctx, noopSpan{}
    }
    c, span := p.logger.StartSpan(ctx, name)
    return c, span
}

type noopSpan struct{}

func (noopSpan) End() {}
