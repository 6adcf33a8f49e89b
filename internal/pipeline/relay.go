package pipeline

import (
    "context"
    "io"
    "log/slog"

    "github.com/example/cacheproxy/internal/dispatch"
)

// relay runs the cache-miss path: build the synthesized HTTP/1.0 request,
// dial the origin, forward it, then stream the response back to the
// client while capturing up to the cache's per-object ceiling into
// scratch. It returns whether the response was small enough to cache.
//
// Grounded on process_req's cache-miss branch: the synthesized request
// line and Host header, the default-header backfill, the always-appended
// Connection: close / Proxy-Connection: close pair, and the two-phase
// relay (buffered capture, then raw relay once the object proves too
// large to cache).
func (p *Pipeline) relay(ctx context.Context, item dispatch.Item, host string, port int, path, key string, headerEnd int, noAccept, noAcceptEnc, noUserAgent bool, scratch []byte) bool {
    requestLine := "GET " + path + " HTTP/1.0\r\nHost: " + host + "\r\n"

    var defaults string
    if noAccept {
        defaults += "Accept: text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8\r\n"
    }
    if noAcceptEnc {
        defaults += "Accept-Encoding: gzip, deflate\r\n"
    }
    if noUserAgent {
        defaults += "User-Agent: Mozilla/5.0 (X11; Linux x86_64; rv:10.0.3) Gecko/20120305 Firefox/10.0.3\r\n"
    }
    defaults += "Connection: close\r\nProxy-Connection: close\r\n\r\n"

    connectCtx, connectSpan := p.startSpan(ctx, "proxy.upstream_connect")
    upstreamConn, err := p.connector.Dial(connectCtx, host, port)
    connectSpan.End()
    if err != nil {
        p.logError(connectCtx, "dialing upstream", err, slog.String("uri", key))
        return false
    }
    defer upstreamConn.Close()

    if _, err := upstreamConn.Write([]byte(requestLine)); err != nil {
        p.logError(ctx, "writing request line to upstream", err)
        return false
    }
    if headerEnd > 0 {
        if _, err := upstreamConn.Write(scratch[:headerEnd]); err != nil {
            p.logError(ctx, "writing forwarded headers to upstream", err)
            return false
        }
    }
    if _, err := upstreamConn.Write([]byte(defaults)); err != nil {
        p.logError(ctx, "writing default headers to upstream", err)
        return false
    }

    relayCtx, relaySpan := p.startSpan(ctx, "proxy.relay")
    defer relaySpan.End()

    // Capture one byte past the cache's per-object ceiling so a response
    // of exactly capBytes can be told apart from one that overruns it:
    // net.Conn.Read never returns (n>0, io.EOF) together, so stopping at
    // pos==capBytes can't distinguish "exactly full" from "more pending".
    capBytes := p.cache.MaxObjectBytes()
    peekBytes := capBytes + 1
    if peekBytes > len(scratch) {
        peekBytes = len(scratch)
        if capBytes > peekBytes {
            capBytes = peekBytes
        }
    }

    pos := 0
    for pos < peekBytes {
        n, rerr := upstreamConn.Read(scratch[pos:peekBytes])
        if n > 0 {
            pos += n
        }
        if rerr != nil {
            if rerr == io.EOF {
                break
            }
            p.logError(relayCtx, "reading from upstream", rerr, slog.String("uri", key))
            return false
        }
    }
    tooLarge := pos > capBytes

    if pos > 0 {
        if _, err := item.Conn.Write(scratch[:pos]); err != nil {
            p.logError(relayCtx, "writing captured response to client", err)
            return false
        }
    }

    if !tooLarge {
        p.cache.Insert(key, scratch[:pos])
        return true
    }

    // The object exceeded the cacheable ceiling: keep relaying the rest
    // of the response straight through to the client without capturing
    // it, matching the original's fallback to a small forwarding buffer
    // once too_large is set.
    relayBuf := make([]byte, 4096)
    for {
        n, rerr := upstreamConn.Read(relayBuf)
        if n > 0 {
            if _, werr := item.Conn.Write(relayBuf[:n]); werr != nil {
                p.logError(relayCtx, "relaying oversized response to client", werr)
                return false
            }
        }
        if rerr != nil {
            if rerr == io.EOF {
                break
            }
            p.logError(relayCtx, "reading oversized response from upstream", rerr)
            return false
        }
    }
    return false
}
