// Package httpuri parses the URI field of an HTTP/1.0 request line into
// its host, port, and path components.
//
// Grounded on original_source/proxy/proxy.c's parse_uri: a request line's
// URI is either absolute-form (carrying its own host) or origin-form (a
// bare path, host deferred to a subsequent Host: header). This package
// keeps that same tri-state result rather than forcing a default host,
// since origin-form requests are only resolvable once the caller has
// read the rest of the header block.
package httpuri

import (
    "fmt"
    "strconv"
    "strings"
)

// Kind classifies how a URI's host was (or wasn't) determined.
type Kind int

const (
    // Invalid means no path separator was found; the request line this
    // URI came from must be rejected outright.
    Invalid Kind = iota
    // Absolute means the URI carried its own host, e.g. http://h/p.
    Absolute
    // Relative means the URI was origin-form (a bare path); the caller
    // must bind Host from a subsequent header line.
    Relative
)

func (k Kind) String() string {
    switch k {
    case Absolute:
        return "absolute"
    case Relative:
        return "relative"
    default:
        return "invalid"
    }
}

// Result is the outcome of parsing a request-line URI.
type Result struct {
    Kind Kind
    Host string // empty when Kind == Relative
    Port int    // always populated; defaults to 80
    Path string // always includes the leading '/'
}

const defaultPort = 80
const httpPrefix = "http://"

// Parse decodes a request-line URI into a Result. It never returns a
// non-nil error together with a usable Result; callers should branch on
// Result.Kind, treating Invalid as the sole rejection case.
//
// Host parsing stops at the first of space, ':', '/', CR, LF, or NUL,
// matching parse_uri's strpbrk(hostbegin, " :/\r\n\0") cut set.
func Parse(uri string) (Result, error) {
    if uri == "" {
        return Result{Kind: Invalid}, fmt.Errorf("httpuri: empty uri")
    }

    rest := uri
    if len(uri) >= len(httpPrefix) && strings.EqualFold(uri[:len(httpPrefix)], httpPrefix) {
        rest = uri[len(httpPrefix):]
    }

    hostEnd := strings.IndexAny(rest, " :/\r\n\x00")
    if hostEnd < 0 {
        // No path separator anywhere in the remainder: parse_uri's
        // strchr(hostbegin, '/') would fail too.
        return Result{Kind: Invalid}, fmt.Errorf("httpuri: no path separator in %q", uri)
    }

    host := rest[:hostEnd]
    port := defaultPort
    afterHost := rest[hostEnd:]

    if strings.HasPrefix(afterHost, ":") {
        digits := afterHost[1:]
        end := 0
        for end < len(digits) && digits[end] >= '0' && digits[end] <= '9' {
            end++
        }
        if end > 0 {
            p, err := strconv.Atoi(digits[:end])
            if err != nil {
                return Result{Kind: Invalid}, fmt.Errorf("httpuri: bad port in %q: %w", uri, err)
            }
            port = p
        }
    }

    pathStart := strings.IndexByte(rest, '/')
    if pathStart < 0 {
        return Result{Kind: Invalid}, fmt.Errorf("httpuri: no path in %q", uri)
    }
    path := rest[pathStart:]

    // parse_uri decides absolute vs. relative purely on whether a host
    // was found, regardless of an "http://" prefix being present
    // (proxy.c:473-500 returns "no host" for an empty host even once the
    // prefix is stripped, e.g. "http:///path").
    if host == "" {
        return Result{Kind: Relative, Port: port, Path: path}, nil
    }
    return Result{Kind: Absolute, Host: host, Port: port, Path: path}, nil
}

// Serialize rebuilds the canonical absolute-form URI string used as the
// cache key: http://{host}:{port}{path}. The port is always included,
// even when it is the default 80, so a request to an explicit ":80" and
// one with no port specified produce the same key and share one cache
// entry (see DESIGN.md).
func Serialize(host string, port int, path string) string {
    return fmt.Sprintf("http://%s:%d%s", host, port, path)
}
