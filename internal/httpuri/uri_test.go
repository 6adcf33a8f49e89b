package httpuri

import "testing"

func TestParseAbsoluteWithPort(t *testing.T) {
    r, err := Parse("http://example.com:8080/index.html")
    if err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    if r.Kind != Absolute || r.Host != "example.com" || r.Port != 8080 || r.Path != "/index.html" {
        t.Fatalf("got %+v", r)
    }
}

func TestParseAbsoluteDefaultPort(t *testing.T) {
    r, err := Parse("http://example.com/")
    if err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    if r.Kind != Absolute || r.Host != "example.com" || r.Port != defaultPort || r.Path != "/" {
        t.Fatalf("got %+v", r)
    }
}

func TestParseAbsoluteCaseInsensitivePrefix(t *testing.T) {
    r, err := Parse("HTTP://Example.com/path")
    if err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    if r.Kind != Absolute || r.Host != "Example.com" || r.Path != "/path" {
        t.Fatalf("got %+v", r)
    }
}

func TestParseOriginForm(t *testing.T) {
    r, err := Parse("/cgi-bin/search?q=1")
    if err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    if r.Kind != Relative || r.Host != "" || r.Port != defaultPort || r.Path != "/cgi-bin/search?q=1" {
        t.Fatalf("got %+v", r)
    }
}

func TestParseInvalidNoPathSeparator(t *testing.T) {
    r, err := Parse("http://example.com")
    if err == nil {
        t.Fatalf("expected error for missing path")
    }
    if r.Kind != Invalid {
        t.Fatalf("expected Invalid kind, got %v", r.Kind)
    }
}

func TestParseInvalidEmptyURI(t *testing.T) {
    r, err := Parse("")
    if err == nil || r.Kind != Invalid {
        t.Fatalf("expected invalid result for empty uri, got %+v err=%v", r, err)
    }
}

func TestParseHostEndsAtColon(t *testing.T) {
    r, err := Parse("http://host:1234/p")
    if err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    if r.Host != "host" || r.Port != 1234 {
        t.Fatalf("got host=%q port=%d", r.Host, r.Port)
    }
}

func TestSerializeThenParseRoundTrip(t *testing.T) {
    cases := []struct {
        host string
        port int
        path string
    }{
        {"example.com", 80, "/"},
        {"example.com", 8080, "/a/b/c"},
        {"sub.example.org", 443, "/q?x=1&y=2"},
    }

    for _, c := range cases {
        uri := Serialize(c.host, c.port, c.path)
        r, err := Parse(uri)
        if err != nil {
            t.Fatalf("Parse(%q) errored: %v", uri, err)
        }
        if r.Kind != Absolute || r.Host != c.host || r.Port != c.port || r.Path != c.path {
            t.Fatalf("round trip mismatch for %+v: got %+v from %q", c, r, uri)
        }
    }
}

func TestKindString(t *testing.T) {
    if Absolute.String() != "absolute" || Relative.String() != "relative" || Invalid.String() != "invalid" {
        t.Fatalf("unexpected Kind.String() values")
    }
}
