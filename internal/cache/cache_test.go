package cache

import (
    "fmt"
    "testing"
)

func TestInsertAndLookupHit(t *testing.T) {
    c := New(1024, 4096)
    c.Insert("http://example.com/", []byte("hello world"))

    body, ok := c.Lookup("http://example.com/")
    if !ok {
        t.Fatalf("expected hit")
    }
    if string(body) != "hello world" {
        t.Fatalf("got %q", body)
    }
}

func TestLookupMiss(t *testing.T) {
    c := New(1024, 4096)
    if _, ok := c.Lookup("http://nowhere/"); ok {
        t.Fatalf("expected miss on empty cache")
    }
}

func TestLookupReturnsCopyNotSharedSlice(t *testing.T) {
    c := New(1024, 4096)
    c.Insert("k", []byte("abc"))

    body, _ := c.Lookup("k")
    body[0] = 'z'

    again, _ := c.Lookup("k")
    if string(again) != "abc" {
        t.Fatalf("mutating returned body corrupted cache state: %q", again)
    }
}

func TestInsertDuplicateKeyReplaces(t *testing.T) {
    c := New(1024, 4096)
    c.Insert("k", []byte("first"))
    c.Insert("k", []byte("second, longer body"))

    body, ok := c.Lookup("k")
    if !ok || string(body) != "second, longer body" {
        t.Fatalf("expected replaced body, got %q ok=%v", body, ok)
    }
    if s := c.Stats(); s.Entries != 1 {
        t.Fatalf("expected exactly one entry after replace, got %d", s.Entries)
    }
}

func TestEvictionRespectsTotalByteCeiling(t *testing.T) {
    c := New(100, 250)

    c.Insert("a", make([]byte, 100))
    c.Insert("b", make([]byte, 100))
    c.Insert("c", make([]byte, 100)) // pushes total to 300 > 250, must evict "a"

    if _, ok := c.Lookup("a"); ok {
        t.Fatalf("expected a to be evicted as LRU")
    }
    if _, ok := c.Lookup("b"); !ok {
        t.Fatalf("expected b to survive")
    }
    if _, ok := c.Lookup("c"); !ok {
        t.Fatalf("expected c to survive")
    }

    s := c.Stats()
    if s.BytesUsed > 250 {
        t.Fatalf("total bytes %d exceeds ceiling 250", s.BytesUsed)
    }
}

func TestPromoteProtectsFromEviction(t *testing.T) {
    c := New(100, 250)

    c.Insert("a", make([]byte, 100))
    c.Insert("b", make([]byte, 100))
    c.Promote("a") // a is now MRU, b is LRU
    c.Insert("c", make([]byte, 100)) // must evict b, not a

    if _, ok := c.Lookup("a"); !ok {
        t.Fatalf("expected promoted a to survive eviction")
    }
    if _, ok := c.Lookup("b"); ok {
        t.Fatalf("expected b to be evicted after losing MRU status")
    }
}

func TestPromoteOfAlreadyEvictedKeyIsNoop(t *testing.T) {
    c := New(100, 100)
    c.Insert("a", make([]byte, 100))
    c.Insert("b", make([]byte, 100)) // evicts a

    // Simulates a reader that looked up "a" before the eviction raced
    // ahead of it; promote must not panic or resurrect the entry.
    c.Promote("a")

    if _, ok := c.Lookup("a"); ok {
        t.Fatalf("promote must not resurrect an evicted entry")
    }
}

func TestFreePoolReusedAcrossEviction(t *testing.T) {
    c := New(100, 100)
    c.Insert("a", make([]byte, 100))
    if s := c.Stats(); s.FreePoolLen != 0 {
        t.Fatalf("expected empty free pool before any eviction, got %d", s.FreePoolLen)
    }

    c.Insert("b", make([]byte, 100)) // evicts a, node returns to free pool
    if s := c.Stats(); s.FreePoolLen != 1 {
        t.Fatalf("expected one freed node in pool, got %d", s.FreePoolLen)
    }

    c.Insert("c", make([]byte, 100)) // evicts b, should reuse a's freed node
    if s := c.Stats(); s.FreePoolLen != 1 {
        t.Fatalf("expected free pool to stay at one node via reuse, got %d", s.FreePoolLen)
    }
}

func TestOnEvictCallbackReportsFreedBytes(t *testing.T) {
    c := New(100, 100)
    var freed int
    c.OnEvict(func(n int) { freed += n })

    c.Insert("a", make([]byte, 100))
    c.Insert("b", make([]byte, 100)) // evicts a

    if freed != 100 {
        t.Fatalf("expected 100 bytes reported freed, got %d", freed)
    }
}

func TestConcurrentLookupAndInsert(t *testing.T) {
    c := New(1024, 64*1024)
    done := make(chan struct{})

    go func() {
        for i := 0; i < 500; i++ {
            c.Insert(fmt.Sprintf("key-%d", i%16), []byte("payload"))
        }
        close(done)
    }()

    for i := 0; i < 500; i++ {
        c.Lookup(fmt.Sprintf("key-%d", i%16))
    }
    <-done
}
