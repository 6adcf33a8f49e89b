package ratelimit

import (
    "testing"
    "time"
)

func TestTokenBucketAllowsUpToCapacity(t *testing.T) {
    tb := NewTokenBucket(3, 1)
    for i := 0; i < 3; i++ {
        if !tb.TryConsume() {
            t.Fatalf("expected token %d to be available", i)
        }
    }
    if tb.TryConsume() {
        t.Fatalf("expected bucket to be exhausted")
    }
}

func TestTokenBucketRefillsOverTime(t *testing.T) {
    tb := NewTokenBucket(2, 10)
    tb.tokens = 0
    tb.lastRefill = tb.lastRefill.Add(-2 * time.Second)

    if !tb.TryConsume() {
        t.Fatalf("expected refill to have replenished at least one token")
    }
}

func TestLimiterPerIPIsolation(t *testing.T) {
    l := NewLimiter(1, 1)

    if !l.Allow("1.2.3.4") {
        t.Fatalf("expected first request from 1.2.3.4 to be allowed")
    }
    if l.Allow("1.2.3.4") {
        t.Fatalf("expected second immediate request from 1.2.3.4 to be denied")
    }
    if !l.Allow("5.6.7.8") {
        t.Fatalf("expected a different IP to have its own independent bucket")
    }
}

func TestLimiterConcurrentAccessSameIP(t *testing.T) {
    l := NewLimiter(50, 10)
    done := make(chan bool, 100)

    for i := 0; i < 100; i++ {
        go func() {
            done <- l.Allow("9.9.9.9")
        }()
    }

    allowed := 0
    for i := 0; i < 100; i++ {
        if <-done {
            allowed++
        }
    }
    if allowed > 50 {
        t.Fatalf("expected at most capacity (50) admissions, got %d", allowed)
    }
}
