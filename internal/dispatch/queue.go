// Package dispatch implements the proxy's accept/queue/worker pipeline:
// a bounded ring-buffer work queue gated by two counting semaphores,
// and a fixed pool of worker goroutines that never exit.
//
// Grounded on original_source/proxy/proxy.c's req_queue/queue_head/
// queue_tail (the ring buffer), idle_sem/req_sem (the counting
// semaphores), and the worker()/main() accept loop. golang.org/x/sync's
// semaphore.Weighted stands in for POSIX sem_t, since the stdlib has no
// counting semaphore primitive.
package dispatch

import (
    "net"
    "sync"
)

// Item is one accepted connection waiting to be processed by a worker.
type Item struct {
    Conn net.Conn
    Peer string // peer's address, captured at accept time
}

// queue is a fixed-capacity ring buffer of Items, guarded by its own
// mutex (the queueLock of the original design). Capacity equals the
// worker pool size: the idle semaphore is what prevents the acceptor
// from ever pushing past capacity, so the ring buffer itself performs
// no bounds checking beyond the fixed-size backing array.
type queue struct {
    mu    sync.Mutex
    items []Item
    head  int
    tail  int
    count int
}

func newQueue(capacity int) *queue {
    return &queue{items: make([]Item, capacity)}
}

// push appends item at the tail. Caller (the acceptor) must have
// already acquired the idle semaphore, guaranteeing capacity is
// available; push itself does not block or reject on a full queue.
func (q *queue) push(item Item) {
    q.mu.Lock()
    defer q.mu.Unlock()

    q.items[q.tail] = item
    q.tail = (q.tail + 1) % len(q.items)
    q.count++
}

// pop removes and returns the item at the head. Caller (a worker) must
// have already acquired the request semaphore, guaranteeing an item is
// present.
func (q *queue) pop() Item {
    q.mu.Lock()
    defer q.mu.Unlock()

    item := q.items[q.head]
    q.items[q.head] = Item{}
    q.head = (q.head + 1) % len(q.items)
    q.count--
    return item
}

// depth returns the current number of queued-but-unprocessed items, for
// metrics reporting only.
func (q *queue) depth() int {
    q.mu.Lock()
    defer q.mu.Unlock()
    return q.count
}
