package loadbalancer

import (
    "errors"
    "sync"
)

// RoundRobinBalancer distributes dials evenly across all healthy
// resolved addresses for a hostname.
// Time Complexity: O(n) worst case for finding a healthy address, O(1)
// average case. Space Complexity: O(n) for storing address references.
type RoundRobinBalancer struct {
    addresses []Address
    current   int
    mutex     sync.RWMutex
}

// NewRoundRobinBalancer creates a round-robin balancer over addresses.
func NewRoundRobinBalancer(addresses []Address) *RoundRobinBalancer {
    return &RoundRobinBalancer{addresses: addresses}
}

// SelectAddress chooses the next address using round-robin, skipping
// unhealthy ones and wrapping around at the end of the list.
func (rb *RoundRobinBalancer) SelectAddress() (Address, error) {
    rb.mutex.Lock()
    defer rb.mutex.Unlock()

    if len(rb.addresses) == 0 {
        return nil, errors.New("no addresses available")
    }

    start := rb.current
    for {
        addr := rb.addresses[rb.current]
        rb.current = (rb.current + 1) % len(rb.addresses)

        if addr.IsHealthy() {
            return addr, nil
        }
        if rb.current == start {
            return nil, errors.New("no healthy addresses available")
        }
    }
}

// UpdateHealth updates the health status of the address matching ip.
func (rb *RoundRobinBalancer) UpdateHealth(ip string, healthy bool) {
    rb.mutex.Lock()
    defer rb.mutex.Unlock()

    for _, addr := range rb.addresses {
        if addr.IP() == ip {
            addr.SetHealthy(healthy)
            return
        }
    }
}

// Addresses returns a copy of the tracked addresses.
func (rb *RoundRobinBalancer) Addresses() []Address {
    rb.mutex.RLock()
    defer rb.mutex.RUnlock()

    out := make([]Address, len(rb.addresses))
    copy(out, rb.addresses)
    return out
}
