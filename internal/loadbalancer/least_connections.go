package loadbalancer

import (
    "errors"
    "sync"
)

// LeastConnectionsBalancer routes each dial to the healthy address with
// the fewest in-flight connections, useful when some resolved addresses
// are noticeably slower to serve than others. The counts are only those
// recorded through IncrementConnections/DecrementConnections;
// upstream.Connector.Dial records none, so under it every healthy
// address ties at zero and the first healthy one is chosen.
// Time Complexity: O(n) per selection. Space Complexity: O(n).
type LeastConnectionsBalancer struct {
    addresses []Address
    mutex     sync.RWMutex
}

// NewLeastConnectionsBalancer creates a least-connections balancer.
func NewLeastConnectionsBalancer(addresses []Address) *LeastConnectionsBalancer {
    return &LeastConnectionsBalancer{addresses: addresses}
}

// SelectAddress returns the healthy address with the minimum connection
// count, breaking ties in favor of the first one found.
func (lc *LeastConnectionsBalancer) SelectAddress() (Address, error) {
    lc.mutex.RLock()
    defer lc.mutex.RUnlock()

    if len(lc.addresses) == 0 {
        return nil, errors.New("no addresses available")
    }

    var selected Address
    min := int64(-1)

    for _, addr := range lc.addresses {
        if !addr.IsHealthy() {
            continue
        }
        connections := addr.Connections()
        if min == -1 || connections < min {
            selected = addr
            min = connections
        }
    }

    if selected == nil {
        return nil, errors.New("no healthy addresses available")
    }
    return selected, nil
}

// UpdateHealth updates the health status of the address matching ip.
func (lc *LeastConnectionsBalancer) UpdateHealth(ip string, healthy bool) {
    lc.mutex.Lock()
    defer lc.mutex.Unlock()

    for _, addr := range lc.addresses {
        if addr.IP() == ip {
            addr.SetHealthy(healthy)
            return
        }
    }
}

// Addresses returns a copy of the tracked addresses.
func (lc *LeastConnectionsBalancer) Addresses() []Address {
    lc.mutex.RLock()
    defer lc.mutex.RUnlock()

    out := make([]Address, len(lc.addresses))
    copy(out, lc.addresses)
    return out
}
