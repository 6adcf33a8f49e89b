package loadbalancer

import (
    "errors"
    "sync"
)

// WeightedRoundRobinBalancer distributes dials proportionally to each
// address's weight using the smooth weighted round-robin algorithm,
// avoiding the bursts a naive weighted pick would produce.
// Time Complexity: O(n) per selection. Space Complexity: O(n).
type WeightedRoundRobinBalancer struct {
    addresses      []Address
    currentWeights []int
    mutex          sync.RWMutex
}

// NewWeightedRoundRobinBalancer creates a smooth weighted round-robin
// balancer, current weights starting at zero.
func NewWeightedRoundRobinBalancer(addresses []Address) *WeightedRoundRobinBalancer {
    return &WeightedRoundRobinBalancer{
        addresses:      addresses,
        currentWeights: make([]int, len(addresses)),
    }
}

// SelectAddress picks the healthy address with the highest current
// weight, then subtracts the total healthy weight from it so every
// address cycles back in proportion to its configured weight.
func (wrr *WeightedRoundRobinBalancer) SelectAddress() (Address, error) {
    wrr.mutex.Lock()
    defer wrr.mutex.Unlock()

    if len(wrr.addresses) == 0 {
        return nil, errors.New("no addresses available")
    }

    selected := -1
    maxCurrent := -1

    for i, addr := range wrr.addresses {
        if !addr.IsHealthy() {
            continue
        }
        wrr.currentWeights[i] += addr.Weight()
        if wrr.currentWeights[i] > maxCurrent {
            selected = i
            maxCurrent = wrr.currentWeights[i]
        }
    }

    if selected == -1 {
        return nil, errors.New("no healthy addresses available")
    }

    total := 0
    for _, addr := range wrr.addresses {
        if addr.IsHealthy() {
            total += addr.Weight()
        }
    }
    wrr.currentWeights[selected] -= total

    return wrr.addresses[selected], nil
}

// UpdateHealth updates the health status of the address matching ip.
func (wrr *WeightedRoundRobinBalancer) UpdateHealth(ip string, healthy bool) {
    wrr.mutex.Lock()
    defer wrr.mutex.Unlock()

    for _, addr := range wrr.addresses {
        if addr.IP() == ip {
            addr.SetHealthy(healthy)
            return
        }
    }
}

// Addresses returns a copy of the tracked addresses.
func (wrr *WeightedRoundRobinBalancer) Addresses() []Address {
    wrr.mutex.RLock()
    defer wrr.mutex.RUnlock()

    out := make([]Address, len(wrr.addresses))
    copy(out, wrr.addresses)
    return out
}
