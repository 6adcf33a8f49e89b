package loadbalancer

import (
    "fmt"
    "strings"
)

// Algorithm names the address-selection strategy, configured once per
// proxy instance via UpstreamConfig.Algorithm.
type Algorithm string

const (
    RoundRobin         Algorithm = "round-robin"
    LeastConnections   Algorithm = "least-connections"
    WeightedRoundRobin Algorithm = "weighted-round-robin"
)

// New builds a Balancer over the given resolved IPs, all weighted
// equally at 1. Callers that need per-address weighting construct
// Address values directly with NewAddress and pass a balancer
// constructor instead.
func New(algorithm string, ips []string) (Balancer, error) {
    if len(ips) == 0 {
        return nil, fmt.Errorf("no addresses to balance")
    }

    addresses := make([]Address, len(ips))
    for i, ip := range ips {
        addresses[i] = NewAddress(ip, 1)
    }

    switch Algorithm(strings.ToLower(algorithm)) {
    case RoundRobin:
        return NewRoundRobinBalancer(addresses), nil
    case LeastConnections:
        return NewLeastConnectionsBalancer(addresses), nil
    case WeightedRoundRobin:
        return NewWeightedRoundRobinBalancer(addresses), nil
    default:
        return nil, fmt.Errorf("unsupported load balancing algorithm: %s", algorithm)
    }
}

// GetSupportedAlgorithms returns the algorithm names accepted by New.
func GetSupportedAlgorithms() []string {
    return []string{
        string(RoundRobin),
        string(LeastConnections),
        string(WeightedRoundRobin),
    }
}
