// Package loadbalancer selects among several resolved IP addresses for a
// single origin hostname. The original reference proxy always dialed
// h_addr_list[0] and never considered the rest of a DNS answer; this
// package gives the remaining addresses in the answer a real job,
// spreading connections across them with the same three strategies the
// teacher once used to pick among configured reverse-proxy backends.
package loadbalancer

import (
    "sync/atomic"
)

// Address represents one resolved IP address for an origin host,
// tracked for health and in-flight connection count so a balancer can
// route around a address that is failing to connect.
type Address interface {
    IP() string                // dotted-decimal or textual IP
    IsHealthy() bool           // current health status
    SetHealthy(bool)           // updates health status
    Connections() int64        // current in-flight connection count
    IncrementConnections()     // adds one to the in-flight connection count
    DecrementConnections()     // subtracts one from the in-flight connection count
    Weight() int               // relative share for weighted algorithms
    SetWeight(int)              // updates weight
}

// Balancer abstracts the address-selection strategy so the connector
// can swap round-robin, least-connections, or weighted-round-robin
// without changing its dialing logic.
type Balancer interface {
    SelectAddress() (Address, error) // selects an address for the next dial
    UpdateHealth(ip string, healthy bool)
    Addresses() []Address
}

// ipAddress is the concrete Address backing every balancer in this
// package, built fresh each time a hostname's DNS answer is refreshed.
type ipAddress struct {
    ip          string
    healthy     int32 // atomic bool: 1 healthy, 0 unhealthy
    connections int64
    weight      int32
}

// NewAddress creates an Address for ip, healthy by default, with the
// given weight (coerced to at least 1).
func NewAddress(ip string, weight int) Address {
    if weight <= 0 {
        weight = 1
    }
    return &ipAddress{ip: ip, healthy: 1, weight: int32(weight)}
}

func (a *ipAddress) IP() string { return a.ip }

func (a *ipAddress) IsHealthy() bool {
    return atomic.LoadInt32(&a.healthy) == 1
}

func (a *ipAddress) SetHealthy(healthy bool) {
    v := int32(0)
    if healthy {
        v = 1
    }
    atomic.StoreInt32(&a.healthy, v)
}

func (a *ipAddress) Connections() int64 {
    return atomic.LoadInt64(&a.connections)
}

func (a *ipAddress) IncrementConnections() {
    atomic.AddInt64(&a.connections, 1)
}

func (a *ipAddress) DecrementConnections() {
    atomic.AddInt64(&a.connections, -1)
}

func (a *ipAddress) Weight() int {
    return int(atomic.LoadInt32(&a.weight))
}

func (a *ipAddress) SetWeight(weight int) {
    if weight <= 0 {
        weight = 1
    }
    atomic.StoreInt32(&a.weight, int32(weight))
}
