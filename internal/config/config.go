// Package config centralises the proxy's tunables behind a singleton,
// the way the rest of this codebase expects configuration to be reached
// from any package without threading a struct through every constructor.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	instance *Config
	once     sync.Once
)

// Bit-exact constants mandated by the wire protocol and the original
// reference implementation. These are never configurable: changing them
// changes the protocol, not a deployment knob.
const (
	ListenBacklog    = 1024
	WorkerPoolSize   = 50
	LineBufferSize   = 8192
	ReadBufferSize   = 8192
	MaxObjectSize    = 100 * 1024
	MaxCacheSize     = 20 * 1024 * 1024
	DefaultHTTPPort  = 80
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:10.0.3) Gecko/20120305 Firefox/10.0.3"
	DefaultAccept    = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	DefaultAcceptEnc = "gzip, deflate"
)

// Config aggregates every component's configuration for centralised
// management. Only Server.Port is ever required from the command line;
// everything else defaults to a value consistent with the bit-exact
// constants above and may optionally be overridden by a YAML overlay.
type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	RateLimit RateLimitConfig `yaml:"rateLimit" json:"rateLimit"`
	Upstream  UpstreamConfig  `yaml:"upstream" json:"upstream"`
	Admin     AdminConfig     `yaml:"admin" json:"admin"`
	Tracing   TracingConfig   `yaml:"tracing" json:"tracing"`
}

// ServerConfig defines the data-plane listener: the single positional
// port argument plus the worker pool size. QueueDepth is not read by the
// dispatcher; the work queue's capacity always equals PoolSize.
type ServerConfig struct {
	Port       int `yaml:"port" json:"port"`
	PoolSize   int `yaml:"poolSize" json:"poolSize" default:"50"`
	QueueDepth int `yaml:"queueDepth" json:"queueDepth" default:"50"`
}

// CacheConfig defines the LRU object cache's byte ceilings. These default
// to the bit-exact constants above but stay configurable so tests can
// exercise eviction at a tractable size.
type CacheConfig struct {
	MaxObjectBytes int `yaml:"maxObjectBytes" json:"maxObjectBytes" default:"102400"`
	MaxTotalBytes  int `yaml:"maxTotalBytes" json:"maxTotalBytes" default:"20971520"`
}

// RateLimitConfig defines the optional per-client admission token bucket
// gating the acceptor. Disabled by default: spec.md names no rate-limit
// requirement, this is ambient abuse protection layered on top of it.
type RateLimitConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled" default:"false"`
	Capacity   int  `yaml:"capacity" json:"capacity" default:"100"`
	RefillRate int  `yaml:"refillRate" json:"refillRate" default:"10"`
}

// UpstreamConfig defines the origin connector's DNS behaviour: the
// address-selection algorithm among multiple resolved IPs for a single
// hostname, and how often stale address health is refreshed.
type UpstreamConfig struct {
	Algorithm       string        `yaml:"algorithm" json:"algorithm" default:"round-robin"`
	DialTimeout     time.Duration `yaml:"dialTimeout" json:"dialTimeout" default:"10s"`
	AddressTTL      time.Duration `yaml:"addressTTL" json:"addressTTL" default:"30s"`
	RefreshInterval time.Duration `yaml:"refreshInterval" json:"refreshInterval" default:"15s"`
}

// AdminConfig defines the auxiliary metrics/health HTTP surface, kept
// off the data plane's port. Disabled by default so the CLI's bit-exact
// single-port contract is unaffected unless the operator opts in.
type AdminConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" default:"false"`
	Addr    string `yaml:"addr" json:"addr" default:":9090"`
}

// TracingConfig mirrors the OpenTelemetry setup, generalised to this
// proxy's service name.
type TracingConfig struct {
	Enabled        bool    `yaml:"enabled" json:"enabled" default:"false"`
	ServiceName    string  `yaml:"serviceName" json:"serviceName" default:"cacheproxy"`
	ServiceVersion string  `yaml:"serviceVersion" json:"serviceVersion" default:"1.0.0"`
	Environment    string  `yaml:"environment" json:"environment" default:"development"`
	JaegerEndpoint string  `yaml:"jaegerEndpoint" json:"jaegerEndpoint"`
	OTLPEndpoint   string  `yaml:"otlpEndpoint" json:"otlpEndpoint"`
	SamplingRatio  float64 `yaml:"samplingRatio" json:"samplingRatio" default:"0.1"`
}

// DefaultConfig returns configuration with every value spec.md pins,
// plus sensible defaults for the ambient knobs it leaves unspecified.
// Time Complexity: O(1). Space Complexity: O(1).
func DefaultConfig(port int) *Config {
	return &Config{
		Server: ServerConfig{
			Port:       port,
			PoolSize:   WorkerPoolSize,
			QueueDepth: WorkerPoolSize,
		},
		Cache: CacheConfig{
			MaxObjectBytes: MaxObjectSize,
			MaxTotalBytes:  MaxCacheSize,
		},
		RateLimit: RateLimitConfig{
			Enabled:    false,
			Capacity:   100,
			RefillRate: 10,
		},
		Upstream: UpstreamConfig{
			Algorithm:       "round-robin",
			DialTimeout:     10 * time.Second,
			AddressTTL:      30 * time.Second,
			RefreshInterval: 15 * time.Second,
		},
		Admin: AdminConfig{
			Enabled: false,
			Addr:    ":9090",
		},
		Tracing: TracingConfig{
			Enabled:        false,
			ServiceName:    "cacheproxy",
			ServiceVersion: "1.0.0",
			Environment:    "development",
			SamplingRatio:  0.1,
		},
	}
}

// GetInstance returns the singleton config instance, lazily defaulting
// to port 0 if nothing has called Load yet.
// Time Complexity: O(1) - returns cached instance after first call.
func GetInstance() *Config {
	once.Do(func() {
		instance = DefaultConfig(0)
	})
	return instance
}

// Load builds the singleton from a required port argument and an
// optional YAML overlay file. The port argument always wins over any
// "port" key present in the overlay, since the command line is the
// sole mandatory external interface.
// Time Complexity: O(n) where n is the overlay file size.
func Load(port int, overlayPath string) (*Config, error) {
	cfg := DefaultConfig(port)

	if overlayPath != "" {
		data, err := os.ReadFile(overlayPath)
		switch {
		case err == nil:
			if uerr := yaml.Unmarshal(data, cfg); uerr != nil {
				return nil, fmt.Errorf("parsing config overlay %s: %w", overlayPath, uerr)
			}
			cfg.Server.Port = port
		case os.IsNotExist(err):
			// No overlay on disk: defaults stand.
		default:
			return nil, fmt.Errorf("reading config overlay %s: %w", overlayPath, err)
		}
	}

	once.Do(func() {
		instance = cfg
	})
	return cfg, nil
}
