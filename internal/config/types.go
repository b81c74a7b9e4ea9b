package config

import "time"

// Role defines the endpoint role type
type Role string

const (
	RoleMain     Role = "main"
	RoleFallback Role = "fallback"
)

// Config represents the main configuration structure
type Config struct {
	Host           string             `json:"host"`
	HTTPPort       int                `json:"httpPort"`
	WSPort         int                `json:"wsPort"`
	LogLevel       string             `json:"logLevel"`
	MaxBodySize    int64              `json:"maxBodySize"`
	RequestTimeout int                `json:"requestTimeout"` // ms
	Cache          *CacheConfig       `json:"cache,omitempty"`
	Performance    *PerformanceConfig `json:"performance,omitempty"`
	Plugins        *PluginConfig      `json:"plugins,omitempty"`
	Client         *ClientConfig      `json:"client,omitempty"`
}

// CacheConfig represents response cache configuration
type CacheConfig struct {
	Enabled       bool           `json:"enabled"`
	TTL           int            `json:"ttl"`           // seconds
	Size          int            `json:"size"`          // number of entries
	Types         map[string]int `json:"types"`         // request type -> ttl seconds, 0 = ttl
	DisabledTypes []string       `json:"disabledTypes"` // request types to exclude from caching
}

// PerformanceConfig holds slow batch and slow request warning thresholds
type PerformanceConfig struct {
	BatchWarnThreshold   int `json:"batchWarnThreshold"`   // ms
	RequestWarnThreshold int `json:"requestWarnThreshold"` // ms
}

// PluginConfig represents script handler configuration
type PluginConfig struct {
	Enabled   bool   `json:"enabled"`
	Directory string `json:"directory"` // path to scripts directory
	Timeout   int    `json:"timeout"`   // execution timeout in milliseconds
}

// ClientConfig configures the remote endpoints requests can be forwarded to
type ClientConfig struct {
	Endpoints        []EndpointConfig      `json:"endpoints"`
	Forward          []string              `json:"forward"` // request types handled remotely
	PreferWS         bool                  `json:"preferWS"`
	RetryMaxAttempts int                   `json:"retryMaxAttempts"`
	MessageTimeout   int                   `json:"messageTimeout"` // ms
	CircuitBreaker   *CircuitBreakerConfig `json:"circuitBreaker,omitempty"`
}

// EndpointConfig represents a single remote batch endpoint
type EndpointConfig struct {
	Name    string `json:"name"`
	HTTPURL string `json:"httpUrl"`
	WSURL   string `json:"wsUrl"`
	Weight  int    `json:"weight"`
	Role    Role   `json:"role"`
}

// CircuitBreakerConfig represents per-endpoint circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled             bool `json:"enabled"`
	FailureThreshold    int  `json:"failureThreshold"`
	RecoveryTimeout     int  `json:"recoveryTimeout"` // ms
	HalfOpenMaxRequests int  `json:"halfOpenMaxRequests"`
}

// Default values
const (
	DefaultHost                 = "localhost"
	DefaultHTTPPort             = 8080
	DefaultWSPort               = 8081
	DefaultLogLevel             = "info"
	DefaultMaxBodySize          = int64(0) // 0 means no limit
	DefaultRequestTimeout       = 5000     // ms
	DefaultBatchWarnThreshold   = 200      // ms
	DefaultRequestWarnThreshold = 100      // ms
	DefaultRetryMaxAttempts     = 3
	DefaultMessageTimeout       = 60000 // ms
	DefaultEndpointWeight       = 1
	DefaultEndpointRole         = RoleMain
	DefaultFailureThreshold     = 5
	DefaultRecoveryTimeout      = 30000 // ms
	DefaultHalfOpenMaxRequests  = 2
	DefaultPluginDirectory      = "./plugins"
	DefaultPluginTimeout        = 30000 // ms - default script execution timeout
)

// GetRequestTimeoutDuration returns request timeout as time.Duration
func (c *Config) GetRequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Millisecond
}

// IsCacheEnabled returns true if cache is configured and enabled
func (c *Config) IsCacheEnabled() bool {
	return c.Cache != nil && c.Cache.Enabled
}

// IsPluginsEnabled returns true if plugins are configured and enabled
func (c *Config) IsPluginsEnabled() bool {
	return c.Plugins != nil && c.Plugins.Enabled
}

// IsForwardingEnabled returns true if some request types are handled remotely
func (c *Config) IsForwardingEnabled() bool {
	return c.Client != nil && len(c.Client.Endpoints) > 0 && len(c.Client.Forward) > 0
}

// GetPluginDirectory returns the plugins directory path
func (c *Config) GetPluginDirectory() string {
	if c.Plugins == nil || c.Plugins.Directory == "" {
		return DefaultPluginDirectory
	}
	return c.Plugins.Directory
}

// GetPluginTimeoutDuration returns plugin timeout as time.Duration
func (c *Config) GetPluginTimeoutDuration() time.Duration {
	if c.Plugins == nil || c.Plugins.Timeout == 0 {
		return time.Duration(DefaultPluginTimeout) * time.Millisecond
	}
	return time.Duration(c.Plugins.Timeout) * time.Millisecond
}

// GetBatchWarnThresholdDuration returns the slow batch threshold as time.Duration
func (c *Config) GetBatchWarnThresholdDuration() time.Duration {
	if c.Performance == nil {
		return time.Duration(DefaultBatchWarnThreshold) * time.Millisecond
	}
	return time.Duration(c.Performance.BatchWarnThreshold) * time.Millisecond
}

// GetRequestWarnThresholdDuration returns the slow request threshold as time.Duration
func (c *Config) GetRequestWarnThresholdDuration() time.Duration {
	if c.Performance == nil {
		return time.Duration(DefaultRequestWarnThreshold) * time.Millisecond
	}
	return time.Duration(c.Performance.RequestWarnThreshold) * time.Millisecond
}

// GetTTLDuration returns the default cache TTL as time.Duration
func (c *CacheConfig) GetTTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

// GetTypeTTLs returns the per-type TTLs as durations
func (c *CacheConfig) GetTypeTTLs() map[string]time.Duration {
	ttls := make(map[string]time.Duration, len(c.Types))
	for tag, seconds := range c.Types {
		ttls[tag] = time.Duration(seconds) * time.Second
	}
	return ttls
}

// GetMessageTimeoutDuration returns the WebSocket reply timeout as time.Duration
func (c *ClientConfig) GetMessageTimeoutDuration() time.Duration {
	return time.Duration(c.MessageTimeout) * time.Millisecond
}

// GetRecoveryTimeoutDuration returns the circuit breaker recovery timeout as time.Duration
func (c *CircuitBreakerConfig) GetRecoveryTimeoutDuration() time.Duration {
	return time.Duration(c.RecoveryTimeout) * time.Millisecond
}
