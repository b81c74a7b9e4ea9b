package cache

import (
	"time"

	"batchrpc/internal/message"
)

// Gateway is the cache-aside contract shared by the dispatcher and the
// server-side caching interceptor. It must tolerate concurrent use.
type Gateway interface {
	// IsCachingEnabledFor reports whether responses to requests of the given
	// type tag may be cached
	IsCachingEnabledFor(requestType string) bool

	// GetCachedResponseFor returns a cached response for the exact request
	GetCachedResponseFor(req message.Request) (message.Response, bool)

	// StoreInCache stores the response for the request
	StoreInCache(req message.Request, resp message.Response)
}

// Store holds encoded responses by key.
// This interface allows for different implementations (in-memory, Redis, etc.)
type Store interface {
	// Get retrieves a stored value by key
	// Returns the stored data and true if found, nil and false otherwise
	Get(key string) ([]byte, bool)

	// Set stores a value under key for the given ttl
	Set(key string, value []byte, ttl time.Duration)

	// Close releases any resources held by the store
	Close()
}

// NoopGateway disables caching entirely
type NoopGateway struct{}

// IsCachingEnabledFor always returns false
func (NoopGateway) IsCachingEnabledFor(string) bool { return false }

// GetCachedResponseFor always returns not found
func (NoopGateway) GetCachedResponseFor(message.Request) (message.Response, bool) {
	return nil, false
}

// StoreInCache does nothing
func (NoopGateway) StoreInCache(message.Request, message.Response) {}
