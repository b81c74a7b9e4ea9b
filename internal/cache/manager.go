package cache

import (
	"time"

	"github.com/rs/zerolog"

	"batchrpc/internal/message"
)

// Policy decides which request types are cached and for how long
type Policy struct {
	// DefaultTTL applies to types configured without their own ttl
	DefaultTTL time.Duration
	// Types maps request type tags to their ttl; zero means DefaultTTL
	Types map[string]time.Duration
	// Disabled lists tags that are never cached, even if present in Types
	Disabled []string
}

// Manager is a Gateway backed by a Store. Responses are kept in encoded form,
// so every hit yields a fresh value the caller may modify.
type Manager struct {
	store    Store
	codec    *message.Codec
	ttls     map[string]time.Duration
	disabled map[string]bool
	logger   zerolog.Logger
}

// NewManager creates a cache manager
func NewManager(store Store, codec *message.Codec, policy Policy, logger zerolog.Logger) *Manager {
	m := &Manager{
		store:    store,
		codec:    codec,
		ttls:     make(map[string]time.Duration, len(policy.Types)),
		disabled: make(map[string]bool, len(policy.Disabled)),
		logger:   logger.With().Str("component", "cache").Logger(),
	}
	for tag, ttl := range policy.Types {
		if ttl <= 0 {
			ttl = policy.DefaultTTL
		}
		m.ttls[tag] = ttl
	}
	for _, tag := range policy.Disabled {
		m.disabled[tag] = true
	}
	return m
}

// IsCachingEnabledFor implements Gateway
func (m *Manager) IsCachingEnabledFor(requestType string) bool {
	if m.disabled[requestType] {
		return false
	}
	ttl, ok := m.ttls[requestType]
	return ok && ttl > 0
}

// GetCachedResponseFor implements Gateway
func (m *Manager) GetCachedResponseFor(req message.Request) (message.Response, bool) {
	if req == nil || !m.IsCachingEnabledFor(req.RequestType()) {
		return nil, false
	}

	key, ok := m.keyFor(req)
	if !ok {
		return nil, false
	}

	data, found := m.store.Get(key)
	if !found {
		m.logger.Debug().Str("key", key).Msg("cache miss")
		return nil, false
	}

	resp, err := m.codec.DecodeResponse(data)
	if err != nil {
		m.logger.Warn().Err(err).Str("key", key).Msg("dropping undecodable cache entry")
		return nil, false
	}

	m.logger.Debug().Str("key", key).Msg("cache hit")
	return resp, true
}

// StoreInCache implements Gateway
func (m *Manager) StoreInCache(req message.Request, resp message.Response) {
	if req == nil || resp == nil {
		return
	}
	tag := req.RequestType()
	if !m.IsCachingEnabledFor(tag) {
		return
	}

	key, ok := m.keyFor(req)
	if !ok {
		return
	}

	data, err := m.codec.EncodeResponse(resp)
	if err != nil {
		m.logger.Warn().Err(err).Str("type", tag).Msg("failed to encode response for cache")
		return
	}

	m.store.Set(key, data, m.ttls[tag])
	m.logger.Debug().Str("key", key).Msg("response cached")
}

// Close closes the underlying store
func (m *Manager) Close() {
	m.store.Close()
}

// keyFor derives the cache key of a request from its encoded form
func (m *Manager) keyFor(req message.Request) (string, bool) {
	body, err := m.codec.EncodeRequest(req)
	if err != nil {
		m.logger.Warn().Err(err).Str("type", req.RequestType()).Msg("failed to encode request for cache key")
		return "", false
	}
	return GenerateKey(req.RequestType(), body), true
}
