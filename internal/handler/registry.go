package handler

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"batchrpc/internal/message"
)

var (
	// ErrDuplicateHandler is returned when a request type gets a second handler
	ErrDuplicateHandler = errors.New("handler: request type already has a handler")
	// ErrNoHandler is returned when no handler is registered for a request type
	ErrNoHandler = errors.New("handler: no handler registered")
)

// Factory creates a handler instance for one request.
// Handlers implementing io.Closer are closed after use.
type Factory func() (Handler, error)

// Registry maps request type tags to handler factories.
// It is populated at startup and read concurrently afterwards.
type Registry struct {
	factories map[string]Factory
	logger    zerolog.Logger
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		logger:    logger.With().Str("component", "handlers").Logger(),
	}
}

// Register registers a factory for the request type tag
func (r *Registry) Register(tag string, factory Factory) error {
	if tag == "" {
		return errors.New("handler: empty request type")
	}
	if factory == nil {
		return fmt.Errorf("handler: nil factory for %q", tag)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[tag]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateHandler, tag)
	}
	r.factories[tag] = factory
	r.logger.Debug().Str("type", tag).Msg("handler registered")
	return nil
}

// RegisterHandler registers a shared handler instance for its request type
func (r *Registry) RegisterHandler(h Handler) error {
	if h == nil {
		return errors.New("handler: nil handler")
	}
	return r.Register(h.RequestType(), func() (Handler, error) { return h, nil })
}

// Resolve creates the handler for the request type tag
func (r *Registry) Resolve(tag string) (Handler, error) {
	r.mu.RLock()
	factory, ok := r.factories[tag]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w for %q", ErrNoHandler, tag)
	}
	h, err := factory()
	if err != nil {
		return nil, fmt.Errorf("failed to create handler for %q: %w", tag, err)
	}
	if h == nil {
		return nil, fmt.Errorf("%w for %q: factory returned nil", ErrNoHandler, tag)
	}
	return h, nil
}

// Release disposes a resolved handler
func (r *Registry) Release(h Handler) {
	closer, ok := h.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		r.logger.Warn().Err(err).Str("type", h.RequestType()).Msg("failed to release handler")
	}
}

// Has returns true if a handler is registered for tag
func (r *Registry) Has(tag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[tag]
	return ok
}

// Types returns all registered request type tags, sorted
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]string, 0, len(r.factories))
	for tag := range r.factories {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// DefaultResponseFor asks the handler of req's type for its default response
func (r *Registry) DefaultResponseFor(req message.Request) (message.Response, error) {
	h, err := r.Resolve(message.TypeOf(req))
	if err != nil {
		return nil, err
	}
	defer r.Release(h)
	return h.DefaultResponse(), nil
}
