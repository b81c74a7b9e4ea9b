package message

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrDuplicateType is returned when a tag is registered twice
	ErrDuplicateType = errors.New("message: type tag already registered")
	// ErrUnknownType is returned when a tag has no registered constructor
	ErrUnknownType = errors.New("message: unknown type tag")
)

// TypeRegistry maps type tags to constructors of concrete requests and responses.
// It is built once at startup and shared by reference.
type TypeRegistry struct {
	requests  map[string]func() Request
	responses map[string]func() Response
	mu        sync.RWMutex
}

// NewTypeRegistry creates a registry that already knows GenericResponse
func NewTypeRegistry() *TypeRegistry {
	r := &TypeRegistry{
		requests:  make(map[string]func() Request),
		responses: make(map[string]func() Response),
	}
	r.responses[GenericResponseType] = func() Response { return &GenericResponse{} }
	return r
}

// RegisterRequest registers a request constructor under tag
func (r *TypeRegistry) RegisterRequest(tag string, ctor func() Request) error {
	if tag == "" {
		return errors.New("message: empty request tag")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.requests[tag]; exists {
		return fmt.Errorf("%w: request %q", ErrDuplicateType, tag)
	}
	r.requests[tag] = ctor
	return nil
}

// RegisterResponse registers a response constructor under tag
func (r *TypeRegistry) RegisterResponse(tag string, ctor func() Response) error {
	if tag == "" {
		return errors.New("message: empty response tag")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.responses[tag]; exists {
		return fmt.Errorf("%w: response %q", ErrDuplicateType, tag)
	}
	r.responses[tag] = ctor
	return nil
}

// RegisterRequest registers the request type *T, taking its tag from a fresh value
func RegisterRequest[T any, PT interface {
	*T
	Request
}](r *TypeRegistry) error {
	tag := PT(new(T)).RequestType()
	return r.RegisterRequest(tag, func() Request { return PT(new(T)) })
}

// RegisterResponse registers the response type *T, taking its tag from a fresh value
func RegisterResponse[T any, PT interface {
	*T
	Response
}](r *TypeRegistry) error {
	tag := PT(new(T)).ResponseType()
	return r.RegisterResponse(tag, func() Response { return PT(new(T)) })
}

// NewRequest creates a zero-valued request for tag
func (r *TypeRegistry) NewRequest(tag string) (Request, error) {
	r.mu.RLock()
	ctor, ok := r.requests[tag]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: request %q", ErrUnknownType, tag)
	}
	return ctor(), nil
}

// NewResponse creates a zero-valued response for tag
func (r *TypeRegistry) NewResponse(tag string) (Response, error) {
	r.mu.RLock()
	ctor, ok := r.responses[tag]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: response %q", ErrUnknownType, tag)
	}
	return ctor(), nil
}

// HasRequest returns true if tag is a registered request type
func (r *TypeRegistry) HasRequest(tag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.requests[tag]
	return ok
}

// HasResponse returns true if tag is a registered response type
func (r *TypeRegistry) HasResponse(tag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.responses[tag]
	return ok
}

// RequestTypes returns all registered request tags, sorted
func (r *TypeRegistry) RequestTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]string, 0, len(r.requests))
	for tag := range r.requests {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
