package fault

import (
	"strings"

	"batchrpc/internal/cache"
	"batchrpc/internal/message"
)

// Convention maps a request type tag to the tag of its response type
type Convention func(requestType string) (responseType string, ok bool)

// SuffixConvention maps "XxxRequest" to "XxxResponse"
func SuffixConvention(requestType string) (string, bool) {
	base, found := strings.CutSuffix(requestType, "Request")
	if !found || base == "" {
		return "", false
	}
	return base + "Response", true
}

// DefaultResponder synthesizes the default response for a request,
// typically by asking the handler registered for its type
type DefaultResponder interface {
	DefaultResponseFor(req message.Request) (message.Response, error)
}

// ResponseResolver determines which response type to build for a request
// that faulted or was never handled
type ResponseResolver struct {
	types       *message.TypeRegistry
	conventions []Convention
	gateway     cache.Gateway
	responder   DefaultResponder
}

// ResolverOption configures a ResponseResolver
type ResolverOption func(*ResponseResolver)

// WithConventions replaces the naming conventions tried first
func WithConventions(conventions ...Convention) ResolverOption {
	return func(r *ResponseResolver) {
		r.conventions = conventions
	}
}

// WithCache lets the resolver use the type of a cached response
func WithCache(gateway cache.Gateway) ResolverOption {
	return func(r *ResponseResolver) {
		r.gateway = gateway
	}
}

// WithDefaultResponder lets the resolver ask handlers for default responses
func WithDefaultResponder(responder DefaultResponder) ResolverOption {
	return func(r *ResponseResolver) {
		r.responder = responder
	}
}

// NewResponseResolver creates a resolver using the suffix convention by default
func NewResponseResolver(types *message.TypeRegistry, opts ...ResolverOption) *ResponseResolver {
	r := &ResponseResolver{
		types:       types,
		conventions: []Convention{SuffixConvention},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultResponseFor returns a fresh zero response for req. Strategies are
// tried in order: naming conventions, cached response type, the handler's
// default response, and finally GenericResponse. A strategy that panics
// yields GenericResponse.
func (r *ResponseResolver) DefaultResponseFor(req message.Request) (resp message.Response) {
	defer func() {
		if recover() != nil {
			resp = &message.GenericResponse{}
		}
	}()

	if req == nil {
		return &message.GenericResponse{}
	}
	tag := req.RequestType()

	if r.types != nil {
		for _, convention := range r.conventions {
			responseType, ok := convention(tag)
			if !ok {
				continue
			}
			if resp, err := r.types.NewResponse(responseType); err == nil {
				return resp
			}
		}
	}

	if r.gateway != nil && r.types != nil && r.gateway.IsCachingEnabledFor(tag) {
		if cached, ok := r.gateway.GetCachedResponseFor(req); ok {
			if resp, err := r.types.NewResponse(cached.ResponseType()); err == nil {
				return resp
			}
		}
	}

	if r.responder != nil {
		if resp, err := r.responder.DefaultResponseFor(req); err == nil && resp != nil {
			return resp
		}
	}

	return &message.GenericResponse{}
}
