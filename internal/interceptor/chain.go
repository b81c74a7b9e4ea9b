package interceptor

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Interceptor wraps request handling with before and after hooks.
// A before hook may answer the request itself by calling MarkAsProcessed.
type Interceptor interface {
	BeforeHandlingRequest(ctx context.Context, rc *RequestContext) error
	AfterHandlingRequest(ctx context.Context, rc *RequestContext) error
}

// Hook is a single before or after function
type Hook func(ctx context.Context, rc *RequestContext) error

// BeforeFunc adapts a function to an Interceptor with a no-op after hook
type BeforeFunc Hook

func (f BeforeFunc) BeforeHandlingRequest(ctx context.Context, rc *RequestContext) error {
	return f(ctx, rc)
}

func (f BeforeFunc) AfterHandlingRequest(context.Context, *RequestContext) error {
	return nil
}

// AfterFunc adapts a function to an Interceptor with a no-op before hook
type AfterFunc Hook

func (f AfterFunc) BeforeHandlingRequest(context.Context, *RequestContext) error {
	return nil
}

func (f AfterFunc) AfterHandlingRequest(ctx context.Context, rc *RequestContext) error {
	return f(ctx, rc)
}

// Chain is an ordered list of interceptors built once at startup
type Chain struct {
	interceptors []Interceptor
	logger       zerolog.Logger
}

// NewChain creates a chain running interceptors in the given order
func NewChain(logger zerolog.Logger, interceptors ...Interceptor) *Chain {
	return &Chain{
		interceptors: interceptors,
		logger:       logger.With().Str("component", "interceptors").Logger(),
	}
}

// Len returns the number of interceptors
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.interceptors)
}

// Before runs before hooks in order until one fails or marks the context
// processed. It returns the interceptors whose before hook completed, so
// their after hooks can be run. A failing interceptor is not included.
func (c *Chain) Before(ctx context.Context, rc *RequestContext) ([]Interceptor, error) {
	if c == nil {
		return nil, nil
	}
	invoked := make([]Interceptor, 0, len(c.interceptors))
	for _, ic := range c.interceptors {
		if err := safeCall(ic.BeforeHandlingRequest, ctx, rc); err != nil {
			return invoked, err
		}
		invoked = append(invoked, ic)
		if rc.IsProcessed() {
			break
		}
	}
	return invoked, nil
}

// After runs the after hooks of invoked in reverse order. Every hook runs even
// if an earlier one fails; all failures are returned in execution order.
func (c *Chain) After(ctx context.Context, rc *RequestContext, invoked []Interceptor) []error {
	var errs []error
	for i := len(invoked) - 1; i >= 0; i-- {
		ic := invoked[i]
		if err := safeCall(ic.AfterHandlingRequest, ctx, rc); err != nil {
			c.logger.Warn().
				Err(err).
				Str("interceptor", fmt.Sprintf("%T", ic)).
				Msg("after hook failed")
			errs = append(errs, err)
		}
	}
	return errs
}

// safeCall invokes hook and converts a panic into an error
func safeCall(hook Hook, ctx context.Context, rc *RequestContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("interceptor panic: %v", r)
		}
	}()
	return hook(ctx, rc)
}
