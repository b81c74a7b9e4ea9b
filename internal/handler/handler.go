package handler

import (
	"context"
	"fmt"

	"batchrpc/internal/message"
)

// Handler processes requests of exactly one type
type Handler interface {
	// RequestType returns the tag of the request type this handler serves
	RequestType() string

	// Handle processes the request and returns its response
	Handle(ctx context.Context, req message.Request) (message.Response, error)

	// DefaultResponse returns a fresh zero value of the handler's response type
	DefaultResponse() message.Response
}

// typed adapts a strongly typed function to Handler
type typed[Q any, PQ interface {
	*Q
	message.Request
}, R any, PR interface {
	*R
	message.Response
}] struct {
	tag string
	fn  func(ctx context.Context, req PQ) (PR, error)
}

// New wraps fn as a Handler for the request type *Q producing *R
func New[Q any, PQ interface {
	*Q
	message.Request
}, R any, PR interface {
	*R
	message.Response
}](fn func(ctx context.Context, req PQ) (PR, error)) Handler {
	return &typed[Q, PQ, R, PR]{
		tag: PQ(new(Q)).RequestType(),
		fn:  fn,
	}
}

func (h *typed[Q, PQ, R, PR]) RequestType() string {
	return h.tag
}

func (h *typed[Q, PQ, R, PR]) Handle(ctx context.Context, req message.Request) (message.Response, error) {
	q, ok := req.(PQ)
	if !ok {
		return nil, fmt.Errorf("handler for %q cannot handle %T", h.tag, req)
	}
	resp, err := h.fn(ctx, q)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return h.DefaultResponse(), nil
	}
	return resp, nil
}

func (h *typed[Q, PQ, R, PR]) DefaultResponse() message.Response {
	return PR(new(R))
}
