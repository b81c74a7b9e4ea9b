package dispatcher

import (
	"context"
	"fmt"

	"batchrpc/internal/message"
)

// Batch is the part of a dispatcher used by the typed helpers.
// Dispatcher and Stub implement it.
type Batch interface {
	Add(reqs ...message.Request) error
	Responses(ctx context.Context) ([]message.Response, error)
	ResponseFor(ctx context.Context, key string) (message.Response, error)
}

var (
	_ Batch = (*Dispatcher)(nil)
	_ Batch = (*Stub)(nil)
)

// AddNew creates a zero *T, lets configure fill it in and adds it
func AddNew[T any, PT interface {
	*T
	message.Request
}](b Batch, configure func(PT)) error {
	req := PT(new(T))
	if configure != nil {
		configure(req)
	}
	return b.Add(req)
}

// Get returns the only response of type *T in the batch
func Get[T any, PT interface {
	*T
	message.Response
}](ctx context.Context, b Batch) (PT, error) {
	responses, err := b.Responses(ctx)
	if err != nil {
		return nil, err
	}

	var match PT
	count := 0
	for _, resp := range responses {
		if typed, ok := resp.(PT); ok {
			match = typed
			count++
		}
	}

	switch count {
	case 0:
		want := PT(new(T)).ResponseType()
		if record := firstGenericFault(responses); record != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrNoResponse, want, record)
		}
		return nil, fmt.Errorf("%w: %s", ErrNoResponse, want)
	case 1:
		return match, nil
	default:
		return nil, fmt.Errorf("%w: %d responses of type %s", ErrAmbiguousResponse, count, match.ResponseType())
	}
}

// GetKeyed returns the response of the request added under key
func GetKeyed[T any, PT interface {
	*T
	message.Response
}](ctx context.Context, b Batch, key string) (PT, error) {
	resp, err := b.ResponseFor(ctx, key)
	if err != nil {
		return nil, err
	}
	typed, ok := resp.(PT)
	if !ok {
		return nil, fmt.Errorf("%w: key %q holds %s (%s)",
			ErrNoResponse, key, typeName(resp), exceptionKind(resp))
	}
	return typed, nil
}

// GetFor adds req and returns the only response of type *T
func GetFor[T any, PT interface {
	*T
	message.Response
}](ctx context.Context, b Batch, req message.Request) (PT, error) {
	if err := b.Add(req); err != nil {
		return nil, err
	}
	return Get[T, PT](ctx, b)
}

// Has reports whether the batch holds at least one response of type *T
func Has[T any, PT interface {
	*T
	message.Response
}](ctx context.Context, b Batch) (bool, error) {
	responses, err := b.Responses(ctx)
	if err != nil {
		return false, err
	}
	for _, resp := range responses {
		if _, ok := resp.(PT); ok {
			return true, nil
		}
	}
	return false, nil
}

// firstGenericFault returns the fault of the first untyped unknown-kind
// response, as produced when the batch never reached its handlers
func firstGenericFault(responses []message.Response) *message.FaultRecord {
	for _, resp := range responses {
		generic, ok := resp.(*message.GenericResponse)
		if !ok || generic.ExceptionKind() != message.Unknown {
			continue
		}
		if record := generic.Fault(); record != nil {
			return record
		}
	}
	return nil
}

func typeName(resp message.Response) string {
	if resp == nil {
		return "<nil>"
	}
	return resp.ResponseType()
}

func exceptionKind(resp message.Response) string {
	if resp == nil {
		return message.None.String()
	}
	return resp.ExceptionKind().String()
}
