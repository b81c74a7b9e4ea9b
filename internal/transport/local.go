package transport

import (
	"context"

	"batchrpc/internal/message"
)

// BatchProcessor is the server-side pipeline a Local transport wraps
type BatchProcessor interface {
	Process(ctx context.Context, requests []message.Request) []message.Response
	ProcessOneWay(ctx context.Context, requests []message.Request)
}

// Local calls an in-process pipeline directly
type Local struct {
	processor BatchProcessor
}

// NewLocal creates an in-process transport
func NewLocal(processor BatchProcessor) *Local {
	return &Local{processor: processor}
}

// Process implements Processor
func (l *Local) Process(ctx context.Context, requests []message.Request) ([]message.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.processor.Process(ctx, requests), nil
}

// ProcessOneWay implements Processor
func (l *Local) ProcessOneWay(ctx context.Context, requests []message.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.processor.ProcessOneWay(ctx, requests)
	return nil
}

// Close implements Processor
func (l *Local) Close() error {
	return nil
}
