package transport

import (
	"context"

	"batchrpc/internal/message"
)

// Processor is the client side of the processing boundary. Process returns
// one response per request in the same order; an error means the batch never
// reached the handlers.
type Processor interface {
	Process(ctx context.Context, requests []message.Request) ([]message.Response, error)
	ProcessOneWay(ctx context.Context, requests []message.Request) error
	Close() error
}

// FailAll builds one Unknown fault response per request for a batch that
// failed before any handler ran
func FailAll(requests []message.Request, err error) []message.Response {
	responses := make([]message.Response, len(requests))
	for i := range requests {
		responses[i] = Failure(err)
	}
	return responses
}

// Failure builds a single Unknown fault response for a transport error
func Failure(err error) message.Response {
	record := &message.FaultRecord{
		Message: err.Error(),
		Type:    "transport",
	}
	return message.NewFaultResponse(nil, message.Unknown, record)
}

// Factory creates the processor used for one dispatch cycle
type Factory func() (Processor, error)

// Shared returns a Factory handing out p itself. Closing a processor obtained
// from it leaves p open, so p can serve many cycles.
func Shared(p Processor) Factory {
	return func() (Processor, error) {
		return borrowed{p}, nil
	}
}

type borrowed struct {
	Processor
}

func (borrowed) Close() error { return nil }
