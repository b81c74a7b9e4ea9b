package dispatcher

import (
	"context"
	"sync"

	"batchrpc/internal/message"
)

// Future is the result of one dispatch cycle. It is completed exactly once
// and may be awaited by any number of callers.
type Future struct {
	ch        chan struct{} // Closed when responses are ready
	responses []message.Response
	err       error

	once sync.Once
}

func newFuture() *Future {
	return &Future{
		ch: make(chan struct{}),
	}
}

// complete sets the result. Later calls are ignored.
func (f *Future) complete(responses []message.Response, err error) {
	f.once.Do(func() {
		f.responses = responses
		f.err = err
		close(f.ch)
	})
}

// Done returns a channel closed when the responses are ready
func (f *Future) Done() <-chan struct{} {
	return f.ch
}

// Wait blocks until the future is completed or ctx is done
func (f *Future) Wait(ctx context.Context) ([]message.Response, error) {
	select {
	case <-f.ch:
		return f.responses, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the responses without blocking. The boolean reports whether
// the future is completed.
func (f *Future) Result() ([]message.Response, bool, error) {
	select {
	case <-f.ch:
		return f.responses, true, f.err
	default:
		return nil, false, nil
	}
}
