package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"batchrpc/internal/fault"
	"batchrpc/internal/handler"
	"batchrpc/internal/interceptor"
	"batchrpc/internal/message"
)

// ErrHandlerPanic wraps a panic raised by a request handler
var ErrHandlerPanic = errors.New("processor: handler panicked")

// Default thresholds for slow batch and slow request warnings
const (
	DefaultBatchWarnThreshold   = 200 * time.Millisecond
	DefaultRequestWarnThreshold = 100 * time.Millisecond
)

// Option configures a Processor
type Option func(*Processor)

// WithInterceptors sets the interceptor chain run around every handler
func WithInterceptors(chain *interceptor.Chain) Option {
	return func(p *Processor) {
		p.chain = chain
	}
}

// WithUnitOfWork sets the factory creating one unit of work per batch
func WithUnitOfWork(factory UnitOfWorkFactory) Option {
	return func(p *Processor) {
		p.newUnitOfWork = factory
	}
}

// WithThresholds sets the slow batch and slow request warning thresholds.
// A zero threshold disables the warning.
func WithThresholds(batch, request time.Duration) Option {
	return func(p *Processor) {
		p.batchWarn = batch
		p.requestWarn = request
	}
}

// WithHandlerErrorHook registers a callback invoked for every fault raised
// by an interceptor or handler
func WithHandlerErrorHook(fn func(req message.Request, err error)) Option {
	return func(p *Processor) {
		p.onHandlerError = fn
	}
}

// Processor runs batches of requests through interceptors and handlers
type Processor struct {
	handlers       *handler.Registry
	errors         *fault.ErrorHandler
	chain          *interceptor.Chain
	newUnitOfWork  UnitOfWorkFactory
	onHandlerError func(req message.Request, err error)
	batchWarn      time.Duration
	requestWarn    time.Duration
	logger         zerolog.Logger
}

// New creates a processor
func New(handlers *handler.Registry, errs *fault.ErrorHandler, logger zerolog.Logger, opts ...Option) *Processor {
	p := &Processor{
		handlers:      handlers,
		errors:        errs,
		newUnitOfWork: nopUnitOfWork,
		batchWarn:     DefaultBatchWarnThreshold,
		requestWarn:   DefaultRequestWarnThreshold,
		logger:        logger.With().Str("component", "processor").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.errors == nil {
		p.errors = fault.NewErrorHandler(nil, nil)
	}
	return p
}

// Process handles the batch in order and returns one response per request.
// Once a request fails, the remaining requests are not attempted and answer
// with EarlierRequestAlreadyFailed.
func (p *Processor) Process(ctx context.Context, requests []message.Request) []message.Response {
	start := time.Now()
	responses := make([]message.Response, len(requests))

	uow := p.newUnitOfWork()
	if err := uow.Start(ctx); err != nil {
		p.logger.Error().Err(err).Int("requests", len(requests)).Msg("failed to start unit of work")
		err = fmt.Errorf("failed to start unit of work: %w", err)
		for i, req := range requests {
			responses[i] = p.errors.DealWithException(req, err)
		}
		return responses
	}

	var firstErr error
	defer func() {
		uow.End(firstErr)
		p.warnIfSlow(start, requests)
	}()

	for i, req := range requests {
		rc := interceptor.NewRequestContext(req)
		if firstErr != nil {
			rc.MarkAsFailed(p.errors.DealWithPreviouslyOccurredExceptions(req))
		} else if err := p.runRequest(ctx, rc); err != nil {
			firstErr = err
		}
		responses[i] = rc.Response()
	}
	return responses
}

// ProcessOneWay handles the batch and discards the responses
func (p *Processor) ProcessOneWay(ctx context.Context, requests []message.Request) {
	for i, resp := range p.Process(ctx, requests) {
		if message.IsSuccess(resp) {
			continue
		}
		event := p.logger.Warn().
			Int("index", i).
			Str("type", message.TypeOf(requests[i])).
			Str("exceptionKind", resp.ExceptionKind().String())
		if f := resp.Fault(); f != nil {
			event = event.Str("fault", f.Message)
		}
		event.Msg("one-way request failed")
	}
}

// runRequest processes rc and turns a panic raised outside the handler, in a
// hook or in logging, into a fault for this request
func (p *Processor) runRequest(ctx context.Context, rc *interceptor.RequestContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
			rc.MarkAsFailed(p.errors.DealWithException(rc.Request, err))
			p.logger.Error().Err(err).Str("type", message.TypeOf(rc.Request)).Msg("request failed")
		}
	}()
	return p.processRequest(ctx, rc)
}

// processRequest runs one request through the chain and its handler and
// returns the fault that should poison the rest of the batch, if any
func (p *Processor) processRequest(ctx context.Context, rc *interceptor.RequestContext) error {
	start := time.Now()
	tag := message.TypeOf(rc.Request)

	invoked, err := p.chain.Before(ctx, rc)
	if err == nil && !rc.IsProcessed() {
		err = p.handle(ctx, rc)
	}
	if err != nil {
		p.fail(rc, err)
	}

	if afterErrs := p.chain.After(ctx, rc, invoked); len(afterErrs) > 0 && err == nil {
		err = afterErrs[0]
		p.fail(rc, err)
	}

	if elapsed := time.Since(start); p.requestWarn > 0 && elapsed > p.requestWarn {
		p.logger.Warn().
			Str("type", tag).
			Dur("duration", elapsed).
			Msg("slow request")
	}
	return err
}

// handle runs the handler registered for the request type. A panic anywhere
// between resolving and releasing the handler becomes ErrHandlerPanic.
func (p *Processor) handle(ctx context.Context, rc *interceptor.RequestContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()

	h, err := p.handlers.Resolve(message.TypeOf(rc.Request))
	if err != nil {
		return err
	}
	defer p.handlers.Release(h)

	resp, err := h.Handle(ctx, rc.Request)
	if err != nil {
		return err
	}
	return rc.MarkAsProcessed(resp)
}

// fail classifies err into the context's response
func (p *Processor) fail(rc *interceptor.RequestContext, err error) {
	resp := p.errors.DealWithException(rc.Request, err)
	rc.MarkAsFailed(resp)

	event := p.logger.Debug()
	if resp.ExceptionKind() == message.Unknown {
		event = p.logger.Error()
	}
	event.Err(err).
		Str("type", message.TypeOf(rc.Request)).
		Str("exceptionKind", resp.ExceptionKind().String()).
		Msg("request failed")

	if p.onHandlerError != nil {
		p.onHandlerError(rc.Request, err)
	}
}

func (p *Processor) warnIfSlow(start time.Time, requests []message.Request) {
	elapsed := time.Since(start)
	if p.batchWarn <= 0 || elapsed <= p.batchWarn {
		return
	}
	p.logger.Warn().
		Strs("types", message.Tags(requests)).
		Dur("duration", elapsed).
		Msg("slow batch")
}
