package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"batchrpc/internal/cache"
	"batchrpc/internal/message"
	"batchrpc/internal/transport"
)

// FaultHook is notified about a faulted response after materialization.
// A non-nil error fails the cycle: every caller waiting on its responses
// receives it wrapped in ErrFaultEscalated.
type FaultHook func(ctx context.Context, req message.Request, resp message.Response) error

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithSecurityFaultHook is called for every response of kind Security
func WithSecurityFaultHook(hook FaultHook) Option {
	return func(d *Dispatcher) {
		d.onSecurityFault = hook
	}
}

// WithUnknownFaultHook is called for every response of kind Unknown
func WithUnknownFaultHook(hook FaultHook) Option {
	return func(d *Dispatcher) {
		d.onUnknownFault = hook
	}
}

// WithBeforeSend is called with the requests about to be transmitted
func WithBeforeSend(fn func(ctx context.Context, requests []message.Request)) Option {
	return func(d *Dispatcher) {
		d.beforeSend = fn
	}
}

// WithAfterSend is called with the responses received from the processor
func WithAfterSend(fn func(ctx context.Context, responses []message.Response)) Option {
	return func(d *Dispatcher) {
		d.afterSend = fn
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger.With().Str("component", "dispatcher").Logger()
	}
}

type cycleKind int

const (
	kindUnset cycleKind = iota
	kindTwoWay
	kindOneWay
)

// Dispatcher collects requests for one dispatch cycle, sends them as a single
// batch and correlates the responses. Responses are materialized once, on the
// first call to Send, Responses or any accessor.
type Dispatcher struct {
	newProcessor transport.Factory
	gateway      cache.Gateway
	logger       zerolog.Logger

	onSecurityFault FaultHook
	onUnknownFault  FaultHook
	beforeSend      func(ctx context.Context, requests []message.Request)
	afterSend       func(ctx context.Context, responses []message.Response)

	requests []message.Request
	keys     map[string]int
	unkeyed  map[string]bool
	kind     cycleKind
	future   *Future

	mu sync.Mutex
}

// New creates a dispatcher. The factory is called at most once per cycle,
// and only if some request could not be answered from the cache. A nil
// gateway disables caching.
func New(newProcessor transport.Factory, gateway cache.Gateway, opts ...Option) *Dispatcher {
	if gateway == nil {
		gateway = cache.NoopGateway{}
	}
	d := &Dispatcher{
		newProcessor: newProcessor,
		gateway:      gateway,
		logger:       zerolog.Nop(),
		keys:         make(map[string]int),
		unkeyed:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Add enqueues unkeyed two-way requests. Either all requests are added or
// none are.
func (d *Dispatcher) Add(reqs ...message.Request) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkOpen(kindTwoWay); err != nil {
		return err
	}

	seen := make(map[string]bool, len(reqs))
	for _, req := range reqs {
		if err := checkTwoWay(req); err != nil {
			return err
		}
		tag := req.RequestType()
		if d.unkeyed[tag] || seen[tag] {
			return fmt.Errorf("%w: %s", ErrDuplicateRequestType, tag)
		}
		seen[tag] = true
	}

	for _, req := range reqs {
		d.unkeyed[req.RequestType()] = true
		d.requests = append(d.requests, req)
	}
	if len(reqs) > 0 {
		d.kind = kindTwoWay
	}
	return nil
}

// AddKeyed enqueues a two-way request under a key unique to this cycle
func (d *Dispatcher) AddKeyed(key string, req message.Request) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkOpen(kindTwoWay); err != nil {
		return err
	}
	if key == "" {
		return errors.New("dispatcher: empty key")
	}
	if err := checkTwoWay(req); err != nil {
		return err
	}
	if _, exists := d.keys[key]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateKey, key)
	}

	d.keys[key] = len(d.requests)
	d.requests = append(d.requests, req)
	d.kind = kindTwoWay
	return nil
}

// AddOneWay enqueues one-way requests
func (d *Dispatcher) AddOneWay(reqs ...message.OneWayRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkOpen(kindOneWay); err != nil {
		return err
	}
	for _, req := range reqs {
		if req == nil {
			return errors.New("dispatcher: nil request")
		}
	}
	for _, req := range reqs {
		d.requests = append(d.requests, req)
	}
	if len(reqs) > 0 {
		d.kind = kindOneWay
	}
	return nil
}

// Requests returns a copy of the queued requests
func (d *Dispatcher) Requests() []message.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]message.Request(nil), d.requests...)
}

// Send materializes the responses of this cycle. It returns immediately; the
// returned future completes once, from a separate goroutine, even when every
// response came from the cache. Later calls return the same future.
func (d *Dispatcher) Send(ctx context.Context) *Future {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.future != nil {
		return d.future
	}
	d.future = newFuture()

	if d.kind == kindOneWay {
		d.future.complete(nil, fmt.Errorf("%w: use ProcessOneWay", ErrMixedRequestKinds))
		return d.future
	}

	requests := append([]message.Request(nil), d.requests...)
	go d.run(ctx, requests, d.future)
	return d.future
}

// Responses sends if necessary and blocks until all responses are available.
// The returned slice is shared by every caller of this cycle.
func (d *Dispatcher) Responses(ctx context.Context) ([]message.Response, error) {
	return d.Send(ctx).Wait(ctx)
}

// ResponseFor returns the response of the request added under key
func (d *Dispatcher) ResponseFor(ctx context.Context, key string) (message.Response, error) {
	responses, err := d.Responses(ctx)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	slot, ok := d.keys[key]
	d.mu.Unlock()

	if !ok || slot >= len(responses) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return responses[slot], nil
}

// ProcessOneWay sends the queued one-way requests and waits until the
// transport accepted them. Only transport failures are reported.
func (d *Dispatcher) ProcessOneWay(ctx context.Context) error {
	d.mu.Lock()
	if d.future != nil {
		d.mu.Unlock()
		return ErrRequestsAlreadySent
	}
	if d.kind == kindTwoWay {
		d.mu.Unlock()
		return ErrNotOneWay
	}
	if len(d.requests) == 0 {
		d.mu.Unlock()
		return ErrNoRequests
	}
	requests := append([]message.Request(nil), d.requests...)
	d.future = newFuture()
	future := d.future
	d.mu.Unlock()

	err := d.sendOneWay(ctx, requests)
	future.complete(nil, err)
	return err
}

// Clear discards all queued state and starts a fresh cycle
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.requests = nil
	d.keys = make(map[string]int)
	d.unkeyed = make(map[string]bool)
	d.kind = kindUnset
	d.future = nil
}

// checkOpen verifies that requests of the given kind may still be added
func (d *Dispatcher) checkOpen(kind cycleKind) error {
	if d.future != nil {
		return ErrRequestsAlreadySent
	}
	if d.kind != kindUnset && d.kind != kind {
		return ErrMixedRequestKinds
	}
	return nil
}

func checkTwoWay(req message.Request) error {
	if req == nil {
		return errors.New("dispatcher: nil request")
	}
	if message.IsOneWay(req) {
		return fmt.Errorf("%w: %s is one-way", ErrMixedRequestKinds, req.RequestType())
	}
	return nil
}

// run executes the send algorithm and completes future. A panic in the
// gateway, the processor or a hook completes future with ErrDispatchPanic.
func (d *Dispatcher) run(ctx context.Context, requests []message.Request, future *Future) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrDispatchPanic, r)
			d.logger.Error().Err(err).Int("requests", len(requests)).Msg("dispatch failed")
			future.complete(nil, err)
		}
	}()

	responses := make([]message.Response, len(requests))

	var toSend []message.Request
	var slots []int
	for i, req := range requests {
		if d.gateway.IsCachingEnabledFor(req.RequestType()) {
			if cached, ok := d.gateway.GetCachedResponseFor(req); ok {
				responses[i] = cached
				continue
			}
		}
		toSend = append(toSend, req)
		slots = append(slots, i)
	}

	d.logger.Debug().
		Int("requests", len(requests)).
		Int("cached", len(requests)-len(toSend)).
		Msg("dispatching batch")

	if len(toSend) > 0 {
		received := d.transmit(ctx, toSend)
		for j, resp := range received {
			req := toSend[j]
			if message.IsSuccess(resp) && d.gateway.IsCachingEnabledFor(req.RequestType()) {
				d.gateway.StoreInCache(req, resp)
			}
			responses[slots[j]] = resp
		}
	}

	if err := d.dealWithExceptions(ctx, requests, responses); err != nil {
		future.complete(responses, fmt.Errorf("%w: %w", ErrFaultEscalated, err))
		return
	}
	future.complete(responses, nil)
}

// transmit sends the requests and always returns one response per request
func (d *Dispatcher) transmit(ctx context.Context, requests []message.Request) []message.Response {
	if d.beforeSend != nil {
		d.beforeSend(ctx, requests)
	}

	received, err := d.process(ctx, requests)
	if err == nil && len(received) != len(requests) {
		err = fmt.Errorf("dispatcher: received %d responses for %d requests", len(received), len(requests))
	}
	if err != nil {
		d.logger.Error().Err(err).Int("requests", len(requests)).Msg("batch failed before reaching handlers")
		received = transport.FailAll(requests, err)
	}

	if d.afterSend != nil {
		d.afterSend(ctx, received)
	}
	return received
}

// process obtains a processor for this cycle, uses it once and disposes it
func (d *Dispatcher) process(ctx context.Context, requests []message.Request) ([]message.Response, error) {
	p, err := d.newProcessor()
	if err != nil {
		return nil, fmt.Errorf("failed to create processor: %w", err)
	}
	defer d.dispose(p)
	return p.Process(ctx, requests)
}

func (d *Dispatcher) sendOneWay(ctx context.Context, requests []message.Request) error {
	p, err := d.newProcessor()
	if err != nil {
		return fmt.Errorf("failed to create processor: %w", err)
	}
	defer d.dispose(p)

	if err := p.ProcessOneWay(ctx, requests); err != nil {
		d.logger.Error().Err(err).Int("requests", len(requests)).Msg("one-way batch failed")
		return err
	}
	return nil
}

func (d *Dispatcher) dispose(p transport.Processor) {
	if err := p.Close(); err != nil {
		d.logger.Warn().Err(err).Msg("failed to close processor")
	}
}

// dealWithExceptions notifies the fault hooks about security and unknown
// faults. Every hook runs; the first error returned by a hook is reported.
func (d *Dispatcher) dealWithExceptions(ctx context.Context, requests []message.Request, responses []message.Response) error {
	var first error
	for i, resp := range responses {
		if resp == nil {
			continue
		}
		var hook FaultHook
		switch resp.ExceptionKind() {
		case message.Security:
			hook = d.onSecurityFault
		case message.Unknown:
			hook = d.onUnknownFault
		}
		if hook == nil {
			continue
		}
		if err := hook(ctx, requests[i], resp); err != nil && first == nil {
			first = err
		}
	}
	return first
}
