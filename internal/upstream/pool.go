package upstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"batchrpc/internal/balancer"
	"batchrpc/internal/config"
	"batchrpc/internal/message"
	"batchrpc/internal/transport"
)

// ErrAllEndpointsFailed is returned when every attempted endpoint failed
var ErrAllEndpointsFailed = errors.New("all endpoints failed")

// ErrNoEndpointsAvailable is returned when no endpoint can take a batch
var ErrNoEndpointsAvailable = errors.New("no endpoints available")

// Pool is a group of remote endpoints serving the same request types.
// It implements transport.Processor: each batch goes to one endpoint picked
// by weighted round robin and is retried on the next one on failure.
type Pool struct {
	endpoints   []*Endpoint
	codec       *message.Codec
	balancer    *balancer.WeightedRoundRobin[*Endpoint]
	maxAttempts int
	logger      zerolog.Logger
}

var _ transport.Processor = (*Pool)(nil)

// NewPool creates a pool from the client configuration
func NewPool(cfg *config.ClientConfig, codec *message.Codec, requestTimeout time.Duration, logger zerolog.Logger) *Pool {
	poolLogger := logger.With().Str("component", "upstream").Logger()

	endpoints := make([]*Endpoint, 0, len(cfg.Endpoints))
	for _, epCfg := range cfg.Endpoints {
		endpoints = append(endpoints, NewEndpointFromConfig(epCfg, cfg, requestTimeout, poolLogger))
	}
	return NewPoolFromEndpoints(endpoints, codec, cfg.RetryMaxAttempts, logger)
}

// NewPoolFromEndpoints creates a pool over already constructed endpoints
func NewPoolFromEndpoints(endpoints []*Endpoint, codec *message.Codec, maxAttempts int, logger zerolog.Logger) *Pool {
	p := &Pool{
		endpoints:   endpoints,
		codec:       codec,
		maxAttempts: maxAttempts,
		logger:      logger.With().Str("component", "upstream").Logger(),
	}
	p.balancer = balancer.NewWeightedRoundRobin[*Endpoint](p)
	return p
}

// Main returns the available main endpoints
func (p *Pool) Main() []*Endpoint {
	return p.available(RoleMain)
}

// Fallback returns the available fallback endpoints
func (p *Pool) Fallback() []*Endpoint {
	return p.available(RoleFallback)
}

func (p *Pool) available(role Role) []*Endpoint {
	result := make([]*Endpoint, 0, len(p.endpoints))
	for _, e := range p.endpoints {
		if e.role == role && e.Available() {
			result = append(result, e)
		}
	}
	return result
}

// Endpoints returns all endpoints
func (p *Pool) Endpoints() []*Endpoint {
	return append([]*Endpoint(nil), p.endpoints...)
}

// Process sends the batch to a remote endpoint and decodes its responses
func (p *Pool) Process(ctx context.Context, requests []message.Request) ([]message.Response, error) {
	body, err := p.codec.EncodeRequests(requests)
	if err != nil {
		return nil, err
	}

	var responses []message.Response
	err = p.execute(ctx, body, false, message.Tags(requests), func(data []byte) error {
		decoded, err := p.codec.DecodeResponses(data)
		if err != nil {
			return err
		}
		if len(decoded) != len(requests) {
			return fmt.Errorf("received %d responses for %d requests", len(decoded), len(requests))
		}
		responses = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return responses, nil
}

// ProcessOneWay sends the batch and returns once an endpoint accepted it
func (p *Pool) ProcessOneWay(ctx context.Context, requests []message.Request) error {
	body, err := p.codec.EncodeRequests(requests)
	if err != nil {
		return err
	}
	return p.execute(ctx, body, true, message.Tags(requests), nil)
}

// execute tries endpoints, main first, then fallback, until one succeeds,
// the attempts are used up or no endpoint is left. accept validates the
// reply; a rejected reply counts as an endpoint failure.
func (p *Pool) execute(ctx context.Context, body []byte, oneWay bool, tags []string, accept func([]byte) error) error {
	tried := make(map[string]bool)
	maxAttempts := p.maxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	usedFallback := false
	for attempt := 0; attempt < maxAttempts; attempt++ {
		endpoint, ok := p.balancer.Next(tried)
		if !ok {
			break
		}
		if endpoint.IsFallback() && !usedFallback {
			usedFallback = true
			if len(tried) > 0 {
				p.logger.Warn().
					Int("triedMain", len(tried)).
					Msg("all main endpoints failed, falling back to fallback endpoints")
			}
		}
		tried[endpoint.Name()] = true

		err := p.executeOn(ctx, endpoint, body, oneWay, accept)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}

		p.logger.Warn().
			Int("attempt", attempt+1).
			Int("maxAttempts", maxAttempts).
			Err(err).
			Str("endpoint", endpoint.Name()).
			Strs("types", tags).
			Bool("usingFallback", usedFallback).
			Msg("batch failed, retrying")
	}

	if lastErr == nil {
		return ErrNoEndpointsAvailable
	}
	return fmt.Errorf("%w: %w", ErrAllEndpointsFailed, lastErr)
}

func (p *Pool) executeOn(ctx context.Context, endpoint *Endpoint, body []byte, oneWay bool, accept func([]byte) error) error {
	data, err := endpoint.Execute(ctx, body, oneWay)
	if err == nil && accept != nil {
		err = accept(data)
	}

	if err != nil {
		// a cancelled caller says nothing about the endpoint
		if ctx.Err() == nil && endpoint.breaker.RecordFailure() {
			p.logger.Warn().Str("endpoint", endpoint.Name()).Msg("circuit breaker opened")
		}
		return err
	}
	endpoint.breaker.RecordSuccess()
	return nil
}

// Close closes every endpoint
func (p *Pool) Close() error {
	for _, e := range p.endpoints {
		e.Close()
	}
	p.logger.Info().Msg("pool stopped")
	return nil
}
