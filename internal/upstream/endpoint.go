package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"batchrpc/internal/config"
	"batchrpc/internal/transport"
)

// Endpoint represents a single remote batch endpoint
type Endpoint struct {
	name     string
	httpURL  string
	wsURL    string
	weight   int
	role     Role
	preferWS bool

	httpClient *http.Client
	breaker    *CircuitBreaker
	logger     zerolog.Logger

	wsClient *wsClient
}

// Config for creating a new Endpoint
type Config struct {
	Name           string
	HTTPURL        string
	WSURL          string
	Weight         int
	Role           Role
	PreferWS       bool
	RequestTimeout time.Duration
	MessageTimeout time.Duration
	CircuitBreaker CircuitBreakerConfig
	Logger         zerolog.Logger
}

// NewEndpoint creates a new Endpoint instance
func NewEndpoint(cfg Config) *Endpoint {
	httpTransport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}

	httpClient := &http.Client{
		Transport: httpTransport,
		Timeout:   cfg.RequestTimeout,
	}

	e := &Endpoint{
		name:       cfg.Name,
		httpURL:    strings.TrimSuffix(cfg.HTTPURL, "/"),
		wsURL:      cfg.WSURL,
		weight:     cfg.Weight,
		role:       cfg.Role,
		preferWS:   cfg.PreferWS,
		httpClient: httpClient,
		breaker:    NewCircuitBreaker(cfg.CircuitBreaker),
		logger:     cfg.Logger.With().Str("endpoint", cfg.Name).Logger(),
	}
	if e.wsURL != "" {
		e.wsClient = newWSClient(e.wsURL, cfg.MessageTimeout, e.logger)
	}
	return e
}

// NewEndpointFromConfig creates an Endpoint from config
func NewEndpointFromConfig(cfg config.EndpointConfig, client *config.ClientConfig, requestTimeout time.Duration, logger zerolog.Logger) *Endpoint {
	return NewEndpoint(Config{
		Name:           cfg.Name,
		HTTPURL:        cfg.HTTPURL,
		WSURL:          cfg.WSURL,
		Weight:         cfg.Weight,
		Role:           RoleFromConfig(cfg.Role),
		PreferWS:       client.PreferWS,
		RequestTimeout: requestTimeout,
		MessageTimeout: client.GetMessageTimeoutDuration(),
		CircuitBreaker: BreakerConfigFromConfig(client.CircuitBreaker),
		Logger:         logger,
	})
}

// Name returns the endpoint name
func (e *Endpoint) Name() string {
	return e.name
}

// Weight returns the weight for load balancing
func (e *Endpoint) Weight() int {
	return e.weight
}

// Role returns the endpoint role
func (e *Endpoint) Role() Role {
	return e.role
}

// IsMain returns true if this is a main endpoint
func (e *Endpoint) IsMain() bool {
	return e.role == RoleMain
}

// IsFallback returns true if this is a fallback endpoint
func (e *Endpoint) IsFallback() bool {
	return e.role == RoleFallback
}

// HasHTTP returns true if an HTTP URL is configured
func (e *Endpoint) HasHTTP() bool {
	return e.httpURL != ""
}

// HasWS returns true if a WebSocket URL is configured
func (e *Endpoint) HasWS() bool {
	return e.wsURL != ""
}

// Available returns true if the circuit breaker lets requests through
func (e *Endpoint) Available() bool {
	return e.breaker.AllowRequest()
}

// Breaker returns the endpoint's circuit breaker
func (e *Endpoint) Breaker() *CircuitBreaker {
	return e.breaker
}

// Execute sends an encoded batch and returns the encoded responses.
// When preferWS is true and both URLs are configured, uses WebSocket.
// Otherwise prefers HTTP, falls back to WebSocket if HTTP is not available.
// One-way batches return no body.
func (e *Endpoint) Execute(ctx context.Context, batch []byte, oneWay bool) ([]byte, error) {
	if e.preferWS && e.HasWS() {
		return e.ExecuteWS(ctx, batch, oneWay)
	}
	if e.HasHTTP() {
		return e.ExecuteHTTP(ctx, batch, oneWay)
	}
	if e.HasWS() {
		return e.ExecuteWS(ctx, batch, oneWay)
	}
	return nil, fmt.Errorf("no URL configured for endpoint %s", e.name)
}

// ExecuteHTTP sends an encoded batch via HTTP POST
func (e *Endpoint) ExecuteHTTP(ctx context.Context, batch []byte, oneWay bool) ([]byte, error) {
	if e.httpURL == "" {
		return nil, fmt.Errorf("HTTP URL not configured")
	}

	url, wantStatus := e.httpURL+transport.ProcessPath, http.StatusOK
	if oneWay {
		url, wantStatus = e.httpURL+transport.ProcessOneWayPath, http.StatusAccepted
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(batch))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != wantStatus {
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if oneWay {
		return nil, nil
	}
	return body, nil
}

// ExecuteWS sends an encoded batch over the endpoint's WebSocket connection
func (e *Endpoint) ExecuteWS(ctx context.Context, batch []byte, oneWay bool) ([]byte, error) {
	if e.wsClient == nil {
		return nil, fmt.Errorf("WebSocket URL not configured")
	}

	reply, err := e.wsClient.send(ctx, batch, oneWay)
	if err != nil {
		return nil, err
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("remote error: %s", reply.Error)
	}
	if oneWay {
		return nil, nil
	}
	return reply.Responses, nil
}

// Close closes all connections
func (e *Endpoint) Close() {
	if e.wsClient != nil {
		e.wsClient.close()
	}
	e.httpClient.CloseIdleConnections()
}
