package forward

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"batchrpc/internal/dispatcher"
	"batchrpc/internal/fault"
	"batchrpc/internal/handler"
	"batchrpc/internal/message"
	"batchrpc/internal/transport"
)

const forwardKey = "forward"

// Handler serves one request type by relaying each request to a remote
// processor through a dispatcher. Remote faults come back as errors wrapping
// the remote FaultRecord, so the local classifier keeps their kind.
type Handler struct {
	tag       string
	types     *message.TypeRegistry
	processor transport.Processor
	logger    zerolog.Logger
}

// NewHandler creates a forwarding handler for tag
func NewHandler(tag string, types *message.TypeRegistry, processor transport.Processor, logger zerolog.Logger) *Handler {
	return &Handler{
		tag:       tag,
		types:     types,
		processor: processor,
		logger:    logger.With().Str("component", "forward").Str("type", tag).Logger(),
	}
}

// RegisterAll registers a forwarding handler for every tag
func RegisterAll(registry *handler.Registry, tags []string, types *message.TypeRegistry, processor transport.Processor, logger zerolog.Logger) error {
	for _, tag := range tags {
		h := NewHandler(tag, types, processor, logger)
		if err := registry.RegisterHandler(h); err != nil {
			return err
		}
	}
	return nil
}

// RequestType returns the forwarded request type
func (h *Handler) RequestType() string {
	return h.tag
}

// Handle relays req and returns the remote response
func (h *Handler) Handle(ctx context.Context, req message.Request) (message.Response, error) {
	d := dispatcher.New(transport.Shared(h.processor), nil,
		dispatcher.WithLogger(h.logger),
		dispatcher.WithUnknownFaultHook(func(_ context.Context, _ message.Request, resp message.Response) error {
			h.logger.Warn().Str("error", resp.Fault().Message).Msg("remote request failed")
			return nil
		}))

	if oneWay, ok := req.(message.OneWayRequest); ok {
		if err := d.AddOneWay(oneWay); err != nil {
			return nil, err
		}
		if err := d.ProcessOneWay(ctx); err != nil {
			return nil, fmt.Errorf("forward %s: %w", h.tag, err)
		}
		return h.DefaultResponse(), nil
	}

	if err := d.AddKeyed(forwardKey, req); err != nil {
		return nil, err
	}
	resp, err := d.ResponseFor(ctx, forwardKey)
	if err != nil {
		return nil, fmt.Errorf("forward %s: %w", h.tag, err)
	}
	if !message.IsSuccess(resp) {
		record := resp.Fault()
		if record == nil {
			record = &message.FaultRecord{Kind: resp.ExceptionKind(), Message: resp.ExceptionKind().String()}
		}
		return nil, fmt.Errorf("forward %s: %w", h.tag, record)
	}
	return resp, nil
}

// DefaultResponse returns a zero response named after the request type,
// or a GenericResponse when no such type is registered
func (h *Handler) DefaultResponse() message.Response {
	if name, ok := fault.SuffixConvention(h.tag); ok {
		if resp, err := h.types.NewResponse(name); err == nil {
			return resp
		}
	}
	return &message.GenericResponse{}
}
