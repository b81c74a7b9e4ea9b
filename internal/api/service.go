package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"batchrpc/internal/message"
	"batchrpc/internal/transport"
)

// ErrInvalidBatch is returned when an encoded batch cannot be accepted
var ErrInvalidBatch = errors.New("invalid batch")

// Service decodes encoded batches, runs them through the processor and
// encodes the responses. It is shared by the HTTP and WebSocket endpoints.
type Service struct {
	codec     *message.Codec
	processor transport.BatchProcessor
	logger    zerolog.Logger
}

// NewService creates a new Service
func NewService(codec *message.Codec, processor transport.BatchProcessor, logger zerolog.Logger) *Service {
	return &Service{
		codec:     codec,
		processor: processor,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Process handles an encoded two-way batch
func (s *Service) Process(ctx context.Context, body []byte) ([]byte, error) {
	requests, err := s.decode(body, false)
	if err != nil {
		return nil, err
	}

	responses := s.processor.Process(ctx, requests)

	data, err := s.codec.EncodeResponses(responses)
	if err != nil {
		return nil, fmt.Errorf("failed to encode responses: %w", err)
	}
	return data, nil
}

// ProcessOneWay handles an encoded one-way batch
func (s *Service) ProcessOneWay(ctx context.Context, body []byte) error {
	requests, err := s.decode(body, true)
	if err != nil {
		return err
	}
	s.processor.ProcessOneWay(ctx, requests)
	return nil
}

// decode decodes body and checks that every request matches the endpoint kind
func (s *Service) decode(body []byte, oneWay bool) ([]message.Request, error) {
	requests, err := s.codec.DecodeRequests(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBatch, err)
	}
	if err := message.Validate(requests); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBatch, err)
	}
	for i, req := range requests {
		if message.IsOneWay(req) != oneWay {
			return nil, fmt.Errorf("%w: request[%d] %s has the wrong kind for this endpoint",
				ErrInvalidBatch, i, req.RequestType())
		}
	}

	s.logger.Debug().
		Int("requests", len(requests)).
		Bool("oneWay", oneWay).
		Msg("batch received")
	return requests, nil
}
