package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"batchrpc/internal/transport"
)

// Handler serves batches over HTTP
type Handler struct {
	service     *Service
	maxBodySize int64
	logger      zerolog.Logger
}

// NewHandler creates a new Handler. A maxBodySize of zero disables the limit.
func NewHandler(service *Service, maxBodySize int64, logger zerolog.Logger) *Handler {
	return &Handler{
		service:     service,
		maxBodySize: maxBodySize,
		logger:      logger.With().Str("component", "http").Logger(),
	}
}

// ServeHTTP handles HTTP requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var oneWay bool
	switch r.URL.Path {
	case transport.ProcessPath:
	case transport.ProcessOneWayPath:
		oneWay = true
	default:
		h.writeError(w, http.StatusNotFound, "not found")
		return
	}

	body, err := h.readBody(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	ctx := r.Context()

	if oneWay {
		if err := h.service.ProcessOneWay(ctx, body); err != nil {
			h.fail(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	data, err := h.service.Process(ctx, body)
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if h.maxBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	}
	return io.ReadAll(r.Body)
}

// fail maps a service error to an HTTP status
func (h *Handler) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrInvalidBatch) {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.Error().Err(err).Msg("batch failed")
	h.writeError(w, http.StatusInternalServerError, "internal error")
}

// writeError writes a plain HTTP error
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	http.Error(w, message, status)
}
