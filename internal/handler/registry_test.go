package handler

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"batchrpc/internal/message"
)

type greetRequest struct {
	Name string `json:"name"`
}

func (*greetRequest) RequestType() string { return "GreetRequest" }

type greetResponse struct {
	message.Base
	Greeting string `json:"greeting"`
}

func (*greetResponse) ResponseType() string { return "GreetResponse" }

type otherRequest struct{}

func (*otherRequest) RequestType() string { return "OtherRequest" }

type closingHandler struct {
	Handler
	closed *int
}

func (h closingHandler) Close() error {
	*h.closed++
	return nil
}

func greet(_ context.Context, req *greetRequest) (*greetResponse, error) {
	if req.Name == "" {
		return nil, errors.New("name required")
	}
	return &greetResponse{Greeting: "hello " + req.Name}, nil
}

func TestNew_TypedAdapter(t *testing.T) {
	h := New(greet)

	if h.RequestType() != "GreetRequest" {
		t.Errorf("RequestType = %q, want GreetRequest", h.RequestType())
	}

	resp, err := h.Handle(context.Background(), &greetRequest{Name: "ada"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := resp.(*greetResponse).Greeting; got != "hello ada" {
		t.Errorf("Greeting = %q", got)
	}

	if _, err := h.Handle(context.Background(), &greetRequest{}); err == nil {
		t.Error("expected handler error to propagate")
	}
	if _, err := h.Handle(context.Background(), &otherRequest{}); err == nil {
		t.Error("expected error for a mismatched request type")
	}
	if _, ok := h.DefaultResponse().(*greetResponse); !ok {
		t.Errorf("DefaultResponse is %T, want *greetResponse", h.DefaultResponse())
	}
}

func TestRegistry_DuplicateAndMissing(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	if err := r.RegisterHandler(New(greet)); err != nil {
		t.Fatalf("RegisterHandler: %v", err)
	}
	err := r.RegisterHandler(New(greet))
	if !errors.Is(err, ErrDuplicateHandler) {
		t.Errorf("second registration err = %v, want ErrDuplicateHandler", err)
	}

	_, err = r.Resolve("OtherRequest")
	if !errors.Is(err, ErrNoHandler) {
		t.Errorf("Resolve err = %v, want ErrNoHandler", err)
	}

	resp, err := r.DefaultResponseFor(&greetRequest{})
	if err != nil {
		t.Fatalf("DefaultResponseFor: %v", err)
	}
	if _, ok := resp.(*greetResponse); !ok {
		t.Errorf("DefaultResponseFor = %T, want *greetResponse", resp)
	}
}

func TestRegistry_ReleaseClosesHandlers(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	closed := 0
	err := r.Register("GreetRequest", func() (Handler, error) {
		return closingHandler{Handler: New(greet), closed: &closed}, nil
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	h, err := r.Resolve("GreetRequest")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	r.Release(h)
	if closed != 1 {
		t.Errorf("closed = %d, want 1", closed)
	}
}
