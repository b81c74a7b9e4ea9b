package forward

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"batchrpc/internal/fault"
	"batchrpc/internal/handler"
	"batchrpc/internal/message"
)

type quoteRequest struct {
	Symbol string `json:"symbol"`
}

func (*quoteRequest) RequestType() string { return "QuoteRequest" }

type quoteResponse struct {
	message.Base
	Price int `json:"price"`
}

func (*quoteResponse) ResponseType() string { return "QuoteResponse" }

type tradeEvent struct{}

func (*tradeEvent) RequestType() string { return "TradeEvent" }
func (*tradeEvent) OneWay()             {}

// remote answers with canned responses and records what it received
type remote struct {
	responses []message.Response
	err       error
	received  []message.Request
	oneWay    int
	closed    int
}

func (r *remote) Process(_ context.Context, requests []message.Request) ([]message.Response, error) {
	r.received = append(r.received, requests...)
	return r.responses, r.err
}

func (r *remote) ProcessOneWay(_ context.Context, requests []message.Request) error {
	r.oneWay += len(requests)
	return r.err
}

func (r *remote) Close() error {
	r.closed++
	return nil
}

func newTypes(t *testing.T) *message.TypeRegistry {
	t.Helper()
	types := message.NewTypeRegistry()
	if err := message.RegisterResponse[quoteResponse](types); err != nil {
		t.Fatal(err)
	}
	return types
}

func TestHandler_RelaysResponse(t *testing.T) {
	r := &remote{responses: []message.Response{&quoteResponse{Price: 42}}}
	h := NewHandler("QuoteRequest", newTypes(t), r, zerolog.Nop())

	resp, err := h.Handle(context.Background(), &quoteRequest{Symbol: "ACME"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp.(*quoteResponse).Price != 42 {
		t.Errorf("price = %d, want 42", resp.(*quoteResponse).Price)
	}
	if len(r.received) != 1 || r.received[0].(*quoteRequest).Symbol != "ACME" {
		t.Errorf("received = %+v", r.received)
	}
	if r.closed != 0 {
		t.Error("forwarding must not close the shared processor")
	}
}

func TestHandler_RemoteFaultKeepsKind(t *testing.T) {
	remoteFault := &message.FaultRecord{Message: "unknown symbol", Type: "*market.Error", FaultCode: "NO_SYMBOL"}
	failed := message.NewFaultResponse(&quoteResponse{}, message.Business, remoteFault)
	r := &remote{responses: []message.Response{failed}}
	h := NewHandler("QuoteRequest", newTypes(t), r, zerolog.Nop())

	_, err := h.Handle(context.Background(), &quoteRequest{})
	var record *message.FaultRecord
	if !errors.As(err, &record) {
		t.Fatalf("err = %v, want a wrapped FaultRecord", err)
	}

	kind, classified := fault.NewClassifier().Classify(err)
	if kind != message.Business || classified.FaultCode != "NO_SYMBOL" {
		t.Errorf("classified as %v %+v", kind, classified)
	}
}

func TestHandler_TransportFailureIsUnknown(t *testing.T) {
	r := &remote{err: errors.New("connection refused")}
	h := NewHandler("QuoteRequest", newTypes(t), r, zerolog.Nop())

	_, err := h.Handle(context.Background(), &quoteRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	if kind, _ := fault.NewClassifier().Classify(err); kind != message.Unknown {
		t.Errorf("kind = %v, want unknown", kind)
	}
}

func TestHandler_OneWayAndDefaults(t *testing.T) {
	r := &remote{}
	types := newTypes(t)

	registry := handler.NewRegistry(zerolog.Nop())
	if err := RegisterAll(registry, []string{"QuoteRequest", "TradeEvent"}, types, r, zerolog.Nop()); err != nil {
		t.Fatal(err)
	}

	h, err := registry.Resolve("TradeEvent")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.Handle(context.Background(), &tradeEvent{}); err != nil {
		t.Fatalf("Handle one-way: %v", err)
	}
	if r.oneWay != 1 {
		t.Errorf("one-way requests sent = %d, want 1", r.oneWay)
	}
	if _, ok := h.DefaultResponse().(*message.GenericResponse); !ok {
		t.Errorf("TradeEvent default = %T, want GenericResponse", h.DefaultResponse())
	}

	quote, _ := registry.Resolve("QuoteRequest")
	if _, ok := quote.DefaultResponse().(*quoteResponse); !ok {
		t.Errorf("QuoteRequest default = %T, want *quoteResponse", quote.DefaultResponse())
	}
}
