package interceptor

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"batchrpc/internal/message"
)

type noteRequest struct {
	Text string `json:"text"`
}

func (*noteRequest) RequestType() string { return "NoteRequest" }

// recorder appends its name to a shared log on each hook
type recorder struct {
	name      string
	log       *[]string
	answer    bool
	beforeErr error
	afterErr  error
	panicking bool
}

func (r *recorder) BeforeHandlingRequest(_ context.Context, rc *RequestContext) error {
	*r.log = append(*r.log, "before:"+r.name)
	if r.answer {
		return rc.MarkAsProcessed(&message.GenericResponse{})
	}
	return r.beforeErr
}

func (r *recorder) AfterHandlingRequest(context.Context, *RequestContext) error {
	*r.log = append(*r.log, "after:"+r.name)
	if r.panicking {
		panic("after hook exploded")
	}
	return r.afterErr
}

// fakeGateway is an in-memory cache.Gateway
type fakeGateway struct {
	enabled map[string]bool
	stored  map[string]message.Response
}

func (g *fakeGateway) IsCachingEnabledFor(tag string) bool { return g.enabled[tag] }

func (g *fakeGateway) GetCachedResponseFor(req message.Request) (message.Response, bool) {
	resp, ok := g.stored[req.(*noteRequest).Text]
	return resp, ok
}

func (g *fakeGateway) StoreInCache(req message.Request, resp message.Response) {
	g.stored[req.(*noteRequest).Text] = resp
}

func TestRequestContext_MarkAsProcessedOnce(t *testing.T) {
	rc := NewRequestContext(&noteRequest{})
	if rc.IsProcessed() {
		t.Fatal("new context should not be processed")
	}
	if err := rc.MarkAsProcessed(&message.GenericResponse{}); err != nil {
		t.Fatalf("first MarkAsProcessed: %v", err)
	}
	if err := rc.MarkAsProcessed(&message.GenericResponse{}); !errors.Is(err, ErrAlreadyProcessed) {
		t.Errorf("second MarkAsProcessed err = %v, want ErrAlreadyProcessed", err)
	}

	failed := &message.GenericResponse{}
	rc.MarkAsFailed(failed)
	if rc.Response() != failed || !rc.Failed() {
		t.Error("MarkAsFailed should replace the response and flag the context")
	}
}

func TestChain_StopsWhenProcessed(t *testing.T) {
	var log []string
	chain := NewChain(zerolog.Nop(),
		&recorder{name: "a", log: &log},
		&recorder{name: "b", log: &log, answer: true},
		&recorder{name: "c", log: &log},
	)

	rc := NewRequestContext(&noteRequest{})
	invoked, err := chain.Before(context.Background(), rc)
	if err != nil {
		t.Fatalf("Before: %v", err)
	}
	if len(invoked) != 2 {
		t.Fatalf("invoked %d interceptors, want 2", len(invoked))
	}
	if errs := chain.After(context.Background(), rc, invoked); len(errs) != 0 {
		t.Fatalf("After errors: %v", errs)
	}

	want := []string{"before:a", "before:b", "after:b", "after:a"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("log = %v, want %v", log, want)
	}
}

func TestChain_AfterHooksAreIsolated(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	chain := NewChain(zerolog.Nop(),
		&recorder{name: "a", log: &log},
		&recorder{name: "b", log: &log, panicking: true},
		&recorder{name: "c", log: &log, afterErr: boom},
	)

	rc := NewRequestContext(&noteRequest{})
	invoked, _ := chain.Before(context.Background(), rc)
	errs := chain.After(context.Background(), rc, invoked)

	want := []string{"before:a", "before:b", "before:c", "after:c", "after:b", "after:a"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("log = %v, want %v", log, want)
	}
	if len(errs) != 2 {
		t.Fatalf("got %d errors, want 2", len(errs))
	}
	if !errors.Is(errs[0], boom) {
		t.Errorf("first error = %v, want boom", errs[0])
	}
}

func TestChain_FailingBeforeSkipsItsAfter(t *testing.T) {
	var log []string
	chain := NewChain(zerolog.Nop(),
		&recorder{name: "a", log: &log},
		&recorder{name: "b", log: &log, beforeErr: errors.New("denied")},
		&recorder{name: "c", log: &log},
	)

	rc := NewRequestContext(&noteRequest{})
	invoked, err := chain.Before(context.Background(), rc)
	if err == nil {
		t.Fatal("expected before error")
	}
	if len(invoked) != 1 {
		t.Errorf("invoked %d interceptors, want 1", len(invoked))
	}
	chain.After(context.Background(), rc, invoked)

	want := []string{"before:a", "before:b", "after:a"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("log = %v, want %v", log, want)
	}
}

func TestCachingInterceptor(t *testing.T) {
	gw := &fakeGateway{
		enabled: map[string]bool{"NoteRequest": true},
		stored:  map[string]message.Response{},
	}
	ci := NewCachingInterceptor(gw)
	ctx := context.Background()

	rc := NewRequestContext(&noteRequest{Text: "a"})
	if err := ci.BeforeHandlingRequest(ctx, rc); err != nil {
		t.Fatal(err)
	}
	if rc.IsProcessed() {
		t.Fatal("miss should leave the context unprocessed")
	}
	handled := &message.GenericResponse{}
	if err := rc.MarkAsProcessed(handled); err != nil {
		t.Fatal(err)
	}
	if err := ci.AfterHandlingRequest(ctx, rc); err != nil {
		t.Fatal(err)
	}
	if gw.stored["a"] != handled {
		t.Fatal("successful response should be stored")
	}

	rc = NewRequestContext(&noteRequest{Text: "a"})
	if err := ci.BeforeHandlingRequest(ctx, rc); err != nil {
		t.Fatal(err)
	}
	if rc.Response() != handled {
		t.Error("hit should answer the request from the cache")
	}

	failedRC := NewRequestContext(&noteRequest{Text: "b"})
	failedRC.MarkAsFailed(message.NewFaultResponse(nil, message.Unknown, &message.FaultRecord{Message: "x"}))
	if err := ci.AfterHandlingRequest(ctx, failedRC); err != nil {
		t.Fatal(err)
	}
	if _, ok := gw.stored["b"]; ok {
		t.Error("failed responses must not be cached")
	}
}
