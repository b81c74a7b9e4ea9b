package fault

import (
	"errors"
	"fmt"
	"testing"

	"batchrpc/internal/message"
)

type businessError struct {
	code string
}

func (e *businessError) Error() string     { return "business rule violated" }
func (e *businessError) FaultCode() string { return e.code }

type securityError struct{}

func (e *securityError) Error() string { return "access denied" }

// derivedError also carries a fault code but is a different type
type derivedError struct {
	businessError
}

type lookupRequest struct{}

func (*lookupRequest) RequestType() string { return "LookupRequest" }

type lookupResponse struct {
	message.Base
	Value string `json:"value"`
}

func (*lookupResponse) ResponseType() string { return "LookupResponse" }

type oddRequest struct{}

func (*oddRequest) RequestType() string { return "Odd" }

type oddResponse struct {
	message.Base
}

func (*oddResponse) ResponseType() string { return "OddAnswer" }

type staticResponder struct {
	resp message.Response
}

func (s staticResponder) DefaultResponseFor(message.Request) (message.Response, error) {
	if s.resp == nil {
		return nil, errors.New("no handler")
	}
	return s.resp, nil
}

func TestClassifier_Classify(t *testing.T) {
	c := NewClassifier(
		WithBusinessError[*businessError](),
		WithSecurityError[*securityError](),
	)

	tests := []struct {
		name     string
		err      error
		wantKind message.ExceptionKind
		wantCode string
	}{
		{"business with code", &businessError{code: "OUT_OF_STOCK"}, message.Business, "OUT_OF_STOCK"},
		{"wrapped business", fmt.Errorf("placing order: %w", &businessError{code: "LIMIT"}), message.Business, "LIMIT"},
		{"security", &securityError{}, message.Security, ""},
		{"joined security", errors.Join(errors.New("x"), &securityError{}), message.Security, ""},
		{"derived type is not matched", &derivedError{businessError{code: "X"}}, message.Unknown, ""},
		{"plain error", errors.New("boom"), message.Unknown, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, record := c.Classify(tt.err)
			if kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", kind, tt.wantKind)
			}
			if record.Kind != tt.wantKind {
				t.Errorf("record.Kind = %v, want %v", record.Kind, tt.wantKind)
			}
			if record.FaultCode != tt.wantCode {
				t.Errorf("FaultCode = %q, want %q", record.FaultCode, tt.wantCode)
			}
			if record.Message != tt.err.Error() {
				t.Errorf("Message = %q, want %q", record.Message, tt.err.Error())
			}
		})
	}
}

func TestClassifier_NoConfiguredTypes(t *testing.T) {
	kind, _ := NewClassifier().Classify(&businessError{code: "A"})
	if kind != message.Unknown {
		t.Errorf("kind = %v, want unknown", kind)
	}
	if kind, record := NewClassifier().Classify(nil); kind != message.None || record != nil {
		t.Errorf("Classify(nil) = %v, %v; want none, nil", kind, record)
	}
}

func TestClassifier_RelayedFaultKeepsKind(t *testing.T) {
	remote := &message.FaultRecord{Message: "out of stock", Type: "*shop.Error", Kind: message.Business, FaultCode: "OUT_OF_STOCK"}
	kind, record := NewClassifier().Classify(fmt.Errorf("remote: %w", remote))
	if kind != message.Business {
		t.Fatalf("kind = %v, want business", kind)
	}
	if record.FaultCode != "OUT_OF_STOCK" || record.Type != "*shop.Error" {
		t.Errorf("record = %+v", record)
	}

	remote.Kind = message.Unknown
	if kind, _ := NewClassifier().Classify(remote); kind != message.Unknown {
		t.Errorf("relayed unknown fault kind = %v, want unknown", kind)
	}
}

func TestResponseResolver_Strategies(t *testing.T) {
	types := message.NewTypeRegistry()
	if err := message.RegisterResponse[lookupResponse](types); err != nil {
		t.Fatal(err)
	}

	t.Run("naming convention", func(t *testing.T) {
		r := NewResponseResolver(types)
		if _, ok := r.DefaultResponseFor(&lookupRequest{}).(*lookupResponse); !ok {
			t.Error("expected *lookupResponse from the suffix convention")
		}
	})

	t.Run("handler default", func(t *testing.T) {
		r := NewResponseResolver(types, WithDefaultResponder(staticResponder{resp: &oddResponse{}}))
		if _, ok := r.DefaultResponseFor(&oddRequest{}).(*oddResponse); !ok {
			t.Error("expected *oddResponse from the responder")
		}
	})

	t.Run("custom convention", func(t *testing.T) {
		if err := message.RegisterResponse[oddResponse](types); err != nil {
			t.Fatal(err)
		}
		r := NewResponseResolver(types, WithConventions(func(tag string) (string, bool) {
			return tag + "Answer", true
		}))
		if _, ok := r.DefaultResponseFor(&oddRequest{}).(*oddResponse); !ok {
			t.Error("expected *oddResponse from the custom convention")
		}
	})

	t.Run("generic fallback", func(t *testing.T) {
		r := NewResponseResolver(types, WithDefaultResponder(staticResponder{}))
		resp := r.DefaultResponseFor(&struct{ oddRequest }{})
		if resp.ResponseType() != message.GenericResponseType {
			t.Errorf("ResponseType = %q, want %q", resp.ResponseType(), message.GenericResponseType)
		}
	})
}

func TestErrorHandler(t *testing.T) {
	types := message.NewTypeRegistry()
	if err := message.RegisterResponse[lookupResponse](types); err != nil {
		t.Fatal(err)
	}
	h := NewErrorHandler(
		NewClassifier(WithBusinessError[*businessError]()),
		NewResponseResolver(types),
	)

	resp := h.DealWithException(&lookupRequest{}, &businessError{code: "OUT_OF_STOCK"})
	if _, ok := resp.(*lookupResponse); !ok {
		t.Fatalf("response is %T, want *lookupResponse", resp)
	}
	if resp.ExceptionKind() != message.Business || resp.Fault().FaultCode != "OUT_OF_STOCK" {
		t.Errorf("got kind %v fault %+v", resp.ExceptionKind(), resp.Fault())
	}

	skipped := h.DealWithPreviouslyOccurredExceptions(&lookupRequest{})
	if skipped.ExceptionKind() != message.EarlierRequestAlreadyFailed {
		t.Errorf("kind = %v, want earlierRequestAlreadyFailed", skipped.ExceptionKind())
	}
	if skipped.Fault().Message != "earlierRequestAlreadyFailed" {
		t.Errorf("message = %q", skipped.Fault().Message)
	}
}
