package message

import (
	"errors"
	"strings"
	"testing"
)

type pingRequest struct {
	Payload string `json:"payload"`
}

func (*pingRequest) RequestType() string { return "PingRequest" }

type pingResponse struct {
	Base
	Echo string `json:"echo"`
}

func (*pingResponse) ResponseType() string { return "PingResponse" }

type countRequest struct {
	N int `json:"n"`
}

func (*countRequest) RequestType() string { return "CountRequest" }

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	types := NewTypeRegistry()
	if err := RegisterRequest[pingRequest](types); err != nil {
		t.Fatalf("RegisterRequest: %v", err)
	}
	if err := RegisterRequest[countRequest](types); err != nil {
		t.Fatalf("RegisterRequest: %v", err)
	}
	if err := RegisterResponse[pingResponse](types); err != nil {
		t.Fatalf("RegisterResponse: %v", err)
	}
	return NewCodec(types)
}

func TestCodec_RequestBatchKeepsOrderAndTypes(t *testing.T) {
	c := newTestCodec(t)

	in := []Request{
		&countRequest{N: 3},
		&pingRequest{Payload: "hello"},
		&countRequest{N: 7},
	}
	data, err := c.EncodeRequests(in)
	if err != nil {
		t.Fatalf("EncodeRequests: %v", err)
	}
	if !strings.Contains(string(data), `"__type":"PingRequest"`) {
		t.Errorf("encoded batch does not carry type tag: %s", data)
	}

	out, err := c.DecodeRequests(data)
	if err != nil {
		t.Fatalf("DecodeRequests: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	if got := out[0].(*countRequest).N; got != 3 {
		t.Errorf("out[0].N = %d, want 3", got)
	}
	if got := out[1].(*pingRequest).Payload; got != "hello" {
		t.Errorf("out[1].Payload = %q, want hello", got)
	}
	if got := out[2].(*countRequest).N; got != 7 {
		t.Errorf("out[2].N = %d, want 7", got)
	}
}

func TestCodec_ResponseCarriesFault(t *testing.T) {
	c := newTestCodec(t)

	resp := &pingResponse{Echo: "x"}
	resp.SetFault(Business, &FaultRecord{Message: "boom", Kind: Business, FaultCode: "OUT_OF_STOCK"})

	data, err := c.EncodeResponses([]Response{resp, &GenericResponse{}})
	if err != nil {
		t.Fatalf("EncodeResponses: %v", err)
	}
	out, err := c.DecodeResponses(data)
	if err != nil {
		t.Fatalf("DecodeResponses: %v", err)
	}

	got, ok := out[0].(*pingResponse)
	if !ok {
		t.Fatalf("out[0] is %T, want *pingResponse", out[0])
	}
	if got.ExceptionKind() != Business {
		t.Errorf("kind = %v, want business", got.ExceptionKind())
	}
	if got.Fault() == nil || got.Fault().FaultCode != "OUT_OF_STOCK" {
		t.Errorf("fault = %+v, want code OUT_OF_STOCK", got.Fault())
	}
	if _, ok := out[1].(*GenericResponse); !ok {
		t.Errorf("out[1] is %T, want *GenericResponse", out[1])
	}
}

func TestCodec_DecodeErrors(t *testing.T) {
	c := newTestCodec(t)

	tests := []struct {
		name string
		data string
		want error
	}{
		{"not an array", `{"__type":"PingRequest"}`, ErrNotBatch},
		{"missing tag", `[{"payload":"x"}]`, ErrMissingType},
		{"unknown tag", `[{"__type":"Nope"}]`, ErrUnknownType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.DecodeRequests([]byte(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCodec_CloneResponseIsIndependent(t *testing.T) {
	c := newTestCodec(t)

	orig := &pingResponse{Echo: "a"}
	clone, err := c.CloneResponse(orig)
	if err != nil {
		t.Fatalf("CloneResponse: %v", err)
	}
	clone.(*pingResponse).Echo = "b"
	if orig.Echo != "a" {
		t.Errorf("original mutated through clone: %q", orig.Echo)
	}
}

func TestTypeRegistry_DuplicateTag(t *testing.T) {
	types := NewTypeRegistry()
	if err := RegisterRequest[pingRequest](types); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	err := RegisterRequest[pingRequest](types)
	if !errors.Is(err, ErrDuplicateType) {
		t.Errorf("err = %v, want ErrDuplicateType", err)
	}
}

func TestExceptionKind_JSON(t *testing.T) {
	for k := None; k <= EarlierRequestAlreadyFailed; k++ {
		data, err := k.MarshalJSON()
		if err != nil {
			t.Fatalf("MarshalJSON(%v): %v", k, err)
		}
		var back ExceptionKind
		if err := back.UnmarshalJSON(data); err != nil {
			t.Fatalf("UnmarshalJSON(%s): %v", data, err)
		}
		if back != k {
			t.Errorf("round trip %v -> %v", k, back)
		}
	}
}
