package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"batchrpc/internal/api"
	"batchrpc/internal/message"
	"batchrpc/internal/transport"
)

type upperRequest struct {
	Text string `json:"text"`
}

func (*upperRequest) RequestType() string { return "UpperRequest" }

type upperResponse struct {
	message.Base
	Text string `json:"text"`
}

func (*upperResponse) ResponseType() string { return "UpperResponse" }

type pingEvent struct{}

func (*pingEvent) RequestType() string { return "PingEvent" }
func (*pingEvent) OneWay()             {}

type upper struct {
	oneWay atomic.Int32
}

func (u *upper) Process(_ context.Context, requests []message.Request) []message.Response {
	out := make([]message.Response, len(requests))
	for i, req := range requests {
		out[i] = &upperResponse{Text: strings.ToUpper(req.(*upperRequest).Text)}
	}
	return out
}

func (u *upper) ProcessOneWay(_ context.Context, requests []message.Request) {
	u.oneWay.Add(int32(len(requests)))
}

func TestHandler_Frames(t *testing.T) {
	types := message.NewTypeRegistry()
	for _, err := range []error{
		message.RegisterRequest[upperRequest](types),
		message.RegisterRequest[pingEvent](types),
		message.RegisterResponse[upperResponse](types),
	} {
		if err != nil {
			t.Fatal(err)
		}
	}
	codec := message.NewCodec(types)
	u := &upper{}

	srv := httptest.NewServer(NewHandler(api.NewService(codec, u, zerolog.Nop()), 0, zerolog.Nop()))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	roundTrip := func(frame transport.Frame) transport.Reply {
		t.Helper()
		if err := conn.WriteJSON(frame); err != nil {
			t.Fatal(err)
		}
		var reply transport.Reply
		if err := conn.ReadJSON(&reply); err != nil {
			t.Fatal(err)
		}
		return reply
	}

	reply := roundTrip(transport.Frame{ID: 7, Requests: json.RawMessage(`[{"__type":"UpperRequest","text":"abc"}]`)})
	if reply.ID != 7 || reply.Error != "" {
		t.Fatalf("reply = %+v", reply)
	}
	responses, err := codec.DecodeResponses(reply.Responses)
	if err != nil {
		t.Fatal(err)
	}
	if got := responses[0].(*upperResponse).Text; got != "ABC" {
		t.Errorf("text = %q, want ABC", got)
	}

	reply = roundTrip(transport.Frame{ID: 8, OneWay: true, Requests: json.RawMessage(`[{"__type":"PingEvent"}]`)})
	if reply.ID != 8 || reply.Error != "" || len(reply.Responses) != 0 {
		t.Errorf("one-way reply = %+v", reply)
	}
	if u.oneWay.Load() != 1 {
		t.Errorf("one-way requests = %d, want 1", u.oneWay.Load())
	}

	reply = roundTrip(transport.Frame{ID: 9, Requests: json.RawMessage(`[{"__type":"Unknown"}]`)})
	if reply.ID != 9 || !strings.Contains(reply.Error, "invalid batch") {
		t.Errorf("bad frame reply = %+v", reply)
	}
}
