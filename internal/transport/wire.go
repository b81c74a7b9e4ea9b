package transport

import "encoding/json"

// HTTP paths served by the batch endpoint
const (
	ProcessPath       = "/process"
	ProcessOneWayPath = "/process-oneway"
)

// Frame is a batch submitted over a WebSocket connection
type Frame struct {
	ID       uint64          `json:"id"`
	OneWay   bool            `json:"oneWay,omitempty"`
	Requests json.RawMessage `json:"requests"`
}

// Reply answers a Frame with the same ID. One-way frames are acknowledged
// with an empty reply.
type Reply struct {
	ID        uint64          `json:"id"`
	Responses json.RawMessage `json:"responses,omitempty"`
	Error     string          `json:"error,omitempty"`
}
