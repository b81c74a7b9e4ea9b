package interceptor

import (
	"errors"

	"batchrpc/internal/message"
)

// ErrAlreadyProcessed is returned when a response is attached twice
var ErrAlreadyProcessed = errors.New("interceptor: request already processed")

// RequestContext carries one request through the pipeline
type RequestContext struct {
	Request  message.Request
	response message.Response
	failed   bool
	items    map[any]any
}

// NewRequestContext creates a context for req
func NewRequestContext(req message.Request) *RequestContext {
	return &RequestContext{Request: req}
}

// MarkAsProcessed attaches the response. It may be called once.
func (rc *RequestContext) MarkAsProcessed(resp message.Response) error {
	if rc.response != nil {
		return ErrAlreadyProcessed
	}
	if resp == nil {
		return errors.New("interceptor: nil response")
	}
	rc.response = resp
	return nil
}

// MarkAsFailed replaces the response with a classified fault response
func (rc *RequestContext) MarkAsFailed(resp message.Response) {
	rc.response = resp
	rc.failed = true
}

// IsProcessed returns true once a response is attached
func (rc *RequestContext) IsProcessed() bool {
	return rc.response != nil
}

// Failed returns true if the context was marked as failed
func (rc *RequestContext) Failed() bool {
	return rc.failed
}

// Response returns the attached response, or nil
func (rc *RequestContext) Response() message.Response {
	return rc.response
}

// SetItem stores a value for later hooks handling the same request
func (rc *RequestContext) SetItem(key, value any) {
	if rc.items == nil {
		rc.items = make(map[any]any)
	}
	rc.items[key] = value
}

// Item returns a value stored with SetItem
func (rc *RequestContext) Item(key any) (any, bool) {
	v, ok := rc.items[key]
	return v, ok
}
