package message

import "fmt"

// Request is a unit of work submitted in a batch.
// RequestType returns a stable tag identifying the concrete type. It must not
// dereference its receiver so that a nil typed pointer still reports its tag.
type Request interface {
	RequestType() string
}

// OneWayRequest is a request that produces no response
type OneWayRequest interface {
	Request
	OneWay()
}

// IsOneWay returns true if req is a one-way request
func IsOneWay(req Request) bool {
	_, ok := req.(OneWayRequest)
	return ok
}

// TypeOf returns the tag of the request or "<nil>" for a nil interface
func TypeOf(req Request) string {
	if req == nil {
		return "<nil>"
	}
	return req.RequestType()
}

// Validate checks that every request in the batch is non-nil and carries a tag
func Validate(requests []Request) error {
	for i, req := range requests {
		if req == nil {
			return fmt.Errorf("request[%d] is nil", i)
		}
		if req.RequestType() == "" {
			return fmt.Errorf("request[%d] (%T) has an empty type tag", i, req)
		}
	}
	return nil
}

// Tags returns the type tags of the given requests, in order
func Tags(requests []Request) []string {
	tags := make([]string, len(requests))
	for i, req := range requests {
		tags[i] = TypeOf(req)
	}
	return tags
}
