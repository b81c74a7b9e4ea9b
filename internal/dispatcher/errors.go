package dispatcher

import "errors"

var (
	// ErrRequestsAlreadySent is returned when requests are added after responses were materialized
	ErrRequestsAlreadySent = errors.New("dispatcher: requests already sent")
	// ErrDuplicateRequestType is returned when a second unkeyed request of a type is added
	ErrDuplicateRequestType = errors.New("dispatcher: request type already added without a key")
	// ErrDuplicateKey is returned when a key is used twice in one cycle
	ErrDuplicateKey = errors.New("dispatcher: key already used")
	// ErrMixedRequestKinds is returned when one-way and two-way requests are combined
	ErrMixedRequestKinds = errors.New("dispatcher: cannot mix one-way and two-way requests")
	// ErrNoResponse is returned when no response of the requested type exists
	ErrNoResponse = errors.New("dispatcher: no such response")
	// ErrAmbiguousResponse is returned when several responses of the requested type exist
	ErrAmbiguousResponse = errors.New("dispatcher: ambiguous response, use a key")
	// ErrUnknownKey is returned for a key that was never added
	ErrUnknownKey = errors.New("dispatcher: unknown key")
	// ErrNotOneWay is returned when ProcessOneWay is called on a two-way cycle
	ErrNotOneWay = errors.New("dispatcher: cycle contains two-way requests")
	// ErrNoRequests is returned when there is nothing to send
	ErrNoRequests = errors.New("dispatcher: no requests")
	// ErrFaultEscalated wraps the error a fault hook returned
	ErrFaultEscalated = errors.New("dispatcher: fault escalated")
	// ErrDispatchPanic wraps a panic raised while materializing responses
	ErrDispatchPanic = errors.New("dispatcher: panic while dispatching")
)
