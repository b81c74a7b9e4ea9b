package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"batchrpc/internal/message"
)

// Stub is a test double for code using a Batch. It records added requests
// and answers with canned responses. Clear is a no-op so that requests stay
// inspectable after the code under test resets its batch.
type Stub struct {
	requests       []message.Request
	keyedRequests  map[string]message.Request
	responses      []message.Response
	keyedResponses map[string]message.Response
	unkeyed        map[string]bool

	mu sync.Mutex
}

// NewStub creates an empty stub
func NewStub() *Stub {
	return &Stub{
		keyedRequests:  make(map[string]message.Request),
		keyedResponses: make(map[string]message.Response),
		unkeyed:        make(map[string]bool),
	}
}

// AddResponsesToReturn queues canned responses
func (s *Stub) AddResponsesToReturn(responses ...message.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, responses...)
}

// AddKeyedResponseToReturn queues a canned response for key
func (s *Stub) AddKeyedResponseToReturn(key string, resp message.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyedResponses[key] = resp
	s.responses = append(s.responses, resp)
}

// Add records unkeyed requests, rejecting duplicate types like Dispatcher.
// Either all requests are recorded or none are.
func (s *Stub) Add(reqs ...message.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(reqs))
	for _, req := range reqs {
		if err := checkTwoWay(req); err != nil {
			return err
		}
		tag := req.RequestType()
		if s.unkeyed[tag] || seen[tag] {
			return fmt.Errorf("%w: %s", ErrDuplicateRequestType, tag)
		}
		seen[tag] = true
	}

	for _, req := range reqs {
		s.unkeyed[req.RequestType()] = true
		s.requests = append(s.requests, req)
	}
	return nil
}

// AddKeyed records a keyed request
func (s *Stub) AddKeyed(key string, req message.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.keyedRequests[key]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateKey, key)
	}
	s.keyedRequests[key] = req
	s.requests = append(s.requests, req)
	return nil
}

// Responses returns the canned responses
func (s *Stub) Responses(context.Context) ([]message.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]message.Response(nil), s.responses...), nil
}

// ResponseFor returns the canned response for key
func (s *Stub) ResponseFor(_ context.Context, key string) (message.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp, ok := s.keyedResponses[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return resp, nil
}

// Clear does nothing
func (s *Stub) Clear() {}

// SentRequests returns every recorded request in the order it was added
func (s *Stub) SentRequests() []message.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]message.Request(nil), s.requests...)
}

// GetKeyedRequest returns the request recorded under key
func (s *Stub) GetKeyedRequest(key string) (message.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.keyedRequests[key]
	return req, ok
}

// GetRequest returns the first recorded request of type *T
func GetRequest[T any, PT interface {
	*T
	message.Request
}](s *Stub) (PT, bool) {
	for _, req := range s.SentRequests() {
		if typed, ok := req.(PT); ok {
			return typed, true
		}
	}
	return nil, false
}

// HasRequest reports whether a request of type *T was recorded
func HasRequest[T any, PT interface {
	*T
	message.Request
}](s *Stub) bool {
	_, ok := GetRequest[T, PT](s)
	return ok
}
