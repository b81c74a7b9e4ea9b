package fault

import (
	"errors"
	"fmt"
	"reflect"

	"batchrpc/internal/message"
)

// FaultCoder is implemented by errors carrying a domain-specific fault code
type FaultCoder interface {
	FaultCode() string
}

// Option configures a Classifier
type Option func(*Classifier)

// WithBusinessError configures T as the business error type.
// Matching is by exact dynamic type, so pointer and value forms are distinct.
func WithBusinessError[T error]() Option {
	return func(c *Classifier) {
		c.business = reflect.TypeFor[T]()
	}
}

// WithSecurityError configures T as the security error type
func WithSecurityError[T error]() Option {
	return func(c *Classifier) {
		c.security = reflect.TypeFor[T]()
	}
}

// Classifier maps raised errors onto exception kinds
type Classifier struct {
	business reflect.Type
	security reflect.Type
}

// NewClassifier creates a classifier. Both error types are optional.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the exception kind of err and a fault record describing it.
// It never returns EarlierRequestAlreadyFailed.
func (c *Classifier) Classify(err error) (message.ExceptionKind, *message.FaultRecord) {
	if err == nil {
		return message.None, nil
	}

	kind := message.Unknown
	matched := err
	if c != nil {
		if e := findType(err, c.business); e != nil {
			kind, matched = message.Business, e
		} else if e := findType(err, c.security); e != nil {
			kind, matched = message.Security, e
		}
	}

	if kind == message.Unknown {
		// a fault relayed from a remote processor keeps its original kind
		var remote *message.FaultRecord
		if errors.As(err, &remote) && (remote.Kind == message.Business || remote.Kind == message.Security) {
			return remote.Kind, &message.FaultRecord{
				Message:   err.Error(),
				Type:      remote.Type,
				Kind:      remote.Kind,
				FaultCode: remote.FaultCode,
				Cause:     remote.Cause,
			}
		}
	}

	record := &message.FaultRecord{
		Message: err.Error(),
		Type:    fmt.Sprintf("%T", matched),
		Kind:    kind,
	}
	if kind != message.Unknown {
		if coder, ok := matched.(FaultCoder); ok {
			record.FaultCode = coder.FaultCode()
		}
	}
	if cause := errors.Unwrap(err); cause != nil {
		record.Cause = cause.Error()
	}
	return kind, record
}

// findType walks the wrap tree of err depth-first and returns the first error
// whose dynamic type is exactly t
func findType(err error, t reflect.Type) error {
	if t == nil || err == nil {
		return nil
	}
	if reflect.TypeOf(err) == t {
		return err
	}
	switch x := err.(type) {
	case interface{ Unwrap() error }:
		return findType(x.Unwrap(), t)
	case interface{ Unwrap() []error }:
		for _, inner := range x.Unwrap() {
			if e := findType(inner, t); e != nil {
				return e
			}
		}
	}
	return nil
}
