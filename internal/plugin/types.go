package plugin

import (
	"fmt"

	"batchrpc/internal/message"
)

// Script is a loaded JavaScript handler
type Script struct {
	Name         string // file name without extension
	RequestType  string // tag of the handled request type
	ResponseType string // tag of the produced response type, may be empty
	Source       string // JavaScript source code
}

// ScriptError is raised by fail(code, message) inside a script
type ScriptError struct {
	Script  string
	Code    string
	Message string
}

// Error implements the error interface
func (e *ScriptError) Error() string {
	return fmt.Sprintf("script %s: %s", e.Script, e.Message)
}

// FaultCode returns the code passed to fail
func (e *ScriptError) FaultCode() string {
	return e.Code
}

// Unwrap exposes the failure as a business fault record, so scripts reject
// requests the same way a remote processor does
func (e *ScriptError) Unwrap() error {
	return &message.FaultRecord{
		Message:   e.Message,
		Type:      "*plugin.ScriptError",
		Kind:      message.Business,
		FaultCode: e.Code,
	}
}
