package message

import (
	"encoding/json"
	"fmt"
)

// ExceptionKind classifies the outcome of handling a single request
type ExceptionKind int

const (
	// None means the handler produced a normal result
	None ExceptionKind = iota
	// Business is an expected domain fault, optionally carrying a fault code
	Business
	// Security is an authentication or authorization fault
	Security
	// Unknown is any unanticipated fault
	Unknown
	// EarlierRequestAlreadyFailed marks a slot that was never attempted because
	// an earlier request in the same batch failed
	EarlierRequestAlreadyFailed
)

var kindNames = map[ExceptionKind]string{
	None:                        "none",
	Business:                    "business",
	Security:                    "security",
	Unknown:                     "unknown",
	EarlierRequestAlreadyFailed: "earlierRequestAlreadyFailed",
}

// String returns the wire name of the kind
func (k ExceptionKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ExceptionKind(%d)", int(k))
}

// ParseExceptionKind converts a wire name back into an ExceptionKind
func ParseExceptionKind(s string) (ExceptionKind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return None, fmt.Errorf("unknown exception kind: %q", s)
}

// MarshalJSON implements json.Marshaler
func (k ExceptionKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (k *ExceptionKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseExceptionKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// FaultRecord is the serializable description of a fault raised while
// handling a request
type FaultRecord struct {
	Message   string        `json:"message"`
	Type      string        `json:"type,omitempty"`
	Kind      ExceptionKind `json:"kind"`
	FaultCode string        `json:"faultCode,omitempty"`
	Cause     string        `json:"cause,omitempty"`
}

// Error implements the error interface so a fault record can travel as an error
func (f *FaultRecord) Error() string {
	if f.FaultCode != "" {
		return fmt.Sprintf("%s [%s]: %s", f.Kind, f.FaultCode, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}
