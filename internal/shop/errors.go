package shop

import "fmt"

// Fault codes carried by *Error
const (
	CodeOutOfStock      = "OUT_OF_STOCK"
	CodeUnknownItem     = "UNKNOWN_ITEM"
	CodeInvalidQuantity = "INVALID_QUANTITY"
	CodeNoSuchOrder     = "NO_SUCH_ORDER"
)

// Error is the business error of the shop
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// FaultCode returns the machine readable code
func (e *Error) FaultCode() string {
	return e.Code
}

func newError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AccessDenied is the security error of the shop
type AccessDenied struct {
	Customer string
}

func (e *AccessDenied) Error() string {
	return fmt.Sprintf("customer %q is not allowed to order", e.Customer)
}
