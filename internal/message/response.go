package message

// GenericResponseType is the tag of the fallback response type
const GenericResponseType = "Response"

// Response is the result of handling a single request
type Response interface {
	ResponseType() string
	ExceptionKind() ExceptionKind
	Fault() *FaultRecord
	SetFault(kind ExceptionKind, fault *FaultRecord)
}

// Base carries the exception kind and fault record of a response.
// Concrete responses embed it and are used through pointers.
type Base struct {
	Kind        ExceptionKind `json:"exceptionKind"`
	FaultDetail *FaultRecord  `json:"fault,omitempty"`
}

// ExceptionKind returns the classification of the response
func (b *Base) ExceptionKind() ExceptionKind {
	return b.Kind
}

// Fault returns the fault record, or nil for a successful response
func (b *Base) Fault() *FaultRecord {
	return b.FaultDetail
}

// SetFault attaches a classification and fault record
func (b *Base) SetFault(kind ExceptionKind, fault *FaultRecord) {
	b.Kind = kind
	b.FaultDetail = fault
}

// IsSuccess returns true if the response carries no exception
func IsSuccess(resp Response) bool {
	return resp != nil && resp.ExceptionKind() == None
}

// GenericResponse is used when no more specific response type can be determined
type GenericResponse struct {
	Base
}

// ResponseType implements Response
func (*GenericResponse) ResponseType() string {
	return GenericResponseType
}

// NewFaultResponse builds a response of the given prototype carrying the fault
func NewFaultResponse(resp Response, kind ExceptionKind, fault *FaultRecord) Response {
	if resp == nil {
		resp = &GenericResponse{}
	}
	if fault != nil {
		fault.Kind = kind
	}
	resp.SetFault(kind, fault)
	return resp
}
