package fault

import (
	"batchrpc/internal/message"
)

// ErrorHandler turns faults into classified responses
type ErrorHandler struct {
	classifier *Classifier
	resolver   *ResponseResolver
}

// NewErrorHandler creates an error handler
func NewErrorHandler(classifier *Classifier, resolver *ResponseResolver) *ErrorHandler {
	if classifier == nil {
		classifier = NewClassifier()
	}
	if resolver == nil {
		resolver = NewResponseResolver(nil)
	}
	return &ErrorHandler{classifier: classifier, resolver: resolver}
}

// DealWithException builds the default response for req carrying the
// classified fault
func (h *ErrorHandler) DealWithException(req message.Request, err error) message.Response {
	kind, record := h.classifier.Classify(err)
	return message.NewFaultResponse(h.resolver.DefaultResponseFor(req), kind, record)
}

// DealWithPreviouslyOccurredExceptions builds the response for a request that
// was skipped because an earlier request in the batch failed
func (h *ErrorHandler) DealWithPreviouslyOccurredExceptions(req message.Request) message.Response {
	kind := message.EarlierRequestAlreadyFailed
	record := &message.FaultRecord{
		Message: kind.String(),
		Kind:    kind,
	}
	return message.NewFaultResponse(h.resolver.DefaultResponseFor(req), kind, record)
}
