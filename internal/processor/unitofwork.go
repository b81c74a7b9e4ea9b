package processor

import "context"

// UnitOfWork brackets the processing of one batch
type UnitOfWork interface {
	Start(ctx context.Context) error
	// End is called with the first fault of the batch, or nil
	End(err error)
}

// UnitOfWorkFactory creates a unit of work for each Process call
type UnitOfWorkFactory func() UnitOfWork

// NopUnitOfWork does nothing
type NopUnitOfWork struct{}

func (NopUnitOfWork) Start(context.Context) error { return nil }
func (NopUnitOfWork) End(error)                   {}

func nopUnitOfWork() UnitOfWork { return NopUnitOfWork{} }
