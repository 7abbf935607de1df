package verification

import (
	"context"
	"errors"
)

// Processor is a single verification check.
// An error means the check could not be performed, not that the player was
// rejected; rejections are expressed as a Failure result.
type Processor interface {
	Evaluate(ctx context.Context, conn Connection) (Result, error)
}

// ProcessorFunc adapts a plain function to the Processor interface.
type ProcessorFunc func(ctx context.Context, conn Connection) (Result, error)

func (f ProcessorFunc) Evaluate(ctx context.Context, conn Connection) (Result, error) {
	return f(ctx, conn)
}

var (
	ErrDuplicateProcessor = errors.New("processor already registered")
	ErrPipelineSealed     = errors.New("pipeline is sealed")
)

// ProcessorInfo describes a registered processor.
type ProcessorInfo struct {
	ID       string
	Priority Priority
	FailOpen bool
}

type registration struct {
	ProcessorInfo
	processor Processor
	seq       int
}

// RegisterOption configures a single processor registration.
type RegisterOption func(*registration)

// WithFailClosed makes processor errors reject the connection instead of
// letting it through.
func WithFailClosed() RegisterOption {
	return func(r *registration) {
		r.FailOpen = false
	}
}

// WithFailOpen sets the fail policy explicitly.
func WithFailOpen(failOpen bool) RegisterOption {
	return func(r *registration) {
		r.FailOpen = failOpen
	}
}
