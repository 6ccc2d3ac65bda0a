package pumped

import "context"

// Extension provides hooks into the cell, view and execution lifecycle
type Extension interface {
	// Name returns the extension's name
	Name() string

	// Order determines extension execution order (lower = earlier)
	Order() int

	// Init is called when the extension is registered to a scope
	Init(scope *Scope) error

	// Wrap intercepts operations (write, compute, set)
	Wrap(ctx context.Context, next func() (any, error), op *Operation) (any, error)

	// OnError handles errors reported by computations
	OnError(err error, op *Operation, scope *Scope)

	// Execution hooks
	OnFlowStart(execCtx *ExecutionCtx) error
	OnFlowEnd(execCtx *ExecutionCtx, result any, err error) error
	OnFlowPanic(execCtx *ExecutionCtx, recovered any, stack []byte) error

	// Dispose is called when the scope is disposed
	Dispose(scope *Scope) error
}

// BaseExtension provides default implementations for Extension methods
type BaseExtension struct {
	name string
}

// NewBaseExtension creates a new base extension with the given name
func NewBaseExtension(name string) BaseExtension {
	return BaseExtension{name: name}
}

func (e *BaseExtension) Name() string {
	return e.name
}

func (e *BaseExtension) Order() int {
	return 100
}

func (e *BaseExtension) Init(scope *Scope) error {
	return nil
}

func (e *BaseExtension) Wrap(ctx context.Context, next func() (any, error), op *Operation) (any, error) {
	return next()
}

func (e *BaseExtension) OnError(err error, op *Operation, scope *Scope) {
}

func (e *BaseExtension) OnFlowStart(execCtx *ExecutionCtx) error {
	return nil
}

func (e *BaseExtension) OnFlowEnd(execCtx *ExecutionCtx, result any, err error) error {
	return nil
}

func (e *BaseExtension) OnFlowPanic(execCtx *ExecutionCtx, recovered any, stack []byte) error {
	return nil
}

func (e *BaseExtension) Dispose(scope *Scope) error {
	return nil
}

// Operation describes what operation is happening
type Operation struct {
	Kind    OperationKind
	Node    AnyNode
	Scope   *Scope
	Version uint64
}

// OperationKind represents the type of operation
type OperationKind string

const (
	// OpWrite indicates a cell write
	OpWrite OperationKind = "write"
	// OpCompute indicates a view (re)computation being issued
	OpCompute OperationKind = "compute"
	// OpSet indicates a computation result being applied to a view
	OpSet OperationKind = "set"
	// OpDiscard indicates a result dropped because newer inputs arrived.
	// Wrap sees OpSet before next() and OpDiscard after it when the result was stale.
	OpDiscard OperationKind = "discard"
)
