package pumped

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrScopeDisposed is returned by operations attempted on a disposed scope.
var ErrScopeDisposed = errors.New("scope is disposed")

// ComputeError describes a failed or panicking view computation.
type ComputeError struct {
	Node       AnyNode
	Version    uint64
	Cause      error
	Context    string
	StackTrace []byte
}

func (e *ComputeError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("compute error in %s (version %d) during %s: %v", NameOf(e.Node), e.Version, e.Context, e.Cause)
	}
	return fmt.Sprintf("compute error in %s (version %d): %v", NameOf(e.Node), e.Version, e.Cause)
}

func (e *ComputeError) Unwrap() error {
	return e.Cause
}

func newComputeError(node AnyNode, version uint64, cause error, context string) *ComputeError {
	return &ComputeError{
		Node:       node,
		Version:    version,
		Cause:      cause,
		Context:    context,
		StackTrace: debug.Stack(),
	}
}

// panicError converts a recovered value into an error.
func panicError(recovered any) error {
	if err, ok := recovered.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", recovered)
}
