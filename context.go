package pumped

import (
	"context"
	"errors"
	"log/slog"
)

// ComputeCtx is handed to every view computation. It identifies the input
// version the computation was issued for and is cancelled as soon as a newer
// computation of the same view starts.
type ComputeCtx struct {
	ctx     context.Context
	scope   *Scope
	node    AnyNode
	version uint64
}

// Context returns a context cancelled when the computation is superseded or the scope disposed
func (c *ComputeCtx) Context() context.Context {
	return c.ctx
}

// Scope returns the owning scope
func (c *ComputeCtx) Scope() *Scope {
	return c.scope
}

// Node returns the view being computed
func (c *ComputeCtx) Node() AnyNode {
	return c.node
}

// Version returns the input version this computation was issued for
func (c *ComputeCtx) Version() uint64 {
	return c.version
}

// Logger returns the scope logger annotated with the view name and version
func (c *ComputeCtx) Logger() *slog.Logger {
	return c.scope.logger.With("node", NameOf(c.node), "version", c.version)
}

// Superseded reports whether a newer computation has started or the scope is gone
func (c *ComputeCtx) Superseded() bool {
	return c.ctx.Err() != nil
}

// Fail reports a failed computation. The view keeps its last value.
// Failures caused by supersession are logged at debug level only.
func (c *ComputeCtx) Fail(err error) {
	if err == nil {
		return
	}
	if c.Superseded() && errors.Is(err, context.Canceled) {
		c.Logger().Debug("superseded computation stopped", "error", err)
		return
	}
	op := &Operation{Kind: OpCompute, Node: c.node, Scope: c.scope, Version: c.version}
	c.scope.reportError(newComputeError(c.node, c.version, err, ""), op)
}

// GetTag retrieves a typed tag value from the scope
func GetTag[T any](ctx *ComputeCtx, tag Tag[T]) (T, bool) {
	return tag.GetFromScope(ctx.scope)
}

// GetTagOrDefault retrieves a typed tag or returns a default value
func GetTagOrDefault[T any](ctx *ComputeCtx, tag Tag[T], defaultVal T) T {
	if val, ok := tag.GetFromScope(ctx.scope); ok {
		return val
	}
	return defaultVal
}
