package pumped

import (
	"sync"
	"sync/atomic"
)

// Unsubscribe removes a subscription. Calling it more than once is a no-op.
type Unsubscribe func()

// Readable is the read-only face of a cell or view
type Readable[T any] interface {
	AnyNode
	// Read returns the current value without blocking on pending computations
	Read() T
	// Subscribe registers fn, calls it with the current value, and again after every change
	Subscribe(fn func(T)) Unsubscribe
}

// Writable is a Readable whose value can be replaced by callers
type Writable[T any] interface {
	Readable[T]
	Write(v T)
	Update(fn func(T) T)
}

// NodeOption configures a cell or view at construction
type NodeOption func(AnyNode)

// WithTag returns an option that sets a tag on a node
func WithTag[T any](tag Tag[T], val T) NodeOption {
	return func(n AnyNode) {
		tag.Set(n, val)
	}
}

// Named is shorthand for WithTag(Name(), name)
func Named(name string) NodeOption {
	return WithTag(nameTag, name)
}

type subscriber[T any] struct {
	fn     func(T)
	active atomic.Bool
}

// Cell holds a single value and notifies subscribers on every write.
type Cell[T any] struct {
	scope *Scope
	value T
	subs  []*subscriber[T]
	tags  sync.Map
}

// NewCell creates a cell in scope s holding initial
func NewCell[T any](s *Scope, initial T, opts ...NodeOption) *Cell[T] {
	c := newCell(s, initial)
	for _, opt := range opts {
		opt(c)
	}
	s.graph.AddNode(c)
	return c
}

func newCell[T any](s *Scope, initial T) *Cell[T] {
	return &Cell[T]{
		scope: s,
		value: initial,
	}
}

func (c *Cell[T]) GetTag(tag any) (any, bool) {
	return c.tags.Load(tag)
}

func (c *Cell[T]) SetTag(tag any, val any) {
	c.tags.Store(tag, val)
}

// Dependencies returns nil; cells are graph roots
func (c *Cell[T]) Dependencies() []AnyNode {
	return nil
}

// Scope returns the scope owning the cell
func (c *Cell[T]) Scope() *Scope {
	return c.scope
}

// Read returns the current value
func (c *Cell[T]) Read() T {
	var v T
	c.scope.read(func() {
		v = c.value
	})
	return v
}

// Write replaces the value and notifies every current subscriber
func (c *Cell[T]) Write(v T) {
	op := &Operation{Kind: OpWrite, Node: c, Scope: c.scope}
	_, _ = c.scope.wrap(op, func() (any, error) {
		if !c.set(v) {
			return nil, ErrScopeDisposed
		}
		return v, nil
	})
}

// Update replaces the value with fn(current). fn runs under the scope lock
// and must not touch other cells.
func (c *Cell[T]) Update(fn func(T) T) {
	op := &Operation{Kind: OpWrite, Node: c, Scope: c.scope}
	_, _ = c.scope.wrap(op, func() (any, error) {
		var next T
		ok := c.scope.commit(func() []func() {
			next = fn(c.value)
			return c.setLocked(next)
		})
		if !ok {
			return nil, ErrScopeDisposed
		}
		return next, nil
	})
}

// UpdateIf is Update with a guard: fn returns the next value and whether to
// write it. The check and the write happen under one lock, so concurrent
// callers cannot both write. It reports whether the value was written.
func (c *Cell[T]) UpdateIf(fn func(T) (T, bool)) bool {
	op := &Operation{Kind: OpWrite, Node: c, Scope: c.scope}
	written := false
	_, _ = c.scope.wrap(op, func() (any, error) {
		var next T
		ok := c.scope.commit(func() []func() {
			var change bool
			next, change = fn(c.value)
			if !change {
				return nil
			}
			written = true
			return c.setLocked(next)
		})
		if !ok {
			return nil, ErrScopeDisposed
		}
		return next, nil
	})
	return written
}

// ReadOnly hides the write half of the cell
func (c *Cell[T]) ReadOnly() Readable[T] {
	return readOnly[T]{c}
}

// Subscribe calls fn with the current value and after every subsequent write
func (c *Cell[T]) Subscribe(fn func(T)) Unsubscribe {
	sub := &subscriber[T]{fn: fn}
	sub.active.Store(true)

	ok := c.scope.commit(func() []func() {
		c.subs = append(c.subs, sub)
		return []func(){deliver(sub, c.value)}
	})
	if !ok {
		return func() {}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			c.scope.read(func() {
				for i, s := range c.subs {
					if s == sub {
						c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
						break
					}
				}
			})
		})
	}
}

// SubscriberCount returns the number of active subscriptions
func (c *Cell[T]) SubscriberCount() int {
	n := 0
	c.scope.read(func() {
		n = len(c.subs)
	})
	return n
}

func (c *Cell[T]) set(v T) bool {
	return c.scope.commit(func() []func() {
		return c.setLocked(v)
	})
}

// setLocked must be called with the scope lock held
func (c *Cell[T]) setLocked(v T) []func() {
	c.value = v
	jobs := make([]func(), 0, len(c.subs))
	for _, sub := range c.subs {
		jobs = append(jobs, deliver(sub, v))
	}
	return jobs
}

func deliver[T any](sub *subscriber[T], v T) func() {
	return func() {
		if sub.active.Load() {
			sub.fn(v)
		}
	}
}

type readOnly[T any] struct {
	c *Cell[T]
}

func (r readOnly[T]) GetTag(tag any) (any, bool)        { return r.c.GetTag(tag) }
func (r readOnly[T]) SetTag(tag any, val any)           { r.c.SetTag(tag, val) }
func (r readOnly[T]) Dependencies() []AnyNode           { return nil }
func (r readOnly[T]) Read() T                           { return r.c.Read() }
func (r readOnly[T]) Subscribe(fn func(T)) Unsubscribe { return r.c.Subscribe(fn) }
