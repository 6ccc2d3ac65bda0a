package pumped

import (
	"context"
	"fmt"
	"sync"
)

// View is a read-only value computed from one or more sources.
//
// Every source change bumps the view's version and issues a new computation.
// A computation result is applied only while its version is still current;
// results of superseded computations are discarded.
type View[T any] struct {
	scope *Scope
	out   *Cell[T]
	deps  []AnyNode
	tags  sync.Map
	async bool

	run func(cc *ComputeCtx)

	// guarded by scope.mu
	version uint64
	cancel  context.CancelFunc
	stopped bool

	unsubs []Unsubscribe
}

func newView[T any](s *Scope, deps []AnyNode, async bool, opts []NodeOption) *View[T] {
	var zero T
	v := &View[T]{
		scope: s,
		out:   newCell(s, zero),
		deps:  deps,
		async: async,
	}
	for _, opt := range opts {
		opt(v)
	}

	s.graph.AddNode(v)
	for _, dep := range deps {
		s.graph.AddDependency(v, dep)
	}
	return v
}

// WithInitial sets the value a view holds before its first computation resolves
func WithInitial[T any](val T) NodeOption {
	return func(n AnyNode) {
		switch v := n.(type) {
		case *View[T]:
			v.out.value = val
		case *Cell[T]:
			v.value = val
		default:
			panic(fmt.Sprintf("initial value of type %T does not match node %T", val, n))
		}
	}
}

func (v *View[T]) GetTag(tag any) (any, bool) {
	return v.tags.Load(tag)
}

func (v *View[T]) SetTag(tag any, val any) {
	v.tags.Store(tag, val)
}

// Dependencies returns the sources of the view
func (v *View[T]) Dependencies() []AnyNode {
	return v.deps
}

// Async reports whether the view resolves through a set callback
func (v *View[T]) Async() bool {
	return v.async
}

// Read returns the last applied value
func (v *View[T]) Read() T {
	return v.out.Read()
}

// Subscribe calls fn with the current value and after every applied result
func (v *View[T]) Subscribe(fn func(T)) Unsubscribe {
	return v.out.Subscribe(fn)
}

// Version returns the version of the most recently issued computation
func (v *View[T]) Version() uint64 {
	var ver uint64
	v.scope.read(func() {
		ver = v.version
	})
	return ver
}

// start subscribes to every source and issues the first computation.
// The immediate delivery each Subscribe makes is skipped; one computation
// covers all of them.
func (v *View[T]) start(watchers []func(func()) Unsubscribe) {
	for _, watch := range watchers {
		primed := false
		v.unsubs = append(v.unsubs, watch(func() {
			if !primed {
				primed = true
				return
			}
			v.invalidate()
		}))
	}
	v.scope.onDispose(v.stop)
	v.invalidate()
}

func (v *View[T]) stop() {
	v.scope.read(func() {
		v.stopped = true
		if v.cancel != nil {
			v.cancel()
		}
	})
	for _, unsub := range v.unsubs {
		unsub()
	}
}

func (v *View[T]) invalidate() {
	var cc *ComputeCtx
	v.scope.read(func() {
		if v.scope.disposed || v.stopped {
			return
		}
		v.version++
		if v.cancel != nil {
			v.cancel()
		}
		ctx, cancel := context.WithCancel(v.scope.ctx)
		v.cancel = cancel
		cc = &ComputeCtx{
			ctx:     ctx,
			scope:   v.scope,
			node:    v,
			version: v.version,
		}
	})
	if cc == nil {
		return
	}

	op := &Operation{Kind: OpCompute, Node: v, Scope: v.scope, Version: cc.version}
	_, _ = v.scope.wrap(op, func() (any, error) {
		v.execute(cc, op)
		return nil, nil
	})
}

func (v *View[T]) execute(cc *ComputeCtx, op *Operation) {
	defer func() {
		if r := recover(); r != nil {
			v.scope.reportError(newComputeError(v, cc.version, panicError(r), "compute"), op)
		}
	}()
	v.run(cc)
}

// apply stores val if version is still current and reports whether it did
func (v *View[T]) apply(version uint64, val T) bool {
	op := &Operation{Kind: OpSet, Node: v, Scope: v.scope, Version: version}
	res, _ := v.scope.wrap(op, func() (any, error) {
		applied := false
		v.scope.commit(func() []func() {
			if v.version != version || v.stopped {
				return nil
			}
			applied = true
			return v.out.setLocked(val)
		})
		if !applied {
			op.Kind = OpDiscard
		}
		return applied, nil
	})
	applied, _ := res.(bool)
	return applied
}

func watch[D any](r Readable[D]) func(func()) Unsubscribe {
	return func(fn func()) Unsubscribe {
		return r.Subscribe(func(D) { fn() })
	}
}
