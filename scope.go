package pumped

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
)

// AnyNode is implemented by every cell and view living in a scope
type AnyNode interface {
	GetTag(tag any) (any, bool)
	SetTag(tag any, val any)
	// Dependencies returns the upstream nodes this node is computed from
	Dependencies() []AnyNode
}

// Scope owns a set of cells and views and serializes their notifications.
//
// Every write and every subscriber callback goes through a single FIFO queue
// per scope. Callbacks never run concurrently with each other, and a write
// issued from inside a callback is delivered after the current callback
// returns.
type Scope struct {
	mu       sync.Mutex
	queue    []func()
	draining bool
	disposed bool

	ctx    context.Context
	cancel context.CancelFunc

	tags       sync.Map
	extMu      sync.RWMutex
	extensions []Extension
	graph      *ReactiveGraph
	logger     *slog.Logger
	execTree   *ExecutionTree
	historyCap int

	disposeMu sync.Mutex
	disposers []func()
}

// ScopeOption is a modifier for scopes
type ScopeOption func(*Scope)

// WithScopeTag returns an option that sets a tag on a scope
func WithScopeTag[T any](tag Tag[T], val T) ScopeOption {
	return func(s *Scope) {
		tag.SetOnScope(s, val)
	}
}

// WithExtension returns an option that registers an extension to a scope
func WithExtension(ext Extension) ScopeOption {
	return func(s *Scope) {
		if err := s.UseExtension(ext); err != nil {
			panic(err)
		}
	}
}

// WithLogger sets the logger used for errors reported by computations
func WithLogger(logger *slog.Logger) ScopeOption {
	return func(s *Scope) {
		s.logger = logger
	}
}

// WithHistoryLimit bounds the number of executions kept in the execution tree
func WithHistoryLimit(limit int) ScopeOption {
	return func(s *Scope) {
		s.historyCap = limit
	}
}

// WithContext derives the scope's lifetime context from parent
func WithContext(parent context.Context) ScopeOption {
	return func(s *Scope) {
		s.cancel()
		s.ctx, s.cancel = context.WithCancel(parent)
	}
}

// NewScope creates a new scope with optional configuration
func NewScope(opts ...ScopeOption) *Scope {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scope{
		ctx:        ctx,
		cancel:     cancel,
		extensions: []Extension{},
		graph:      NewReactiveGraph(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		historyCap: 1000,
	}

	for _, opt := range opts {
		opt(s)
	}
	s.execTree = newExecutionTree(s.historyCap)

	return s
}

// Context returns the scope's lifetime context, cancelled on Dispose
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Logger returns the scope's logger
func (s *Scope) Logger() *slog.Logger {
	return s.logger
}

// UseExtension registers an extension to the scope
func (s *Scope) UseExtension(ext Extension) error {
	s.extMu.Lock()
	s.extensions = append(s.extensions, ext)
	sort.SliceStable(s.extensions, func(i, j int) bool {
		return s.extensions[i].Order() < s.extensions[j].Order()
	})
	s.extMu.Unlock()

	return ext.Init(s)
}

// GetTag retrieves a tag value from the scope
func (s *Scope) GetTag(tag any) (any, bool) {
	return s.tags.Load(tag)
}

// SetTag stores a tag value on the scope
func (s *Scope) SetTag(tag any, val any) {
	s.tags.Store(tag, val)
}

// Graph returns the reactive dependency graph of the scope
func (s *Scope) Graph() *ReactiveGraph {
	return s.graph
}

// ExportDependencyGraph returns a snapshot of node -> direct dependents
func (s *Scope) ExportDependencyGraph() map[AnyNode][]AnyNode {
	return s.graph.Export()
}

// GetExecutionTree returns the execution tree for querying
func (s *Scope) GetExecutionTree() *ExecutionTree {
	return s.execTree
}

// IsDisposed reports whether Dispose has been called
func (s *Scope) IsDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// Dispose cancels in-flight computations, detaches all views from their
// sources and disposes the extensions. Writes after Dispose are dropped.
func (s *Scope) Dispose() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	s.queue = nil
	s.mu.Unlock()

	s.cancel()

	s.disposeMu.Lock()
	disposers := s.disposers
	s.disposers = nil
	s.disposeMu.Unlock()

	for i := len(disposers) - 1; i >= 0; i-- {
		disposers[i]()
	}

	for _, ext := range s.snapshotExtensions() {
		if err := ext.Dispose(s); err != nil {
			return fmt.Errorf("disposing extension %s: %w", ext.Name(), err)
		}
	}

	return nil
}

func (s *Scope) onDispose(fn func()) {
	s.disposeMu.Lock()
	defer s.disposeMu.Unlock()
	s.disposers = append(s.disposers, fn)
}

// commit runs mutate under the scope lock and delivers the jobs it returns.
// It returns false when the scope is already disposed.
func (s *Scope) commit(mutate func() []func()) bool {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, mutate()...)
	if s.draining {
		s.mu.Unlock()
		return true
	}
	s.draining = true
	for len(s.queue) > 0 {
		job := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()
		s.runJob(job)
		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
	return true
}

func (s *Scope) runJob(job func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("subscriber panicked", "panic", fmt.Sprintf("%v", r))
		}
	}()
	job()
}

// read runs fn under the scope lock
func (s *Scope) read(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

func (s *Scope) snapshotExtensions() []Extension {
	s.extMu.RLock()
	defer s.extMu.RUnlock()
	exts := make([]Extension, len(s.extensions))
	copy(exts, s.extensions)
	return exts
}

// wrap chains the registered extensions around next (middleware pattern)
func (s *Scope) wrap(op *Operation, next func() (any, error)) (any, error) {
	exts := s.snapshotExtensions()

	// Apply extensions in reverse order (last registered wraps first)
	for i := len(exts) - 1; i >= 0; i-- {
		ext := exts[i]
		currentNext := next
		next = func() (any, error) {
			return ext.Wrap(s.ctx, currentNext, op)
		}
	}

	return next()
}

// reportError logs err and notifies extensions
func (s *Scope) reportError(err error, op *Operation) {
	s.logger.Error("computation failed",
		"node", NameOf(op.Node),
		"operation", string(op.Kind),
		"version", op.Version,
		"error", err,
	)
	for _, ext := range s.snapshotExtensions() {
		ext.OnError(err, op, s)
	}
}
