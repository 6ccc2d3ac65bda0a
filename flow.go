package pumped

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ExecutionCtx describes one named, short-span operation (a load stage,
// a remote lookup) and its position in the execution tree.
type ExecutionCtx struct {
	id     string
	parent *ExecutionCtx
	scope  *Scope
	mu     sync.RWMutex
	data   map[any]any
	ctx    context.Context
}

func (e *ExecutionCtx) ID() string {
	return e.id
}

func (e *ExecutionCtx) Parent() *ExecutionCtx {
	return e.parent
}

func (e *ExecutionCtx) Set(tag any, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data[tag] = value
}

func (e *ExecutionCtx) Get(tag any) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.data[tag]
	return v, ok
}

func (e *ExecutionCtx) GetFromParent(tag any) (any, bool) {
	for current := e.parent; current != nil; current = current.parent {
		if v, ok := current.Get(tag); ok {
			return v, true
		}
	}
	return nil, false
}

func (e *ExecutionCtx) GetFromScope(tag any) (any, bool) {
	return e.scope.GetTag(tag)
}

// Lookup tries self, then parents, then the scope
func (e *ExecutionCtx) Lookup(tag any) (any, bool) {
	if v, ok := e.Get(tag); ok {
		return v, true
	}
	if v, ok := e.GetFromParent(tag); ok {
		return v, true
	}
	return e.GetFromScope(tag)
}

func (e *ExecutionCtx) Context() context.Context {
	return e.ctx
}

func (e *ExecutionCtx) Scope() *Scope {
	return e.scope
}

func (e *ExecutionCtx) finalize() *ExecutionNode {
	parentID := ""
	if e.parent != nil {
		parentID = e.parent.id
	}

	node := &ExecutionNode{
		ID:       e.id,
		ParentID: parentID,
		Tags:     make(map[any]any),
	}

	e.mu.RLock()
	for k, v := range e.data {
		node.Tags[k] = v
	}
	e.mu.RUnlock()

	return node
}

type ExecutionNode struct {
	ID       string
	ParentID string
	Tags     map[any]any
}

func (n *ExecutionNode) GetTag(tag any) (any, bool) {
	v, ok := n.Tags[tag]
	return v, ok
}

// ExecutionTree keeps a bounded history of finished executions
type ExecutionTree struct {
	mu       sync.RWMutex
	nodes    map[string]*ExecutionNode
	byParent map[string][]string
	roots    []string
	limit    int
}

func newExecutionTree(limit int) *ExecutionTree {
	return &ExecutionTree{
		nodes:    make(map[string]*ExecutionNode),
		byParent: make(map[string][]string),
		roots:    []string{},
		limit:    limit,
	}
}

func (t *ExecutionTree) addNode(node *ExecutionNode) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nodes[node.ID] = node

	// children finish before their parent; a parent is recorded as a root
	// once it finishes itself
	if node.ParentID == "" {
		t.roots = append(t.roots, node.ID)
	} else {
		t.byParent[node.ParentID] = append(t.byParent[node.ParentID], node.ID)
	}

	for len(t.nodes) > t.limit && len(t.roots) > 0 {
		t.evictOldest()
	}
}

func (t *ExecutionTree) evictOldest() {
	oldestRoot := t.roots[0]
	t.roots = t.roots[1:]

	t.removeSubtree(oldestRoot)
}

func (t *ExecutionTree) removeSubtree(nodeID string) {
	delete(t.nodes, nodeID)

	children := t.byParent[nodeID]
	delete(t.byParent, nodeID)

	for _, childID := range children {
		t.removeSubtree(childID)
	}
}

func (t *ExecutionTree) GetNode(id string) *ExecutionNode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nodes[id]
}

func (t *ExecutionTree) GetChildren(id string) []*ExecutionNode {
	t.mu.RLock()
	defer t.mu.RUnlock()

	childIDs := t.byParent[id]
	children := make([]*ExecutionNode, 0, len(childIDs))
	for _, childID := range childIDs {
		if node := t.nodes[childID]; node != nil {
			children = append(children, node)
		}
	}
	return children
}

func (t *ExecutionTree) GetRoots() []*ExecutionNode {
	t.mu.RLock()
	defer t.mu.RUnlock()

	roots := make([]*ExecutionNode, 0, len(t.roots))
	for _, rootID := range t.roots {
		if node := t.nodes[rootID]; node != nil {
			roots = append(roots, node)
		}
	}
	return roots
}

func (t *ExecutionTree) Filter(predicate func(*ExecutionNode) bool) []*ExecutionNode {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var result []*ExecutionNode
	for _, node := range t.nodes {
		if predicate(node) {
			result = append(result, node)
		}
	}
	return result
}

type ExecutionStatus int

const (
	ExecutionStatusRunning ExecutionStatus = iota
	ExecutionStatusSuccess
	ExecutionStatusFailed
	ExecutionStatusCancelled
)

func (s ExecutionStatus) String() string {
	switch s {
	case ExecutionStatusRunning:
		return "running"
	case ExecutionStatusSuccess:
		return "success"
	case ExecutionStatusFailed:
		return "failed"
	case ExecutionStatusCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

var (
	flowNameTag   = NewTag[string]("flow.name")
	startTimeTag  = NewTag[time.Time]("exec.start_time")
	endTimeTag    = NewTag[time.Time]("exec.end_time")
	statusTag     = NewTag[ExecutionStatus]("exec.status")
	errorTag      = NewTag[error]("exec.error")
	outputTag     = NewTag[any]("exec.output")
	panicStackTag = NewTag[[]byte]("exec.panic_stack")
)

func FlowName() Tag[string]        { return flowNameTag }
func StartTime() Tag[time.Time]    { return startTimeTag }
func EndTime() Tag[time.Time]      { return endTimeTag }
func Status() Tag[ExecutionStatus] { return statusTag }
func ErrorTag() Tag[error]         { return errorTag }
func Output() Tag[any]             { return outputTag }
func PanicStack() Tag[[]byte]      { return panicStackTag }

// Exec runs fn as a root execution named name
func Exec[R any](ctx context.Context, s *Scope, name string, fn func(*ExecutionCtx) (R, error)) (R, *ExecutionCtx, error) {
	execCtx := &ExecutionCtx{
		id:    uuid.NewString(),
		scope: s,
		data:  make(map[any]any),
		ctx:   ctx,
	}
	return execute(execCtx, name, fn)
}

// Exec1 runs fn as a child execution of parent
func Exec1[R any](parent *ExecutionCtx, name string, fn func(*ExecutionCtx) (R, error)) (R, *ExecutionCtx, error) {
	execCtx := &ExecutionCtx{
		id:     uuid.NewString(),
		parent: parent,
		scope:  parent.scope,
		data:   make(map[any]any),
		ctx:    parent.ctx,
	}
	return execute(execCtx, name, fn)
}

func execute[R any](e *ExecutionCtx, name string, fn func(*ExecutionCtx) (R, error)) (R, *ExecutionCtx, error) {
	var zero R
	s := e.scope

	e.Set(flowNameTag, name)
	e.Set(startTimeTag, time.Now())
	e.Set(statusTag, ExecutionStatusRunning)

	// Check for cancellation before doing anything
	if err := e.ctx.Err(); err != nil {
		e.Set(endTimeTag, time.Now())
		e.Set(statusTag, ExecutionStatusCancelled)
		e.Set(errorTag, err)
		s.execTree.addNode(e.finalize())
		return zero, e, err
	}

	exts := s.snapshotExtensions()
	for _, ext := range exts {
		if err := ext.OnFlowStart(e); err != nil {
			e.Set(statusTag, ExecutionStatusFailed)
			e.Set(errorTag, err)
			s.execTree.addNode(e.finalize())
			return zero, e, err
		}
	}

	result, err := runFlow(e, fn)

	e.Set(endTimeTag, time.Now())
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			e.Set(statusTag, ExecutionStatusCancelled)
		} else {
			e.Set(statusTag, ExecutionStatusFailed)
		}
		e.Set(errorTag, err)
	} else {
		e.Set(statusTag, ExecutionStatusSuccess)
		e.Set(outputTag, result)
	}

	for i := len(exts) - 1; i >= 0; i-- {
		if extErr := exts[i].OnFlowEnd(e, result, err); extErr != nil && err == nil {
			err = extErr
		}
	}

	s.execTree.addNode(e.finalize())

	return result, e, err
}

func runFlow[R any](e *ExecutionCtx, fn func(*ExecutionCtx) (R, error)) (result R, err error) {
	type flowResult struct {
		value R
		err   error
		panic any
		stack []byte
	}

	resultCh := make(chan flowResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- flowResult{panic: r, stack: debug.Stack()}
			}
		}()

		value, err := fn(e)
		resultCh <- flowResult{value: value, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.panic != nil {
			err = fmt.Errorf("panic in flow: %v", res.panic)
			e.Set(panicStackTag, res.stack)

			for _, ext := range e.scope.snapshotExtensions() {
				if panicErr := ext.OnFlowPanic(e, res.panic, res.stack); panicErr != nil {
					err = errors.Join(err, panicErr)
				}
			}
			return
		}
		return res.value, res.err
	case <-e.ctx.Done():
		return result, e.ctx.Err()
	}
}
