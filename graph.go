package pumped

import (
	"sync"
)

// ReactiveGraph records which views are computed from which nodes
type ReactiveGraph struct {
	// Adjacency lists in both directions
	downstream map[AnyNode][]AnyNode
	upstream   map[AnyNode][]AnyNode
	order      []AnyNode
	known      map[AnyNode]bool
	mu         sync.RWMutex
}

// NewReactiveGraph creates a new reactive dependency graph
func NewReactiveGraph() *ReactiveGraph {
	return &ReactiveGraph{
		downstream: make(map[AnyNode][]AnyNode),
		upstream:   make(map[AnyNode][]AnyNode),
		known:      make(map[AnyNode]bool),
	}
}

// underlying is implemented by handles that stand in for another node
type underlying interface {
	underlying() AnyNode
}

func (r readOnly[T]) underlying() AnyNode { return r.c }

func unwrapNode(n AnyNode) AnyNode {
	if u, ok := n.(underlying); ok {
		return u.underlying()
	}
	return n
}

// AddNode registers a node, keeping registration order
func (g *ReactiveGraph) AddNode(node AnyNode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addNodeLocked(unwrapNode(node))
}

func (g *ReactiveGraph) addNodeLocked(node AnyNode) {
	if g.known[node] {
		return
	}
	g.known[node] = true
	g.order = append(g.order, node)
}

// AddDependency adds a reactive dependency relationship
func (g *ReactiveGraph) AddDependency(dependent AnyNode, dependency AnyNode) {
	dependent, dependency = unwrapNode(dependent), unwrapNode(dependency)

	g.mu.Lock()
	defer g.mu.Unlock()

	g.addNodeLocked(dependency)
	g.addNodeLocked(dependent)

	// dependency -> dependent
	g.downstream[dependency] = appendUnique(g.downstream[dependency], dependent)

	// dependent -> dependency
	g.upstream[dependent] = appendUnique(g.upstream[dependent], dependency)
}

// RemoveDependency removes a reactive dependency relationship
func (g *ReactiveGraph) RemoveDependency(dependent AnyNode, dependency AnyNode) {
	dependent, dependency = unwrapNode(dependent), unwrapNode(dependency)

	g.mu.Lock()
	defer g.mu.Unlock()

	g.downstream[dependency] = removeElement(g.downstream[dependency], dependent)
	if len(g.downstream[dependency]) == 0 {
		delete(g.downstream, dependency)
	}

	g.upstream[dependent] = removeElement(g.upstream[dependent], dependency)
	if len(g.upstream[dependent]) == 0 {
		delete(g.upstream, dependent)
	}
}

// FindDependents returns every node transitively computed from start.
// Iterative traversal with an explicit stack.
func (g *ReactiveGraph) FindDependents(start AnyNode) []AnyNode {
	start = unwrapNode(start)

	g.mu.RLock()
	defer g.mu.RUnlock()

	stack := make([]AnyNode, 0, 32)
	stack = append(stack, start)

	dependents := make([]AnyNode, 0, 32)
	visited := make(map[AnyNode]bool, 32)

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[current] {
			continue
		}
		visited[current] = true

		if current != start {
			dependents = append(dependents, current)
		}

		for _, dep := range g.downstream[current] {
			if !visited[dep] {
				stack = append(stack, dep)
			}
		}
	}

	return dependents
}

// GetDirectDependents returns only direct dependents (no recursion)
func (g *ReactiveGraph) GetDirectDependents(node AnyNode) []AnyNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	deps := g.downstream[unwrapNode(node)]
	if len(deps) == 0 {
		return nil
	}
	result := make([]AnyNode, len(deps))
	copy(result, deps)
	return result
}

// Nodes returns every registered node in registration order
func (g *ReactiveGraph) Nodes() []AnyNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]AnyNode, len(g.order))
	copy(result, g.order)
	return result
}

// Roots returns the registered nodes that depend on nothing
func (g *ReactiveGraph) Roots() []AnyNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var roots []AnyNode
	for _, n := range g.order {
		if len(g.upstream[n]) == 0 {
			roots = append(roots, n)
		}
	}
	return roots
}

// Export returns a copy of the downstream adjacency lists
func (g *ReactiveGraph) Export() map[AnyNode][]AnyNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make(map[AnyNode][]AnyNode, len(g.downstream))
	for k, v := range g.downstream {
		children := make([]AnyNode, len(v))
		copy(children, v)
		out[k] = children
	}
	return out
}

func appendUnique[T comparable](slice []T, item T) []T {
	for _, existing := range slice {
		if existing == item {
			return slice
		}
	}
	return append(slice, item)
}

func removeElement[T comparable](slice []T, item T) []T {
	for i, existing := range slice {
		if existing == item {
			return append(slice[:i], slice[i+1:]...)
		}
	}
	return slice
}
