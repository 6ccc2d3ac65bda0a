package pumped

import "fmt"

// Tag is a type-safe key for metadata
type Tag[T any] struct {
	key string
}

// NewTag creates a new tag with the given key
func NewTag[T any](key string) Tag[T] {
	return Tag[T]{key: key}
}

// Key returns the tag's key (for debugging)
func (t Tag[T]) Key() string {
	return t.key
}

// Get retrieves the tag value from a node
func (t Tag[T]) Get(node AnyNode) (T, bool) {
	val, ok := node.GetTag(t)
	if !ok {
		var zero T
		return zero, false
	}
	return val.(T), true
}

// GetOrDefault retrieves the tag value or returns a default
func (t Tag[T]) GetOrDefault(node AnyNode, defaultVal T) T {
	if val, ok := t.Get(node); ok {
		return val
	}
	return defaultVal
}

// Set stores the tag value on a node
func (t Tag[T]) Set(node AnyNode, val T) {
	node.SetTag(t, val)
}

// GetFromScope retrieves the tag value from a scope
func (t Tag[T]) GetFromScope(scope *Scope) (T, bool) {
	val, ok := scope.GetTag(t)
	if !ok {
		var zero T
		return zero, false
	}
	return val.(T), true
}

// SetOnScope stores the tag value on a scope
func (t Tag[T]) SetOnScope(scope *Scope, val T) {
	scope.SetTag(t, val)
}

// GetFromExecution retrieves the tag value recorded on an execution node
func (t Tag[T]) GetFromExecution(node *ExecutionNode) (T, bool) {
	val, ok := node.GetTag(t)
	if !ok {
		var zero T
		return zero, false
	}
	return val.(T), true
}

var nameTag = NewTag[string]("node.name")

// Name is the tag holding a node's human readable name.
func Name() Tag[string] { return nameTag }

// NameOf returns the node's name, or a pointer based fallback.
func NameOf(node AnyNode) string {
	if name, ok := nameTag.Get(node); ok {
		return name
	}
	return fmt.Sprintf("node_%p", node)
}
