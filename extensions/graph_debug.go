package extensions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/m1gwings/treedrawer/tree"
	pumped "github.com/pumped-fn/pumped-spatial"
)

// GraphDebugExtension logs the reactive dependency tree when a computation fails.
//
// Usage:
//
//	// Human-readable formatted output (with line breaks)
//	handler := extensions.NewHumanHandler(os.Stdout, slog.LevelError)
//	ext := extensions.NewGraphDebugExtension(handler)
//
//	// Structured JSON logging (compact, machine-readable)
//	handler := slog.NewJSONHandler(os.Stdout, nil)
//	ext := extensions.NewGraphDebugExtension(handler)
//
//	// Silent (for testing)
//	ext := extensions.NewGraphDebugExtension(extensions.NewSilentHandler())
//
// The extension logs at ERROR level for both computation errors and flow panics.
type GraphDebugExtension struct {
	pumped.BaseExtension

	mu       sync.Mutex
	applied  map[pumped.AnyNode]bool
	failed   map[pumped.AnyNode]error
	discards map[pumped.AnyNode]int
	logger   *slog.Logger
}

// NewGraphDebugExtension creates a new graph debug extension.
// logHandler: slog.Handler for logging (use HumanHandler for formatted output, or any other slog.Handler)
func NewGraphDebugExtension(logHandler slog.Handler) *GraphDebugExtension {
	return &GraphDebugExtension{
		BaseExtension: pumped.NewBaseExtension("graph-debug"),
		applied:       make(map[pumped.AnyNode]bool),
		failed:        make(map[pumped.AnyNode]error),
		discards:      make(map[pumped.AnyNode]int),
		logger:        slog.New(logHandler),
	}
}

// Wrap tracks which views have applied a value and how many results were discarded
func (e *GraphDebugExtension) Wrap(ctx context.Context, next func() (any, error), op *pumped.Operation) (any, error) {
	result, err := next()

	e.mu.Lock()
	switch op.Kind {
	case pumped.OpSet:
		e.applied[op.Node] = true
		delete(e.failed, op.Node)
	case pumped.OpDiscard:
		e.discards[op.Node]++
	}
	e.mu.Unlock()

	return result, err
}

// OnError logs the dependency tree when a computation fails
func (e *GraphDebugExtension) OnError(err error, op *pumped.Operation, scope *pumped.Scope) {
	e.mu.Lock()
	e.failed[op.Node] = err
	e.mu.Unlock()

	// node and version are logged on their own
	cause := err
	var ce *pumped.ComputeError
	if errors.As(err, &ce) && ce.Cause != nil {
		cause = ce.Cause
	}

	e.logger.Error("Computation Error",
		"node", pumped.NameOf(op.Node),
		"error", cause.Error(),
		"operation", string(op.Kind),
		"version", op.Version,
		"dependency_graph", e.render(scope, op.Node),
	)
}

// OnFlowPanic logs context when a flow panics
func (e *GraphDebugExtension) OnFlowPanic(execCtx *pumped.ExecutionCtx, recovered any, stack []byte) error {
	attrs := []any{
		"panic", fmt.Sprintf("%v", recovered),
		"stack_trace", string(stack),
	}

	if flowName, ok := execCtx.Get(pumped.FlowName()); ok {
		attrs = append(attrs, "flow", flowName)
	}

	e.logger.Error("Flow Panic", attrs...)

	return nil // Don't suppress the error
}

// Discards returns how many stale results of node were dropped
func (e *GraphDebugExtension) Discards(node pumped.AnyNode) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.discards[node]
}

func (e *GraphDebugExtension) render(scope *pumped.Scope, failedNode pumped.AnyNode) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return renderGraph(scope, func(n pumped.AnyNode) string {
		name := pumped.NameOf(n)
		switch {
		case n == failedNode:
			return name + " FAILED"
		case e.failed[n] != nil:
			return name + " (error)"
		case e.applied[n]:
			return name + " ok"
		case len(n.Dependencies()) > 0:
			return name + " (pending)"
		}
		return name
	})
}

// RenderGraph draws the scope's dependency tree: sources at the top, the
// views computed from them below.
func RenderGraph(scope *pumped.Scope) string {
	return renderGraph(scope, pumped.NameOf)
}

func renderGraph(scope *pumped.Scope, label func(pumped.AnyNode) string) string {
	graph := scope.Graph()
	roots := graph.Roots()
	if len(roots) == 0 {
		return "(empty - no nodes registered)"
	}

	edges := graph.Export()
	t := tree.NewTree(tree.NodeString("scope"))
	for _, root := range roots {
		addSubtree(t.AddChild(tree.NodeString(label(root))), root, edges, label)
	}
	return t.String()
}

func addSubtree(t *tree.Tree, node pumped.AnyNode, edges map[pumped.AnyNode][]pumped.AnyNode, label func(pumped.AnyNode) string) {
	for _, child := range edges[node] {
		addSubtree(t.AddChild(tree.NodeString(label(child))), child, edges, label)
	}
}

// SilentHandler is a slog.Handler that discards all log output
// Useful for testing when you don't want log output
type SilentHandler struct{}

// NewSilentHandler creates a new silent log handler
func NewSilentHandler() *SilentHandler {
	return &SilentHandler{}
}

func (h *SilentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return false
}

func (h *SilentHandler) Handle(ctx context.Context, record slog.Record) error {
	return nil
}

func (h *SilentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *SilentHandler) WithGroup(name string) slog.Handler {
	return h
}

// HumanHandler is a slog.Handler that formats logs for human readability
// with proper line breaks and visual formatting (especially for dependency trees).
// Groups are flattened into dotted keys.
type HumanHandler struct {
	mu     *sync.Mutex
	writer io.Writer
	level  slog.Leveler
	attrs  []slog.Attr
	group  string
}

// NewHumanHandler creates a new human-readable log handler
func NewHumanHandler(writer io.Writer, level slog.Leveler) *HumanHandler {
	return &HumanHandler{
		mu:     &sync.Mutex{},
		writer: writer,
		level:  level,
	}
}

func (h *HumanHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *HumanHandler) Handle(ctx context.Context, record slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch record.Message {
	case "Computation Error":
		return h.handleComputationError(record)
	case "Flow Panic":
		return h.handleFlowPanic(record)
	}

	if _, err := fmt.Fprintf(h.writer, "[%s] %s\n", record.Level, record.Message); err != nil {
		return err
	}
	if err := h.writeAttrs(h.attrs); err != nil {
		return err
	}
	var writeErr error
	record.Attrs(func(a slog.Attr) bool {
		if _, err := fmt.Fprintf(h.writer, "  %s: %v\n", h.qualify(a.Key), a.Value); err != nil {
			writeErr = err
			return false
		}
		return true
	})
	return writeErr
}

func (h *HumanHandler) qualify(key string) string {
	if h.group == "" {
		return key
	}
	return h.group + "." + key
}

func (h *HumanHandler) writeAttrs(attrs []slog.Attr) error {
	for _, a := range attrs {
		if _, err := fmt.Fprintf(h.writer, "  %s: %v\n", a.Key, a.Value); err != nil {
			return err
		}
	}
	return nil
}

// writeContext prints attrs attached with WithAttrs under the formatted blocks
func (h *HumanHandler) writeContext() error {
	if len(h.attrs) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(h.writer, "Context:"); err != nil {
		return err
	}
	return h.writeAttrs(h.attrs)
}

func (h *HumanHandler) handleComputationError(record slog.Record) error {
	var node, errorMsg, operation, version, dependencyGraph string

	record.Attrs(func(a slog.Attr) bool {
		switch a.Key {
		case "node":
			node = a.Value.String()
		case "error":
			errorMsg = a.Value.String()
		case "operation":
			operation = a.Value.String()
		case "version":
			version = a.Value.String()
		case "dependency_graph":
			dependencyGraph = a.Value.String()
		}
		return true
	})

	writes := []func() error{
		func() error { _, err := fmt.Fprintln(h.writer); return err },
		func() error { _, err := fmt.Fprintln(h.writer, strings.Repeat("=", 70)); return err },
		func() error { _, err := fmt.Fprintln(h.writer, "[GraphDebug] Computation Error"); return err },
		func() error { _, err := fmt.Fprintln(h.writer, strings.Repeat("=", 70)); return err },
		func() error { _, err := fmt.Fprintf(h.writer, "\nFailed Node: %s\n", node); return err },
		func() error { _, err := fmt.Fprintf(h.writer, "Error: %s\n", errorMsg); return err },
		func() error { _, err := fmt.Fprintf(h.writer, "Operation: %s (version %s)\n", operation, version); return err },
		func() error { _, err := fmt.Fprintf(h.writer, "\nDependency Graph:\n%s\n", dependencyGraph); return err },
		h.writeContext,
		func() error { _, err := fmt.Fprintln(h.writer, strings.Repeat("=", 70)); return err },
		func() error { _, err := fmt.Fprintln(h.writer); return err },
	}

	for _, write := range writes {
		if err := write(); err != nil {
			return err
		}
	}

	return nil
}

func (h *HumanHandler) handleFlowPanic(record slog.Record) error {
	var panicMsg, stackTrace, flow string
	var hasFlow bool

	record.Attrs(func(a slog.Attr) bool {
		switch a.Key {
		case "panic":
			panicMsg = a.Value.String()
		case "stack_trace":
			stackTrace = a.Value.String()
		case "flow":
			flow = a.Value.String()
			hasFlow = true
		}
		return true
	})

	writes := []func() error{
		func() error { _, err := fmt.Fprintln(h.writer); return err },
		func() error { _, err := fmt.Fprintln(h.writer, strings.Repeat("=", 70)); return err },
		func() error { _, err := fmt.Fprintln(h.writer, "[GraphDebug] Flow Panic"); return err },
		func() error { _, err := fmt.Fprintln(h.writer, strings.Repeat("=", 70)); return err },
		func() error { _, err := fmt.Fprintf(h.writer, "\nPanic: %s\n", panicMsg); return err },
	}

	for _, write := range writes {
		if err := write(); err != nil {
			return err
		}
	}

	if hasFlow {
		if _, err := fmt.Fprintf(h.writer, "Flow: %s\n", flow); err != nil {
			return err
		}
	}

	finalWrites := []func() error{
		func() error { _, err := fmt.Fprintf(h.writer, "\nStack Trace:\n%s\n", stackTrace); return err },
		h.writeContext,
		func() error { _, err := fmt.Fprintln(h.writer, strings.Repeat("=", 70)); return err },
		func() error { _, err := fmt.Fprintln(h.writer); return err },
	}

	for _, write := range finalWrites {
		if err := write(); err != nil {
			return err
		}
	}

	return nil
}

// WithAttrs keeps attrs and prints them with every record
func (h *HumanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		next.attrs = append(next.attrs, slog.Attr{Key: h.qualify(a.Key), Value: a.Value})
	}
	return &next
}

func (h *HumanHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.group = h.qualify(name)
	return &next
}
