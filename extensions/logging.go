package extensions

import (
	"context"
	"log/slog"
	"time"

	pumped "github.com/pumped-fn/pumped-spatial"
)

// LoggingExtension logs every operation at debug level and every failure at
// error level
type LoggingExtension struct {
	pumped.BaseExtension
	logger *slog.Logger
}

// NewLoggingExtension creates a new logging extension
func NewLoggingExtension(logger *slog.Logger) *LoggingExtension {
	return &LoggingExtension{
		BaseExtension: pumped.NewBaseExtension("logging"),
		logger:        logger,
	}
}

func (e *LoggingExtension) Wrap(ctx context.Context, next func() (any, error), op *pumped.Operation) (any, error) {
	start := time.Now()
	result, err := next()
	duration := time.Since(start)

	attrs := []any{
		"node", pumped.NameOf(op.Node),
		"version", op.Version,
		"duration", duration,
	}
	switch {
	case err != nil:
		e.logger.Warn(string(op.Kind)+" failed", append(attrs, "error", err)...)
	case op.Kind == pumped.OpDiscard:
		e.logger.Debug("stale result discarded", attrs...)
	default:
		e.logger.Debug(string(op.Kind)+" completed", attrs...)
	}

	return result, err
}

func (e *LoggingExtension) OnError(err error, op *pumped.Operation, scope *pumped.Scope) {
	e.logger.Error("operation failed",
		"node", pumped.NameOf(op.Node),
		"operation", string(op.Kind),
		"version", op.Version,
		"error", err,
	)
}

func (e *LoggingExtension) OnFlowStart(execCtx *pumped.ExecutionCtx) error {
	name, _ := execCtx.Get(pumped.FlowName())
	e.logger.Debug("flow started", "flow", name, "id", execCtx.ID())
	return nil
}

func (e *LoggingExtension) OnFlowEnd(execCtx *pumped.ExecutionCtx, result any, err error) error {
	name, _ := execCtx.Get(pumped.FlowName())
	attrs := []any{"flow", name, "id", execCtx.ID()}
	if start, ok := execCtx.Get(pumped.StartTime()); ok {
		attrs = append(attrs, "duration", time.Since(start.(time.Time)))
	}
	if err != nil {
		e.logger.Warn("flow failed", append(attrs, "error", err)...)
		return nil
	}
	e.logger.Debug("flow completed", attrs...)
	return nil
}
