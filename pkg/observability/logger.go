package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

const (
	attrTraceID = "trace_id"
	attrSpanID  = "span_id"
	attrService = "service"
	attrVersion = "version"
	attrMode    = "mode"
)

type runAttrsKey struct{}

// WithRunAttrs returns a context whose log records carry attrs, in addition
// to any attributes already attached to ctx.
func WithRunAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	prev, _ := ctx.Value(runAttrsKey{}).([]slog.Attr)

	merged := make([]slog.Attr, 0, len(prev)+len(attrs))
	merged = append(merged, prev...)
	merged = append(merged, attrs...)

	return context.WithValue(ctx, runAttrsKey{}, merged)
}

// RunHandler decorates every record with what its context knows about the
// run: the active span's trace_id and span_id, then the attributes added
// with WithRunAttrs. Context attributes land in the innermost open group.
type RunHandler struct {
	slog.Handler
}

// NewRunHandler wraps next and pins service, mode and (when set) version
// at the top level, ahead of any group.
func NewRunHandler(next slog.Handler, service, version string, appMode AppMode) *RunHandler {
	pinned := []slog.Attr{
		slog.String(attrService, service),
		slog.String(attrMode, string(appMode)),
	}

	if version != "" {
		pinned = append(pinned, slog.String(attrVersion, version))
	}

	return &RunHandler{Handler: next.WithAttrs(pinned)}
}

// Handle implements [slog.Handler].
func (h *RunHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String(attrTraceID, sc.TraceID().String()),
			slog.String(attrSpanID, sc.SpanID().String()),
		)
	}

	if attrs, ok := ctx.Value(runAttrsKey{}).([]slog.Attr); ok {
		record.AddAttrs(attrs...)
	}

	return h.Handler.Handle(ctx, record)
}

// WithAttrs implements [slog.Handler].
func (h *RunHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &RunHandler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup implements [slog.Handler].
func (h *RunHandler) WithGroup(name string) slog.Handler {
	return &RunHandler{Handler: h.Handler.WithGroup(name)}
}
