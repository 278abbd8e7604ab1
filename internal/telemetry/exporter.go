package telemetry

import (
	"context"
	"io"
	"log/slog"
)

// Exporter writes finished spans as one JSON object per line.
type Exporter struct {
	handler   slog.Handler
	tags      *TagWriter
	metrics   *Metrics
	onDropped func(key, typeName string)
}

type ExporterOption func(*Exporter)

// WithDropHandler replaces the default unsupported-tag callback, which
// counts the drop and logs a warning through slog.Default.
func WithDropHandler(fn func(key, typeName string)) ExporterOption {
	return func(e *Exporter) { e.onDropped = fn }
}

func WithExportMetrics(m *Metrics) ExporterOption {
	return func(e *Exporter) { e.metrics = m }
}

func NewExporter(w io.Writer, opts ...ExporterOption) *Exporter {
	e := &Exporter{handler: slog.NewJSONHandler(w, nil)}
	for _, opt := range opts {
		opt(e)
	}
	if e.onDropped == nil {
		e.onDropped = e.defaultDropped
	}
	e.tags = NewTagWriter(e.onDropped)
	return e
}

func (e *Exporter) defaultDropped(key, typeName string) {
	e.metrics.tagDropped(typeName)
	slog.Default().Warn("unsupported span attribute dropped", "key", key, "type", typeName)
}

// Export writes span. Sink errors are counted and otherwise ignored; a
// failed export never fails the operation.
func (e *Exporter) Export(ctx context.Context, span *Span) {
	r := slog.NewRecord(span.End, level(span.Status), "span", 0)
	r.AddAttrs(
		slog.String("name", span.Name),
		slog.String("status", span.Status.String()),
	)
	if span.TraceID != "" {
		r.AddAttrs(slog.String("trace_id", span.TraceID), slog.String("span_id", span.SpanID))
	}
	r.AddAttrs(
		slog.Time("start", span.Start),
		slog.Time("end", span.End),
		slog.Float64("duration_ms", float64(span.Duration().Microseconds())/1000),
	)

	tags := e.tags.Tags(span.Attributes)
	group := make([]any, len(tags))
	for i, t := range tags {
		group[i] = slog.String(t.Key, t.Value)
	}
	r.AddAttrs(slog.Group("attributes", group...))

	if span.Status == StatusSystemError && span.Exception != nil {
		r.AddAttrs(slog.Group("exception",
			slog.String("type", span.Exception.Type),
			slog.String("message", span.Exception.Message),
		))
	}

	if err := e.handler.Handle(ctx, r); err != nil {
		e.metrics.exportFailed()
	}
}

func level(s Status) slog.Level {
	switch s {
	case StatusUserError:
		return slog.LevelWarn
	case StatusSystemError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
