package telemetry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Operation is the handle for one open span. It belongs to a single
// request and must not outlive it.
type Operation struct {
	logger *Logger
	ctx    context.Context
	otel   trace.Span

	mu     sync.Mutex
	span   Span
	closed bool
}

// SetAttribute appends an attribute. Values of unsupported types are kept
// until export, where they are dropped.
func (o *Operation) SetAttribute(key string, value any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.span.Attributes = append(o.span.Attributes, Attribute{Key: key, Value: value})
}

// LogUserError marks the operation as failed by caller input.
func (o *Operation) LogUserError(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.span.Status = StatusUserError
	o.span.Exception = nil
	o.span.Attributes = append(o.span.Attributes, Attribute{Key: "error.message", Value: msg})
}

// HandleException marks the operation as a system error and records a
// summary of err. The error goes no further.
func (o *Operation) HandleException(err error) {
	if err == nil {
		return
	}
	o.recordException(typeName(rootCause(err)), err.Error())
}

// Classify records err as a user error when it is a *UserError and as a
// system error otherwise. A nil err changes nothing.
func (o *Operation) Classify(err error) {
	if err == nil {
		return
	}
	var ue *UserError
	if errors.As(err, &ue) {
		o.LogUserError(ue.Msg)
		return
	}
	o.HandleException(err)
}

// Status returns the current classification.
func (o *Operation) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.span.Status
}

// End closes and exports the span. It must be deferred directly
// (defer op.End()) to catch a panic from the enclosing function; the panic
// is recorded as a system error and not re-raised. Calls after the first
// are no-ops.
func (o *Operation) End() {
	if v := recover(); v != nil {
		o.handlePanic(v)
	}
	o.finish()
}

func (o *Operation) handlePanic(v any) {
	if err, ok := v.(error); ok {
		o.recordException(typeName(err), "panic: "+err.Error())
		return
	}
	o.recordException(typeName(v), fmt.Sprintf("panic: %v", v))
}

func (o *Operation) recordException(typ, msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.span.Status = StatusSystemError
	o.span.Exception = &Exception{Type: typ, Message: msg}
}

func (o *Operation) finish() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.span.End = o.logger.clock.Now()
	span := o.span
	span.Attributes = slices.Clone(o.span.Attributes)
	o.mu.Unlock()

	o.logger.exporter.Export(o.ctx, &span)
	o.logger.metrics.observe(&span)
	o.mirror(&span)
}

// mirror copies the finished span onto its OpenTelemetry counterpart.
// Dropped attributes were already reported by the exporter.
func (o *Operation) mirror(s *Span) {
	attrs := make([]attribute.KeyValue, 0, len(s.Attributes)+1)
	for _, a := range s.Attributes {
		if t, ok := Transform(a.Key, a.Value); ok {
			attrs = append(attrs, attribute.String(t.Key, t.Value))
		}
	}
	attrs = append(attrs, attribute.String("operation.status", s.Status.String()))
	o.otel.SetAttributes(attrs...)

	switch s.Status {
	case StatusSystemError:
		if s.Exception != nil {
			o.otel.AddEvent("exception", trace.WithAttributes(
				attribute.String("exception.type", s.Exception.Type),
				attribute.String("exception.message", s.Exception.Message),
			))
			o.otel.SetStatus(codes.Error, s.Exception.Message)
		}
	case StatusOK:
		o.otel.SetStatus(codes.Ok, "")
	}
	o.otel.End(trace.WithTimestamp(s.End))
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
