package telemetry

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/zoobzio/clockz"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "appointment-manager/internal/telemetry"

// Logger starts operations. It is shared by all requests; the Operations
// it returns are not.
type Logger struct {
	exporter *Exporter
	tracer   trace.Tracer
	metrics  *Metrics
	clock    clockz.Clock
}

type Option func(*Logger)

// WithTracer sets the tracer used for the mirrored OpenTelemetry span.
// The default is the global provider's tracer.
func WithTracer(t trace.Tracer) Option {
	return func(l *Logger) { l.tracer = t }
}

func WithClock(c clockz.Clock) Option {
	return func(l *Logger) { l.clock = c }
}

func WithMetrics(m *Metrics) Option {
	return func(l *Logger) { l.metrics = m }
}

func NewLogger(exporter *Exporter, opts ...Option) *Logger {
	l := &Logger{
		exporter: exporter,
		tracer:   otel.Tracer(instrumentationName),
		clock:    clockz.RealClock,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// StartOperation opens a span named name. When r is not nil the span is
// seeded with the route and method. Every span gets a request.id, taken
// from the X-Request-Id header, then from ctx, then freshly generated.
func (l *Logger) StartOperation(ctx context.Context, name string, r *http.Request) (context.Context, *Operation) {
	start := l.clock.Now()
	ctx, otelSpan := l.tracer.Start(ctx, name,
		trace.WithTimestamp(start),
		trace.WithSpanKind(trace.SpanKindServer),
	)

	op := &Operation{
		logger: l,
		otel:   otelSpan,
		span:   Span{Name: name, Start: start},
	}
	if sc := otelSpan.SpanContext(); sc.IsValid() {
		op.span.TraceID = sc.TraceID().String()
		op.span.SpanID = sc.SpanID().String()
	}

	requestID := RequestID(ctx)
	if r != nil {
		// patterns may carry a method prefix, "GET /listAppointments"
		route := r.Pattern
		if _, path, ok := strings.Cut(route, " "); ok {
			route = path
		}
		if route == "" {
			route = r.URL.Path
		}
		op.span.Attributes = append(op.span.Attributes,
			Attribute{Key: "http.route", Value: route},
			Attribute{Key: "http.method", Value: r.Method},
		)
		if id := r.Header.Get("X-Request-Id"); id != "" {
			requestID = id
		}
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	op.span.Attributes = append(op.span.Attributes, Attribute{Key: "request.id", Value: requestID})

	ctx = WithRequestID(ctx, requestID)
	op.ctx = ctx
	return ctx, op
}

// Run executes fn inside an operation scope. The returned error is
// classified on the span and handed back so the caller can choose a
// response; a panic in fn comes back as *PanicError.
func (l *Logger) Run(ctx context.Context, name string, r *http.Request, fn func(context.Context, *Operation) error) (err error) {
	ctx, op := l.StartOperation(ctx, name, r)
	defer op.End()
	defer func() {
		if v := recover(); v != nil {
			op.handlePanic(v)
			err = &PanicError{Value: v}
		}
	}()

	err = fn(ctx, op)
	op.Classify(err)
	return err
}

type requestIDKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
