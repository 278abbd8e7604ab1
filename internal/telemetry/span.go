// Package telemetry records one span per operation and exports it as a
// single structured log line when the operation ends.
//
// Usage:
//
//	ctx, op := logger.StartOperation(ctx, "AddAppointment", r)
//	defer op.End()
//	op.SetAttribute("request.userid", userID)
//	if bad {
//		op.LogUserError("No userid found")
//		return
//	}
//
// End is safe to call more than once and recovers a panic raised inside the
// scope, so the span is exported exactly once on every exit path.
package telemetry

import "time"

// Status classifies how an operation finished.
type Status int

const (
	StatusOK Status = iota
	StatusUserError
	StatusSystemError
)

func (s Status) String() string {
	switch s {
	case StatusUserError:
		return "user-error"
	case StatusSystemError:
		return "system-error"
	default:
		return "ok"
	}
}

// Attribute is a span attribute before tag conversion. Value may hold any
// type; unsupported ones are dropped at export.
type Attribute struct {
	Key   string
	Value any
}

// Exception summarizes a system error.
type Exception struct {
	Type    string
	Message string
}

// Span is the record of one operation.
type Span struct {
	Name       string
	Status     Status
	Attributes []Attribute
	Start      time.Time
	End        time.Time
	Exception  *Exception
	TraceID    string
	SpanID     string
}

func (s *Span) Duration() time.Duration {
	if s.End.IsZero() {
		return 0
	}
	return s.End.Sub(s.Start)
}
