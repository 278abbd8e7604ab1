package telemetry

import (
	"fmt"
	"net/http"
)

// UserError is a failure caused by caller input. Code is the HTTP status
// the boundary should answer with; zero means 400.
type UserError struct {
	Msg  string
	Code int
}

func (e *UserError) Error() string { return e.Msg }

// StatusCode returns Code, defaulting to 400.
func (e *UserError) StatusCode() int {
	if e.Code == 0 {
		return http.StatusBadRequest
	}
	return e.Code
}

func Userf(code int, format string, args ...any) *UserError {
	return &UserError{Msg: fmt.Sprintf(format, args...), Code: code}
}

// PanicError carries a value recovered from a panic inside an operation.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }
