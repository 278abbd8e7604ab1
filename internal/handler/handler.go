package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"appointment-manager/internal/appointment"
	"appointment-manager/internal/middleware"
	"appointment-manager/internal/telemetry"
)

// Handler serves the appointment HTTP API. Each request runs as one
// telemetry operation named after the route.
type Handler struct {
	svc    *appointment.Service
	logger *telemetry.Logger
	rl     *middleware.RateLimiter
}

// New builds a Handler. rl may be nil to disable rate limiting of adds.
func New(svc *appointment.Service, logger *telemetry.Logger, rl *middleware.RateLimiter) *Handler {
	return &Handler{svc: svc, logger: logger, rl: rl}
}

func (h *Handler) Routes(mux *http.ServeMux) {
	var add http.Handler = h.serve("AddAppointment", h.addAppointment)
	if h.rl != nil {
		add = middleware.Limit(h.rl, add)
	}
	mux.Handle("POST /addAppointment", add)
	mux.Handle("GET /listAppointments", h.serve("ListAppointments", h.listAppointments))
	mux.Handle("GET /appointmentInfo", h.serve("AppointmentInfo", h.appointmentInfo))
	mux.Handle("GET /cancelAppointment", h.serve("CancelAppointment", h.cancelAppointment))
	mux.Handle("GET /api/getAllAppointments", h.serve("GetAllAppointments", h.getAllAppointments))
	mux.Handle("GET /healthcheck", h.serve("HealthCheck", h.healthcheck))
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, op *telemetry.Operation) error

// serve runs fn inside an operation. fn writes the success response
// itself; a returned error is answered here.
func (h *Handler) serve(name string, fn handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := h.logger.Run(r.Context(), name, r, func(ctx context.Context, op *telemetry.Operation) error {
			return fn(w, r.WithContext(ctx), op)
		})
		if err != nil {
			writeError(w, err)
		}
	})
}

// user errors carry their own message and status, everything else is
// answered without detail
func writeError(w http.ResponseWriter, err error) {
	var ue *telemetry.UserError
	if errors.As(err, &ue) {
		http.Error(w, ue.Msg, ue.StatusCode())
		return
	}
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
	return nil
}

// param reads a single form or query value. Missing, empty and repeated
// values are user errors.
func param(r *http.Request, op *telemetry.Operation, name string) (string, error) {
	if err := parseForm(r); err != nil {
		return "", err
	}
	vals := r.Form[name]
	switch {
	case len(vals) == 0 || vals[0] == "":
		return "", telemetry.Userf(http.StatusBadRequest, "No %s found", name)
	case len(vals) > 1:
		return "", telemetry.Userf(http.StatusBadRequest, "Multiple %s found", name)
	}
	op.SetAttribute("request."+name, vals[0])
	return vals[0], nil
}

const maxFormMemory = 1 << 20

// parseForm fills r.Form from the query string and from urlencoded or
// multipart bodies.
func parseForm(r *http.Request) error {
	err := r.ParseMultipartForm(maxFormMemory)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return telemetry.Userf(http.StatusBadRequest, "Malformed request: %v", err)
	}
	return nil
}

// optionalParam is param for values that may be absent or empty.
func optionalParam(r *http.Request, op *telemetry.Operation, name string) (string, error) {
	if err := parseForm(r); err != nil {
		return "", err
	}
	if vals := r.Form[name]; len(vals) == 0 || (len(vals) == 1 && vals[0] == "") {
		return "", nil
	}
	return param(r, op, name)
}
