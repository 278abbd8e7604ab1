package handler

import (
	"net/http"

	"appointment-manager/internal/model"
	"appointment-manager/internal/telemetry"
)

func (h *Handler) addAppointment(w http.ResponseWriter, r *http.Request, op *telemetry.Operation) error {
	var a model.Appointment
	var err error
	if a.UserID, err = param(r, op, "userid"); err != nil {
		return err
	}
	if a.AptName, err = param(r, op, "aptname"); err != nil {
		return err
	}
	if a.Description, err = param(r, op, "desc"); err != nil {
		return err
	}
	if a.UserEmail, err = optionalParam(r, op, "useremail"); err != nil {
		return err
	}
	raw, err := param(r, op, "datetime")
	if err != nil {
		return err
	}
	if a.DateTime, err = model.ParseDateTime(raw); err != nil {
		return telemetry.Userf(http.StatusBadRequest, "Invalid datetime format: %s", raw)
	}

	if err := h.svc.Add(r.Context(), op, a); err != nil {
		return err
	}
	// no body, 200
	w.WriteHeader(http.StatusOK)
	return nil
}

func (h *Handler) listAppointments(w http.ResponseWriter, r *http.Request, op *telemetry.Operation) error {
	userid, err := param(r, op, "userid")
	if err != nil {
		return err
	}
	names, err := h.svc.Names(r.Context(), op, userid)
	if err != nil {
		return err
	}
	return writeJSON(w, names)
}

func (h *Handler) appointmentInfo(w http.ResponseWriter, r *http.Request, op *telemetry.Operation) error {
	userid, err := param(r, op, "userid")
	if err != nil {
		return err
	}
	aptname, err := param(r, op, "aptname")
	if err != nil {
		return err
	}
	a, err := h.svc.Find(r.Context(), op, userid, aptname)
	if err != nil {
		return err
	}
	return writeJSON(w, a.Describe())
}

func (h *Handler) cancelAppointment(w http.ResponseWriter, r *http.Request, op *telemetry.Operation) error {
	userid, err := param(r, op, "userid")
	if err != nil {
		return err
	}
	aptname, err := param(r, op, "aptname")
	if err != nil {
		return err
	}
	if err := h.svc.Cancel(r.Context(), op, userid, aptname); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (h *Handler) getAllAppointments(w http.ResponseWriter, r *http.Request, op *telemetry.Operation) error {
	userid, err := param(r, op, "userid")
	if err != nil {
		return err
	}
	apts, err := h.svc.All(r.Context(), op, userid)
	if err != nil {
		return err
	}
	return writeJSON(w, apts)
}

// healthcheck answers 503 when the store is unreachable. The failure is
// recorded on the span but is not a handler error.
func (h *Handler) healthcheck(w http.ResponseWriter, r *http.Request, op *telemetry.Operation) error {
	if err := h.svc.Ping(r.Context()); err != nil {
		op.HandleException(err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return nil
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
	return nil
}
