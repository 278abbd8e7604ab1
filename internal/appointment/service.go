// Package appointment implements the appointment operations shared by the
// HTTP and gRPC front ends. Every method runs inside an operation opened by
// the caller and reports what it did as span attributes.
package appointment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"appointment-manager/internal/auth"
	"appointment-manager/internal/model"
	"appointment-manager/internal/store"
	"appointment-manager/internal/telemetry"
)

const notFoundMsg = "No appointment found with that name."

type Service struct {
	items *store.Items[model.Appointment]
}

func NewService(b store.Backend) *Service {
	return &Service{items: store.NewItems[model.Appointment](b)}
}

// Add stores a, replacing an existing appointment with the same id. The
// userid is stored normalized so listing finds every appointment of the
// partition whatever case it was added with.
//
// The existence check and the write are two store calls. Two concurrent
// adds for the same id can both see "absent"; the loser's insert then
// fails with a conflict, which is reported to its caller as 409.
func (s *Service) Add(ctx context.Context, op *telemetry.Operation, a model.Appointment) error {
	if err := authorize(ctx, a.UserID); err != nil {
		return err
	}
	a.UserID = model.PartitionKey(a.UserID)
	id, pk := a.ID(), a.PartitionKey()
	op.SetAttribute("appointment.id", id)

	_, found, err := s.items.Get(ctx, id, pk)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", id, err)
	}

	if found {
		op.SetAttribute("store.write", "update")
		err = s.items.Update(ctx, id, pk, a)
	} else {
		op.SetAttribute("store.write", "add")
		err = s.items.Add(ctx, a, pk)
	}
	switch {
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrNotFound):
		return telemetry.Userf(http.StatusConflict, "Appointment %s was changed by another request, retry.", a.AptName)
	case err != nil:
		return fmt.Errorf("write %s: %w", id, err)
	}
	return nil
}

// Names lists the names of userid's appointments.
func (s *Service) Names(ctx context.Context, op *telemetry.Operation, userid string) ([]string, error) {
	apts, err := s.All(ctx, op, userid)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(apts))
	for i, a := range apts {
		names[i] = a.AptName
	}
	op.SetAttribute("response.names", names)
	return names, nil
}

// All returns userid's appointments in store order.
func (s *Service) All(ctx context.Context, op *telemetry.Operation, userid string) ([]model.Appointment, error) {
	if err := authorize(ctx, userid); err != nil {
		return nil, err
	}
	apts, err := s.items.Query(ctx, "SELECT * FROM c WHERE c.userid = "+store.Quote(model.PartitionKey(userid)))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", userid, err)
	}
	op.SetAttribute("response.count", len(apts))
	return apts, nil
}

// Find returns the appointment named aptname, matched case-insensitively
// through its id. A missing one is a 404 user error.
func (s *Service) Find(ctx context.Context, op *telemetry.Operation, userid, aptname string) (model.Appointment, error) {
	if err := authorize(ctx, userid); err != nil {
		return model.Appointment{}, err
	}
	id := model.AppointmentID(userid, aptname)
	op.SetAttribute("appointment.id", id)
	a, ok, err := s.items.Get(ctx, id, model.PartitionKey(userid))
	if err != nil {
		return model.Appointment{}, fmt.Errorf("lookup %s: %w", id, err)
	}
	if !ok {
		return model.Appointment{}, telemetry.Userf(http.StatusNotFound, notFoundMsg)
	}
	return a, nil
}

// Cancel deletes the appointment named aptname. Cancelling something that
// does not exist, or that disappears before the delete lands, succeeds.
func (s *Service) Cancel(ctx context.Context, op *telemetry.Operation, userid, aptname string) error {
	if err := authorize(ctx, userid); err != nil {
		return err
	}
	id, pk := model.AppointmentID(userid, aptname), model.PartitionKey(userid)
	op.SetAttribute("appointment.id", id)
	_, ok, err := s.items.Get(ctx, id, pk)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", id, err)
	}
	if !ok {
		op.SetAttribute("cancel.result", "not-found")
		return nil
	}

	err = s.items.Delete(ctx, id, pk)
	switch {
	case errors.Is(err, store.ErrNotFound):
		op.SetAttribute("cancel.result", "already-deleted")
		return nil
	case err != nil:
		return fmt.Errorf("delete %s: %w", id, err)
	}
	op.SetAttribute("cancel.result", "deleted")
	return nil
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.items.Ping(ctx)
}

// authorize rejects requests whose token belongs to someone other than
// userid. Without authentication every request is allowed.
func authorize(ctx context.Context, userid string) error {
	c, ok := auth.FromContext(ctx)
	if !ok || c.Owns(userid) {
		return nil
	}
	return telemetry.Userf(http.StatusForbidden, "Not allowed to access appointments of %s.", userid)
}
