package rpc

import (
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Field numbers follow proto/appointment/v1/appointment.proto.

type Appointment struct {
	ID          string
	UserID      string
	UserEmail   string
	AptName     string
	Description string
	DateTime    *timestamppb.Timestamp
}

func (m *Appointment) marshal(b []byte) []byte {
	b = appendString(b, 1, m.ID)
	b = appendString(b, 2, m.UserID)
	b = appendString(b, 3, m.UserEmail)
	b = appendString(b, 4, m.AptName)
	b = appendString(b, 5, m.Description)
	return appendTimestamp(b, 6, m.DateTime)
}

func (m *Appointment) field(num protowire.Number, typ protowire.Type, b []byte) int {
	switch num {
	case 1:
		return consumeString(typ, b, &m.ID)
	case 2:
		return consumeString(typ, b, &m.UserID)
	case 3:
		return consumeString(typ, b, &m.UserEmail)
	case 4:
		return consumeString(typ, b, &m.AptName)
	case 5:
		return consumeString(typ, b, &m.Description)
	case 6:
		return consumeTimestamp(typ, b, &m.DateTime)
	}
	return 0
}

type AddAppointmentRequest struct {
	UserID      string
	AptName     string
	Description string
	DateTime    *timestamppb.Timestamp
	UserEmail   string
}

func (m *AddAppointmentRequest) marshal(b []byte) []byte {
	b = appendString(b, 1, m.UserID)
	b = appendString(b, 2, m.AptName)
	b = appendString(b, 3, m.Description)
	b = appendTimestamp(b, 4, m.DateTime)
	return appendString(b, 5, m.UserEmail)
}

func (m *AddAppointmentRequest) field(num protowire.Number, typ protowire.Type, b []byte) int {
	switch num {
	case 1:
		return consumeString(typ, b, &m.UserID)
	case 2:
		return consumeString(typ, b, &m.AptName)
	case 3:
		return consumeString(typ, b, &m.Description)
	case 4:
		return consumeTimestamp(typ, b, &m.DateTime)
	case 5:
		return consumeString(typ, b, &m.UserEmail)
	}
	return 0
}

type AddAppointmentResponse struct {
	ID string
}

func (m *AddAppointmentResponse) marshal(b []byte) []byte { return appendString(b, 1, m.ID) }

func (m *AddAppointmentResponse) field(num protowire.Number, typ protowire.Type, b []byte) int {
	if num == 1 {
		return consumeString(typ, b, &m.ID)
	}
	return 0
}

// UserRequest addresses all appointments of one user. ListAppointments
// and GetAllAppointments take it.
type UserRequest struct {
	UserID string
}

func (m *UserRequest) marshal(b []byte) []byte { return appendString(b, 1, m.UserID) }

func (m *UserRequest) field(num protowire.Number, typ protowire.Type, b []byte) int {
	if num == 1 {
		return consumeString(typ, b, &m.UserID)
	}
	return 0
}

// AppointmentRequest addresses one appointment by name. AppointmentInfo
// and CancelAppointment take it.
type AppointmentRequest struct {
	UserID  string
	AptName string
}

func (m *AppointmentRequest) marshal(b []byte) []byte {
	b = appendString(b, 1, m.UserID)
	return appendString(b, 2, m.AptName)
}

func (m *AppointmentRequest) field(num protowire.Number, typ protowire.Type, b []byte) int {
	switch num {
	case 1:
		return consumeString(typ, b, &m.UserID)
	case 2:
		return consumeString(typ, b, &m.AptName)
	}
	return 0
}

// Strings carries the name list of ListAppointments and the detail lines
// of AppointmentInfo.
type Strings struct {
	Values []string
}

func (m *Strings) marshal(b []byte) []byte { return appendStrings(b, 1, m.Values) }

func (m *Strings) field(num protowire.Number, typ protowire.Type, b []byte) int {
	if num == 1 {
		return consumeStrings(typ, b, &m.Values)
	}
	return 0
}

type CancelAppointmentResponse struct{}

func (*CancelAppointmentResponse) marshal(b []byte) []byte { return b }

func (*CancelAppointmentResponse) field(protowire.Number, protowire.Type, []byte) int { return 0 }

type Appointments struct {
	Appointments []*Appointment
}

func (m *Appointments) marshal(b []byte) []byte {
	for _, a := range m.Appointments {
		b = appendMessage(b, 1, a)
	}
	return b
}

func (m *Appointments) field(num protowire.Number, typ protowire.Type, b []byte) int {
	if num != 1 {
		return 0
	}
	a := &Appointment{}
	n := consumeMessage(typ, b, a)
	if n > 0 {
		m.Appointments = append(m.Appointments, a)
	}
	return n
}
