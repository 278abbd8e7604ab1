package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateTimeLayout is the add form's datetime input (MM/dd/yyyy h:mm tt).
const DateTimeLayout = "01/02/2006 3:04 PM"

// Appointment is stored as one document per (userid, aptname), partitioned by userid.
type Appointment struct {
	UserID      string    `json:"userid"`
	UserEmail   string    `json:"useremail"`
	AptName     string    `json:"aptname"`
	Description string    `json:"description"`
	DateTime    time.Time `json:"datetime"`
}

// AppointmentID derives the document id. Ids are lower case so that
// differently cased requests address the same appointment.
func AppointmentID(userID, aptName string) string {
	return strings.ToLower(userID) + "-" + strings.ToLower(aptName)
}

// PartitionKey normalizes a userid the way ids are normalized, so "Alice"
// and "alice" share one partition.
func PartitionKey(userID string) string { return strings.ToLower(userID) }

func (a Appointment) ID() string { return AppointmentID(a.UserID, a.AptName) }

// DocumentID implements store.Document.
func (a Appointment) DocumentID() string { return a.ID() }

// PartitionKey is the normalized userid.
func (a Appointment) PartitionKey() string { return PartitionKey(a.UserID) }

type appointmentDoc Appointment

// MarshalJSON writes the derived id next to the stored fields.
// The id is recomputed on read, never trusted from the document.
func (a Appointment) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID string `json:"id"`
		appointmentDoc
	}{ID: a.ID(), appointmentDoc: appointmentDoc(a)})
}

// Describe returns the human readable detail lines shown by appointmentInfo.
func (a Appointment) Describe() []string {
	return []string{
		"Appointment Name: " + a.AptName,
		"Appointment Description: " + a.Description,
		"Appointment Date/Time (MM/DD/YYYY hh:mm:ms): " + a.DateTime.Format(DateTimeLayout),
	}
}

func (a Appointment) String() string {
	return fmt.Sprintf("id: %s, userid: %s, useremail: %s, aptname: %s, desc: %s, datetime: %s",
		a.ID(), a.UserID, a.UserEmail, a.AptName, a.Description, a.DateTime.Format(time.RFC3339))
}

// ParseDateTime parses DateTimeLayout input as UTC.
func ParseDateTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateTimeLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("datetime %q: expected MM/dd/yyyy h:mm AM|PM", s)
	}
	return t, nil
}
