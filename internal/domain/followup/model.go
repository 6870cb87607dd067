package followup

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeRemeasurement = "remeasurement"

	remeasurementTitle   = "Growth re-measurement"
	remeasurementMessage = "It is time to measure your child's weight and height again."
)

// Notice maps to the follow_up_notice table. Notices are never mutated.
type Notice struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	MeasurementID *uuid.UUID `db:"measurement_id" json:"measurement_id,omitempty"`
	Title         string     `db:"title" json:"title"`
	Message       string     `db:"message" json:"message"`
	DueDate       time.Time  `db:"due_date" json:"due_date"`
	Type          string     `db:"type" json:"type"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

func newRemeasurementNotice(patientID uuid.UUID, measurementID *uuid.UUID, lastMeasuredOn time.Time) *Notice {
	return &Notice{
		PatientID:     patientID,
		MeasurementID: measurementID,
		Title:         remeasurementTitle,
		Message:       remeasurementMessage,
		DueDate:       NextDueDate(lastMeasuredOn),
		Type:          TypeRemeasurement,
	}
}

// ScheduleRequest is the payload for scheduling a follow-up by hand.
type ScheduleRequest struct {
	PatientID      uuid.UUID `json:"patient_id"`
	LastMeasuredOn string    `json:"last_measured_on"`
}
