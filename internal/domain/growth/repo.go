package growth

import (
	"context"

	"github.com/google/uuid"

	"github.com/growthwatch/growthwatch/internal/domain/patient"
)

type MeasurementRepository interface {
	Create(ctx context.Context, m *Measurement) error
	GetByID(ctx context.Context, id uuid.UUID) (*Measurement, error)
	// SetScores stores both scores of an unscored measurement. It fails
	// with apperr.ErrConflict if the measurement already has scores.
	SetScores(ctx context.Context, id uuid.UUID, z ZScores) error
	// ListByPatient returns measurements newest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Measurement, int, error)
	// Series returns every measurement of the patient oldest first.
	Series(ctx context.Context, patientID uuid.UUID) ([]*Measurement, error)
}

// PatientLookup is the part of the patient directory growth assessment needs.
type PatientLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}
