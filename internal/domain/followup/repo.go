package followup

import (
	"context"

	"github.com/google/uuid"

	"github.com/growthwatch/growthwatch/internal/domain/patient"
)

type NoticeRepository interface {
	// Create stores n. When n names a measurement that already has a
	// notice, nothing is written and n is filled with the stored notice;
	// created reports which happened.
	Create(ctx context.Context, n *Notice) (created bool, err error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Notice, int, error)
}

type PatientLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}
