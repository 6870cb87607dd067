package diagnosis

import (
	"context"

	"github.com/google/uuid"

	"github.com/growthwatch/growthwatch/internal/domain/patient"
)

type SymptomCatalog interface {
	GetByCode(ctx context.Context, code string) (*Symptom, error)
	List(ctx context.Context) ([]*Symptom, error)
	Upsert(ctx context.Context, s *Symptom) error
}

type ConditionCatalog interface {
	GetByCode(ctx context.Context, code string) (*Condition, error)
	List(ctx context.Context) ([]*Condition, error)
	Upsert(ctx context.Context, c *Condition) error
}

// RuleBase yields the full rule set the engine evaluates.
type RuleBase interface {
	All(ctx context.Context) ([]Rule, error)
}

type RuleRepository interface {
	RuleBase
	Create(ctx context.Context, r *Rule) error
}

type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	// SetConclusion persists the terminal state of s. It fails with
	// apperr.ErrConflict if the stored session is no longer created.
	SetConclusion(ctx context.Context, s *Session) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Session, int, error)
}

type RecordedSymptomRepository interface {
	Add(ctx context.Context, rs *RecordedSymptom) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*RecordedSymptom, error)
}

// PatientLookup is the part of the patient directory the engine depends on.
type PatientLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}
