package diagnosis

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/growthwatch/growthwatch/internal/platform/apperr"
)

// Symptom maps to the symptom table. Catalog data, never mutated by inference.
type Symptom struct {
	Code  string `db:"code" json:"code" yaml:"code"`
	Label string `db:"label" json:"label" yaml:"label"`
}

// Condition maps to the condition table.
type Condition struct {
	Code           string `db:"code" json:"code" yaml:"code"`
	Label          string `db:"label" json:"label" yaml:"label"`
	Description    string `db:"description" json:"description" yaml:"description"`
	Recommendation string `db:"recommendation" json:"recommendation" yaml:"recommendation"`
}

// Rule maps to the rule table. Every rule names one symptom required by one
// rule group of one condition.
type Rule struct {
	ID            uuid.UUID `db:"id" json:"id"`
	ConditionCode string    `db:"condition_code" json:"condition_code"`
	SymptomCode   string    `db:"symptom_code" json:"symptom_code"`
	GroupCode     string    `db:"group_code" json:"group_code"`
	Note          *string   `db:"note" json:"note,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

type SessionStatus string

const (
	StatusCreated      SessionStatus = "created"
	StatusConcluded    SessionStatus = "concluded"
	StatusInconclusive SessionStatus = "inconclusive"
)

// Session maps to the diagnostic_session table. A session leaves the created
// state exactly once.
type Session struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	PatientID     uuid.UUID     `db:"patient_id" json:"patient_id"`
	Status        SessionStatus `db:"status" json:"status"`
	ConditionCode *string       `db:"condition_code" json:"condition_code,omitempty"`
	GroupCode     *string       `db:"group_code" json:"group_code,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	ConcludedAt   *time.Time    `db:"concluded_at" json:"concluded_at,omitempty"`
}

// Conclude records the condition reached through the given rule group.
func (s *Session) Conclude(conditionCode, groupCode string, at time.Time) error {
	if s.Status != StatusCreated {
		return fmt.Errorf("session %s already %s: %w", s.ID, s.Status, apperr.ErrConflict)
	}
	s.Status = StatusConcluded
	s.ConditionCode = &conditionCode
	s.GroupCode = &groupCode
	s.ConcludedAt = &at
	return nil
}

// MarkInconclusive closes a session for which no rule group fired.
func (s *Session) MarkInconclusive(at time.Time) error {
	if s.Status != StatusCreated {
		return fmt.Errorf("session %s already %s: %w", s.ID, s.Status, apperr.ErrConflict)
	}
	s.Status = StatusInconclusive
	s.ConcludedAt = &at
	return nil
}

// RecordedSymptom maps to the recorded_symptom table. Append-only.
type RecordedSymptom struct {
	ID          uuid.UUID `db:"id" json:"id"`
	SessionID   uuid.UUID `db:"session_id" json:"session_id"`
	SymptomCode string    `db:"symptom_code" json:"symptom_code"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// InferenceResult is what Infer hands back to the caller.
type InferenceResult struct {
	SessionID        uuid.UUID     `json:"session_id"`
	PatientID        uuid.UUID     `json:"patient_id"`
	Status           SessionStatus `json:"status"`
	Condition        *Condition    `json:"condition,omitempty"`
	FiredGroup       *RuleGroup    `json:"fired_group,omitempty"`
	RecordedSymptoms []string      `json:"recorded_symptoms"`
}

// SessionDetail is a session joined with its condition and recorded symptoms.
type SessionDetail struct {
	Session   *Session   `json:"session"`
	Condition *Condition `json:"condition,omitempty"`
	Symptoms  []Symptom  `json:"symptoms"`
}

// RuleGroupInput is the payload for authoring a new rule group.
type RuleGroupInput struct {
	ConditionCode string   `json:"condition_code"`
	GroupCode     string   `json:"group_code"`
	SymptomCodes  []string `json:"symptoms"`
	Note          *string  `json:"note,omitempty"`
}
