// Package summary assembles the expert's view of one patient from the
// diagnosis, growth and follow-up domains.
package summary

import (
	"context"

	"github.com/google/uuid"

	"github.com/growthwatch/growthwatch/internal/domain/diagnosis"
	"github.com/growthwatch/growthwatch/internal/domain/followup"
	"github.com/growthwatch/growthwatch/internal/domain/growth"
	"github.com/growthwatch/growthwatch/internal/domain/patient"
)

// RecentLimit caps each history list in the summary.
const RecentLimit = 10

type PatientLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type MeasurementHistory interface {
	History(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*growth.Measurement, int, error)
}

type SessionHistory interface {
	ListSessionsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*diagnosis.Session, int, error)
}

type NoticeHistory interface {
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*followup.Notice, int, error)
}

type PatientSummary struct {
	Patient           *patient.Patient      `json:"patient"`
	Measurements      []*growth.Measurement `json:"measurements"`
	MeasurementCount  int                   `json:"measurement_count"`
	LatestMeasurement *growth.Measurement   `json:"latest_measurement,omitempty"`
	Sessions          []*diagnosis.Session  `json:"sessions"`
	SessionCount      int                   `json:"session_count"`
	FollowUps         []*followup.Notice    `json:"follow_ups"`
}

type Service struct {
	patients     PatientLookup
	measurements MeasurementHistory
	sessions     SessionHistory
	notices      NoticeHistory
}

func NewService(patients PatientLookup, measurements MeasurementHistory, sessions SessionHistory, notices NoticeHistory) *Service {
	return &Service{patients: patients, measurements: measurements, sessions: sessions, notices: notices}
}

func (s *Service) Summary(ctx context.Context, patientID uuid.UUID) (*PatientSummary, error) {
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	measurements, mCount, err := s.measurements.History(ctx, patientID, RecentLimit, 0)
	if err != nil {
		return nil, err
	}
	sessions, sCount, err := s.sessions.ListSessionsByPatient(ctx, patientID, RecentLimit, 0)
	if err != nil {
		return nil, err
	}
	notices, _, err := s.notices.ListByPatient(ctx, patientID, RecentLimit, 0)
	if err != nil {
		return nil, err
	}

	out := &PatientSummary{
		Patient:          p,
		Measurements:     nonNil(measurements),
		MeasurementCount: mCount,
		Sessions:         nonNil(sessions),
		SessionCount:     sCount,
		FollowUps:        nonNil(notices),
	}
	if len(measurements) > 0 {
		out.LatestMeasurement = measurements[0]
	}
	return out, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
