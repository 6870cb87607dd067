package growth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/growthwatch/growthwatch/internal/domain/followup"
	"github.com/growthwatch/growthwatch/internal/platform/apperr"
	"github.com/growthwatch/growthwatch/internal/platform/db"
	"github.com/growthwatch/growthwatch/internal/platform/events"
)

// FollowUpScheduler books the next measurement after one is recorded.
// ScheduleAfterMeasurement runs inside the measurement transaction; Announce
// is called once that transaction has committed.
type FollowUpScheduler interface {
	ScheduleAfterMeasurement(ctx context.Context, patientID, measurementID uuid.UUID, measuredOn time.Time) (*followup.Notice, bool, error)
	Announce(ctx context.Context, n *followup.Notice)
}

type Service struct {
	measurements MeasurementRepository
	patients     PatientLookup
	curve        ReferenceCurve
	followUps    FollowUpScheduler
	tx           db.TxRunner
	publisher    events.Publisher
	logger       zerolog.Logger
}

func NewService(measurements MeasurementRepository, patients PatientLookup, curve ReferenceCurve,
	followUps FollowUpScheduler, tx db.TxRunner, logger zerolog.Logger) *Service {
	return &Service{
		measurements: measurements,
		patients:     patients,
		curve:        curve,
		followUps:    followUps,
		tx:           tx,
		publisher:    events.Nop{},
		logger:       logger.With().Str("component", "growth").Logger(),
	}
}

func (s *Service) SetPublisher(p events.Publisher) { s.publisher = p }

// RecordResult is the outcome of the measurement pipeline.
type RecordResult struct {
	Measurement *Measurement     `json:"measurement"`
	FollowUp    *followup.Notice `json:"follow_up"`
}

// RecordMeasurement stores a measurement, scores it and schedules the next
// one. Measurements that cannot be scored are rejected before anything is
// written.
func (s *Service) RecordMeasurement(ctx context.Context, in MeasurementInput) (*RecordResult, error) {
	measuredOn, err := time.Parse(time.DateOnly, in.MeasuredOn)
	if err != nil {
		return nil, fmt.Errorf("measured_on must be YYYY-MM-DD, got %q: %w", in.MeasuredOn, apperr.ErrInvalidMeasurement)
	}
	m, err := NewMeasurement(in.PatientID, measuredOn, in.WeightKg, in.HeightCm)
	if err != nil {
		return nil, err
	}
	p, err := s.patients.GetByID(ctx, m.PatientID)
	if err != nil {
		return nil, err
	}
	z, err := ComputeZScores(s.curve, p.BirthDate, p.Sex, m.MeasuredOn, m.WeightKg, m.HeightCm)
	if err != nil {
		return nil, err
	}

	result := &RecordResult{Measurement: m}
	var scheduled bool
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.measurements.Create(ctx, m); err != nil {
			return fmt.Errorf("create measurement: %w", err)
		}
		if err := m.ApplyScores(z); err != nil {
			return err
		}
		if err := s.measurements.SetScores(ctx, m.ID, z); err != nil {
			return fmt.Errorf("store scores: %w", err)
		}
		if s.followUps != nil {
			n, created, err := s.followUps.ScheduleAfterMeasurement(ctx, m.PatientID, m.ID, m.MeasuredOn)
			if err != nil {
				return fmt.Errorf("schedule follow-up: %w", err)
			}
			result.FollowUp = n
			scheduled = created
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.scored(ctx, m, z)
	if scheduled {
		s.followUps.Announce(ctx, result.FollowUp)
	}
	return result, nil
}

// ScoreMeasurement computes and stores the scores of an unscored measurement.
func (s *Service) ScoreMeasurement(ctx context.Context, measurementID uuid.UUID) (*Measurement, error) {
	m, err := s.measurements.GetByID(ctx, measurementID)
	if err != nil {
		return nil, err
	}
	if m.Scored() {
		return nil, fmt.Errorf("measurement %s already scored: %w", m.ID, apperr.ErrConflict)
	}
	p, err := s.patients.GetByID(ctx, m.PatientID)
	if err != nil {
		return nil, err
	}
	z, err := ComputeZScores(s.curve, p.BirthDate, p.Sex, m.MeasuredOn, m.WeightKg, m.HeightCm)
	if err != nil {
		return nil, err
	}
	if err := s.measurements.SetScores(ctx, m.ID, z); err != nil {
		return nil, err
	}
	if err := m.ApplyScores(z); err != nil {
		return nil, err
	}
	s.scored(ctx, m, z)
	return m, nil
}

func (s *Service) scored(ctx context.Context, m *Measurement, z ZScores) {
	s.logger.Info().
		Str("measurement_id", m.ID.String()).
		Str("patient_id", m.PatientID.String()).
		Int("age_months", z.AgeMonths).
		Float64("z_weight_for_age", z.WeightForAge).
		Float64("z_height_for_age", z.HeightForAge).
		Msg("measurement scored")
	events.PublishOrLog(ctx, s.publisher, s.logger, events.NewEvent(events.TypeMeasurementScored, m.PatientID, map[string]interface{}{
		"measurement_id":   m.ID.String(),
		"measured_on":      m.MeasuredOn.Format(time.DateOnly),
		"age_months":       z.AgeMonths,
		"z_weight_for_age": z.WeightForAge,
		"z_height_for_age": z.HeightForAge,
	}))
}

func (s *Service) GetMeasurement(ctx context.Context, id uuid.UUID) (*Measurement, error) {
	return s.measurements.GetByID(ctx, id)
}

func (s *Service) History(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Measurement, int, error) {
	return s.measurements.ListByPatient(ctx, patientID, limit, offset)
}

// GrowthChart returns both score series for the patient, oldest first.
func (s *Service) GrowthChart(ctx context.Context, patientID uuid.UUID) (*GrowthChart, error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	series, err := s.measurements.Series(ctx, patientID)
	if err != nil {
		return nil, err
	}
	chart := &GrowthChart{
		PatientID:    patientID,
		WeightForAge: make([]ChartPoint, 0, len(series)),
		HeightForAge: make([]ChartPoint, 0, len(series)),
	}
	for _, m := range series {
		d := m.MeasuredOn.Format(time.DateOnly)
		chart.WeightForAge = append(chart.WeightForAge, ChartPoint{Date: d, Score: m.ZWeightForAge})
		chart.HeightForAge = append(chart.HeightForAge, ChartPoint{Date: d, Score: m.ZHeightForAge})
	}
	return chart, nil
}
