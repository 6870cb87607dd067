package followup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/growthwatch/growthwatch/internal/platform/apperr"
	"github.com/growthwatch/growthwatch/internal/platform/events"
)

type Service struct {
	notices   NoticeRepository
	patients  PatientLookup
	publisher events.Publisher
	logger    zerolog.Logger
}

func NewService(notices NoticeRepository, patients PatientLookup, logger zerolog.Logger) *Service {
	return &Service{
		notices:   notices,
		patients:  patients,
		publisher: events.Nop{},
		logger:    logger.With().Str("component", "followup").Logger(),
	}
}

func (s *Service) SetPublisher(p events.Publisher) { s.publisher = p }

// ScheduleFollowUp creates a re-measurement notice due IntervalDays after
// lastMeasuredOn. Every call creates a new notice.
func (s *Service) ScheduleFollowUp(ctx context.Context, patientID uuid.UUID, lastMeasuredOn time.Time) (*Notice, error) {
	n, _, err := s.store(ctx, patientID, nil, lastMeasuredOn)
	if err != nil {
		return nil, err
	}
	s.Announce(ctx, n)
	return n, nil
}

// ScheduleAfterMeasurement is ScheduleFollowUp tied to a stored measurement.
// At most one notice exists per measurement; repeating the call returns the
// existing notice with created false. Nothing is published here: the caller
// runs inside the measurement transaction and calls Announce after commit.
func (s *Service) ScheduleAfterMeasurement(ctx context.Context, patientID, measurementID uuid.UUID, measuredOn time.Time) (*Notice, bool, error) {
	if measurementID == uuid.Nil {
		return nil, false, fmt.Errorf("measurement_id is required: %w", apperr.ErrValidation)
	}
	return s.store(ctx, patientID, &measurementID, measuredOn)
}

// Announce logs and publishes followup.scheduled for a newly created notice.
func (s *Service) Announce(ctx context.Context, n *Notice) {
	s.logger.Info().
		Str("notice_id", n.ID.String()).
		Str("patient_id", n.PatientID.String()).
		Str("due_date", n.DueDate.Format(time.DateOnly)).
		Msg("follow-up scheduled")
	events.PublishOrLog(ctx, s.publisher, s.logger, events.NewEvent(events.TypeFollowUpScheduled, n.PatientID, map[string]interface{}{
		"notice_id": n.ID.String(),
		"due_date":  n.DueDate.Format(time.DateOnly),
		"type":      n.Type,
	}))
}

func (s *Service) store(ctx context.Context, patientID uuid.UUID, measurementID *uuid.UUID, lastMeasuredOn time.Time) (*Notice, bool, error) {
	if patientID == uuid.Nil {
		return nil, false, fmt.Errorf("patient_id is required: %w", apperr.ErrValidation)
	}
	if lastMeasuredOn.IsZero() {
		return nil, false, fmt.Errorf("last_measured_on is required: %w", apperr.ErrValidation)
	}
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, false, err
	}

	n := newRemeasurementNotice(patientID, measurementID, lastMeasuredOn)
	created, err := s.notices.Create(ctx, n)
	if err != nil {
		return nil, false, fmt.Errorf("create notice: %w", err)
	}
	if !created {
		s.logger.Debug().Str("notice_id", n.ID.String()).Msg("follow-up already scheduled for measurement")
	}
	return n, created, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Notice, int, error) {
	return s.notices.ListByPatient(ctx, patientID, limit, offset)
}
