package followup

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/growthwatch/growthwatch/internal/domain/patient"
	"github.com/growthwatch/growthwatch/internal/platform/apperr"
	"github.com/growthwatch/growthwatch/internal/platform/events"
)

// -- Mock Repositories --

type mockNoticeRepo struct {
	notices []*Notice
}

func (m *mockNoticeRepo) Create(_ context.Context, n *Notice) (bool, error) {
	if n.MeasurementID != nil {
		for _, existing := range m.notices {
			if existing.PatientID == n.PatientID && existing.MeasurementID != nil && *existing.MeasurementID == *n.MeasurementID {
				*n = *existing
				return false, nil
			}
		}
	}
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	stored := *n
	m.notices = append(m.notices, &stored)
	return true, nil
}

func (m *mockNoticeRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Notice, int, error) {
	var out []*Notice
	for _, n := range m.notices {
		if n.PatientID == patientID {
			out = append(out, n)
		}
	}
	return out, len(out), nil
}

type mockPatients struct {
	ids map[uuid.UUID]bool
}

func (m *mockPatients) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	if !m.ids[id] {
		return nil, fmt.Errorf("patient %s: %w", id, apperr.ErrNotFound)
	}
	return &patient.Patient{ID: id}, nil
}

type recordingPublisher struct {
	events []events.Event
}

func (r *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	r.events = append(r.events, e)
	return nil
}

func newTestService() (*Service, *mockNoticeRepo, *recordingPublisher, uuid.UUID) {
	pid := uuid.New()
	repo := &mockNoticeRepo{}
	pub := &recordingPublisher{}
	svc := NewService(repo, &mockPatients{ids: map[uuid.UUID]bool{pid: true}}, zerolog.Nop())
	svc.SetPublisher(pub)
	return svc, repo, pub, pid
}

func date(s string) time.Time {
	t, _ := time.Parse(time.DateOnly, s)
	return t
}

func TestScheduleFollowUp(t *testing.T) {
	svc, repo, pub, pid := newTestService()

	n, err := svc.ScheduleFollowUp(context.Background(), pid, date("2024-01-01"))
	if err != nil {
		t.Fatalf("ScheduleFollowUp: %v", err)
	}
	if got := n.DueDate.Format(time.DateOnly); got != "2024-01-31" {
		t.Errorf("expected due 2024-01-31, got %s", got)
	}
	if n.Type != TypeRemeasurement || n.Title == "" || n.Message == "" {
		t.Errorf("unexpected notice %+v", n)
	}
	if len(repo.notices) != 1 {
		t.Errorf("expected one stored notice, got %d", len(repo.notices))
	}
	if len(pub.events) != 1 || pub.events[0].Type != events.TypeFollowUpScheduled {
		t.Errorf("expected followup.scheduled event, got %+v", pub.events)
	}
}

func TestScheduleFollowUp_EveryCallCreates(t *testing.T) {
	svc, repo, _, pid := newTestService()
	for i := 0; i < 2; i++ {
		if _, err := svc.ScheduleFollowUp(context.Background(), pid, date("2024-01-01")); err != nil {
			t.Fatalf("ScheduleFollowUp: %v", err)
		}
	}
	if len(repo.notices) != 2 {
		t.Errorf("expected two notices, got %d", len(repo.notices))
	}
}

func TestScheduleAfterMeasurement_Dedup(t *testing.T) {
	svc, repo, pub, pid := newTestService()
	mid := uuid.New()

	first, created, err := svc.ScheduleAfterMeasurement(context.Background(), pid, mid, date("2024-03-10"))
	if err != nil || !created {
		t.Fatalf("ScheduleAfterMeasurement: created=%v err=%v", created, err)
	}
	second, created, err := svc.ScheduleAfterMeasurement(context.Background(), pid, mid, date("2024-03-10"))
	if err != nil {
		t.Fatalf("ScheduleAfterMeasurement: %v", err)
	}
	if created {
		t.Error("expected the repeat call to report an existing notice")
	}
	if first.ID != second.ID {
		t.Errorf("expected the same notice, got %s and %s", first.ID, second.ID)
	}
	if len(repo.notices) != 1 {
		t.Errorf("expected one notice, got %d", len(repo.notices))
	}
	if len(pub.events) != 0 {
		t.Errorf("publishing is left to the caller, got %d events", len(pub.events))
	}

	svc.Announce(context.Background(), first)
	if len(pub.events) != 1 || pub.events[0].Type != events.TypeFollowUpScheduled {
		t.Errorf("expected followup.scheduled from Announce, got %+v", pub.events)
	}
}

func TestScheduleFollowUp_Errors(t *testing.T) {
	svc, repo, _, pid := newTestService()
	ctx := context.Background()

	if _, err := svc.ScheduleFollowUp(ctx, uuid.New(), date("2024-01-01")); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := svc.ScheduleFollowUp(ctx, uuid.Nil, date("2024-01-01")); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for nil patient, got %v", err)
	}
	if _, err := svc.ScheduleFollowUp(ctx, pid, time.Time{}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for zero date, got %v", err)
	}
	if _, _, err := svc.ScheduleAfterMeasurement(ctx, pid, uuid.Nil, date("2024-01-01")); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for nil measurement, got %v", err)
	}
	if len(repo.notices) != 0 {
		t.Errorf("expected nothing stored, got %d", len(repo.notices))
	}
}
