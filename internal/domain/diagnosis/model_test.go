package diagnosis

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/growthwatch/growthwatch/internal/platform/apperr"
)

func TestSession_ConcludeOnce(t *testing.T) {
	s := &Session{ID: uuid.New(), Status: StatusCreated}
	now := time.Now()
	if err := s.Conclude("K01", "R01", now); err != nil {
		t.Fatalf("Conclude: %v", err)
	}
	if s.Status != StatusConcluded || *s.ConditionCode != "K01" || *s.GroupCode != "R01" {
		t.Errorf("unexpected session state %+v", s)
	}
	if err := s.Conclude("K02", "R02", now); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected conflict on second conclusion, got %v", err)
	}
	if err := s.MarkInconclusive(now); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
	if *s.ConditionCode != "K01" {
		t.Error("conclusion must not change after it is written")
	}
}

func TestSession_MarkInconclusive(t *testing.T) {
	s := &Session{ID: uuid.New(), Status: StatusCreated}
	if err := s.MarkInconclusive(time.Now()); err != nil {
		t.Fatalf("MarkInconclusive: %v", err)
	}
	if s.Status != StatusInconclusive || s.ConditionCode != nil || s.ConcludedAt == nil {
		t.Errorf("unexpected session state %+v", s)
	}
}
