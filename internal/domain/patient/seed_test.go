package patient

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/growthwatch/growthwatch/internal/platform/apperr"
)

type mockRepo struct {
	items map[uuid.UUID]*Patient
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	cp := *p
	m.items[p.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.items[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return p, nil
}

const andiID = "3d6f0a52-7c1e-4b8a-9f2d-5e4c3b2a1f00"

func andi() SeedEntry {
	return SeedEntry{ID: andiID, FullName: "Andi Susanto", BirthDate: "2020-05-15", Sex: "L",
		Guardian: "Budi Susanto", Phone: "08123456789"}
}

func TestSeed(t *testing.T) {
	repo := &mockRepo{items: make(map[uuid.UUID]*Patient)}
	n, err := Seed(context.Background(), repo, []SeedEntry{andi(), andi()})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if n != 2 || len(repo.items) != 1 {
		t.Fatalf("expected reseeding to reuse the fixed id, got n=%d rows=%d", n, len(repo.items))
	}

	p, _ := repo.GetByID(context.Background(), uuid.MustParse(andiID))
	if p.Sex != SexMale || p.BirthDate.Format("2006-01-02") != "2020-05-15" {
		t.Errorf("unexpected patient %+v", p)
	}
	if p.Guardian == nil || *p.Guardian != "Budi Susanto" || p.Phone == nil {
		t.Errorf("expected guardian and phone, got %+v", p)
	}
}

func TestSeedEntry_Invalid(t *testing.T) {
	tests := []struct {
		name string
		edit func(*SeedEntry)
	}{
		{"bad id", func(e *SeedEntry) { e.ID = "andi" }},
		{"no name", func(e *SeedEntry) { e.FullName = " " }},
		{"bad birth date", func(e *SeedEntry) { e.BirthDate = "15/05/2020" }},
		{"unknown sex", func(e *SeedEntry) { e.Sex = "x" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := andi()
			tt.edit(&e)
			if _, err := e.Patient(); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}

	repo := &mockRepo{items: make(map[uuid.UUID]*Patient)}
	bad := andi()
	bad.Sex = ""
	if n, err := Seed(context.Background(), repo, []SeedEntry{andi(), bad}); err == nil || n != 1 {
		t.Errorf("expected failure at entry 1, got n=%d err=%v", n, err)
	}
}
