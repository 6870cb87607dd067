package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/growthwatch/growthwatch/internal/platform/apperr"
)

// SeedEntry is a patient as written in a seed file. The id is fixed so that
// reseeding updates the same row.
type SeedEntry struct {
	ID        string `yaml:"id"`
	FullName  string `yaml:"full_name"`
	BirthDate string `yaml:"birth_date"`
	Sex       string `yaml:"sex"`
	Guardian  string `yaml:"guardian,omitempty"`
	Phone     string `yaml:"phone,omitempty"`
}

func (e SeedEntry) Patient() (*Patient, error) {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return nil, fmt.Errorf("patient %q: id must be a uuid: %w", e.FullName, apperr.ErrValidation)
	}
	name := strings.TrimSpace(e.FullName)
	if name == "" {
		return nil, fmt.Errorf("patient %s: full_name is required: %w", id, apperr.ErrValidation)
	}
	birth, err := time.Parse(time.DateOnly, e.BirthDate)
	if err != nil {
		return nil, fmt.Errorf("patient %s: birth_date must be YYYY-MM-DD: %w", id, apperr.ErrValidation)
	}
	sex, err := ParseSex(e.Sex)
	if err != nil {
		return nil, fmt.Errorf("patient %s: %w", id, err)
	}
	p := &Patient{ID: id, FullName: name, BirthDate: birth, Sex: sex}
	if e.Guardian != "" {
		g := e.Guardian
		p.Guardian = &g
	}
	if e.Phone != "" {
		ph := e.Phone
		p.Phone = &ph
	}
	return p, nil
}

// Seed writes every entry through repo. It stops at the first bad entry.
func Seed(ctx context.Context, repo Repository, entries []SeedEntry) (int, error) {
	for i, e := range entries {
		p, err := e.Patient()
		if err != nil {
			return i, err
		}
		if err := repo.Create(ctx, p); err != nil {
			return i, fmt.Errorf("create patient %s: %w", p.ID, err)
		}
	}
	return len(entries), nil
}
