package patient

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/growthwatch/growthwatch/internal/platform/apperr"
)

// Sex selects the reference curve used for growth assessment.
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// ParseSex accepts the canonical values plus the single-letter codes used by
// caregiver registration forms (M/F, and L/P for laki-laki/perempuan).
func ParseSex(s string) (Sex, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "m", "l":
		return SexMale, nil
	case "female", "f", "p":
		return SexFemale, nil
	}
	return "", fmt.Errorf("unknown sex %q: %w", s, apperr.ErrValidation)
}

func (s Sex) Valid() bool {
	return s == SexMale || s == SexFemale
}

// Patient maps to the patient table. Registration and account management are
// owned by the surrounding service; this is the read model the engine needs.
type Patient struct {
	ID        uuid.UUID `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	BirthDate time.Time `db:"birth_date" json:"birth_date"`
	Sex       Sex       `db:"sex" json:"sex"`
	Guardian  *string   `db:"guardian" json:"guardian,omitempty"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
