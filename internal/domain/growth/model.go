package growth

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/growthwatch/growthwatch/internal/platform/apperr"
)

// Measurement maps to the measurement table. Both scores are unset until
// the measurement is scored, and are then written together exactly once.
type Measurement struct {
	ID            uuid.UUID `db:"id" json:"id"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`
	MeasuredOn    time.Time `db:"measured_on" json:"measured_on"`
	WeightKg      float64   `db:"weight_kg" json:"weight_kg"`
	HeightCm      float64   `db:"height_cm" json:"height_cm"`
	ZWeightForAge *float64  `db:"z_weight_for_age" json:"z_weight_for_age"`
	ZHeightForAge *float64  `db:"z_height_for_age" json:"z_height_for_age"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// NewMeasurement validates the raw fields of a new measurement.
func NewMeasurement(patientID uuid.UUID, measuredOn time.Time, weightKg, heightCm float64) (*Measurement, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required: %w", apperr.ErrValidation)
	}
	if measuredOn.IsZero() {
		return nil, fmt.Errorf("measured_on is required: %w", apperr.ErrInvalidMeasurement)
	}
	if err := checkQuantity("weight_kg", weightKg); err != nil {
		return nil, err
	}
	if err := checkQuantity("height_cm", heightCm); err != nil {
		return nil, err
	}
	return &Measurement{
		PatientID:  patientID,
		MeasuredOn: dateOnly(measuredOn),
		WeightKg:   weightKg,
		HeightCm:   heightCm,
	}, nil
}

func (m *Measurement) Scored() bool {
	return m.ZWeightForAge != nil && m.ZHeightForAge != nil
}

// ApplyScores sets both scores. It fails with apperr.ErrConflict if the
// measurement was already scored.
func (m *Measurement) ApplyScores(z ZScores) error {
	if m.ZWeightForAge != nil || m.ZHeightForAge != nil {
		return fmt.Errorf("measurement %s already scored: %w", m.ID, apperr.ErrConflict)
	}
	wfa, hfa := z.WeightForAge, z.HeightForAge
	m.ZWeightForAge = &wfa
	m.ZHeightForAge = &hfa
	return nil
}

// MeasurementInput is the payload for recording a measurement.
type MeasurementInput struct {
	PatientID  uuid.UUID `json:"patient_id"`
	MeasuredOn string    `json:"measured_on"`
	WeightKg   float64   `json:"weight_kg"`
	HeightCm   float64   `json:"height_cm"`
}

// ChartPoint is one dated score. Score is nil for unscored measurements.
type ChartPoint struct {
	Date  string   `json:"date"`
	Score *float64 `json:"score"`
}

// GrowthChart holds both indicator series in ascending date order.
type GrowthChart struct {
	PatientID    uuid.UUID    `json:"patient_id"`
	WeightForAge []ChartPoint `json:"weight_for_age"`
	HeightForAge []ChartPoint `json:"height_for_age"`
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
