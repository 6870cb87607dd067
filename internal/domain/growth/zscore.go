package growth

import (
	"fmt"
	"math"
	"time"

	"github.com/growthwatch/growthwatch/internal/domain/patient"
	"github.com/growthwatch/growthwatch/internal/platform/apperr"
)

const (
	// MaxAgeMonths is the oldest age the reference curves cover.
	MaxAgeMonths = 240
	// ScoreLimit bounds every reported Z-score to [-ScoreLimit, +ScoreLimit].
	ScoreLimit = 3.0
)

// AgeInMonths counts whole calendar months between birth and measurement.
// The day of month is ignored.
func AgeInMonths(birthDate, measuredOn time.Time) int {
	return (measuredOn.Year()-birthDate.Year())*12 + int(measuredOn.Month()) - int(birthDate.Month())
}

// Reference is the median and standard deviation of both indicators at one
// age for one sex.
type Reference struct {
	WeightMedian float64 `json:"weight_median"`
	WeightSD     float64 `json:"weight_sd"`
	HeightMedian float64 `json:"height_median"`
	HeightSD     float64 `json:"height_sd"`
}

// ReferenceCurve resolves the reference values for an age in months.
type ReferenceCurve interface {
	Lookup(ageMonths int, sex patient.Sex) (Reference, error)
}

// Linear is a + b·age.
type Linear struct {
	Intercept float64
	Slope     float64
}

func (l Linear) At(age int) float64 {
	return l.Slope*float64(age) + l.Intercept
}

// Band applies to ages up to and including MaxAge.
type Band struct {
	MaxAge       int
	WeightMedian Linear
	WeightSD     Linear
	HeightMedian Linear
	HeightSD     Linear
}

// LinearBandCurve is a piecewise linear reference curve. Bands are checked
// in order; the last band also covers every older age.
type LinearBandCurve struct {
	bands map[patient.Sex][]Band
}

func NewLinearBandCurve(male, female []Band) *LinearBandCurve {
	return &LinearBandCurve{bands: map[patient.Sex][]Band{
		patient.SexMale:   male,
		patient.SexFemale: female,
	}}
}

// DefaultBands is the built-in approximation used until real growth
// standard tables are loaded. It is not clinically accurate.
func DefaultBands() []Band {
	return []Band{
		{
			MaxAge:       24,
			WeightMedian: Linear{Intercept: 3.0, Slope: 0.5},
			WeightSD:     Linear{Intercept: 0.5, Slope: 0.2},
			HeightMedian: Linear{Intercept: 45.0, Slope: 2.0},
			HeightSD:     Linear{Intercept: 1.0, Slope: 0.3},
		},
		{
			MaxAge:       60,
			WeightMedian: Linear{Intercept: 7.0, Slope: 0.2},
			WeightSD:     Linear{Intercept: 0.8, Slope: 0.15},
			HeightMedian: Linear{Intercept: 65.0, Slope: 1.5},
			HeightSD:     Linear{Intercept: 1.2, Slope: 0.2},
		},
		{
			MaxAge:       MaxAgeMonths,
			WeightMedian: Linear{Intercept: 10.0, Slope: 0.15},
			WeightSD:     Linear{Intercept: 1.0, Slope: 0.1},
			HeightMedian: Linear{Intercept: 80.0, Slope: 1.2},
			HeightSD:     Linear{Intercept: 1.5, Slope: 0.15},
		},
	}
}

// DefaultCurve uses DefaultBands for both sexes.
func DefaultCurve() *LinearBandCurve {
	return NewLinearBandCurve(DefaultBands(), DefaultBands())
}

func (c *LinearBandCurve) Lookup(ageMonths int, sex patient.Sex) (Reference, error) {
	bands := c.bands[sex]
	if len(bands) == 0 {
		return Reference{}, fmt.Errorf("no reference curve for sex %q: %w", sex, apperr.ErrInvalidMeasurement)
	}
	b := bands[len(bands)-1]
	for _, candidate := range bands {
		if ageMonths <= candidate.MaxAge {
			b = candidate
			break
		}
	}
	return Reference{
		WeightMedian: b.WeightMedian.At(ageMonths),
		WeightSD:     b.WeightSD.At(ageMonths),
		HeightMedian: b.HeightMedian.At(ageMonths),
		HeightSD:     b.HeightSD.At(ageMonths),
	}, nil
}

// ZScores holds both indicators for one measurement.
type ZScores struct {
	AgeMonths    int     `json:"age_months"`
	WeightForAge float64 `json:"weight_for_age"`
	HeightForAge float64 `json:"height_for_age"`
}

// ComputeZScores derives weight-for-age and height-for-age Z-scores. Scores
// are rounded to two decimals and clamped to ±ScoreLimit. The function is
// pure: identical inputs always give identical scores.
func ComputeZScores(curve ReferenceCurve, birthDate time.Time, sex patient.Sex, measuredOn time.Time, weightKg, heightCm float64) (ZScores, error) {
	if birthDate.IsZero() || measuredOn.IsZero() {
		return ZScores{}, fmt.Errorf("birth date and measurement date are required: %w", apperr.ErrInvalidMeasurement)
	}
	if !sex.Valid() {
		return ZScores{}, fmt.Errorf("unknown sex %q: %w", sex, apperr.ErrInvalidMeasurement)
	}
	if err := checkQuantity("weight_kg", weightKg); err != nil {
		return ZScores{}, err
	}
	if err := checkQuantity("height_cm", heightCm); err != nil {
		return ZScores{}, err
	}

	age := AgeInMonths(birthDate, measuredOn)
	if age < 0 {
		return ZScores{}, fmt.Errorf("measured on %s before birth on %s: %w",
			measuredOn.Format(time.DateOnly), birthDate.Format(time.DateOnly), apperr.ErrInvalidMeasurement)
	}
	if age > MaxAgeMonths {
		return ZScores{}, fmt.Errorf("age %d months exceeds %d: %w", age, MaxAgeMonths, apperr.ErrInvalidMeasurement)
	}

	ref, err := curve.Lookup(age, sex)
	if err != nil {
		return ZScores{}, err
	}
	wfa, err := zScore(weightKg, ref.WeightMedian, ref.WeightSD)
	if err != nil {
		return ZScores{}, fmt.Errorf("weight-for-age at %d months: %w", age, err)
	}
	hfa, err := zScore(heightCm, ref.HeightMedian, ref.HeightSD)
	if err != nil {
		return ZScores{}, fmt.Errorf("height-for-age at %d months: %w", age, err)
	}
	return ZScores{AgeMonths: age, WeightForAge: wfa, HeightForAge: hfa}, nil
}

func checkQuantity(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%s must be a finite non-negative number, got %v: %w", field, v, apperr.ErrInvalidMeasurement)
	}
	return nil
}

func zScore(observed, median, sd float64) (float64, error) {
	if sd == 0 || math.IsNaN(sd) {
		return 0, fmt.Errorf("reference standard deviation is %v: %w", sd, apperr.ErrComputation)
	}
	z := round2((observed - median) / sd)
	return math.Max(-ScoreLimit, math.Min(ScoreLimit, z)), nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
