package growth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/growthwatch/growthwatch/internal/platform/apperr"
	"github.com/growthwatch/growthwatch/internal/platform/db"
)

type measurementRepoPG struct{ pool *pgxpool.Pool }

func NewMeasurementRepoPG(pool *pgxpool.Pool) MeasurementRepository {
	return &measurementRepoPG{pool: pool}
}

func (r *measurementRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const measurementCols = `id, patient_id, measured_on, weight_kg::float8, height_cm::float8,
	z_weight_for_age::float8, z_height_for_age::float8, created_at`

func scanMeasurement(row pgx.Row) (*Measurement, error) {
	var m Measurement
	err := row.Scan(&m.ID, &m.PatientID, &m.MeasuredOn, &m.WeightKg, &m.HeightCm,
		&m.ZWeightForAge, &m.ZHeightForAge, &m.CreatedAt)
	return &m, err
}

func (r *measurementRepoPG) Create(ctx context.Context, m *Measurement) error {
	m.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO measurement (id, patient_id, measured_on, weight_kg, height_cm)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at`,
		m.ID, m.PatientID, m.MeasuredOn, m.WeightKg, m.HeightCm).Scan(&m.CreatedAt)
}

func (r *measurementRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Measurement, error) {
	m, err := scanMeasurement(r.conn(ctx).QueryRow(ctx, `SELECT `+measurementCols+` FROM measurement WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("measurement %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *measurementRepoPG) SetScores(ctx context.Context, id uuid.UUID, z ZScores) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE measurement SET z_weight_for_age = $2, z_height_for_age = $3
		WHERE id = $1 AND z_weight_for_age IS NULL AND z_height_for_age IS NULL`,
		id, z.WeightForAge, z.HeightForAge)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("measurement %s already scored: %w", id, apperr.ErrConflict)
}

func (r *measurementRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Measurement, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM measurement WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+measurementCols+` FROM measurement
		WHERE patient_id = $1 ORDER BY measured_on DESC, created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows)
	return items, total, err
}

func (r *measurementRepoPG) Series(ctx context.Context, patientID uuid.UUID) ([]*Measurement, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+measurementCols+` FROM measurement
		WHERE patient_id = $1 ORDER BY measured_on, created_at`, patientID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]*Measurement, error) {
	defer rows.Close()
	var items []*Measurement
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
