package followup

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/growthwatch/growthwatch/internal/platform/db"
)

type noticeRepoPG struct{ pool *pgxpool.Pool }

func NewNoticeRepoPG(pool *pgxpool.Pool) NoticeRepository { return &noticeRepoPG{pool: pool} }

func (r *noticeRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const noticeCols = `id, patient_id, measurement_id, title, message, due_date, type, created_at`

func scanNotice(row pgx.Row) (*Notice, error) {
	var n Notice
	err := row.Scan(&n.ID, &n.PatientID, &n.MeasurementID, &n.Title, &n.Message, &n.DueDate, &n.Type, &n.CreatedAt)
	return &n, err
}

func (r *noticeRepoPG) Create(ctx context.Context, n *Notice) (bool, error) {
	n.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO follow_up_notice (id, patient_id, measurement_id, title, message, due_date, type)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (patient_id, measurement_id) WHERE measurement_id IS NOT NULL DO NOTHING
		RETURNING created_at`,
		n.ID, n.PatientID, n.MeasurementID, n.Title, n.Message, n.DueDate, n.Type).Scan(&n.CreatedAt)
	if err == nil {
		return true, nil
	}
	// DO NOTHING returns no row; load the notice that won.
	if !errors.Is(err, pgx.ErrNoRows) || n.MeasurementID == nil {
		return false, err
	}

	existing, err := scanNotice(r.conn(ctx).QueryRow(ctx, `SELECT `+noticeCols+` FROM follow_up_notice
		WHERE patient_id = $1 AND measurement_id = $2`, n.PatientID, *n.MeasurementID))
	if err != nil {
		return false, err
	}
	*n = *existing
	return false, nil
}

func (r *noticeRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Notice, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM follow_up_notice WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+noticeCols+` FROM follow_up_notice
		WHERE patient_id = $1 ORDER BY due_date DESC, created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Notice
	for rows.Next() {
		n, err := scanNotice(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, n)
	}
	return items, total, rows.Err()
}
