package diagnosis

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

// =========== Symptom Catalog ===========

type symptomRepoPG struct{ pool *pgxpool.Pool }

func NewSymptomRepoPG(pool *pgxpool.Pool) SymptomCatalog { return &symptomRepoPG{pool: pool} }

func (r *symptomRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

func (r *symptomRepoPG) GetByCode(ctx context.Context, code string) (*Symptom, error) {
	var s Symptom
	err := r.conn(ctx).QueryRow(ctx, `SELECT code, label FROM symptom WHERE code = $1`, code).Scan(&s.Code, &s.Label)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("symptom %s: %w", code, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *symptomRepoPG) List(ctx context.Context) ([]*Symptom, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT code, label FROM symptom ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Symptom
	for rows.Next() {
		var s Symptom
		if err := rows.Scan(&s.Code, &s.Label); err != nil {
			return nil, err
		}
		items = append(items, &s)
	}
	return items, rows.Err()
}

func (r *symptomRepoPG) Upsert(ctx context.Context, s *Symptom) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO symptom (code, label) VALUES ($1, $2)
		ON CONFLICT (code) DO UPDATE SET label = EXCLUDED.label`, s.Code, s.Label)
	return err
}

// =========== Condition Catalog ===========

type conditionRepoPG struct{ pool *pgxpool.Pool }

func NewConditionRepoPG(pool *pgxpool.Pool) ConditionCatalog { return &conditionRepoPG{pool: pool} }

func (r *conditionRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const conditionCols = `code, label, description, recommendation`

func scanCondition(row pgx.Row) (*Condition, error) {
	var c Condition
	err := row.Scan(&c.Code, &c.Label, &c.Description, &c.Recommendation)
	return &c, err
}

func (r *conditionRepoPG) GetByCode(ctx context.Context, code string) (*Condition, error) {
	c, err := scanCondition(r.conn(ctx).QueryRow(ctx, `SELECT `+conditionCols+` FROM condition WHERE code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("condition %s: %w", code, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *conditionRepoPG) List(ctx context.Context) ([]*Condition, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+conditionCols+` FROM condition ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Condition
	for rows.Next() {
		c, err := scanCondition(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (r *conditionRepoPG) Upsert(ctx context.Context, c *Condition) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO condition (code, label, description, recommendation) VALUES ($1, $2, $3, $4)
		ON CONFLICT (code) DO UPDATE SET label = EXCLUDED.label,
			description = EXCLUDED.description, recommendation = EXCLUDED.recommendation`,
		c.Code, c.Label, c.Description, c.Recommendation)
	return err
}

// =========== Rule Repository ===========

type ruleRepoPG struct{ pool *pgxpool.Pool }

func NewRuleRepoPG(pool *pgxpool.Pool) RuleRepository { return &ruleRepoPG{pool: pool} }

func (r *ruleRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

func (r *ruleRepoPG) Create(ctx context.Context, rule *Rule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO rule (id, condition_code, symptom_code, group_code, note)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (condition_code, group_code, symptom_code) DO UPDATE SET note = EXCLUDED.note
		RETURNING id, created_at`,
		rule.ID, rule.ConditionCode, rule.SymptomCode, rule.GroupCode, rule.Note).Scan(&rule.ID, &rule.CreatedAt)
}

func (r *ruleRepoPG) All(ctx context.Context) ([]Rule, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, condition_code, symptom_code, group_code, note, created_at
		FROM rule ORDER BY condition_code, group_code, symptom_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rules []Rule
	for rows.Next() {
		var rl Rule
		if err := rows.Scan(&rl.ID, &rl.ConditionCode, &rl.SymptomCode, &rl.GroupCode, &rl.Note, &rl.CreatedAt); err != nil {
			return nil, err
		}
		rules = append(rules, rl)
	}
	return rules, rows.Err()
}

// =========== Session Repository ===========

type sessionRepoPG struct{ pool *pgxpool.Pool }

func NewSessionRepoPG(pool *pgxpool.Pool) SessionRepository { return &sessionRepoPG{pool: pool} }

func (r *sessionRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const sessionCols = `id, patient_id, status, condition_code, group_code, created_at, concluded_at`

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.PatientID, &s.Status, &s.ConditionCode, &s.GroupCode, &s.CreatedAt, &s.ConcludedAt)
	return &s, err
}

func (r *sessionRepoPG) Create(ctx context.Context, s *Session) error {
	s.ID = uuid.New()
	if s.Status == "" {
		s.Status = StatusCreated
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO diagnostic_session (id, patient_id, status)
		VALUES ($1,$2,$3)
		RETURNING created_at`, s.ID, s.PatientID, s.Status).Scan(&s.CreatedAt)
}

func (r *sessionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	s, err := scanSession(r.conn(ctx).QueryRow(ctx, `SELECT `+sessionCols+` FROM diagnostic_session WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *sessionRepoPG) SetConclusion(ctx context.Context, s *Session) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE diagnostic_session SET status = $2, condition_code = $3, group_code = $4, concluded_at = $5
		WHERE id = $1 AND status = 'created'`,
		s.ID, s.Status, s.ConditionCode, s.GroupCode, s.ConcludedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := r.GetByID(ctx, s.ID); err != nil {
		return err
	}
	return fmt.Errorf("session %s already concluded: %w", s.ID, apperr.ErrConflict)
}

func (r *sessionRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Session, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM diagnostic_session WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+sessionCols+` FROM diagnostic_session WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

// =========== Recorded Symptom Repository ===========

type recordedSymptomRepoPG struct{ pool *pgxpool.Pool }

func NewRecordedSymptomRepoPG(pool *pgxpool.Pool) RecordedSymptomRepository {
	return &recordedSymptomRepoPG{pool: pool}
}

func (r *recordedSymptomRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

func (r *recordedSymptomRepoPG) Add(ctx context.Context, rs *RecordedSymptom) error {
	rs.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO recorded_symptom (id, session_id, symptom_code)
		VALUES ($1,$2,$3)
		RETURNING created_at`, rs.ID, rs.SessionID, rs.SymptomCode).Scan(&rs.CreatedAt)
}

func (r *recordedSymptomRepoPG) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*RecordedSymptom, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, session_id, symptom_code, created_at
		FROM recorded_symptom WHERE session_id = $1 ORDER BY symptom_code`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*RecordedSymptom
	for rows.Next() {
		var rs RecordedSymptom
		if err := rows.Scan(&rs.ID, &rs.SessionID, &rs.SymptomCode, &rs.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &rs)
	}
	return items, rows.Err()
}
