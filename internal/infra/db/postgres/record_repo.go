package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	domain "github.com/ethica-ai/ethica-relay/internal/domain/analysis"
)

const schema = `
CREATE TABLE IF NOT EXISTS ethica_analyses (
  id            TEXT        PRIMARY KEY,
  scenario_id   TEXT        NOT NULL,
  source        TEXT        NOT NULL,
  reason        TEXT        NOT NULL DEFAULT '',
  error_message TEXT        NOT NULL DEFAULT '',
  approval_type TEXT        NOT NULL DEFAULT '',
  client        TEXT        NOT NULL,
  request_body  TEXT        NOT NULL,
  result_json   TEXT        NOT NULL,
  object_url    TEXT        NOT NULL DEFAULT '',
  created_at    TIMESTAMPTZ NOT NULL
);
ALTER TABLE ethica_analyses ALTER COLUMN result_json TYPE TEXT;
CREATE INDEX IF NOT EXISTS idx_ethica_analyses_created ON ethica_analyses (created_at DESC);`

type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Migrate creates the archive table when missing
func (r *RecordRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// Save inserts or updates a relay record
func (r *RecordRepository) Save(ctx context.Context, rec *domain.Record) error {
	const q = `
INSERT INTO ethica_analyses
  (id, scenario_id, source, reason, error_message, approval_type, client, request_body, result_json, object_url, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  result_json=EXCLUDED.result_json,
  object_url=EXCLUDED.object_url;
`
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		rec.ID, stringOrDash(rec.ScenarioID), rec.Source, rec.Reason, rec.Error, rec.ApprovalType,
		stringOrDash(rec.Client), rec.Request, jsonOrEmpty(rec.Result), rec.ObjectURL, created,
	)
	return err
}

// Get returns one record by id
func (r *RecordRepository) Get(ctx context.Context, id domain.RecordID) (*domain.Record, error) {
	const q = `
SELECT id, scenario_id, source, reason, error_message, approval_type, client, request_body, result_json, object_url, created_at
FROM ethica_analyses
WHERE id=$1
LIMIT 1;`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rec, err
}

// Paginate returns a page of records ordered by created_at desc
func (r *RecordRepository) Paginate(ctx context.Context, page, pageSize int) ([]*domain.Record, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `
SELECT id, scenario_id, source, reason, error_message, approval_type, client, request_body, result_json, object_url, created_at
FROM ethica_analyses
ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2;
`
	rows, err := r.db.QueryContext(ctx, q, pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *RecordRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*domain.Record, error) {
	var rec domain.Record
	var created time.Time
	if err := s.Scan(&rec.ID, &rec.ScenarioID, &rec.Source, &rec.Reason, &rec.Error, &rec.ApprovalType,
		&rec.Client, &rec.Request, &rec.Result, &rec.ObjectURL, &created); err != nil {
		return nil, err
	}
	rec.CreatedAt = created
	return &rec, nil
}
