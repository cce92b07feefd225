package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/escalaflow/scalegate/pkg/contracts"
)

// PostgresJournal is a journal shared by several clients.
type PostgresJournal struct {
	db *sql.DB
}

func NewPostgresJournal(db *sql.DB) *PostgresJournal {
	return &PostgresJournal{db: db}
}

// Migrate creates the receipts table.
func (j *PostgresJournal) Migrate(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS operation_receipts (
		receipt_id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		sector_id TEXT NOT NULL,
		period_start DATE NOT NULL,
		period_end DATE NOT NULL,
		outcome TEXT NOT NULL,
		mode TEXT NOT NULL DEFAULT '',
		ack_attached BOOLEAN NOT NULL DEFAULT FALSE,
		warning_codes JSONB NOT NULL DEFAULT '[]',
		assignments_count INTEGER NOT NULL DEFAULT 0,
		violations_count INTEGER NOT NULL DEFAULT 0,
		message TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		content_hash TEXT NOT NULL
	)`
	if _, err := j.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("migrate postgres journal: %w", err)
	}
	return nil
}

func (j *PostgresJournal) Append(ctx context.Context, r *Receipt) error {
	if err := r.Seal(); err != nil {
		return err
	}
	codes, _ := json.Marshal(r.WarningCodes)
	query := `INSERT INTO operation_receipts (receipt_id, kind, sector_id, period_start, period_end, outcome, mode, ack_attached, warning_codes, assignments_count, violations_count, message, created_at, content_hash) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := j.db.ExecContext(ctx, query,
		r.ReceiptID, string(r.Kind), r.SectorID, r.PeriodStart, r.PeriodEnd, r.Outcome, r.Mode, r.AckAttached,
		string(codes), r.AssignmentsCount, r.ViolationsCount, r.Message, r.CreatedAt, r.ContentHash,
	)
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	return nil
}

const postgresSelect = `SELECT receipt_id, kind, sector_id, period_start::text, period_end::text, outcome, mode, ack_attached, warning_codes::text, assignments_count, violations_count, message, created_at, content_hash FROM operation_receipts`

func (j *PostgresJournal) List(ctx context.Context, limit int) ([]*Receipt, error) {
	query := postgresSelect + ` ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Receipt
	for rows.Next() {
		r, err := scanPostgres(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (j *PostgresJournal) Get(ctx context.Context, receiptID string) (*Receipt, error) {
	row := j.db.QueryRowContext(ctx, postgresSelect+` WHERE receipt_id = $1`, receiptID)
	r, err := scanPostgres(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func (j *PostgresJournal) Close() error { return j.db.Close() }

func scanPostgres(s scanner) (*Receipt, error) {
	var (
		r     Receipt
		kind  string
		codes sql.NullString
	)
	if err := s.Scan(&r.ReceiptID, &kind, &r.SectorID, &r.PeriodStart, &r.PeriodEnd, &r.Outcome, &r.Mode,
		&r.AckAttached, &codes, &r.AssignmentsCount, &r.ViolationsCount, &r.Message, &r.CreatedAt, &r.ContentHash); err != nil {
		return nil, err
	}
	r.Kind = kindOf(kind)
	r.WarningCodes = decodeCodes(codes.String)
	return &r, nil
}

func kindOf(s string) contracts.OperationKind {
	return contracts.OperationKind(s)
}
