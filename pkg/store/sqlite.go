package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteJournal is the local receipt journal.
type SQLiteJournal struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) a journal at path. ":memory:" is accepted.
func OpenSQLite(ctx context.Context, path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite journal: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)
	return NewSQLiteJournal(ctx, db)
}

func NewSQLiteJournal(ctx context.Context, db *sql.DB) (*SQLiteJournal, error) {
	j := &SQLiteJournal{db: db}
	if err := j.migrate(ctx); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *SQLiteJournal) migrate(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS operation_receipts (
		receipt_id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		sector_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		outcome TEXT NOT NULL,
		mode TEXT NOT NULL DEFAULT '',
		ack_attached INTEGER NOT NULL DEFAULT 0,
		warning_codes JSON,
		assignments_count INTEGER NOT NULL DEFAULT 0,
		violations_count INTEGER NOT NULL DEFAULT 0,
		message TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		content_hash TEXT NOT NULL
	);`
	if _, err := j.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("migrate sqlite journal: %w", err)
	}
	return nil
}

func (j *SQLiteJournal) Append(ctx context.Context, r *Receipt) error {
	if err := r.Seal(); err != nil {
		return err
	}
	codes, _ := json.Marshal(r.WarningCodes)
	query := `INSERT INTO operation_receipts (
		receipt_id, kind, sector_id, period_start, period_end, outcome, mode, ack_attached,
		warning_codes, assignments_count, violations_count, message, created_at, content_hash
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := j.db.ExecContext(ctx, query,
		r.ReceiptID, string(r.Kind), r.SectorID, r.PeriodStart, r.PeriodEnd, r.Outcome, r.Mode, r.AckAttached,
		string(codes), r.AssignmentsCount, r.ViolationsCount, r.Message, r.CreatedAt.UTC().Format(time.RFC3339Nano), r.ContentHash,
	)
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	return nil
}

const sqliteSelect = `
	SELECT receipt_id, kind, sector_id, period_start, period_end, outcome, mode, ack_attached,
		warning_codes, assignments_count, violations_count, message, created_at, content_hash
	FROM operation_receipts`

func (j *SQLiteJournal) List(ctx context.Context, limit int) ([]*Receipt, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, sqliteSelect+` ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Receipt
	for rows.Next() {
		r, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) Get(ctx context.Context, receiptID string) (*Receipt, error) {
	row := j.db.QueryRowContext(ctx, sqliteSelect+` WHERE receipt_id = ?`, receiptID)
	r, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func (j *SQLiteJournal) Close() error { return j.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLite(s scanner) (*Receipt, error) {
	var (
		r         Receipt
		kind      string
		codes     sql.NullString
		createdAt string
	)
	if err := s.Scan(&r.ReceiptID, &kind, &r.SectorID, &r.PeriodStart, &r.PeriodEnd, &r.Outcome, &r.Mode,
		&r.AckAttached, &codes, &r.AssignmentsCount, &r.ViolationsCount, &r.Message, &createdAt, &r.ContentHash); err != nil {
		return nil, err
	}
	r.Kind = kindOf(kind)
	r.WarningCodes = decodeCodes(codes.String)
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("receipt %s: bad created_at: %w", r.ReceiptID, err)
	}
	r.CreatedAt = ts
	return &r, nil
}

func decodeCodes(s string) []string {
	codes := []string{}
	if s != "" {
		_ = json.Unmarshal([]byte(s), &codes)
	}
	return codes
}
