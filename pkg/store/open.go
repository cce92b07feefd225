package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Open selects a journal by URL:
//
//	""                    in-memory journal
//	sqlite://<path>       local SQLite file (sqlite://:memory: for tests)
//	postgres://...        shared Postgres journal
func Open(ctx context.Context, url string) (Journal, error) {
	switch {
	case url == "" || url == "memory://":
		return NewMemoryJournal(), nil
	case strings.HasPrefix(url, "sqlite://"):
		return OpenSQLite(ctx, strings.TrimPrefix(url, "sqlite://"))
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		db, err := sql.Open("postgres", url)
		if err != nil {
			return nil, fmt.Errorf("open postgres journal: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping postgres journal: %w", err)
		}
		j := NewPostgresJournal(db)
		if err := j.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return j, nil
	default:
		return nil, fmt.Errorf("unsupported journal url %q", url)
	}
}
