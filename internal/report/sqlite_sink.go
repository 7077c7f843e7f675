package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSink journals reports into a local database file, for consoles that
// run where the backend log endpoint is unreachable.
type SQLiteSink struct {
	db *sql.DB
}

func NewSQLiteSink(path string) (*SQLiteSink, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create report db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open report db: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLiteSink{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSink) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS frontend_reports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at INTEGER NOT NULL,
			action TEXT NOT NULL,
			message TEXT NOT NULL,
			stack TEXT,
			url TEXT,
			method TEXT,
			user_agent TEXT,
			detail TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_frontend_reports_created_at ON frontend_reports(created_at);`,
	}
	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute init query: %w", err)
		}
	}
	return nil
}

func (s *SQLiteSink) Write(ctx context.Context, r Report) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	var detail sql.NullString
	if r.Detail != nil {
		raw, err := json.Marshal(r.Detail)
		if err == nil {
			detail = sql.NullString{String: string(raw), Valid: true}
		}
	}
	var stack sql.NullString
	if r.Stack != nil {
		stack = sql.NullString{String: *r.Stack, Valid: true}
	}
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO frontend_reports (created_at, action, message, stack, url, method, user_agent, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		created.UnixMilli(), r.Action, r.Message, stack, r.URL, r.Method, r.UserAgent, detail)
	return err
}

// Recent returns up to limit journaled reports, newest first.
func (s *SQLiteSink) Recent(ctx context.Context, limit int) ([]Report, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT created_at, action, message, stack, url, method, user_agent, detail
		 FROM frontend_reports ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Report
	for rows.Next() {
		var (
			createdAt int64
			r         Report
			stack     sql.NullString
			detail    sql.NullString
		)
		if err := rows.Scan(&createdAt, &r.Action, &r.Message, &stack, &r.URL, &r.Method, &r.UserAgent, &detail); err != nil {
			return nil, err
		}
		r.CreatedAt = time.UnixMilli(createdAt)
		if stack.Valid {
			v := stack.String
			r.Stack = &v
		}
		if detail.Valid {
			var d interface{}
			if json.Unmarshal([]byte(detail.String), &d) == nil {
				r.Detail = d
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
