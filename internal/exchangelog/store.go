// Package exchangelog keeps an optional SQLite record of resolved exchanges
// for diagnostics. The bridge works fine without it; nothing on the wire path
// reads from here.
package exchangelog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/flitsinc/go-bridge/internal/schema"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

type Exchange struct {
	ID         string        `json:"id"`
	RequestID  string        `json:"request_id"`
	Prompt     string        `json:"prompt"`
	Action     schema.Action `json:"action"`
	Text       string        `json:"text,omitempty"`
	Error      string        `json:"error,omitempty"`
	ImageCount int           `json:"image_count"`
	CreatedAt  time.Time     `json:"created_at"`
	ResolvedAt time.Time     `json:"resolved_at"`
}

func (s *Store) Record(ctx context.Context, requestID, prompt string, ans schema.Answer, createdAt, resolvedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exchanges (id, request_id, prompt, action, text, error, image_count, created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ulid.Make().String(), requestID, prompt, string(ans.Action), ans.Text, ans.Error, len(ans.Images),
		createdAt.UTC().Format(time.RFC3339Nano), resolvedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert exchange: %w", err)
	}
	return nil
}

// Recent returns the latest resolved exchanges, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Exchange, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, prompt, action, text, error, image_count, created_at, resolved_at
		FROM exchanges ORDER BY resolved_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list exchanges: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var e Exchange
		var action, createdAtStr, resolvedAtStr string
		var text, errStr sql.NullString
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Prompt, &action, &text, &errStr, &e.ImageCount, &createdAtStr, &resolvedAtStr); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		e.Action = schema.Action(action)
		e.Text = text.String
		e.Error = errStr.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
		e.ResolvedAt, _ = time.Parse(time.RFC3339Nano, resolvedAtStr)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchanges: %w", err)
	}
	return out, nil
}
