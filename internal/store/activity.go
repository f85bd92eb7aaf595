package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/scanpoint/internal/model"
)

// RecordActivity appends an entry to the local activity log.
func RecordActivity(ctx context.Context, db *sql.DB, a *model.Activity) error {
	res, err := db.ExecContext(ctx,
		`INSERT INTO activity (username, action, subject, outcome, message) VALUES (?, ?, ?, ?, ?)`,
		a.Username, a.Action, a.Subject, a.Outcome, nullString(a.Message),
	)
	if err != nil {
		return fmt.Errorf("inserting activity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting activity id: %w", err)
	}
	a.ID = id
	return nil
}

// ActivityFilter narrows ListActivity. Zero values match everything.
type ActivityFilter struct {
	Username string
	Action   string
	Limit    int
}

// ListActivity returns activity entries, newest first.
func ListActivity(ctx context.Context, db *sql.DB, f ActivityFilter) ([]model.Activity, error) {
	var (
		where []string
		args  []any
	)
	if f.Username != "" {
		where = append(where, "username = ?")
		args = append(args, f.Username)
	}
	if f.Action != "" {
		where = append(where, "action = ?")
		args = append(args, f.Action)
	}

	query := `SELECT id, username, action, subject, outcome, COALESCE(message, ''), created_at FROM activity`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying activity: %w", err)
	}
	defer rows.Close()

	var out []model.Activity
	for rows.Next() {
		var a model.Activity
		if err := rows.Scan(&a.ID, &a.Username, &a.Action, &a.Subject, &a.Outcome, &a.Message, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
