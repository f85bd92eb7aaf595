package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Session is a logged-in portal operator together with the backend token
// their requests are made with.
type Session struct {
	ID           string
	UserID       string
	Username     string
	Role         string
	BackendToken string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// CreateSession stores a session, sealing its backend token.
func CreateSession(ctx context.Context, db *sql.DB, sealer *Sealer, s *Session) error {
	sealed, err := sealer.Seal([]byte(s.BackendToken))
	if err != nil {
		return fmt.Errorf("sealing backend token: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, username, role, backend_token, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Username, s.Role, sealed, s.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// GetSession returns an unexpired session by ID, or nil if there is none.
func GetSession(ctx context.Context, db *sql.DB, sealer *Sealer, id string) (*Session, error) {
	s := &Session{}
	var sealed []byte
	err := db.QueryRowContext(ctx,
		`SELECT id, user_id, username, role, backend_token, created_at, expires_at
		 FROM sessions WHERE id = ? AND expires_at > ?`,
		id, time.Now().UTC(),
	).Scan(&s.ID, &s.UserID, &s.Username, &s.Role, &sealed, &s.CreatedAt, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	token, err := sealer.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("opening backend token: %w", err)
	}
	s.BackendToken = string(token)
	return s, nil
}

// DeleteExpiredSessions removes sessions past their expiry and returns how
// many were removed.
func DeleteExpiredSessions(ctx context.Context, db *sql.DB) (int64, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return res.RowsAffected()
}
