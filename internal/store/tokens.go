package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// revokeToken adds a token's JTI to the revocation list and drops
// revocations whose tokens have expired, since those are rejected anyway.
func revokeToken(ctx context.Context, ex execer, jti string, expiresAt time.Time) error {
	if _, err := ex.ExecContext(ctx,
		`INSERT OR IGNORE INTO revoked_tokens (jti, expires_at) VALUES (?, ?)`,
		jti, expiresAt.UTC(),
	); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	if _, err := pruneRevokedTokens(ctx, ex); err != nil {
		return err
	}
	return nil
}

func pruneRevokedTokens(ctx context.Context, ex execer) (int64, error) {
	res, err := ex.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at < ?`, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning revoked tokens: %w", err)
	}
	return res.RowsAffected()
}

// PruneRevokedTokens deletes revocations of tokens that have expired.
func PruneRevokedTokens(ctx context.Context, db *sql.DB) (int64, error) {
	return pruneRevokedTokens(ctx, db)
}

// IsTokenRevoked checks if a token's JTI has been revoked.
func IsTokenRevoked(ctx context.Context, db *sql.DB, jti string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM revoked_tokens WHERE jti = ?`, jti,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking token revocation: %w", err)
	}
	return count > 0, nil
}

// EndSession revokes the session's token and deletes the session, so
// neither the cookie nor the sealed backend token can be used again.
func EndSession(ctx context.Context, db *sql.DB, sessionID string, expiresAt time.Time) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := revokeToken(ctx, tx, sessionID, expiresAt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
