package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
)

// Setting keys holding generated secrets.
const (
	settingJWTSecret = "jwt_secret"
	settingTokenKey  = "token_key"
)

// GetJWTSecret returns the key session JWTs are signed with, generating it
// on first use.
func GetJWTSecret(ctx context.Context, db *sql.DB) (string, error) {
	return secretSetting(ctx, db, settingJWTSecret)
}

// GetTokenKey returns the master key backend tokens are sealed with,
// generating it on first use.
func GetTokenKey(ctx context.Context, db *sql.DB) ([]byte, error) {
	s, err := secretSetting(ctx, db, settingTokenKey)
	if err != nil {
		return nil, err
	}
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", settingTokenKey, err)
	}
	return key, nil
}

// secretSetting returns the random value stored under key, creating it if
// missing. INSERT OR IGNORE followed by a re-SELECT avoids a race between
// concurrently starting processes.
func secretSetting(ctx context.Context, db *sql.DB, key string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating %s: %w", key, err)
	}

	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`,
		key, hex.EncodeToString(buf),
	)
	if err != nil {
		return "", fmt.Errorf("storing %s: %w", key, err)
	}

	var value string
	err = db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("querying %s: %w", key, err)
	}

	return value, nil
}
