package store

import (
	"bytes"
	"context"
	"testing"

	"github.com/erazemk/scanpoint/internal/db"
)

func TestGetJWTSecret_GeneratesAndPersists(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	secret1, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if len(secret1) != 64 { // 32 bytes = 64 hex chars
		t.Fatalf("expected 64 hex chars, got %d", len(secret1))
	}

	secret2, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if secret1 != secret2 {
		t.Fatalf("expected same secret, got %q and %q", secret1, secret2)
	}
}

func TestGetTokenKey_IndependentOfJWTSecret(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	key1, err := GetTokenKey(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if len(key1) != 32 {
		t.Fatalf("expected 32-byte key, got %d", len(key1))
	}
	key2, _ := GetTokenKey(ctx, database)
	if !bytes.Equal(key1, key2) {
		t.Fatal("expected the same key on second call")
	}

	secret, _ := GetJWTSecret(ctx, database)
	if secret == string(key1) {
		t.Fatal("token key must differ from jwt secret")
	}
}
