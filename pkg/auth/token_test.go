package auth

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func TestGenerateToken(t *testing.T) {
	tg := NewTokenGenerator()

	token, hash, prefix, err := tg.GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if !strings.HasPrefix(token, TokenPrefix) {
		t.Errorf("token %q missing prefix %q", token, TokenPrefix)
	}
	if !strings.HasPrefix(prefix, TokenPrefix) {
		t.Errorf("display prefix %q missing prefix %q", prefix, TokenPrefix)
	}
	if hash != tg.HashToken(token) {
		t.Error("returned hash does not match HashToken(token)")
	}
	if err := tg.ValidateTokenFormat(token); err != nil {
		t.Errorf("generated token fails format validation: %v", err)
	}
}

func TestGenerateTokenUnique(t *testing.T) {
	tg := NewTokenGenerator()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, _, _, err := tg.GenerateToken()
		if err != nil {
			t.Fatalf("GenerateToken failed: %v", err)
		}
		if seen[token] {
			t.Fatal("duplicate token generated")
		}
		seen[token] = true
	}
}

func TestValidateTokenFormat(t *testing.T) {
	tg := NewTokenGenerator()

	cases := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"missing prefix", "abc123", true},
		{"prefix only", "campus_", true},
		{"invalid base64", "campus_!!!not-base64!!!", true},
		{"valid", "campus_" + strings.Repeat("A", 43), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tg.ValidateTokenFormat(tc.token)
			if tc.wantErr && err == nil {
				t.Errorf("expected error for %q", tc.token)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error for %q: %v", tc.token, err)
			}
		})
	}
}

func setupAuthDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL,
			email TEXT,
			full_name TEXT,
			department TEXT,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE api_tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			token_hash TEXT NOT NULL UNIQUE,
			token_prefix TEXT NOT NULL,
			name TEXT NOT NULL,
			expires_at TIMESTAMP,
			last_used_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			revoked_at TIMESTAMP
		);
	`)
	if err != nil {
		t.Fatalf("failed to create test tables: %v", err)
	}
	return db
}

func issueToken(t *testing.T, db *sql.DB, userID int64, expiresAt, revokedAt *time.Time) string {
	t.Helper()
	tg := NewTokenGenerator()
	token, hash, prefix, err := tg.GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	_, err = db.Exec(
		`INSERT INTO api_tokens (user_id, token_hash, token_prefix, name, expires_at, revoked_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		userID, hash, prefix, "test token", expiresAt, revokedAt,
	)
	if err != nil {
		t.Fatalf("failed to insert token: %v", err)
	}
	return token
}

func TestTokenManagerValidateToken(t *testing.T) {
	db := setupAuthDB(t)
	ctx := context.Background()

	res, err := db.Exec(`INSERT INTO users (username, email, department) VALUES ('asha', 'asha@example.edu', 'physics')`)
	if err != nil {
		t.Fatalf("failed to insert user: %v", err)
	}
	userID, _ := res.LastInsertId()

	token := issueToken(t, db, userID, nil, nil)

	tm := NewTokenManager(db)
	authCtx, err := tm.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}

	if authCtx.User.Username != "asha" {
		t.Errorf("unexpected user: %+v", authCtx.User)
	}
	if authCtx.User.Department != "physics" {
		t.Errorf("department not loaded: %+v", authCtx.User)
	}
	if authCtx.Token.UserID != userID {
		t.Errorf("token user mismatch: %+v", authCtx.Token)
	}
}

func TestTokenManagerRejectsUnknownToken(t *testing.T) {
	db := setupAuthDB(t)
	tm := NewTokenManager(db)

	tg := NewTokenGenerator()
	token, _, _, _ := tg.GenerateToken()

	if _, err := tm.ValidateToken(context.Background(), token); err == nil {
		t.Error("expected error for unknown token")
	}
}

func TestTokenManagerRejectsRevokedToken(t *testing.T) {
	db := setupAuthDB(t)

	res, _ := db.Exec(`INSERT INTO users (username) VALUES ('ravi')`)
	userID, _ := res.LastInsertId()

	revoked := time.Now().Add(-time.Hour)
	token := issueToken(t, db, userID, nil, &revoked)

	tm := NewTokenManager(db)
	if _, err := tm.ValidateToken(context.Background(), token); err == nil {
		t.Error("expected error for revoked token")
	}
}

func TestTokenManagerRejectsExpiredToken(t *testing.T) {
	db := setupAuthDB(t)

	res, _ := db.Exec(`INSERT INTO users (username) VALUES ('mira')`)
	userID, _ := res.LastInsertId()

	expired := time.Now().Add(-time.Minute)
	token := issueToken(t, db, userID, &expired, nil)

	tm := NewTokenManager(db)
	if _, err := tm.ValidateToken(context.Background(), token); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestTokenManagerRejectsInactiveUser(t *testing.T) {
	db := setupAuthDB(t)

	res, _ := db.Exec(`INSERT INTO users (username, is_active) VALUES ('gone', 0)`)
	userID, _ := res.LastInsertId()

	token := issueToken(t, db, userID, nil, nil)

	tm := NewTokenManager(db)
	if _, err := tm.ValidateToken(context.Background(), token); err == nil {
		t.Error("expected error for deactivated user")
	}
}
