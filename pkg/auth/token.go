package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const (
	// TokenPrefix identifies campus tokens
	TokenPrefix = "campus_"
	// TokenLength is the number of random bytes (32 bytes = 256 bits)
	TokenLength = 32
)

// TokenGenerator generates and validates API tokens
type TokenGenerator struct{}

// NewTokenGenerator creates a new token generator
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{}
}

// GenerateToken creates a new API token.
// Format: campus_<base64url(32 random bytes)>. Only the SHA-256 hash is
// stored; the raw token is shown to the caller once.
func (tg *TokenGenerator) GenerateToken() (token string, tokenHash string, tokenPrefix string, err error) {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encodedToken := base64.RawURLEncoding.EncodeToString(randomBytes)
	fullToken := TokenPrefix + encodedToken

	hash := sha256.Sum256([]byte(fullToken))
	hashStr := hex.EncodeToString(hash[:])

	prefix := TokenPrefix
	if len(encodedToken) >= 8 {
		prefix = TokenPrefix + encodedToken[:8]
	}

	return fullToken, hashStr, prefix, nil
}

// HashToken computes the SHA-256 hash of a token for lookup
func (tg *TokenGenerator) HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateTokenFormat checks if a token has the correct shape
func (tg *TokenGenerator) ValidateTokenFormat(token string) error {
	if !strings.HasPrefix(token, TokenPrefix) {
		return fmt.Errorf("token must start with %q", TokenPrefix)
	}

	encodedPart := strings.TrimPrefix(token, TokenPrefix)
	if len(encodedPart) == 0 {
		return fmt.Errorf("token is too short")
	}

	if _, err := base64.RawURLEncoding.DecodeString(encodedPart); err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}

	return nil
}

// TokenManager validates bearer tokens against the database and loads the
// owning user.
type TokenManager struct {
	db        *sql.DB
	generator *TokenGenerator
}

// NewTokenManager creates a new token manager
func NewTokenManager(db *sql.DB) *TokenManager {
	return &TokenManager{
		db:        db,
		generator: NewTokenGenerator(),
	}
}

// ValidateToken checks a raw bearer token and returns the authenticated
// context. Expired and revoked tokens are rejected.
func (tm *TokenManager) ValidateToken(ctx context.Context, token string) (*Context, error) {
	if err := tm.generator.ValidateTokenFormat(token); err != nil {
		return nil, err
	}

	hash := tm.generator.HashToken(token)

	query := `
		SELECT t.id, t.user_id, t.token_prefix, t.name, t.expires_at, t.last_used_at, t.created_at, t.revoked_at,
		       u.id, u.username, u.email, u.full_name, u.department, u.is_active, u.created_at, u.updated_at
		FROM api_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token_hash = $1
	`

	var apiToken APIToken
	var user User
	var email, fullName, department sql.NullString
	var expiresAt, lastUsedAt, revokedAt sql.NullTime

	err := tm.db.QueryRowContext(ctx, query, hash).Scan(
		&apiToken.ID,
		&apiToken.UserID,
		&apiToken.TokenPrefix,
		&apiToken.Name,
		&expiresAt,
		&lastUsedAt,
		&apiToken.CreatedAt,
		&revokedAt,
		&user.ID,
		&user.Username,
		&email,
		&fullName,
		&department,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("unknown token")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	apiToken.TokenHash = hash
	if expiresAt.Valid {
		t := expiresAt.Time
		apiToken.ExpiresAt = &t
	}
	if lastUsedAt.Valid {
		t := lastUsedAt.Time
		apiToken.LastUsedAt = &t
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		apiToken.RevokedAt = &t
	}
	user.Email = email.String
	user.FullName = fullName.String
	user.Department = department.String

	if apiToken.RevokedAt != nil {
		return nil, fmt.Errorf("token has been revoked")
	}
	if apiToken.ExpiresAt != nil && apiToken.ExpiresAt.Before(time.Now()) {
		return nil, fmt.Errorf("token has expired")
	}
	if !user.IsActive {
		return nil, fmt.Errorf("user account is deactivated")
	}

	// best-effort usage stamp, failures don't block the request
	_, _ = tm.db.ExecContext(ctx, `UPDATE api_tokens SET last_used_at = CURRENT_TIMESTAMP WHERE id = $1`, apiToken.ID)

	return &Context{User: &user, Token: &apiToken}, nil
}
