package users

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/campuskit/campus/pkg/auth"
	"github.com/campuskit/campus/pkg/storage/postgres"
)

// Store persists user accounts and their API tokens.
type Store struct {
	db *sql.DB
}

// NewStore creates a user store backed by db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const userColumns = `id, username, email, full_name, department, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (auth.User, error) {
	var u auth.User
	var email, fullName, department sql.NullString
	err := row.Scan(&u.ID, &u.Username, &email, &fullName, &department,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return auth.User{}, err
	}
	u.Email = email.String
	u.FullName = fullName.String
	u.Department = department.String
	return u, nil
}

// Create inserts a new active user.
func (s *Store) Create(ctx context.Context, username, email, fullName, department string) (auth.User, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, full_name, department, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING `+userColumns,
		username, email, fullName, department)
	u, err := scanUser(row)
	if err != nil {
		return auth.User{}, postgres.ClassifyError(fmt.Errorf("insert user: %w", err))
	}
	return u, nil
}

// Get fetches a user by id.
func (s *Store) Get(ctx context.Context, id int64) (auth.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return auth.User{}, postgres.ClassifyError(err)
	}
	return u, nil
}

// GetByUsername fetches a user by username.
func (s *Store) GetByUsername(ctx context.Context, username string) (auth.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	u, err := scanUser(row)
	if err != nil {
		return auth.User{}, postgres.ClassifyError(err)
	}
	return u, nil
}

// List returns users, optionally filtered by department and active
// state, ordered by username.
func (s *Store) List(ctx context.Context, department string, activeOnly bool, limit int) ([]auth.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE 1=1`
	args := []any{}
	if department != "" {
		args = append(args, department)
		query += fmt.Sprintf(" AND department = $%d", len(args))
	}
	if activeOnly {
		query += " AND is_active"
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY username LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, postgres.ClassifyError(fmt.Errorf("list users: %w", err))
	}
	defer rows.Close()

	out := []auth.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// SetActive flips a user's active flag. Deactivating an inactive user
// (or the reverse) returns ErrNotFound so callers can tell a no-op
// from a change.
func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET is_active = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND is_active != $1`, active, id)
	if err != nil {
		return postgres.ClassifyError(fmt.Errorf("set user active: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return postgres.ErrNotFound
	}
	return nil
}

// InsertToken stores a new API token for a user. Only the hash is
// persisted.
func (s *Store) InsertToken(ctx context.Context, userID int64, tokenHash, tokenPrefix, name string, expiresAt *time.Time) (auth.APIToken, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO api_tokens (user_id, token_hash, token_prefix, name, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, token_prefix, name, expires_at, last_used_at, created_at, revoked_at`,
		userID, tokenHash, tokenPrefix, name, expiresAt)

	var tok auth.APIToken
	var tokenExpires, lastUsed, revoked sql.NullTime
	if err := row.Scan(&tok.ID, &tok.UserID, &tok.TokenPrefix, &tok.Name,
		&tokenExpires, &lastUsed, &tok.CreatedAt, &revoked); err != nil {
		return auth.APIToken{}, postgres.ClassifyError(fmt.Errorf("insert token: %w", err))
	}
	if tokenExpires.Valid {
		tok.ExpiresAt = &tokenExpires.Time
	}
	if lastUsed.Valid {
		tok.LastUsedAt = &lastUsed.Time
	}
	if revoked.Valid {
		tok.RevokedAt = &revoked.Time
	}
	return tok, nil
}

// RevokeToken marks a token revoked. Revoking an already revoked or
// missing token returns ErrNotFound.
func (s *Store) RevokeToken(ctx context.Context, tokenID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE api_tokens
		SET revoked_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND revoked_at IS NULL`, tokenID)
	if err != nil {
		return postgres.ClassifyError(fmt.Errorf("revoke token: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return postgres.ErrNotFound
	}
	return nil
}
