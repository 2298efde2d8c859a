package rbac

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/campuskit/campus/pkg/storage/postgres"
)

// Assignment links a user to a role, optionally scoped to a department.
// Assignments are soft-revoked: revoked rows stay in place with
// active=false so the history remains auditable.
type Assignment struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	RoleName   string     `json:"role_name"`
	Department *string    `json:"department,omitempty"`
	Active     bool       `json:"active"`
	AssignedBy *int64     `json:"assigned_by,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

// Store persists role assignments.
type Store struct {
	db *sql.DB
}

// NewStore creates an assignment store backed by db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const assignmentColumns = `id, user_id, role_name, department, active, assigned_by, expires_at, created_at, revoked_at`

func scanAssignment(row interface{ Scan(...any) error }) (Assignment, error) {
	var a Assignment
	err := row.Scan(&a.ID, &a.UserID, &a.RoleName, &a.Department, &a.Active,
		&a.AssignedBy, &a.ExpiresAt, &a.CreatedAt, &a.RevokedAt)
	return a, err
}

// ActiveAssignments returns the user's active, unexpired assignments.
func (s *Store) ActiveAssignments(ctx context.Context, userID int64) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+assignmentColumns+`
		FROM role_assignments
		WHERE user_id = $1
		  AND active
		  AND (expires_at IS NULL OR expires_at > CURRENT_TIMESTAMP)
		ORDER BY id`, userID)
	if err != nil {
		return nil, postgres.ClassifyError(fmt.Errorf("query active assignments: %w", err))
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AssignmentsForUser returns every assignment for the user, active and
// revoked, newest first.
func (s *Store) AssignmentsForUser(ctx context.Context, userID int64) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+assignmentColumns+`
		FROM role_assignments
		WHERE user_id = $1
		ORDER BY id DESC`, userID)
	if err != nil {
		return nil, postgres.ClassifyError(fmt.Errorf("query assignments: %w", err))
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Assign grants roleName to userID. Re-assigning an already-active
// role is idempotent and returns the existing row.
func (s *Store) Assign(ctx context.Context, userID int64, roleName string, department *string, assignedBy *int64, expiresAt *time.Time) (Assignment, error) {
	if !IsKnownRole(roleName) {
		return Assignment{}, fmt.Errorf("unknown role %q", roleName)
	}

	existing, err := s.activeAssignment(ctx, userID, roleName, department)
	if err == nil {
		return existing, nil
	}
	if !postgres.IsNotFound(err) {
		return Assignment{}, err
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO role_assignments (user_id, role_name, department, active, assigned_by, expires_at)
		VALUES ($1, $2, $3, TRUE, $4, $5)
		RETURNING `+assignmentColumns, userID, roleName, department, assignedBy, expiresAt)
	a, err := scanAssignment(row)
	if err != nil {
		return Assignment{}, postgres.ClassifyError(fmt.Errorf("insert assignment: %w", err))
	}
	return a, nil
}

func (s *Store) activeAssignment(ctx context.Context, userID int64, roleName string, department *string) (Assignment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+assignmentColumns+`
		FROM role_assignments
		WHERE user_id = $1 AND role_name = $2
		  AND (department = $3 OR (department IS NULL AND $3 IS NULL))
		  AND active
		LIMIT 1`, userID, roleName, department)
	a, err := scanAssignment(row)
	if err != nil {
		return Assignment{}, postgres.ClassifyError(err)
	}
	return a, nil
}

// Revoke soft-revokes an active assignment. Revoking an already
// revoked or missing assignment returns ErrNotFound.
func (s *Store) Revoke(ctx context.Context, assignmentID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE role_assignments
		SET active = FALSE, revoked_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND active`, assignmentID)
	if err != nil {
		return postgres.ClassifyError(fmt.Errorf("revoke assignment: %w", err))
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

// AssignmentByID fetches a single assignment.
func (s *Store) AssignmentByID(ctx context.Context, assignmentID int64) (Assignment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+assignmentColumns+`
		FROM role_assignments
		WHERE id = $1`, assignmentID)
	a, err := scanAssignment(row)
	if err != nil {
		return Assignment{}, postgres.ClassifyError(err)
	}
	return a, nil
}

// DeactivateExpired soft-revokes assignments whose expiry has passed
// and returns the user IDs that were touched so their snapshots can be
// invalidated.
func (s *Store) DeactivateExpired(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE role_assignments
		SET active = FALSE, revoked_at = CURRENT_TIMESTAMP
		WHERE active AND expires_at IS NOT NULL AND expires_at <= CURRENT_TIMESTAMP
		RETURNING user_id`)
	if err != nil {
		return nil, postgres.ClassifyError(fmt.Errorf("deactivate expired assignments: %w", err))
	}
	defer rows.Close()

	var userIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, id)
	}
	return userIDs, rows.Err()
}
