package events

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/campuskit/campus/pkg/storage/postgres"
)

// Store persists events and notices.
type Store struct {
	db *sql.DB
}

// NewStore creates a store backed by db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const eventColumns = `id, title, description, location, starts_at, ends_at, created_by, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (Event, error) {
	var e Event
	var description, location sql.NullString
	err := row.Scan(&e.ID, &e.Title, &description, &location,
		&e.StartsAt, &e.EndsAt, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return Event{}, err
	}
	e.Description = description.String
	e.Location = location.String
	return e, nil
}

// CreateEvent inserts an event.
func (s *Store) CreateEvent(ctx context.Context, e Event) (Event, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO events (title, description, location, starts_at, ends_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+eventColumns,
		e.Title, e.Description, e.Location, e.StartsAt, e.EndsAt, e.CreatedBy)
	out, err := scanEvent(row)
	if err != nil {
		return Event{}, postgres.ClassifyError(fmt.Errorf("insert event: %w", err))
	}
	return out, nil
}

// GetEvent fetches one event.
func (s *Store) GetEvent(ctx context.Context, id int64) (Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if err != nil {
		return Event{}, postgres.ClassifyError(err)
	}
	return e, nil
}

// ListEvents returns events ordered by start time, soonest first.
func (s *Store) ListEvents(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		ORDER BY starts_at, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, postgres.ClassifyError(fmt.Errorf("list events: %w", err))
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateEvent replaces an event's fields.
func (s *Store) UpdateEvent(ctx context.Context, e Event) (Event, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE events
		SET title = $1, description = $2, location = $3, starts_at = $4, ends_at = $5,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $6
		RETURNING `+eventColumns,
		e.Title, e.Description, e.Location, e.StartsAt, e.EndsAt, e.ID)
	out, err := scanEvent(row)
	if err != nil {
		return Event{}, postgres.ClassifyError(err)
	}
	return out, nil
}

// DeleteEvent removes an event.
func (s *Store) DeleteEvent(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return postgres.ClassifyError(fmt.Errorf("delete event: %w", err))
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

const noticeColumns = `id, title, body, audience, created_by, created_at, updated_at`

func scanNotice(row interface{ Scan(...any) error }) (Notice, error) {
	var n Notice
	err := row.Scan(&n.ID, &n.Title, &n.Body, &n.Audience,
		&n.CreatedBy, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

// CreateNotice inserts a notice.
func (s *Store) CreateNotice(ctx context.Context, n Notice) (Notice, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO notices (title, body, audience, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING `+noticeColumns,
		n.Title, n.Body, n.Audience, n.CreatedBy)
	out, err := scanNotice(row)
	if err != nil {
		return Notice{}, postgres.ClassifyError(fmt.Errorf("insert notice: %w", err))
	}
	return out, nil
}

// ListNotices returns notices for an audience, newest first. Audience
// "all" notices are always included.
func (s *Store) ListNotices(ctx context.Context, audience string, limit int) ([]Notice, error) {
	query := `SELECT ` + noticeColumns + ` FROM notices`
	args := []any{}
	if audience != "" && audience != AudienceAll {
		args = append(args, audience)
		query += " WHERE audience IN ($1, 'all')"
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, postgres.ClassifyError(fmt.Errorf("list notices: %w", err))
	}
	defer rows.Close()

	out := []Notice{}
	for rows.Next() {
		n, err := scanNotice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notice: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// DeleteNotice removes a notice.
func (s *Store) DeleteNotice(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notices WHERE id = $1`, id)
	if err != nil {
		return postgres.ClassifyError(fmt.Errorf("delete notice: %w", err))
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
