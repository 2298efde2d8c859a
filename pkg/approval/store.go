package approval

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/campuskit/campus/pkg/storage/postgres"
)

// Store persists lesson planners, work diaries and their decision
// history. Both document types share a column layout, so queries are
// built against the type's table.
type Store struct {
	db *sql.DB
}

// NewStore creates a document store backed by db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const documentColumns = `id, author_id, department, title, payload, status, submitted_at, created_at, updated_at`

func scanDocument(t DocType, row interface{ Scan(...any) error }) (Document, error) {
	var d Document
	var payload []byte
	err := row.Scan(&d.ID, &d.AuthorID, &d.Department, &d.Title, &payload,
		&d.Status, &d.SubmittedAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return Document{}, err
	}
	d.Type = t
	d.Payload = json.RawMessage(payload)
	return d, nil
}

// Create inserts a new draft document.
func (s *Store) Create(ctx context.Context, t DocType, authorID int64, department, title string, payload json.RawMessage) (Document, error) {
	if payload == nil {
		payload = json.RawMessage(`{}`)
	}
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (author_id, department, title, payload, status)
		VALUES ($1, $2, $3, $4, '%s')
		RETURNING `+documentColumns, t.tableName(), StatusDraft),
		authorID, department, title, []byte(payload))
	d, err := scanDocument(t, row)
	if err != nil {
		return Document{}, postgres.ClassifyError(fmt.Errorf("insert %s: %w", t, err))
	}
	return d, nil
}

// Get fetches a single document.
func (s *Store) Get(ctx context.Context, t DocType, id int64) (Document, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT `+documentColumns+` FROM %s WHERE id = $1`, t.tableName()), id)
	d, err := scanDocument(t, row)
	if err != nil {
		return Document{}, postgres.ClassifyError(err)
	}
	return d, nil
}

// UpdateContent replaces a document's title and payload. Only drafts
// are editable, and only by their author; the caller enforces
// authorship, the store enforces status.
func (s *Store) UpdateContent(ctx context.Context, t DocType, id int64, title string, payload json.RawMessage) (Document, error) {
	if payload == nil {
		payload = json.RawMessage(`{}`)
	}
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		UPDATE %s
		SET title = $1, payload = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3 AND status = '%s'
		RETURNING `+documentColumns, t.tableName(), StatusDraft),
		title, []byte(payload), id)
	d, err := scanDocument(t, row)
	if err != nil {
		return Document{}, postgres.ClassifyError(err)
	}
	return d, nil
}

// Transition moves a document from exactly the expected status to the
// next one. The status predicate in the UPDATE makes the check-and-set
// atomic: a concurrent decision loses and sees ErrNotFound.
func (s *Store) Transition(ctx context.Context, t DocType, id int64, from, to Status) (Document, error) {
	stampSubmitted := ""
	if to == StatusSubmitted {
		stampSubmitted = ", submitted_at = CURRENT_TIMESTAMP"
	}
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		UPDATE %s
		SET status = $1, updated_at = CURRENT_TIMESTAMP%s
		WHERE id = $2 AND status = $3
		RETURNING `+documentColumns, t.tableName(), stampSubmitted),
		to, id, from)
	d, err := scanDocument(t, row)
	if err != nil {
		return Document{}, postgres.ClassifyError(err)
	}
	return d, nil
}

// ListByAuthor returns an author's documents, newest first.
func (s *Store) ListByAuthor(ctx context.Context, t DocType, authorID int64, limit int) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT `+documentColumns+`
		FROM %s
		WHERE author_id = $1
		ORDER BY id DESC
		LIMIT $2`, t.tableName()), authorID, limit)
	if err != nil {
		return nil, postgres.ClassifyError(fmt.Errorf("list %s by author: %w", t, err))
	}
	return collectDocuments(t, rows)
}

// ListPending returns documents awaiting review in any of the given
// statuses, newest submission first, capped at limit. An empty
// departments list matches all departments.
func (s *Store) ListPending(ctx context.Context, t DocType, statuses []Status, departments []string, limit int) ([]Document, error) {
	if len(statuses) == 0 {
		return []Document{}, nil
	}

	args := []any{}
	placeholders := make([]string, len(statuses))
	for i, st := range statuses {
		args = append(args, string(st))
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	query := fmt.Sprintf(`
		SELECT `+documentColumns+`
		FROM %s
		WHERE status IN (%s)`, t.tableName(), strings.Join(placeholders, ", "))
	if len(departments) > 0 {
		deptPlaceholders := make([]string, len(departments))
		for i, dept := range departments {
			args = append(args, dept)
			deptPlaceholders[i] = fmt.Sprintf("$%d", len(args))
		}
		query += fmt.Sprintf(" AND department IN (%s)", strings.Join(deptPlaceholders, ", "))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY submitted_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, postgres.ClassifyError(fmt.Errorf("list pending %s: %w", t, err))
	}
	return collectDocuments(t, rows)
}

func collectDocuments(t DocType, rows *sql.Rows) ([]Document, error) {
	defer rows.Close()
	out := []Document{}
	for rows.Next() {
		d, err := scanDocument(t, rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", t, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// RecordDecision appends a decision to the document's history.
func (s *Store) RecordDecision(ctx context.Context, rec DecisionRecord) (DecisionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO approval_decisions (doc_type, doc_id, decided_by, decision, from_status, to_status, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		rec.DocType, rec.DocID, rec.DecidedBy, rec.Decision, rec.FromStatus, rec.ToStatus, rec.Reason)
	if err := row.Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return DecisionRecord{}, postgres.ClassifyError(fmt.Errorf("record decision: %w", err))
	}
	return rec, nil
}

// DecisionHistory returns a document's decisions, oldest first.
func (s *Store) DecisionHistory(ctx context.Context, t DocType, docID int64) ([]DecisionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, doc_type, doc_id, decided_by, decision, from_status, to_status, reason, created_at
		FROM approval_decisions
		WHERE doc_type = $1 AND doc_id = $2
		ORDER BY id`, t, docID)
	if err != nil {
		return nil, postgres.ClassifyError(fmt.Errorf("query decision history: %w", err))
	}
	defer rows.Close()

	out := []DecisionRecord{}
	for rows.Next() {
		var rec DecisionRecord
		if err := rows.Scan(&rec.ID, &rec.DocType, &rec.DocID, &rec.DecidedBy,
			&rec.Decision, &rec.FromStatus, &rec.ToStatus, &rec.Reason, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
