package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/campuskit/campus/pkg/contextkeys"
	"github.com/campuskit/campus/pkg/observability"
	"github.com/campuskit/campus/pkg/storage/postgres"
)

// Recorder writes events to the audit trail.
type Recorder struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewRecorder creates a database-backed recorder.
func NewRecorder(db *sql.DB, logger *observability.Logger) *Recorder {
	return &Recorder{db: db, logger: logger}
}

// RecordEvent appends an event. Failures are logged and swallowed so
// the action being audited never fails on account of its trail.
func (r *Recorder) RecordEvent(ctx context.Context, actorID int64, action, targetType string, targetID int64, details map[string]any) {
	var payload []byte
	if details != nil {
		var err error
		payload, err = json.Marshal(details)
		if err != nil {
			r.logger.FromContext(ctx).WithError(err).WithField("action", action).
				Error("failed to encode audit details")
			payload = []byte(`{}`)
		}
	} else {
		payload = []byte(`{}`)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events (actor_id, action, target_type, target_id, request_id, details)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		actorID, action, targetType, targetID, contextkeys.GetRequestID(ctx), payload)
	if err != nil {
		r.logger.FromContext(ctx).WithError(err).WithField("action", action).
			Error("failed to record audit event")
	}
}

// ListQuery filters the audit trail.
type ListQuery struct {
	ActorID    int64
	Action     string
	TargetType string
	Limit      int
}

// List returns matching events, newest first.
func (r *Recorder) List(ctx context.Context, q ListQuery) ([]Event, error) {
	if q.Limit <= 0 {
		q.Limit = 100
	}

	query := `SELECT id, actor_id, action, target_type, target_id, request_id, details, created_at
		FROM audit_events WHERE 1=1`
	args := []any{}
	if q.ActorID != 0 {
		args = append(args, q.ActorID)
		query += fmt.Sprintf(" AND actor_id = $%d", len(args))
	}
	if q.Action != "" {
		args = append(args, q.Action)
		query += fmt.Sprintf(" AND action = $%d", len(args))
	}
	if q.TargetType != "" {
		args = append(args, q.TargetType)
		query += fmt.Sprintf(" AND target_type = $%d", len(args))
	}
	args = append(args, q.Limit)
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, postgres.ClassifyError(fmt.Errorf("query audit events: %w", err))
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var e Event
		var details []byte
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.TargetType, &e.TargetID,
			&e.RequestID, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Details = json.RawMessage(details)
		out = append(out, e)
	}
	return out, rows.Err()
}
