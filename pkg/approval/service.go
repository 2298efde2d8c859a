package approval

import (
	"context"
	"strings"

	"github.com/campuskit/campus/pkg/observability"
	"github.com/campuskit/campus/pkg/rbac"
	"github.com/campuskit/campus/pkg/storage/postgres"
)

// ChangePublisher receives change-feed notifications. Best effort.
type ChangePublisher interface {
	PublishChange(ctx context.Context, table, op string, id int64)
}

// AuditSink records workflow actions.
type AuditSink interface {
	RecordEvent(ctx context.Context, actorID int64, action, targetType string, targetID int64, details map[string]any)
}

// Service owns the legality of every workflow decision. Handlers and
// tests call it with the actor's resolved snapshot; any policy or
// state violation comes back as a refused DecisionResult, while
// storage failures come back as errors.
type Service struct {
	store   *Store
	logger  *observability.Logger
	metrics *observability.Metrics
	feed    ChangePublisher
	audit   AuditSink
}

// NewService creates the workflow service. feed and audit may be nil.
func NewService(store *Store, logger *observability.Logger, metrics *observability.Metrics, feed ChangePublisher, audit AuditSink) *Service {
	return &Service{store: store, logger: logger, metrics: metrics, feed: feed, audit: audit}
}

// Submit moves the author's draft into review.
func (s *Service) Submit(ctx context.Context, t DocType, docID int64, actor *rbac.Snapshot) (DecisionResult, error) {
	doc, err := s.store.Get(ctx, t, docID)
	if err != nil {
		if postgres.IsNotFound(err) {
			return refused("Document not found."), nil
		}
		return DecisionResult{}, err
	}
	if doc.AuthorID != actor.UserID {
		return refused("Only the author can submit this document."), nil
	}
	if !CanTransition(t, doc.Status, StatusSubmitted) {
		return refused("This document cannot be submitted from its current state."), nil
	}

	updated, err := s.store.Transition(ctx, t, docID, doc.Status, StatusSubmitted)
	if err != nil {
		if postgres.IsNotFound(err) {
			// Lost a race with another transition.
			return refused("This document cannot be submitted from its current state."), nil
		}
		return DecisionResult{}, err
	}

	s.publish(ctx, t, updated.ID)
	s.record(ctx, actor.UserID, "approval.submit", t, updated.ID, map[string]any{
		"from": doc.Status, "to": StatusSubmitted,
	})
	return succeeded("Submitted for review."), nil
}

// Approve advances a document one review stage. The required
// permission depends on where the document currently sits: first-stage
// review needs the first-stage permission, the diary's final stage
// needs the principal's.
func (s *Service) Approve(ctx context.Context, t DocType, docID int64, actor *rbac.Snapshot) (DecisionResult, error) {
	return s.decide(ctx, t, docID, actor, DecisionApprove, "")
}

// Reject refuses a pending document. A non-empty reason is mandatory
// and is recorded with the decision.
func (s *Service) Reject(ctx context.Context, t DocType, docID int64, actor *rbac.Snapshot, reason string) (DecisionResult, error) {
	if strings.TrimSpace(reason) == "" {
		return refused("A rejection reason is required."), nil
	}
	return s.decide(ctx, t, docID, actor, DecisionReject, strings.TrimSpace(reason))
}

func (s *Service) decide(ctx context.Context, t DocType, docID int64, actor *rbac.Snapshot, decision Decision, reason string) (DecisionResult, error) {
	doc, err := s.store.Get(ctx, t, docID)
	if err != nil {
		if postgres.IsNotFound(err) {
			return s.observe(t, decision, refused("Document not found.")), nil
		}
		return DecisionResult{}, err
	}

	perm, reviewable := approvalPermission(t, doc.Status)
	if !reviewable {
		return s.observe(t, decision, refused("This document is not awaiting review.")), nil
	}
	if !actor.HasPermission(perm) {
		return s.observe(t, decision, refused("You are not authorized to review this document at its current stage.")), nil
	}
	if !s.inScope(actor, doc) {
		return s.observe(t, decision, refused("You can only review documents from your own department.")), nil
	}
	if doc.AuthorID == actor.UserID {
		return s.observe(t, decision, refused("You cannot review your own document.")), nil
	}

	to := StatusRejected
	if decision == DecisionApprove {
		var ok bool
		to, ok = NextOnApprove(t, doc.Status)
		if !ok {
			return s.observe(t, decision, refused("This document is not awaiting review.")), nil
		}
	}

	updated, err := s.store.Transition(ctx, t, docID, doc.Status, to)
	if err != nil {
		if postgres.IsNotFound(err) {
			return s.observe(t, decision, refused("The document changed state while your decision was in flight.")), nil
		}
		return DecisionResult{}, err
	}

	if _, err := s.store.RecordDecision(ctx, DecisionRecord{
		DocType:    t,
		DocID:      docID,
		DecidedBy:  actor.UserID,
		Decision:   decision,
		FromStatus: doc.Status,
		ToStatus:   to,
		Reason:     reason,
	}); err != nil {
		// The transition already happened; losing the history row is
		// log-worthy but must not report failure to the approver.
		s.logger.FromContext(ctx).WithError(err).
			WithFields(map[string]any{"doc_type": t, "doc_id": docID}).
			Error("failed to record approval decision")
	}

	s.publish(ctx, t, updated.ID)
	s.record(ctx, actor.UserID, "approval."+string(decision), t, docID, map[string]any{
		"from": doc.Status, "to": to, "reason": reason,
	})

	if decision == DecisionApprove {
		return s.observe(t, decision, succeeded("Approved.")), nil
	}
	return s.observe(t, decision, succeeded("Rejected.")), nil
}

// inScope limits department-stage reviewers to their own departments.
// Principal-stage and unscoped reviewers see everything.
func (s *Service) inScope(actor *rbac.Snapshot, doc Document) bool {
	if actor.HasPermission(rbac.PermApproveWorkDiaryPrin) || actor.HasPermission(rbac.PermManageUsersAll) {
		return true
	}
	if doc.Department == "" {
		return true
	}
	return actor.InDepartment(doc.Department)
}

// Pending lists the documents the actor is responsible for reviewing,
// derived from the approval permissions they hold.
func (s *Service) Pending(ctx context.Context, t DocType, actor *rbac.Snapshot, limit int) ([]Document, error) {
	statuses := PendingStatusesFor(t, actor.Permissions)
	if len(statuses) == 0 {
		return []Document{}, nil
	}
	var departments []string
	if !actor.HasPermission(rbac.PermApproveWorkDiaryPrin) && !actor.HasPermission(rbac.PermManageUsersAll) {
		departments = actor.Departments
	}
	return s.store.ListPending(ctx, t, statuses, departments, limit)
}

func (s *Service) observe(t DocType, decision Decision, result DecisionResult) DecisionResult {
	if s.metrics != nil {
		outcome := "refused"
		if result.Success {
			outcome = "applied"
		}
		s.metrics.ApprovalDecisionsTotal.WithLabelValues(string(t), string(decision), outcome).Inc()
	}
	return result
}

func (s *Service) publish(ctx context.Context, t DocType, id int64) {
	if s.feed != nil {
		s.feed.PublishChange(ctx, t.tableName(), "UPDATE", id)
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, t DocType, docID int64, details map[string]any) {
	if s.audit != nil {
		s.audit.RecordEvent(ctx, actorID, action, string(t), docID, details)
	}
}
