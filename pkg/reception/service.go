package reception

import (
	"context"

	"github.com/google/uuid"

	"github.com/campuskit/campus/pkg/observability"
	"github.com/campuskit/campus/pkg/rbac"
	"github.com/campuskit/campus/pkg/storage/postgres"
)

// AuditSink records front-desk actions.
type AuditSink interface {
	RecordEvent(ctx context.Context, actorID int64, action, targetType string, targetID int64, details map[string]any)
}

// Service implements the front-desk procedures.
type Service struct {
	store  *Store
	logger *observability.Logger
	audit  AuditSink
}

// NewService creates the reception service. audit may be nil.
func NewService(store *Store, logger *observability.Logger, audit AuditSink) *Service {
	return &Service{store: store, logger: logger, audit: audit}
}

// LookupStudent finds the student with the given admission number. An
// unknown number is a logical failure, not an error.
func (s *Service) LookupStudent(ctx context.Context, admissionNo string) (LookupResult, error) {
	student, err := s.store.StudentByAdmissionNo(ctx, admissionNo)
	if err != nil {
		if postgres.IsNotFound(err) {
			return LookupResult{Success: false, Message: "No student found with that admission number."}, nil
		}
		return LookupResult{}, err
	}
	return LookupResult{Success: true, Student: &student}, nil
}

// IssueLatePass issues a pass to the student with the given admission
// number. Unknown or inactive students are logical failures.
func (s *Service) IssueLatePass(ctx context.Context, actor *rbac.Snapshot, admissionNo, reason string) (IssueResult, error) {
	student, err := s.store.StudentByAdmissionNo(ctx, admissionNo)
	if err != nil {
		if postgres.IsNotFound(err) {
			return IssueResult{Success: false, Message: "No student found with that admission number."}, nil
		}
		return IssueResult{}, err
	}
	if !student.IsActive {
		return IssueResult{Success: false, Message: "This student record is inactive."}, nil
	}

	pass, err := s.store.InsertLatePass(ctx, uuid.NewString(), student.ID, actor.UserID, reason)
	if err != nil {
		return IssueResult{}, err
	}

	if s.audit != nil {
		s.audit.RecordEvent(ctx, actor.UserID, "reception.late_pass", "student", student.ID,
			map[string]any{"serial": pass.Serial, "admission_no": admissionNo})
	}
	return IssueResult{Success: true, Message: "Late pass issued.", Pass: &pass}, nil
}
