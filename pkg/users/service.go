package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campuskit/campus/pkg/auth"
	"github.com/campuskit/campus/pkg/observability"
	"github.com/campuskit/campus/pkg/rbac"
)

// ChangePublisher receives change-feed notifications. Best effort.
type ChangePublisher interface {
	PublishChange(ctx context.Context, table, op string, id int64)
}

// AuditSink records administrative actions.
type AuditSink interface {
	RecordEvent(ctx context.Context, actorID int64, action, targetType string, targetID int64, details map[string]any)
}

// SnapshotSource resolves and invalidates cached permission
// snapshots. *rbac.SessionResolver satisfies it.
type SnapshotSource interface {
	Resolve(ctx context.Context, userID int64) (*rbac.Snapshot, error)
	Invalidate(userID int64)
}

// ErrOutOfScope is returned when an actor's management scope does not
// reach the target user.
var ErrOutOfScope = errors.New("target user is outside your management scope")

// Service applies management-scope policy over the user store.
type Service struct {
	store     *Store
	generator *auth.TokenGenerator
	sessions  SnapshotSource
	logger    *observability.Logger
	feed      ChangePublisher
	audit     AuditSink
}

// NewService creates the user management service. feed and audit may
// be nil.
func NewService(store *Store, sessions SnapshotSource, logger *observability.Logger, feed ChangePublisher, audit AuditSink) *Service {
	return &Service{
		store:     store,
		generator: auth.NewTokenGenerator(),
		sessions:  sessions,
		logger:    logger,
		feed:      feed,
		audit:     audit,
	}
}

// CanManageTarget reports whether the actor's snapshot allows managing
// the target user, by scope: all-scope managers act on anyone,
// department-scope managers only within their own departments and only
// on users whose highest role ranks strictly below their own, and
// nobody manages themselves through this surface.
func CanManageTarget(actor *rbac.Snapshot, target auth.User, targetSnap *rbac.Snapshot) bool {
	if actor == nil || actor.UserID == target.ID {
		return false
	}
	switch rbac.ManagementScopeFor(actor.Permissions) {
	case rbac.ScopeAll:
		return true
	case rbac.ScopeDepartment:
		if target.Department == "" || !actor.InDepartment(target.Department) {
			return false
		}
		targetRole, _ := rbac.LookupRole(targetSnap.HighestRole())
		ownRole, _ := rbac.LookupRole(actor.HighestRole())
		return targetRole.Rank < ownRole.Rank
	default:
		return false
	}
}

// Create registers a new account. Department-scoped managers can only
// create users inside their own departments.
func (s *Service) Create(ctx context.Context, actor *rbac.Snapshot, username, email, fullName, department string) (auth.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return auth.User{}, fmt.Errorf("username is required")
	}
	if rbac.ManagementScopeFor(actor.Permissions) == rbac.ScopeDepartment {
		if department == "" || !actor.InDepartment(department) {
			return auth.User{}, ErrOutOfScope
		}
	}

	u, err := s.store.Create(ctx, username, email, fullName, department)
	if err != nil {
		return auth.User{}, err
	}

	s.publish(ctx, "users", "INSERT", u.ID)
	s.record(ctx, actor.UserID, "user.create", u.ID, map[string]any{
		"username": username, "department": department,
	})
	return u, nil
}

// SetActive deactivates or reactivates a target account. Deactivation
// invalidates the target's permission snapshot at once so open
// sessions lose access on their next authorization check.
func (s *Service) SetActive(ctx context.Context, actor *rbac.Snapshot, targetID int64, active bool) error {
	target, err := s.store.Get(ctx, targetID)
	if err != nil {
		return err
	}
	targetSnap, err := s.sessions.Resolve(ctx, targetID)
	if err != nil {
		return fmt.Errorf("resolve target roles: %w", err)
	}
	if !CanManageTarget(actor, target, targetSnap) {
		return ErrOutOfScope
	}

	if err := s.store.SetActive(ctx, targetID, active); err != nil {
		return err
	}

	s.sessions.Invalidate(targetID)
	s.publish(ctx, "users", "UPDATE", targetID)
	action := "user.deactivate"
	if active {
		action = "user.reactivate"
	}
	s.record(ctx, actor.UserID, action, targetID, nil)
	return nil
}

// IssueToken mints a bearer token for the target user and stores only
// its hash. The plaintext is returned exactly once.
func (s *Service) IssueToken(ctx context.Context, actor *rbac.Snapshot, targetID int64, name string, ttl time.Duration) (string, auth.APIToken, error) {
	target, err := s.store.Get(ctx, targetID)
	if err != nil {
		return "", auth.APIToken{}, err
	}
	if actor.UserID != targetID {
		targetSnap, err := s.sessions.Resolve(ctx, targetID)
		if err != nil {
			return "", auth.APIToken{}, fmt.Errorf("resolve target roles: %w", err)
		}
		if !CanManageTarget(actor, target, targetSnap) {
			return "", auth.APIToken{}, ErrOutOfScope
		}
	}
	if !target.IsActive {
		return "", auth.APIToken{}, fmt.Errorf("cannot issue a token for an inactive user")
	}

	plaintext, hash, prefix, err := s.generator.GenerateToken()
	if err != nil {
		return "", auth.APIToken{}, fmt.Errorf("generate token: %w", err)
	}

	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}
	tok, err := s.store.InsertToken(ctx, targetID, hash, prefix, name, expiresAt)
	if err != nil {
		return "", auth.APIToken{}, err
	}

	s.record(ctx, actor.UserID, "token.issue", targetID, map[string]any{"token_id": tok.ID, "name": name})
	return plaintext, tok, nil
}

func (s *Service) publish(ctx context.Context, table, op string, id int64) {
	if s.feed != nil {
		s.feed.PublishChange(ctx, table, op, id)
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, targetID int64, details map[string]any) {
	if s.audit != nil {
		s.audit.RecordEvent(ctx, actorID, action, "user", targetID, details)
	}
}
