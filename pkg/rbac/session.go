package rbac

import (
	"context"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/campuskit/campus/pkg/observability"
)

// Snapshot is the resolved authorization state for a single user at a
// point in time. Resolved distinguishes "still loading" from "loaded
// with no roles": a nil or unresolved snapshot must be treated as
// pending, never as denied or granted.
type Snapshot struct {
	UserID      int64         `json:"user_id"`
	RoleNames   []string      `json:"role_names"`
	Departments []string      `json:"departments"`
	Permissions PermissionSet `json:"permissions"`
	Resolved    bool          `json:"resolved"`
	FetchedAt   time.Time     `json:"fetched_at"`
}

// HasPermission reports whether the snapshot grants p. Unresolved
// snapshots grant nothing.
func (s *Snapshot) HasPermission(p Permission) bool {
	if s == nil || !s.Resolved {
		return false
	}
	return s.Permissions.Has(p)
}

// HasAnyPermission reports whether the snapshot grants at least one of
// perms.
func (s *Snapshot) HasAnyPermission(perms ...Permission) bool {
	if s == nil || !s.Resolved {
		return false
	}
	return s.Permissions.HasAny(perms...)
}

// HasRole reports whether the snapshot includes the named role.
func (s *Snapshot) HasRole(name string) bool {
	if s == nil || !s.Resolved {
		return false
	}
	for _, r := range s.RoleNames {
		if r == name {
			return true
		}
	}
	return false
}

// CanAccessModule reports whether the snapshot's permissions unlock m.
func (s *Snapshot) CanAccessModule(m Module) bool {
	if s == nil || !s.Resolved {
		return false
	}
	return CanAccessModule(s.Permissions, m)
}

// HighestRole returns the user's highest-precedence role or NoRole.
func (s *Snapshot) HighestRole() string {
	if s == nil || !s.Resolved {
		return NoRole
	}
	return HighestRole(s.RoleNames)
}

// InDepartment reports whether the snapshot carries the department.
func (s *Snapshot) InDepartment(dept string) bool {
	if s == nil || !s.Resolved {
		return false
	}
	for _, d := range s.Departments {
		if d == dept {
			return true
		}
	}
	return false
}

// AssignmentSource supplies a user's active assignments. *Store
// satisfies it; tests substitute fakes.
type AssignmentSource interface {
	ActiveAssignments(ctx context.Context, userID int64) ([]Assignment, error)
}

type cachedSnapshot struct {
	snapshot   *Snapshot
	generation uint64
}

// SessionResolver resolves and caches permission snapshots. Each user
// carries a generation counter bumped on invalidation; a resolution
// started against an older generation is discarded rather than cached,
// so a slow fetch can never clobber a fresher invalidation.
type SessionResolver struct {
	source  AssignmentSource
	logger  *observability.Logger
	metrics *observability.Metrics
	ttl     time.Duration

	mu          sync.Mutex
	cache       *lru.Cache[int64, cachedSnapshot]
	generations map[int64]uint64
}

// SessionResolverOptions configures a SessionResolver.
type SessionResolverOptions struct {
	CacheSize int
	TTL       time.Duration
	Metrics   *observability.Metrics
}

// NewSessionResolver creates a resolver over source.
func NewSessionResolver(source AssignmentSource, logger *observability.Logger, opts SessionResolverOptions) (*SessionResolver, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1024
	}
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	cache, err := lru.New[int64, cachedSnapshot](opts.CacheSize)
	if err != nil {
		return nil, err
	}
	return &SessionResolver{
		source:      source,
		logger:      logger,
		metrics:     opts.Metrics,
		ttl:         opts.TTL,
		cache:       cache,
		generations: make(map[int64]uint64),
	}, nil
}

// Resolve returns the user's snapshot, from cache when fresh. On a
// source error it returns a resolved, empty snapshot along with the
// error: callers always get something safe to evaluate, and evaluation
// of that snapshot denies everything.
func (r *SessionResolver) Resolve(ctx context.Context, userID int64) (*Snapshot, error) {
	r.mu.Lock()
	gen := r.generations[userID]
	if entry, ok := r.cache.Get(userID); ok && entry.generation == gen && time.Since(entry.snapshot.FetchedAt) < r.ttl {
		r.mu.Unlock()
		if r.metrics != nil {
			r.metrics.SnapshotCacheHits.Inc()
		}
		return entry.snapshot, nil
	}
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.SnapshotCacheMisses.Inc()
	}

	assignments, err := r.source.ActiveAssignments(ctx, userID)
	if err != nil {
		r.logger.FromContext(ctx).WithError(err).WithField("user_id", userID).
			Error("failed to resolve role assignments, denying by default")
		return emptySnapshot(userID), err
	}

	snap := buildSnapshot(userID, assignments)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generations[userID] != gen {
		// Invalidated while we were fetching; the result is stale.
		return snap, nil
	}
	r.cache.Add(userID, cachedSnapshot{snapshot: snap, generation: gen})
	return snap, nil
}

// Invalidate drops the user's cached snapshot and bumps their
// generation so in-flight resolutions cannot repopulate the cache with
// pre-invalidation data.
func (r *SessionResolver) Invalidate(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generations[userID]++
	r.cache.Remove(userID)
}

// Refresh invalidates and immediately re-resolves the user.
func (r *SessionResolver) Refresh(ctx context.Context, userID int64) (*Snapshot, error) {
	r.Invalidate(userID)
	return r.Resolve(ctx, userID)
}

func emptySnapshot(userID int64) *Snapshot {
	return &Snapshot{
		UserID:      userID,
		RoleNames:   []string{},
		Departments: []string{},
		Permissions: make(PermissionSet),
		Resolved:    true,
		FetchedAt:   time.Now(),
	}
}

func buildSnapshot(userID int64, assignments []Assignment) *Snapshot {
	roleSet := make(map[string]struct{})
	deptSet := make(map[string]struct{})
	for _, a := range assignments {
		roleSet[a.RoleName] = struct{}{}
		if a.Department != nil && *a.Department != "" {
			deptSet[*a.Department] = struct{}{}
		}
	}

	roles := make([]string, 0, len(roleSet))
	for r := range roleSet {
		roles = append(roles, r)
	}
	sort.Strings(roles)

	depts := make([]string, 0, len(deptSet))
	for d := range deptSet {
		depts = append(depts, d)
	}
	sort.Strings(depts)

	return &Snapshot{
		UserID:      userID,
		RoleNames:   roles,
		Departments: depts,
		Permissions: PermissionsFor(roles),
		Resolved:    true,
		FetchedAt:   time.Now(),
	}
}
