package rbac

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/campuskit/campus/pkg/httputil"
	"github.com/campuskit/campus/pkg/observability"
	"github.com/campuskit/campus/pkg/storage/postgres"
)

// ChangePublisher receives change-feed notifications for mutated rows.
// Publishing is best effort; implementations must not fail the mutation.
type ChangePublisher interface {
	PublishChange(ctx context.Context, table, op string, id int64)
}

// AuditSink records administrative actions.
type AuditSink interface {
	RecordEvent(ctx context.Context, actorID int64, action, targetType string, targetID int64, details map[string]any)
}

// Handler serves the role administration API.
type Handler struct {
	store    *Store
	sessions *SessionResolver
	logger   *observability.Logger
	metrics  *observability.Metrics
	feed     ChangePublisher
	audit    AuditSink
}

// NewHandler creates the role administration handler. feed and audit
// may be nil.
func NewHandler(store *Store, sessions *SessionResolver, logger *observability.Logger, metrics *observability.Metrics, feed ChangePublisher, audit AuditSink) *Handler {
	return &Handler{store: store, sessions: sessions, logger: logger, metrics: metrics, feed: feed, audit: audit}
}

// RegisterRoutes mounts the role administration routes. The catalog
// and self-check routes need only authentication; mutation routes run
// behind the user-management gate.
func (h *Handler) RegisterRoutes(router *mux.Router, gate *Gate) {
	router.HandleFunc("/rbac/roles", h.ListRoles).Methods(http.MethodGet)
	router.HandleFunc("/rbac/modules", h.ListModules).Methods(http.MethodGet)
	router.HandleFunc("/rbac/check", h.Check).Methods(http.MethodPost)
	router.HandleFunc("/rbac/me", h.MySnapshot).Methods(http.MethodGet)

	manage := gate.Require(Requirement{
		Module:        ModuleUserManagement,
		AnyPermission: []Permission{PermAssignRoles},
	})
	router.Handle("/users/{id:[0-9]+}/roles", manage(http.HandlerFunc(h.ListUserRoles))).Methods(http.MethodGet)
	router.Handle("/users/{id:[0-9]+}/roles", manage(http.HandlerFunc(h.AssignRole))).Methods(http.MethodPost)
	router.Handle("/rbac/assignments/{id:[0-9]+}", manage(http.HandlerFunc(h.RevokeAssignment))).Methods(http.MethodDelete)
	router.Handle("/users/{id:[0-9]+}/permissions", manage(http.HandlerFunc(h.UserPermissions))).Methods(http.MethodGet)
}

// ListRoles returns the built-in role catalog, highest rank first.
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"roles": Roles()})
}

type moduleInfo struct {
	Module      Module       `json:"module"`
	DisplayName string       `json:"display_name"`
	Grants      []Permission `json:"granting_permissions"`
}

// ListModules returns every module with the permissions that unlock it.
func (h *Handler) ListModules(w http.ResponseWriter, r *http.Request) {
	modules := Modules()
	out := make([]moduleInfo, 0, len(modules))
	for _, m := range modules {
		out = append(out, moduleInfo{
			Module:      m,
			DisplayName: ModuleDisplayName(m),
			Grants:      ModuleGrants(m),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"modules": out})
}

type checkRequest struct {
	Permission Permission `json:"permission,omitempty"`
	Module     Module     `json:"module,omitempty"`
}

type checkResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Check evaluates a single permission or module against the caller's
// own snapshot. Unlike the gate middleware a negative answer here is a
// 200 with allowed=false: the caller asked a question, they were not
// refused a resource.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	snap, err := h.resolveCaller(r)
	if err != nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req checkRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Permission == "" && req.Module == "" {
		httputil.WriteBadRequest(w, "permission or module is required")
		return
	}

	resp := checkResponse{Allowed: true}
	switch {
	case req.Permission != "" && !snap.HasPermission(req.Permission):
		resp = checkResponse{Allowed: false, Reason: "permission not granted"}
	case req.Module != "" && !snap.CanAccessModule(req.Module):
		resp = checkResponse{
			Allowed: false,
			Reason:  Requirement{Module: req.Module}.DenialMessage(),
		}
	}
	if h.metrics != nil && req.Permission != "" {
		h.metrics.PermissionChecksTotal.WithLabelValues(string(req.Permission), boolLabel(resp.Allowed)).Inc()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type snapshotResponse struct {
	UserID      int64        `json:"user_id"`
	Roles       []string     `json:"roles"`
	HighestRole string       `json:"highest_role"`
	DisplayName string       `json:"display_name"`
	Departments []string     `json:"departments"`
	Permissions []Permission `json:"permissions"`
	Modules     []Module     `json:"modules"`
}

// MySnapshot returns the caller's resolved authorization state.
func (h *Handler) MySnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.resolveCaller(r)
	if err != nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snapshotToResponse(snap))
}

func snapshotToResponse(snap *Snapshot) snapshotResponse {
	accessible := make([]Module, 0)
	for _, m := range Modules() {
		if snap.CanAccessModule(m) {
			accessible = append(accessible, m)
		}
	}
	highest := snap.HighestRole()
	return snapshotResponse{
		UserID:      snap.UserID,
		Roles:       snap.RoleNames,
		HighestRole: highest,
		DisplayName: DisplayName(highest),
		Departments: snap.Departments,
		Permissions: snap.Permissions.List(),
		Modules:     accessible,
	}
}

// ListUserRoles returns a user's assignment history.
func (h *Handler) ListUserRoles(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	assignments, err := h.store.AssignmentsForUser(r.Context(), userID)
	if err != nil {
		h.writeStoreError(w, r, err, "role_assignments")
		return
	}
	if assignments == nil {
		assignments = []Assignment{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"assignments": assignments})
}

type assignRoleRequest struct {
	RoleName   string     `json:"role_name"`
	Department *string    `json:"department,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// AssignRole grants a role to a user. Department-scoped admins can
// only assign within their own departments and never a role that
// outranks their own highest role.
func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	targetID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req assignRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !IsKnownRole(req.RoleName) {
		httputil.WriteBadRequest(w, "unknown role")
		return
	}

	snap, snapOK := SnapshotFromRequest(r)
	if !snapOK {
		httputil.WriteForbidden(w, "You do not have permission to perform this action.")
		return
	}
	if msg, allowed := h.assignmentAllowed(snap, req); !allowed {
		httputil.WriteForbidden(w, msg)
		return
	}

	actor := snap.UserID
	a, err := h.store.Assign(r.Context(), targetID, req.RoleName, req.Department, &actor, req.ExpiresAt)
	if err != nil {
		h.writeStoreError(w, r, err, "role_assignments")
		return
	}

	h.sessions.Invalidate(targetID)
	h.publish(r.Context(), "role_assignments", "INSERT", a.ID)
	h.recordAudit(r.Context(), actor, "role.assign", "user", targetID, map[string]any{
		"role_name":     req.RoleName,
		"department":    req.Department,
		"assignment_id": a.ID,
	})
	httputil.WriteJSON(w, http.StatusCreated, a)
}

func (h *Handler) assignmentAllowed(snap *Snapshot, req assignRoleRequest) (string, bool) {
	if snap.HasPermission(PermManageUsersAll) {
		return "", true
	}
	// Department-scoped administrators.
	if req.Department == nil || !snap.InDepartment(*req.Department) {
		return "You can only assign roles within your own department.", false
	}
	assigned, _ := LookupRole(req.RoleName)
	own, _ := LookupRole(snap.HighestRole())
	if assigned.Rank >= own.Rank {
		return "You cannot assign a role that outranks your own.", false
	}
	return "", true
}

// RevokeAssignment soft-revokes an assignment.
func (h *Handler) RevokeAssignment(w http.ResponseWriter, r *http.Request) {
	assignmentID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	a, err := h.store.AssignmentByID(r.Context(), assignmentID)
	if err != nil {
		h.writeStoreError(w, r, err, "role_assignments")
		return
	}

	snap, snapOK := SnapshotFromRequest(r)
	if !snapOK {
		httputil.WriteForbidden(w, "You do not have permission to perform this action.")
		return
	}
	if !snap.HasPermission(PermManageUsersAll) {
		if a.Department == nil || !snap.InDepartment(*a.Department) {
			httputil.WriteForbidden(w, "You can only revoke roles within your own department.")
			return
		}
	}

	if err := h.store.Revoke(r.Context(), assignmentID); err != nil {
		h.writeStoreError(w, r, err, "role_assignments")
		return
	}

	h.sessions.Invalidate(a.UserID)
	h.publish(r.Context(), "role_assignments", "UPDATE", assignmentID)
	h.recordAudit(r.Context(), snap.UserID, "role.revoke", "user", a.UserID, map[string]any{
		"role_name":     a.RoleName,
		"assignment_id": assignmentID,
	})
	httputil.WriteNoContent(w)
}

// UserPermissions returns another user's effective authorization state.
func (h *Handler) UserPermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	snap, err := h.sessions.Resolve(r.Context(), userID)
	if err != nil {
		h.writeStoreError(w, r, err, "role_assignments")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snapshotToResponse(snap))
}

func (h *Handler) resolveCaller(r *http.Request) (*Snapshot, error) {
	authCtx, ok := authFromRequest(r)
	if !ok {
		return nil, errNoAuth
	}
	snap, err := h.sessions.Resolve(r.Context(), authCtx.User.ID)
	if err != nil {
		// Fail closed with the empty snapshot Resolve returned.
		return snap, nil
	}
	return snap, nil
}

func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error, table string) {
	switch {
	case postgres.IsTableMissing(err):
		httputil.WriteSchemaMissing(w, table)
	case postgres.IsNotFound(err):
		httputil.WriteNotFoundError(w, "assignment not found")
	default:
		h.logger.FromContext(r.Context()).WithError(err).Error("role assignment store error")
		httputil.WriteInternalError(w, err)
	}
}

func (h *Handler) publish(ctx context.Context, table, op string, id int64) {
	if h.feed != nil {
		h.feed.PublishChange(ctx, table, op, id)
	}
}

func (h *Handler) recordAudit(ctx context.Context, actorID int64, action, targetType string, targetID int64, details map[string]any) {
	if h.audit != nil {
		h.audit.RecordEvent(ctx, actorID, action, targetType, targetID, details)
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
