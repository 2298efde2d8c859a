package rbac

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/campus/pkg/auth"
	"github.com/campuskit/campus/pkg/contextkeys"
	"github.com/campuskit/campus/pkg/observability"
)

type recordingFeed struct {
	mu     sync.Mutex
	events []string
}

func (f *recordingFeed) PublishChange(ctx context.Context, table, op string, id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, table+":"+op)
}

type rbacTestEnv struct {
	router   *mux.Router
	store    *Store
	resolver *SessionResolver
	feed     *recordingFeed
}

func setupRBACHandlers(t *testing.T) *rbacTestEnv {
	t.Helper()
	db := setupAssignmentDB(t)
	store := NewStore(db)
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	resolver, err := NewSessionResolver(store, logger, SessionResolverOptions{})
	require.NoError(t, err)

	feed := &recordingFeed{}
	gate := NewGate(resolver, logger, nil)
	handler := NewHandler(store, resolver, logger, nil, feed, nil)

	router := mux.NewRouter()
	handler.RegisterRoutes(router, gate)
	return &rbacTestEnv{router: router, store: store, resolver: resolver, feed: feed}
}

func (env *rbacTestEnv) do(t *testing.T, asUser int64, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if asUser != 0 {
		authCtx := &auth.Context{User: &auth.User{ID: asUser, Username: "tester", IsActive: true}}
		req = req.WithContext(contextkeys.WithAuth(req.Context(), authCtx))
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func TestListRolesEndpoint(t *testing.T) {
	env := setupRBACHandlers(t)

	rec := env.do(t, 1, http.MethodGet, "/rbac/roles", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Roles []Role `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Roles)
	assert.Equal(t, RoleSuperAdmin, body.Roles[0].Name)
}

func TestAssignRoleEndpoint(t *testing.T) {
	env := setupRBACHandlers(t)
	ctx := context.Background()

	// Actor 1 is a super admin.
	_, err := env.store.Assign(ctx, 1, RoleSuperAdmin, nil, nil, nil)
	require.NoError(t, err)

	rec := env.do(t, 1, http.MethodPost, "/users/2/roles", assignRoleRequest{RoleName: RoleTeacher})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	snap, err := env.resolver.Resolve(ctx, 2)
	require.NoError(t, err)
	assert.True(t, snap.HasRole(RoleTeacher))
	assert.Contains(t, env.feed.events, "role_assignments:INSERT")
}

func TestAssignRoleRequiresGate(t *testing.T) {
	env := setupRBACHandlers(t)
	ctx := context.Background()

	// Actor 1 is only a teacher: no assign_roles permission.
	_, err := env.store.Assign(ctx, 1, RoleTeacher, nil, nil, nil)
	require.NoError(t, err)

	rec := env.do(t, 1, http.MethodPost, "/users/2/roles", assignRoleRequest{RoleName: RoleStudent})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "You do not have permission to access User Management.", body["error"])
}

func TestAssignRoleDepartmentScope(t *testing.T) {
	env := setupRBACHandlers(t)
	ctx := context.Background()

	science := "science"
	arts := "arts"
	_, err := env.store.Assign(ctx, 1, RoleDepartmentAdmin, &science, nil, nil)
	require.NoError(t, err)

	// Within own department: allowed.
	rec := env.do(t, 1, http.MethodPost, "/users/2/roles",
		assignRoleRequest{RoleName: RoleTeacher, Department: &science})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Other department: refused.
	rec = env.do(t, 1, http.MethodPost, "/users/2/roles",
		assignRoleRequest{RoleName: RoleTeacher, Department: &arts})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// A role at or above their own rank: refused even in-department.
	rec = env.do(t, 1, http.MethodPost, "/users/2/roles",
		assignRoleRequest{RoleName: RolePrincipal, Department: &science})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAssignUnknownRoleRejected(t *testing.T) {
	env := setupRBACHandlers(t)
	_, err := env.store.Assign(context.Background(), 1, RoleSuperAdmin, nil, nil, nil)
	require.NoError(t, err)

	rec := env.do(t, 1, http.MethodPost, "/users/2/roles", assignRoleRequest{RoleName: "chancellor"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRevokeAssignmentEndpoint(t *testing.T) {
	env := setupRBACHandlers(t)
	ctx := context.Background()

	_, err := env.store.Assign(ctx, 1, RoleSuperAdmin, nil, nil, nil)
	require.NoError(t, err)
	a, err := env.store.Assign(ctx, 2, RoleTeacher, nil, nil, nil)
	require.NoError(t, err)

	// Warm user 2's snapshot so we can observe the invalidation.
	snap, err := env.resolver.Resolve(ctx, 2)
	require.NoError(t, err)
	require.True(t, snap.HasRole(RoleTeacher))

	rec := env.do(t, 1, http.MethodDelete, "/rbac/assignments/"+strconv.FormatInt(a.ID, 10), nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	snap, err = env.resolver.Resolve(ctx, 2)
	require.NoError(t, err)
	assert.False(t, snap.HasRole(RoleTeacher))
}

func TestCheckEndpoint(t *testing.T) {
	env := setupRBACHandlers(t)
	ctx := context.Background()

	_, err := env.store.Assign(ctx, 1, RoleAccountant, nil, nil, nil)
	require.NoError(t, err)

	rec := env.do(t, 1, http.MethodPost, "/rbac/check", checkRequest{Module: ModuleFees})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp checkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Allowed)

	// A negative check is still a 200: the caller asked a question.
	rec = env.do(t, 1, http.MethodPost, "/rbac/check", checkRequest{Module: ModuleEvents})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Allowed)
	assert.Equal(t, "You do not have permission to access Events.", resp.Reason)
}

func TestMySnapshotEndpoint(t *testing.T) {
	env := setupRBACHandlers(t)
	ctx := context.Background()

	science := "science"
	_, err := env.store.Assign(ctx, 1, RoleHOD, &science, nil, nil)
	require.NoError(t, err)

	rec := env.do(t, 1, http.MethodGet, "/rbac/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp snapshotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, RoleHOD, resp.HighestRole)
	assert.Equal(t, "Head of Department", resp.DisplayName)
	assert.Contains(t, resp.Modules, ModulePlannerDiary)
	assert.NotContains(t, resp.Modules, ModuleFees)
	assert.Equal(t, []string{"science"}, resp.Departments)
}
