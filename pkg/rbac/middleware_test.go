package rbac

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/campus/pkg/auth"
	"github.com/campuskit/campus/pkg/contextkeys"
	"github.com/campuskit/campus/pkg/observability"
)

func authedRequest(t *testing.T, userID int64) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	authCtx := &auth.Context{User: &auth.User{ID: userID, Username: "asha", IsActive: true}}
	return req.WithContext(contextkeys.WithAuth(req.Context(), authCtx))
}

func newTestGate(t *testing.T, source AssignmentSource) *Gate {
	t.Helper()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	resolver, err := NewSessionResolver(source, logger, SessionResolverOptions{})
	require.NoError(t, err)
	return NewGate(resolver, logger, nil)
}

func TestGateGrantsAndExposesSnapshot(t *testing.T) {
	source := &fakeSource{}
	source.set(1, RolePrincipal)
	gate := newTestGate(t, source)

	var seen *Snapshot
	handler := gate.RequireModule(ModuleEvents)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = SnapshotFromRequest(r)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, 1))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.True(t, seen.HasRole(RolePrincipal))
}

func TestGateDeniesWithModuleMessage(t *testing.T) {
	source := &fakeSource{}
	source.set(1, RoleStudent)
	gate := newTestGate(t, source)

	handler := gate.RequireModule(ModuleEvents)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, 1))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "You do not have permission to access Events.", body["error"])
}

func TestGateUnauthenticatedIs401(t *testing.T) {
	gate := newTestGate(t, &fakeSource{})

	handler := gate.RequireModule(ModuleEvents)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// A resolution failure denies with 403, it does not pretend the user
// is still loading and it does not grant.
func TestGateFailsClosedOnResolveError(t *testing.T) {
	source := &fakeSource{err: errors.New("db down")}
	gate := newTestGate(t, source)

	handler := gate.RequireModule(ModuleEvents)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, 1))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGateRequirePermission(t *testing.T) {
	source := &fakeSource{}
	source.set(1, RoleReceptionist)
	gate := newTestGate(t, source)

	ok := gate.RequirePermission(PermIssueLatePass)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	ok.ServeHTTP(rec, authedRequest(t, 1))
	assert.Equal(t, http.StatusOK, rec.Code)

	no := gate.RequirePermission(PermManageFees)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	rec = httptest.NewRecorder()
	no.ServeHTTP(rec, authedRequest(t, 1))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
