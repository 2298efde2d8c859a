package users

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/campuskit/campus/pkg/auth"
	"github.com/campuskit/campus/pkg/httputil"
	"github.com/campuskit/campus/pkg/observability"
	"github.com/campuskit/campus/pkg/rbac"
	"github.com/campuskit/campus/pkg/storage/postgres"
)

// Handler serves the user management API.
type Handler struct {
	store   *Store
	service *Service
	logger  *observability.Logger
}

// NewHandler creates the user management handler.
func NewHandler(store *Store, service *Service, logger *observability.Logger) *Handler {
	return &Handler{store: store, service: service, logger: logger}
}

// RegisterRoutes mounts user management behind its module gate.
func (h *Handler) RegisterRoutes(router *mux.Router, gate *rbac.Gate) {
	guard := gate.RequireModule(rbac.ModuleUserManagement)

	router.Handle("/users", guard(http.HandlerFunc(h.List))).Methods(http.MethodGet)
	router.Handle("/users", guard(http.HandlerFunc(h.Create))).Methods(http.MethodPost)
	router.Handle("/users/{id:[0-9]+}", guard(http.HandlerFunc(h.Get))).Methods(http.MethodGet)
	router.Handle("/users/{id:[0-9]+}/deactivate", guard(http.HandlerFunc(h.Deactivate))).Methods(http.MethodPost)
	router.Handle("/users/{id:[0-9]+}/reactivate", guard(http.HandlerFunc(h.Reactivate))).Methods(http.MethodPost)
	router.Handle("/users/{id:[0-9]+}/tokens", guard(http.HandlerFunc(h.IssueToken))).Methods(http.MethodPost)
}

// List returns users, filterable by department and active state.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	department := httputil.ParseQueryString(r, "department", "")
	activeOnly := httputil.ParseQueryString(r, "active", "") == "true"
	limit, err := httputil.ParseQueryInt(r, "limit", 100)
	if err != nil || limit <= 0 || limit > 500 {
		limit = 100
	}

	list, err := h.store.List(r.Context(), department, activeOnly, limit)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"users": list})
}

// Get returns one user.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	u, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

type createUserRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email,omitempty"`
	FullName   string `json:"full_name,omitempty"`
	Department string `json:"department,omitempty"`
}

// Create registers a new account.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	snap, ok := rbac.SnapshotFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	var req createUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Username, "username") {
		return
	}

	u, err := h.service.Create(r.Context(), snap, req.Username, req.Email, req.FullName, req.Department)
	if err != nil {
		if errors.Is(err, ErrOutOfScope) {
			httputil.WriteForbidden(w, "You can only create users within your own department.")
			return
		}
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, u)
}

// Deactivate disables an account.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

// Reactivate re-enables an account.
func (h *Handler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	snap, ok := rbac.SnapshotFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	err := h.service.SetActive(r.Context(), snap, id, active)
	if err != nil {
		switch {
		case errors.Is(err, ErrOutOfScope):
			httputil.WriteForbidden(w, "You do not have permission to manage this user.")
		case postgres.IsNotFound(err):
			// Either the user is missing or already in the requested
			// state; the latter is a no-op conflict.
			if _, getErr := h.store.Get(r.Context(), id); getErr == nil {
				httputil.WriteConflict(w, "user is already in the requested state")
			} else {
				httputil.WriteNotFoundError(w, "user not found")
			}
		default:
			h.writeStoreError(w, r, err)
		}
		return
	}
	httputil.WriteNoContent(w)
}

type issueTokenRequest struct {
	Name string `json:"name"`
	TTL  string `json:"ttl,omitempty"`
}

type issueTokenResponse struct {
	Token    string        `json:"token"`
	Metadata auth.APIToken `json:"metadata"`
}

// IssueToken mints a bearer token for a user. The plaintext token
// appears only in this response.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	snap, ok := rbac.SnapshotFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req issueTokenRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	var ttl time.Duration
	if req.TTL != "" {
		parsed, err := time.ParseDuration(req.TTL)
		if err != nil || parsed <= 0 {
			httputil.WriteBadRequest(w, "ttl must be a positive duration")
			return
		}
		ttl = parsed
	}

	plaintext, tok, err := h.service.IssueToken(r.Context(), snap, id, req.Name, ttl)
	if err != nil {
		if errors.Is(err, ErrOutOfScope) {
			httputil.WriteForbidden(w, "You do not have permission to manage this user.")
			return
		}
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, issueTokenResponse{Token: plaintext, Metadata: tok})
}

func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case postgres.IsTableMissing(err):
		httputil.WriteSchemaMissing(w, "users")
	case postgres.IsNotFound(err):
		httputil.WriteNotFoundError(w, "user not found")
	default:
		h.logger.FromContext(r.Context()).WithError(err).Error("user store error")
		httputil.WriteInternalError(w, err)
	}
}
