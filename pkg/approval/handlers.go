package approval

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/campuskit/campus/pkg/httputil"
	"github.com/campuskit/campus/pkg/observability"
	"github.com/campuskit/campus/pkg/rbac"
	"github.com/campuskit/campus/pkg/storage/postgres"
)

// Handler serves the planner and diary workflow API.
type Handler struct {
	store        *Store
	service      *Service
	logger       *observability.Logger
	pendingLimit int
}

// NewHandler creates the workflow handler. pendingLimit caps the
// pending review listing.
func NewHandler(store *Store, service *Service, logger *observability.Logger, pendingLimit int) *Handler {
	if pendingLimit <= 0 {
		pendingLimit = 50
	}
	return &Handler{store: store, service: service, logger: logger, pendingLimit: pendingLimit}
}

// RegisterRoutes mounts the workflow routes behind the planner and
// diary module gate.
func (h *Handler) RegisterRoutes(router *mux.Router, gate *rbac.Gate) {
	guard := gate.RequireModule(rbac.ModulePlannerDiary)

	for _, t := range []DocType{DocLessonPlanner, DocWorkDiary} {
		t := t
		prefix := "/planners"
		if t == DocWorkDiary {
			prefix = "/diaries"
		}
		router.Handle(prefix, guard(h.createHandler(t))).Methods(http.MethodPost)
		router.Handle(prefix, guard(h.listMineHandler(t))).Methods(http.MethodGet)
		router.Handle(prefix+"/pending", guard(h.pendingHandler(t))).Methods(http.MethodGet)
		router.Handle(prefix+"/{id:[0-9]+}", guard(h.getHandler(t))).Methods(http.MethodGet)
		router.Handle(prefix+"/{id:[0-9]+}", guard(h.updateHandler(t))).Methods(http.MethodPut)
		router.Handle(prefix+"/{id:[0-9]+}/submit", guard(h.submitHandler(t))).Methods(http.MethodPost)
		router.Handle(prefix+"/{id:[0-9]+}/approve", guard(h.approveHandler(t))).Methods(http.MethodPost)
		router.Handle(prefix+"/{id:[0-9]+}/reject", guard(h.rejectHandler(t))).Methods(http.MethodPost)
		router.Handle(prefix+"/{id:[0-9]+}/decisions", guard(h.decisionsHandler(t))).Methods(http.MethodGet)
	}
}

type upsertDocumentRequest struct {
	Title      string          `json:"title"`
	Department string          `json:"department"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

func (h *Handler) createHandler(t DocType) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap, ok := rbac.SnapshotFromRequest(r)
		if !ok {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		var req upsertDocumentRequest
		if !httputil.ParseJSONOrError(w, r, &req) {
			return
		}
		if !httputil.RequireNonEmpty(w, req.Title, "title") {
			return
		}
		department := req.Department
		if department == "" && len(snap.Departments) == 1 {
			department = snap.Departments[0]
		}

		doc, err := h.store.Create(r.Context(), t, snap.UserID, department, req.Title, req.Payload)
		if err != nil {
			h.writeStoreError(w, r, err, t)
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, doc)
	})
}

func (h *Handler) listMineHandler(t DocType) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap, ok := rbac.SnapshotFromRequest(r)
		if !ok {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		docs, err := h.store.ListByAuthor(r.Context(), t, snap.UserID, h.pendingLimit)
		if err != nil {
			h.writeStoreError(w, r, err, t)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"documents": docs})
	})
}

func (h *Handler) pendingHandler(t DocType) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap, ok := rbac.SnapshotFromRequest(r)
		if !ok {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		docs, err := h.service.Pending(r.Context(), t, snap, h.pendingLimit)
		if err != nil {
			h.writeStoreError(w, r, err, t)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"documents": docs})
	})
}

func (h *Handler) getHandler(t DocType) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := httputil.ParsePathInt64OrError(w, r, "id")
		if !ok {
			return
		}
		doc, err := h.store.Get(r.Context(), t, id)
		if err != nil {
			h.writeStoreError(w, r, err, t)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, doc)
	})
}

func (h *Handler) updateHandler(t DocType) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap, ok := rbac.SnapshotFromRequest(r)
		if !ok {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		id, ok := httputil.ParsePathInt64OrError(w, r, "id")
		if !ok {
			return
		}
		var req upsertDocumentRequest
		if !httputil.ParseJSONOrError(w, r, &req) {
			return
		}
		if !httputil.RequireNonEmpty(w, req.Title, "title") {
			return
		}

		doc, err := h.store.Get(r.Context(), t, id)
		if err != nil {
			h.writeStoreError(w, r, err, t)
			return
		}
		if doc.AuthorID != snap.UserID {
			httputil.WriteForbidden(w, "Only the author can edit this document.")
			return
		}

		updated, err := h.store.UpdateContent(r.Context(), t, id, req.Title, req.Payload)
		if err != nil {
			if postgres.IsNotFound(err) {
				// The row exists but is not editable in its state.
				httputil.WriteConflict(w, "Only drafts can be edited.")
				return
			}
			h.writeStoreError(w, r, err, t)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, updated)
	})
}

func (h *Handler) submitHandler(t DocType) http.Handler {
	return h.decisionEndpoint(t, func(r *http.Request, snap *rbac.Snapshot, id int64) (DecisionResult, error) {
		return h.service.Submit(r.Context(), t, id, snap)
	})
}

func (h *Handler) approveHandler(t DocType) http.Handler {
	return h.decisionEndpoint(t, func(r *http.Request, snap *rbac.Snapshot, id int64) (DecisionResult, error) {
		return h.service.Approve(r.Context(), t, id, snap)
	})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) rejectHandler(t DocType) http.Handler {
	return h.decisionEndpoint(t, func(r *http.Request, snap *rbac.Snapshot, id int64) (DecisionResult, error) {
		var req rejectRequest
		if err := httputil.ParseJSON(r, &req); err != nil {
			return refused("A rejection reason is required."), nil
		}
		return h.service.Reject(r.Context(), t, id, snap, req.Reason)
	})
}

// decisionEndpoint adapts a service call into the procedure-result
// shape: logical refusals are 200s with success=false, only transport
// and storage failures map to error statuses.
func (h *Handler) decisionEndpoint(t DocType, fn func(*http.Request, *rbac.Snapshot, int64) (DecisionResult, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap, ok := rbac.SnapshotFromRequest(r)
		if !ok {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		id, ok := httputil.ParsePathInt64OrError(w, r, "id")
		if !ok {
			return
		}
		result, err := fn(r, snap, id)
		if err != nil {
			h.writeStoreError(w, r, err, t)
			return
		}
		httputil.WriteProcedureResult(w, httputil.ProcedureResult{
			Success: result.Success,
			Message: result.Message,
		})
	})
}

func (h *Handler) decisionsHandler(t DocType) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := httputil.ParsePathInt64OrError(w, r, "id")
		if !ok {
			return
		}
		history, err := h.store.DecisionHistory(r.Context(), t, id)
		if err != nil {
			h.writeStoreError(w, r, err, t)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"decisions": history})
	})
}

func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error, t DocType) {
	switch {
	case postgres.IsTableMissing(err):
		httputil.WriteSchemaMissing(w, t.tableName())
	case postgres.IsNotFound(err):
		httputil.WriteNotFoundError(w, "document not found")
	default:
		h.logger.FromContext(r.Context()).WithError(err).Error("approval store error")
		httputil.WriteInternalError(w, err)
	}
}
