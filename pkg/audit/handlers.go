package audit

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/campuskit/campus/pkg/httputil"
	"github.com/campuskit/campus/pkg/observability"
	"github.com/campuskit/campus/pkg/rbac"
	"github.com/campuskit/campus/pkg/storage/postgres"
)

// Handler serves the audit trail read surface.
type Handler struct {
	recorder *Recorder
	logger   *observability.Logger
}

func NewHandler(recorder *Recorder, logger *observability.Logger) *Handler {
	return &Handler{recorder: recorder, logger: logger}
}

// RegisterRoutes mounts the audit routes behind the reports gate.
func (h *Handler) RegisterRoutes(router *mux.Router, gate *rbac.Gate) {
	guard := gate.RequireModule(rbac.ModuleReports)
	router.Handle("/audit/events", guard(http.HandlerFunc(h.ListEvents))).Methods(http.MethodGet)
}

// ListEvents returns recent audit events, newest first, with optional
// actor_id, action and target_type filters.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	actorID, err := httputil.ParseQueryInt(r, "actor_id", 0)
	if err != nil {
		httputil.WriteBadRequest(w, "actor_id must be an integer")
		return
	}
	limit, err := httputil.ParseQueryInt(r, "limit", 100)
	if err != nil {
		httputil.WriteBadRequest(w, "limit must be an integer")
		return
	}

	eventsList, err := h.recorder.List(r.Context(), ListQuery{
		ActorID:    int64(actorID),
		Action:     httputil.ParseQueryString(r, "action", ""),
		TargetType: httputil.ParseQueryString(r, "target_type", ""),
		Limit:      limit,
	})
	if err != nil {
		if postgres.IsTableMissing(err) {
			httputil.WriteSchemaMissing(w, "audit_events")
			return
		}
		h.logger.FromContext(r.Context()).WithError(err).Error("failed to list audit events")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, eventsList)
}
