package reception

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/campuskit/campus/pkg/httputil"
	"github.com/campuskit/campus/pkg/observability"
	"github.com/campuskit/campus/pkg/rbac"
	"github.com/campuskit/campus/pkg/storage/postgres"
)

// Handler serves the reception API.
type Handler struct {
	store   *Store
	service *Service
	logger  *observability.Logger
}

// NewHandler creates the reception handler.
func NewHandler(store *Store, service *Service, logger *observability.Logger) *Handler {
	return &Handler{store: store, service: service, logger: logger}
}

// RegisterRoutes mounts the reception routes behind the module gate.
func (h *Handler) RegisterRoutes(router *mux.Router, gate *rbac.Gate) {
	guard := gate.RequireModule(rbac.ModuleReception)

	router.Handle("/reception/students/{admission_no}", guard(http.HandlerFunc(h.StudentByAdmissionNo))).Methods(http.MethodGet)
	router.Handle("/reception/late-passes", guard(http.HandlerFunc(h.IssueLatePass))).Methods(http.MethodPost)
	router.Handle("/reception/students/{id:[0-9]+}/late-passes", guard(http.HandlerFunc(h.PassesForStudent))).Methods(http.MethodGet)
}

// StudentByAdmissionNo looks a student up for the front desk. An unknown
// admission number travels as success=false in a 200 body.
func (h *Handler) StudentByAdmissionNo(w http.ResponseWriter, r *http.Request) {
	admissionNo, err := httputil.ParsePathString(r, "admission_no")
	if err != nil {
		httputil.WriteBadRequest(w, "admission_no is required")
		return
	}
	result, err := h.service.LookupStudent(r.Context(), admissionNo)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

type issueLatePassRequest struct {
	AdmissionNo string `json:"admission_no"`
	Reason      string `json:"reason,omitempty"`
}

// IssueLatePass issues a late pass. Logical failures, like an unknown
// admission number, travel as success=false in a 200 body.
func (h *Handler) IssueLatePass(w http.ResponseWriter, r *http.Request) {
	snap, ok := rbac.SnapshotFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	var req issueLatePassRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.AdmissionNo, "admission_no") {
		return
	}

	result, err := h.service.IssueLatePass(r.Context(), snap, req.AdmissionNo, req.Reason)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// PassesForStudent lists a student's issued passes.
func (h *Handler) PassesForStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	passes, err := h.store.PassesForStudent(r.Context(), id, 100)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"late_passes": passes})
}

func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case postgres.IsTableMissing(err):
		httputil.WriteSchemaMissing(w, "students")
	case postgres.IsNotFound(err):
		httputil.WriteNotFoundError(w, "student not found")
	default:
		h.logger.FromContext(r.Context()).WithError(err).Error("reception store error")
		httputil.WriteInternalError(w, err)
	}
}
