package events

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/campuskit/campus/pkg/httputil"
	"github.com/campuskit/campus/pkg/observability"
	"github.com/campuskit/campus/pkg/rbac"
	"github.com/campuskit/campus/pkg/storage/postgres"
)

// ChangePublisher receives change-feed notifications. Best effort.
type ChangePublisher interface {
	PublishChange(ctx context.Context, table, op string, id int64)
}

// Handler serves the events and notices API.
type Handler struct {
	store  *Store
	logger *observability.Logger
	feed   ChangePublisher
}

// NewHandler creates the events handler. feed may be nil.
func NewHandler(store *Store, logger *observability.Logger, feed ChangePublisher) *Handler {
	return &Handler{store: store, logger: logger, feed: feed}
}

// RegisterRoutes mounts the events and notices routes behind their
// module gates.
func (h *Handler) RegisterRoutes(router *mux.Router, gate *rbac.Gate) {
	eventsGuard := gate.RequireModule(rbac.ModuleEvents)
	router.Handle("/events", eventsGuard(http.HandlerFunc(h.ListEvents))).Methods(http.MethodGet)
	router.Handle("/events", eventsGuard(http.HandlerFunc(h.CreateEvent))).Methods(http.MethodPost)
	router.Handle("/events/{id:[0-9]+}", eventsGuard(http.HandlerFunc(h.GetEvent))).Methods(http.MethodGet)
	router.Handle("/events/{id:[0-9]+}", eventsGuard(http.HandlerFunc(h.UpdateEvent))).Methods(http.MethodPut)
	router.Handle("/events/{id:[0-9]+}", eventsGuard(http.HandlerFunc(h.DeleteEvent))).Methods(http.MethodDelete)

	noticesGuard := gate.RequireModule(rbac.ModuleNotices)
	router.Handle("/notices", noticesGuard(http.HandlerFunc(h.ListNotices))).Methods(http.MethodGet)
	router.Handle("/notices", noticesGuard(http.HandlerFunc(h.CreateNotice))).Methods(http.MethodPost)
	router.Handle("/notices/{id:[0-9]+}", noticesGuard(http.HandlerFunc(h.DeleteNotice))).Methods(http.MethodDelete)
}

type upsertEventRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	StartsAt    time.Time  `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
}

// ListEvents returns upcoming events.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.ParseQueryInt(r, "limit", 100)
	if err != nil || limit <= 0 || limit > 500 {
		limit = 100
	}
	list, err := h.store.ListEvents(r.Context(), limit)
	if err != nil {
		h.writeStoreError(w, r, err, "events")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": list})
}

// GetEvent returns one event.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	e, err := h.store.GetEvent(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err, "events")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

// CreateEvent adds an event.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	snap, ok := rbac.SnapshotFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	var req upsertEventRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Title, "title") {
		return
	}
	if req.StartsAt.IsZero() {
		httputil.WriteBadRequest(w, "starts_at is required")
		return
	}

	e, err := h.store.CreateEvent(r.Context(), Event{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		CreatedBy:   snap.UserID,
	})
	if err != nil {
		h.writeStoreError(w, r, err, "events")
		return
	}
	h.publish(r.Context(), "events", "INSERT", e.ID)
	httputil.WriteJSON(w, http.StatusCreated, e)
}

// UpdateEvent replaces an event.
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req upsertEventRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Title, "title") {
		return
	}

	e, err := h.store.UpdateEvent(r.Context(), Event{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	})
	if err != nil {
		h.writeStoreError(w, r, err, "events")
		return
	}
	h.publish(r.Context(), "events", "UPDATE", e.ID)
	httputil.WriteJSON(w, http.StatusOK, e)
}

// DeleteEvent removes an event.
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteEvent(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err, "events")
		return
	}
	h.publish(r.Context(), "events", "DELETE", id)
	httputil.WriteNoContent(w)
}

type createNoticeRequest struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Audience string `json:"audience,omitempty"`
}

// ListNotices returns notices, filterable by audience.
func (h *Handler) ListNotices(w http.ResponseWriter, r *http.Request) {
	audience := httputil.ParseQueryString(r, "audience", "")
	limit, err := httputil.ParseQueryInt(r, "limit", 100)
	if err != nil || limit <= 0 || limit > 500 {
		limit = 100
	}
	list, err := h.store.ListNotices(r.Context(), audience, limit)
	if err != nil {
		h.writeStoreError(w, r, err, "notices")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"notices": list})
}

// CreateNotice publishes a notice.
func (h *Handler) CreateNotice(w http.ResponseWriter, r *http.Request) {
	snap, ok := rbac.SnapshotFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	var req createNoticeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Title, "title") {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Body, "body") {
		return
	}
	if req.Audience == "" {
		req.Audience = AudienceAll
	}

	n, err := h.store.CreateNotice(r.Context(), Notice{
		Title:     req.Title,
		Body:      req.Body,
		Audience:  req.Audience,
		CreatedBy: snap.UserID,
	})
	if err != nil {
		h.writeStoreError(w, r, err, "notices")
		return
	}
	h.publish(r.Context(), "notices", "INSERT", n.ID)
	httputil.WriteJSON(w, http.StatusCreated, n)
}

// DeleteNotice removes a notice.
func (h *Handler) DeleteNotice(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteNotice(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err, "notices")
		return
	}
	h.publish(r.Context(), "notices", "DELETE", id)
	httputil.WriteNoContent(w)
}

func (h *Handler) publish(ctx context.Context, table, op string, id int64) {
	if h.feed != nil {
		h.feed.PublishChange(ctx, table, op, id)
	}
}

func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error, table string) {
	switch {
	case postgres.IsTableMissing(err):
		httputil.WriteSchemaMissing(w, table)
	case postgres.IsNotFound(err):
		httputil.WriteNotFoundError(w, "not found")
	default:
		h.logger.FromContext(r.Context()).WithError(err).Error("events store error")
		httputil.WriteInternalError(w, err)
	}
}
