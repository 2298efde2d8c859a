package api

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"

	"github.com/campuskit/campus/pkg/approval"
	"github.com/campuskit/campus/pkg/audit"
	"github.com/campuskit/campus/pkg/auth"
	"github.com/campuskit/campus/pkg/events"
	"github.com/campuskit/campus/pkg/httputil"
	"github.com/campuskit/campus/pkg/middleware"
	"github.com/campuskit/campus/pkg/observability"
	"github.com/campuskit/campus/pkg/rbac"
	"github.com/campuskit/campus/pkg/realtime"
	"github.com/campuskit/campus/pkg/reception"
	"github.com/campuskit/campus/pkg/users"
)

// Options configures the API server.
type Options struct {
	DB *sql.DB
	// Redis enables the realtime change feed. May be nil; mutations
	// then skip publishing.
	Redis   *redis.Client
	Logger  *observability.Logger
	Metrics *observability.Metrics

	SnapshotCacheSize int
	SnapshotTTL       time.Duration
	PendingPageSize   int
	MaxBodyBytes      int64
	AllowedOrigins    []string
}

// Server is the assembled campus API server.
type Server struct {
	handler   http.Handler
	router    *mux.Router
	logger    *observability.Logger
	sessions  *rbac.SessionResolver
	rbacStore *rbac.Store
	feed      *realtime.Feed
}

// NewServer wires stores, services and handlers into a ready server.
func NewServer(opts Options) (*Server, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("api: database handle is required")
	}
	logger := opts.Logger
	if logger == nil {
		return nil, fmt.Errorf("api: logger is required")
	}

	rbacStore := rbac.NewStore(opts.DB)
	sessions, err := rbac.NewSessionResolver(rbacStore, logger, rbac.SessionResolverOptions{
		CacheSize: opts.SnapshotCacheSize,
		TTL:       opts.SnapshotTTL,
		Metrics:   opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("api: session resolver: %w", err)
	}
	gate := rbac.NewGate(sessions, logger, opts.Metrics)

	var feed *realtime.Feed
	if opts.Redis != nil {
		feed = realtime.NewFeed(opts.Redis, logger, opts.Metrics)
	}
	recorder := audit.NewRecorder(opts.DB, logger)

	s := &Server{
		router:    mux.NewRouter(),
		logger:    logger,
		sessions:  sessions,
		rbacStore: rbacStore,
		feed:      feed,
	}

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	authMW := middleware.NewAuthMiddleware(auth.NewTokenManager(opts.DB), false)
	v1.Use(authMW.Handler)

	// Role administration and the snapshot/check surface.
	var rbacFeed rbac.ChangePublisher
	if feed != nil {
		rbacFeed = feed
	}
	rbac.NewHandler(rbacStore, sessions, logger, opts.Metrics, rbacFeed, recorder).RegisterRoutes(v1, gate)

	// User management.
	usersStore := users.NewStore(opts.DB)
	var usersFeed users.ChangePublisher
	if feed != nil {
		usersFeed = feed
	}
	usersSvc := users.NewService(usersStore, sessions, logger, usersFeed, recorder)
	users.NewHandler(usersStore, usersSvc, logger).RegisterRoutes(v1, gate)

	// Lesson planner and work diary workflow.
	approvalStore := approval.NewStore(opts.DB)
	var approvalFeed approval.ChangePublisher
	if feed != nil {
		approvalFeed = feed
	}
	approvalSvc := approval.NewService(approvalStore, logger, opts.Metrics, approvalFeed, recorder)
	approval.NewHandler(approvalStore, approvalSvc, logger, opts.PendingPageSize).RegisterRoutes(v1, gate)

	// Events and notices.
	var eventsFeed events.ChangePublisher
	if feed != nil {
		eventsFeed = feed
	}
	events.NewHandler(events.NewStore(opts.DB), logger, eventsFeed).RegisterRoutes(v1, gate)

	// Reception desk.
	receptionStore := reception.NewStore(opts.DB)
	receptionSvc := reception.NewService(receptionStore, logger, recorder)
	reception.NewHandler(receptionStore, receptionSvc, logger).RegisterRoutes(v1, gate)

	// Audit trail.
	audit.NewHandler(recorder, logger).RegisterRoutes(v1, gate)

	chain := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.RecoveryMiddleware(logger),
	}
	if len(opts.AllowedOrigins) > 0 {
		chain = append(chain, httputil.CORSMiddleware(opts.AllowedOrigins))
	}
	if opts.MaxBodyBytes > 0 {
		chain = append(chain, httputil.MaxBytesMiddleware(opts.MaxBodyBytes))
	}
	s.handler = httputil.Chain(chain...)(s.router)
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Sessions exposes the snapshot resolver so background jobs can
// invalidate users whose assignments changed outside a request.
func (s *Server) Sessions() *rbac.SessionResolver {
	return s.sessions
}

// RoleStore exposes the assignment store for background maintenance.
func (s *Server) RoleStore() *rbac.Store {
	return s.rbacStore
}
