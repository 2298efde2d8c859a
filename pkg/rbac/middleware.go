package rbac

import (
	"errors"
	"net/http"

	"github.com/campuskit/campus/pkg/auth"
	"github.com/campuskit/campus/pkg/contextkeys"
	"github.com/campuskit/campus/pkg/httputil"
	"github.com/campuskit/campus/pkg/observability"
)

// Gate wires the session resolver into HTTP middleware. Each guarded
// route declares a Requirement; the middleware resolves the caller's
// snapshot and maps the outcome onto the response: pending becomes
// 503 (retryable), denied becomes 403, granted proceeds with the
// snapshot placed in the request context.
type Gate struct {
	sessions *SessionResolver
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewGate creates a Gate over sessions. metrics may be nil.
func NewGate(sessions *SessionResolver, logger *observability.Logger, metrics *observability.Metrics) *Gate {
	return &Gate{sessions: sessions, logger: logger, metrics: metrics}
}

// Require returns middleware enforcing req on the wrapped handler.
// Requests without an authenticated user are rejected with 401.
func (g *Gate) Require(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, ok := authFromRequest(r)
			if !ok {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			snap, err := g.sessions.Resolve(r.Context(), authCtx.User.ID)
			if err != nil {
				// Resolve already logged; the fallback snapshot denies.
				g.logger.FromContext(r.Context()).WithField("user_id", authCtx.User.ID).
					Warn("evaluating gate against fail-closed snapshot")
			}

			outcome := Evaluate(snap, req)
			g.observe(req, outcome)
			switch outcome {
			case OutcomeGranted:
				ctx := contextkeys.WithSnapshot(r.Context(), snap)
				next.ServeHTTP(w, r.WithContext(ctx))
			case OutcomePending:
				httputil.WriteErrorMessage(w, http.StatusServiceUnavailable,
					"authorization state is not available yet, retry shortly")
			default:
				httputil.WriteForbidden(w, req.DenialMessage())
			}
		})
	}
}

// RequireModule is shorthand for Require with only a module set.
func (g *Gate) RequireModule(m Module) func(http.Handler) http.Handler {
	return g.Require(Requirement{Module: m})
}

// RequirePermission is shorthand for Require with a single permission.
func (g *Gate) RequirePermission(p Permission) func(http.Handler) http.Handler {
	return g.Require(Requirement{AnyPermission: []Permission{p}})
}

func (g *Gate) observe(req Requirement, outcome Outcome) {
	if g.metrics == nil {
		return
	}
	module := string(req.Module)
	if module == "" {
		module = "custom"
	}
	g.metrics.GateOutcomesTotal.WithLabelValues(module, outcome.String()).Inc()
}

var errNoAuth = errors.New("rbac: no authenticated user on request")

func authFromRequest(r *http.Request) (*auth.Context, bool) {
	authCtx, _ := r.Context().Value(contextkeys.AuthKey).(*auth.Context)
	if authCtx == nil || authCtx.User == nil {
		return nil, false
	}
	return authCtx, true
}

// SnapshotFromRequest retrieves the snapshot a Gate middleware stored
// on the request context.
func SnapshotFromRequest(r *http.Request) (*Snapshot, bool) {
	snap, ok := r.Context().Value(contextkeys.SnapshotKey).(*Snapshot)
	return snap, ok
}
