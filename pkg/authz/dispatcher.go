package authz

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gatehouselabs/gatehouse/pkg/httputil"
	"github.com/gatehouselabs/gatehouse/pkg/observability"
	"github.com/gatehouselabs/gatehouse/pkg/permissions"
	"github.com/gatehouselabs/gatehouse/pkg/session"
)

// RouteKind selects the default rejection policy for a protected route
type RouteKind int

const (
	// RouteAPI rejects with a 403 JSON body
	RouteAPI RouteKind = iota
	// RouteBrowser rejects by redirecting to the sign-in URL
	RouteBrowser
)

// Dispatcher turns registered permissions into route middleware
type Dispatcher struct {
	registry  *permissions.Registry
	store     permissions.Store
	signInURL string
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithLogger attaches a structured logger
func WithLogger(logger *observability.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithMetrics attaches Prometheus metrics
func WithMetrics(metrics *observability.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = metrics }
}

// NewDispatcher creates a dispatcher over a populated permission registry.
// signInURL is where browser routes are redirected on rejection.
func NewDispatcher(registry *permissions.Registry, store permissions.Store, signInURL string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry:  registry,
		store:     store,
		signInURL: signInURL,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Require builds middleware enforcing the permission at path. The path is
// resolved now, not per-request: an unregistered permission is a startup
// error, never a serving-time surprise.
func (d *Dispatcher) Require(path string, kind RouteKind) (mux.MiddlewareFunc, error) {
	def, err := d.registry.Resolve(path)
	if err != nil {
		return nil, fmt.Errorf("cannot gate route on %q: %w", path, err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d.dispatch(w, r, def, kind, next)
		})
	}, nil
}

// MustRequire is Require for startup wiring, panicking on unknown paths
func (d *Dispatcher) MustRequire(path string, kind RouteKind) mux.MiddlewareFunc {
	mw, err := d.Require(path, kind)
	if err != nil {
		panic(err)
	}
	return mw
}

// dispatch runs the decision protocol for one request
func (d *Dispatcher) dispatch(w http.ResponseWriter, r *http.Request, def *permissions.Definition, kind RouteKind, next http.Handler) {
	path := def.Path()

	if d.metrics != nil {
		timer := prometheus.NewTimer(d.metrics.AuthzCheckDuration.WithLabelValues(path))
		defer timer.ObserveDuration()
	}

	sess := session.FromContext(r.Context())
	if sess == nil {
		// No membership test and no store call without a session
		d.reject(w, r, def, kind, path, "no session")
		return
	}

	if check := def.Check(); check != nil {
		decision, err := check(r, sess)
		if err != nil {
			d.logFailure(r, path, "check hook failed", err)
			d.reject(w, r, def, kind, path, "check error")
			return
		}
		switch decision {
		case permissions.DecisionAllow:
			d.approve(w, r, def, sess, path, next)
			return
		case permissions.DecisionDeny:
			d.reject(w, r, def, kind, path, "check denied")
			return
		}
		// DecisionDefer falls through to the membership test
	}

	granted := sess.HasPerm(path)

	// The token's perms may be stale. The first granted test verifies
	// against a fresh read and the membership is re-tested against it.
	if granted && !sess.Refreshed() {
		if err := d.refresh(r, sess); err != nil {
			d.logFailure(r, path, "session refresh failed", err)
			d.reject(w, r, def, kind, path, "refresh error")
			return
		}
		granted = sess.HasPerm(path)
	}

	if sess.Disabled {
		d.reject(w, r, def, kind, path, "member disabled")
		return
	}

	if !granted {
		d.reject(w, r, def, kind, path, "not a member")
		return
	}

	d.approve(w, r, def, sess, path, next)
}

// refresh overwrites the session's perms and disabled flag from the store
func (d *Dispatcher) refresh(r *http.Request, sess *session.Session) error {
	ctx := r.Context()

	perms, err := d.store.ListAssignments(ctx, sess.ID)
	if err != nil {
		if d.metrics != nil {
			d.metrics.SessionRefreshesTotal.WithLabelValues("error").Inc()
		}
		return err
	}

	disabled, err := d.store.IsDisabled(ctx, sess.ID)
	if err != nil {
		if d.metrics != nil {
			d.metrics.SessionRefreshesTotal.WithLabelValues("error").Inc()
		}
		return err
	}

	sess.ApplyRefresh(perms, disabled)
	if d.metrics != nil {
		d.metrics.SessionRefreshesTotal.WithLabelValues("ok").Inc()
	}
	return nil
}

func (d *Dispatcher) approve(w http.ResponseWriter, r *http.Request, def *permissions.Definition, sess *session.Session, path string, next http.Handler) {
	if d.metrics != nil {
		d.metrics.AuthzDecisionsTotal.WithLabelValues(path, "approved").Inc()
	}

	if approveHook := def.Approve(); approveHook != nil {
		enriched, proceed := approveHook(w, r, sess)
		if !proceed {
			// The hook wrote its own response and ended the pipeline
			return
		}
		if enriched != nil {
			r = enriched
		}
	}

	next.ServeHTTP(w, r)
}

func (d *Dispatcher) reject(w http.ResponseWriter, r *http.Request, def *permissions.Definition, kind RouteKind, path, reason string) {
	if d.metrics != nil {
		d.metrics.AuthzDecisionsTotal.WithLabelValues(path, "rejected").Inc()
	}
	if d.logger != nil {
		d.logger.WithFields(map[string]interface{}{
			"permission": path,
			"reason":     reason,
			"path":       r.URL.Path,
		}).Debug("authorization rejected")
	}

	if rejectHook := def.Reject(); rejectHook != nil {
		rejectHook(w, r)
		return
	}

	switch kind {
	case RouteBrowser:
		http.Redirect(w, r, d.signInURL, http.StatusFound)
	default:
		httputil.WriteForbidden(w, "permission denied")
	}
}

func (d *Dispatcher) logFailure(r *http.Request, path, msg string, err error) {
	if d.logger == nil {
		return
	}
	d.logger.WithError(err).WithFields(map[string]interface{}{
		"permission": path,
		"path":       r.URL.Path,
	}).Warn(msg)
}
