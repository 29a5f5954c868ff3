package authz

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gatehouselabs/gatehouse/pkg/contextkeys"
	"github.com/gatehouselabs/gatehouse/pkg/credentials"
	"github.com/gatehouselabs/gatehouse/pkg/permissions"
	"github.com/gatehouselabs/gatehouse/pkg/session"
)

// fakeStore is an in-memory permissions.Store recording its calls
type fakeStore struct {
	assignments map[int64][]string
	disabled    map[int64]bool

	listCalls     int
	disabledCalls int

	listErr     error
	disabledErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		assignments: make(map[int64][]string),
		disabled:    make(map[int64]bool),
	}
}

func (s *fakeStore) AddAssignments(ctx context.Context, memberID int64, paths []string) error {
	for _, p := range paths {
		dup := false
		for _, existing := range s.assignments[memberID] {
			if existing == p {
				dup = true
				break
			}
		}
		if !dup {
			s.assignments[memberID] = append(s.assignments[memberID], p)
		}
	}
	return nil
}

func (s *fakeStore) ListAssignments(ctx context.Context, memberID int64) ([]string, error) {
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.assignments[memberID], nil
}

func (s *fakeStore) IsDisabled(ctx context.Context, memberID int64) (bool, error) {
	s.disabledCalls++
	if s.disabledErr != nil {
		return false, s.disabledErr
	}
	disabled, ok := s.disabled[memberID]
	if !ok {
		return false, permissions.ErrMemberNotFound
	}
	return disabled, nil
}

func newTestRegistry(t *testing.T, paths ...string) *permissions.Registry {
	t.Helper()
	registry := permissions.NewRegistry()
	for _, path := range paths {
		group, sig, err := permissions.ParsePath(path)
		if err != nil {
			t.Fatalf("bad test path %q: %v", path, err)
		}
		if _, err := registry.Register(group, sig, "test permission"); err != nil {
			t.Fatalf("failed to register %q: %v", path, err)
		}
	}
	return registry
}

func requestWithSession(sess *session.Session) *http.Request {
	req := httptest.NewRequest("GET", "/protected", nil)
	if sess != nil {
		req = req.WithContext(contextkeys.WithSession(req.Context(), sess))
	}
	return req
}

func sessionWithPerms(id int64, perms ...string) *session.Session {
	return session.FromClaims(&credentials.Claims{MemberID: id, Perms: perms})
}

// okHandler marks that the pipeline reached the protected operation
type okHandler struct {
	called bool
}

func (h *okHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	w.WriteHeader(http.StatusOK)
}

func TestDispatcher_RequireUnknownPermission(t *testing.T) {
	registry := newTestRegistry(t, "Member.access")
	d := NewDispatcher(registry, newFakeStore(), "/sign-in")

	if _, err := d.Require("Member.access", RouteAPI); err != nil {
		t.Errorf("Require() on registered permission failed: %v", err)
	}

	_, err := d.Require("Admin.access", RouteAPI)
	if err == nil {
		t.Fatal("Require() should fail for unregistered permission")
	}
	if !errors.Is(err, permissions.ErrUnknownPermission) {
		t.Errorf("expected ErrUnknownPermission, got %v", err)
	}
}

func TestDispatcher_MustRequirePanics(t *testing.T) {
	registry := newTestRegistry(t, "Member.access")
	d := NewDispatcher(registry, newFakeStore(), "/sign-in")

	defer func() {
		if recover() == nil {
			t.Error("MustRequire() should panic on unknown permission")
		}
	}()
	d.MustRequire("Nope.nope", RouteAPI)
}

func TestDispatcher_NoSessionRejects(t *testing.T) {
	registry := newTestRegistry(t, "Member.access")
	store := newFakeStore()
	d := NewDispatcher(registry, store, "/sign-in")

	handler := &okHandler{}
	mw := d.MustRequire("Member.access", RouteAPI)

	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, requestWithSession(nil))

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
	if handler.called {
		t.Error("protected handler should not run without a session")
	}
	if store.listCalls != 0 || store.disabledCalls != 0 {
		t.Error("no store call should be made without a session")
	}
}

func TestDispatcher_BrowserRouteRedirects(t *testing.T) {
	registry := newTestRegistry(t, "Member.access")
	d := NewDispatcher(registry, newFakeStore(), "/sign-in")

	handler := &okHandler{}
	mw := d.MustRequire("Member.access", RouteBrowser)

	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, requestWithSession(nil))

	if rec.Code != http.StatusFound {
		t.Errorf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/sign-in" {
		t.Errorf("expected redirect to /sign-in, got %q", loc)
	}
	if handler.called {
		t.Error("protected handler should not run")
	}
}

func TestDispatcher_MembershipGrants(t *testing.T) {
	registry := newTestRegistry(t, "Member.access")
	store := newFakeStore()
	store.assignments[7] = []string{"Member.access"}
	store.disabled[7] = false
	d := NewDispatcher(registry, store, "/sign-in")

	handler := &okHandler{}
	mw := d.MustRequire("Member.access", RouteAPI)

	sess := sessionWithPerms(7, "Member.access")
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, requestWithSession(sess))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !handler.called {
		t.Error("protected handler should run for a member")
	}
}

func TestDispatcher_MissingMembershipRejects(t *testing.T) {
	registry := newTestRegistry(t, "Member.access", "Admin.access")
	store := newFakeStore()
	d := NewDispatcher(registry, store, "/sign-in")

	handler := &okHandler{}
	mw := d.MustRequire("Admin.access", RouteAPI)

	sess := sessionWithPerms(7, "Member.access")
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, requestWithSession(sess))

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
	if handler.called {
		t.Error("protected handler should not run without membership")
	}
}

func TestDispatcher_MembershipIsExactMatch(t *testing.T) {
	registry := newTestRegistry(t, "Member.access")
	d := NewDispatcher(registry, newFakeStore(), "/sign-in")

	handler := &okHandler{}
	mw := d.MustRequire("Member.access", RouteAPI)

	// Case variants and prefixes must not pass
	for _, perm := range []string{"member.access", "Member.Access", "Member.access.extra", "Member"} {
		sess := sessionWithPerms(7, perm)
		rec := httptest.NewRecorder()
		mw(handler).ServeHTTP(rec, requestWithSession(sess))

		if rec.Code != http.StatusForbidden {
			t.Errorf("perm %q: expected 403, got %d", perm, rec.Code)
		}
	}
}

func TestDispatcher_FirstGrantRefreshesFromStore(t *testing.T) {
	registry := newTestRegistry(t, "Member.access")
	store := newFakeStore()
	store.assignments[7] = []string{"Member.access"}
	store.disabled[7] = false
	d := NewDispatcher(registry, store, "/sign-in")

	handler := &okHandler{}
	mw := d.MustRequire("Member.access", RouteAPI)

	sess := sessionWithPerms(7, "Member.access")
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, requestWithSession(sess))

	if store.listCalls != 1 || store.disabledCalls != 1 {
		t.Errorf("expected one refresh, got list=%d disabled=%d", store.listCalls, store.disabledCalls)
	}
	if !sess.Refreshed() {
		t.Error("session should be marked refreshed")
	}

	// Second check on the same session does not re-fetch
	rec = httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, requestWithSession(sess))
	if store.listCalls != 1 {
		t.Errorf("expected no second refresh, got list=%d", store.listCalls)
	}
}

func TestDispatcher_StaleTokenPermRevokedByRefresh(t *testing.T) {
	registry := newTestRegistry(t, "Member.access")
	store := newFakeStore()
	// Store says the member no longer holds the permission
	store.assignments[7] = []string{}
	store.disabled[7] = false
	d := NewDispatcher(registry, store, "/sign-in")

	handler := &okHandler{}
	mw := d.MustRequire("Member.access", RouteAPI)

	// Token still claims the permission
	sess := sessionWithPerms(7, "Member.access")
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, requestWithSession(sess))

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 after revoking refresh, got %d", rec.Code)
	}
	if handler.called {
		t.Error("protected handler should not run after refresh revokes membership")
	}
}

func TestDispatcher_DisabledMemberOverride(t *testing.T) {
	registry := newTestRegistry(t, "Member.access")
	store := newFakeStore()
	store.assignments[7] = []string{"Member.access"}
	store.disabled[7] = true
	d := NewDispatcher(registry, store, "/sign-in")

	handler := &okHandler{}
	mw := d.MustRequire("Member.access", RouteAPI)

	sess := sessionWithPerms(7, "Member.access")
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, requestWithSession(sess))

	if rec.Code != http.StatusForbidden {
		t.Errorf("disabled member: expected 403, got %d", rec.Code)
	}
	if handler.called {
		t.Error("protected handler should not run for a disabled member")
	}
}

func TestDispatcher_StoreErrorRejects(t *testing.T) {
	registry := newTestRegistry(t, "Member.access")

	t.Run("list error", func(t *testing.T) {
		store := newFakeStore()
		store.listErr = errors.New("connection refused")
		d := NewDispatcher(registry, store, "/sign-in")

		handler := &okHandler{}
		mw := d.MustRequire("Member.access", RouteAPI)

		sess := sessionWithPerms(7, "Member.access")
		rec := httptest.NewRecorder()
		mw(handler).ServeHTTP(rec, requestWithSession(sess))

		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403 on store error, got %d", rec.Code)
		}
		if handler.called {
			t.Error("store failure must never default-allow")
		}
	})

	t.Run("member not found during disabled check", func(t *testing.T) {
		store := newFakeStore()
		store.assignments[7] = []string{"Member.access"}
		// no disabled entry: IsDisabled returns ErrMemberNotFound
		d := NewDispatcher(registry, store, "/sign-in")

		handler := &okHandler{}
		mw := d.MustRequire("Member.access", RouteAPI)

		sess := sessionWithPerms(7, "Member.access")
		rec := httptest.NewRecorder()
		mw(handler).ServeHTTP(rec, requestWithSession(sess))

		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403 when member vanished, got %d", rec.Code)
		}
	})
}

func TestDispatcher_CheckHook(t *testing.T) {
	t.Run("allow bypasses membership", func(t *testing.T) {
		registry := permissions.NewRegistry()
		def, _ := registry.Register("Member", "access", "")
		def.SetCheck(func(r *http.Request, sess *session.Session) (permissions.Decision, error) {
			return permissions.DecisionAllow, nil
		})
		d := NewDispatcher(registry, newFakeStore(), "/sign-in")

		handler := &okHandler{}
		mw := d.MustRequire("Member.access", RouteAPI)

		// Session lacks the permission, hook allows anyway
		sess := sessionWithPerms(7)
		rec := httptest.NewRecorder()
		mw(handler).ServeHTTP(rec, requestWithSession(sess))

		if !handler.called {
			t.Error("DecisionAllow should reach the protected handler")
		}
	})

	t.Run("deny overrides membership", func(t *testing.T) {
		registry := permissions.NewRegistry()
		def, _ := registry.Register("Member", "access", "")
		def.SetCheck(func(r *http.Request, sess *session.Session) (permissions.Decision, error) {
			return permissions.DecisionDeny, nil
		})
		store := newFakeStore()
		store.assignments[7] = []string{"Member.access"}
		store.disabled[7] = false
		d := NewDispatcher(registry, store, "/sign-in")

		handler := &okHandler{}
		mw := d.MustRequire("Member.access", RouteAPI)

		sess := sessionWithPerms(7, "Member.access")
		rec := httptest.NewRecorder()
		mw(handler).ServeHTTP(rec, requestWithSession(sess))

		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403 on DecisionDeny, got %d", rec.Code)
		}
		if handler.called {
			t.Error("DecisionDeny must not reach the protected handler")
		}
	})

	t.Run("defer runs membership test", func(t *testing.T) {
		registry := permissions.NewRegistry()
		def, _ := registry.Register("Member", "access", "")
		def.SetCheck(func(r *http.Request, sess *session.Session) (permissions.Decision, error) {
			return permissions.DecisionDefer, nil
		})
		store := newFakeStore()
		store.assignments[7] = []string{"Member.access"}
		store.disabled[7] = false
		d := NewDispatcher(registry, store, "/sign-in")

		handler := &okHandler{}
		mw := d.MustRequire("Member.access", RouteAPI)

		sess := sessionWithPerms(7, "Member.access")
		rec := httptest.NewRecorder()
		mw(handler).ServeHTTP(rec, requestWithSession(sess))

		if !handler.called {
			t.Error("DecisionDefer with membership should reach the handler")
		}
	})

	t.Run("hook error rejects", func(t *testing.T) {
		registry := permissions.NewRegistry()
		def, _ := registry.Register("Member", "access", "")
		def.SetCheck(func(r *http.Request, sess *session.Session) (permissions.Decision, error) {
			return permissions.DecisionAllow, errors.New("hook exploded")
		})
		d := NewDispatcher(registry, newFakeStore(), "/sign-in")

		handler := &okHandler{}
		mw := d.MustRequire("Member.access", RouteAPI)

		sess := sessionWithPerms(7, "Member.access")
		rec := httptest.NewRecorder()
		mw(handler).ServeHTTP(rec, requestWithSession(sess))

		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403 on hook error, got %d", rec.Code)
		}
		if handler.called {
			t.Error("hook error must not reach the protected handler")
		}
	})
}

func TestDispatcher_ApproveHook(t *testing.T) {
	t.Run("runs only after membership passes", func(t *testing.T) {
		registry := permissions.NewRegistry()
		approveRan := false
		def, _ := registry.Register("Member", "access", "")
		def.SetApprove(func(w http.ResponseWriter, r *http.Request, sess *session.Session) (*http.Request, bool) {
			approveRan = true
			return nil, true
		})
		d := NewDispatcher(registry, newFakeStore(), "/sign-in")

		handler := &okHandler{}
		mw := d.MustRequire("Member.access", RouteAPI)

		// No membership: approve must not run
		sess := sessionWithPerms(7)
		rec := httptest.NewRecorder()
		mw(handler).ServeHTTP(rec, requestWithSession(sess))

		if approveRan {
			t.Error("approve hook must not run when membership fails")
		}
	})

	t.Run("can short-circuit the pipeline", func(t *testing.T) {
		registry := permissions.NewRegistry()
		def, _ := registry.Register("Member", "access", "")
		def.SetApprove(func(w http.ResponseWriter, r *http.Request, sess *session.Session) (*http.Request, bool) {
			w.WriteHeader(http.StatusTeapot)
			return nil, false
		})
		store := newFakeStore()
		store.assignments[7] = []string{"Member.access"}
		store.disabled[7] = false
		d := NewDispatcher(registry, store, "/sign-in")

		handler := &okHandler{}
		mw := d.MustRequire("Member.access", RouteAPI)

		sess := sessionWithPerms(7, "Member.access")
		rec := httptest.NewRecorder()
		mw(handler).ServeHTTP(rec, requestWithSession(sess))

		if rec.Code != http.StatusTeapot {
			t.Errorf("expected approve hook's status, got %d", rec.Code)
		}
		if handler.called {
			t.Error("short-circuiting approve hook must stop the pipeline")
		}
	})
}

func TestDispatcher_RejectHookOverridesDefault(t *testing.T) {
	registry := permissions.NewRegistry()
	def, _ := registry.Register("Member", "access", "")
	def.SetReject(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	})
	d := NewDispatcher(registry, newFakeStore(), "/sign-in")

	handler := &okHandler{}
	mw := d.MustRequire("Member.access", RouteAPI)

	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, requestWithSession(nil))

	if rec.Code != http.StatusPaymentRequired {
		t.Errorf("expected reject hook's status, got %d", rec.Code)
	}
}
