package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gatehouselabs/gatehouse/pkg/credentials"
)

func newTestIssuer(t *testing.T) *credentials.Issuer {
	t.Helper()
	issuer, err := credentials.NewIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}
	return issuer
}

func issueTestToken(t *testing.T, issuer *credentials.Issuer, ttl time.Duration) string {
	t.Helper()
	token, err := issuer.Issue(credentials.Claims{
		MemberID: 7,
		Name:     "Fred",
		Email:    "fred@example.com",
		Perms:    []string{"Member.access"},
	}, ttl)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return token
}

func TestMaterialize(t *testing.T) {
	issuer := newTestIssuer(t)
	m := NewMaterializer(issuer)

	t.Run("valid Bearer token", func(t *testing.T) {
		sess := m.Materialize("Bearer " + issueTestToken(t, issuer, time.Hour))
		if sess == nil {
			t.Fatal("expected a session")
		}
		if sess.ID != 7 {
			t.Errorf("ID = %d, want 7", sess.ID)
		}
		if sess.Email != "fred@example.com" {
			t.Errorf("Email = %q", sess.Email)
		}
		if !sess.HasPerm("Member.access") {
			t.Error("expected Member.access in perms")
		}
		if sess.Refreshed() {
			t.Error("fresh session must not be marked refreshed")
		}
	})

	t.Run("valid JWT scheme", func(t *testing.T) {
		if m.Materialize("JWT "+issueTestToken(t, issuer, time.Hour)) == nil {
			t.Error("expected JWT scheme to be accepted")
		}
	})

	t.Run("no header", func(t *testing.T) {
		if m.Materialize("") != nil {
			t.Error("expected nil session for empty header")
		}
	})

	t.Run("unrecognized scheme", func(t *testing.T) {
		if m.Materialize("Basic "+issueTestToken(t, issuer, time.Hour)) != nil {
			t.Error("expected nil session for unrecognized scheme")
		}
	})

	t.Run("single-part header", func(t *testing.T) {
		if m.Materialize("Bearer") != nil {
			t.Error("expected nil session for header without token")
		}
	})

	t.Run("expired token yields no session", func(t *testing.T) {
		if m.Materialize("Bearer "+issueTestToken(t, issuer, -time.Minute)) != nil {
			t.Error("expected nil session for expired token")
		}
	})

	t.Run("token signed with different secret", func(t *testing.T) {
		other, err := credentials.NewIssuer("other-secret", time.Hour)
		if err != nil {
			t.Fatalf("NewIssuer() error = %v", err)
		}
		if m.Materialize("Bearer "+issueTestToken(t, other, time.Hour)) != nil {
			t.Error("expected nil session for foreign signature")
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		if m.Materialize("Bearer not-a-token") != nil {
			t.Error("expected nil session for garbage token")
		}
	})
}

func TestMiddleware(t *testing.T) {
	issuer := newTestIssuer(t)
	m := NewMaterializer(issuer)

	t.Run("attaches session to context", func(t *testing.T) {
		var got *Session
		handler := m.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = FromContext(r.Context())
		}))

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer "+issueTestToken(t, issuer, time.Hour))
		handler.ServeHTTP(httptest.NewRecorder(), req)

		if got == nil {
			t.Fatal("expected session in context")
		}
		if got.Name != "Fred" {
			t.Errorf("Name = %q, want Fred", got.Name)
		}
	})

	t.Run("request without token passes through sessionless", func(t *testing.T) {
		handlerCalled := false
		handler := m.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true
			if FromContext(r.Context()) != nil {
				t.Error("expected no session in context")
			}
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/test", nil))
		if !handlerCalled {
			t.Error("handler should have been called")
		}
	})

	t.Run("invalid token is not an error", func(t *testing.T) {
		handler := m.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer bogus")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", w.Code)
		}
	})
}

func TestSession_HasPerm(t *testing.T) {
	sess := &Session{Perms: []string{"Member.access", "Member.reset.password"}}

	if !sess.HasPerm("Member.access") {
		t.Error("expected exact match to pass")
	}
	if !sess.HasPerm("Member.reset.password") {
		t.Error("expected dotted signature match to pass")
	}
	if sess.HasPerm("member.access") {
		t.Error("match must be case-sensitive")
	}
	if sess.HasPerm("Member") {
		t.Error("prefix must not match")
	}
	if sess.HasPerm("Member.access.extra") {
		t.Error("longer path must not match")
	}
}

func TestSession_ApplyRefresh(t *testing.T) {
	sess := &Session{Perms: []string{"Member.access"}}

	sess.ApplyRefresh([]string{"Member.access", "Admin.access"}, true)

	if !sess.Refreshed() {
		t.Error("expected session to be marked refreshed")
	}
	if !sess.Disabled {
		t.Error("expected disabled flag to be overwritten")
	}
	if len(sess.Perms) != 2 {
		t.Errorf("Perms = %v, want 2 entries", sess.Perms)
	}
}
