package session

import (
	"context"

	"github.com/gatehouselabs/gatehouse/pkg/contextkeys"
	"github.com/gatehouselabs/gatehouse/pkg/credentials"
)

// Session is the per-request identity and permission snapshot derived from a
// verified token. Perms and Disabled start as the token's claims and are
// overwritten by the first live refresh during a gated permission check.
type Session struct {
	ID    int64
	Name  string
	Email string

	Perms    []string
	Disabled bool

	refreshed bool
}

// FromClaims builds a session from verified token claims
func FromClaims(c *credentials.Claims) *Session {
	perms := make([]string, len(c.Perms))
	copy(perms, c.Perms)
	return &Session{
		ID:    c.MemberID,
		Name:  c.Name,
		Email: c.Email,
		Perms: perms,
	}
}

// HasPerm reports whether the session holds the permission path. Exact,
// case-sensitive string match; no prefix or wildcard semantics.
func (s *Session) HasPerm(path string) bool {
	for _, p := range s.Perms {
		if p == path {
			return true
		}
	}
	return false
}

// Refreshed reports whether the session's live state was already fetched
// during this request
func (s *Session) Refreshed() bool {
	return s.refreshed
}

// ApplyRefresh overwrites the session's permission set and disabled flag
// with a fresh read from the permission store
func (s *Session) ApplyRefresh(perms []string, disabled bool) {
	s.Perms = perms
	s.Disabled = disabled
	s.refreshed = true
}

// FromContext returns the session attached to the request context, or nil
// when the request carries no session
func FromContext(ctx context.Context) *Session {
	sess, ok := ctx.Value(contextkeys.SessionKey).(*Session)
	if !ok {
		return nil
	}
	return sess
}
