package session

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/gatehouselabs/gatehouse/pkg/contextkeys"
	"github.com/gatehouselabs/gatehouse/pkg/credentials"
)

// Verifier checks a raw token and returns its claims. Satisfied by
// *credentials.Issuer.
type Verifier interface {
	Verify(token string) (*credentials.Claims, error)
}

// Materializer decodes an Authorization header into a session
type Materializer struct {
	verifier Verifier
	schemes  map[string]bool
}

// NewMaterializer creates a materializer accepting the given header schemes.
// With no schemes it accepts "Bearer" and "JWT".
func NewMaterializer(verifier Verifier, schemes ...string) *Materializer {
	if len(schemes) == 0 {
		schemes = []string{"Bearer", "JWT"}
	}
	accepted := make(map[string]bool, len(schemes))
	for _, s := range schemes {
		accepted[s] = true
	}
	return &Materializer{
		verifier: verifier,
		schemes:  accepted,
	}
}

// Materialize parses a two-part scheme-token Authorization header and
// verifies the token. Any parse or verify failure yields nil — "no session"
// is a normal, expected request shape, never an error.
func (m *Materializer) Materialize(authorizationHeader string) *Session {
	if authorizationHeader == "" {
		return nil
	}

	parts := strings.SplitN(authorizationHeader, " ", 2)
	if len(parts) != 2 || !m.schemes[parts[0]] {
		return nil
	}

	claims, err := m.verifier.Verify(parts[1])
	if err != nil {
		return nil
	}
	return FromClaims(claims)
}

// Middleware attaches the materialized session, if any, to the request
// context. Requests without a session pass through untouched.
func (m *Materializer) Middleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := m.Materialize(r.Header.Get("Authorization"))
			if sess != nil {
				r = r.WithContext(contextkeys.WithSession(r.Context(), sess))
			}
			next.ServeHTTP(w, r)
		})
	}
}
