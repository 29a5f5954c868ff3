package credentials

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the token lifetime used when Issue is called with a
// zero TTL
const DefaultTokenTTL = 30 * 24 * time.Hour

// Claims is the payload carried by a session token
type Claims struct {
	MemberID int64    `json:"id"`
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Perms    []string `json:"perms"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies session tokens with a process-wide secret
type Issuer struct {
	secret     []byte
	defaultTTL time.Duration
}

// NewIssuer creates a token issuer. defaultTTL of zero selects
// DefaultTokenTTL.
func NewIssuer(secret string, defaultTTL time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTokenTTL
	}
	return &Issuer{
		secret:     []byte(secret),
		defaultTTL: defaultTTL,
	}, nil
}

// Issue serializes the claims into a signed, time-bounded token. A zero ttl
// uses the issuer's default.
func (i *Issuer) Issue(claims Claims, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = i.defaultTTL
	}

	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the token's signature and expiry and returns its claims.
// Any failure collapses to ErrInvalidToken.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
