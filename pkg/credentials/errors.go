package credentials

import "errors"

var (
	// ErrInvalidToken is returned for any token verification failure: bad
	// signature, malformed structure, or expiry. Callers must treat it as
	// "no session", never as a hard error.
	ErrInvalidToken = errors.New("invalid token")

	// ErrEmptyPassword is returned when a hash is requested for an empty
	// plaintext
	ErrEmptyPassword = errors.New("password must not be empty")

	// ErrEmptySalt is returned when a hash is requested without a salt
	ErrEmptySalt = errors.New("salt must not be empty")

	// ErrMissingSecret is returned when an issuer is constructed without a
	// signing secret
	ErrMissingSecret = errors.New("signing secret must not be empty")
)
