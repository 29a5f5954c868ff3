// Package credentials provides the low-level credential primitives for the
// membership service: salt generation, password hashing and verification, and
// signed session token issuance.
//
// Password hashing is deterministic for a given (salt, plaintext) pair so the
// same function serves both storage and verification. Tokens are HS512-signed
// JWTs carrying the member identity and permission snapshot; every
// verification failure is reported uniformly as ErrInvalidToken so callers
// can treat a bad token as "no session" rather than a fault.
package credentials
