// Package session materializes a per-request session from a bearer token.
//
// A session is derived from a verified token's claims, threaded through the
// request pipeline via the context, and discarded at request end — it is
// never persisted. Requests without a usable token simply carry no session;
// that is a normal request shape, not a fault.
package session
