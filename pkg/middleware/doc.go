// Package middleware provides HTTP middleware for rate limiting.
//
// The sign-in rate limiter is Redis-backed so limits hold across
// multiple instances. On Redis errors it fails open: a broken limiter
// must not lock every member out of authentication.
package middleware
