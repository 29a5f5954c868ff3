// Package api is the HTTP surface of the membership service.
//
// Handlers are thin: they parse the request, call into pkg/members or
// pkg/credentials, and encode the result. All authorization happens in
// route middleware built by the authz dispatcher, never inside a handler.
package api
