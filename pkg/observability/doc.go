// Package observability provides structured logging, Prometheus metrics, and
// the request instrumentation middleware for the gatehouse service.
package observability
