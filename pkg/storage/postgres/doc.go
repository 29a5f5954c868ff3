// Package postgres manages the PostgreSQL connection pool backing member
// and permission storage.
package postgres
