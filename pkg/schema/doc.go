// Package schema implements the view projection layer that decouples what a
// caller may see or write from how storage is laid out.
//
// A storage schema (tables and their columns) is declared first; named views
// are then registered as ordered mappings from logical field names to
// physical "table.column" references. Every data access in the service reads
// and writes through a named view rather than an ad hoc column list, which
// keeps validation rules, storage columns, and externally exposed fields
// consistent and prevents over-exposure of storage columns.
//
// Registration happens once at startup; after Freeze the registry is
// read-only and projections are pure and deterministic for the lifetime of
// the process.
package schema
