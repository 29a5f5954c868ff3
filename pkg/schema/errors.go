package schema

import "errors"

var (
	// ErrUnknownTable is returned when a view references an undeclared table
	ErrUnknownTable = errors.New("unknown table")

	// ErrUnknownColumn is returned when a view references a column that is
	// not declared in the storage schema
	ErrUnknownColumn = errors.New("unknown column")

	// ErrUnknownView is returned when projecting a view that was never
	// registered
	ErrUnknownView = errors.New("unknown view")

	// ErrDuplicateTable is returned when a table name is declared twice
	ErrDuplicateTable = errors.New("table already declared")

	// ErrDuplicateView is returned when a view name is registered twice
	ErrDuplicateView = errors.New("view already registered")

	// ErrDuplicateField is returned when a view maps the same logical field
	// twice
	ErrDuplicateField = errors.New("duplicate field in view")

	// ErrMalformedRef is returned when a field reference is not of the form
	// "table.column"
	ErrMalformedRef = errors.New("malformed column reference")

	// ErrRegistryFrozen is returned when registration is attempted after the
	// registry entered serving mode
	ErrRegistryFrozen = errors.New("schema registry is frozen")
)
