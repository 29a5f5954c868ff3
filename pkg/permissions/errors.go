package permissions

import "errors"

var (
	// ErrDuplicatePermission is returned when registering a (group,
	// signature) pair that already exists. Fatal at startup.
	ErrDuplicatePermission = errors.New("permission already registered")

	// ErrUnknownPermission is returned when resolving a permission path that
	// was never registered. Fatal at pipeline construction: it indicates a
	// code/config mismatch.
	ErrUnknownPermission = errors.New("unknown permission")

	// ErrMalformedPath is returned for a permission path without a group and
	// signature part
	ErrMalformedPath = errors.New("malformed permission path")

	// ErrRegistryFrozen is returned when registration is attempted after the
	// registry entered serving mode
	ErrRegistryFrozen = errors.New("permission registry is frozen")

	// ErrMemberNotFound is returned by the store when the member no longer
	// exists
	ErrMemberNotFound = errors.New("member not found")
)
