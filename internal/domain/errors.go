package domain

import "errors"

var (
	// ErrAdapterUnavailable marks failures of an external collaborator
	// (geocoder, travel matrix, persistence gateway).
	ErrAdapterUnavailable = errors.New("adapter unavailable")

	// ErrAddressNotFound is returned by a GeoLookup when an address has no match.
	ErrAddressNotFound = errors.New("address not found")

	// ErrInvalidTransition rejects a mutation before anything is persisted.
	ErrInvalidTransition = errors.New("invalid transition")

	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
)
