package session

import "errors"

var (
	// ErrAccessDenied is returned when a private room rejects a join.
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidPayload is returned when a required field is missing from an
	// incoming event. The event is rejected before any mutation.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrStoreUnavailable is returned when a room store call fails or times
	// out on a persistence-critical event.
	ErrStoreUnavailable = errors.New("room store unavailable")
)
