package app

import "errors"

var (
	// ErrConcurrentDuplicate means another attempt with the same
	// idempotency key is still in flight; the caller should retry later.
	ErrConcurrentDuplicate = errors.New("request already in flight")

	ErrNotFound = errors.New("not found")
)
