package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrLockHeld         = errors.New("lock already held")
	ErrRetryExhausted   = errors.New("retries exhausted")
	ErrMissingCatalogue = errors.New("token catalogue unavailable")
	ErrContextDone      = errors.New("context cancelled")
)
