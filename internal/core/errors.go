package core

import "errors"

// Error taxonomy. Synchronous operations return these (wrapped) directly
// to the caller; job-body failures are captured on the job record instead.
var (
	// ErrInvalidInput rejects bad tenant names or quota values before any
	// side effect.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthenticated rejects webhook payloads that fail verification
	// before any tenant mutation.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrConflict rejects duplicate tenants or operations racing a held
	// per-tenant lock; no partial mutation occurs.
	ErrConflict = errors.New("resource conflict")

	// ErrNotFound indicates the named tenant or job does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable indicates the queue, storage, or command runner is
	// unreachable; the whole operation is safe to retry.
	ErrUnavailable = errors.New("dependency unavailable")
)
