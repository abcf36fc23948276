package ledger

import "errors"

// Business-rule failures. Stores wrap ErrNotFound for missing rows; callers
// match with errors.Is and translate at the API boundary.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrConflict reports a write that lost a race with a concurrent one.
	// Retrying the unit of work is safe.
	ErrConflict = errors.New("concurrent update conflict")
)
