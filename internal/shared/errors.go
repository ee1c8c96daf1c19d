package shared

import "errors"

// Cross-module error taxonomy. Services wrap these sentinels with
// fmt.Errorf("...: %w", ...) so callers can branch with errors.Is and the
// HTTP layer can map them to statuses.
var (
	// ErrNotFound indicates a referenced product, supplier, order or token does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed input or an edit attempted on a finalized order.
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientStock indicates a reserve or ship would drive available or current stock negative.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidToken indicates a confirmation token is missing, expired or already consumed.
	ErrInvalidToken = errors.New("invalid confirmation token")
	// ErrConflict indicates an optimistic version mismatch on a concurrent update.
	ErrConflict = errors.New("version conflict")
	// ErrStorage wraps opaque persistence failures.
	ErrStorage = errors.New("storage failure")
)
