package checkpoint

import "errors"

var (
	// Not found errors.
	ErrNotFound = errors.New("checkpoint: document not found")

	// Backend errors.
	ErrBackendUnavailable = errors.New("checkpoint: backend unavailable")
	ErrBackendClosed      = errors.New("checkpoint: backend closed")

	// Status errors.
	ErrInvalidStatus     = errors.New("checkpoint: invalid status")
	ErrIllegalTransition = errors.New("checkpoint: illegal status transition")
)

// IsNotFound reports whether err indicates a missing document.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
