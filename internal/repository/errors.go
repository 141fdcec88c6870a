package repository

import "errors"

// Typed outcomes of the conditional-write primitive. Callers branch on these
// with errors.Is instead of inspecting backend error codes.
var (
	// ErrNotFound means no row/document exists for the requested key.
	ErrNotFound = errors.New("repository: not found")

	// ErrConflict means CreateIfAbsent lost a race: the key already exists.
	// Retryable — re-read and take the replace path.
	ErrConflict = errors.New("repository: key already exists")

	// ErrStaleVersion means ConditionalReplace was guarded by a version token
	// that no longer matches. Retryable — re-read and try again.
	ErrStaleVersion = errors.New("repository: stale version token")
)

// IsRetryable reports whether err is a conflict the caller may resolve by
// re-reading and retrying, as opposed to a fatal storage failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrStaleVersion)
}
