package wishlist

import "fmt"

// ValidationError reports bad caller input. It is never retried and maps to
// a 4xx response at the HTTP layer.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StorageError reports that the store failed or the retry budget ran out.
// Transient from the caller's perspective and maps to a 5xx response.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("storage failure during %s", e.Op)
	}
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
