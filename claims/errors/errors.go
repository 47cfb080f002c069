package errors

import "fmt"

// NotFoundError indicates the requested claim (or user) does not exist.
// Never retried.
type NotFoundError struct {
	Err error
	ID  int64
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("no record found for id %d: %s", e.ID, e.Err)
	}
	return fmt.Sprintf("no record found for id %d", e.ID)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// ValidationError indicates required identity fields are missing or a value
// failed validation. Never retried; surfaced to the caller as a form error.
type ValidationError struct {
	Err error
	Msg string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s, err: %v", e.Msg, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// PersistenceError indicates the store rejected a write. The transaction is
// rolled back before this error surfaces, so no partial commit is possible.
type PersistenceError struct {
	Err error
	Op  string
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// TransientNetworkError indicates a timeout, connection reset, or 5xx
// response. Retried a bounded number of times before surfacing.
type TransientNetworkError struct {
	Err      error
	Attempts int
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("transient network error after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// UnexpectedStatusCodeError indicates a non-retryable HTTP failure from the API.
type UnexpectedStatusCodeError struct {
	Err        error
	StatusCode int
}

func (e *UnexpectedStatusCodeError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %v", e.StatusCode, e.Err)
}

func (e *UnexpectedStatusCodeError) Unwrap() error { return e.Err }
