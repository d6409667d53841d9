package runtime

import "fmt"

// InitError indicates a fatal failure during one of the mandatory bring-up
// steps. The manager has already been reset to StateUninitialized when this
// is returned, so a later Initialize may retry.
//
// The underlying error can be accessed via errors.Unwrap.
type InitError struct {
	// Stage names the bring-up stage that failed.
	Stage string
	cause error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("runtime: initialization failed during %s: %v", e.Stage, e.cause)
}

func (e *InitError) Unwrap() error { return e.cause }
