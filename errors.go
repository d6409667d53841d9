package vulnquery

import (
	"errors"
	"fmt"
)

// ErrNoPartitions is returned when discovery finds zero partitions for a
// dataset. It is fatal to that query only; an empty result list from a
// non-empty dataset is a valid "not found" outcome, never an error.
var ErrNoPartitions = errors.New("no partitions discovered")

// PartitionError is scoped to a single partition. The executor always
// recovers from it locally: the partition is skipped, logged, and the scan
// continues, so this type never escapes a query. It exists for logging and
// metrics classification.
//
// The underlying error can be accessed via errors.Unwrap.
type PartitionError struct {
	// Key is the partition's object key.
	Key string
	// Index is the partition's sequential index.
	Index int
	// Oversized marks partitions whose metadata exceeded a client-side
	// size or memory limit, as opposed to generic transport failure.
	Oversized bool
	cause     error
}

func (e *PartitionError) Error() string {
	if e.Oversized {
		return fmt.Sprintf("partition %s: metadata too large for client: %v", e.Key, e.cause)
	}
	return fmt.Sprintf("partition %s: %v", e.Key, e.cause)
}

func (e *PartitionError) Unwrap() error { return e.cause }

// QueryError wraps a failure outside the per-partition loop with the
// operation that raised it.
//
// The underlying error can be accessed via errors.Unwrap.
type QueryError struct {
	// Op names the failed operation, e.g. "discover".
	Op    string
	cause error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s: %v", e.Op, e.cause)
}

func (e *QueryError) Unwrap() error { return e.cause }
