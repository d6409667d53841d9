package objstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when an object does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// ObjectInfo describes a remote object.
type ObjectInfo struct {
	// Key is the object key relative to the store root.
	Key string
	// Size is the object size in bytes.
	Size int64
}

// Store is a read-only abstraction over an S3-compatible object endpoint.
//
// The query engine only ever probes for existence (partition discovery) and
// streams whole objects (advisory documents); byte-range reads on partition
// files happen inside the query runtime, not through this interface.
type Store interface {
	// Stat probes an object. It returns ErrNotFound if the object
	// does not exist.
	Stat(ctx context.Context, key string) (ObjectInfo, error)

	// Get opens an object for reading. The caller must close the
	// returned reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}
