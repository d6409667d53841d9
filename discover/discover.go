// Package discover locates the partition files that make up a logical
// dataset.
//
// Datasets are laid out as `{dataset}/{N}.parquet` for N = 0, 1, 2, ... with
// no gaps. Discovery probes sequential indices until one is missing; the
// first gap (or any transport failure, treated conservatively as absence)
// ends the dataset. Probing order equals physical row order, which the
// executor relies on for its early-stop heuristic.
package discover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hupe1980/vulnquery/objstore"
	"golang.org/x/time/rate"
)

// DefaultMaxPartitions bounds probing against misbehaving endpoints that
// report every key as present.
const DefaultMaxPartitions = 100

// DefaultExt is the file extension of partition files.
const DefaultExt = "parquet"

// Partition is one independently fetchable columnar file of a dataset.
type Partition struct {
	// Key is the object key relative to the store root,
	// e.g. "cve-commits/3.parquet".
	Key string
	// Index is the sequential partition index.
	Index int
}

// Options configures a Discoverer.
type Options struct {
	// Ext is the partition file extension (without dot). Default: "parquet".
	Ext string

	// MaxPartitions caps the number of probes per discovery.
	// Default: DefaultMaxPartitions.
	MaxPartitions int

	// Limiter paces probe requests. Nil disables pacing.
	Limiter *rate.Limiter

	// Logger receives probe diagnostics. Nil discards them.
	Logger *slog.Logger
}

// Discoverer probes an object store for the partitions of a dataset.
type Discoverer struct {
	store   objstore.Store
	ext     string
	max     int
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a Discoverer over the given store.
func New(store objstore.Store, optFns ...func(o *Options)) *Discoverer {
	opts := Options{
		Ext:           DefaultExt,
		MaxPartitions: DefaultMaxPartitions,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Discoverer{
		store:   store,
		ext:     opts.Ext,
		max:     opts.MaxPartitions,
		limiter: opts.Limiter,
		logger:  logger,
	}
}

// Discover returns the ordered list of reachable partitions for dataset.
//
// Discovery is strictly sequential: index N+1 is only probed after index N
// was confirmed. An empty result is not an error here; callers decide
// whether zero partitions is fatal. The only returned errors are context
// cancellation and deadline expiry.
func (d *Discoverer) Discover(ctx context.Context, dataset string) ([]Partition, error) {
	var partitions []Partition

	for i := 0; i < d.max; i++ {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		key := fmt.Sprintf("%s/%d.%s", dataset, i, d.ext)
		_, err := d.store.Stat(ctx, key)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if !errors.Is(err, objstore.ErrNotFound) {
				// Transport failure: treat as end of dataset rather than
				// guessing at indices we cannot confirm.
				d.logger.WarnContext(ctx, "partition probe failed, ending discovery",
					"dataset", dataset,
					"key", key,
					"error", err,
				)
			}
			break
		}

		partitions = append(partitions, Partition{Key: key, Index: i})
	}

	d.logger.DebugContext(ctx, "discovery completed",
		"dataset", dataset,
		"partitions", len(partitions),
	)

	return partitions, nil
}
