package vulnquery

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/hupe1980/vulnquery/runtime"
)

// QueryCommits returns every commit row whose revision identifier equals
// revision, across all partitions of dataset. The result is deduplicated
// and in first-seen order; an empty result means "not found", not failure.
func (e *Engine) QueryCommits(ctx context.Context, revision, dataset string) ([]CommitRecord, error) {
	start := time.Now()

	raw, err := e.scanPartitions(ctx, dataset, scanSpec{
		columns:      []string{colRevision, colFilename},
		predicateCol: colRevision,
		predicate:    revision,
	})
	if err != nil {
		e.metrics.RecordQuery(0, time.Since(start), err)
		e.logger.LogQuery(ctx, "commits", dataset, 0, 0, err)
		return nil, err
	}

	records := make([]CommitRecord, 0, len(raw.rows))
	for _, row := range raw.rows {
		records = append(records, CommitRecord{
			RevisionID: row[0],
			Filename:   row[1],
		})
	}
	records = dedupe(records)

	e.metrics.RecordQuery(len(records), time.Since(start), nil)
	e.logger.LogQuery(ctx, "commits", dataset, raw.partitions, len(records), nil)
	return records, nil
}

// QueryOrigins returns every origin row whose origin equals origin, across
// all partitions of dataset. The result is deduplicated and in first-seen
// order; an empty result means "not found", not failure.
func (e *Engine) QueryOrigins(ctx context.Context, origin, dataset string) ([]OriginRecord, error) {
	start := time.Now()

	raw, err := e.scanPartitions(ctx, dataset, scanSpec{
		columns:      []string{colOrigin, colRevision, colBranch, colFilename},
		predicateCol: colOrigin,
		predicate:    origin,
	})
	if err != nil {
		e.metrics.RecordQuery(0, time.Since(start), err)
		e.logger.LogQuery(ctx, "origins", dataset, 0, 0, err)
		return nil, err
	}

	records := make([]OriginRecord, 0, len(raw.rows))
	for _, row := range raw.rows {
		records = append(records, OriginRecord{
			Origin:     row[0],
			RevisionID: row[1],
			Branch:     row[2],
			Filename:   row[3],
		})
	}
	records = dedupe(records)

	e.metrics.RecordQuery(len(records), time.Since(start), nil)
	e.logger.LogQuery(ctx, "origins", dataset, raw.partitions, len(records), nil)
	return records, nil
}

// scanResult is the accumulated output of one partition walk.
type scanResult struct {
	rows       [][]string
	partitions int
}

// scanPartitions runs one logical query: lazy runtime bring-up, fresh
// partition discovery, then an in-order walk issuing one column-projected
// equality scan per partition. Partition-level failures are contained to
// the failing partition; everything else aborts the walk.
func (e *Engine) scanPartitions(ctx context.Context, dataset string, spec scanSpec) (scanResult, error) {
	// A ready runtime means Initialize is a fast-path no-op, which is not a
	// bring-up attempt and must not count as one.
	wasReady := e.runtime.State() == runtime.StateReady
	initStart := time.Now()
	if err := e.runtime.Initialize(ctx, e.cfg); err != nil {
		e.metrics.RecordInitialize(time.Since(initStart), err)
		return scanResult{}, err
	}
	if !wasReady {
		e.metrics.RecordInitialize(time.Since(initStart), nil)
	}

	discoverStart := time.Now()
	partitions, err := e.discoverer.Discover(ctx, dataset)
	if err != nil {
		return scanResult{}, &QueryError{Op: "discover", cause: err}
	}
	e.metrics.RecordDiscovery(len(partitions), time.Since(discoverStart))

	if len(partitions) == 0 {
		return scanResult{}, fmt.Errorf("%w: dataset %q", ErrNoPartitions, dataset)
	}

	result := scanResult{partitions: len(partitions)}
	matched := false

	for _, p := range partitions {
		rows, err := e.scanner.scanPartition(ctx, partitionAlias(), e.location(p.Key), spec)
		if err != nil {
			// Caller cancellation is not a partition problem.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return scanResult{}, &QueryError{Op: "scan", cause: ctxErr}
			}

			perr := &PartitionError{
				Key:       p.Key,
				Index:     p.Index,
				Oversized: isOversizedMetadata(err),
				cause:     err,
			}
			e.logger.LogPartitionSkip(ctx, perr)
			e.metrics.RecordPartitionSkip(perr.Oversized)
			continue
		}

		if len(rows) > 0 {
			matched = true
			result.rows = append(result.rows, rows...)
			continue
		}

		// Sorted datasets keep all rows for one predicate value contiguous,
		// so the first empty partition after a match ends the walk.
		if matched && e.sortedDataset {
			e.logger.LogEarlyStop(ctx, dataset, p.Index, len(partitions))
			break
		}
	}

	return result, nil
}

// location composes the runtime-readable URL for an object key. The store
// prefix is applied here too: discovery keys are store-relative because the
// object store prefixes them itself, but the runtime addresses the bucket
// directly and needs the full key.
func (e *Engine) location(key string) string {
	return fmt.Sprintf("s3://%s/%s", e.cfg.Bucket, path.Join(e.storePrefix, key))
}

// isOversizedMetadata classifies scan failures caused by partition metadata
// exceeding a client-side size or memory limit, which logging keeps apart
// from generic transport failure.
func isOversizedMetadata(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "out of memory") ||
		strings.Contains(msg, "memory limit") ||
		strings.Contains(msg, "exceeds") && strings.Contains(msg, "limit")
}

// IsNoPartitions reports whether err means discovery found zero partitions.
func IsNoPartitions(err error) bool {
	return errors.Is(err, ErrNoPartitions)
}
