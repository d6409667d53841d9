package vulnquery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/vulnquery/discover"
	"github.com/hupe1980/vulnquery/objstore"
	"github.com/hupe1980/vulnquery/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDB satisfies runtime.DB without a real driver.
type fakeDB struct {
	closed atomic.Bool
}

func (f *fakeDB) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, nil
}

func (f *fakeDB) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("fakeDB: not queryable")
}

func (f *fakeDB) Close() error {
	f.closed.Store(true)
	return nil
}

// fakeScanner returns canned rows per location and records every scan.
type fakeScanner struct {
	mu      sync.Mutex
	rows    map[string][][]string
	errs    map[string]error
	visited []string
	aliases []string
}

func (f *fakeScanner) scanPartition(_ context.Context, alias, location string, _ scanSpec) ([][]string, error) {
	f.mu.Lock()
	f.visited = append(f.visited, location)
	f.aliases = append(f.aliases, alias)
	f.mu.Unlock()

	if err := f.errs[location]; err != nil {
		return nil, err
	}
	return f.rows[location], nil
}

// newTestEngine wires an Engine with an in-memory store, a fake runtime and
// a fake scanner. keys become discoverable partitions.
func newTestEngine(t *testing.T, scanner *fakeScanner, keys []string, optFns ...Option) (*Engine, *atomic.Int32) {
	t.Helper()

	mem := objstore.NewMemoryStore()
	for _, key := range keys {
		mem.Put(key, []byte("parquet"))
	}

	var opens atomic.Int32
	rt := runtime.NewManager(func(o *runtime.Options) {
		o.Open = func(context.Context, runtime.Config, runtime.ProgressFunc) (runtime.DB, io.Closer, error) {
			opens.Add(1)
			return &fakeDB{}, nil, nil
		}
	})

	opts := applyOptions(optFns)

	return &Engine{
		cfg:           Config{Endpoint: "https://data.example.org", Bucket: "vulndb"},
		storePrefix:   opts.storePrefix,
		runtime:       rt,
		discoverer:    discover.New(mem),
		scanner:       scanner,
		logger:        NoopLogger(),
		metrics:       opts.metrics,
		sortedDataset: opts.sortedDataset,
	}, &opens
}

func partitionKeys(dataset string, n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("%s/%d.parquet", dataset, i)
	}
	return keys
}

func loc(key string) string {
	return "s3://vulndb/" + key
}

func TestQueryCommits_EndToEnd(t *testing.T) {
	// Three partitions: 0 has no matches, 1 has two, 2 has none.
	scanner := &fakeScanner{
		rows: map[string][][]string{
			loc("cve-commits/1.parquet"): {
				{"a1b2c3", "CVE-2021-1111.json"},
				{"a1b2c3", "CVE-2021-2222.json"},
			},
		},
	}
	e, _ := newTestEngine(t, scanner, partitionKeys("cve-commits", 3))

	records, err := e.QueryCommits(context.Background(), "a1b2c3", "cve-commits")
	require.NoError(t, err)

	assert.Equal(t, []CommitRecord{
		{RevisionID: "a1b2c3", Filename: "CVE-2021-1111.json"},
		{RevisionID: "a1b2c3", Filename: "CVE-2021-2222.json"},
	}, records)
	assert.Len(t, scanner.visited, 3)
}

func TestQueryCommits_SortedEarlyStop(t *testing.T) {
	// Matches end at partition 1; partition 2 is the empty partition that
	// triggers the stop, and 3..4 must never be scanned.
	scanner := &fakeScanner{
		rows: map[string][][]string{
			loc("cve-commits/0.parquet"): {{"deadbeef", "CVE-1.json"}},
			loc("cve-commits/1.parquet"): {{"deadbeef", "CVE-2.json"}},
			loc("cve-commits/3.parquet"): {{"deadbeef", "CVE-9.json"}},
		},
	}
	e, _ := newTestEngine(t, scanner, partitionKeys("cve-commits", 5), WithSortedDataset())

	records, err := e.QueryCommits(context.Background(), "deadbeef", "cve-commits")
	require.NoError(t, err)

	assert.Len(t, records, 2)
	assert.Equal(t, []string{
		loc("cve-commits/0.parquet"),
		loc("cve-commits/1.parquet"),
		loc("cve-commits/2.parquet"),
	}, scanner.visited)
}

func TestQueryCommits_UnsortedScansAll(t *testing.T) {
	scanner := &fakeScanner{
		rows: map[string][][]string{
			loc("cve-commits/0.parquet"): {{"deadbeef", "CVE-1.json"}},
			loc("cve-commits/3.parquet"): {{"deadbeef", "CVE-9.json"}},
		},
	}
	e, _ := newTestEngine(t, scanner, partitionKeys("cve-commits", 5))

	records, err := e.QueryCommits(context.Background(), "deadbeef", "cve-commits")
	require.NoError(t, err)

	assert.Len(t, records, 2)
	assert.Len(t, scanner.visited, 5)
}

func TestQueryCommits_PartitionIsolation(t *testing.T) {
	// Partition 2 of 5 fails; its rows are lost, everything else survives.
	scanner := &fakeScanner{
		rows: map[string][][]string{
			loc("cve-commits/0.parquet"): {{"rev", "CVE-0.json"}},
			loc("cve-commits/1.parquet"): {{"rev", "CVE-1.json"}},
			loc("cve-commits/3.parquet"): {{"rev", "CVE-3.json"}},
			loc("cve-commits/4.parquet"): {{"rev", "CVE-4.json"}},
		},
		errs: map[string]error{
			loc("cve-commits/2.parquet"): errors.New("connection reset by peer"),
		},
	}
	metrics := &BasicMetricsCollector{}
	e, _ := newTestEngine(t, scanner, partitionKeys("cve-commits", 5), WithMetricsCollector(metrics))

	records, err := e.QueryCommits(context.Background(), "rev", "cve-commits")
	require.NoError(t, err)

	assert.Equal(t, []CommitRecord{
		{RevisionID: "rev", Filename: "CVE-0.json"},
		{RevisionID: "rev", Filename: "CVE-1.json"},
		{RevisionID: "rev", Filename: "CVE-3.json"},
		{RevisionID: "rev", Filename: "CVE-4.json"},
	}, records)
	assert.Len(t, scanner.visited, 5)
	assert.Equal(t, int64(1), metrics.PartitionsSkipped.Load())
	assert.Equal(t, int64(0), metrics.OversizedSkipped.Load())
}

func TestQueryCommits_OversizedMetadataClassified(t *testing.T) {
	scanner := &fakeScanner{
		errs: map[string]error{
			loc("cve-commits/0.parquet"): errors.New("parquet footer exceeds configured limit"),
		},
	}
	metrics := &BasicMetricsCollector{}
	e, _ := newTestEngine(t, scanner, partitionKeys("cve-commits", 1), WithMetricsCollector(metrics))

	records, err := e.QueryCommits(context.Background(), "rev", "cve-commits")
	require.NoError(t, err)

	assert.Empty(t, records)
	assert.Equal(t, int64(1), metrics.OversizedSkipped.Load())
}

func TestQueryCommits_NoPartitions(t *testing.T) {
	e, _ := newTestEngine(t, &fakeScanner{}, nil)

	_, err := e.QueryCommits(context.Background(), "rev", "missing-dataset")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoPartitions)
	assert.True(t, IsNoPartitions(err))
}

func TestQueryCommits_EmptyResultIsNotAnError(t *testing.T) {
	e, _ := newTestEngine(t, &fakeScanner{}, partitionKeys("cve-commits", 2))

	records, err := e.QueryCommits(context.Background(), "no-such-rev", "cve-commits")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestQueryCommits_DeduplicatesAcrossPartitions(t *testing.T) {
	scanner := &fakeScanner{
		rows: map[string][][]string{
			loc("cve-commits/0.parquet"): {{"rev", "CVE-1.json"}, {"rev", "CVE-1.json"}},
			loc("cve-commits/1.parquet"): {{"rev", "CVE-1.json"}, {"rev", "CVE-2.json"}},
		},
	}
	e, _ := newTestEngine(t, scanner, partitionKeys("cve-commits", 2))

	records, err := e.QueryCommits(context.Background(), "rev", "cve-commits")
	require.NoError(t, err)

	assert.Equal(t, []CommitRecord{
		{RevisionID: "rev", Filename: "CVE-1.json"},
		{RevisionID: "rev", Filename: "CVE-2.json"},
	}, records)
}

func TestQueryOrigins_Projection(t *testing.T) {
	origin := "https://github.com/acme/app"
	scanner := &fakeScanner{
		rows: map[string][][]string{
			loc("cve-origins/0.parquet"): {
				{origin, "a1b2c3", "main", "CVE-2021-1111.json"},
			},
		},
	}
	e, _ := newTestEngine(t, scanner, partitionKeys("cve-origins", 1))

	records, err := e.QueryOrigins(context.Background(), origin, "cve-origins")
	require.NoError(t, err)

	assert.Equal(t, []OriginRecord{
		{Origin: origin, RevisionID: "a1b2c3", Branch: "main", Filename: "CVE-2021-1111.json"},
	}, records)
}

func TestQueryCommits_StorePrefixAppliedToScanLocations(t *testing.T) {
	// Discovery keys stay store-relative (the store prefixes its own
	// requests), but the runtime addresses the bucket directly, so scan
	// locations must carry the prefix.
	scanner := &fakeScanner{
		rows: map[string][][]string{
			"s3://vulndb/datasets/cve-commits/0.parquet": {{"rev", "CVE-1.json"}},
		},
	}
	e, _ := newTestEngine(t, scanner, partitionKeys("cve-commits", 2), WithStorePrefix("datasets"))

	records, err := e.QueryCommits(context.Background(), "rev", "cve-commits")
	require.NoError(t, err)

	assert.Equal(t, []CommitRecord{{RevisionID: "rev", Filename: "CVE-1.json"}}, records)
	assert.Equal(t, []string{
		"s3://vulndb/datasets/cve-commits/0.parquet",
		"s3://vulndb/datasets/cve-commits/1.parquet",
	}, scanner.visited)
}

func TestQuery_InitializeRecordedOncePerBringUp(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	e, opens := newTestEngine(t, &fakeScanner{}, partitionKeys("cve-commits", 1), WithMetricsCollector(metrics))

	// The second query takes the ready fast path, which is not a bring-up.
	_, err := e.QueryCommits(context.Background(), "rev", "cve-commits")
	require.NoError(t, err)
	_, err = e.QueryCommits(context.Background(), "rev", "cve-commits")
	require.NoError(t, err)

	assert.Equal(t, int32(1), opens.Load())
	assert.Equal(t, int64(1), metrics.InitCount.Load())

	// Close resets the runtime; the next query is a real bring-up again.
	require.NoError(t, e.Close())
	_, err = e.QueryCommits(context.Background(), "rev", "cve-commits")
	require.NoError(t, err)

	assert.Equal(t, int32(2), opens.Load())
	assert.Equal(t, int64(2), metrics.InitCount.Load())
}

func TestQuery_AliasesAreUnique(t *testing.T) {
	scanner := &fakeScanner{}
	e, _ := newTestEngine(t, scanner, partitionKeys("cve-commits", 4))

	_, err := e.QueryCommits(context.Background(), "rev", "cve-commits")
	require.NoError(t, err)
	_, err = e.QueryCommits(context.Background(), "rev", "cve-commits")
	require.NoError(t, err)

	seen := make(map[string]struct{}, len(scanner.aliases))
	for _, alias := range scanner.aliases {
		_, dup := seen[alias]
		assert.False(t, dup, "alias %q registered twice", alias)
		seen[alias] = struct{}{}
	}
	assert.Len(t, seen, 8)
}

func TestQuery_RuntimeBroughtUpOnce(t *testing.T) {
	e, opens := newTestEngine(t, &fakeScanner{}, partitionKeys("cve-commits", 1))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.QueryCommits(context.Background(), "rev", "cve-commits")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), opens.Load())
	assert.Equal(t, runtime.StateReady, e.Runtime().State())
}

func TestQueryCommits_ContextCancellationAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	scanner := &fakeScanner{
		errs: map[string]error{
			loc("cve-commits/0.parquet"): context.Canceled,
		},
	}
	e, _ := newTestEngine(t, scanner, partitionKeys("cve-commits", 3))

	// Initialize and discover first so cancellation hits the scan loop.
	require.NoError(t, e.Initialize(ctx))
	cancel()

	_, err := e.QueryCommits(ctx, "rev", "cve-commits")
	require.Error(t, err)

	var qerr *QueryError
	if assert.ErrorAs(t, err, &qerr) {
		assert.ErrorIs(t, qerr, context.Canceled)
	}
}
