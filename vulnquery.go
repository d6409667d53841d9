package vulnquery

import (
	"context"
	"fmt"

	"github.com/hupe1980/vulnquery/discover"
	miniostore "github.com/hupe1980/vulnquery/objstore/minio"
	"github.com/hupe1980/vulnquery/runtime"
	"golang.org/x/time/rate"
)

// Config describes the remote store holding the partitioned datasets.
// It is immutable for the lifetime of a ready engine; re-initialization
// only happens when the full tuple changes.
type Config = runtime.Config

// Engine is a read-only query façade over immutable remote partition files.
//
// Construct one per composition root and share it: the embedded runtime is
// brought up lazily on the first query, exactly once even under concurrent
// callers, and its connection is shared read-only across concurrent queries
// once ready. Close must not be called while queries are in flight; that is
// a caller obligation.
type Engine struct {
	cfg         Config
	storePrefix string
	runtime     *runtime.Manager
	discoverer  *discover.Discoverer
	scanner     partitionScanner

	logger        *Logger
	metrics       MetricsCollector
	sortedDataset bool
}

// New creates an Engine for cfg.
//
// The default object store is an anonymous MinIO client for cfg.Endpoint;
// pass WithStore to substitute any objstore.Store (AWS-signed S3, or an
// in-memory store in tests). No remote traffic happens here: discovery and
// runtime bring-up are deferred to the first query.
func New(cfg Config, optFns ...Option) (*Engine, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("vulnquery: config endpoint must not be empty")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("vulnquery: config bucket must not be empty")
	}

	opts := applyOptions(optFns)

	store := opts.store
	if store == nil {
		var err error
		store, err = miniostore.NewAnonymousStore(cfg.Endpoint, cfg.Bucket, opts.storePrefix)
		if err != nil {
			return nil, fmt.Errorf("vulnquery: create object store: %w", err)
		}
	}

	discoverer := discover.New(store, func(o *discover.Options) {
		if opts.maxPartitions > 0 {
			o.MaxPartitions = opts.maxPartitions
		}
		if opts.partitionExt != "" {
			o.Ext = opts.partitionExt
		}
		if opts.probesPerSec > 0 {
			o.Limiter = rate.NewLimiter(rate.Limit(opts.probesPerSec), 1)
		}
		o.Logger = opts.logger.Logger
	})

	rt := runtime.NewManager(func(o *runtime.Options) {
		o.Progress = opts.progress
		o.Logger = opts.logger.Logger
		o.Threads = opts.threads
		o.HTTPTimeout = opts.httpTimeout
	})

	return &Engine{
		cfg:           cfg,
		storePrefix:   opts.storePrefix,
		runtime:       rt,
		discoverer:    discoverer,
		scanner:       &duckdbScanner{rt: rt},
		logger:        opts.logger,
		metrics:       opts.metrics,
		sortedDataset: opts.sortedDataset,
	}, nil
}

// Initialize brings the runtime up eagerly. Queries do this lazily on
// demand; calling it up front just moves the bring-up cost to a point of
// the caller's choosing. Idempotent once ready.
func (e *Engine) Initialize(ctx context.Context) error {
	return e.runtime.Initialize(ctx, e.cfg)
}

// Runtime exposes the lifecycle state of the embedded runtime.
func (e *Engine) Runtime() *runtime.Manager {
	return e.runtime
}

// Close releases the runtime's connection and worker. The engine resets to
// its uninitialized state, so a later query would bring the runtime up
// again.
func (e *Engine) Close() error {
	err := e.runtime.Close()
	e.logger.LogClose(err)
	return err
}
