package vulnquery

import (
	"log/slog"
	"time"

	"github.com/hupe1980/vulnquery/objstore"
	"github.com/hupe1980/vulnquery/runtime"
)

type options struct {
	logger        *Logger
	metrics       MetricsCollector
	progress      runtime.ProgressFunc
	store         objstore.Store
	storePrefix   string
	maxPartitions int
	partitionExt  string
	probesPerSec  float64
	sortedDataset bool
	threads       int
	httpTimeout   time.Duration
}

// Option configures Engine construction.
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithProgress registers a callback for staged runtime bring-up progress.
// percent is in [0,100] and increases monotonically; a successful
// initialization always ends with 100.
func WithProgress(fn runtime.ProgressFunc) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// WithStore overrides the object store used for partition discovery and
// document fetches. The default is an anonymous MinIO client for the
// configured endpoint.
func WithStore(store objstore.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithStorePrefix prepends a key prefix to all dataset keys,
// e.g. "datasets/".
func WithStorePrefix(prefix string) Option {
	return func(o *options) {
		o.storePrefix = prefix
	}
}

// WithMaxPartitions caps discovery probing per query. The default cap of
// 100 bounds misbehaving endpoints that report every key as present.
func WithMaxPartitions(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxPartitions = n
		}
	}
}

// WithPartitionExt overrides the partition file extension (without dot).
// Default: "parquet".
func WithPartitionExt(ext string) Option {
	return func(o *options) {
		if ext != "" {
			o.partitionExt = ext
		}
	}
}

// WithProbeRate limits discovery probes to n requests per second.
// Zero (the default) disables pacing.
func WithProbeRate(n float64) Option {
	return func(o *options) {
		o.probesPerSec = n
	}
}

// WithSortedDataset declares a producer guarantee that all rows for one
// predicate value are physically contiguous across the partition sequence.
// With the guarantee in place the engine stops scanning at the first empty
// partition after a match instead of visiting every partition.
//
// The guarantee is not verified. Enabling this for an unsorted dataset
// silently truncates results.
func WithSortedDataset() Option {
	return func(o *options) {
		o.sortedDataset = true
	}
}

// WithThreads caps the runtime's scan parallelism. Zero keeps the runtime
// default.
func WithThreads(n int) Option {
	return func(o *options) {
		o.threads = n
	}
}

// WithHTTPTimeout bounds each outbound request of the runtime. This is the
// only bound on a hung remote operation. Zero keeps the runtime default.
func WithHTTPTimeout(d time.Duration) Option {
	return func(o *options) {
		o.httpTimeout = d
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:  NoopLogger(),
		metrics: NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
