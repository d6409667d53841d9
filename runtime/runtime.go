// Package runtime owns the lifecycle of the embedded DuckDB runtime that
// executes partition scans.
//
// Bringing the runtime up is expensive (database open, httpfs extension
// load, remote-store configuration), so it happens lazily and exactly once
// even under concurrent callers. The manager is an explicit object owned by
// the caller's composition root; there is no package-level singleton.
package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// State describes the lifecycle phase of a Manager.
type State int32

const (
	// StateUninitialized means no runtime exists yet. Initialize may be called.
	StateUninitialized State = iota
	// StateInitializing means a bring-up sequence is in flight.
	StateInitializing
	// StateReady means the runtime is usable and its configuration is pinned.
	StateReady
	// StateClosed is the transient phase while Close tears resources down;
	// it always resolves back to StateUninitialized.
	StateClosed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config describes the remote store the runtime reads partitions from.
// It is immutable for the lifetime of a ready runtime.
type Config struct {
	// Endpoint is the object endpoint URL, e.g. "https://data.example.org".
	Endpoint string
	// Bucket is the bucket holding the datasets.
	Bucket string
	// Region is optional; most S3-compatible endpoints ignore it.
	Region string
}

// flightKey identifies a bring-up by the full configuration tuple, so
// concurrent Initialize callers only join a flight for the same
// configuration. The separator cannot appear in endpoint or bucket names.
func (c Config) flightKey() string {
	return c.Endpoint + "\x1f" + c.Bucket + "\x1f" + c.Region
}

// ProgressFunc receives staged bring-up progress. percent is in [0,100] and
// increases monotonically; a successful initialization always ends with 100.
type ProgressFunc func(stage string, percent int)

// DB is the subset of *sql.DB the engine depends on.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Close() error
}

// OpenFunc performs the mandatory bring-up steps and returns the database
// plus a pinned session connection (closed before the database on teardown).
// It exists as a seam for tests and alternative runtimes; the default opens
// DuckDB with httpfs.
type OpenFunc func(ctx context.Context, cfg Config, report ProgressFunc) (DB, io.Closer, error)

// Options configures a Manager.
type Options struct {
	// Progress receives staged bring-up progress. Nil disables reporting.
	Progress ProgressFunc

	// Logger receives lifecycle diagnostics. Nil discards them.
	Logger *slog.Logger

	// Open overrides the bring-up sequence. Nil uses the DuckDB default.
	Open OpenFunc

	// Threads caps the runtime's scan parallelism. Zero keeps the
	// runtime default.
	Threads int

	// HTTPTimeout bounds each outbound request of the runtime. This is the
	// only bound on a hung remote operation; there is no other cancellation
	// of an individual scan. Zero keeps the runtime default.
	HTTPTimeout time.Duration
}

// Manager owns the runtime handle and guards its state machine:
//
//	Uninitialized -> Initializing -> Ready -> (Closed ->) Uninitialized
//
// with Initializing -> Uninitialized on failure. At most one bring-up
// sequence per configuration is ever in flight; concurrent Initialize
// callers with an equal configuration join it.
type Manager struct {
	mu    sync.Mutex
	state State
	cfg   Config
	db    DB
	conn  io.Closer

	flight   singleflight.Group
	open     OpenFunc
	progress ProgressFunc
	logger   *slog.Logger

	lastPercent int
}

// NewManager creates a Manager in StateUninitialized.
func NewManager(optFns ...func(o *Options)) *Manager {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	open := opts.Open
	if open == nil {
		open = duckdbOpen(duckdbOptions{
			threads:     opts.Threads,
			httpTimeout: opts.HTTPTimeout,
			logger:      logger,
		})
	}

	return &Manager{
		state:    StateUninitialized,
		open:     open,
		progress: opts.Progress,
		logger:   logger,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// DB returns the runtime database. It fails unless the manager is Ready.
func (m *Manager) DB() (DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateReady {
		return nil, fmt.Errorf("runtime: not ready (state %s)", m.state)
	}
	return m.db, nil
}

// Initialize brings the runtime up for cfg.
//
// If the manager is already Ready with an equal configuration, it returns
// immediately. If a bring-up for the same configuration is in flight, the
// call joins it instead of starting a second sequence; a caller with a
// different configuration never observes another configuration's success.
// A configuration change tears the old runtime down before the fresh
// bring-up. On failure the manager resets to StateUninitialized so a later
// call may retry.
func (m *Manager) Initialize(ctx context.Context, cfg Config) error {
	m.mu.Lock()
	if m.state == StateReady && m.cfg == cfg {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	_, err, _ := m.flight.Do(cfg.flightKey(), func() (any, error) {
		return nil, m.initialize(ctx, cfg)
	})
	return err
}

func (m *Manager) initialize(ctx context.Context, cfg Config) error {
	m.mu.Lock()
	if m.state == StateReady {
		if m.cfg == cfg {
			m.mu.Unlock()
			return nil
		}
		// Configuration changed: the old runtime is torn down first so a
		// half-configured handle is never observable.
		db, conn := m.db, m.conn
		m.db, m.conn = nil, nil
		m.state = StateUninitialized
		m.mu.Unlock()
		m.teardown(db, conn)
		m.mu.Lock()
	}
	m.state = StateInitializing
	m.lastPercent = 0
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "runtime bring-up started",
		"endpoint", cfg.Endpoint,
		"bucket", cfg.Bucket,
	)

	db, conn, err := m.open(ctx, cfg, m.report)
	if err != nil {
		m.mu.Lock()
		m.state = StateUninitialized
		m.mu.Unlock()
		m.logger.ErrorContext(ctx, "runtime bring-up failed", "error", err)
		return err
	}

	m.mu.Lock()
	m.db = db
	m.conn = conn
	m.cfg = cfg
	m.state = StateReady
	m.mu.Unlock()

	m.report(StageReady, 100)
	m.logger.InfoContext(ctx, "runtime ready", "endpoint", cfg.Endpoint)
	return nil
}

// report forwards progress, clamped to be monotonically non-decreasing per
// bring-up sequence.
func (m *Manager) report(stage string, percent int) {
	if m.progress == nil {
		return
	}
	m.mu.Lock()
	if percent < m.lastPercent {
		percent = m.lastPercent
	}
	m.lastPercent = percent
	m.mu.Unlock()
	m.progress(stage, percent)
}

// Close releases the pinned connection, then the database, in that order.
// Both are attempted even if the first fails, and the manager always ends
// in StateUninitialized so resources are not leaked on partial teardown.
//
// Close must not be called while queries are in flight; that is a caller
// obligation, not enforced here.
func (m *Manager) Close() error {
	m.mu.Lock()
	db, conn := m.db, m.conn
	m.db, m.conn = nil, nil
	m.state = StateClosed
	m.mu.Unlock()

	err := m.teardown(db, conn)

	m.mu.Lock()
	m.state = StateUninitialized
	m.cfg = Config{}
	m.mu.Unlock()
	return err
}

func (m *Manager) teardown(db DB, conn io.Closer) error {
	var firstErr error
	if conn != nil {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if db != nil {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
