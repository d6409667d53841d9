package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	// Registers the "duckdb" database/sql driver.
	_ "github.com/marcboeker/go-duckdb"
)

// Bring-up stages, reported in this order with ascending percentages.
const (
	StageOpen       = "open database"
	StageExtensions = "load extensions"
	StageConnect    = "open connection"
	StageRemote     = "configure remote store"
	StageTuning     = "apply tuning"
	StageReady      = "ready"
)

type duckdbOptions struct {
	threads     int
	httpTimeout time.Duration
	logger      *slog.Logger
}

// duckdbOpen returns the default OpenFunc: an in-memory DuckDB with the
// httpfs extension loaded and the remote store configured for anonymous
// range-request access. The parquet reader is built in and gives us
// column projection, filter pushdown and bloom-filter pruning for free.
func duckdbOpen(opts duckdbOptions) OpenFunc {
	return func(ctx context.Context, cfg Config, report ProgressFunc) (DB, io.Closer, error) {
		report(StageOpen, 10)
		db, err := sql.Open("duckdb", "")
		if err != nil {
			return nil, nil, &InitError{Stage: StageOpen, cause: err}
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, &InitError{Stage: StageOpen, cause: err}
		}

		fail := func(stage string, conn io.Closer, err error) (DB, io.Closer, error) {
			if conn != nil {
				_ = conn.Close()
			}
			_ = db.Close()
			return nil, nil, &InitError{Stage: stage, cause: err}
		}

		report(StageExtensions, 30)
		for _, stmt := range []string{
			`INSTALL httpfs`,
			`LOAD httpfs`,
		} {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fail(StageExtensions, nil, fmt.Errorf("%s: %w", stmt, err))
			}
		}

		// A pinned session keeps the in-memory database alive independent of
		// pool churn and is where all settings are applied.
		report(StageConnect, 50)
		conn, err := db.Conn(ctx)
		if err != nil {
			return fail(StageConnect, nil, err)
		}

		report(StageRemote, 75)
		for _, stmt := range remoteStoreStatements(cfg) {
			if _, err := conn.ExecContext(ctx, stmt); err != nil {
				return fail(StageRemote, conn, fmt.Errorf("%s: %w", stmt, err))
			}
		}

		// Tuning toggles are strictly best effort: runtimes vary in which
		// settings they expose, and an unsupported toggle must never abort
		// the bring-up.
		report(StageTuning, 90)
		for _, stmt := range tuningStatements(opts) {
			if _, err := conn.ExecContext(ctx, stmt); err != nil {
				opts.logger.WarnContext(ctx, "tuning toggle not supported, skipping",
					"statement", stmt,
					"error", err,
				)
			}
		}

		return db, conn, nil
	}
}

// remoteStoreStatements yields the mandatory s3 settings for cfg.
// DuckDB wants a bare host for s3_endpoint; the scheme selects SSL.
func remoteStoreStatements(cfg Config) []string {
	host := cfg.Endpoint
	useSSL := true
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		host = u.Host
		useSSL = u.Scheme != "http"
	}

	stmts := []string{
		fmt.Sprintf(`SET GLOBAL s3_endpoint = %s`, quoteLiteral(host)),
		`SET GLOBAL s3_url_style = 'path'`,
		fmt.Sprintf(`SET GLOBAL s3_use_ssl = %t`, useSSL),
	}
	if cfg.Region != "" {
		stmts = append(stmts, fmt.Sprintf(`SET GLOBAL s3_region = %s`, quoteLiteral(cfg.Region)))
	}
	return stmts
}

// tuningStatements yields the best-effort performance toggles.
func tuningStatements(opts duckdbOptions) []string {
	stmts := []string{
		`SET GLOBAL enable_object_cache = true`,
		`SET GLOBAL enable_http_metadata_cache = true`,
		`SET GLOBAL parquet_metadata_cache = true`,
		// Empty list re-enables every optimizer, filter pushdown included.
		`SET GLOBAL disabled_optimizers = ''`,
		// Partitions are probed one at a time; prefetching whole files
		// defeats range-request scans.
		`SET GLOBAL prefetch_all_parquet_files = false`,
		`SET GLOBAL http_keep_alive = true`,
		`SET GLOBAL http_retries = 2`,
	}
	if opts.httpTimeout > 0 {
		stmts = append(stmts, fmt.Sprintf(`SET GLOBAL http_timeout = %d`, opts.httpTimeout.Milliseconds()))
	}
	if opts.threads > 0 {
		stmts = append(stmts, fmt.Sprintf(`SET GLOBAL threads = %d`, opts.threads))
	}
	return stmts
}

// quoteLiteral renders s as a single-quoted SQL string literal.
func quoteLiteral(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '\'')
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'')
		}
		out = append(out, s[i])
	}
	out = append(out, '\'')
	return string(out)
}
