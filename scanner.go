package vulnquery

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hupe1980/vulnquery/runtime"
)

// scanSpec describes one partition scan: the projected columns and the
// exact-equality predicate. Equality is case-sensitive with no
// normalization; normalizing the predicate (e.g. identifier prefixing) is
// the caller's job.
type scanSpec struct {
	columns      []string
	predicateCol string
	predicate    string
}

// partitionScanner scans a single partition. alias is a call-scoped unique
// name for the partition source within the scan statement, so concurrent
// queries never collide on a shared name.
type partitionScanner interface {
	scanPartition(ctx context.Context, alias, location string, spec scanSpec) ([][]string, error)
}

// duckdbScanner scans partitions through the managed DuckDB runtime.
type duckdbScanner struct {
	rt *runtime.Manager
}

// scanPartition runs a column-projected equality scan over location, named
// alias for the duration of the statement.
//
// The scan is one self-contained statement. database/sql hands pooled
// connections out arbitrarily, and session state like a temp view created on
// one connection is invisible to the next, so nothing here may depend on
// state surviving across statements. Inlining the source also leaves no
// per-scan state behind for long-lived sessions to accumulate.
func (s *duckdbScanner) scanPartition(ctx context.Context, alias, location string, spec scanSpec) ([][]string, error) {
	db, err := s.rt.DB()
	if err != nil {
		return nil, err
	}

	// hive_partitioning stays off: partitions are flat files, and a
	// directory-derived column would shadow real ones.
	query := fmt.Sprintf(
		`SELECT %s FROM (SELECT * FROM read_parquet(%s, hive_partitioning = false)) AS %s WHERE %s = ?`,
		strings.Join(spec.columns, ", "), quoteLiteral(location), alias, spec.predicateCol,
	)
	rows, err := db.QueryContext(ctx, query, spec.predicate)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out [][]string
	for rows.Next() {
		values := make([]string, len(spec.columns))
		dest := make([]any, len(spec.columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// partitionAlias returns a call-scoped unique SQL identifier.
func partitionAlias() string {
	return "part_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// quoteLiteral renders s as a single-quoted SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
