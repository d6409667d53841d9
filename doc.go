// Package vulnquery is a client-local query engine for vulnerability-to-
// commit datasets stored as parquet partitions behind a plain HTTP object
// endpoint.
//
// There is no always-on query server: the engine embeds DuckDB, discovers
// how many partition files a dataset has by probing sequential keys, and
// scans only the byte ranges and columns a query needs via httpfs range
// requests and parquet predicate pushdown. One bad partition never fails a
// whole query, and duplicate rows across partitions are folded away before
// results are returned.
//
// # Quick Start
//
//	engine, err := vulnquery.New(vulnquery.Config{
//	    Endpoint: "https://data.example.org",
//	    Bucket:   "vulndb",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	records, err := engine.QueryCommits(ctx, "a1b2c3d", "cve-commits")
//
// The DuckDB runtime is brought up lazily on the first query and exactly
// once even under concurrent callers; pass vulnquery.WithProgress to observe
// the staged bring-up.
//
// # Sorted datasets
//
// Producers that physically group all rows for a predicate value into a
// contiguous partition range can enable vulnquery.WithSortedDataset, which
// lets the engine stop scanning at the first empty partition after a match.
// The engine does not verify the guarantee; enabling it for an unsorted
// dataset silently truncates results.
package vulnquery
