// Package objstore abstracts access to the remote object endpoint that
// serves the partitioned datasets.
//
// The core engine needs exactly two primitives: a cheap existence probe
// (partition discovery walks sequential keys until one is missing) and a
// whole-object read (advisory documents). Byte-range access to partition
// files is owned by the query runtime itself via httpfs, so it is
// deliberately absent here.
//
// Backends:
//   - objstore/minio: MinIO and any S3-compatible endpoint (default)
//   - objstore/s3: AWS S3 via aws-sdk-go-v2
//   - MemoryStore: in-memory store for tests
package objstore
