// Package minio provides an objstore.Store backed by MinIO or any
// S3-compatible endpoint.
//
// Partition discovery only issues HEAD requests, so anonymous access to a
// public bucket is sufficient; use NewAnonymousStore for that case.
package minio
