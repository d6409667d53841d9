// Package s3 provides an objstore.Store backed by AWS S3 via aws-sdk-go-v2.
//
// Use this backend when the datasets live in an AWS-hosted bucket and
// requests must be signed with the default credential chain. For public
// S3-compatible endpoints the minio backend is the lighter choice.
package s3
