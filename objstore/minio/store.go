package minio

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"

	"github.com/hupe1980/vulnquery/objstore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store implements objstore.Store for MinIO and S3-compatible storage.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewStore creates a new MinIO object store.
// bucket is the bucket name.
// rootPrefix is prepended to all keys (e.g. "datasets/").
func NewStore(client *minio.Client, bucket, rootPrefix string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
	}
}

// NewAnonymousStore creates a Store for a public bucket behind a plain
// HTTP(S) endpoint. endpoint must be a URL (e.g. "https://data.example.org").
func NewAnonymousStore(endpoint, bucket, rootPrefix string) (*Store, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("minio: invalid endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("minio: endpoint %q has no host", endpoint)
	}

	client, err := minio.New(u.Host, &minio.Options{
		Creds:  credentials.NewStaticV4("", "", ""),
		Secure: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("minio: create client: %w", err)
	}

	return NewStore(client, bucket, rootPrefix), nil
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// Stat probes an object via a HEAD request.
func (s *Store) Stat(ctx context.Context, name string) (objstore.ObjectInfo, error) {
	key := s.key(name)

	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return objstore.ObjectInfo{}, objstore.ErrNotFound
		}
		return objstore.ObjectInfo{}, err
	}

	return objstore.ObjectInfo{Key: name, Size: info.Size}, nil
}

// Get opens an object for reading.
func (s *Store) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	key := s.key(name)

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return nil, objstore.ErrNotFound
		}
		return nil, err
	}

	// GetObject is lazy; surface missing objects on open instead of first read.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return nil, objstore.ErrNotFound
		}
		return nil, err
	}

	return obj, nil
}
