package storage

import (
	"context"
	"fmt"
	"net/url"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/gcsblob" // GCS driver
	_ "gocloud.dev/blob/s3blob"  // S3 driver
)

// blobStore writes artifacts to an object-store bucket via gocloud.
type blobStore struct {
	bucket *blob.Bucket
	scheme string
	name   string
	prefix string
}

// NewGCSStore creates a Google Cloud Storage artifact store.
func NewGCSStore(bucketName, prefix string) (ArtifactStore, error) {
	bucket, err := blob.OpenBucket(context.Background(), fmt.Sprintf("gs://%s", bucketName))
	if err != nil {
		return nil, fmt.Errorf("open GCS bucket %s: %w", bucketName, err)
	}
	return &blobStore{bucket: bucket, scheme: "gs", name: bucketName, prefix: prefix}, nil
}

// NewS3Store creates an S3-compatible artifact store (AWS, B2, R2, MinIO).
func NewS3Store(bucketName, prefix, endpoint, region string) (ArtifactStore, error) {
	q := url.Values{}
	if region != "" {
		q.Set("region", region)
	}
	if endpoint != "" {
		q.Set("endpoint", endpoint)
		q.Set("s3ForcePathStyle", "true")
	}
	bucketURL := fmt.Sprintf("s3://%s", bucketName)
	if enc := q.Encode(); enc != "" {
		bucketURL += "?" + enc
	}

	bucket, err := blob.OpenBucket(context.Background(), bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open S3 bucket %s: %w", bucketName, err)
	}
	return &blobStore{bucket: bucket, scheme: "s3", name: bucketName, prefix: prefix}, nil
}

// Store uploads the artifact and returns its canonical URI.
func (s *blobStore) Store(ctx context.Context, data []byte, ref ArtifactRef) (string, error) {
	key := ref.Key(s.prefix)

	w, err := s.bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return "", fmt.Errorf("%w: create writer for %s: %v", ErrStoreUnavailable, key, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("%w: write %s: %v", ErrStoreUnavailable, key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%w: close writer for %s: %v", ErrStoreUnavailable, key, err)
	}

	return s.URI(key), nil
}

// Exists checks if the artifact already exists in the bucket.
func (s *blobStore) Exists(ctx context.Context, ref ArtifactRef) (bool, error) {
	return s.bucket.Exists(ctx, ref.Key(s.prefix))
}

// URI returns the canonical URI for the given key.
func (s *blobStore) URI(key string) string {
	return fmt.Sprintf("%s://%s/%s", s.scheme, s.name, key)
}

// Close releases the bucket connection.
func (s *blobStore) Close() error {
	if s.bucket != nil {
		return s.bucket.Close()
	}
	return nil
}
