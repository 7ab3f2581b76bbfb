package s3store

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"StreamLookup/internal/ports"
)

// MarkerStore is the zero-byte change flag at a fixed key.
type MarkerStore struct {
	client API
	bucket string
	key    string
}

var _ ports.ChangeMarkerStore = (*MarkerStore)(nil)

// NewMarkerStore binds the marker to bucket/key.
func NewMarkerStore(client API, bucket, key string) *MarkerStore {
	return &MarkerStore{client: client, bucket: bucket, key: key}
}

// Exists issues a HEAD request. A missing object is (false, nil); any other
// failure is returned as is.
func (m *MarkerStore) Exists(ctx context.Context) (bool, error) {
	_, err := m.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key),
	})
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("head s3://%s/%s: %w", m.bucket, m.key, err)
}

// Delete consumes the marker.
func (m *MarkerStore) Delete(ctx context.Context) error {
	_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key),
	})
	if err != nil {
		return fmt.Errorf("delete s3://%s/%s: %w", m.bucket, m.key, err)
	}
	return nil
}

// Put raises the marker.
func (m *MarkerStore) Put(ctx context.Context) error {
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(m.key),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", m.bucket, m.key, err)
	}
	return nil
}
