package s3store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"StreamLookup/internal/domain"
	"StreamLookup/internal/ports"
)

const checkpointObject = "offsets.json"

// CheckpointStore keeps the stream position as a JSON object on S3.
type CheckpointStore struct {
	client API
	bucket string
	key    string
}

var _ ports.CheckpointStore = (*CheckpointStore)(nil)

// NewCheckpointStore stores offsets.json under the s3:// location.
func NewCheckpointStore(client API, location string) (*CheckpointStore, error) {
	bucket, prefix, err := ParseURI(location)
	if err != nil {
		return nil, fmt.Errorf("checkpoint location: %w", err)
	}
	return &CheckpointStore{client: client, bucket: bucket, key: joinKey(prefix, checkpointObject)}, nil
}

// Load returns domain.ErrCheckpointNotFound before the first Save.
func (c *CheckpointStore) Load(ctx context.Context) (domain.Checkpoint, error) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.key),
	})
	if IsNotFound(err) {
		return domain.Checkpoint{}, domain.ErrCheckpointNotFound
	}
	if err != nil {
		return domain.Checkpoint{}, fmt.Errorf("get s3://%s/%s: %w", c.bucket, c.key, err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return domain.Checkpoint{}, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp domain.Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return domain.Checkpoint{}, fmt.Errorf("decode checkpoint: %w", err)
	}
	return cp, nil
}

// Save overwrites the checkpoint object.
func (c *CheckpointStore) Save(ctx context.Context, cp domain.Checkpoint) error {
	raw, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	_, err = c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(c.key),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", c.bucket, c.key, err)
	}
	return nil
}
