package ports

import (
	"context"
	"time"

	"StreamLookup/internal/domain"
)

// StreamSource polls the continuously-appended input stream.
type StreamSource interface {
	Poll(ctx context.Context, from domain.Position) ([]domain.StreamRecord, domain.Position, error)
}

// ReferenceSource bulk-reads the full reference table.
type ReferenceSource interface {
	LoadReference(ctx context.Context) ([]domain.ReferenceRow, error)
}

// ChangeMarkerStore checks and consumes the reference "dirty" flag.
// Exists reports (false, nil) when the marker is absent.
type ChangeMarkerStore interface {
	Exists(ctx context.Context) (bool, error)
	Delete(ctx context.Context) error
	Put(ctx context.Context) error
}

// OutputSink appends projected rows to partitioned storage.
type OutputSink interface {
	Write(ctx context.Context, batchID int64, rows []domain.EnrichedRow) ([]domain.Partition, error)
}

// Catalog publishes the output schema and partitions for downstream readers.
type Catalog interface {
	RegisterOutput(ctx context.Context, partitions []domain.Partition) error
}

// CheckpointStore persists stream progress across restarts.
type CheckpointStore interface {
	Load(ctx context.Context) (domain.Checkpoint, error)
	Save(ctx context.Context, cp domain.Checkpoint) error
}

// Job is run by a Scheduler once per window.
type Job func(ctx context.Context, trigger time.Time) error

// Scheduler controls when windows execute. Jobs never overlap.
type Scheduler interface {
	Run(ctx context.Context, job Job) error
	Stop(ctx context.Context) error
}
