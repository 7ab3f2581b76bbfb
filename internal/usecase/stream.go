package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"StreamLookup/internal/domain"
	"StreamLookup/internal/ports"
)

// StreamDeps wires the driver to its collaborators.
type StreamDeps struct {
	JobName     string
	Source      ports.StreamSource
	Checkpoints ports.CheckpointStore
	Scheduler   ports.Scheduler
	Enricher    *BatchEnricher
	Logger      *slog.Logger
}

// StreamProcessor is the micro-batch loop: it polls the stream once per
// window and hands each non-empty batch to the enricher, strictly in order.
type StreamProcessor struct {
	jobName     string
	source      ports.StreamSource
	checkpoints ports.CheckpointStore
	scheduler   ports.Scheduler
	enricher    *BatchEnricher
	logger      *slog.Logger

	state    *BatchState
	position domain.Position
	nextID   int64
	now      func() time.Time
}

// NewStreamProcessor returns a driver with fresh BatchState.
func NewStreamProcessor(deps StreamDeps) *StreamProcessor {
	return &StreamProcessor{
		jobName:     deps.JobName,
		source:      deps.Source,
		checkpoints: deps.Checkpoints,
		scheduler:   deps.Scheduler,
		enricher:    deps.Enricher,
		logger:      deps.Logger,
		state:       NewBatchState(),
		position:    domain.Position{},
		now:         time.Now,
	}
}

// State exposes the snapshot carried across batches.
func (p *StreamProcessor) State() *BatchState {
	return p.state
}

// Run restores the checkpoint and processes windows until ctx is cancelled or
// a batch fails. The failing batch's checkpoint is not committed.
func (p *StreamProcessor) Run(ctx context.Context) error {
	if p.source == nil || p.enricher == nil || p.scheduler == nil {
		return errors.New("stream processor is not fully configured")
	}
	if err := p.restore(ctx); err != nil {
		return err
	}

	p.info("stream processing started", "job", p.jobName, "next_batch_id", p.nextID, "shards", len(p.position))
	return p.scheduler.Run(ctx, p.ProcessWindow)
}

// ProcessWindow reads everything new since the last window and enriches it.
func (p *StreamProcessor) ProcessWindow(ctx context.Context, trigger time.Time) error {
	records, next, err := p.source.Poll(ctx, p.position)
	if err != nil {
		return StageError{Stage: StageRead, BatchID: p.nextID, Err: err}
	}
	if len(records) == 0 {
		p.position = next
		return nil
	}

	batch := domain.Batch{ID: p.nextID, Window: trigger, Records: records}
	started := p.now()
	result, err := p.enricher.Process(ctx, p.state, batch)
	if err != nil {
		return err
	}

	if p.checkpoints != nil {
		cp := domain.Checkpoint{
			JobName:     p.jobName,
			LastBatchID: batch.ID,
			Position:    next.Clone(),
			CommittedAt: p.now(),
		}
		if err := p.checkpoints.Save(ctx, cp); err != nil {
			return StageError{Stage: StageCheckpoint, BatchID: batch.ID, Err: err}
		}
	}

	p.position = next
	p.nextID++

	p.info("batch complete",
		"batch_id", result.BatchID,
		"input_records", result.InputRecords,
		"output_rows", result.OutputRows,
		"partitions", len(result.Partitions),
		"refreshed", result.Refreshed,
		"duration", p.now().Sub(started),
	)
	return nil
}

func (p *StreamProcessor) restore(ctx context.Context) error {
	if p.checkpoints == nil {
		return nil
	}

	cp, err := p.checkpoints.Load(ctx)
	if errors.Is(err, domain.ErrCheckpointNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}

	if cp.Position != nil {
		p.position = cp.Position.Clone()
	}
	p.nextID = cp.LastBatchID + 1
	return nil
}

func (p *StreamProcessor) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}
