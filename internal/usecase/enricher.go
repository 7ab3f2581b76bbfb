package usecase

import (
	"context"
	"log/slog"

	"StreamLookup/internal/domain"
	"StreamLookup/internal/ports"
)

// Phase is a step of the per-batch state machine, used in logs.
type Phase string

const (
	PhaseCheckChange Phase = "CHECK_CHANGE"
	PhaseRefresh     Phase = "REFRESH"
	PhaseSkipRefresh Phase = "SKIP_REFRESH"
	PhaseJoin        Phase = "JOIN"
	PhaseProject     Phase = "PROJECT"
	PhaseWrite       Phase = "WRITE"
)

// BatchState carries the reference snapshot from one batch to the next.
// It is owned by a single driver and must not be shared across goroutines.
type BatchState struct {
	snapshot    *domain.Snapshot
	initialized bool
	refreshes   int
}

// NewBatchState returns state for a fresh job run: no snapshot yet.
func NewBatchState() *BatchState {
	return &BatchState{}
}

// Snapshot returns the live snapshot, nil before the first refresh.
func (s *BatchState) Snapshot() *domain.Snapshot {
	return s.snapshot
}

// Initialized reports whether a snapshot has been loaded in this run.
func (s *BatchState) Initialized() bool {
	return s.initialized
}

// Refreshes counts successful reloads in this run.
func (s *BatchState) Refreshes() int {
	return s.refreshes
}

func (s *BatchState) replace(snapshot *domain.Snapshot) {
	s.snapshot = snapshot
	s.initialized = true
	s.refreshes++
}

// BatchResult summarizes one enricher invocation.
type BatchResult struct {
	BatchID      int64
	Refreshed    bool
	InputRecords int
	OutputRows   int
	Partitions   []domain.Partition
}

// EnricherDeps wires all driven adapters into the batch enricher.
type EnricherDeps struct {
	Markers   ports.ChangeMarkerStore
	Reference ports.ReferenceSource
	Sink      ports.OutputSink
	Catalog   ports.Catalog
	Logger    *slog.Logger
}

// BatchEnricher refreshes, joins, projects and writes one micro-batch.
type BatchEnricher struct {
	monitor *ChangeMonitor
	loader  *ReferenceLoader
	sink    ports.OutputSink
	catalog ports.Catalog
	logger  *slog.Logger
}

// NewBatchEnricher constructs the orchestration component.
func NewBatchEnricher(deps EnricherDeps) *BatchEnricher {
	return &BatchEnricher{
		monitor: NewChangeMonitor(deps.Markers, deps.Logger),
		loader:  NewReferenceLoader(deps.Reference),
		sink:    deps.Sink,
		catalog: deps.Catalog,
		logger:  deps.Logger,
	}
}

// Process runs CHECK_CHANGE -> REFRESH|SKIP_REFRESH -> JOIN -> PROJECT -> WRITE.
// Any failure aborts the batch; a failed refresh leaves state untouched.
func (e *BatchEnricher) Process(ctx context.Context, state *BatchState, batch domain.Batch) (BatchResult, error) {
	result := BatchResult{BatchID: batch.ID, InputRecords: len(batch.Records)}

	e.phase(batch.ID, PhaseCheckChange)
	changed := e.monitor.DetectAndClear(ctx)

	if changed || !state.Initialized() {
		e.phase(batch.ID, PhaseRefresh, "changed", changed, "first", !state.Initialized())
		snapshot, err := e.loader.Load(ctx)
		if err != nil {
			return result, StageError{Stage: StageRefresh, BatchID: batch.ID, Err: err}
		}
		state.replace(snapshot)
		result.Refreshed = true
		e.info("reference refreshed", "batch_id", batch.ID, "rows", snapshot.Len(), "loaded_at", snapshot.LoadedAt())
	} else {
		e.phase(batch.ID, PhaseSkipRefresh)
	}

	e.phase(batch.ID, PhaseJoin)
	joined := Join(batch.Records, state.Snapshot())

	e.phase(batch.ID, PhaseProject, "joined", len(joined))
	rows := Project(joined)
	result.OutputRows = len(rows)

	if len(rows) == 0 {
		return result, nil
	}

	e.phase(batch.ID, PhaseWrite, "rows", len(rows))
	if e.sink == nil {
		return result, StageError{Stage: StageWrite, BatchID: batch.ID, Err: errNoSink}
	}
	partitions, err := e.sink.Write(ctx, batch.ID, rows)
	if err != nil {
		return result, StageError{Stage: StageWrite, BatchID: batch.ID, Err: err}
	}
	result.Partitions = partitions

	if e.catalog != nil {
		if err := e.catalog.RegisterOutput(ctx, partitions); err != nil {
			return result, StageError{Stage: StageCatalog, BatchID: batch.ID, Err: err}
		}
	}

	return result, nil
}

func (e *BatchEnricher) phase(batchID int64, p Phase, args ...any) {
	if e.logger != nil {
		e.logger.Debug("batch phase", append([]any{"batch_id", batchID, "phase", string(p)}, args...)...)
	}
}

func (e *BatchEnricher) info(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Info(msg, args...)
	}
}
