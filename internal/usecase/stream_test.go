package usecase

import (
	"context"
	"errors"
	"testing"

	"StreamLookup/internal/domain"
	"StreamLookup/internal/logging"
)

func newTestProcessor(stream *fakeStream, checkpoints *fakeCheckpoints, sched *stepScheduler, ref *fakeReference, sink *fakeSink) *StreamProcessor {
	return NewStreamProcessor(StreamDeps{
		JobName:     "lookup-job",
		Source:      stream,
		Checkpoints: checkpoints,
		Scheduler:   sched,
		Enricher:    newTestEnricher(&fakeMarkers{}, ref, sink, &fakeCatalog{}),
		Logger:      logging.Discard(),
	})
}

func TestRunCommitsCheckpointPerBatch(t *testing.T) {
	t.Parallel()

	stream := &fakeStream{windows: [][]domain.StreamRecord{
		{{Dish: "A1", CustomerID: "C9", ShardID: "shard-0", SequenceNumber: "10"}},
		nil,
		{{Dish: "A1", CustomerID: "C8", ShardID: "shard-0", SequenceNumber: "12"}},
	}}
	checkpoints := &fakeCheckpoints{}
	ref := scenarioReference()
	sink := &fakeSink{}
	proc := newTestProcessor(stream, checkpoints, &stepScheduler{steps: 3}, ref, sink)

	if err := proc.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(checkpoints.saves) != 2 {
		t.Fatalf("expected 2 commits (empty window skipped), got %d", len(checkpoints.saves))
	}
	last := checkpoints.saves[1]
	if last.LastBatchID != 1 || last.Position["shard-0"] != "12" || last.JobName != "lookup-job" {
		t.Fatalf("unexpected checkpoint: %+v", last)
	}
	if ref.loads != 1 {
		t.Fatalf("expected a single refresh across the run, got %d", ref.loads)
	}
	if len(sink.batches[0]) != 1 || len(sink.batches[1]) != 1 {
		t.Fatalf("unexpected sink contents: %v", sink.batches)
	}
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	t.Parallel()

	stream := &fakeStream{windows: [][]domain.StreamRecord{
		{{Dish: "A1", CustomerID: "C9", ShardID: "shard-0", SequenceNumber: "21"}},
	}}
	checkpoints := &fakeCheckpoints{stored: &domain.Checkpoint{
		LastBatchID: 41,
		Position:    domain.Position{"shard-0": "20"},
	}}
	ref := scenarioReference()
	proc := newTestProcessor(stream, checkpoints, &stepScheduler{steps: 1}, ref, &fakeSink{})

	if err := proc.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if got := stream.polls[0]["shard-0"]; got != "20" {
		t.Fatalf("expected poll from checkpoint position, got %q", got)
	}
	if checkpoints.saves[0].LastBatchID != 42 {
		t.Fatalf("expected batch id 42, got %d", checkpoints.saves[0].LastBatchID)
	}
	if ref.loads != 1 || !proc.State().Initialized() {
		t.Fatalf("restart must refresh on the first batch")
	}
}

func TestRunStopsOnBatchFailureWithoutCommit(t *testing.T) {
	t.Parallel()

	stream := &fakeStream{windows: [][]domain.StreamRecord{
		{{Dish: "A1", CustomerID: "C9", ShardID: "shard-0", SequenceNumber: "5"}},
		{{Dish: "A1", CustomerID: "C9", ShardID: "shard-0", SequenceNumber: "6"}},
	}}
	checkpoints := &fakeCheckpoints{}
	sched := &stepScheduler{steps: 2}
	proc := newTestProcessor(stream, checkpoints, sched, scenarioReference(), &fakeSink{err: errBoom})

	err := proc.Run(context.Background())
	var stageErr StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageWrite {
		t.Fatalf("expected write stage error, got %v", err)
	}
	if sched.ran != 1 {
		t.Fatalf("loop should stop after the failed batch, ran %d", sched.ran)
	}
	if len(checkpoints.saves) != 0 {
		t.Fatalf("failed batch must not be committed")
	}
}

func TestRunReportsReadAndCheckpointErrors(t *testing.T) {
	t.Parallel()

	proc := newTestProcessor(&fakeStream{err: errBoom}, &fakeCheckpoints{}, &stepScheduler{steps: 1}, scenarioReference(), &fakeSink{})
	var stageErr StageError
	if err := proc.Run(context.Background()); !errors.As(err, &stageErr) || stageErr.Stage != StageRead {
		t.Fatalf("expected read stage error, got %v", err)
	}

	stream := &fakeStream{windows: [][]domain.StreamRecord{{{Dish: "A1", ShardID: "s", SequenceNumber: "1"}}}}
	proc = newTestProcessor(stream, &fakeCheckpoints{saveErr: errBoom}, &stepScheduler{steps: 1}, scenarioReference(), &fakeSink{})
	if err := proc.Run(context.Background()); !errors.As(err, &stageErr) || stageErr.Stage != StageCheckpoint {
		t.Fatalf("expected checkpoint stage error, got %v", err)
	}

	proc = newTestProcessor(&fakeStream{}, &fakeCheckpoints{loadErr: errBoom}, &stepScheduler{steps: 1}, scenarioReference(), &fakeSink{})
	if err := proc.Run(context.Background()); !errors.Is(err, errBoom) {
		t.Fatalf("expected checkpoint load error, got %v", err)
	}
}
