package usecase

import (
	"context"
	"errors"
	"time"

	"StreamLookup/internal/domain"
	"StreamLookup/internal/ports"
)

type fakeMarkers struct {
	present   bool
	existsErr error
	deleteErr error
	checks    int
	deletes   int
}

var _ ports.ChangeMarkerStore = (*fakeMarkers)(nil)

func (f *fakeMarkers) Exists(ctx context.Context) (bool, error) {
	f.checks++
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.present, nil
}

func (f *fakeMarkers) Delete(ctx context.Context) error {
	f.deletes++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.present = false
	return nil
}

func (f *fakeMarkers) Put(ctx context.Context) error {
	f.present = true
	return nil
}

type fakeReference struct {
	rows  []domain.ReferenceRow
	err   error
	loads int
}

var _ ports.ReferenceSource = (*fakeReference)(nil)

func (f *fakeReference) LoadReference(ctx context.Context) ([]domain.ReferenceRow, error) {
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.ReferenceRow(nil), f.rows...), nil
}

type fakeSink struct {
	batches map[int64][]domain.EnrichedRow
	err     error
}

var _ ports.OutputSink = (*fakeSink)(nil)

func (f *fakeSink) Write(ctx context.Context, batchID int64, rows []domain.EnrichedRow) ([]domain.Partition, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.batches == nil {
		f.batches = map[int64][]domain.EnrichedRow{}
	}
	f.batches[batchID] = append(f.batches[batchID], rows...)

	seen := map[string]bool{}
	var parts []domain.Partition
	for _, row := range rows {
		prio, _ := row.Field(domain.ColumnPriority)
		key := row.Item + "/" + prio
		if seen[key] {
			continue
		}
		seen[key] = true
		parts = append(parts, domain.Partition{Item: row.Item, Priority: prio})
	}
	return parts, nil
}

type fakeCatalog struct {
	registered [][]domain.Partition
	err        error
}

var _ ports.Catalog = (*fakeCatalog)(nil)

func (f *fakeCatalog) RegisterOutput(ctx context.Context, partitions []domain.Partition) error {
	if f.err != nil {
		return f.err
	}
	f.registered = append(f.registered, partitions)
	return nil
}

type fakeStream struct {
	windows [][]domain.StreamRecord
	err     error
	polls   []domain.Position
}

var _ ports.StreamSource = (*fakeStream)(nil)

func (f *fakeStream) Poll(ctx context.Context, from domain.Position) ([]domain.StreamRecord, domain.Position, error) {
	f.polls = append(f.polls, from.Clone())
	if f.err != nil {
		return nil, from, f.err
	}
	if len(f.windows) == 0 {
		return nil, from, nil
	}
	records := f.windows[0]
	f.windows = f.windows[1:]

	next := from.Clone()
	for _, rec := range records {
		next[rec.ShardID] = rec.SequenceNumber
	}
	return records, next, nil
}

type fakeCheckpoints struct {
	stored  *domain.Checkpoint
	saves   []domain.Checkpoint
	loadErr error
	saveErr error
}

var _ ports.CheckpointStore = (*fakeCheckpoints)(nil)

func (f *fakeCheckpoints) Load(ctx context.Context) (domain.Checkpoint, error) {
	if f.loadErr != nil {
		return domain.Checkpoint{}, f.loadErr
	}
	if f.stored == nil {
		return domain.Checkpoint{}, domain.ErrCheckpointNotFound
	}
	return *f.stored, nil
}

func (f *fakeCheckpoints) Save(ctx context.Context, cp domain.Checkpoint) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves = append(f.saves, cp)
	stored := cp
	f.stored = &stored
	return nil
}

// stepScheduler runs the job a fixed number of times, back to back.
type stepScheduler struct {
	steps int
	ran   int
}

var _ ports.Scheduler = (*stepScheduler)(nil)

func (s *stepScheduler) Run(ctx context.Context, job ports.Job) error {
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < s.steps; i++ {
		s.ran++
		if err := job(ctx, base.Add(time.Duration(i)*10*time.Second)); err != nil {
			return err
		}
	}
	return nil
}

func (s *stepScheduler) Stop(ctx context.Context) error { return nil }

var errBoom = errors.New("boom")
