package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"StreamLookup/internal/domain"
	"StreamLookup/internal/ports"
)

// ReferenceLoader materializes the reference table into a Snapshot.
type ReferenceLoader struct {
	source ports.ReferenceSource
	now    func() time.Time
}

// NewReferenceLoader wires the reference source.
func NewReferenceLoader(source ports.ReferenceSource) *ReferenceLoader {
	return &ReferenceLoader{source: source, now: time.Now}
}

// Load performs a full reload. A partial read is an error; no snapshot is
// returned in that case.
func (l *ReferenceLoader) Load(ctx context.Context) (*domain.Snapshot, error) {
	if l.source == nil {
		return nil, errors.New("reference source is not configured")
	}

	rows, err := l.source.LoadReference(ctx)
	if err != nil {
		return nil, fmt.Errorf("load reference: %w", err)
	}

	return domain.NewSnapshot(rows, l.now()), nil
}
