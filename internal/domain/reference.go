package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReferenceRow is one entry of the slowly-changing lookup table, keyed by Item.
type ReferenceRow struct {
	Item     string
	Cost     decimal.Decimal
	Price    decimal.Decimal
	Priority int
}

// Snapshot is an immutable, point-in-time copy of the reference table.
// A refresh builds a new Snapshot; an existing one is never modified.
type Snapshot struct {
	byItem   map[string][]ReferenceRow
	size     int
	loadedAt time.Time
}

// NewSnapshot indexes rows by item. Rows with an empty item are dropped since
// they can never satisfy the join. Duplicate items are kept so that the join
// emits one row per match.
func NewSnapshot(rows []ReferenceRow, loadedAt time.Time) *Snapshot {
	byItem := make(map[string][]ReferenceRow, len(rows))
	size := 0
	for _, row := range rows {
		if row.Item == "" {
			continue
		}
		byItem[row.Item] = append(byItem[row.Item], row)
		size++
	}
	return &Snapshot{byItem: byItem, size: size, loadedAt: loadedAt}
}

// Lookup returns every reference row stored under item.
func (s *Snapshot) Lookup(item string) []ReferenceRow {
	if s == nil || item == "" {
		return nil
	}
	return s.byItem[item]
}

// Len reports the number of indexed rows.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return s.size
}

// LoadedAt is when the rows were read from the reference source.
func (s *Snapshot) LoadedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.loadedAt
}
