package usecase

import "StreamLookup/internal/domain"

// JoinedRow pairs a stream record with a matching reference row.
type JoinedRow struct {
	Record    domain.StreamRecord
	Reference domain.ReferenceRow
}

// Join is an inner equi-join on record.Dish == reference.Item. Records
// without a match are dropped, as are records with no dish.
func Join(records []domain.StreamRecord, snapshot *domain.Snapshot) []JoinedRow {
	joined := make([]JoinedRow, 0, len(records))
	for _, rec := range records {
		for _, ref := range snapshot.Lookup(rec.Dish) {
			joined = append(joined, JoinedRow{Record: rec, Reference: ref})
		}
	}
	return joined
}

// Project keeps exactly the output columns.
func Project(rows []JoinedRow) []domain.EnrichedRow {
	out := make([]domain.EnrichedRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.EnrichedRow{
			Cost:       row.Reference.Cost,
			Price:      row.Reference.Price,
			Priority:   row.Reference.Priority,
			CustomerID: row.Record.CustomerID,
			Item:       row.Reference.Item,
		})
	}
	return out
}
