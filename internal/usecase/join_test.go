package usecase

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"StreamLookup/internal/domain"
)

func TestJoinIsInner(t *testing.T) {
	t.Parallel()

	snapshot := domain.NewSnapshot([]domain.ReferenceRow{
		{Item: "A1", Cost: decimal.NewFromInt(2), Price: decimal.NewFromInt(5), Priority: 1},
		{Item: "C3", Cost: decimal.NewFromInt(4), Price: decimal.NewFromInt(8), Priority: 2},
	}, time.Now())

	records := []domain.StreamRecord{
		{Dish: "A1", CustomerID: "C9"},
		{Dish: "B2", CustomerID: "C1"},
		{Dish: "", CustomerID: "C2"},
		{Dish: "A1", CustomerID: "C7"},
	}

	joined := Join(records, snapshot)
	if len(joined) != 2 {
		t.Fatalf("expected 2 joined rows, got %d", len(joined))
	}
	for _, row := range joined {
		if len(snapshot.Lookup(row.Record.Dish)) == 0 {
			t.Fatalf("joined row without reference match: %+v", row)
		}
		if row.Record.Dish != row.Reference.Item {
			t.Fatalf("join key mismatch: %+v", row)
		}
	}
}

func TestJoinEmitsOneRowPerDuplicateMatch(t *testing.T) {
	t.Parallel()

	snapshot := domain.NewSnapshot([]domain.ReferenceRow{
		{Item: "A1", Priority: 1},
		{Item: "A1", Priority: 2},
	}, time.Now())

	joined := Join([]domain.StreamRecord{{Dish: "A1", CustomerID: "C9"}}, snapshot)
	if len(joined) != 2 {
		t.Fatalf("expected one row per duplicate reference key, got %d", len(joined))
	}
}

func TestJoinWithoutSnapshot(t *testing.T) {
	t.Parallel()

	if got := Join([]domain.StreamRecord{{Dish: "A1"}}, nil); len(got) != 0 {
		t.Fatalf("nil snapshot must produce no rows, got %d", len(got))
	}
}

func TestProjectKeepsExactlyOutputColumns(t *testing.T) {
	t.Parallel()

	rows := Project([]JoinedRow{{
		Record: domain.StreamRecord{
			Dish:       "A1",
			CustomerID: "C9",
			Attributes: map[string]any{"dish": "A1", "qty": 3, "note": "extra"},
		},
		Reference: domain.ReferenceRow{Item: "A1", Cost: decimal.NewFromInt(2), Price: decimal.NewFromInt(5), Priority: 1},
	}})

	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if n := reflect.TypeOf(rows[0]).NumField(); n != len(domain.OutputColumns) {
		t.Fatalf("output row has %d fields, want %d", n, len(domain.OutputColumns))
	}

	got := map[string]string{}
	for _, col := range domain.OutputColumns {
		v, ok := rows[0].Field(col)
		if !ok {
			t.Fatalf("missing column %s", col)
		}
		got[col] = v
	}
	want := map[string]string{"cost": "2", "price": "5", "priority": "1", "customer_id": "C9", "item": "A1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected projection: %v", got)
	}
}
