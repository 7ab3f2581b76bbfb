package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Output column names, in the order rows are serialized.
const (
	ColumnCost       = "cost"
	ColumnPrice      = "price"
	ColumnPriority   = "priority"
	ColumnCustomerID = "customer_id"
	ColumnItem       = "item"
)

// OutputColumns is the fixed projection applied to every joined row.
var OutputColumns = []string{ColumnCost, ColumnPrice, ColumnPriority, ColumnCustomerID, ColumnItem}

// PartitionColumns are the output columns encoded in the storage path.
var PartitionColumns = []string{ColumnItem, ColumnPriority}

// DataColumns are the output columns stored inside each data file.
var DataColumns = []string{ColumnCost, ColumnPrice, ColumnCustomerID}

// StreamRecord is a single decoded row from the input stream.
type StreamRecord struct {
	Dish       string
	CustomerID string
	// Attributes keeps the remaining stream fields; projection drops them.
	Attributes     map[string]any
	SequenceNumber string
	ShardID        string
	ArrivedAt      time.Time
}

// Batch is the unit of work handed to the enricher once per window.
type Batch struct {
	ID      int64
	Window  time.Time
	Records []StreamRecord
}

// EnrichedRow is the projected output of the join.
type EnrichedRow struct {
	Cost       decimal.Decimal
	Price      decimal.Decimal
	Priority   int
	CustomerID string
	Item       string
}

// Field returns the string form of the named output column.
func (r EnrichedRow) Field(column string) (string, bool) {
	switch column {
	case ColumnCost:
		return r.Cost.String(), true
	case ColumnPrice:
		return r.Price.String(), true
	case ColumnPriority:
		return strconv.Itoa(r.Priority), true
	case ColumnCustomerID:
		return r.CustomerID, true
	case ColumnItem:
		return r.Item, true
	default:
		return "", false
	}
}

// Partition identifies one {item, priority} directory written by the sink.
type Partition struct {
	Item     string
	Priority string
	Location string
	Rows     int
}

// Values returns the partition values in PartitionColumns order.
func (p Partition) Values() []string {
	return []string{p.Item, p.Priority}
}
