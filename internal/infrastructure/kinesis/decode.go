package kinesis

import (
	"bytes"
	"encoding/json"
	"strconv"

	"StreamLookup/internal/domain"
)

const (
	fieldDish       = "dish"
	fieldCustomerID = "customer_id"
)

// Decode turns one JSON payload into a record. Payloads that are not JSON
// objects decode to a record with an empty Dish, which never joins.
func Decode(data []byte) (domain.StreamRecord, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return domain.StreamRecord{}, false
	}

	rec := domain.StreamRecord{
		Dish:       stringify(fields[fieldDish]),
		CustomerID: stringify(fields[fieldCustomerID]),
	}
	delete(fields, fieldDish)
	delete(fields, fieldCustomerID)
	if len(fields) > 0 {
		rec.Attributes = fields
	}
	return rec, true
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}
