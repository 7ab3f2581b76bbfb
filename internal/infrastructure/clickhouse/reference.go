// Package clickhouse loads the reference table from ClickHouse.
package clickhouse

import (
	"context"
	"fmt"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"StreamLookup/internal/domain"
	"StreamLookup/internal/ports"
)

// Name is the backend identifier used in configuration.
const Name = "clickhouse"

// Config holds ClickHouse connection configuration.
type Config struct {
	Addr     string
	Database string
	Username string
	Password string
	Table    string
}

type querier interface {
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
}

// ReferenceSource reads the reference table over the native protocol.
type ReferenceSource struct {
	conn  querier
	table string
	close func() error
}

var _ ports.ReferenceSource = (*ReferenceSource)(nil)

// Open connects to ClickHouse. The connection is lazy; errors surface on the
// first load.
func Open(cfg Config) (*ReferenceSource, error) {
	conn, err := ch.Open(&ch.Options{
		Addr: []string{cfg.Addr},
		Auth: ch.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: ch.Settings{
			"max_execution_time": 60,
		},
		Compression: &ch.Compression{
			Method: ch.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	return &ReferenceSource{conn: conn, table: cfg.Table, close: conn.Close}, nil
}

func (s *ReferenceSource) Name() string { return Name }

// Close releases the connection pool.
func (s *ReferenceSource) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Numeric columns are cast to String so Decimal, Float and Int tables all
// decode the same way.
func (s *ReferenceSource) query() (string, []any, error) {
	return sq.Select(
		"toString(item)",
		"toString(cost)",
		"toString(price)",
		"toInt64(priority)",
	).From(s.table).ToSql()
}

func (s *ReferenceSource) LoadReference(ctx context.Context) ([]domain.ReferenceRow, error) {
	query, args, err := s.query()
	if err != nil {
		return nil, fmt.Errorf("build reference query: %w", err)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reference: %w", err)
	}
	defer rows.Close()

	var result []domain.ReferenceRow
	for rows.Next() {
		var (
			item, cost, price string
			priority          int64
		)
		if err := rows.Scan(&item, &cost, &price, &priority); err != nil {
			return nil, fmt.Errorf("scan reference row: %w", err)
		}

		row := domain.ReferenceRow{Item: item, Priority: int(priority)}
		if row.Cost, err = decimal.NewFromString(cost); err != nil {
			return nil, fmt.Errorf("item %s cost: %w", item, err)
		}
		if row.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("item %s price: %w", item, err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}
