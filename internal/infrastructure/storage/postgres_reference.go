package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"StreamLookup/internal/domain"
	"StreamLookup/internal/ports"
)

// PostgresName is the backend identifier used in configuration.
const PostgresName = "postgres"

var errNoDB = errors.New("postgres reference: database is not configured")

// PostgresReference reads the whole reference table from Postgres.
type PostgresReference struct {
	db    *sql.DB
	table string
}

var _ ports.ReferenceSource = (*PostgresReference)(nil)

// NewPostgresReference wires a sql.DB opened with the "postgres" driver.
func NewPostgresReference(db *sql.DB, table string) *PostgresReference {
	return &PostgresReference{db: db, table: table}
}

func (r *PostgresReference) Name() string { return PostgresName }

func (r *PostgresReference) query() (string, []any, error) {
	return sq.Select(domain.ColumnItem, domain.ColumnCost, domain.ColumnPrice, domain.ColumnPriority).
		From(pq.QuoteIdentifier(r.table)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
}

// LoadReference selects item, cost, price and priority for every row.
func (r *PostgresReference) LoadReference(ctx context.Context) ([]domain.ReferenceRow, error) {
	if r.db == nil {
		return nil, errNoDB
	}

	query, args, err := r.query()
	if err != nil {
		return nil, fmt.Errorf("build reference query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reference: %w", err)
	}

	var result []domain.ReferenceRow
	for rows.Next() {
		var (
			item        sql.NullString
			cost, price decimal.NullDecimal
			priority    sql.NullInt64
		)
		if err := rows.Scan(&item, &cost, &price, &priority); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan reference row: %w", err)
		}
		result = append(result, domain.ReferenceRow{
			Item:     item.String,
			Cost:     cost.Decimal,
			Price:    price.Decimal,
			Priority: int(priority.Int64),
		})
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}
