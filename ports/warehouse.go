package ports

import (
	"context"

	"finportal/domain/pivot"
)

// FactQuery is one report's request to the warehouse.
type FactQuery struct {
	Report string
	SQL    string
	Args   []any

	// StringColumns are scanned as text; MeasureColumns as nullable numbers.
	StringColumns  []string
	MeasureColumns []string

	// Filters restate the WHERE clause as column -> allowed values, for
	// sources that cannot run SQL.
	Filters map[string][]string
}

// Warehouse is the analytical store the portal reads fact rows from.
type Warehouse interface {
	FetchFacts(ctx context.Context, q FactQuery) ([]pivot.FactRow, error)
	// ListWeeks returns the reporting weeks in [from, to], ascending.
	ListWeeks(ctx context.Context, from, to string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}
