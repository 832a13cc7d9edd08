// Package migration creates and seeds the local postgres mirror of the
// warehouse tables the report catalog reads.
package migration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finportal/domain/report"
	"finportal/internal"
	"finportal/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Column is one mirrored column.
type Column struct {
	Name    string
	Type    string
	Numeric bool
}

// Table is one mirrored warehouse table.
type Table struct {
	Schema  string
	Name    string
	Columns []Column
	Indexes [][]string
}

// QualifiedName returns schema.name.
func (t Table) QualifiedName() string {
	return t.Schema + "." + t.Name
}

func text(name string) Column    { return Column{Name: name, Type: "TEXT"} }
func numeric(name string) Column { return Column{Name: name, Type: "NUMERIC(18,4)", Numeric: true} }

// Tables are the warehouse tables queried by the default catalog.
var Tables = []Table{
	{
		Schema:  "dimensions",
		Name:    "date_dimension",
		Columns: []Column{{Name: "date", Type: "DATE"}, text("hellofresh_week")},
		Indexes: [][]string{{"hellofresh_week"}},
	},
	{
		Schema: "anz_finance_app",
		Name:   "sales_cogs_by_slots",
		Columns: []Column{
			text("hellofresh_week"), text("country"), text("version"),
			text("recipe_slot"), text("title"), text("recipe_family"),
			text("primary_tag"), text("product_type"), text("recipe_size"),
			numeric("sales_count_kit"), numeric("box_count"),
			numeric("core_sales"), numeric("non_core_sales"),
			numeric("cogs"), numeric("residual_cogs"),
		},
		Indexes: [][]string{{"hellofresh_week", "country", "version"}},
	},
	{
		Schema: "anz_operations",
		Name:   "anz_kraken_operations_historical",
		Columns: []Column{
			text("hellofresh_week"), text("bob_entity_code"), text("version"),
			text("slot"), text("sku_category"), text("recipe_size"),
			numeric("forecast_sku_quantity"), numeric("forecast_total_cost"),
		},
		Indexes: [][]string{{"hellofresh_week", "bob_entity_code", "version"}},
	},
	{
		Schema: "anz_finance_stakeholders",
		Name:   "anz_orders_recipes",
		Columns: []Column{
			text("hellofresh_week"), text("bob_entity_code"),
			text("primary_tag"), text("product_type"), text("box_size"),
			numeric("kit_count"), numeric("box_count"),
			numeric("total_gross_revenue_excl_sales_tax"),
			numeric("total_direct_costs"), numeric("net_p1c_margin"),
		},
		Indexes: [][]string{{"hellofresh_week", "bob_entity_code"}},
	},
}

// FindTable looks up a mirrored table by its qualified name.
func FindTable(name string) (Table, error) {
	for _, t := range Tables {
		if t.QualifiedName() == name {
			return t, nil
		}
	}
	return Table{}, errors.NotFound(fmt.Sprintf("table %q", name))
}

// MigrationRunner creates the mirror schemas and tables.
type MigrationRunner struct {
	version string
	log     *internal.Logger
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
		log:     internal.DefaultLogger.With("Migration"),
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Statements returns the DDL Run executes, in order.
func Statements() []string {
	var stmts []string
	seen := map[string]bool{}
	for _, t := range Tables {
		if !seen[t.Schema] {
			seen[t.Schema] = true
			stmts = append(stmts, "CREATE SCHEMA IF NOT EXISTS "+t.Schema)
		}
	}
	for _, t := range Tables {
		cols := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = c.Name + " " + c.Type
		}
		stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
			t.QualifiedName(), strings.Join(cols, ",\n\t")))
		for _, idx := range t.Indexes {
			stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s (%s)",
				t.Name, strings.Join(idx, "_"), t.QualifiedName(), strings.Join(idx, ", ")))
		}
	}
	return stmts
}

// Run executes all migrations in one transaction.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin migration")
	}
	defer tx.Rollback()

	for _, stmt := range Statements() {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "migration statement failed: %s", firstLine(stmt))
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit migration")
	}
	r.log.Info("schema %s applied (%d tables)", r.version, len(Tables))
	return nil
}

// Reset drops the mirror schemas.
func (r *MigrationRunner) Reset(ctx context.Context, db *sqlx.DB) error {
	seen := map[string]bool{}
	for _, t := range Tables {
		if seen[t.Schema] {
			continue
		}
		seen[t.Schema] = true
		if _, err := db.ExecContext(ctx, "DROP SCHEMA IF EXISTS "+t.Schema+" CASCADE"); err != nil {
			return errors.Wrapf(err, "failed to drop schema %s", t.Schema)
		}
	}
	r.log.Warn("mirror schemas dropped")
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// weekStart returns the Monday of an ISO week label such as 2025-W09.
func weekStart(label string) (time.Time, error) {
	if !report.ValidWeek(label) {
		return time.Time{}, errors.InvalidInput(fmt.Sprintf("invalid week %q", label))
	}
	var year, week int
	if _, err := fmt.Sscanf(label, "%d-W%d", &year, &week); err != nil {
		return time.Time{}, errors.InvalidInput(fmt.Sprintf("invalid week %q", label))
	}
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	return jan4.AddDate(0, 0, -offset+(week-1)*7), nil
}

// WeekRange lists the week labels from..to inclusive with their Mondays.
func WeekRange(from, to string) ([]string, []time.Time, error) {
	start, err := weekStart(from)
	if err != nil {
		return nil, nil, err
	}
	end, err := weekStart(to)
	if err != nil {
		return nil, nil, err
	}
	var labels []string
	var mondays []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 7) {
		y, w := d.ISOWeek()
		labels = append(labels, fmt.Sprintf("%04d-W%02d", y, w))
		mondays = append(mondays, d)
	}
	return labels, mondays, nil
}

// SeedWeeks fills dimensions.date_dimension with every day of the weeks
// from..to, replacing rows already present for those weeks.
func (r *MigrationRunner) SeedWeeks(ctx context.Context, db *sqlx.DB, from, to string) (int, error) {
	labels, mondays, err := WeekRange(from, to)
	if err != nil {
		return 0, err
	}
	if len(labels) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin week seed")
	}
	defer tx.Rollback()

	del, args, err := sqlx.In("DELETE FROM dimensions.date_dimension WHERE hellofresh_week IN (?)", labels)
	if err != nil {
		return 0, errors.Wrap(err, "failed to build week delete")
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(del), args...); err != nil {
		return 0, errors.Wrap(err, "failed to clear weeks")
	}

	type dateRow struct {
		Date time.Time `db:"date"`
		Week string    `db:"hellofresh_week"`
	}
	rows := make([]dateRow, 0, len(labels)*7)
	for i, monday := range mondays {
		for d := 0; d < 7; d++ {
			rows = append(rows, dateRow{Date: monday.AddDate(0, 0, d), Week: labels[i]})
		}
	}
	if _, err := tx.NamedExecContext(ctx,
		"INSERT INTO dimensions.date_dimension (date, hellofresh_week) VALUES (:date, :hellofresh_week)", rows); err != nil {
		return 0, errors.Wrap(err, "failed to insert weeks")
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "failed to commit week seed")
	}
	r.log.Info("seeded %d weeks %s..%s", len(labels), from, to)
	return len(labels), nil
}
