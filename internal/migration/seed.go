package migration

import (
	"context"
	"fmt"
	"strings"

	"finportal/internal/errors"

	"github.com/jmoiron/sqlx"
)

const seedBatch = 500

// PrepareRows checks an extract's header against the table and converts
// its rows to insert arguments. Empty cells become NULL and thousands
// separators are stripped from numeric cells. Extra extract columns are
// rejected so a mislabelled file fails loudly.
func PrepareRows(t Table, headers []string, rows []map[string]string) ([]string, []map[string]any, error) {
	known := make(map[string]Column, len(t.Columns))
	for _, c := range t.Columns {
		known[c.Name] = c
	}
	cols := make([]string, 0, len(headers))
	for _, h := range headers {
		h = strings.TrimSpace(h)
		if _, ok := known[h]; !ok {
			return nil, nil, errors.InvalidInput(fmt.Sprintf("column %q is not part of %s", h, t.QualifiedName()))
		}
		cols = append(cols, h)
	}
	if len(cols) == 0 {
		return nil, nil, errors.InvalidInput("extract has no columns")
	}

	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		args := make(map[string]any, len(cols))
		for _, c := range cols {
			v := strings.TrimSpace(row[c])
			switch {
			case v == "":
				args[c] = nil
			case known[c].Numeric:
				args[c] = strings.ReplaceAll(v, ",", "")
			default:
				args[c] = v
			}
		}
		out[i] = args
	}
	return cols, out, nil
}

// InsertStatement returns the named insert for the given columns.
func InsertStatement(t Table, cols []string) string {
	named := make([]string, len(cols))
	for i, c := range cols {
		named[i] = ":" + c
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.QualifiedName(), strings.Join(cols, ", "), strings.Join(named, ", "))
}

// LoadRows appends an extract to a mirrored table in batches, inside one
// transaction. With truncate set the table is emptied first.
func (r *MigrationRunner) LoadRows(ctx context.Context, db *sqlx.DB, t Table, headers []string, rows []map[string]string, truncate bool) (int, error) {
	cols, args, err := PrepareRows(t, headers, rows)
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin load")
	}
	defer tx.Rollback()

	if truncate {
		if _, err := tx.ExecContext(ctx, "TRUNCATE "+t.QualifiedName()); err != nil {
			return 0, errors.Wrapf(err, "failed to truncate %s", t.QualifiedName())
		}
	}
	stmt := InsertStatement(t, cols)
	for start := 0; start < len(args); start += seedBatch {
		end := min(start+seedBatch, len(args))
		if _, err := tx.NamedExecContext(ctx, stmt, args[start:end]); err != nil {
			return 0, errors.Wrapf(err, "failed to insert rows %d-%d into %s", start+1, end, t.QualifiedName())
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "failed to commit load")
	}
	r.log.Info("loaded %d rows into %s", len(args), t.QualifiedName())
	return len(args), nil
}
