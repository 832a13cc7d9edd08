package excel

import (
	"context"
	"sort"
	"sync"

	"finportal/domain/pivot"
	"finportal/internal/errors"
	"finportal/ports"
)

// FileWarehouse serves report queries from a local fact extract. The
// file is read once; the SQL of a query is ignored and its Filters are
// applied in memory instead.
type FileWarehouse struct {
	config ExcelConfig
	reader *DataReader

	once sync.Once
	data *ExcelData
	err  error
}

var _ ports.Warehouse = (*FileWarehouse)(nil)

// NewFileWarehouse creates a file-backed warehouse.
func NewFileWarehouse(config ExcelConfig) *FileWarehouse {
	return &FileWarehouse{
		config: config,
		reader: NewDataReader(config.FilePath).WithSheet(config.Sheet),
	}
}

func (w *FileWarehouse) load() (*ExcelData, error) {
	w.once.Do(func() {
		w.data, w.err = w.reader.ReadData()
		if w.err != nil {
			w.err = errors.ExternalServiceError("fact file", w.err)
		}
	})
	return w.data, w.err
}

func (w *FileWarehouse) FetchFacts(ctx context.Context, q ports.FactQuery) ([]pivot.FactRow, error) {
	data, err := w.load()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filtered := &ExcelData{Headers: data.Headers}
	for _, row := range data.Rows {
		if matches(row, q.Filters) {
			filtered.Rows = append(filtered.Rows, row)
		}
	}
	rows, err := ToFactRows(filtered, q.StringColumns, q.MeasureColumns)
	if err != nil {
		return nil, errors.ExternalServiceError("fact file", err)
	}
	return rows, nil
}

func matches(row RawRowData, filters map[string][]string) bool {
	for col, allowed := range filters {
		v := row[col]
		ok := false
		for _, a := range allowed {
			if v == a {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// ListWeeks returns the distinct week labels of the file within [from, to].
func (w *FileWarehouse) ListWeeks(ctx context.Context, from, to string) ([]string, error) {
	data, err := w.load()
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var weeks []string
	for _, row := range data.Rows {
		week := row[w.config.WeekColumn]
		if week == "" || seen[week] || week < from || week > to {
			continue
		}
		seen[week] = true
		weeks = append(weeks, week)
	}
	sort.Strings(weeks)
	return weeks, nil
}

func (w *FileWarehouse) Ping(context.Context) error {
	_, err := w.load()
	return err
}

func (w *FileWarehouse) Close() error {
	return nil
}
