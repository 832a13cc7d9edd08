package pivot

import (
	"sort"
)

// SortByTotal reorders rows by the sum of a measure's value cells for one
// version across all facets. Ties keep their current order.
func (t *ComparisonTable) SortByTotal(measure, version string, descending bool) {
	var idx []int
	for i, c := range t.Columns {
		if c.Kind == KindValue && c.Measure == measure && c.Version == version {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return
	}
	totals := make([]float64, len(t.Rows))
	order := make([]int, len(t.Rows))
	for i := range t.Rows {
		order[i] = i
		for _, j := range idx {
			totals[i] += t.Rows[i].Cells[j].Value
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		if descending {
			return totals[order[a]] > totals[order[b]]
		}
		return totals[order[a]] < totals[order[b]]
	})
	sorted := make([]Row, len(t.Rows))
	for i, k := range order {
		sorted[i] = t.Rows[k]
	}
	t.Rows = sorted
}

// SortBy reorders rows by a single column. Null cells always sort last.
func (t *ComparisonTable) SortBy(key ColumnKey, descending bool) bool {
	j, ok := t.ColumnIndex(key)
	if !ok {
		return false
	}
	sort.SliceStable(t.Rows, func(a, b int) bool {
		ca, cb := t.Rows[a].Cells[j], t.Rows[b].Cells[j]
		if ca.Null != cb.Null {
			return cb.Null
		}
		if ca.Null {
			return false
		}
		if descending {
			return ca.Value > cb.Value
		}
		return ca.Value < cb.Value
	})
	return true
}
