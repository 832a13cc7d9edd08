package format

import (
	"finportal/domain/pivot"
)

// HeaderCell is one spanning header cell. Column is the column ID on the
// version level, where every cell spans one column.
type HeaderCell struct {
	Label  string
	Span   int
	Column string
}

// ViewCell is a rendered table cell.
type ViewCell struct {
	Text     string
	Kind     pivot.ColumnKind
	Negative bool
	Null     bool
}

// ViewRow is a rendered table row.
type ViewRow struct {
	Key   []string
	Cells []ViewCell
}

// View is a comparison table ready for display: three header levels
// (measure, facet, version) above the value columns, plus dimension headers.
type View struct {
	DimensionHeaders []string
	Measures         []HeaderCell
	Facets           []HeaderCell
	Versions         []HeaderCell
	Rows             []ViewRow
}

// Options controls labelling and number formatting of a View.
type Options struct {
	Labels       map[string]string // field and measure display names
	Directives   map[string]Directive
	FacetPrefix  string // e.g. "Size " to render facet "2" as "Size 2"
	BlankRepeats bool   // blank repeated leading dimension values
}

func (o Options) label(name string) string {
	if l, ok := o.Labels[name]; ok {
		return l
	}
	return name
}

// ColumnLabels returns the three header labels of a column.
func (o Options) ColumnLabels(col pivot.ColumnKey) (measure, facet, version string) {
	measure = o.label(col.Measure)
	if col.Kind == pivot.KindMix {
		measure = pivot.MixMeasure + " (" + o.label(col.Source) + ")"
	}
	facet = o.FacetPrefix + col.Facet
	version = col.Version
	if col.Kind == pivot.KindVariance {
		version = "Var %"
	}
	return measure, facet, version
}

// Build renders a comparison table into a View.
func Build(table *pivot.ComparisonTable, opts Options) *View {
	view := &View{}
	for _, k := range table.DimensionKeys {
		view.DimensionHeaders = append(view.DimensionHeaders, opts.label(k))
	}

	var lastMeasure, lastFacet string
	for i, col := range table.Columns {
		measure, facet, version := opts.ColumnLabels(col)
		if i > 0 && measure == lastMeasure {
			view.Measures[len(view.Measures)-1].Span++
		} else {
			view.Measures = append(view.Measures, HeaderCell{Label: measure, Span: 1})
		}
		if i > 0 && measure == lastMeasure && facet == lastFacet {
			view.Facets[len(view.Facets)-1].Span++
		} else {
			view.Facets = append(view.Facets, HeaderCell{Label: facet, Span: 1})
		}
		view.Versions = append(view.Versions, HeaderCell{Label: version, Span: 1, Column: col.ID()})
		lastMeasure, lastFacet = measure, facet
	}

	keys := make([][]string, len(table.Rows))
	for i, r := range table.Rows {
		keys[i] = r.Key
	}
	if opts.BlankRepeats && len(table.DimensionKeys) > 1 {
		cols := make([]int, len(table.DimensionKeys)-1)
		for i := range cols {
			cols[i] = i
		}
		keys = BlankRepeats(keys, cols)
	}

	for i, r := range table.Rows {
		row := ViewRow{Key: keys[i], Cells: make([]ViewCell, len(r.Cells))}
		for j, c := range r.Cells {
			col := table.Columns[j]
			row.Cells[j] = ViewCell{
				Text:     Cell(c, col, opts.Directives),
				Kind:     col.Kind,
				Negative: !c.Null && c.Value < 0,
				Null:     c.Null,
			}
		}
		view.Rows = append(view.Rows, row)
	}
	return view
}

// BlankRepeats returns a copy of rows where a value in any of cols is
// replaced by "" when it repeats the value directly above it.
func BlankRepeats(rows [][]string, cols []int) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	for _, col := range cols {
		var last string
		seen := false
		for i := range out {
			if col >= len(out[i]) {
				continue
			}
			v := rows[i][col]
			if seen && v == last {
				out[i][col] = ""
				continue
			}
			last, seen = v, true
		}
	}
	return out
}
