package excel

import (
	"fmt"

	"finportal/domain/pivot"
	"finportal/internal/format"

	"github.com/xuri/excelize/v2"
)

// headerRows is the number of header rows above the data: measure, facet, version.
const headerRows = 3

var numberFormats = map[format.Directive]string{
	format.Currency: `"$"#,##0;-"$"#,##0`,
	format.Integer:  `#,##0`,
	format.Percent:  `+0.0%;-0.0%;0.0%`,
	format.Share:    `0.0%`,
	format.Decimal:  `#,##0.00`,
}

// Exporter writes comparison tables to XLSX workbooks.
type Exporter struct {
	SheetName string
}

// NewExporter creates an exporter writing to a sheet called "Comparison".
func NewExporter() *Exporter {
	return &Exporter{SheetName: "Comparison"}
}

// Export renders the table with a merged three-level header. Value cells
// are written as numbers with a number format per directive; null cells
// stay empty.
func (e *Exporter) Export(table *pivot.ComparisonTable, opts format.Options) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := e.SheetName
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#E8EEF4"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	styles := map[format.Directive]int{}
	for d, numFmt := range numberFormats {
		numFmt := numFmt
		id, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
		if err != nil {
			return nil, fmt.Errorf("failed to create %s style: %w", d, err)
		}
		styles[d] = id
	}

	view := format.Build(table, format.Options{
		Labels:      opts.Labels,
		Directives:  opts.Directives,
		FacetPrefix: opts.FacetPrefix,
	})
	dims := len(view.DimensionHeaders)

	// dimension headers span all three header rows
	for i, h := range view.DimensionHeaders {
		top, _ := excelize.CoordinatesToCellName(i+1, 1)
		bottom, _ := excelize.CoordinatesToCellName(i+1, headerRows)
		if err := f.SetCellValue(sheet, top, h); err != nil {
			return nil, err
		}
		if err := f.MergeCell(sheet, top, bottom); err != nil {
			return nil, err
		}
	}
	for level, cells := range [][]format.HeaderCell{view.Measures, view.Facets, view.Versions} {
		col := dims + 1
		for _, h := range cells {
			start, _ := excelize.CoordinatesToCellName(col, level+1)
			end, _ := excelize.CoordinatesToCellName(col+h.Span-1, level+1)
			if err := f.SetCellValue(sheet, start, h.Label); err != nil {
				return nil, err
			}
			if h.Span > 1 {
				if err := f.MergeCell(sheet, start, end); err != nil {
					return nil, err
				}
			}
			col += h.Span
		}
	}
	lastCol := dims + len(table.Columns)
	if lastCol > 0 {
		end, _ := excelize.CoordinatesToCellName(lastCol, headerRows)
		if err := f.SetCellStyle(sheet, "A1", end, headerStyle); err != nil {
			return nil, err
		}
	}

	for i, row := range table.Rows {
		r := headerRows + 1 + i
		for j, k := range row.Key {
			cell, _ := excelize.CoordinatesToCellName(j+1, r)
			if err := f.SetCellValue(sheet, cell, k); err != nil {
				return nil, err
			}
		}
		for j, c := range row.Cells {
			if c.Null {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(dims+1+j, r)
			if err := f.SetCellValue(sheet, cell, c.Value); err != nil {
				return nil, err
			}
			d := format.DirectiveFor(table.Columns[j], opts.Directives)
			if err := f.SetCellStyle(sheet, cell, cell, styles[d]); err != nil {
				return nil, err
			}
		}
	}

	if dims > 0 {
		topLeft, _ := excelize.CoordinatesToCellName(dims+1, headerRows+1)
		if err := f.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			XSplit:      dims,
			YSplit:      headerRows,
			TopLeftCell: topLeft,
			ActivePane:  "bottomRight",
		}); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
