package main

import (
	"fmt"
	"strings"

	"finportal/app"
	"finportal/domain/report"
	"finportal/internal/format"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Faint(true)
	cellStyle  = lipgloss.NewStyle().Padding(0, 1)
	numStyle   = cellStyle.Align(lipgloss.Right)
	headStyle  = cellStyle.Bold(true)
)

func renderCatalog(c *report.Catalog) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "Section", "Title", "Compares").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headStyle
			}
			return cellStyle
		})
	for _, d := range c.List() {
		t.Row(d.ID, d.Section, d.Title, string(d.Axis))
	}
	return t.String()
}

// columnHeaders flattens the three header levels into one label per column.
func columnHeaders(view *format.View) []string {
	expand := func(cells []format.HeaderCell) []string {
		var out []string
		for _, h := range cells {
			for i := 0; i < h.Span; i++ {
				out = append(out, h.Label)
			}
		}
		return out
	}
	measures, facets := expand(view.Measures), expand(view.Facets)
	headers := append([]string(nil), view.DimensionHeaders...)
	for i, v := range view.Versions {
		parts := []string{measures[i]}
		if facets[i] != "" {
			parts = append(parts, facets[i])
		}
		parts = append(parts, v.Label)
		headers = append(headers, strings.Join(parts, "\n"))
	}
	return headers
}

func renderResult(r *app.ReportResult) string {
	var b strings.Builder
	def := r.Report
	fmt.Fprintf(&b, "%s\n", titleStyle.Render(def.Title))
	fmt.Fprintf(&b, "%s\n\n", mutedStyle.Render(fmt.Sprintf("%s · %s · %s vs %s · %d fact rows",
		r.Params.Entity, r.Params.Week, r.Pair.First, r.Pair.Second, r.FactRows)))

	for _, card := range r.KPIs {
		first, second, variance := card.Text()
		fmt.Fprintf(&b, "%-24s %14s → %-14s %s\n", card.Label, first, second, variance)
	}
	if len(r.KPIs) > 0 {
		b.WriteString("\n")
	}

	if r.Table.IsEmpty() {
		b.WriteString(mutedStyle.Render("no data"))
		return b.String()
	}

	view := format.Build(r.Table, def.FormatOptions())
	dims := len(view.DimensionHeaders)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(columnHeaders(view)...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headStyle
			case col < dims:
				return cellStyle
			default:
				return numStyle
			}
		})
	for _, row := range view.Rows {
		cells := append([]string(nil), row.Key...)
		for _, c := range row.Cells {
			cells = append(cells, c.Text)
		}
		t.Row(cells...)
	}
	b.WriteString(t.String())
	return b.String()
}
