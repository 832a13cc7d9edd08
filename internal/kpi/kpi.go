// Package kpi computes the headline figures shown above a report table.
package kpi

import (
	"math"
	"sort"

	"finportal/domain/pivot"
	"finportal/internal/format"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
)

// Definition describes one headline figure. When Denominator is set the
// figure is the ratio of the two measure totals.
type Definition struct {
	Label       string           `json:"label"`
	Numerator   string           `json:"numerator"`
	Denominator string           `json:"denominator,omitempty"`
	Format      format.Directive `json:"format"`
}

// Card is a computed headline figure for both compared versions.
type Card struct {
	Label    string           `json:"label"`
	Format   format.Directive `json:"format"`
	First    pivot.Cell       `json:"first"`
	Second   pivot.Cell       `json:"second"`
	Variance pivot.Cell       `json:"variance"`
}

// Text renders the card values for display.
func (c Card) Text() (first, second, variance string) {
	render := func(cell pivot.Cell, d format.Directive) string {
		if cell.Null || !cell.Observed {
			return "n/a"
		}
		return format.Value(cell.Value, d)
	}
	return render(c.First, c.Format), render(c.Second, c.Format), render(c.Variance, format.Percent)
}

type totals map[string]map[string]float64

// Compute totals every referenced measure per compared version and derives
// the cards. Rows for versions outside the pair are ignored.
func Compute(rows []pivot.FactRow, versionKey string, pair pivot.VersionPair, defs []Definition) []Card {
	var measures []string
	seen := map[string]bool{}
	for _, d := range defs {
		for _, m := range []string{d.Numerator, d.Denominator} {
			if m != "" && !seen[m] {
				seen[m] = true
				measures = append(measures, m)
			}
		}
	}

	values := map[string]map[string][]float64{pair.First: {}, pair.Second: {}}
	for _, r := range rows {
		byMeasure, ok := values[r.Dimension(versionKey)]
		if !ok {
			continue
		}
		for _, m := range measures {
			if v, present := r.Measure(m); present {
				byMeasure[m] = append(byMeasure[m], v)
			}
		}
	}

	sums := totals{}
	for version, byMeasure := range values {
		sums[version] = map[string]float64{}
		for m, vs := range byMeasure {
			sums[version][m] = floats.Sum(vs)
		}
	}

	cards := make([]Card, 0, len(defs))
	for _, d := range defs {
		first := sums.figure(pair.First, d)
		second := sums.figure(pair.Second, d)
		card := Card{Label: d.Label, Format: d.Format, First: first, Second: second}
		card.Variance = pivot.Variance(first.Value, !first.Null && first.Observed, second.Value, !second.Null && second.Observed)
		cards = append(cards, card)
	}
	return cards
}

func (t totals) figure(version string, d Definition) pivot.Cell {
	num, ok := t[version][d.Numerator]
	if !ok {
		return pivot.Cell{Null: true}
	}
	if d.Denominator == "" {
		return pivot.Cell{Value: num, Observed: true}
	}
	den, ok := t[version][d.Denominator]
	return pivot.Ratio(num, ok, den)
}

// Mover is one row's change in a measure summed across facets.
type Mover struct {
	Key      []string `json:"key"`
	First    float64  `json:"first"`
	Second   float64  `json:"second"`
	Variance float64  `json:"variance"`
}

// Movers summarises how a measure moved between the compared versions.
type Movers struct {
	Measure           string  `json:"measure"`
	MedianAbsVariance float64 `json:"median_abs_variance"`
	P90AbsVariance    float64 `json:"p90_abs_variance"`
	Top               []Mover `json:"top"`
}

// TopMovers ranks rows by absolute variance of a measure's row total.
// Rows whose variance is undefined are left out.
func TopMovers(table *pivot.ComparisonTable, measure string, n int) Movers {
	out := Movers{Measure: measure}

	var firstIdx, secondIdx []int
	for j, c := range table.Columns {
		if c.Kind != pivot.KindValue || c.Measure != measure {
			continue
		}
		switch c.Version {
		case table.Compare.First:
			firstIdx = append(firstIdx, j)
		case table.Compare.Second:
			secondIdx = append(secondIdx, j)
		}
	}

	var movers []Mover
	for _, r := range table.Rows {
		first, okFirst := rowTotal(r, firstIdx)
		second, okSecond := rowTotal(r, secondIdx)
		v := pivot.Variance(first, okFirst, second, okSecond)
		if v.Null {
			continue
		}
		movers = append(movers, Mover{Key: r.Key, First: first, Second: second, Variance: v.Value})
	}
	if len(movers) == 0 {
		return out
	}

	abs := make(stats.Float64Data, len(movers))
	for i, m := range movers {
		abs[i] = math.Abs(m.Variance)
	}
	if med, err := stats.Median(abs); err == nil {
		out.MedianAbsVariance = med
	}
	if p90, err := stats.Percentile(abs, 90); err == nil {
		out.P90AbsVariance = p90
	}

	sort.SliceStable(movers, func(a, b int) bool {
		return math.Abs(movers[a].Variance) > math.Abs(movers[b].Variance)
	})
	if n > 0 && len(movers) > n {
		movers = movers[:n]
	}
	out.Top = movers
	return out
}

func rowTotal(r pivot.Row, idx []int) (float64, bool) {
	var sum float64
	observed := false
	for _, j := range idx {
		if r.Cells[j].Observed {
			observed = true
			sum += r.Cells[j].Value
		}
	}
	return sum, observed
}
