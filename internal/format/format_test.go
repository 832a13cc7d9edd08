package format

import (
	"testing"

	"finportal/domain/pivot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue(t *testing.T) {
	cases := []struct {
		v    float64
		d    Directive
		want string
	}{
		{1234567.4, Currency, "$1,234,567"},
		{-950.6, Currency, "-$951"},
		{-0.2, Currency, "$0"},
		{120, Integer, "120"},
		{15000.5, Integer, "15,001"},
		{0.2, Percent, "+20.0%"},
		{-0.0523, Percent, "-5.2%"},
		{0, Percent, "0.0%"},
		{0.00001, Percent, "0.0%"},
		{120.0 / 170.0, Share, "70.6%"},
		{7.456, Decimal, "7.46"},
		{45.9, Price, "$45.90"},
		{-1234.5, Price, "-$1,234.50"},
		{7.456, "", "7.46"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Value(tc.v, tc.d), "%v as %s", tc.v, tc.d)
	}
}

func TestCompact(t *testing.T) {
	assert.Equal(t, "$1.23M", Compact(1_234_000))
	assert.Equal(t, "$4.56K", Compact(4_560))
	assert.Equal(t, "$999", Compact(999))
	assert.Equal(t, "-$2.50K", Compact(-2_500))
}

func TestCompactRoundsBeforeChoosingUnit(t *testing.T) {
	assert.Equal(t, "$1.00K", Compact(999.6))
	assert.Equal(t, "$999", Compact(999.4))
	assert.Equal(t, "$1.00M", Compact(999_996))
	assert.Equal(t, "$999.99K", Compact(999_994))
	assert.Equal(t, "-$1.00K", Compact(-999.7))
	assert.Equal(t, "$0", Compact(-0.2))
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "$12,345.68", Money(12345.678))
	assert.Equal(t, "-$0.50", Money(-0.5))
}

func TestCellByKind(t *testing.T) {
	directives := map[string]Directive{"kitcount": Integer, "cost": Currency}

	assert.Equal(t, "100", Cell(pivot.Cell{Value: 100, Observed: true}, pivot.ValueColumn("kitcount", "2", "v2"), directives))
	assert.Equal(t, "$5", Cell(pivot.Cell{Value: 5, Observed: true}, pivot.ValueColumn("cost", "2", "v2"), directives))
	assert.Equal(t, "+20.0%", Cell(pivot.Cell{Value: 0.2, Observed: true}, pivot.VarianceColumn("cost", "2"), directives))
	assert.Equal(t, "70.6%", Cell(pivot.Cell{Value: 120.0 / 170.0, Observed: true}, pivot.MixColumn("kitcount", "2", "v2"), directives))
	assert.Equal(t, "", Cell(pivot.Cell{Null: true}, pivot.VarianceColumn("cost", "2"), directives))
	assert.Equal(t, "1.50", Cell(pivot.Cell{Value: 1.5}, pivot.ValueColumn("other", "2", "v2"), directives))
}

func TestBuildHeaders(t *testing.T) {
	rows := []pivot.FactRow{
		{Dimensions: map[string]string{"slot": "1", "size": "2", "version": "v2"}, Measures: map[string]float64{"kitcount": 100}},
		{Dimensions: map[string]string{"slot": "1", "size": "2", "version": "v3"}, Measures: map[string]float64{"kitcount": 120}},
		{Dimensions: map[string]string{"slot": "2", "size": "4", "version": "v2"}, Measures: map[string]float64{"kitcount": 50}},
	}
	table, err := pivot.Transform(rows, pivot.Config{
		DimensionKeys: []string{"slot"},
		FacetKey:      "size",
		VersionKey:    "version",
		Measures:      []pivot.MeasureSpec{{Name: "kitcount"}},
		Compare:       pivot.VersionPair{First: "v2", Second: "v3"},
		MixMeasure:    "kitcount",
	})
	require.NoError(t, err)

	view := Build(table, Options{
		Labels:      map[string]string{"slot": "Slot", "kitcount": "Kit Counts"},
		Directives:  map[string]Directive{"kitcount": Integer},
		FacetPrefix: "Size ",
	})

	assert.Equal(t, []string{"Slot"}, view.DimensionHeaders)
	assert.Equal(t, []HeaderCell{{Label: "Kit Counts", Span: 6}, {Label: "Mix (Kit Counts)", Span: 4}}, view.Measures)
	assert.Equal(t, []HeaderCell{
		{Label: "Size 2", Span: 3}, {Label: "Size 4", Span: 3},
		{Label: "Size 2", Span: 2}, {Label: "Size 4", Span: 2},
	}, view.Facets)
	require.Len(t, view.Versions, 10)
	assert.Equal(t, "Var %", view.Versions[2].Label)
	assert.Equal(t, "variance:kitcount:2", view.Versions[2].Column)
	assert.Equal(t, "mix:kitcount:4:v3", view.Versions[9].Column)

	require.Len(t, view.Rows, 2)
	first := view.Rows[0]
	assert.Equal(t, []string{"1"}, first.Key)
	assert.Equal(t, "100", first.Cells[0].Text)
	assert.Equal(t, "120", first.Cells[1].Text)
	assert.Equal(t, "+20.0%", first.Cells[2].Text)
	assert.Equal(t, "0", first.Cells[3].Text)
	assert.True(t, first.Cells[5].Null)
	assert.Equal(t, "", first.Cells[5].Text)
}

func TestNegativeCellsFlagged(t *testing.T) {
	table := &pivot.ComparisonTable{
		DimensionKeys: []string{"slot"},
		Columns:       []pivot.ColumnKey{pivot.VarianceColumn("cost", "2")},
		Rows:          []pivot.Row{{Key: []string{"1"}, Cells: []pivot.Cell{{Value: -0.1, Observed: true}}}},
	}
	view := Build(table, Options{})
	assert.True(t, view.Rows[0].Cells[0].Negative)
	assert.Equal(t, "-10.0%", view.Rows[0].Cells[0].Text)
}

func TestBlankRepeats(t *testing.T) {
	rows := [][]string{
		{"1", "Chicken", "Meal"},
		{"1", "Chicken", "Addon"},
		{"1", "Beef", "Meal"},
		{"2", "Beef", "Meal"},
	}
	out := BlankRepeats(rows, []int{0, 1})
	assert.Equal(t, [][]string{
		{"1", "Chicken", "Meal"},
		{"", "", "Addon"},
		{"", "Beef", "Meal"},
		{"2", "", "Meal"},
	}, out)
	assert.Equal(t, "1", rows[1][0], "input must not be modified")
}

func TestBuildBlankRepeatsLeavesLastDimension(t *testing.T) {
	table := &pivot.ComparisonTable{
		DimensionKeys: []string{"slot", "title"},
		Columns:       []pivot.ColumnKey{},
		Rows: []pivot.Row{
			{Key: []string{"1", "A"}, Cells: []pivot.Cell{}},
			{Key: []string{"1", "A"}, Cells: []pivot.Cell{}},
		},
	}
	view := Build(table, Options{BlankRepeats: true})
	assert.Equal(t, []string{"", "A"}, view.Rows[1].Key)
}
