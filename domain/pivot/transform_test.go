package pivot

import (
	"encoding/json"
	"math"
	"testing"

	"finportal/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-9

func fact(tag, size, version string, measures map[string]float64) FactRow {
	return FactRow{
		Dimensions: map[string]string{"tag": tag, "size": size, "version": version},
		Measures:   measures,
	}
}

func exampleRows() []FactRow {
	return []FactRow{
		fact("A", "2", "v2", map[string]float64{"cpk": 10, "kitcount": 100}),
		fact("A", "2", "v3", map[string]float64{"cpk": 12, "kitcount": 120}),
		fact("B", "2", "v2", map[string]float64{"cpk": 5, "kitcount": 50}),
		fact("B", "2", "v3", map[string]float64{"cpk": 5, "kitcount": 50}),
	}
}

func exampleConfig() Config {
	return Config{
		DimensionKeys: []string{"tag"},
		FacetKey:      "size",
		VersionKey:    "version",
		Measures:      []MeasureSpec{{Name: "cpk", Agg: AggSum}, {Name: "kitcount", Agg: AggSum}},
		Compare:       VersionPair{First: "v2", Second: "v3"},
		MixMeasure:    "kitcount",
	}
}

func mustCell(t *testing.T, table *ComparisonTable, row string, key ColumnKey) Cell {
	t.Helper()
	i, ok := table.FindRow(row)
	require.True(t, ok, "row %s missing", row)
	c, ok := table.Cell(i, key)
	require.True(t, ok, "column %+v missing", key)
	return c
}

func TestTransform_WorkedExample(t *testing.T) {
	table, err := Transform(exampleRows(), exampleConfig())
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)

	assert.Equal(t, 10.0, mustCell(t, table, "A", ValueColumn("cpk", "2", "v2")).Value)
	assert.Equal(t, 12.0, mustCell(t, table, "A", ValueColumn("cpk", "2", "v3")).Value)
	assert.InDelta(t, 0.20, mustCell(t, table, "A", VarianceColumn("cpk", "2")).Value, tolerance)

	varB := mustCell(t, table, "B", VarianceColumn("cpk", "2"))
	assert.False(t, varB.Null)
	assert.InDelta(t, 0.0, varB.Value, tolerance)

	mixA := mustCell(t, table, "A", MixColumn("kitcount", "2", "v3"))
	mixB := mustCell(t, table, "B", MixColumn("kitcount", "2", "v3"))
	assert.InDelta(t, 120.0/170.0, mixA.Value, tolerance)
	assert.InDelta(t, 50.0/170.0, mixB.Value, tolerance)
	assert.InDelta(t, 1.0, mixA.Value+mixB.Value, tolerance)
}

func TestTransform_ColumnOrder(t *testing.T) {
	rows := append(exampleRows(),
		fact("A", "10", "v3", map[string]float64{"cpk": 1, "kitcount": 1}),
		fact("A", "4", "v2", map[string]float64{"cpk": 1, "kitcount": 1}),
	)
	table, err := Transform(rows, exampleConfig())
	require.NoError(t, err)

	var want []ColumnKey
	for _, m := range []string{"cpk", "kitcount"} {
		for _, f := range []string{"2", "4", "10"} {
			want = append(want,
				ValueColumn(m, f, "v2"),
				ValueColumn(m, f, "v3"),
				VarianceColumn(m, f),
			)
		}
	}
	for _, f := range []string{"2", "4", "10"} {
		want = append(want, MixColumn("kitcount", f, "v2"), MixColumn("kitcount", f, "v3"))
	}
	assert.Equal(t, want, table.Columns)
	assert.Equal(t, []string{"2", "4", "10"}, table.Facets("cpk"))
}

func TestTransform_EmptyInput(t *testing.T) {
	table, err := Transform(nil, exampleConfig())
	require.NoError(t, err)
	assert.True(t, table.IsEmpty())
	assert.Empty(t, table.Columns)
}

func TestTransform_EmptyInputStillValidatesConfig(t *testing.T) {
	cfg := exampleConfig()
	cfg.DimensionKeys = nil

	_, err := Transform(nil, cfg)
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestTransform_ZeroFirstVersionGivesNullVariance(t *testing.T) {
	rows := []FactRow{
		fact("A", "2", "v2", map[string]float64{"cpk": 0, "kitcount": 0}),
		fact("A", "2", "v3", map[string]float64{"cpk": 7, "kitcount": 3}),
	}
	table, err := Transform(rows, exampleConfig())
	require.NoError(t, err)

	for _, m := range []string{"cpk", "kitcount"} {
		c := mustCell(t, table, "A", VarianceColumn(m, "2"))
		assert.True(t, c.Null, "variance of %s should be null", m)
		assert.False(t, math.IsNaN(c.Value) || math.IsInf(c.Value, 0))
	}

	mixV2 := mustCell(t, table, "A", MixColumn("kitcount", "2", "v2"))
	assert.True(t, mixV2.Null, "mix over a zero total is undefined")
}

func TestTransform_MissingVersionIsNotFabricated(t *testing.T) {
	rows := []FactRow{
		fact("A", "2", "v2", map[string]float64{"cpk": 10, "kitcount": 100}),
		fact("B", "2", "v3", map[string]float64{"cpk": 4, "kitcount": 40}),
	}
	table, err := Transform(rows, exampleConfig())
	require.NoError(t, err)

	v3 := mustCell(t, table, "A", ValueColumn("cpk", "2", "v3"))
	assert.Equal(t, 0.0, v3.Value)
	assert.False(t, v3.Observed)

	variance := mustCell(t, table, "A", VarianceColumn("cpk", "2"))
	assert.True(t, variance.Null)

	mix := mustCell(t, table, "A", MixColumn("kitcount", "2", "v3"))
	assert.True(t, mix.Null)
}

func TestTransform_PairColumnsKeptWhenVersionUnobserved(t *testing.T) {
	rows := []FactRow{
		fact("A", "2", "v2", map[string]float64{"cpk": 10, "kitcount": 100}),
		fact("A", "2", "v4", map[string]float64{"cpk": 9, "kitcount": 90}),
	}
	table, err := Transform(rows, exampleConfig())
	require.NoError(t, err)

	assert.Equal(t, []ColumnKey{
		ValueColumn("cpk", "2", "v2"), ValueColumn("cpk", "2", "v3"), VarianceColumn("cpk", "2"), ValueColumn("cpk", "2", "v4"),
		ValueColumn("kitcount", "2", "v2"), ValueColumn("kitcount", "2", "v3"), VarianceColumn("kitcount", "2"), ValueColumn("kitcount", "2", "v4"),
		MixColumn("kitcount", "2", "v2"), MixColumn("kitcount", "2", "v3"), MixColumn("kitcount", "2", "v4"),
	}, table.Columns)

	v3 := mustCell(t, table, "A", ValueColumn("cpk", "2", "v3"))
	assert.False(t, v3.Observed)
	assert.True(t, mustCell(t, table, "A", VarianceColumn("cpk", "2")).Null)
	assert.True(t, mustCell(t, table, "A", MixColumn("kitcount", "2", "v3")).Null)
}

func TestTransform_CompletenessAcrossFacets(t *testing.T) {
	rows := []FactRow{
		fact("A", "2", "v2", map[string]float64{"cpk": 1, "kitcount": 10}),
		fact("B", "4", "v3", map[string]float64{"cpk": 2}),
	}
	table, err := Transform(rows, exampleConfig())
	require.NoError(t, err)

	for _, row := range []string{"A", "B"} {
		for _, m := range []string{"cpk", "kitcount"} {
			for _, f := range []string{"2", "4"} {
				mustCell(t, table, row, ValueColumn(m, f, "v2"))
				mustCell(t, table, row, ValueColumn(m, f, "v3"))
				mustCell(t, table, row, VarianceColumn(m, f))
			}
		}
	}

	// kitcount was null for B/4/v3: filled with zero, flagged unobserved
	c := mustCell(t, table, "B", ValueColumn("kitcount", "4", "v3"))
	assert.Equal(t, 0.0, c.Value)
	assert.False(t, c.Observed)
}

func TestTransform_DuplicateKeysAreAggregated(t *testing.T) {
	rows := append(exampleRows(),
		fact("A", "2", "v2", map[string]float64{"cpk": 5, "kitcount": 20}),
	)

	table, err := Transform(rows, exampleConfig())
	require.NoError(t, err)
	assert.Equal(t, 15.0, mustCell(t, table, "A", ValueColumn("cpk", "2", "v2")).Value)

	cfg := exampleConfig()
	cfg.Measures[0].Agg = AggMean
	table, err = Transform(rows, cfg)
	require.NoError(t, err)
	assert.InDelta(t, 7.5, mustCell(t, table, "A", ValueColumn("cpk", "2", "v2")).Value, tolerance)
	assert.Equal(t, 120.0, mustCell(t, table, "A", ValueColumn("kitcount", "2", "v2")).Value)
}

func TestTransform_MeanIgnoresNulls(t *testing.T) {
	rows := []FactRow{
		fact("A", "2", "v2", map[string]float64{"cpk": 4}),
		fact("A", "2", "v2", map[string]float64{}),
		fact("A", "2", "v2", map[string]float64{"cpk": 8}),
	}
	cfg := exampleConfig()
	cfg.Measures = []MeasureSpec{{Name: "cpk", Agg: AggMean}}
	cfg.MixMeasure = ""

	table, err := Transform(rows, cfg)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, mustCell(t, table, "A", ValueColumn("cpk", "2", "v2")).Value, tolerance)
}

func TestTransform_ExtraVersionsKeptOutsideVariance(t *testing.T) {
	rows := append(exampleRows(),
		fact("A", "2", "v4", map[string]float64{"cpk": 99, "kitcount": 1}),
		fact("A", "2", "v1", map[string]float64{"cpk": 3, "kitcount": 1}),
	)
	table, err := Transform(rows, exampleConfig())
	require.NoError(t, err)

	assert.Equal(t, []ColumnKey{
		ValueColumn("cpk", "2", "v2"),
		ValueColumn("cpk", "2", "v3"),
		VarianceColumn("cpk", "2"),
		ValueColumn("cpk", "2", "v1"),
		ValueColumn("cpk", "2", "v4"),
	}, table.Columns[:5])

	assert.Equal(t, 99.0, mustCell(t, table, "A", ValueColumn("cpk", "2", "v4")).Value)
	assert.InDelta(t, 0.20, mustCell(t, table, "A", VarianceColumn("cpk", "2")).Value, tolerance)
	assert.Equal(t, 1.0, mustCell(t, table, "A", MixColumn("kitcount", "2", "v4")).Value)
}

func TestTransform_MixSumsToOnePerFacetAndVersion(t *testing.T) {
	var rows []FactRow
	for i, tag := range []string{"A", "B", "C", "D"} {
		for _, size := range []string{"2", "4"} {
			rows = append(rows,
				fact(tag, size, "v2", map[string]float64{"cpk": 1, "kitcount": float64(10*i + 3)}),
				fact(tag, size, "v3", map[string]float64{"cpk": 1, "kitcount": float64(7*i + 11)}),
			)
		}
	}
	table, err := Transform(rows, exampleConfig())
	require.NoError(t, err)

	for _, size := range []string{"2", "4"} {
		for _, version := range []string{"v2", "v3"} {
			var sum float64
			for i := range table.Rows {
				c, ok := table.Cell(i, MixColumn("kitcount", size, version))
				require.True(t, ok)
				sum += c.Value
			}
			assert.InDelta(t, 1.0, sum, tolerance, "facet %s version %s", size, version)
		}
	}
}

func TestTransform_Idempotent(t *testing.T) {
	rows := exampleRows()
	first, err := Transform(rows, exampleConfig())
	require.NoError(t, err)
	second, err := Transform(rows, exampleConfig())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTransform_MultiDimensionRowOrder(t *testing.T) {
	rows := []FactRow{
		{Dimensions: map[string]string{"slot": "10", "type": "Meal", "size": "2", "version": "v2"}, Measures: map[string]float64{"cpk": 1}},
		{Dimensions: map[string]string{"slot": "2", "type": "Addon", "size": "2", "version": "v2"}, Measures: map[string]float64{"cpk": 1}},
		{Dimensions: map[string]string{"slot": "2", "type": "Meal", "size": "2", "version": "v3"}, Measures: map[string]float64{"cpk": 1}},
	}
	cfg := Config{
		DimensionKeys: []string{"slot", "type"},
		FacetKey:      "size",
		VersionKey:    "version",
		Measures:      []MeasureSpec{{Name: "cpk"}},
		Compare:       VersionPair{First: "v2", Second: "v3"},
	}
	table, err := Transform(rows, cfg)
	require.NoError(t, err)

	var keys [][]string
	for _, r := range table.Rows {
		keys = append(keys, r.Key)
	}
	assert.Equal(t, [][]string{{"2", "Addon"}, {"2", "Meal"}, {"10", "Meal"}}, keys)
}

func TestValidate_ConfigurationErrors(t *testing.T) {
	cases := map[string]func(*Config){
		"no dimensions":        func(c *Config) { c.DimensionKeys = nil },
		"no facet":             func(c *Config) { c.FacetKey = "" },
		"no version key":       func(c *Config) { c.VersionKey = "" },
		"no measures":          func(c *Config) { c.Measures = nil },
		"measure is dimension": func(c *Config) { c.Measures = append(c.Measures, MeasureSpec{Name: "tag"}) },
		"measure is facet":     func(c *Config) { c.Measures[0].Name = "size" },
		"facet is dimension":   func(c *Config) { c.FacetKey = "tag" },
		"duplicate measure":    func(c *Config) { c.Measures[1].Name = "cpk"; c.MixMeasure = "" },
		"bad aggregation":      func(c *Config) { c.Measures[0].Agg = "median" },
		"missing pair":         func(c *Config) { c.Compare.Second = "" },
		"identical pair":       func(c *Config) { c.Compare.Second = "v2" },
		"unknown mix measure":  func(c *Config) { c.MixMeasure = "revenue" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := exampleConfig()
			cfg.Measures = append([]MeasureSpec(nil), cfg.Measures...)
			mutate(&cfg)

			_, err := Transform(exampleRows(), cfg)
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}

func TestTransform_NonFiniteMeasuresAreNull(t *testing.T) {
	rows := []FactRow{
		fact("A", "2", "v2", map[string]float64{"cpk": math.NaN()}),
		fact("A", "2", "v3", map[string]float64{"cpk": 5}),
		fact("B", "2", "v2", map[string]float64{"cpk": 3}),
		fact("B", "2", "v3", map[string]float64{"cpk": 4}),
		fact("B", "4", "v2", map[string]float64{"cpk": math.Inf(1)}),
		fact("B", "4", "v2", map[string]float64{"cpk": 6}),
	}
	cfg := exampleConfig()
	cfg.Measures = []MeasureSpec{{Name: "cpk"}}
	cfg.MixMeasure = "cpk"

	table, err := Transform(rows, cfg)
	require.NoError(t, err)

	a := mustCell(t, table, "A", ValueColumn("cpk", "2", "v2"))
	assert.False(t, a.Observed)
	assert.Equal(t, 0.0, a.Value)
	assert.True(t, mustCell(t, table, "A", VarianceColumn("cpk", "2")).Null)
	assert.True(t, mustCell(t, table, "A", MixColumn("cpk", "2", "v2")).Null)

	mixB := mustCell(t, table, "B", MixColumn("cpk", "2", "v2"))
	require.False(t, mixB.Null)
	assert.InDelta(t, 1.0, mixB.Value, tolerance)

	// the infinite observation is dropped, the finite one kept
	b4 := mustCell(t, table, "B", ValueColumn("cpk", "4", "v2"))
	assert.True(t, b4.Observed)
	assert.Equal(t, 6.0, b4.Value)

	_, err = json.Marshal(table)
	assert.NoError(t, err)
}

func TestTransform_OverflowingSumIsNull(t *testing.T) {
	rows := []FactRow{
		fact("A", "2", "v2", map[string]float64{"cpk": math.MaxFloat64}),
		fact("A", "2", "v2", map[string]float64{"cpk": math.MaxFloat64}),
		fact("A", "2", "v3", map[string]float64{"cpk": 1}),
	}
	cfg := exampleConfig()
	cfg.Measures = []MeasureSpec{{Name: "cpk"}}
	cfg.MixMeasure = ""

	table, err := Transform(rows, cfg)
	require.NoError(t, err)
	assert.False(t, mustCell(t, table, "A", ValueColumn("cpk", "2", "v2")).Observed)
	_, err = json.Marshal(table)
	assert.NoError(t, err)
}

func TestColumnIDs(t *testing.T) {
	table, err := Transform(exampleRows(), exampleConfig())
	require.NoError(t, err)

	assert.Equal(t, "value:cpk:2:v3", ValueColumn("cpk", "2", "v3").ID())
	assert.Equal(t, "variance:cpk:2", VarianceColumn("cpk", "2").ID())
	assert.Equal(t, "mix:kitcount:2:v2", MixColumn("kitcount", "2", "v2").ID())

	for _, col := range table.Columns {
		found, ok := table.ColumnByID(col.ID())
		require.True(t, ok, col.ID())
		assert.Equal(t, col, found)
	}
	_, ok := table.ColumnByID("value:cpk:9:v3")
	assert.False(t, ok)
}

func TestSortBy(t *testing.T) {
	rows := []FactRow{
		fact("A", "2", "v2", map[string]float64{"cpk": 10}),
		fact("A", "2", "v3", map[string]float64{"cpk": 11}),
		fact("B", "2", "v2", map[string]float64{"cpk": 0}),
		fact("B", "2", "v3", map[string]float64{"cpk": 7}),
		fact("C", "2", "v2", map[string]float64{"cpk": 4}),
		fact("C", "2", "v3", map[string]float64{"cpk": 8}),
	}
	cfg := exampleConfig()
	cfg.Measures = []MeasureSpec{{Name: "cpk"}}
	cfg.MixMeasure = ""
	table, err := Transform(rows, cfg)
	require.NoError(t, err)

	keys := func() []string {
		var out []string
		for _, r := range table.Rows {
			out = append(out, r.Key[0])
		}
		return out
	}

	require.True(t, table.SortBy(ValueColumn("cpk", "2", "v3"), false))
	assert.Equal(t, []string{"B", "C", "A"}, keys())

	// B has a null variance, which stays last in both directions
	require.True(t, table.SortBy(VarianceColumn("cpk", "2"), true))
	assert.Equal(t, []string{"C", "A", "B"}, keys())
	require.True(t, table.SortBy(VarianceColumn("cpk", "2"), false))
	assert.Equal(t, []string{"A", "C", "B"}, keys())

	assert.False(t, table.SortBy(ValueColumn("cpk", "4", "v3"), true))
	assert.Equal(t, []string{"A", "C", "B"}, keys())
}

func TestNaturalLess(t *testing.T) {
	assert.True(t, NaturalLess("2", "10"))
	assert.False(t, NaturalLess("10", "2"))
	assert.True(t, NaturalLess("9", "Addon"))
	assert.True(t, NaturalLess("Addon", "Meal"))
	assert.True(t, NaturalLess("NaN", "Ox"))
}
