package pivot

import (
	"encoding/json"
)

// FactRow is one observed measurement as returned by the warehouse.
// Dimensions holds every string-valued field (grouping dimensions, the facet
// and the version). A measure missing from Measures is null, not zero, and
// so is a NaN or infinite one.
type FactRow struct {
	Dimensions map[string]string  `json:"dimensions"`
	Measures   map[string]float64 `json:"measures"`
}

// Dimension returns the value of a string field, or "" when absent.
func (r FactRow) Dimension(key string) string {
	if r.Dimensions == nil {
		return ""
	}
	return r.Dimensions[key]
}

// Measure returns the value of a numeric field and whether it was present.
func (r FactRow) Measure(name string) (float64, bool) {
	if r.Measures == nil {
		return 0, false
	}
	v, ok := r.Measures[name]
	return v, ok
}

// AggFunc names how duplicate observations of one cell are combined.
type AggFunc string

const (
	AggSum  AggFunc = "sum"
	AggMean AggFunc = "mean"
)

// MeasureSpec pairs a measure field with its aggregation. An empty Agg means sum.
type MeasureSpec struct {
	Name string  `json:"name"`
	Agg  AggFunc `json:"agg,omitempty"`
}

func (m MeasureSpec) aggregation() AggFunc {
	if m.Agg == "" {
		return AggSum
	}
	return m.Agg
}

// VersionPair is the ordered pair of versions compared by the variance column.
type VersionPair struct {
	First  string `json:"first"`
	Second string `json:"second"`
}

// Config parameterises Transform.
type Config struct {
	DimensionKeys []string      `json:"dimension_keys"`
	FacetKey      string        `json:"facet_key"`
	VersionKey    string        `json:"version_key"`
	Measures      []MeasureSpec `json:"measures"`
	Compare       VersionPair   `json:"compare"`
	MixMeasure    string        `json:"mix_measure,omitempty"`
}

// ColumnKind distinguishes the three column categories of a comparison table.
type ColumnKind string

const (
	KindValue    ColumnKind = "value"
	KindVariance ColumnKind = "variance"
	KindMix      ColumnKind = "mix"
)

const (
	// VarianceVersion is the version label carried by variance columns.
	VarianceVersion = "variance"
	// MixMeasure is the measure label carried by mix columns.
	MixMeasure = "Mix"
)

// ColumnKey is the three-level column address: measure, facet, then a
// version or the variance marker. Kind lets presentation code pick a
// formatting rule without looking at cell values.
type ColumnKey struct {
	Measure string     `json:"measure"`
	Facet   string     `json:"facet"`
	Version string     `json:"version"`
	Kind    ColumnKind `json:"kind"`
	// Source is the measure a mix column was derived from.
	Source string `json:"source,omitempty"`
}

// ID is a compact, URL friendly name of the column, such as
// "value:revenue:2:v3", "variance:revenue:2" or "mix:kits:2:v3".
func (k ColumnKey) ID() string {
	switch k.Kind {
	case KindVariance:
		return string(k.Kind) + ":" + k.Measure + ":" + k.Facet
	case KindMix:
		return string(k.Kind) + ":" + k.Source + ":" + k.Facet + ":" + k.Version
	default:
		return string(k.Kind) + ":" + k.Measure + ":" + k.Facet + ":" + k.Version
	}
}

// Cell is one output value.
//
// Null marks an undefined variance or mix. Observed reports whether any fact
// row contributed to the cell; a value cell that is zero with Observed=false
// is a filled gap, not a measured zero.
type Cell struct {
	Value    float64
	Null     bool
	Observed bool
}

type cellJSON struct {
	Value    *float64 `json:"value"`
	Observed bool     `json:"observed"`
}

// MarshalJSON renders null cells as a JSON null value.
func (c Cell) MarshalJSON() ([]byte, error) {
	out := cellJSON{Observed: c.Observed}
	if !c.Null {
		v := c.Value
		out.Value = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var in cellJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	c.Observed = in.Observed
	if in.Value == nil {
		c.Value, c.Null = 0, true
		return nil
	}
	c.Value, c.Null = *in.Value, false
	return nil
}

// Row is one output row, keyed by the values of the dimension keys.
type Row struct {
	Key   []string `json:"key"`
	Cells []Cell   `json:"cells"`
}

// ComparisonTable is the wide, pivoted result of Transform.
type ComparisonTable struct {
	DimensionKeys []string    `json:"dimension_keys"`
	FacetKey      string      `json:"facet_key"`
	Compare       VersionPair `json:"compare"`
	Columns       []ColumnKey `json:"columns"`
	Rows          []Row       `json:"rows"`
}

// ColumnIndex returns the position of key in Columns.
func (t *ComparisonTable) ColumnIndex(key ColumnKey) (int, bool) {
	for i, c := range t.Columns {
		if c == key {
			return i, true
		}
	}
	return -1, false
}

// ColumnByID returns the column whose ID is id.
func (t *ComparisonTable) ColumnByID(id string) (ColumnKey, bool) {
	for _, c := range t.Columns {
		if c.ID() == id {
			return c, true
		}
	}
	return ColumnKey{}, false
}

// Cell returns the cell of row i under key.
func (t *ComparisonTable) Cell(i int, key ColumnKey) (Cell, bool) {
	j, ok := t.ColumnIndex(key)
	if !ok || i < 0 || i >= len(t.Rows) {
		return Cell{}, false
	}
	return t.Rows[i].Cells[j], true
}

// FindRow returns the index of the row with the given dimension values.
func (t *ComparisonTable) FindRow(key ...string) (int, bool) {
	for i, r := range t.Rows {
		if equalStrings(r.Key, key) {
			return i, true
		}
	}
	return -1, false
}

// Facets returns the facet values present under a measure, in column order.
func (t *ComparisonTable) Facets(measure string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, c := range t.Columns {
		if c.Measure == measure && !seen[c.Facet] {
			seen[c.Facet] = true
			out = append(out, c.Facet)
		}
	}
	return out
}

// IsEmpty reports whether the table has no rows.
func (t *ComparisonTable) IsEmpty() bool {
	return len(t.Rows) == 0
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ValueColumn, VarianceColumn and MixColumn build column keys for lookups.
func ValueColumn(measure, facet, version string) ColumnKey {
	return ColumnKey{Measure: measure, Facet: facet, Version: version, Kind: KindValue}
}

func VarianceColumn(measure, facet string) ColumnKey {
	return ColumnKey{Measure: measure, Facet: facet, Version: VarianceVersion, Kind: KindVariance}
}

func MixColumn(source, facet, version string) ColumnKey {
	return ColumnKey{Measure: MixMeasure, Facet: facet, Version: version, Kind: KindMix, Source: source}
}
