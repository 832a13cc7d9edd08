package pivot

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"finportal/internal/errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// keySep joins dimension values into one grouping key. It cannot appear in
// warehouse strings we care about.
const keySep = "\x1f"

type cellKey struct {
	dims    string
	facet   string
	version string
}

// aggregate holds one aggregated value per measure; ok[i] is false when every
// observation of measure i in the group was null.
type aggregate struct {
	values []float64
	ok     []bool
}

// Validate checks a transform configuration without touching any data.
func Validate(cfg Config) error {
	if len(cfg.DimensionKeys) == 0 {
		return errors.ConfigInvalid("at least one dimension key is required")
	}
	if cfg.FacetKey == "" {
		return errors.ConfigInvalid("facet key is required")
	}
	if cfg.VersionKey == "" {
		return errors.ConfigInvalid("version key is required")
	}
	if len(cfg.Measures) == 0 {
		return errors.ConfigInvalid("at least one measure is required")
	}

	fields := make(map[string]string)
	claim := func(name, role string) error {
		if name == "" {
			return errors.ConfigInvalid(role + " name must not be empty")
		}
		if prev, ok := fields[name]; ok {
			return errors.ConfigInvalid(fmt.Sprintf("field %q used as both %s and %s", name, prev, role))
		}
		fields[name] = role
		return nil
	}

	for _, k := range cfg.DimensionKeys {
		if err := claim(k, "dimension"); err != nil {
			return err
		}
	}
	if err := claim(cfg.FacetKey, "facet"); err != nil {
		return err
	}
	if err := claim(cfg.VersionKey, "version"); err != nil {
		return err
	}
	for _, m := range cfg.Measures {
		if err := claim(m.Name, "measure"); err != nil {
			return err
		}
		switch m.aggregation() {
		case AggSum, AggMean:
		default:
			return errors.ConfigInvalid(fmt.Sprintf("measure %q has unsupported aggregation %q", m.Name, m.Agg))
		}
	}

	if cfg.Compare.First == "" || cfg.Compare.Second == "" {
		return errors.ConfigInvalid("both comparison versions are required")
	}
	if cfg.Compare.First == cfg.Compare.Second {
		return errors.ConfigInvalid("comparison versions must differ")
	}

	if cfg.MixMeasure != "" && fields[cfg.MixMeasure] != "measure" {
		return errors.ConfigInvalid(fmt.Sprintf("mix measure %q is not one of the configured measures", cfg.MixMeasure))
	}
	return nil
}

// Transform pivots fact rows into a comparison table with variance and mix
// columns. It is pure: the same rows and config always yield an equal table.
func Transform(rows []FactRow, cfg Config) (*ComparisonTable, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	table := &ComparisonTable{
		DimensionKeys: append([]string(nil), cfg.DimensionKeys...),
		FacetKey:      cfg.FacetKey,
		Compare:       cfg.Compare,
		Columns:       []ColumnKey{},
		Rows:          []Row{},
	}
	if len(rows) == 0 {
		return table, nil
	}

	groups, dimValues, facets, versions := group(rows, cfg)

	dimOrder := make([]string, 0, len(dimValues))
	for k := range dimValues {
		dimOrder = append(dimOrder, k)
	}
	sort.Slice(dimOrder, func(i, j int) bool {
		return lessKey(dimValues[dimOrder[i]], dimValues[dimOrder[j]])
	})

	facetOrder := sortedNatural(facets)
	versionOrder := orderVersions(versions, cfg.Compare)

	table.Columns = buildColumns(cfg, facetOrder, versionOrder)

	mixTotals := map[[2]string]float64{}
	mixIdx := -1
	if cfg.MixMeasure != "" {
		mixIdx = measureIndex(cfg.Measures, cfg.MixMeasure)
		for k, agg := range groups {
			if agg.ok[mixIdx] {
				mixTotals[[2]string{k.facet, k.version}] += agg.values[mixIdx]
			}
		}
	}

	lookup := func(dims, facet, version string, m int) (float64, bool) {
		agg, ok := groups[cellKey{dims: dims, facet: facet, version: version}]
		if !ok || !agg.ok[m] {
			return 0, false
		}
		return agg.values[m], true
	}

	for _, dims := range dimOrder {
		cells := make([]Cell, 0, len(table.Columns))
		for _, col := range table.Columns {
			switch col.Kind {
			case KindValue:
				v, ok := lookup(dims, col.Facet, col.Version, measureIndex(cfg.Measures, col.Measure))
				cells = append(cells, Cell{Value: v, Observed: ok})
			case KindVariance:
				m := measureIndex(cfg.Measures, col.Measure)
				first, okFirst := lookup(dims, col.Facet, cfg.Compare.First, m)
				second, okSecond := lookup(dims, col.Facet, cfg.Compare.Second, m)
				cells = append(cells, Variance(first, okFirst, second, okSecond))
			case KindMix:
				v, ok := lookup(dims, col.Facet, col.Version, mixIdx)
				cells = append(cells, Ratio(v, ok, mixTotals[[2]string{col.Facet, col.Version}]))
			}
		}
		table.Rows = append(table.Rows, Row{
			Key:   append([]string(nil), dimValues[dims]...),
			Cells: cells,
		})
	}

	return table, nil
}

// group aggregates rows per (dimensions, facet, version) and collects the
// observed axis values.
func group(rows []FactRow, cfg Config) (map[cellKey]aggregate, map[string][]string, map[string]bool, map[string]bool) {
	observations := make(map[cellKey][][]float64)
	dimValues := make(map[string][]string)
	facets := make(map[string]bool)
	versions := make(map[string]bool)

	for _, r := range rows {
		values := make([]string, len(cfg.DimensionKeys))
		for i, k := range cfg.DimensionKeys {
			values[i] = r.Dimension(k)
		}
		dims := strings.Join(values, keySep)
		if _, ok := dimValues[dims]; !ok {
			dimValues[dims] = values
		}

		key := cellKey{dims: dims, facet: r.Dimension(cfg.FacetKey), version: r.Dimension(cfg.VersionKey)}
		facets[key.facet] = true
		versions[key.version] = true

		obs, ok := observations[key]
		if !ok {
			obs = make([][]float64, len(cfg.Measures))
		}
		for i, m := range cfg.Measures {
			if v, present := r.Measure(m.Name); present && finite(v) {
				obs[i] = append(obs[i], v)
			}
		}
		observations[key] = obs
	}

	groups := make(map[cellKey]aggregate, len(observations))
	for key, obs := range observations {
		agg := aggregate{
			values: make([]float64, len(cfg.Measures)),
			ok:     make([]bool, len(cfg.Measures)),
		}
		for i, m := range cfg.Measures {
			if len(obs[i]) == 0 {
				continue
			}
			var v float64
			switch m.aggregation() {
			case AggMean:
				v = stat.Mean(obs[i], nil)
			default:
				v = floats.Sum(obs[i])
			}
			// an overflowing sum is as unusable as a NaN input
			if finite(v) {
				agg.values[i], agg.ok[i] = v, true
			}
		}
		groups[key] = agg
	}
	return groups, dimValues, facets, versions
}

func buildColumns(cfg Config, facets, versions []string) []ColumnKey {
	cols := make([]ColumnKey, 0, len(cfg.Measures)*len(facets)*(len(versions)+1))
	for _, m := range cfg.Measures {
		for _, f := range facets {
			for i, v := range versions {
				cols = append(cols, ValueColumn(m.Name, f, v))
				// the pair always occupies the first two version slots
				if i == 1 {
					cols = append(cols, VarianceColumn(m.Name, f))
				}
			}
		}
	}
	if cfg.MixMeasure != "" {
		for _, f := range facets {
			for _, v := range versions {
				cols = append(cols, MixColumn(cfg.MixMeasure, f, v))
			}
		}
	}
	return cols
}

// orderVersions places the comparison pair first, then any other observed
// versions in natural order. The pair is included even when one side has no
// rows at all; its cells are then unobserved zeros with null variance.
func orderVersions(observed map[string]bool, pair VersionPair) []string {
	extras := make(map[string]bool)
	for v := range observed {
		if v != pair.First && v != pair.Second {
			extras[v] = true
		}
	}
	return append([]string{pair.First, pair.Second}, sortedNatural(extras)...)
}

// Variance is (second-first)/first. It is null when either side is absent
// or the first value is zero.
func Variance(first float64, okFirst bool, second float64, okSecond bool) Cell {
	if !okFirst || !okSecond {
		return Cell{Null: true}
	}
	if first == 0 {
		return Cell{Null: true, Observed: true}
	}
	v := (second - first) / first
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Cell{Null: true, Observed: true}
	}
	return Cell{Value: v, Observed: true}
}

// Ratio is v/total, null when v is absent or total is zero.
func Ratio(v float64, ok bool, total float64) Cell {
	if !ok {
		return Cell{Null: true}
	}
	if total == 0 {
		return Cell{Null: true, Observed: true}
	}
	r := v / total
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return Cell{Null: true, Observed: true}
	}
	return Cell{Value: r, Observed: true}
}

// finite reports whether v is neither NaN nor an infinity. Non-finite
// measures are treated as null.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func measureIndex(measures []MeasureSpec, name string) int {
	for i, m := range measures {
		if m.Name == name {
			return i
		}
	}
	return -1
}
