package report

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"time"

	"finportal/domain/pivot"
	"finportal/internal/errors"
	"finportal/internal/format"
	"finportal/internal/kpi"
)

// Axis is what the variance pair compares.
type Axis string

const (
	// AxisVersion compares two forecast versions within one week.
	AxisVersion Axis = "version"
	// AxisWeek compares the selected week with the week before it.
	AxisWeek Axis = "week"
)

// Arg names a query placeholder value drawn from the request.
type Arg string

const (
	ArgWeek   Arg = "week"
	ArgEntity Arg = "entity"
	ArgFirst  Arg = "first"
	ArgSecond Arg = "second"
)

// Definition is a declarative report: the warehouse query producing fact
// rows and everything needed to pivot, format and summarise them.
type Definition struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Section     string `json:"section"`
	Description string `json:"description"` // markdown

	Query string `json:"-"`
	Args  []Arg  `json:"-"`

	DimensionKeys []string            `json:"dimension_keys"`
	FacetKey      string              `json:"facet_key"`
	VersionKey    string              `json:"version_key"`
	Measures      []pivot.MeasureSpec `json:"measures"`
	MixMeasure    string              `json:"mix_measure,omitempty"`
	Axis          Axis                `json:"axis"`

	// WeekKey and EntityKey name the filter columns, for sources that
	// filter in memory instead of in SQL.
	WeekKey   string `json:"week_key"`
	EntityKey string `json:"entity_key"`

	Labels      map[string]string           `json:"labels"`
	Formats     map[string]format.Directive `json:"formats"`
	FacetPrefix string                      `json:"facet_prefix,omitempty"`
	KPIs        []kpi.Definition            `json:"kpis"`

	// SortMeasure orders rows by the second version's total, descending.
	SortMeasure string `json:"sort_measure,omitempty"`
	// MoversMeasure is summarised in the top movers panel.
	MoversMeasure string `json:"movers_measure,omitempty"`
}

// Params are the user's selections for one report run. Sort names a
// column by its ID; it only orders the output and is not part of the
// cache key.
type Params struct {
	Week   string `json:"week" form:"week"`
	Entity string `json:"entity" form:"entity"`
	First  string `json:"first" form:"first"`
	Second string `json:"second" form:"second"`
	Sort   string `json:"sort,omitempty" form:"sort"`
	Desc   bool   `json:"desc,omitempty" form:"desc"`
}

// Fields returns the parameters as a flat map, e.g. for query strings.
// Sort fields are present only when set.
func (p Params) Fields() map[string]string {
	fields := map[string]string{
		"week":   p.Week,
		"entity": p.Entity,
		"first":  p.First,
		"second": p.Second,
	}
	if p.Sort != "" {
		fields["sort"] = p.Sort
		if p.Desc {
			fields["desc"] = "true"
		}
	}
	return fields
}

var (
	weekPattern    = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)
	versionPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 _.-]{0,31}$`)
)

// ValidWeek reports whether s is a reporting week label such as 2025-W09.
func ValidWeek(s string) bool {
	_, _, err := parseWeek(s)
	return err == nil
}

func parseWeek(s string) (year, week int, err error) {
	m := weekPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("week %q must look like 2025-W09", s)
	}
	year, _ = strconv.Atoi(m[1])
	week, _ = strconv.Atoi(m[2])
	if week < 1 || week > 53 {
		return 0, 0, fmt.Errorf("week %q out of range", s)
	}
	return year, week, nil
}

// WeekOf returns the ISO week label containing t.
func WeekOf(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}

// PreviousWeek returns the ISO week before the given week label.
func PreviousWeek(s string) (string, error) {
	year, week, err := parseWeek(s)
	if err != nil {
		return "", err
	}
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	monday := jan4.AddDate(0, 0, -offset+(week-1)*7)
	y, w := monday.AddDate(0, 0, -7).ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w), nil
}

// Pair resolves the two versions compared for the given params.
func (d *Definition) Pair(p Params) (pivot.VersionPair, error) {
	if d.Axis == AxisWeek {
		prev, err := PreviousWeek(p.Week)
		if err != nil {
			return pivot.VersionPair{}, errors.InvalidInput(err.Error())
		}
		return pivot.VersionPair{First: prev, Second: p.Week}, nil
	}
	return pivot.VersionPair{First: p.First, Second: p.Second}, nil
}

// PivotConfig builds the transform configuration for a comparison pair.
func (d *Definition) PivotConfig(pair pivot.VersionPair) pivot.Config {
	return pivot.Config{
		DimensionKeys: d.DimensionKeys,
		FacetKey:      d.FacetKey,
		VersionKey:    d.VersionKey,
		Measures:      d.Measures,
		Compare:       pair,
		MixMeasure:    d.MixMeasure,
	}
}

// Bind returns the query arguments in placeholder order.
func (d *Definition) Bind(p Params, pair pivot.VersionPair) []any {
	args := make([]any, 0, len(d.Args))
	for _, a := range d.Args {
		switch a {
		case ArgWeek:
			args = append(args, p.Week)
		case ArgEntity:
			args = append(args, p.Entity)
		case ArgFirst:
			args = append(args, pair.First)
		case ArgSecond:
			args = append(args, pair.Second)
		}
	}
	return args
}

// Filters returns the column filters equivalent to the query's WHERE clause.
func (d *Definition) Filters(p Params, pair pivot.VersionPair) map[string][]string {
	filters := map[string][]string{
		d.EntityKey:  {p.Entity},
		d.VersionKey: {pair.First, pair.Second},
	}
	if d.WeekKey != d.VersionKey {
		filters[d.WeekKey] = []string{p.Week}
	}
	return filters
}

// StringColumns lists the fields scanned as strings: dimensions, facet, version.
func (d *Definition) StringColumns() []string {
	cols := append([]string(nil), d.DimensionKeys...)
	return append(cols, d.FacetKey, d.VersionKey)
}

// MeasureColumns lists the fields scanned as numbers.
func (d *Definition) MeasureColumns() []string {
	cols := make([]string, len(d.Measures))
	for i, m := range d.Measures {
		cols[i] = m.Name
	}
	return cols
}

// Label returns the display name of a field.
func (d *Definition) Label(field string) string {
	if l, ok := d.Labels[field]; ok {
		return l
	}
	return field
}

// FormatOptions returns the presentation options of the report.
func (d *Definition) FormatOptions() format.Options {
	return format.Options{
		Labels:       d.Labels,
		Directives:   d.Formats,
		FacetPrefix:  d.FacetPrefix,
		BlankRepeats: len(d.DimensionKeys) > 1,
	}
}

// Catalog is the set of reports the portal serves.
type Catalog struct {
	entities []string
	defs     []*Definition
	byID     map[string]*Definition
}

// NewCatalog builds a catalog. Definitions keep their given order.
func NewCatalog(entities []string, defs ...*Definition) *Catalog {
	c := &Catalog{
		entities: append([]string(nil), entities...),
		byID:     make(map[string]*Definition, len(defs)),
	}
	for _, d := range defs {
		c.defs = append(c.defs, d)
		c.byID[d.ID] = d
	}
	return c
}

// Get returns the report with the given id.
func (c *Catalog) Get(id string) (*Definition, error) {
	d, ok := c.byID[id]
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("report %q", id))
	}
	return d, nil
}

// List returns every report in catalog order.
func (c *Catalog) List() []*Definition {
	return c.defs
}

// Entities returns the entities a report may be filtered by.
func (c *Catalog) Entities() []string {
	return c.entities
}

// Validate checks request params against a report before any query runs.
func (c *Catalog) Validate(d *Definition, p Params) error {
	if _, _, err := parseWeek(p.Week); err != nil {
		return errors.InvalidInput(err.Error())
	}
	if !slices.Contains(c.entities, p.Entity) {
		return errors.InvalidInput(fmt.Sprintf("unknown entity %q", p.Entity))
	}
	if d.Axis == AxisWeek {
		return nil
	}
	if p.First == "" || p.Second == "" {
		return errors.InvalidInput("two versions are required")
	}
	for _, v := range []string{p.First, p.Second} {
		if !versionPattern.MatchString(v) {
			return errors.InvalidInput(fmt.Sprintf("invalid version %q", v))
		}
	}
	if p.First == p.Second {
		return errors.InvalidInput("versions to compare must differ")
	}
	return nil
}
