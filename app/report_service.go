package app

import (
	"context"
	"fmt"
	"time"

	"finportal/domain/pivot"
	"finportal/domain/report"
	"finportal/internal"
	"finportal/internal/cache"
	"finportal/internal/format"
	"finportal/internal/kpi"
	"finportal/internal/metrics"
	"finportal/ports"

	"golang.org/x/sync/errgroup"
)

const topMovers = 10

// TableExporter renders a comparison table to a downloadable document.
type TableExporter interface {
	Export(table *pivot.ComparisonTable, opts format.Options) ([]byte, error)
}

// ReportOptions holds the portal defaults the service needs.
type ReportOptions struct {
	WeekFrom      string
	WeekTo        string
	DefaultWeek   string // when no week is given and the week list is empty or unavailable
	FirstVersion  string
	SecondVersion string
}

// ReportResult is everything a page or API response shows for one run.
type ReportResult struct {
	Report      *report.Definition     `json:"report"`
	Params      report.Params          `json:"params"`
	Pair        pivot.VersionPair      `json:"pair"`
	Table       *pivot.ComparisonTable `json:"table"`
	KPIs        []kpi.Card             `json:"kpis"`
	Movers      kpi.Movers             `json:"movers"`
	Weeks       []string               `json:"weeks"`
	FactRows    int                    `json:"fact_rows"`
	Cached      bool                   `json:"cached"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// ReportService runs catalog reports: fetch facts through the cache,
// transform, sort and summarise.
type ReportService struct {
	catalog   *report.Catalog
	warehouse ports.Warehouse
	facts     *cache.Loader
	weeks     *cache.Loader
	exporter  TableExporter
	options   ReportOptions
	log       *internal.Logger
}

func NewReportService(catalog *report.Catalog, warehouse ports.Warehouse, facts, weeks *cache.Loader, exporter TableExporter, options ReportOptions) *ReportService {
	return &ReportService{
		catalog:   catalog,
		warehouse: warehouse,
		facts:     facts,
		weeks:     weeks,
		exporter:  exporter,
		options:   options,
		log:       internal.DefaultLogger.With("ReportService"),
	}
}

// Catalog returns the reports this service can run.
func (s *ReportService) Catalog() *report.Catalog {
	return s.catalog
}

// DefaultParams fills unset selections: latest known week (or the
// configured default week), first entity and the configured version pair.
func (s *ReportService) DefaultParams(p report.Params, weeks []string) report.Params {
	if p.Week == "" {
		if len(weeks) > 0 {
			p.Week = weeks[len(weeks)-1]
		} else {
			p.Week = s.options.DefaultWeek
		}
	}
	if p.Entity == "" && len(s.catalog.Entities()) > 0 {
		p.Entity = s.catalog.Entities()[0]
	}
	if p.First == "" {
		p.First = s.options.FirstVersion
	}
	if p.Second == "" {
		p.Second = s.options.SecondVersion
	}
	return p
}

// resolve validates a request and derives its comparison pair and cache key.
func (s *ReportService) resolve(reportID string, p report.Params) (*report.Definition, pivot.VersionPair, string, error) {
	def, err := s.catalog.Get(reportID)
	if err != nil {
		return nil, pivot.VersionPair{}, "", err
	}
	if err := s.catalog.Validate(def, p); err != nil {
		return nil, pivot.VersionPair{}, "", err
	}
	pair, err := def.Pair(p)
	if err != nil {
		return nil, pivot.VersionPair{}, "", err
	}
	key := cache.Fingerprint(def.ID, map[string]string{
		"week":   p.Week,
		"entity": p.Entity,
		"first":  pair.First,
		"second": pair.Second,
	})
	return def, pair, key, nil
}

// Run executes one report.
func (s *ReportService) Run(ctx context.Context, reportID string, p report.Params) (*ReportResult, error) {
	def, pair, key, err := s.resolve(reportID, p)
	if err != nil {
		return nil, err
	}

	var (
		rows   []pivot.FactRow
		cached bool
		weeks  []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, cached, err = cache.Fetch(gctx, s.facts, key, func(ctx context.Context) ([]pivot.FactRow, error) {
			return s.warehouse.FetchFacts(ctx, ports.FactQuery{
				Report:         def.ID,
				SQL:            def.Query,
				Args:           def.Bind(p, pair),
				StringColumns:  def.StringColumns(),
				MeasureColumns: def.MeasureColumns(),
				Filters:        def.Filters(p, pair),
			})
		})
		return err
	})
	g.Go(func() error {
		var err error
		weeks, err = s.Weeks(gctx)
		if err != nil {
			// the selector falls back to the current week only
			s.log.Warn("week list unavailable: %v", err)
			weeks = []string{p.Week}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.log.Error("%s fetch failed: %v", def.ID, err)
		return nil, err
	}

	start := time.Now()
	table, err := pivot.Transform(rows, def.PivotConfig(pair))
	if err != nil {
		return nil, err
	}
	if !s.sortBy(table, p) && def.SortMeasure != "" {
		table.SortByTotal(def.SortMeasure, pair.Second, true)
	}
	metrics.TransformDuration.WithLabelValues(def.ID).Observe(time.Since(start).Seconds())

	result := &ReportResult{
		Report:      def,
		Params:      p,
		Pair:        pair,
		Table:       table,
		KPIs:        kpi.Compute(rows, def.VersionKey, pair, def.KPIs),
		Weeks:       weeks,
		FactRows:    len(rows),
		Cached:      cached,
		GeneratedAt: time.Now(),
	}
	if def.MoversMeasure != "" {
		result.Movers = kpi.TopMovers(table, def.MoversMeasure, topMovers)
	}

	s.log.Info("%s %s/%s %s vs %s: %d fact rows, %d table rows (cached=%t)",
		def.ID, p.Entity, p.Week, pair.First, pair.Second, len(rows), len(table.Rows), cached)
	return result, nil
}

// sortBy applies the requested column sort. A column the table does not
// have, e.g. a facet absent this week, leaves the default order.
func (s *ReportService) sortBy(table *pivot.ComparisonTable, p report.Params) bool {
	if p.Sort == "" {
		return false
	}
	key, ok := table.ColumnByID(p.Sort)
	if !ok {
		s.log.Debug("no column %q to sort by, using default order", p.Sort)
		return false
	}
	return table.SortBy(key, p.Desc)
}

// Ping checks that the fact source is reachable.
func (s *ReportService) Ping(ctx context.Context) error {
	return s.warehouse.Ping(ctx)
}

// Weeks lists the selectable reporting weeks.
func (s *ReportService) Weeks(ctx context.Context) ([]string, error) {
	key := "weeks:" + s.options.WeekFrom + ":" + s.options.WeekTo
	weeks, _, err := cache.Fetch(ctx, s.weeks, key, func(ctx context.Context) ([]string, error) {
		return s.warehouse.ListWeeks(ctx, s.options.WeekFrom, s.options.WeekTo)
	})
	return weeks, err
}

// Invalidate drops the cached facts of one report run.
func (s *ReportService) Invalidate(ctx context.Context, reportID string, p report.Params) error {
	_, _, key, err := s.resolve(reportID, p)
	if err != nil {
		return err
	}
	return s.facts.Invalidate(ctx, key)
}

// ClearCache drops every cached result.
func (s *ReportService) ClearCache(ctx context.Context) error {
	if err := s.facts.Clear(ctx); err != nil {
		return err
	}
	return s.weeks.Clear(ctx)
}

// Export runs a report and renders its table as a workbook. It returns the
// document and a suggested file name.
func (s *ReportService) Export(ctx context.Context, reportID string, p report.Params) ([]byte, string, error) {
	result, err := s.Run(ctx, reportID, p)
	if err != nil {
		return nil, "", err
	}
	data, err := s.exporter.Export(result.Table, result.Report.FormatOptions())
	if err != nil {
		return nil, "", fmt.Errorf("failed to export %s: %w", reportID, err)
	}
	name := fmt.Sprintf("%s_%s_%s_%s-vs-%s.xlsx", result.Report.ID, p.Entity, p.Week, result.Pair.First, result.Pair.Second)
	return data, name, nil
}
