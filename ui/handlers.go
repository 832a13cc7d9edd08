package ui

import (
	"context"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"finportal/app"
	"finportal/domain/report"
	"finportal/internal/errors"
	"finportal/internal/format"

	"github.com/gin-gonic/gin"
)

const exportMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type section struct {
	Name    string
	Reports []*report.Definition
}

type indexPage struct {
	Title    string
	Sections []section
}

type kpiCard struct {
	Label    string
	First    string
	Second   string
	Variance string
}

type moverRow struct {
	Key      string
	First    string
	Second   string
	Variance string
}

type reportPage struct {
	Title     string
	Report    *report.Definition
	Params    report.Params
	Result    *app.ReportResult
	View      *format.View
	KPIs      []kpiCard
	Movers    []moverRow
	Weeks     []string
	Entities  []string
	Sections  []section
	Query     template.URL
	RequestID string
}

// sections groups the catalog by section, keeping catalog order.
func (s *Server) sections() []section {
	var out []section
	idx := map[string]int{}
	for _, d := range s.reports.Catalog().List() {
		i, ok := idx[d.Section]
		if !ok {
			i = len(out)
			idx[d.Section] = i
			out = append(out, section{Name: d.Section})
		}
		out[i].Reports = append(out[i].Reports, d)
	}
	return out
}

func (s *Server) handleIndex(c *gin.Context) {
	s.renderTemplate(c, http.StatusOK, "index.html", indexPage{
		Title:    "Finance Portal",
		Sections: s.sections(),
	})
}

// params binds the selections of a request and fills unset ones.
func (s *Server) params(c *gin.Context, weeks []string) (report.Params, error) {
	var p report.Params
	if err := c.ShouldBind(&p); err != nil {
		return p, errors.InvalidInput(err.Error())
	}
	return s.reports.DefaultParams(p, weeks), nil
}

func (s *Server) weeks(ctx context.Context) []string {
	weeks, err := s.reports.Weeks(ctx)
	if err != nil {
		s.log.Warn("week list unavailable: %v", err)
	}
	return weeks
}

func (s *Server) handleReport(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := s.params(c, s.weeks(ctx))
	if err != nil {
		s.renderError(c, err)
		return
	}
	result, err := s.reports.Run(ctx, c.Param("id"), p)
	if err != nil {
		s.renderError(c, err)
		return
	}

	def := result.Report
	page := reportPage{
		Title:     def.Title,
		Report:    def,
		Params:    p,
		Result:    result,
		View:      format.Build(result.Table, def.FormatOptions()),
		Weeks:     result.Weeks,
		Entities:  s.reports.Catalog().Entities(),
		Sections:  s.sections(),
		Query:     template.URL(query(p)),
		RequestID: c.GetString("request_id"),
	}
	for _, card := range result.KPIs {
		first, second, variance := card.Text()
		page.KPIs = append(page.KPIs, kpiCard{Label: card.Label, First: first, Second: second, Variance: variance})
	}
	d := def.Formats[result.Movers.Measure]
	for _, m := range result.Movers.Top {
		page.Movers = append(page.Movers, moverRow{
			Key:      strings.Join(m.Key, " / "),
			First:    format.Value(m.First, d),
			Second:   format.Value(m.Second, d),
			Variance: format.Value(m.Variance, format.Percent),
		})
	}
	s.renderTemplate(c, http.StatusOK, "report.html", page)
}

func (s *Server) handleExport(c *gin.Context) {
	p, err := s.params(c, nil)
	if err != nil {
		s.renderError(c, err)
		return
	}
	data, name, err := s.reports.Export(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, exportMIME, data)
}

// handleRefresh drops cached data and redirects back. With a report id it
// drops that run only; without one it clears the whole cache.
func (s *Server) handleRefresh(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.PostForm("report")
	if id == "" {
		if err := s.reports.ClearCache(ctx); err != nil {
			s.renderError(c, err)
			return
		}
		s.log.Info("cache cleared")
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	p, err := s.params(c, nil)
	if err != nil {
		s.renderError(c, err)
		return
	}
	if err := s.reports.Invalidate(ctx, id, p); err != nil {
		s.renderError(c, err)
		return
	}
	s.log.Info("cache invalidated for %s %s/%s", id, p.Entity, p.Week)
	c.Redirect(http.StatusSeeOther, "/reports/"+url.PathEscape(id)+"?"+query(p))
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	if err := s.reports.Ping(ctx); err != nil {
		s.log.Warn("health check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SortURL is the query string that sorts the page by a column. The first
// click sorts descending, the next one flips the direction.
func (p reportPage) SortURL(column string) template.URL {
	next := p.Params
	next.Desc = true
	if p.Params.Sort == column {
		next.Desc = !p.Params.Desc
	}
	next.Sort = column
	return template.URL(query(next))
}

// SortMark is the arrow shown on the sorted column.
func (p reportPage) SortMark(column string) string {
	switch {
	case p.Params.Sort != column:
		return ""
	case p.Params.Desc:
		return " ▼"
	default:
		return " ▲"
	}
}

func query(p report.Params) string {
	v := url.Values{}
	for k, val := range p.Fields() {
		if val != "" {
			v.Set(k, val)
		}
	}
	return v.Encode()
}
