package api

import (
	"encoding/json"
	"net/http"

	"finportal/domain/report"
	"finportal/internal/errors"

	"github.com/go-chi/chi/v5"
)

type reportSummary struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Section     string      `json:"section"`
	Description string      `json:"description"`
	Axis        report.Axis `json:"axis"`
}

type catalogResponse struct {
	Entities []string        `json:"entities"`
	Reports  []reportSummary `json:"reports"`
}

func (a *API) handleListReports(w http.ResponseWriter, r *http.Request) {
	catalog := a.reports.Catalog()
	resp := catalogResponse{Entities: catalog.Entities(), Reports: []reportSummary{}}
	for _, d := range catalog.List() {
		resp.Reports = append(resp.Reports, reportSummary{
			ID:          d.ID,
			Title:       d.Title,
			Section:     d.Section,
			Description: d.Description,
			Axis:        d.Axis,
		})
	}
	a.writeJSON(w, http.StatusOK, resp)
}

func paramsFromQuery(r *http.Request) report.Params {
	q := r.URL.Query()
	return report.Params{
		Week:   q.Get("week"),
		Entity: q.Get("entity"),
		First:  q.Get("first"),
		Second: q.Get("second"),
		Sort:   q.Get("sort"),
		Desc:   q.Get("desc") == "true" || q.Get("desc") == "1",
	}
}

// handleRunReport runs a report. Unset selections fall back to the portal
// defaults, with the latest known week.
func (a *API) handleRunReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := paramsFromQuery(r)
	var weeks []string
	if p.Week == "" {
		var err error
		if weeks, err = a.reports.Weeks(ctx); err != nil {
			a.writeError(w, err)
			return
		}
	}
	result, err := a.reports.Run(ctx, chi.URLParam(r, "id"), a.reports.DefaultParams(p, weeks))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, result)
}

func (a *API) handleWeeks(w http.ResponseWriter, r *http.Request) {
	weeks, err := a.reports.Weeks(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	if weeks == nil {
		weeks = []string{}
	}
	a.writeJSON(w, http.StatusOK, map[string][]string{"weeks": weeks})
}

type invalidateRequest struct {
	Report string `json:"report"`
	report.Params
}

// handleInvalidate drops one report run from the cache, or the whole
// cache when no report is named.
func (a *API) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.writeError(w, errors.InvalidInput("invalid request body: "+err.Error()))
			return
		}
	}
	ctx := r.Context()
	if req.Report == "" {
		if err := a.reports.ClearCache(ctx); err != nil {
			a.writeError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
		return
	}
	p := a.reports.DefaultParams(req.Params, nil)
	if err := a.reports.Invalidate(ctx, req.Report, p); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated", "report": req.Report})
}
