// Package api serves the report catalog and report results as JSON.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"finportal/app"
	"finportal/internal"
	"finportal/internal/errors"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// API is the JSON surface over the report service.
type API struct {
	router  *chi.Mux
	reports *app.ReportService
	log     *internal.Logger
}

// NewAPI builds the router. Paths are relative; mount it under a prefix
// with http.StripPrefix.
func NewAPI(reports *app.ReportService) *API {
	a := &API{
		router:  chi.NewRouter(),
		reports: reports,
		log:     internal.DefaultLogger.With("API"),
	}
	a.setupMiddleware()
	a.setupRoutes()
	return a
}

func (a *API) setupMiddleware() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
	a.router.Use(middleware.Timeout(3 * time.Minute))
}

func (a *API) setupRoutes() {
	a.router.Get("/reports", a.handleListReports)
	a.router.Get("/reports/{id}", a.handleRunReport)
	a.router.Get("/weeks", a.handleWeeks)
	a.router.Post("/cache/invalidate", a.handleInvalidate)
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Error("failed to encode response: %v", err)
	}
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	msg := err.Error()
	if status >= 500 {
		a.log.Error("request failed: %v", err)
		msg = http.StatusText(status)
	}
	a.writeJSON(w, status, errorResponse{Error: msg, Code: errors.GetCode(err)})
}
