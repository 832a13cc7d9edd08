package ui

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"finportal/app"
	"finportal/internal"
	"finportal/internal/format"
	"finportal/internal/metrics"
	"finportal/ui/middleware"

	"github.com/gin-gonic/gin"
	"github.com/gomarkdown/markdown"
)

//go:embed templates/*.html static/*
var embeddedFiles embed.FS

// Server is the finance portal web server.
type Server struct {
	router    *gin.Engine
	reports   *app.ReportService
	api       http.Handler
	templates *template.Template
	metrics   bool
	log       *internal.Logger
}

// Options configures optional surfaces of the server.
type Options struct {
	// API is mounted under /api when set.
	API http.Handler
	// Metrics exposes /metrics and counts requests.
	Metrics bool
}

// NewServer creates the gin engine, parses the embedded templates and
// registers the routes.
func NewServer(reports *app.ReportService, opts Options) (*Server, error) {
	s := &Server{
		router:  gin.New(),
		reports: reports,
		api:     opts.API,
		metrics: opts.Metrics,
		log:     internal.DefaultLogger.With("Server"),
	}

	templates, err := template.New("").Funcs(s.funcMap()).ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	s.templates = templates

	if err := s.setupMiddleware(); err != nil {
		return nil, err
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) funcMap() template.FuncMap {
	return template.FuncMap{
		"add":   func(a, b int) int { return a + b },
		"upper": strings.ToUpper,
		"join":  strings.Join,
		"markdown": func(md string) template.HTML {
			return template.HTML(markdown.ToHTML([]byte(md), nil, nil))
		},
		"money": format.Compact,
		"cellClass": func(c format.ViewCell) string {
			classes := []string{"num", string(c.Kind)}
			if c.Null {
				classes = append(classes, "null")
			}
			if c.Negative {
				classes = append(classes, "neg")
			}
			return strings.Join(classes, " ")
		},
		"varianceClass": func(text string) string {
			switch {
			case strings.HasPrefix(text, "+"):
				return "up"
			case strings.HasPrefix(text, "-"):
				return "down"
			default:
				return ""
			}
		},
	}
}

func (s *Server) setupMiddleware() error {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.AccessLog(s.log))
	if s.metrics {
		s.router.Use(middleware.CountRequests())
	}

	staticFS, err := fs.Sub(embeddedFiles, "static")
	if err != nil {
		return fmt.Errorf("failed to create static filesystem: %w", err)
	}
	s.router.StaticFS("/static", http.FS(staticFS))
	return nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleIndex)
	s.router.GET("/reports/:id", s.handleReport)
	s.router.GET("/reports/:id/export.xlsx", s.handleExport)
	s.router.POST("/cache/refresh", s.handleRefresh)
	s.router.GET("/healthz", s.handleHealth)

	if s.metrics {
		s.router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	if s.api != nil {
		s.router.Any("/api/*path", gin.WrapH(http.StripPrefix("/api", s.api)))
	}
}

// Handler returns the server's http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the server on addr.
func (s *Server) Start(addr string) error {
	s.log.Info("starting finance portal on http://%s", addr)
	return s.router.Run(addr)
}
