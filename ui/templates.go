package ui

import (
	"bytes"

	"finportal/internal/errors"

	"github.com/gin-gonic/gin"
)

// renderTemplate executes a template into a buffer first so a failing
// template never leaves a half-written page.
func (s *Server) renderTemplate(c *gin.Context, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.log.Error("template %s failed: %v", name, err)
		c.AbortWithStatusJSON(500, gin.H{"error": "template rendering failed"})
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

// errorPage is the data of error.html.
type errorPage struct {
	Title     string
	Status    int
	Code      string
	Message   string
	RequestID string
}

// renderError renders err with the status its error code maps to.
func (s *Server) renderError(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	message := err.Error()
	if status >= 500 {
		s.log.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		message = publicMessage(err)
	}
	s.renderTemplate(c, status, "error.html", errorPage{
		Title:     "Something went wrong",
		Status:    status,
		Code:      errors.GetCode(err),
		Message:   message,
		RequestID: c.GetString("request_id"),
	})
}

// publicMessage hides causes of server-side failures from the page.
func publicMessage(err error) string {
	if errors.HasCode(err, errors.CodeExternalService) {
		return "The data source is unavailable. Try again shortly."
	}
	return "An unexpected error occurred."
}
