// Package web renders the chat page and serves its static assets, both
// embedded in the binary.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"

	"chatpdf/internal/models"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// PageView is everything the chat page shows.
type PageView struct {
	Title       string
	State       string
	Ready       bool
	Input       string
	Messages    []models.Message
	MaxUploadMB int64
}

type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Page renders the full chat page.
func (r *Renderer) Page(w io.Writer, view PageView) error {
	if view.Title == "" {
		view.Title = "ChatPDF"
	}
	return r.tmpl.ExecuteTemplate(w, "index.html", view)
}

// Transcript renders the messages in order, oldest first. Each entry is
// keyed by its position.
func (r *Renderer) Transcript(w io.Writer, history []models.Message) error {
	return r.tmpl.ExecuteTemplate(w, "transcript.html", history)
}

// StaticHandler serves the embedded assets under the prefix it is mounted on.
func StaticHandler(prefix string) http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}
	return http.StripPrefix(prefix, http.FileServer(http.FS(sub)))
}
