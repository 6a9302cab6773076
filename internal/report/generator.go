// Package report turns a template reference into a deliverable
// payload. The scheduling engine treats generation as an opaque
// collaborator; this is the daemon's built-in HTML implementation.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Payload is an opaque generated report: a subject line plus rendered
// HTML body, ready for a delivery transport.
type Payload struct {
	Subject string
	HTML    []byte
}

// GenerationError marks a failed content generation. The engine
// records it against the execution and keeps the schedule alive.
type GenerationError struct {
	TemplateID string
	Err        error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate report %q: %v", e.TemplateID, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

type Generator struct {
	templates map[string]*template.Template
	now       func() time.Time
}

// Context is what every report template renders against.
type Context struct {
	TemplateID  string
	GeneratedAt time.Time
}

// NewGenerator loads every .html file under dir, keyed by basename
// without extension.
func NewGenerator(dir string) (*Generator, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("scan template dir: %v", err)
	}
	templates := make(map[string]*template.Template)
	for _, path := range matches {
		tmpl, err := template.ParseFiles(path)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %v", path, err)
		}
		name := strings.TrimSuffix(filepath.Base(path), ".html")
		templates[name] = tmpl
	}
	return &Generator{templates: templates, now: time.Now}, nil
}

// NewGeneratorFromStrings builds a generator from in-memory template
// sources.
func NewGeneratorFromStrings(sources map[string]string) (*Generator, error) {
	templates := make(map[string]*template.Template)
	for name, src := range sources {
		tmpl, err := template.New(name).Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %v", name, err)
		}
		templates[name] = tmpl
	}
	return &Generator{templates: templates, now: time.Now}, nil
}

func (g *Generator) Generate(templateID string) (*Payload, error) {
	tmpl, ok := g.templates[templateID]
	if !ok {
		return nil, &GenerationError{TemplateID: templateID, Err: os.ErrNotExist}
	}

	now := g.now()
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, Context{TemplateID: templateID, GeneratedAt: now}); err != nil {
		return nil, &GenerationError{TemplateID: templateID, Err: err}
	}

	return &Payload{
		Subject: fmt.Sprintf("CareOps %s report (%s)", templateID, now.Format("2006-01-02")),
		HTML:    buf.Bytes(),
	}, nil
}
