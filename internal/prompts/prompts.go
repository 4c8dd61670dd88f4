// Package prompts renders the named text templates sent to the model.
package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"text/template"

	"github.com/Epistemic-Technology/rental-check/internal/apperr"
)

// Template identifiers.
const (
	SystemPrompt = "system_prompt"
	UserPrompt   = "user_prompt"

	// ContractVar is the user prompt variable holding the document text.
	ContractVar = "contract"
)

const extension = ".tmpl"

//go:embed templates/*.tmpl
var embedded embed.FS

// Renderer loads templates by identifier from one location.
type Renderer struct {
	fsys     fs.FS
	location string
}

// NewRenderer reads templates from dir, or from the built-in set when dir is
// empty.
func NewRenderer(dir string) *Renderer {
	if dir == "" {
		sub, err := fs.Sub(embedded, "templates")
		if err != nil {
			panic(err)
		}
		return &Renderer{fsys: sub, location: "built-in templates"}
	}
	return &Renderer{fsys: os.DirFS(dir), location: dir}
}

// Location describes where templates are looked up.
func (r *Renderer) Location() string {
	return r.location
}

// Render executes template id with vars. Variables referenced by the
// template but absent from vars are an error.
func (r *Renderer) Render(id string, vars map[string]any) (string, error) {
	raw, err := fs.ReadFile(r.fsys, id+extension)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			return "", apperr.NotFound(id, fmt.Sprintf("template %s%s not found in %s", id, extension, r.location))
		}
		return "", fmt.Errorf("failed to read template %s: %w", id, err)
	}

	tmpl, err := template.New(id).Option("missingkey=error").Parse(string(raw))
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", id, err)
	}

	if vars == nil {
		vars = map[string]any{}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", id, err)
	}
	return buf.String(), nil
}

// List returns the identifiers of the available templates.
func (r *Renderer) List() ([]string, error) {
	entries, err := fs.ReadDir(r.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to list templates in %s: %w", r.location, err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), extension) {
			ids = append(ids, strings.TrimSuffix(e.Name(), extension))
		}
	}
	sort.Strings(ids)
	return ids, nil
}
