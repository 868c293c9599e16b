package web

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"library/internal/models"
	assets "library/web"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// page is the data every HTML view receives
type page struct {
	Title string
	Now   time.Time
	Data  interface{}
}

var templateFuncs = template.FuncMap{
	"date": models.FormatDay,
	"datetime": func(t time.Time) string {
		return t.Format("2006-01-02 15:04")
	},
	"opt": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"optInt": func(i *int) string {
		if i == nil {
			return ""
		}
		return strconv.Itoa(*i)
	},
}

// renderer executes the embedded page templates, each inside the shared layout
type renderer struct {
	pages map[string]*template.Template
}

func newRenderer() (*renderer, error) {
	files, err := fs.Glob(assets.Content, "templates/pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	r := &renderer{pages: make(map[string]*template.Template, len(files))}
	for _, file := range files {
		name := strings.TrimSuffix(path.Base(file), ".html")
		t, err := template.New("layout.html").Funcs(templateFuncs).
			ParseFS(assets.Content, "templates/layout.html", file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// html renders a page into a buffer before writing the response
func (r *renderer) html(w http.ResponseWriter, status int, name string, data page) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// writeJSON encodes v with json-iterator
func writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(body)
	return err
}

// wantsJSON reports whether the client asked for a JSON response
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
