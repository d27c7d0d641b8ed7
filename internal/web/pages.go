package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"

	"github.com/desertthunder/toolify/internal/models"
	"github.com/desertthunder/toolify/internal/shared"
)

//go:embed templates/* static/*
var files embed.FS

// tmplCache is a concurrency-safe map of parsed templates.
type tmplCache[K comparable, V any] struct {
	data  map[K]V
	mutex sync.RWMutex
}

func newTmplCache[K comparable, V any]() *tmplCache[K, V] {
	return &tmplCache[K, V]{data: make(map[K]V)}
}

func (c *tmplCache[K, V]) Get(key K) (V, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	val, exists := c.data[key]
	return val, exists
}

func (c *tmplCache[K, V]) Set(key K, value V) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data[key] = value
}

// Pages loads the embedded templates and renders them inside the base layout.
type Pages struct {
	cache *tmplCache[string, *template.Template]
	fsys  fs.FS
}

// NewPages parses every page once so template errors surface at startup.
func NewPages() (*Pages, error) {
	p := &Pages{cache: newTmplCache[string, *template.Template](), fsys: files}

	names, err := fs.Glob(p.fsys, "templates/pages/*.gohtml")
	if err != nil {
		return nil, err
	}
	for _, path := range names {
		if _, err := p.parse(pathToName(path)); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func pathToName(s string) string {
	return strings.TrimSuffix(strings.TrimPrefix(s, "templates/pages/"), ".gohtml")
}

func (p *Pages) parse(name string) (*template.Template, error) {
	if cached, ok := p.cache.Get(name); ok {
		return cached, nil
	}

	t, err := template.New(name).
		Funcs(funcMap()).
		ParseFS(p.fsys, "templates/layouts/base.gohtml", "templates/pages/"+name+".gohtml")
	if err != nil {
		return nil, fmt.Errorf("parse page %s: %w", name, err)
	}
	p.cache.Set(name, t)
	return t, nil
}

// Render writes page with status. Rendering happens into a buffer first so a template error
// never leaves a half-written response.
func (p *Pages) Render(w http.ResponseWriter, status int, name string, data any) error {
	t, err := p.parse(name)
	if err != nil {
		return err
	}

	buf := new(bytes.Buffer)
	if err := t.ExecuteTemplate(buf, "base", data); err != nil {
		return fmt.Errorf("render page %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	return err
}

// Static serves the embedded stylesheet and images under /static/.
func (p *Pages) Static() http.Handler {
	sub, err := fs.Sub(p.fsys, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"image":    models.FirstImage,
		"duration": shared.FormatDuration,
		"artists": func(t models.Track) string {
			return strings.Join(t.ArtistNames(), ", ")
		},
		"add": func(a, b int) int { return a + b },
	}
}
