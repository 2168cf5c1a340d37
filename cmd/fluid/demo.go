package main

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"

	fluid "github.com/joetifa2003/fluidgo"
)

//go:embed templates/*.html
var templatesFS embed.FS

type todo struct {
	ID    int
	Title string
	Done  bool
}

// demo is a small todo site served with fluid views.
type demo struct {
	fluid *fluid.Fluid

	mu     sync.Mutex
	todos  []todo
	nextID int
}

func newDemo(cfg ServerConfig, logger fluid.Logger) (*demo, http.Handler, error) {
	mux := http.NewServeMux()

	f, err := fluid.New(
		fluid.WithTemplatesFS(templatesFS, "templates/*.html"),
		fluid.WithLogger(logger),
		fluid.WithVersion(cfg.AssetVersion),
		fluid.WithClientScript(cfg.ClientScript),
		fluid.WithCSRF(cfg.CSRF, cfg.SecureCookies),
		fluid.WithSession(fluid.NewMemorySession(cfg.SessionCookie)),
		fluid.WithSharedData(fluid.Data{"Version": cfg.AssetVersion}),
		fluid.WithMux(mux),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create fluid instance: %w", err)
	}

	d := &demo{fluid: f, nextID: 1}

	mux.Handle("GET /{$}", d.page("home", "Home"))
	mux.Handle("GET /about", d.page("about", "About"))
	mux.Handle("/todos", fluid.View(&fluid.ActionHandler{
		Actions: map[string]fluid.ActionFunc{
			"add":    d.add,
			"toggle": d.toggle,
			"remove": d.remove,
		},
		View: d.page("todos", "Todos"),
	}))

	return d, f.Middleware(mux), nil
}

func (d *demo) page(name, title string) http.Handler {
	return fluid.ViewFunc(func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		todos := slices.Clone(d.todos)
		d.mu.Unlock()

		err := d.fluid.Render(w, r, "layout", fluid.Data{
			"Page":  name,
			"Title": title,
			"Todos": todos,
		})
		if err != nil {
			d.fluid.Logger().LogAttrs(r.Context(), slog.LevelError, "unable to render page",
				slog.String("page", name),
				slog.String("error", err.Error()),
			)
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
	})
}

func (d *demo) add(w http.ResponseWriter, r *http.Request, _ []string) error {
	title := strings.TrimSpace(r.PostForm.Get("title"))
	if title == "" {
		return errors.New("title is required")
	}

	d.mu.Lock()
	d.todos = append(d.todos, todo{ID: d.nextID, Title: title})
	d.nextID++
	d.mu.Unlock()

	return d.fluid.Flash(w, r, "notice", fmt.Sprintf("Added %q", title))
}

func (d *demo) toggle(w http.ResponseWriter, r *http.Request, params []string) error {
	return d.update(params, func(i int) {
		d.todos[i].Done = !d.todos[i].Done
	})
}

func (d *demo) remove(w http.ResponseWriter, r *http.Request, params []string) error {
	if err := d.update(params, func(i int) {
		d.todos = slices.Delete(d.todos, i, i+1)
	}); err != nil {
		return err
	}
	return d.fluid.Flash(w, r, "notice", "Removed")
}

func (d *demo) update(params []string, fn func(i int)) error {
	if len(params) != 1 {
		return errors.New("expected a todo id")
	}
	id, err := strconv.Atoi(params[0])
	if err != nil {
		return fmt.Errorf("invalid todo id %q: %w", params[0], err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	i := slices.IndexFunc(d.todos, func(t todo) bool { return t.ID == id })
	if i < 0 {
		return fmt.Errorf("no todo with id %d", id)
	}
	fn(i)
	return nil
}
