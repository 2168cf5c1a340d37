package fluid

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/peterbourgon/mergemap"

	"github.com/joetifa2003/fluidgo/fragment"
	"github.com/joetifa2003/fluidgo/internal/pool"
)

type Fluid struct {
	logger  Logger
	version string

	templates    *template.Template
	clientScript string
	mux          *http.ServeMux

	shared  Data
	session Session

	csrfEnabled bool
	csrfConfig  csrfConfig
}

type fluidConfig struct {
	templates      *template.Template
	templatesFS    fs.FS
	templatesGlobs []string
	funcs          template.FuncMap

	clientScript string
	mux          *http.ServeMux

	logger  Logger
	version string

	shared  Data
	session Session

	csrfEnabled bool
	csrfConfig  csrfConfig
}

type FluidOption func(config *fluidConfig) error

// Data is the template data passed to Render.
type Data map[string]any

// WithTemplates uses an already parsed template set. Parse it with Funcs
// registered so the fragment func resolves.
func WithTemplates(t *template.Template) FluidOption {
	return func(config *fluidConfig) error {
		config.templates = t
		return nil
	}
}

// WithTemplatesFS parses the templates matching patterns from fsys.
func WithTemplatesFS(fsys fs.FS, patterns ...string) FluidOption {
	return func(config *fluidConfig) error {
		config.templatesFS = fsys
		config.templatesGlobs = patterns
		return nil
	}
}

// WithFuncs adds template functions available to templates parsed by New.
func WithFuncs(funcs template.FuncMap) FluidOption {
	return func(config *fluidConfig) error {
		if config.funcs == nil {
			config.funcs = template.FuncMap{}
		}
		for name, fn := range funcs {
			config.funcs[name] = fn
		}
		return nil
	}
}

func WithLogger(logger Logger) FluidOption {
	return func(config *fluidConfig) error {
		config.logger = logger
		return nil
	}
}

// WithVersion sets a static version string for asset versioning.
func WithVersion(version string) FluidOption {
	return func(config *fluidConfig) error {
		config.version = version
		return nil
	}
}

// WithVersionFromFile computes version from file checksum (MD5 hash).
func WithVersionFromFile(path string) FluidOption {
	return func(config *fluidConfig) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read version file: %w", err)
		}
		hash := md5.Sum(data)
		config.version = hex.EncodeToString(hash[:])
		return nil
	}
}

// WithVersionFromFileFS computes version from file checksum using fs.FS.
func WithVersionFromFileFS(fsys fs.FS, path string) FluidOption {
	return func(config *fluidConfig) error {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("failed to read version file: %w", err)
		}
		hash := md5.Sum(data)
		config.version = hex.EncodeToString(hash[:])
		return nil
	}
}

// WithSession sets a custom session implementation for flash data.
// If not set, a default in-memory session is used.
func WithSession(session Session) FluidOption {
	return func(config *fluidConfig) error {
		config.session = session
		return nil
	}
}

// WithCSRF enables CSRF protection.
// enabled: whether to enable CSRF protection
// cookieSecure: set to true for HTTPS-only cookies (recommended for production)
func WithCSRF(enabled bool, cookieSecure bool) FluidOption {
	return func(config *fluidConfig) error {
		config.csrfEnabled = enabled
		if enabled {
			config.csrfConfig = csrfConfig{
				cookieSecure: cookieSecure,
			}
		}
		return nil
	}
}

// WithSharedData sets data merged into every Render call.
func WithSharedData(data Data) FluidOption {
	return func(config *fluidConfig) error {
		config.shared = data
		return nil
	}
}

// WithClientScript injects a script tag with src into every full document
// that doesn't already load it.
func WithClientScript(src string) FluidOption {
	return func(config *fluidConfig) error {
		config.clientScript = src
		return nil
	}
}

// WithMux lets full documents mark links to handlers wrapped by Handler.
func WithMux(mux *http.ServeMux) FluidOption {
	return func(config *fluidConfig) error {
		config.mux = mux
		return nil
	}
}

type Logger interface {
	Log(ctx context.Context, level slog.Level, msg string, args ...any)
	LogAttrs(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr)
}

var errNoTemplates = errors.New("fluid: no templates configured")

// New creates a new Fluid instance.
func New(options ...FluidOption) (*Fluid, error) {
	var err error

	config := &fluidConfig{}

	for _, option := range options {
		err = option(config)
		if err != nil {
			return nil, err
		}
	}

	f := Fluid{
		logger:       config.logger,
		version:      config.version,
		templates:    config.templates,
		clientScript: config.clientScript,
		mux:          config.mux,
		shared:       config.shared,
		session:      config.session,
		csrfEnabled:  config.csrfEnabled,
		csrfConfig:   config.csrfConfig,
	}

	if f.session == nil {
		f.session = NewMemorySession("sid")
	}

	if f.templates != nil {
		f.templates = f.templates.Funcs(f.templateFuncs())
	}

	if config.templatesFS != nil {
		tmpl := template.New("").Funcs(f.templateFuncs()).Funcs(config.funcs)
		f.templates, err = tmpl.ParseFS(config.templatesFS, config.templatesGlobs...)
		if err != nil {
			return nil, err
		}
	}

	if f.logger == nil {
		f.logger = slog.New(slog.DiscardHandler)
	}

	return &f, nil
}

func (f *Fluid) Logger() Logger {
	return f.logger
}

// Funcs returns the functions fluid templates rely on, for template sets
// parsed outside of New. New rebinds them to the instance.
//
//	{{ fragment "sidebar" . }}
//
// executes the template named "sidebar" and wraps it in a placeholder of the
// same name.
//
//	{{ fragmentAs "content" "about_content" . }}
//
// executes "about_content" into the placeholder "content", so pages sharing a
// layout can swap the same placeholder.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"fragment": func(name string, data any) (template.HTML, error) {
			return "", errUnboundFragment
		},
		"fragmentAs": func(id, name string, data any) (template.HTML, error) {
			return "", errUnboundFragment
		},
	}
}

var errUnboundFragment = errors.New("fluid: fragment called on templates not owned by a Fluid instance")

func (f *Fluid) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"fragment": func(name string, data any) (template.HTML, error) {
			return f.executeFragment(name, name, data)
		},
		"fragmentAs": f.executeFragment,
	}
}

func (f *Fluid) executeFragment(id, name string, data any) (template.HTML, error) {
	buf := bufferPool.Get()
	defer bufferPool.Put(buf)

	if err := f.templates.ExecuteTemplate(buf, name, data); err != nil {
		return "", err
	}
	return template.HTML(WrapFragment(id, buf.String())), nil
}

const maxPooledBuffer = 1 << 20

var bufferPool = pool.NewPool(func() *bytes.Buffer {
	return new(bytes.Buffer)
},
	pool.WithPoolBeforeGet[*bytes.Buffer](func(b *bytes.Buffer) {
		b.Reset()
	}),
	pool.WithPoolDiscard[*bytes.Buffer](func(b *bytes.Buffer) bool {
		return b.Cap() > maxPooledBuffer
	}),
)

type flashKey struct{}

func (f *Fluid) prepareData(ctx context.Context, data Data) map[string]any {
	merged := map[string]any{}
	if f.shared != nil {
		mergemap.Merge(merged, deepCopy(f.shared))
	}

	if flashed, ok := ctx.Value(flashKey{}).(map[string]any); ok && len(flashed) > 0 {
		mergemap.Merge(merged, map[string]any{"Flash": flashed})
	}

	if data != nil {
		mergemap.Merge(merged, map[string]any(data))
	}

	return merged
}

// deepCopy clones nested maps so merging never mutates shared data.
func deepCopy(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		switch v := v.(type) {
		case map[string]any:
			dst[k] = deepCopy(v)
		case Data:
			dst[k] = deepCopy(v)
		default:
			dst[k] = v
		}
	}
	return dst
}

// Render executes the template name and annotates the result. Fluid requests
// receive the page's fragments, everything else receives the whole document.
func (f *Fluid) Render(w http.ResponseWriter, r *http.Request, name string, data Data) error {
	if f.templates == nil {
		return errNoTemplates
	}

	buf := bufferPool.Get()
	defer bufferPool.Put(buf)

	if err := f.templates.ExecuteTemplate(buf, name, f.prepareData(r.Context(), data)); err != nil {
		return fmt.Errorf("failed to execute template %q: %w", name, err)
	}

	page, err := f.annotate(r, buf)
	if err != nil {
		return err
	}

	headers := parseFluidHeaders(r)
	if headers.IsFluid {
		return f.renderFragments(w, r, headers, page)
	}

	return f.renderDocument(w, r, page)
}

func (f *Fluid) renderFragments(w http.ResponseWriter, r *http.Request, headers *fluidHeaders, page string) error {
	set, err := ExtractFragments(strings.NewReader(page))
	if err != nil {
		return err
	}

	if len(set) == 0 {
		f.logger.LogAttrs(r.Context(),
			slog.LevelDebug, "fluid request on a page without fragments, rendering document",
			slog.String("url", r.URL.Path),
		)
		return f.renderDocument(w, r, page)
	}

	if headers.IsPartial {
		set = set.Only(headers.Blocks)
	}

	f.logger.LogAttrs(r.Context(),
		slog.LevelDebug, "fluid request detected, rendering fragments",
		slog.String("url", r.URL.Path),
		slog.Bool("partial", headers.IsPartial),
		slog.Any("fragments", set.Keys()),
	)

	return fragment.Write(w, set)
}

func (f *Fluid) renderDocument(w http.ResponseWriter, r *http.Request, page string) error {
	f.logger.LogAttrs(
		r.Context(), slog.LevelDebug, "rendering full page",
		slog.String("url", r.URL.Path),
	)

	return fragment.Write(w, fragment.FullDocument{HTML: page})
}

// Redirect performs a server-side redirect.
// It automatically uses HTTP 303 (See Other) for PUT, PATCH, and DELETE requests
// to prevent double form submissions, and 302 (Found) for other methods.
func (f *Fluid) Redirect(w http.ResponseWriter, r *http.Request, url string) {
	status := http.StatusFound
	if r.Method == http.MethodPut || r.Method == http.MethodPatch || r.Method == http.MethodDelete {
		status = http.StatusSeeOther
	}
	http.Redirect(w, r, url, status)
}

// RedirectBack redirects the user back to the previous page using the Referer header.
// Falls back to "/" if Referer is not available.
func (f *Fluid) RedirectBack(w http.ResponseWriter, r *http.Request) {
	url := r.Header.Get("Referer")
	if url == "" {
		url = "/"
	}

	f.Redirect(w, r, url)
}

// Flash stores value for the next request, where Render exposes it as .Flash.key.
func (f *Fluid) Flash(w http.ResponseWriter, r *http.Request, key string, value any) error {
	pending, err := f.session.Get(w, r, flashSessionKey)
	if err != nil {
		return err
	}

	flashed, _ := pending.(map[string]any)
	if flashed == nil {
		flashed = map[string]any{}
	}
	flashed[key] = value

	return f.session.Flash(w, r, flashSessionKey, flashed)
}
