package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	fluid "github.com/joetifa2003/fluidgo"
	"github.com/joetifa2003/fluidgo/fragment"
)

var (
	// ErrBusy is returned for an element whose previous navigation is still running.
	ErrBusy = errors.New("client: element is busy")
	// ErrSuperseded is returned when a newer navigation started before the response arrived.
	ErrSuperseded = errors.New("client: navigation superseded")
	// ErrNotBound is returned for elements that neither the controller nor native navigation can service.
	ErrNotBound = errors.New("client: element is not partial-capable")
	// ErrHistoryBoundary is returned by Back and Forward at either end of the history.
	ErrHistoryBoundary = errors.New("client: no history entry in that direction")
	// ErrCrossOrigin is returned for fluid forms targeting another origin.
	ErrCrossOrigin = errors.New("client: fluid navigation to another origin")
)

// StatusError is a non successful HTTP response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client: %s answered %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// versionConflict is the server asking for a full load of location.
type versionConflict struct {
	location *url.URL
}

func (e *versionConflict) Error() string {
	return "client: asset version changed, full load of " + e.location.String() + " required"
}

// Controller services fluid navigations for one document.
type Controller struct {
	logger    fluid.Logger
	client    *http.Client
	history   History
	window    Window
	applier   *Applier
	indicator Indicator

	mu        sync.Mutex
	doc       *Document
	rebinder  *Rebinder
	version   string
	inflight  map[*html.Node]struct{}
	onReplace []func(*Document)

	generation atomic.Uint64
	// origin is the URL the current document was loaded from. History
	// entries never change it, only full loads do.
	origin atomic.Pointer[url.URL]
}

type controllerConfig struct {
	client     *http.Client
	history    History
	window     Window
	doc        *Document
	logger     fluid.Logger
	sanitizer  *bluemonday.Policy
	indicator  Indicator
	cookieName string
	headerName string
}

type Option func(config *controllerConfig) error

// WithHTTPClient sets the client requests go through. The controller works
// on a copy whose transport is wrapped by CSRFTransport.
func WithHTTPClient(client *http.Client) Option {
	return func(config *controllerConfig) error {
		config.client = client
		return nil
	}
}

func WithHistory(history History) Option {
	return func(config *controllerConfig) error {
		config.history = history
		return nil
	}
}

func WithWindow(window Window) Option {
	return func(config *controllerConfig) error {
		config.window = window
		return nil
	}
}

// WithDocument starts from an already loaded document instead of calling Open.
func WithDocument(doc *Document) Option {
	return func(config *controllerConfig) error {
		config.doc = doc
		return nil
	}
}

func WithLogger(logger fluid.Logger) Option {
	return func(config *controllerConfig) error {
		config.logger = logger
		return nil
	}
}

// WithSanitizer runs policy over every fragment before it is inserted.
// FragmentPolicy is a reasonable start.
func WithSanitizer(policy *bluemonday.Policy) Option {
	return func(config *controllerConfig) error {
		config.sanitizer = policy
		return nil
	}
}

func WithIndicator(indicator Indicator) Option {
	return func(config *controllerConfig) error {
		config.indicator = indicator
		return nil
	}
}

// WithCookieName sets the cookie read for the CSRF token.
// Default: "csrftoken"
func WithCookieName(name string) Option {
	return func(config *controllerConfig) error {
		config.cookieName = name
		return nil
	}
}

// WithHeaderName sets the header carrying the CSRF token.
// Default: "X-CSRFToken"
func WithHeaderName(name string) Option {
	return func(config *controllerConfig) error {
		config.headerName = name
		return nil
	}
}

// New creates a controller whose document lives at start.
func New(start string, options ...Option) (*Controller, error) {
	location, err := url.Parse(start)
	if err != nil {
		return nil, fmt.Errorf("invalid start url: %w", err)
	}
	if location.Scheme != "http" && location.Scheme != "https" {
		return nil, fmt.Errorf("invalid start url %q: absolute http(s) url required", start)
	}

	config := &controllerConfig{
		cookieName: fluid.CSRFCookieName,
		headerName: fluid.XCSRFToken,
	}
	for _, option := range options {
		if err := option(config); err != nil {
			return nil, err
		}
	}

	c := &Controller{
		logger:    config.logger,
		history:   config.history,
		window:    config.window,
		applier:   NewApplier(config.sanitizer),
		indicator: config.indicator,
		doc:       config.doc,
		rebinder:  NewRebinder("fluid"),
		inflight:  map[*html.Node]struct{}{},
	}
	c.setOrigin(location)

	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.history == nil {
		c.history = NewMemoryHistory(location)
	}
	if c.window == nil {
		c.window = headlessWindow{c: c}
	}
	if c.indicator == nil {
		c.indicator = nopIndicator{}
	}
	if c.doc == nil {
		if c.doc, err = ParseDocument(""); err != nil {
			return nil, err
		}
	}

	var client http.Client
	if config.client != nil {
		client = *config.client
	}
	if client.Jar == nil {
		if client.Jar, err = cookiejar.New(nil); err != nil {
			return nil, err
		}
	}
	client.Transport = &CSRFTransport{
		Base:       client.Transport,
		Origin:     c.Origin,
		Cookie:     c.window.Cookie,
		CookieName: config.cookieName,
		HeaderName: config.headerName,
	}
	c.client = &client

	c.onReplace = append(c.onReplace, c.rebind)

	if config.doc != nil {
		c.Init()
	}

	return c, nil
}

// Open loads the current location as a whole document.
func (c *Controller) Open(ctx context.Context) error {
	return c.load(ctx, c.Location(), false)
}

// Init runs the page load scan over the current document.
func (c *Controller) Init() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.replaced()
}

// OnReplace registers fn to run, with the controller locked, whenever
// the document was rewritten or a placeholder replaced.
func (c *Controller) OnReplace(fn func(*Document)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onReplace = append(c.onReplace, fn)
}

// View runs fn with exclusive access to the document.
func (c *Controller) View(fn func(doc *Document)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fn(c.doc)
}

// HTML renders the current document.
func (c *Controller) HTML() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.doc.HTML()
}

// Origin is the URL the current document was loaded from.
func (c *Controller) Origin() *url.URL {
	u := *c.origin.Load()
	return &u
}

func (c *Controller) setOrigin(u *url.URL) {
	origin := *u
	c.origin.Store(&origin)
}

// sameOrigin reports whether u shares the document's scheme and host.
func (c *Controller) sameOrigin(u *url.URL) bool {
	return SameOrigin(c.origin.Load(), u.String())
}

// Location is the URL of the current history entry.
func (c *Controller) Location() *url.URL {
	return c.history.URL()
}

func (c *Controller) History() History {
	return c.history
}

// Bound reports whether the first element of sel is partial-capable.
func (c *Controller) Bound(sel *goquery.Selection) bool {
	if sel.Length() == 0 {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.rebinder.Lookup(sel.Get(0))
	return ok
}

// Version is the asset version announced by the last full document.
func (c *Controller) Version() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.version
}

// replaced signals a DOM replacement. Callers hold c.mu.
func (c *Controller) replaced() {
	for _, fn := range c.onReplace {
		fn(c.doc)
	}
}

func (c *Controller) rebind(doc *Document) {
	if v := doc.Meta(fluid.VersionMeta); v != "" {
		c.version = v
	}
	n := c.rebinder.Rebind(doc)
	c.logger.LogAttrs(context.Background(), slog.LevelDebug, "rebound partial-capable elements",
		slog.String("namespace", c.rebinder.Namespace()),
		slog.Int("count", n),
	)
}

// apply splices resp into the document. Callers hold c.mu.
func (c *Controller) apply(ctx context.Context, resp fragment.Response) error {
	result, err := c.applier.Apply(c.doc, resp)
	if err != nil {
		return err
	}

	c.logger.LogAttrs(ctx, slog.LevelDebug, "applied fluid response",
		slog.Bool("full", result.Full),
		slog.Int("replaced", result.Replaced),
		slog.Any("dropped", result.Dropped),
	)

	if result.Changed() {
		c.replaced()
	}
	return nil
}

// load fetches u as a whole document, like a native navigation.
func (c *Controller) load(ctx context.Context, u *url.URL, push bool) error {
	c.generation.Add(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/html")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return &StatusError{Code: resp.StatusCode, URL: u.String()}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", u, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.doc.Write(string(body)); err != nil {
		return err
	}
	c.setOrigin(resp.Request.URL)
	if push {
		c.history.PushState(State{}, resp.Request.URL)
	}

	c.logger.LogAttrs(ctx, slog.LevelInfo, "loaded document",
		slog.String("url", resp.Request.URL.String()),
	)

	c.replaced()
	return nil
}

// fetch issues a fluid request and decodes the answer.
func (c *Controller) fetch(ctx context.Context, nav *navigation) (fragment.Response, error) {
	target := nav.target.String()

	var body io.Reader
	if nav.method != http.MethodGet && nav.form != nil {
		body = strings.NewReader(nav.form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, nav.method, target, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set(fluid.XFluid, "true")
	req.Header.Set(fluid.XRequestedWith, "XMLHttpRequest")
	req.Header.Set("Accept", "application/json, text/html")
	if nav.version != "" {
		req.Header.Set(fluid.XFluidVersion, nav.version)
	}
	if nav.blocks != "" {
		req.Header.Set(fluid.XFluidBlocks, nav.blocks)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusConflict {
		resp.Body.Close()
		if location := resp.Header.Get(fluid.XFluidLocation); location != "" {
			u, err := nav.target.Parse(location)
			if err != nil {
				return nil, fmt.Errorf("invalid %s header: %w", fluid.XFluidLocation, err)
			}
			return nil, &versionConflict{location: u}
		}
		return nil, &StatusError{Code: resp.StatusCode, URL: target}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, URL: target}
	}

	return fragment.Read(resp)
}
