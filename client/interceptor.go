package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	fluid "github.com/joetifa2003/fluidgo"
	"github.com/joetifa2003/fluidgo/fragment"
)

// navigation is one fragment request in flight.
type navigation struct {
	element *html.Node
	method  string
	target  *url.URL
	form    url.Values
	blocks  string
	version string

	disabled []*html.Node
	gen      uint64
}

// ClickSelector clicks the first element matching selector.
func (c *Controller) ClickSelector(ctx context.Context, selector string) error {
	sel, err := c.first(selector)
	if err != nil {
		return err
	}
	return c.Click(ctx, sel)
}

// SubmitSelector submits the first form matching selector.
func (c *Controller) SubmitSelector(ctx context.Context, selector string) error {
	sel, err := c.first(selector)
	if err != nil {
		return err
	}
	return c.Submit(ctx, sel)
}

func (c *Controller) first(selector string) (*goquery.Selection, error) {
	var sel *goquery.Selection
	c.View(func(doc *Document) {
		sel = doc.Find(selector).First()
	})
	if sel.Length() == 0 {
		return nil, fmt.Errorf("client: no element matches %q", selector)
	}
	return sel, nil
}

// Click follows the first element of sel. Partial-capable links are fetched
// as fragments; a submit control inside a partial-capable form submits it;
// any other link, including partial-capable links to another origin, is
// followed natively through the Window.
func (c *Controller) Click(ctx context.Context, sel *goquery.Selection) error {
	if sel.Length() == 0 {
		return ErrNotBound
	}

	nav, native, err := c.prepareClick(sel.Get(0))
	switch {
	case err != nil:
		return err
	case native != nil:
		return c.window.Assign(ctx, native)
	}

	return c.run(ctx, nav)
}

// Submit submits the first form of sel.
func (c *Controller) Submit(ctx context.Context, sel *goquery.Selection) error {
	return c.SubmitWith(ctx, sel, nil)
}

// SubmitWith submits the first form of sel as if submitter was pressed; its
// name and value are sent along. submitter may be nil.
func (c *Controller) SubmitWith(ctx context.Context, sel *goquery.Selection, submitter *goquery.Selection) error {
	if sel.Length() == 0 {
		return ErrNotBound
	}

	var button *html.Node
	if submitter != nil && submitter.Length() > 0 {
		button = submitter.Get(0)
	}

	nav, err := func() (*navigation, error) {
		c.mu.Lock()
		defer c.mu.Unlock()

		form := sel.Get(0)
		if role, ok := c.rebinder.Lookup(form); !ok || role != RoleForm {
			return nil, ErrNotBound
		}
		return c.beginForm(form, button)
	}()
	if err != nil {
		return err
	}

	return c.run(ctx, nav)
}

func (c *Controller) prepareClick(n *html.Node) (*navigation, *url.URL, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if isSubmitControl(n) {
		if form := enclosingForm(n); form != nil {
			if role, ok := c.rebinder.Lookup(form); ok && role == RoleForm {
				nav, err := c.beginForm(form, n)
				return nav, nil, err
			}
		}
	}

	if role, ok := c.rebinder.Lookup(n); ok && role == RoleLink {
		target, err := c.resolveTarget(n)
		if err != nil {
			return nil, nil, err
		}
		if !c.sameOrigin(target) {
			return nil, target, nil
		}
		nav, err := c.beginLink(n, target)
		return nav, nil, err
	}

	href, ok := attr(n, "href")
	if n.Data != "a" || !ok {
		return nil, nil, ErrNotBound
	}
	u, err := c.history.URL().Parse(href)
	if err != nil {
		return nil, nil, fmt.Errorf("client: invalid href %q: %w", href, err)
	}
	return nil, u, nil
}

func (c *Controller) beginLink(n *html.Node, target *url.URL) (*navigation, error) {
	if c.busy(n) {
		return nil, ErrBusy
	}

	nav := &navigation{
		element: n,
		method:  http.MethodGet,
		target:  target,
		version: c.version,
	}
	nav.blocks, _ = attr(n, fluid.BlocksAttr)

	c.start(nav, []*html.Node{n})
	return nav, nil
}

func (c *Controller) beginForm(form, submitter *html.Node) (*navigation, error) {
	if c.busy(form) {
		return nil, ErrBusy
	}

	target, err := c.resolveTarget(form)
	if err != nil {
		return nil, err
	}
	if !c.sameOrigin(target) {
		return nil, fmt.Errorf("%w: %s", ErrCrossOrigin, target)
	}

	values := serializeForm(form, submitter)
	method, _ := attr(form, "method")
	method = strings.ToUpper(strings.TrimSpace(method))
	if method != http.MethodPost {
		method = http.MethodGet
	}

	nav := &navigation{
		element: form,
		method:  method,
		target:  target,
		form:    values,
		version: c.version,
	}
	nav.blocks, _ = attr(form, fluid.BlocksAttr)

	if method == http.MethodGet {
		withQuery := *target
		withQuery.RawQuery = values.Encode()
		nav.target = &withQuery
		nav.form = nil
	}

	c.start(nav, formControls(form))
	return nav, nil
}

// busy is the one request per element rule. Callers hold c.mu.
func (c *Controller) busy(n *html.Node) bool {
	if _, ok := c.inflight[n]; ok {
		return true
	}
	return hasAttr(n, "disabled")
}

// resolveTarget applies the URL precedence: data-fluid-url, then href or
// action, then the current location. Callers hold c.mu.
func (c *Controller) resolveTarget(n *html.Node) (*url.URL, error) {
	location := c.history.URL()

	for _, key := range []string{fluid.URLAttr, "href", "action"} {
		raw, ok := attr(n, key)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		u, err := location.Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("client: invalid %s %q: %w", key, raw, err)
		}
		return u, nil
	}

	return location, nil
}

// start marks the element busy, disables controls and records the
// navigation in history. Callers hold c.mu.
func (c *Controller) start(nav *navigation, controls []*html.Node) {
	c.inflight[nav.element] = struct{}{}

	for _, n := range controls {
		if hasAttr(n, "disabled") {
			continue
		}
		setAttr(n, "disabled", "")
		nav.disabled = append(nav.disabled, n)
	}

	c.history.PushState(State{Fluid: true}, nav.target)
	nav.gen = c.generation.Add(1)

	c.logger.LogAttrs(context.Background(), slog.LevelDebug, "fluid navigation started",
		slog.String("method", nav.method),
		slog.String("url", nav.target.String()),
		slog.Uint64("generation", nav.gen),
	)
}

func (c *Controller) run(ctx context.Context, nav *navigation) error {
	c.indicator.Start()
	resp, err := c.fetch(ctx, nav)
	c.indicator.Stop()

	location, err := c.finish(ctx, nav, resp, err)
	if location != nil {
		return c.window.Assign(ctx, location)
	}
	return err
}

// finish re-enables the element and applies resp unless a newer navigation
// started meanwhile. A non-nil URL asks for a full load.
func (c *Controller) finish(ctx context.Context, nav *navigation, resp fragment.Response, fetchErr error) (*url.URL, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.inflight, nav.element)
	for _, n := range nav.disabled {
		removeAttr(n, "disabled")
	}

	current := nav.gen == c.generation.Load()

	var conflict *versionConflict
	if errors.As(fetchErr, &conflict) {
		if !current {
			c.logger.LogAttrs(ctx, slog.LevelDebug, "dropping superseded version conflict",
				slog.String("url", nav.target.String()),
				slog.Uint64("generation", nav.gen),
			)
			return nil, ErrSuperseded
		}
		c.history.Back()
		c.logger.LogAttrs(ctx, slog.LevelInfo, "asset version changed, loading full document",
			slog.String("url", conflict.location.String()),
		)
		return conflict.location, nil
	}

	if fetchErr != nil {
		if current {
			c.history.Back()
		}
		c.logger.LogAttrs(ctx, slog.LevelWarn, "fluid navigation failed",
			slog.String("method", nav.method),
			slog.String("url", nav.target.String()),
			slog.String("error", fetchErr.Error()),
		)
		return nil, fmt.Errorf("client: %s %s: %w", nav.method, nav.target, fetchErr)
	}

	if !current {
		c.logger.LogAttrs(ctx, slog.LevelDebug, "dropping superseded response",
			slog.String("url", nav.target.String()),
			slog.Uint64("generation", nav.gen),
		)
		return nil, ErrSuperseded
	}

	return nil, c.apply(ctx, resp)
}
