package client

import (
	"context"
	"net/url"
	"strings"
)

// Window stands for the browser primitives outside the fragment protocol.
type Window interface {
	// Reload loads the current location as a whole document.
	Reload(ctx context.Context) error
	// Assign navigates to u as a whole document, pushing an unflagged entry.
	Assign(ctx context.Context, u *url.URL) error
	// Cookie returns the document cookie string.
	Cookie() string
}

// headlessWindow performs full loads through the controller itself.
type headlessWindow struct {
	c *Controller
}

func (w headlessWindow) Reload(ctx context.Context) error {
	return w.c.load(ctx, w.c.Location(), false)
}

func (w headlessWindow) Assign(ctx context.Context, u *url.URL) error {
	return w.c.load(ctx, u, true)
}

func (w headlessWindow) Cookie() string {
	jar := w.c.client.Jar
	if jar == nil {
		return ""
	}

	cookies := jar.Cookies(w.c.Location())
	parts := make([]string, 0, len(cookies))
	for _, cookie := range cookies {
		parts = append(parts, cookie.Name+"="+cookie.Value)
	}
	return strings.Join(parts, "; ")
}

// Indicator is told when fragment navigations start and end.
type Indicator interface {
	Start()
	Stop()
}

type nopIndicator struct{}

func (nopIndicator) Start() {}
func (nopIndicator) Stop()  {}
