package fluid

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Values written to MarkerAttr by the annotator.
const (
	// MarkerSame marks links and forms targeting the current path.
	MarkerSame = "same"
	// MarkerDerived marks links and forms targeting another fluid view.
	MarkerDerived = "derived"
)

var (
	navigableSelector = cascadia.MustCompile("a[href], form")
	scriptSelector    = cascadia.MustCompile("script[src]")
	versionSelector   = cascadia.MustCompile(`meta[name="` + VersionMeta + `"]`)
)

// annotate prepares a full document for the fluid client: it makes sure the
// client script and version meta are present and flags every link or form
// the client may service with fragments.
func (f *Fluid) annotate(r *http.Request, page io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(page)
	if err != nil {
		return "", fmt.Errorf("failed to parse rendered page: %w", err)
	}

	head := doc.Find("head").First()

	if f.clientScript != "" && !scriptPresent(doc, f.clientScript) {
		head.AppendNodes(&html.Node{
			Type:     html.ElementNode,
			Data:     "script",
			DataAtom: atom.Script,
			Attr:     []html.Attribute{{Key: "src", Val: f.clientScript}},
		})
	}

	if f.version != "" && doc.FindMatcher(versionSelector).Length() == 0 {
		head.AppendNodes(&html.Node{
			Type:     html.ElementNode,
			Data:     "meta",
			DataAtom: atom.Meta,
			Attr: []html.Attribute{
				{Key: "name", Val: VersionMeta},
				{Key: "content", Val: f.version},
			},
		})
	}

	base := requestURL(r)
	doc.FindMatcher(navigableSelector).Each(func(_ int, s *goquery.Selection) {
		if _, marked := s.Attr(MarkerAttr); marked {
			return
		}

		target := s.AttrOr("action", "")
		if target == "" {
			target = s.AttrOr("href", "")
		}
		if strings.HasPrefix(target, "#") {
			return
		}

		ref, err := url.Parse(target)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		if resolved.Host != base.Host || (resolved.Scheme != "http" && resolved.Scheme != "https") {
			return
		}

		switch {
		case resolved.Path == base.Path:
			s.SetAttr(MarkerAttr, MarkerSame)
		case f.resolvesToView(r, resolved):
			s.SetAttr(MarkerAttr, MarkerDerived)
		}
	})

	return doc.Html()
}

func scriptPresent(doc *goquery.Document, src string) bool {
	found := false
	doc.FindMatcher(scriptSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		found = strings.Contains(s.AttrOr("src", ""), src)
		return !found
	})
	return found
}

// resolvesToView reports whether the configured mux routes u to a View.
func (f *Fluid) resolvesToView(r *http.Request, u *url.URL) bool {
	if f.mux == nil {
		return false
	}

	lookup, err := http.NewRequestWithContext(r.Context(), http.MethodGet, u.String(), nil)
	if err != nil {
		return false
	}

	h, pattern := f.mux.Handler(lookup)
	if pattern == "" {
		return false
	}
	return IsView(h)
}

// requestURL rebuilds the absolute URL of a server request.
func requestURL(r *http.Request) *url.URL {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	return &url.URL{
		Scheme:   scheme,
		Host:     r.Host,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
	}
}
