package client

import (
	"net/http"
	"net/url"
	"strings"

	fluid "github.com/joetifa2003/fluidgo"
)

// CSRFTransport copies the anti-forgery cookie into a request header on
// unsafe requests to the document's own origin.
type CSRFTransport struct {
	Base http.RoundTripper

	// Origin returns the current document location.
	Origin func() *url.URL
	// Cookie returns the document cookie string ("a=1; b=2").
	Cookie func() string

	CookieName string
	HeaderName string
}

func (t *CSRFTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	if fluid.IsSafeMethod(req.Method) || !SameOrigin(t.Origin(), req.URL.String()) {
		return base.RoundTrip(req)
	}

	token, ok := CookieValue(t.Cookie(), t.CookieName)
	if !ok {
		return base.RoundTrip(req)
	}

	req = req.Clone(req.Context())
	req.Header.Set(t.HeaderName, token)
	return base.RoundTrip(req)
}

// SameOrigin reports whether raw targets origin. Relative URLs, and absolute
// or scheme relative URLs naming the same scheme and host:port, qualify.
func SameOrigin(origin *url.URL, raw string) bool {
	srOrigin := "//" + origin.Host
	full := origin.Scheme + ":" + srOrigin

	return raw == full ||
		strings.HasPrefix(raw, full+"/") ||
		raw == srOrigin ||
		strings.HasPrefix(raw, srOrigin+"/") ||
		!(strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "http:") || strings.HasPrefix(raw, "https:"))
}

// CookieValue looks name up in a document cookie string and percent-decodes
// its value.
func CookieValue(cookies, name string) (string, bool) {
	prefix := name + "="
	for cookie := range strings.SplitSeq(cookies, ";") {
		cookie = strings.TrimSpace(cookie)
		if !strings.HasPrefix(cookie, prefix) {
			continue
		}
		value, err := url.PathUnescape(cookie[len(prefix):])
		if err != nil {
			return "", false
		}
		return value, true
	}
	return "", false
}
