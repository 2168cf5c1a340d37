package fluid

import (
	"net/http"
	"strings"
)

// Fluid protocol headers.
const (
	// XFluid marks a fluid request when set to "true" and is echoed on fragment responses.
	XFluid = "X-Fluid"
	// XRequestedWith is the legacy ajax marker, "XMLHttpRequest" marks a fluid request.
	XRequestedWith = "X-Requested-With"
	// XFluidVersion contains the client's asset version for cache busting.
	XFluidVersion = "X-Fluid-Version"
	// XFluidLocation is used in 409 responses to trigger a full page load.
	XFluidLocation = "X-Fluid-Location"
	// XFluidBlocks lists the fragments the client wants, comma separated.
	XFluidBlocks = "X-Fluid-Blocks"
	// XCSRFToken carries the anti-forgery token on unsafe requests.
	XCSRFToken = "X-CSRFToken"
)

// DOM contract shared with the client.
const (
	// BlockElement is the placeholder element wrapping a fragment.
	BlockElement = "fluid-block"
	// BlockNameAttr holds the fragment identifier on a placeholder.
	BlockNameAttr = "name"
	// MarkerAttr flags a link or form as partial-capable.
	MarkerAttr = "data-fluid"
	// URLAttr overrides the target URL of a partial-capable element.
	URLAttr = "data-fluid-url"
	// BlocksAttr restricts the fragments requested by a partial-capable element.
	BlocksAttr = "data-fluid-blocks"
	// VersionMeta is the name of the meta tag carrying the asset version.
	VersionMeta = "fluid-version"
)

// CSRFCookieName is the cookie holding the anti-forgery token.
const CSRFCookieName = "csrftoken"

type fluidHeaders struct {
	Blocks    []string
	Version   string
	IsFluid   bool
	IsPartial bool
}

// IsFluidRequest reports whether r was issued by a fluid client.
func IsFluidRequest(r *http.Request) bool {
	return r.Header.Get(XFluid) == "true" || r.Header.Get(XRequestedWith) == "XMLHttpRequest"
}

func parseFluidHeaders(r *http.Request) *fluidHeaders {
	headers := &fluidHeaders{
		IsFluid: IsFluidRequest(r),
		Version: r.Header.Get(XFluidVersion),
	}

	if blocks := r.Header.Get(XFluidBlocks); blocks != "" {
		headers.Blocks = SplitList(blocks)
	}
	headers.IsPartial = headers.IsFluid && len(headers.Blocks) > 0

	return headers
}

// SplitList splits a comma separated header or attribute value, dropping empty items.
func SplitList(value string) []string {
	var out []string
	for item := range strings.SplitSeq(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
