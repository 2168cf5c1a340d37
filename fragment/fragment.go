// Package fragment defines the response shapes exchanged by fluid servers and
// clients: a whole HTML document, or a set of named HTML fragments.
//
// The shape is decided once at the transport boundary by Decode/Read, so the
// rest of the client never inspects payloads structurally.
package fragment

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"mime"
	"net/http"
	"slices"
)

// Response is either a FullDocument or a FragmentSet.
type Response interface {
	isResponse()
}

// FullDocument replaces the whole document.
type FullDocument struct {
	HTML string
}

// FragmentSet maps fragment identifiers to the HTML replacing their placeholders.
type FragmentSet map[string]string

func (FullDocument) isResponse() {}
func (FragmentSet) isResponse()  {}

// Keys returns the fragment identifiers in sorted order.
func (s FragmentSet) Keys() []string {
	return slices.Sorted(maps.Keys(s))
}

// Only returns the subset of s named by keys. A nil or empty keys returns s.
func (s FragmentSet) Only(keys []string) FragmentSet {
	if len(keys) == 0 {
		return s
	}
	out := make(FragmentSet, len(keys))
	for _, k := range keys {
		if html, ok := s[k]; ok {
			out[k] = html
		}
	}
	return out
}

// Decode classifies a response body. Only a JSON object whose values are all
// strings, sent with a JSON media type, is a FragmentSet; anything else is a
// FullDocument carrying the body verbatim.
func Decode(contentType string, body []byte) Response {
	if !isJSON(contentType) {
		return FullDocument{HTML: string(body)}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return FullDocument{HTML: string(body)}
	}

	set := make(FragmentSet, len(raw))
	for key, value := range raw {
		var html string
		if err := json.Unmarshal(value, &html); err != nil {
			return FullDocument{HTML: string(body)}
		}
		set[key] = html
	}

	return set
}

// Read consumes and closes resp.Body and decodes it.
func Read(resp *http.Response) (Response, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return Decode(resp.Header.Get("Content-Type"), body), nil
}

// Write encodes resp with the headers a fluid client expects.
func Write(w http.ResponseWriter, resp Response) error {
	switch resp := resp.(type) {
	case FragmentSet:
		w.Header().Set("X-Fluid", "true")
		w.Header().Add("Vary", "X-Fluid")
		w.Header().Set("Content-Type", "application/json")
		if resp == nil {
			resp = FragmentSet{}
		}
		return json.NewEncoder(w).Encode(resp)
	case FullDocument:
		w.Header().Add("Vary", "X-Fluid")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, err := io.WriteString(w, resp.HTML)
		return err
	default:
		return fmt.Errorf("unknown fragment response %T", resp)
	}
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || (len(mediaType) > 5 && mediaType[len(mediaType)-5:] == "+json")
}
