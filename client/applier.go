package client

import (
	"fmt"

	"github.com/microcosm-cc/bluemonday"

	fluid "github.com/joetifa2003/fluidgo"
	"github.com/joetifa2003/fluidgo/fragment"
)

// ApplyResult describes what an Apply call changed.
type ApplyResult struct {
	// Full is set when the whole document was rewritten.
	Full bool
	// Replaced counts the placeholders replaced.
	Replaced int
	// Dropped lists the fragment identifiers without a placeholder.
	Dropped []string
}

// Changed reports whether the document was mutated.
func (r ApplyResult) Changed() bool {
	return r.Full || r.Replaced > 0
}

// Applier splices responses into a Document.
type Applier struct {
	sanitizer *bluemonday.Policy
}

// NewApplier returns an Applier. A non-nil sanitizer is run over every
// fragment before it is inserted; full documents are written as is.
func NewApplier(sanitizer *bluemonday.Policy) *Applier {
	return &Applier{sanitizer: sanitizer}
}

// Apply rewrites the document for a FullDocument, or replaces every
// placeholder named by a FragmentSet key with the key's HTML. Placeholders
// not named are left alone and keys without a placeholder are dropped.
func (a *Applier) Apply(doc *Document, resp fragment.Response) (ApplyResult, error) {
	switch resp := resp.(type) {
	case fragment.FullDocument:
		if err := doc.Write(resp.HTML); err != nil {
			return ApplyResult{}, err
		}
		return ApplyResult{Full: true}, nil

	case fragment.FragmentSet:
		var result ApplyResult
		for _, key := range resp.Keys() {
			placeholders := doc.Placeholders(key)
			if placeholders.Length() == 0 {
				result.Dropped = append(result.Dropped, key)
				continue
			}

			content := resp[key]
			if a.sanitizer != nil {
				content = a.sanitizer.Sanitize(content)
			}

			result.Replaced += placeholders.Length()
			placeholders.ReplaceWithHtml(content)
		}
		return result, nil

	default:
		return ApplyResult{}, fmt.Errorf("unknown fragment response %T", resp)
	}
}

// FragmentPolicy is a user generated content policy that keeps placeholders,
// fluid attributes and plain forms intact.
func FragmentPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements(fluid.BlockElement, "form", "input", "select", "option", "textarea", "button", "label", "fieldset")
	p.AllowAttrs(fluid.BlockNameAttr).OnElements(fluid.BlockElement)
	p.AllowAttrs("action", "method").OnElements("form")
	p.AllowAttrs("name", "value", "type", "checked", "selected", "disabled", "multiple", "placeholder").
		OnElements("input", "select", "option", "textarea", "button")
	p.AllowAttrs("for").OnElements("label")
	p.AllowDataAttributes()
	return p
}
