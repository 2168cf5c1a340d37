package fluid

import (
	"fmt"
	"html"
	"io"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/joetifa2003/fluidgo/fragment"
)

// BlockSelector matches every named placeholder.
var BlockSelector = cascadia.MustCompile(BlockElement + "[" + BlockNameAttr + "]")

// WrapFragment labels content as the fragment name.
func WrapFragment(name, content string) string {
	return `<` + BlockElement + ` ` + BlockNameAttr + `="` + html.EscapeString(name) + `">` +
		content +
		`</` + BlockElement + `>`
}

// ExtractFragments collects every placeholder of a rendered page, keyed by
// name, as outer HTML. Nested placeholders are reported on their own as well.
// When a name repeats, the first occurrence wins.
func ExtractFragments(r io.Reader) (fragment.FragmentSet, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rendered page: %w", err)
	}

	set := fragment.FragmentSet{}
	var extractErr error
	doc.FindMatcher(BlockSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr(BlockNameAttr)
		if _, seen := set[name]; seen {
			return true
		}

		outer, err := goquery.OuterHtml(s)
		if err != nil {
			extractErr = fmt.Errorf("failed to render fragment %q: %w", name, err)
			return false
		}
		set[name] = outer
		return true
	})
	if extractErr != nil {
		return nil, extractErr
	}

	return set, nil
}
