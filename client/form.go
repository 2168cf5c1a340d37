package client

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

var (
	fieldSelector   = cascadia.MustCompile("input, select, textarea")
	controlSelector = cascadia.MustCompile("input, select, textarea, button")
	optionSelector  = cascadia.MustCompile("option")
)

// serializeForm encodes the successful controls of form the way a browser
// builds application/x-www-form-urlencoded data.
func serializeForm(form, submitter *html.Node) url.Values {
	values := url.Values{}

	goquery.NewDocumentFromNode(form).FindMatcher(fieldSelector).Each(func(_ int, s *goquery.Selection) {
		n := s.Get(0)
		name, ok := attr(n, "name")
		if !ok || name == "" || hasAttr(n, "disabled") {
			return
		}

		switch n.Data {
		case "input":
			typ, _ := attr(n, "type")
			switch strings.ToLower(typ) {
			case "submit", "button", "reset", "image", "file":
				return
			case "checkbox", "radio":
				if !hasAttr(n, "checked") {
					return
				}
				value, ok := attr(n, "value")
				if !ok {
					value = "on"
				}
				values.Add(name, value)
			default:
				value, _ := attr(n, "value")
				values.Add(name, value)
			}

		case "select":
			options := s.FindMatcher(optionSelector)
			selected := options.FilterFunction(func(_ int, o *goquery.Selection) bool {
				return hasAttr(o.Get(0), "selected")
			})
			if selected.Length() == 0 {
				if hasAttr(n, "multiple") || options.Length() == 0 {
					return
				}
				selected = options.First()
			}
			if !hasAttr(n, "multiple") {
				selected = selected.First()
			}
			selected.Each(func(_ int, o *goquery.Selection) {
				values.Add(name, optionValue(o))
			})

		case "textarea":
			values.Add(name, s.Text())
		}
	})

	if submitter != nil {
		if name, ok := attr(submitter, "name"); ok && name != "" {
			value, _ := attr(submitter, "value")
			values.Add(name, value)
		}
	}

	return values
}

func optionValue(o *goquery.Selection) string {
	if value, ok := o.Attr("value"); ok {
		return value
	}
	return strings.TrimSpace(o.Text())
}

// formControls lists the controls disabled while form is submitting.
func formControls(form *html.Node) []*html.Node {
	return goquery.NewDocumentFromNode(form).FindMatcher(controlSelector).Nodes
}

func isSubmitControl(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}

	typ, ok := attr(n, "type")
	typ = strings.ToLower(typ)
	switch n.Data {
	case "button":
		return !ok || typ == "submit"
	case "input":
		return typ == "submit" || typ == "image"
	}
	return false
}

func enclosingForm(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "form" {
			return p
		}
	}
	return nil
}
