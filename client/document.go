package client

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	fluid "github.com/joetifa2003/fluidgo"
)

// Document is the live DOM of a controller. It is not safe for concurrent
// use; go through Controller.View while navigations may be running.
type Document struct {
	doc *goquery.Document
}

// NewDocument parses r as a whole HTML document.
func NewDocument(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &Document{doc: doc}, nil
}

// ParseDocument parses s as a whole HTML document.
func ParseDocument(s string) (*Document, error) {
	return NewDocument(strings.NewReader(s))
}

// Write replaces the whole document, like document.open/write/close.
func (d *Document) Write(s string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}
	d.doc = doc
	return nil
}

func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

func (d *Document) FindMatcher(m goquery.Matcher) *goquery.Selection {
	return d.doc.FindMatcher(m)
}

func (d *Document) HTML() (string, error) {
	return d.doc.Html()
}

var metaSelector = cascadia.MustCompile("meta[name]")

// Meta returns the content of the first <meta name=name>.
func (d *Document) Meta(name string) string {
	return d.doc.FindMatcher(metaSelector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.AttrOr("name", "") == name
	}).First().AttrOr("content", "")
}

// Placeholders returns every placeholder whose identifier is exactly id.
func (d *Document) Placeholders(id string) *goquery.Selection {
	return d.doc.FindMatcher(fluid.BlockSelector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr(fluid.BlockNameAttr)
		return name == id
	})
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasAttr(n *html.Node, key string) bool {
	_, ok := attr(n, key)
	return ok
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}
