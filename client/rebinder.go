package client

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	fluid "github.com/joetifa2003/fluidgo"
)

// Role tells how a bound element navigates.
type Role int

const (
	RoleLink Role = iota + 1
	RoleForm
)

func (r Role) String() string {
	switch r {
	case RoleLink:
		return "link"
	case RoleForm:
		return "form"
	}
	return "unknown"
}

var partialSelector = cascadia.MustCompile("a[" + fluid.MarkerAttr + "], form[" + fluid.MarkerAttr + "]")

// Rebinder tracks the partial-capable elements of a document. Replacing a
// subtree detaches its nodes, so the bindings are rebuilt from scratch on
// every scan rather than patched.
type Rebinder struct {
	namespace string
	bound     map[*html.Node]Role
}

func NewRebinder(namespace string) *Rebinder {
	return &Rebinder{
		namespace: namespace,
		bound:     map[*html.Node]Role{},
	}
}

// Rebind drops every binding of the namespace and scans doc again. It
// returns the number of bound elements.
func (b *Rebinder) Rebind(doc *Document) int {
	clear(b.bound)

	doc.FindMatcher(partialSelector).Each(func(_ int, s *goquery.Selection) {
		n := s.Get(0)
		switch n.Data {
		case "a":
			b.bound[n] = RoleLink
		case "form":
			b.bound[n] = RoleForm
		}
	})

	return len(b.bound)
}

// Lookup returns the role n was bound with.
func (b *Rebinder) Lookup(n *html.Node) (Role, bool) {
	role, ok := b.bound[n]
	return role, ok
}

func (b *Rebinder) Namespace() string {
	return b.namespace
}

func (b *Rebinder) Len() int {
	return len(b.bound)
}
