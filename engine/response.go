package engine

import (
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Response is the result of an engine operation.
//
// Headers, Cookies and Body are loosely typed because each backend reports
// them in its own shape. The plain HTTP engine yields http.Header,
// []*http.Cookie and []byte; the browser engine yields map[string]string,
// []map[string]any cookie records and string. Consumers must treat these
// fields defensively.
type Response struct {
	URL    string
	Status int
	Reason string

	Headers any
	Cookies any
	Body    any

	once   sync.Once
	doc    *html.Node
	docErr error
}

// Element is one match of a CSS or XPath query.
type Element interface {
	String() string
}

// HTMLElement is an Element that can render itself as markup.
type HTMLElement interface {
	Element
	HTML() string
}

// String is the textual representation used when nothing better is available.
func (r *Response) String() string {
	return fmt.Sprintf("<%d %s>", r.Status, r.URL)
}

// Text returns the body as a string without any decoding guarantees.
func (r *Response) Text() string {
	switch b := r.Body.(type) {
	case nil:
		return ""
	case []byte:
		return string(b)
	case string:
		return b
	case fmt.Stringer:
		return b.String()
	default:
		return fmt.Sprint(b)
	}
}

// CSS runs a CSS selector against the body and returns the matches in
// document order. An invalid selector is reported as an error.
func (r *Response) CSS(selector string) ([]Element, error) {
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return nil, err
	}
	root, err := r.document()
	if err != nil {
		return nil, err
	}

	sel := goquery.NewDocumentFromNode(root).FindMatcher(matcher)
	out := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, newNodeElement(s.Get(0)))
	})
	return out, nil
}

// XPath evaluates an XPath expression against the body. Attribute and text
// results are returned as plain text elements.
func (r *Response) XPath(expr string) ([]Element, error) {
	root, err := r.document()
	if err != nil {
		return nil, err
	}
	nodes, err := htmlquery.QueryAll(root, expr)
	if err != nil {
		return nil, err
	}

	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, newNodeElement(n))
	}
	return out, nil
}

func (r *Response) document() (*html.Node, error) {
	r.once.Do(func() {
		r.doc, r.docErr = html.Parse(strings.NewReader(r.Text()))
	})
	return r.doc, r.docErr
}

// nodeElement wraps an element node; textElement wraps everything else.
type nodeElement struct{ n *html.Node }

type textElement string

// newNodeElement classifies a query result. htmlquery materialises attribute
// results as detached element nodes, so an element without a parent is an
// attribute value, not markup.
func newNodeElement(n *html.Node) Element {
	switch {
	case n.Type == html.DocumentNode:
		return nodeElement{n: n}
	case n.Type == html.ElementNode && n.Parent != nil:
		return nodeElement{n: n}
	}
	return textElement(htmlquery.InnerText(n))
}

func (e nodeElement) HTML() string   { return htmlquery.OutputHTML(e.n, true) }
func (e nodeElement) String() string { return htmlquery.InnerText(e.n) }

func (e textElement) String() string { return string(e) }
