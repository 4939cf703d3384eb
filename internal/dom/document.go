// Package dom wraps a parsed page with the lookups rules need: a CSS cascade
// over the page's own stylesheets, inherited text colour and size, the
// effective background, and stable element selectors.
//
// A Document caches per-node results and is not safe for concurrent use.
package dom

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/raysh454/a11yscan/internal/model"
	"golang.org/x/net/html"
)

// MaxSnippetLen caps recorded markup; longer elements are recorded as their
// start tag only.
const MaxSnippetLen = 400

// ErrEmptyDocument is returned for bodies without any markup.
var ErrEmptyDocument = errors.New("empty document")

// Document is one parsed page.
type Document struct {
	URL *url.URL
	Doc *goquery.Document

	sheet    *stylesheet
	declared map[*html.Node]map[string]declaration
	focus    map[*html.Node]map[string]declaration
	fontSize map[*html.Node]float64
	ids      map[string]int
}

// Parse builds a Document from an HTML body. Failures are ParseErrors.
func Parse(pageURL string, body []byte) (*Document, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, &model.ScanError{Kind: model.ParseError, URL: pageURL, Err: fmt.Errorf("parse url: %w", err)}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &model.ScanError{Kind: model.ParseError, URL: pageURL, Err: ErrEmptyDocument}
	}

	gq, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &model.ScanError{Kind: model.ParseError, URL: pageURL, Err: fmt.Errorf("parse html: %w", err)}
	}
	gq.Url = u

	d := &Document{
		URL:      u,
		Doc:      gq,
		declared: make(map[*html.Node]map[string]declaration),
		focus:    make(map[*html.Node]map[string]declaration),
		fontSize: make(map[*html.Node]float64),
		ids:      make(map[string]int),
	}

	gq.Find("[id]").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("id")
		d.ids[id]++
	})

	var css strings.Builder
	gq.Find("style").Each(func(_ int, s *goquery.Selection) {
		if media, ok := s.Attr("media"); ok && !screenMedia(media) {
			return
		}
		css.WriteString(s.Text())
		css.WriteString("\n")
	})
	d.sheet = parseStylesheet(css.String())

	return d, nil
}

// BaseURL honours <base href> when present.
func (d *Document) BaseURL() *url.URL {
	if href, ok := d.Doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			return d.URL.ResolveReference(ref)
		}
	}
	return d.URL
}

// Body returns the body element, which the HTML parser always creates.
func (d *Document) Body() *html.Node {
	if n := d.Doc.Find("body").First(); n.Length() > 0 {
		return n.Get(0)
	}
	return nil
}

// Attr returns the named attribute of n.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// parentElement skips non-element parents such as the document node.
func parentElement(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return p
		}
	}
	return nil
}

var cssIdent = regexp.MustCompile(`^-?[_a-zA-Z][_a-zA-Z0-9-]*$`)

// Selector returns a structural selector for n. It is anchored at the
// nearest ancestor with a unique, CSS-safe id, otherwise at <html>, and uses
// :nth-of-type only where siblings share a tag.
func (d *Document) Selector(n *html.Node) string {
	var parts []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = parentElement(cur) {
		if id, ok := Attr(cur, "id"); ok && d.ids[id] == 1 && cssIdent.MatchString(id) {
			parts = append(parts, cur.Data+"#"+id)
			break
		}
		parts = append(parts, step(cur))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

func step(n *html.Node) string {
	if n.Parent == nil {
		return n.Data
	}
	index, count := 0, 0
	for s := n.Parent.FirstChild; s != nil; s = s.NextSibling {
		if s.Type != html.ElementNode || s.Data != n.Data {
			continue
		}
		count++
		if s == n {
			index = count
		}
	}
	if count <= 1 {
		return n.Data
	}
	return n.Data + ":nth-of-type(" + strconv.Itoa(index) + ")"
}

// Snippet renders n's markup, falling back to the bare start tag when the
// full element is longer than MaxSnippetLen.
func Snippet(n *html.Node) string {
	if n == nil {
		return ""
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err == nil && buf.Len() <= MaxSnippetLen {
		return buf.String()
	}
	buf.Reset()
	shallow := &html.Node{Type: n.Type, Data: n.Data, DataAtom: n.DataAtom, Namespace: n.Namespace, Attr: n.Attr}
	if err := html.Render(&buf, shallow); err != nil {
		return "<" + n.Data + ">"
	}
	return buf.String()
}

// OwnText is the concatenated text of n's direct text-node children.
func OwnText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return strings.TrimSpace(b.String())
}

// TextContent is all descendant text of n, whitespace collapsed.
func TextContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
		if c.Type == html.ElementNode && (c.Data == "script" || c.Data == "style") {
			return
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// Hidden reports whether n or an ancestor is removed from rendering.
func (d *Document) Hidden(n *html.Node) bool {
	for cur := n; cur != nil; cur = parentElement(cur) {
		switch cur.Data {
		case "head", "script", "style", "template", "noscript", "title":
			return true
		}
		if _, ok := Attr(cur, "hidden"); ok {
			return true
		}
		decl := d.Declared(cur)
		if strings.EqualFold(decl["display"], "none") {
			return true
		}
		if v := strings.ToLower(decl["visibility"]); v == "hidden" || v == "collapse" {
			return true
		}
	}
	return false
}

func screenMedia(media string) bool {
	m := strings.ToLower(media)
	return m == "" || strings.Contains(m, "screen") || strings.Contains(m, "all")
}
