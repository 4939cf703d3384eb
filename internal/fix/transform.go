package fix

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/rules"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	ErrNoSnippet     = errors.New("finding has no recorded snippet")
	ErrNoFixValue    = errors.New("finding has no fix value")
	ErrNoElement     = errors.New("snippet has no element")
	ErrNotFixable    = errors.New("finding is not auto-fixable")
	ErrUnsupportRule = errors.New("no transformation for rule")
)

// SkipLinkText is the label of inserted skip links.
const SkipLinkText = "Skip to main content"

// Transform returns the corrected markup for f's snippet.
func Transform(f model.Finding) (string, error) {
	if !f.AutoFixable {
		return "", ErrNotFixable
	}
	if strings.TrimSpace(f.Snippet) == "" {
		return "", ErrNoSnippet
	}
	if f.FixValue == "" {
		return "", ErrNoFixValue
	}

	switch f.RuleID {
	case rules.IDImageAlt:
		return rewriteFirst(f.Snippet, func(n *html.Node) bool {
			if n.Data != "img" {
				return false
			}
			setAttr(n, "alt", f.FixValue)
			return true
		})
	case rules.IDColorContrast:
		return rewriteFirst(f.Snippet, func(n *html.Node) bool {
			style, _ := getAttr(n, "style")
			setAttr(n, "style", setColor(style, f.FixValue))
			return true
		})
	case rules.IDSkipLink:
		link := &html.Node{
			Type:     html.ElementNode,
			Data:     "a",
			DataAtom: atom.A,
			Attr: []html.Attribute{
				{Key: "href", Val: "#" + f.FixValue},
				{Key: "class", Val: "skip-link"},
			},
		}
		link.AppendChild(&html.Node{Type: html.TextNode, Data: SkipLinkText})
		var buf bytes.Buffer
		if err := html.Render(&buf, link); err != nil {
			return "", fmt.Errorf("render skip link: %w", err)
		}
		return buf.String() + f.Snippet, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnsupportRule, f.RuleID)
	}
}

var leadingTag = regexp.MustCompile(`^\s*<([a-zA-Z][a-zA-Z0-9-]*)`)

// fragmentParents maps elements the parser only accepts inside a specific
// parent to that parent. Anything else is parsed as body content.
var fragmentParents = map[string]atom.Atom{
	"td":       atom.Tr,
	"th":       atom.Tr,
	"tr":       atom.Tbody,
	"tbody":    atom.Table,
	"thead":    atom.Table,
	"tfoot":    atom.Table,
	"caption":  atom.Table,
	"colgroup": atom.Table,
	"col":      atom.Colgroup,
	"option":   atom.Select,
	"optgroup": atom.Select,
}

// fragmentContext picks the parent element snippet's root must be parsed in
// so the parser keeps it.
func fragmentContext(snippet string) *html.Node {
	parent := atom.Body
	if m := leadingTag.FindStringSubmatch(snippet); m != nil {
		if a, ok := fragmentParents[strings.ToLower(m[1])]; ok {
			parent = a
		}
	}
	return &html.Node{Type: html.ElementNode, Data: parent.String(), DataAtom: parent}
}

// rewriteFirst parses snippet in the context its root element needs, hands
// elements to edit in document order until it reports a change, and
// renders the result.
func rewriteFirst(snippet string, edit func(*html.Node) bool) (string, error) {
	nodes, err := html.ParseFragment(strings.NewReader(snippet), fragmentContext(snippet))
	if err != nil {
		return "", fmt.Errorf("parse snippet: %w", err)
	}

	done := false
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if done {
			return
		}
		if n.Type == html.ElementNode && edit(n) {
			done = true
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	if !done {
		return "", ErrNoElement
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return "", fmt.Errorf("render snippet: %w", err)
		}
	}
	return buf.String(), nil
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
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

var colorDecl = regexp.MustCompile(`(?i)(^|;)\s*color\s*:[^;]*`)

// setColor replaces every color declaration in an inline style, or appends
// one.
func setColor(style, color string) string {
	decl := "color: " + color
	if colorDecl.MatchString(style) {
		replaced := false
		return colorDecl.ReplaceAllStringFunc(style, func(m string) string {
			prefix := ""
			if strings.HasPrefix(m, ";") {
				prefix = "; "
			}
			if replaced {
				return prefix
			}
			replaced = true
			return prefix + decl
		})
	}
	style = strings.TrimRight(strings.TrimSpace(style), ";")
	if style == "" {
		return decl
	}
	return style + "; " + decl
}
