package rules

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/raysh454/a11yscan/internal/dom"
	"github.com/raysh454/a11yscan/internal/model"
	"golang.org/x/net/html"
)

// FallbackAltText is used when nothing better can be derived for an image.
const FallbackAltText = "Image"

type imageAlt struct{}

func (imageAlt) Info() Info {
	return Info{
		ID:        IDImageAlt,
		Name:      "Images must have alternative text",
		Criterion: "1.1.1",
		Level:     model.LevelA,
		Guidance:  "Give every informative image an alt attribute describing its content or purpose. Decorative images take alt=\"\"; images that are the only content of a link or button must describe the action.",
	}
}

func (r imageAlt) Check(doc *dom.Document, _ Options) ([]model.Finding, error) {
	var out []model.Finding
	for _, n := range nodes(doc, "img") {
		if doc.Hidden(n) || decorative(n) {
			continue
		}
		alt, has := dom.Attr(n, "alt")
		var desc string
		switch {
		case !has:
			desc = "Image is missing alternative text"
		case strings.TrimSpace(alt) == "" && functionalImage(n):
			desc = "Image is the only content of a link or button but has empty alternative text"
		default:
			continue
		}

		text := DeriveAltText(doc, n)
		f := finding(doc, r.Info(), model.SeverityMajor, n, desc)
		f.AutoFixable = true
		f.FixValue = text
		f.SuggestedFix = fmt.Sprintf("Add alt=%q, or a more precise description of what the image shows or does.", text)
		out = append(out, f)
	}
	return out, nil
}

func decorative(n *html.Node) bool {
	switch strings.ToLower(attr(n, "role")) {
	case "presentation", "none":
		return true
	}
	return strings.EqualFold(attr(n, "aria-hidden"), "true")
}

// functionalImage reports whether n is what gives its link or button a name.
func functionalImage(n *html.Node) bool {
	ctl := closest(n, "a", "button")
	if ctl == nil {
		return false
	}
	if attr(ctl, "aria-label") != "" || attr(ctl, "aria-labelledby") != "" {
		return false
	}
	if dom.TextContent(ctl) != "" {
		return false
	}
	for _, img := range imagesUnder(ctl) {
		if img != n && attr(img, "alt") != "" {
			return false
		}
	}
	return true
}

func imagesUnder(n *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.ElementNode && c.Data == "img" {
			out = append(out, c)
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n)
	return out
}

// DeriveAltText proposes alt text for img from, in order: its title,
// aria-label, enclosing figure caption, and the humanised file name.
func DeriveAltText(doc *dom.Document, img *html.Node) string {
	if t := attr(img, "title"); t != "" {
		return t
	}
	if t := attr(img, "aria-label"); t != "" {
		return t
	}
	if fig := closest(img, "figure"); fig != nil {
		for c := fig.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == "figcaption" {
				if t := dom.TextContent(c); t != "" {
					return t
				}
			}
		}
	}
	if t := humanizeFilename(attr(img, "src")); t != "" {
		return t
	}
	return FallbackAltText
}

// humanizeFilename turns "/img/team-photo_2024.jpg" into "Team photo 2024".
// Names that look generated (hashes, bare numbers) yield "".
func humanizeFilename(src string) string {
	if src == "" || strings.HasPrefix(src, "data:") {
		return ""
	}
	if u, err := url.Parse(src); err == nil {
		src = u.Path
	}
	base := path.Base(src)
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	base = strings.Map(func(r rune) rune {
		if r == '-' || r == '_' || r == '.' || r == '+' {
			return ' '
		}
		return r
	}, base)
	words := strings.Fields(base)

	letters := 0
	for _, w := range words {
		for _, r := range w {
			if unicode.IsLetter(r) {
				letters++
			}
		}
	}
	if letters < 2 || generated(words) {
		return ""
	}
	s := strings.ToLower(strings.Join(words, " "))
	first, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(first)) + s[size:]
}

// generated catches single-token names made mostly of hex digits.
func generated(words []string) bool {
	if len(words) != 1 || len(words[0]) < 12 {
		return false
	}
	hex := 0
	for _, r := range words[0] {
		if strings.ContainsRune("0123456789abcdefABCDEF", r) {
			hex++
		}
	}
	return hex == len(words[0])
}
