package dom

import (
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/raysh454/a11yscan/internal/contrast"
	"golang.org/x/image/colornames"
	"golang.org/x/net/html"
)

var namedColors = colornames.Map

// Browser defaults used when nothing is declared.
var (
	DefaultForeground = colorful.Color{R: 0, G: 0, B: 0}
	DefaultBackground = colorful.Color{R: 1, G: 1, B: 1}
	DefaultLinkColor  = colorful.Color{R: 0, G: 0, B: 0xEE / 255.0}
)

// RootFontSize is the user-agent default in CSS px.
const RootFontSize = 16.0

// Large text thresholds in CSS px (18pt, and 14pt bold).
const (
	LargeTextPx     = 24.0
	LargeBoldTextPx = 18.66
)

func isKeyword(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "inherit", "unset", "initial", "revert", "currentcolor":
		return true
	}
	return false
}

// Foreground returns n's text colour, following inheritance. Links without
// an author colour get the user-agent link colour.
func (d *Document) Foreground(n *html.Node) contrast.Color {
	for cur := n; cur != nil; cur = parentElement(cur) {
		if v, ok := d.Declared(cur)["color"]; ok && !isKeyword(v) {
			if c, err := contrast.ParseColor(v); err == nil {
				return c
			}
		}
		if cur.Data == "a" {
			if _, ok := Attr(cur, "href"); ok {
				return contrast.Color{Color: DefaultLinkColor, A: 1}
			}
		}
	}
	return contrast.Color{Color: DefaultForeground, A: 1}
}

// Background composites declared background colours from n up to the
// canvas. ok is false when a background image makes the result unknowable.
func (d *Document) Background(n *html.Node) (bg colorful.Color, ok bool) {
	var layers []contrast.Color
	for cur := n; cur != nil; cur = parentElement(cur) {
		decl := d.Declared(cur)
		if img, has := decl["background-image"]; has && !strings.EqualFold(strings.TrimSpace(img), "none") {
			return colorful.Color{}, false
		}
		v, has := decl["background-color"]
		if !has || isKeyword(v) {
			continue
		}
		c, err := contrast.ParseColor(v)
		if err != nil || c.A == 0 {
			continue
		}
		layers = append(layers, c)
		if c.Opaque() {
			break
		}
	}
	bg = DefaultBackground
	for i := len(layers) - 1; i >= 0; i-- {
		bg = layers[i].Over(bg)
	}
	return bg, true
}

var headingScale = map[string]float64{
	"h1": 2, "h2": 1.5, "h3": 1.17, "h4": 1, "h5": 0.83, "h6": 0.67,
	"small": 1 / 1.2, "big": 1.2,
}

var absoluteSizes = map[string]float64{
	"xx-small": 9, "x-small": 10, "small": 13, "medium": 16,
	"large": 18, "x-large": 24, "xx-large": 32, "xxx-large": 48,
}

// FontSize returns n's computed font size in CSS px.
func (d *Document) FontSize(n *html.Node) float64 {
	if n == nil {
		return RootFontSize
	}
	if v, ok := d.fontSize[n]; ok {
		return v
	}
	parent := RootFontSize
	if p := parentElement(n); p != nil {
		parent = d.FontSize(p)
	}

	size := parent
	if v, ok := d.Declared(n)["font-size"]; ok && !isKeyword(v) {
		if px, ok := d.parseFontSize(v, parent); ok {
			size = px
		}
	} else if scale, ok := headingScale[n.Data]; ok {
		size = parent * scale
	}
	d.fontSize[n] = size
	return size
}

func (d *Document) parseFontSize(v string, parent float64) (float64, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	if px, ok := absoluteSizes[v]; ok {
		return px, true
	}
	switch v {
	case "smaller":
		return parent / 1.2, true
	case "larger":
		return parent * 1.2, true
	}
	num := func(suffix string) (float64, bool) {
		f, err := strconv.ParseFloat(strings.TrimSuffix(v, suffix), 64)
		return f, err == nil && f >= 0
	}
	switch {
	case strings.HasSuffix(v, "px"):
		return num("px")
	case strings.HasSuffix(v, "pt"):
		f, ok := num("pt")
		return f * 4 / 3, ok
	case strings.HasSuffix(v, "rem"):
		f, ok := num("rem")
		return f * d.rootSize(), ok
	case strings.HasSuffix(v, "em"):
		f, ok := num("em")
		return f * parent, ok
	case strings.HasSuffix(v, "%"):
		f, ok := num("%")
		return f / 100 * parent, ok
	case v == "0":
		return 0, true
	}
	return 0, false
}

func (d *Document) rootSize() float64 {
	root := d.Doc.Find("html").First()
	if root.Length() == 0 {
		return RootFontSize
	}
	n := root.Get(0)
	if v, ok := d.fontSize[n]; ok {
		return v
	}
	// Resolve the root against the UA default without recursing through rem.
	if v, ok := d.Declared(n)["font-size"]; ok && !strings.HasSuffix(strings.TrimSpace(v), "rem") {
		if px, ok := d.parseFontSize(v, RootFontSize); ok {
			return px
		}
	}
	return RootFontSize
}

var boldTags = map[string]bool{
	"b": true, "strong": true, "th": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// Bold reports whether n's computed font weight is 700 or more.
func (d *Document) Bold(n *html.Node) bool {
	for cur := n; cur != nil; cur = parentElement(cur) {
		v, ok := d.Declared(cur)["font-weight"]
		if ok && !isKeyword(v) {
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "bold", "bolder":
				return true
			case "normal", "lighter":
				return false
			}
			if w, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return w >= 700
			}
		}
		if boldTags[cur.Data] {
			return true
		}
	}
	return false
}

// LargeText applies the WCAG large-scale text definition.
func (d *Document) LargeText(n *html.Node) bool {
	size := d.FontSize(n)
	return size >= LargeTextPx || (d.Bold(n) && size >= LargeBoldTextPx)
}
