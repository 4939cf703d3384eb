package dom

import (
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
)

// declaration is a property value together with the cascade key that won.
type declaration struct {
	value     string
	important bool
	inline    bool
	spec      cascadia.Specificity
	order     int
}

// beats reports whether d wins over other in the cascade.
func (d declaration) beats(other declaration) bool {
	if d.important != other.important {
		return d.important
	}
	if d.inline != other.inline {
		return d.inline
	}
	if d.spec != other.spec {
		return other.spec.Less(d.spec)
	}
	return d.order > other.order
}

type styleRule struct {
	sel   cascadia.Sel
	spec  cascadia.Specificity
	order int
	focus bool
	decls []*css.Declaration
}

type stylesheet struct {
	rules []styleRule
}

var focusPseudo = regexp.MustCompile(`:focus(-visible)?\b`)

// parseStylesheet keeps the qualified rules cascadia can match, including
// those nested in screen media queries. Selectors using unsupported pseudo
// classes are dropped. :focus and :focus-visible are stripped before
// compiling and the rule is flagged instead.
func parseStylesheet(text string) *stylesheet {
	sheet := &stylesheet{}
	if strings.TrimSpace(text) == "" {
		return sheet
	}
	parsed, err := parser.Parse(text)
	if err != nil {
		return sheet
	}
	order := 0
	var add func(rules []*css.Rule)
	add = func(rules []*css.Rule) {
		for _, r := range rules {
			if r.Kind == css.AtRule {
				if r.Name == "@media" && screenMedia(r.Prelude) {
					add(r.Rules)
				}
				continue
			}
			for _, raw := range r.Selectors {
				focus := focusPseudo.MatchString(raw)
				selText := strings.TrimSpace(focusPseudo.ReplaceAllString(raw, ""))
				if selText == "" || strings.HasSuffix(selText, ">") || strings.HasSuffix(selText, "+") || strings.HasSuffix(selText, "~") {
					selText += "*"
				}
				sel, err := cascadia.Parse(selText)
				if err != nil || sel.PseudoElement() != "" {
					continue
				}
				order++
				sheet.rules = append(sheet.rules, styleRule{
					sel:   sel,
					spec:  sel.Specificity(),
					order: order,
					focus: focus,
					decls: r.Declarations,
				})
			}
		}
	}
	add(parsed.Rules)
	return sheet
}

func (d *Document) cascade(n *html.Node, focus bool) map[string]declaration {
	out := make(map[string]declaration)
	apply := func(decl *css.Declaration, cand declaration) {
		for prop, val := range expand(strings.ToLower(strings.TrimSpace(decl.Property)), strings.TrimSpace(decl.Value)) {
			cand.value = val
			if cur, ok := out[prop]; !ok || cand.beats(cur) {
				out[prop] = cand
			}
		}
	}
	for _, r := range d.sheet.rules {
		if r.focus != focus || !r.sel.Match(n) {
			continue
		}
		for _, decl := range r.decls {
			apply(decl, declaration{important: decl.Important, spec: r.spec, order: r.order})
		}
	}
	if !focus {
		if style, ok := Attr(n, "style"); ok {
			for _, decl := range inlineDeclarations(style) {
				apply(decl, declaration{important: decl.Important, inline: true})
			}
		}
	}
	return out
}

// inlineDeclarations parses a style attribute. The parser only closes a
// declaration on ";" or "}", so the list is braced to keep the last value
// when the attribute has no trailing semicolon. Lists the parser rejects,
// such as "a:b;;c:d", are retried one declaration at a time.
func inlineDeclarations(style string) []*css.Declaration {
	if strings.TrimSpace(style) == "" {
		return nil
	}
	if decls, err := parser.ParseDeclarations("{" + style + "}"); err == nil {
		return decls
	}
	var out []*css.Declaration
	for _, part := range strings.Split(style, ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		decls, err := parser.ParseDeclarations("{" + part + "}")
		if err != nil {
			continue
		}
		out = append(out, decls...)
	}
	return out
}

// Declared returns the cascaded (not inherited) declarations of n.
func (d *Document) Declared(n *html.Node) map[string]string {
	decl, ok := d.declared[n]
	if !ok {
		decl = d.cascade(n, false)
		d.declared[n] = decl
	}
	return values(decl)
}

// FocusDeclared returns declarations from :focus / :focus-visible rules
// that match n.
func (d *Document) FocusDeclared(n *html.Node) map[string]string {
	decl, ok := d.focus[n]
	if !ok {
		decl = d.cascade(n, true)
		d.focus[n] = decl
	}
	return values(decl)
}

func values(m map[string]declaration) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v.value
	}
	return out
}

// expand splits the shorthands rules care about into longhands and keeps
// the shorthand itself.
func expand(prop, val string) map[string]string {
	out := map[string]string{prop: val}
	switch prop {
	case "background":
		if c := colorToken(val); c != "" {
			out["background-color"] = c
		}
		if strings.Contains(strings.ToLower(val), "url(") || strings.Contains(strings.ToLower(val), "gradient(") {
			out["background-image"] = val
		}
	case "outline":
		for _, tok := range strings.Fields(strings.ToLower(val)) {
			switch {
			case tok == "none" || tok == "hidden" || tok == "solid" || tok == "dotted" || tok == "dashed" ||
				tok == "double" || tok == "groove" || tok == "ridge" || tok == "inset" || tok == "outset" || tok == "auto":
				out["outline-style"] = tok
			case tok == "0" || strings.HasSuffix(tok, "px") || strings.HasSuffix(tok, "em") || tok == "thin" || tok == "medium" || tok == "thick":
				out["outline-width"] = tok
			}
		}
	}
	return out
}

var funcColor = regexp.MustCompile(`(?i)(rgba?|hsla?)\([^)]*\)`)

// colorToken picks the colour component out of a background shorthand.
func colorToken(val string) string {
	if m := funcColor.FindString(val); m != "" {
		return m
	}
	for _, tok := range strings.Fields(val) {
		t := strings.ToLower(strings.TrimSuffix(tok, ","))
		if strings.HasPrefix(t, "#") || t == "transparent" {
			return t
		}
		if _, ok := namedColors[t]; ok {
			return t
		}
	}
	return ""
}
