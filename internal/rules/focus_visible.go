package rules

import (
	"strconv"
	"strings"

	"github.com/raysh454/a11yscan/internal/dom"
	"github.com/raysh454/a11yscan/internal/model"
	"golang.org/x/net/html"
)

type focusVisible struct{}

func (focusVisible) Info() Info {
	return Info{
		ID:        IDFocusVisible,
		Name:      "Focusable elements must show a focus indicator",
		Criterion: "2.4.7",
		Level:     model.LevelAA,
		Guidance:  "Do not remove the focus outline unless a :focus or :focus-visible rule supplies an equally visible replacement such as an outline, box-shadow or border.",
	}
}

func (r focusVisible) Check(doc *dom.Document, _ Options) ([]model.Finding, error) {
	var out []model.Finding
	for _, n := range nodes(doc, "a[href], button, input, select, textarea, summary, [tabindex]") {
		if !focusable(n) || doc.Hidden(n) {
			continue
		}
		base, focus := doc.Declared(n), doc.FocusDeclared(n)
		if !removesOutline(base) && !removesOutline(focus) {
			continue
		}
		if replacesOutline(focus) {
			continue
		}
		f := finding(doc, r.Info(), model.SeverityMajor, n, "Focus outline is removed without a visible replacement")
		f.SuggestedFix = "Add a :focus-visible rule for this element with an outline or box-shadow of at least 2px in a contrasting colour."
		out = append(out, f)
	}
	return out, nil
}

func focusable(n *html.Node) bool {
	if ti, ok := dom.Attr(n, "tabindex"); ok {
		if v, err := strconv.Atoi(strings.TrimSpace(ti)); err == nil && v < 0 {
			return false
		}
	}
	if hasAttr(n, "disabled") {
		return false
	}
	if n.Data == "input" && strings.EqualFold(attr(n, "type"), "hidden") {
		return false
	}
	return true
}

func removesOutline(decl map[string]string) bool {
	switch strings.ToLower(decl["outline-style"]) {
	case "none", "hidden":
		return true
	}
	return zeroLength(decl["outline-width"])
}

func replacesOutline(decl map[string]string) bool {
	if style, ok := decl["outline-style"]; ok {
		s := strings.ToLower(style)
		if s != "none" && s != "hidden" && !zeroLength(decl["outline-width"]) {
			return true
		}
	}
	if w, ok := decl["outline-width"]; ok && !zeroLength(w) {
		if _, ok := decl["outline-style"]; !ok {
			return true
		}
	}
	if v, ok := decl["box-shadow"]; ok && !strings.EqualFold(strings.TrimSpace(v), "none") {
		return true
	}
	for k, v := range decl {
		if strings.HasPrefix(k, "border") && !strings.Contains(strings.ToLower(v), "none") && !zeroLength(v) {
			return true
		}
	}
	return false
}

func zeroLength(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "0", "0px", "0em", "0rem":
		return true
	}
	return false
}
