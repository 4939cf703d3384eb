package rules

import (
	"strings"

	"github.com/raysh454/a11yscan/internal/dom"
	"github.com/raysh454/a11yscan/internal/model"
	"golang.org/x/net/html"
)

type formLabel struct{}

func (formLabel) Info() Info {
	return Info{
		ID:        IDFormLabel,
		Name:      "Form controls must have labels",
		Criterion: "1.3.1",
		Level:     model.LevelA,
		Guidance:  "Associate every form control with a visible <label for=\"id\">, wrap it in a <label>, or name it with aria-label / aria-labelledby.",
	}
}

var unlabelledInputTypes = map[string]bool{
	"hidden": true, "submit": true, "reset": true, "button": true, "image": true,
}

func (r formLabel) Check(doc *dom.Document, _ Options) ([]model.Finding, error) {
	labelFor := make(map[string]bool)
	for _, l := range nodes(doc, "label[for]") {
		if id := attr(l, "for"); id != "" {
			labelFor[id] = true
		}
	}

	var out []model.Finding
	for _, n := range nodes(doc, "input, select, textarea") {
		if n.Data == "input" && unlabelledInputTypes[strings.ToLower(attr(n, "type"))] {
			continue
		}
		if doc.Hidden(n) || labelled(n, labelFor) {
			continue
		}
		f := finding(doc, r.Info(), model.SeverityCritical, n, "Form control has no associated label")
		f.SuggestedFix = "Add a <label for=\"…\"> pointing at this control's id, wrap the control in a <label>, or set aria-label."
		out = append(out, f)
	}
	return out, nil
}

func labelled(n *html.Node, labelFor map[string]bool) bool {
	if attr(n, "aria-label") != "" || attr(n, "aria-labelledby") != "" {
		return true
	}
	if id := attr(n, "id"); id != "" && labelFor[id] {
		return true
	}
	return closest(n, "label") != nil
}
