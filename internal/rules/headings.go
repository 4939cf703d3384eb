package rules

import (
	"fmt"

	"github.com/raysh454/a11yscan/internal/dom"
	"github.com/raysh454/a11yscan/internal/model"
)

type headingStructure struct{}

func (headingStructure) Info() Info {
	return Info{
		ID:        IDHeadingStructure,
		Name:      "Headings must form a logical outline",
		Criterion: "1.3.1",
		Level:     model.LevelA,
		Guidance:  "Start each page with one <h1> and descend one level at a time (h2 under h1, h3 under h2) so screen reader users can navigate the outline.",
	}
}

func (r headingStructure) Check(doc *dom.Document, _ Options) ([]model.Finding, error) {
	var out []model.Finding
	info := r.Info()

	hasH1 := false
	prev := 0
	for _, n := range nodes(doc, "h1, h2, h3, h4, h5, h6") {
		if doc.Hidden(n) {
			continue
		}
		level := int(n.Data[1] - '0')
		if level == 1 {
			hasH1 = true
		}
		if prev > 0 && level > prev+1 {
			out = append(out, finding(doc, info, model.SeverityMinor, n,
				fmt.Sprintf("Heading level jumps from h%d to h%d", prev, level)))
		}
		prev = level
	}
	if !hasH1 {
		f := finding(doc, info, model.SeverityMinor, nil, "Page has no level-one heading")
		f.SuggestedFix = "Add a single <h1> naming the page's main topic."
		out = append([]model.Finding{f}, out...)
	}
	for i := range out {
		if out[i].SuggestedFix == "" {
			out[i].SuggestedFix = "Use the next heading level down, or restyle the heading with CSS instead of skipping levels."
		}
	}
	return out, nil
}
