package rules

import (
	"github.com/raysh454/a11yscan/internal/dom"
	"github.com/raysh454/a11yscan/internal/model"
)

type landmarks struct{}

func (landmarks) Info() Info {
	return Info{
		ID:        IDLandmarks,
		Name:      "Pages must expose main and navigation landmarks",
		Criterion: "1.3.1",
		Level:     model.LevelA,
		Guidance:  "Wrap the primary content in <main> and site navigation in <nav> (or give them role=\"main\" / role=\"navigation\") so assistive technology can jump between regions.",
	}
}

var requiredLandmarks = []struct {
	selector string
	desc     string
	fix      string
}{
	{"main, [role=main]", "Page has no main landmark", "Wrap the primary content in a <main> element."},
	{"nav, [role=navigation]", "Page has no navigation landmark", "Wrap the site navigation links in a <nav> element."},
}

func (r landmarks) Check(doc *dom.Document, _ Options) ([]model.Finding, error) {
	var out []model.Finding
	for _, lm := range requiredLandmarks {
		if len(nodes(doc, lm.selector)) > 0 {
			continue
		}
		f := finding(doc, r.Info(), model.SeverityMinor, nil, lm.desc)
		f.SuggestedFix = lm.fix
		out = append(out, f)
	}
	return out, nil
}
