package rules

import (
	"fmt"

	"github.com/raysh454/a11yscan/internal/contrast"
	"github.com/raysh454/a11yscan/internal/dom"
	"github.com/raysh454/a11yscan/internal/model"
	"golang.org/x/net/html"
)

// Below this ratio contrast failures are Critical regardless of text size.
const criticalContrast = 3.0

type colorContrast struct{}

func (colorContrast) Info() Info {
	return Info{
		ID:        IDColorContrast,
		Name:      "Text must have sufficient colour contrast",
		Criterion: "1.4.3",
		Level:     model.LevelAA,
		Guidance:  "Text needs a contrast ratio of at least 4.5:1 against its background (3:1 for large text) at AA, 7:1 and 4.5:1 at AAA. Darken the text or lighten the background.",
	}
}

func (r colorContrast) Check(doc *dom.Document, opts Options) ([]model.Finding, error) {
	info := r.Info()
	level := model.LevelAA
	if opts.Level == model.LevelAAA {
		level = model.LevelAAA
		info.Criterion = "1.4.6"
	}

	var out []model.Finding
	body := doc.Body()
	if body == nil {
		return nil, nil
	}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if doc.Hidden(n) {
				return
			}
			if f, ok := r.checkElement(doc, info, level, n); ok {
				out = append(out, f)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(body)
	return out, nil
}

func (colorContrast) checkElement(doc *dom.Document, info Info, level model.WCAGLevel, n *html.Node) (model.Finding, bool) {
	if dom.OwnText(n) == "" {
		return model.Finding{}, false
	}
	bg, ok := doc.Background(n)
	if !ok {
		return model.Finding{}, false
	}
	fg := doc.Foreground(n).Over(bg)

	size := model.TextNormal
	if doc.LargeText(n) {
		size = model.TextLarge
	}
	threshold := contrast.Threshold(level, size)
	ratio := contrast.Ratio(fg, bg)
	if ratio >= threshold {
		return model.Finding{}, false
	}

	sev := model.SeverityMajor
	if ratio < criticalContrast {
		sev = model.SeverityCritical
	}
	better := contrast.Suggest(fg, bg, threshold)
	suggested := better.Hex()
	f := finding(doc, info, sev, n, fmt.Sprintf(
		"Text contrast %.2f:1 (%s on %s) is below the %.1f:1 minimum for %s text",
		ratio, fg.Hex(), bg.Hex(), threshold, size))
	f.AutoFixable = true
	f.FixValue = suggested
	f.SuggestedFix = fmt.Sprintf("Change the text colour to %s (%.2f:1 on %s).",
		suggested, contrast.Ratio(better, bg), bg.Hex())
	return f, true
}
