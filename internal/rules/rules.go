// Package rules holds the accessibility checks run against each parsed page
// and the engine that evaluates them.
package rules

import (
	"strings"

	"github.com/raysh454/a11yscan/internal/dom"
	"github.com/raysh454/a11yscan/internal/model"
	"golang.org/x/net/html"
)

// Rule identifiers.
const (
	IDImageAlt         = "image-alt"
	IDColorContrast    = "color-contrast"
	IDFormLabel        = "form-label"
	IDHeadingStructure = "heading-structure"
	IDSkipLink         = "skip-link"
	IDFocusVisible     = "focus-visible"
	IDLandmarks        = "landmarks"
)

// Options tune a single evaluation.
type Options struct {
	// Level is the conformance level being audited. Rules above it are skipped.
	Level model.WCAGLevel
}

// Info describes a rule for reports and listings.
type Info struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Criterion string          `json:"wcag_criterion"`
	Level     model.WCAGLevel `json:"level"`
	Guidance  string          `json:"guidance"`
}

// Rule is a pure check over one document. Findings come back without ID or
// RunID; the caller owns identity.
type Rule interface {
	Info() Info
	Check(doc *dom.Document, opts Options) ([]model.Finding, error)
}

// Default returns the built-in rules in evaluation order.
func Default() []Rule {
	return []Rule{
		imageAlt{},
		colorContrast{},
		formLabel{},
		headingStructure{},
		skipLink{},
		focusVisible{},
		landmarks{},
	}
}

var catalog = func() map[string]Info {
	m := make(map[string]Info)
	for _, r := range Default() {
		m[r.Info().ID] = r.Info()
	}
	return m
}()

// Describe looks up a built-in rule.
func Describe(id string) (Info, bool) {
	info, ok := catalog[id]
	return info, ok
}

// finding fills the fields every rule sets the same way. n may be nil for
// page-level findings.
func finding(doc *dom.Document, info Info, sev model.Severity, n *html.Node, desc string) model.Finding {
	f := model.Finding{
		PageURL:       doc.URL.String(),
		RuleID:        info.ID,
		Severity:      sev,
		WCAGCriterion: info.Criterion,
		Description:   desc,
		Status:        model.FindingOpen,
	}
	if n != nil {
		f.ElementSelector = doc.Selector(n)
		f.Snippet = dom.Snippet(n)
	}
	return f
}

func nodes(doc *dom.Document, selector string) []*html.Node {
	return doc.Doc.Find(selector).Nodes
}

func attr(n *html.Node, key string) string {
	v, _ := dom.Attr(n, key)
	return strings.TrimSpace(v)
}

func hasAttr(n *html.Node, key string) bool {
	_, ok := dom.Attr(n, key)
	return ok
}

// closest returns the nearest ancestor of n (n excluded) with one of tags.
func closest(n *html.Node, tags ...string) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		for _, t := range tags {
			if p.Data == t {
				return p
			}
		}
	}
	return nil
}
