package rules

import (
	"fmt"
	"strings"

	"github.com/raysh454/a11yscan/internal/dom"
	"github.com/raysh454/a11yscan/internal/model"
	"golang.org/x/net/html"
)

// DefaultSkipTarget is the fragment the inserted skip link points at when
// the main region has no id.
const DefaultSkipTarget = "main-content"

type skipLink struct{}

func (skipLink) Info() Info {
	return Info{
		ID:        IDSkipLink,
		Name:      "Pages must offer a way to bypass repeated blocks",
		Criterion: "2.4.1",
		Level:     model.LevelA,
		Guidance:  "Place a \"Skip to main content\" link before the navigation, pointing at the id of the main region, so keyboard users can bypass repeated blocks.",
	}
}

func (r skipLink) Check(doc *dom.Document, _ Options) ([]model.Finding, error) {
	body := doc.Body()
	if body == nil {
		return nil, nil
	}
	mainEl := first(doc, "main, [role=main]")
	ref := first(doc, "nav, [role=navigation]")
	if ref == nil {
		ref = mainEl
	}
	if ref == nil {
		for c := body.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				ref = c
				break
			}
		}
	}
	if ref == nil || inPageLinkBefore(body, ref) {
		return nil, nil
	}

	target := DefaultSkipTarget
	if mainEl != nil {
		if id := attr(mainEl, "id"); id != "" {
			target = id
		}
	}
	f := finding(doc, r.Info(), model.SeverityMinor, ref, "No skip link precedes the page navigation")
	f.AutoFixable = true
	f.FixValue = target
	f.SuggestedFix = fmt.Sprintf("Insert <a href=\"#%s\" class=\"skip-link\">Skip to main content</a> before this element and make sure the main region has id=%q.", target, target)
	return []model.Finding{f}, nil
}

func first(doc *dom.Document, selector string) *html.Node {
	if ns := nodes(doc, selector); len(ns) > 0 {
		return ns[0]
	}
	return nil
}

// inPageLinkBefore reports whether a fragment link appears in document
// order before ref is entered.
func inPageLinkBefore(body, ref *html.Node) bool {
	found, done := false, false
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if done {
			return
		}
		if n == ref {
			done = true
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			if href := attr(n, "href"); len(href) > 1 && strings.HasPrefix(href, "#") {
				found, done = true, true
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(body)
	return found
}
