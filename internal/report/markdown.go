package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/raysh454/a11yscan/internal/model"
)

// MarkdownFormatter renders the report as Markdown suitable for issues and
// pull-request descriptions.
type MarkdownFormatter struct{}

func (f *MarkdownFormatter) Format(w io.Writer, r *RunReport) error {
	fmt.Fprintf(w, "## Accessibility report: %s\n\n", escapeMarkdown(r.URL))
	fmt.Fprintf(w, "- Run: `%s`\n- WCAG level: %s\n- %s\n- Pages: %d scanned, %d discovered\n",
		r.RunID, r.WCAGLevel, scoreLine(r), r.PagesScanned, r.PagesDiscovered)
	if r.Error != nil {
		fmt.Fprintf(w, "\n> %s: %s\n", r.Error.Kind, escapeMarkdown(r.Error.Message))
	}
	fmt.Fprintln(w)

	if r.Summary.Total == 0 {
		fmt.Fprintln(w, "_No findings._")
		return nil
	}

	fmt.Fprintln(w, "| Severity | Rule | WCAG | Page | Element | Status | Suggested fix |")
	fmt.Fprintln(w, "|----------|------|------|------|---------|--------|---------------|")
	for _, sg := range r.Groups {
		for _, rg := range sg.Rules {
			for _, f := range rg.Findings {
				fmt.Fprintf(w, "| %s | %s | %s | %s | %s | %s | %s |\n",
					severityBadge(f.Severity),
					escapeMarkdown(rg.Name),
					f.WCAGCriterion,
					escapeMarkdown(f.PageURL),
					"`"+escapeMarkdown(elementLabel(f))+"`",
					f.Status,
					escapeMarkdown(f.SuggestedFix))
			}
		}
	}
	fmt.Fprintf(w, "\n**Summary:** %s\n", summaryLine(r))

	if len(r.Guidance) > 0 {
		fmt.Fprintln(w, "\n### Recommendations")
		fmt.Fprintln(w)
		for _, g := range r.Guidance {
			fmt.Fprintf(w, "%d. %s %s\n", g.Priority, severityBadge(g.Severity), escapeMarkdown(g.Text))
		}
	}
	return nil
}

// severityBadge returns a bold severity label.
func severityBadge(s model.Severity) string {
	return fmt.Sprintf("**%s**", string(s))
}

// escapeMarkdown escapes characters that would break table cells.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
