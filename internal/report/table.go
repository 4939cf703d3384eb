package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/raysh454/a11yscan/internal/model"
)

// TableFormatter renders the report as coloured terminal tables.
type TableFormatter struct{}

func (f *TableFormatter) Format(w io.Writer, r *RunReport) error {
	fmt.Fprintf(w, "\n[%s] %s (WCAG %s)\n", r.RunID, r.URL, r.WCAGLevel)
	fmt.Fprintf(w, "  %s\n", scoreLine(r))
	fmt.Fprintf(w, "  Pages: %d scanned, %d discovered\n", r.PagesScanned, r.PagesDiscovered)
	if r.Error != nil {
		fmt.Fprintf(w, "  Error: %s: %s\n", r.Error.Kind, r.Error.Message)
	}

	if r.Summary.Total == 0 {
		fmt.Fprintln(w, "  No findings.")
	} else {
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Severity", "Rule", "WCAG", "Page", "Element", "Status", "Fix"})
		table.SetAutoWrapText(false)
		table.SetBorder(false)
		table.SetColumnSeparator("│")
		for _, sg := range r.Groups {
			for _, rg := range sg.Rules {
				for _, f := range rg.Findings {
					fix := "-"
					if f.AutoFixable {
						fix = "auto"
					}
					table.Append([]string{colorSeverity(f.Severity), f.RuleID, f.WCAGCriterion, f.PageURL, elementLabel(f), string(f.Status), fix})
				}
			}
		}
		table.Render()
	}
	fmt.Fprintf(w, "  Summary: %s\n", summaryLine(r))

	if len(r.Pages) > 0 {
		fmt.Fprintln(w, "\nPages:")
		pages := tablewriter.NewWriter(w)
		pages.SetHeader([]string{"URL", "Depth", "Status", "Critical", "Major", "Minor", "Error"})
		pages.SetAutoWrapText(false)
		pages.SetBorder(false)
		pages.SetColumnSeparator("│")
		for _, p := range r.Pages {
			errText := ""
			if p.Error != nil {
				errText = color.RedString(string(p.Error.Kind))
			}
			pages.Append([]string{
				p.URL, fmt.Sprint(p.Depth), fmt.Sprint(p.StatusCode),
				fmt.Sprint(p.Counts.Critical), fmt.Sprint(p.Counts.Major), fmt.Sprint(p.Counts.Minor),
				errText,
			})
		}
		pages.Render()
	}

	if len(r.Guidance) > 0 {
		fmt.Fprintln(w, "\nRecommendations:")
		for _, g := range r.Guidance {
			fmt.Fprintf(w, "  %d. [%s] %s\n", g.Priority, colorSeverity(g.Severity), g.Text)
		}
	}
	return nil
}

func colorSeverity(s model.Severity) string {
	switch s {
	case model.SeverityCritical:
		return color.RedString("CRITICAL")
	case model.SeverityMajor:
		return color.YellowString("MAJOR")
	case model.SeverityMinor:
		return color.CyanString("MINOR")
	default:
		return string(s)
	}
}

func elementLabel(f model.Finding) string {
	if f.ElementSelector == "" {
		return "(page)"
	}
	return f.ElementSelector
}
