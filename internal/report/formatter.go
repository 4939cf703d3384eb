package report

import (
	"fmt"
	"io"
)

// Formatter renders a report to a writer.
type Formatter interface {
	Format(w io.Writer, r *RunReport) error
}

// GetFormatter returns the formatter for format.
func GetFormatter(format string) (Formatter, error) {
	switch format {
	case "table", "":
		return &TableFormatter{}, nil
	case "json":
		return &JSONFormatter{}, nil
	case "markdown", "md":
		return &MarkdownFormatter{}, nil
	case "html":
		return &HTMLFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (supported: table, json, markdown, html)", format)
	}
}

func scoreLine(r *RunReport) string {
	if r.Score == nil {
		return fmt.Sprintf("Status: %s (no score yet)", r.Status)
	}
	line := fmt.Sprintf("Score: %.0f/100 (%s)", *r.Score, r.Band)
	if r.CurrentScore != nil && *r.CurrentScore != *r.Score {
		line += fmt.Sprintf(", %.0f/100 after applied fixes", *r.CurrentScore)
	}
	return line
}

func summaryLine(r *RunReport) string {
	s := r.Summary
	return fmt.Sprintf("%d findings (%d critical, %d major, %d minor), %d open, %d fixed, %d ignored, %d auto-fixable",
		s.Total, s.BySeverity.Critical, s.BySeverity.Major, s.BySeverity.Minor,
		s.Open.Total(), s.Fixed, s.Ignored, s.AutoFixable)
}
