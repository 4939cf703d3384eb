// Package scoring turns findings into a compliance score and summary counts.
package scoring

import (
	"math"

	"github.com/raysh454/a11yscan/internal/model"
)

// Per-finding deductions from a perfect score.
const (
	MaxScore       = 100.0
	WeightCritical = 10.0
	WeightMajor    = 5.0
	WeightMinor    = 2.0
)

// Counts tallies findings per severity.
type Counts struct {
	Critical int `json:"critical"`
	Major    int `json:"major"`
	Minor    int `json:"minor"`
}

// Total is the sum over all severities.
func (c Counts) Total() int { return c.Critical + c.Major + c.Minor }

// Of returns the count for s.
func (c Counts) Of(s model.Severity) int {
	switch s {
	case model.SeverityCritical:
		return c.Critical
	case model.SeverityMajor:
		return c.Major
	case model.SeverityMinor:
		return c.Minor
	}
	return 0
}

func (c *Counts) add(s model.Severity) {
	switch s {
	case model.SeverityCritical:
		c.Critical++
	case model.SeverityMajor:
		c.Major++
	case model.SeverityMinor:
		c.Minor++
	}
}

// FromCounts applies the weights: max(0, 100 - 10C - 5M - 2m).
func FromCounts(c Counts) float64 {
	s := MaxScore - WeightCritical*float64(c.Critical) - WeightMajor*float64(c.Major) - WeightMinor*float64(c.Minor)
	return math.Max(0, s)
}

// Score is the run's compliance score. Fixed findings still count: a fix
// applied after the scan does not change what the scan measured. Ignored
// findings are excluded.
func Score(findings []model.Finding) float64 {
	var c Counts
	for _, f := range findings {
		if f.Status == model.FindingOpen || f.Status == model.FindingFixed {
			c.add(f.Severity)
		}
	}
	return FromCounts(c)
}

// CurrentScore projects the score once applied fixes are live: only Open
// findings deduct.
func CurrentScore(findings []model.Finding) float64 {
	var c Counts
	for _, f := range findings {
		if f.Status == model.FindingOpen {
			c.add(f.Severity)
		}
	}
	return FromCounts(c)
}

// Summary aggregates a run's findings.
type Summary struct {
	Total int `json:"total"`

	// BySeverity counts every finding regardless of status.
	BySeverity Counts `json:"by_severity"`

	// Open counts what is still outstanding.
	Open Counts `json:"open"`

	Fixed       int `json:"fixed"`
	Ignored     int `json:"ignored"`
	AutoFixable int `json:"auto_fixable"`
}

// Summarize counts findings by severity and status. AutoFixable counts only
// Open findings, since those are the ones a fix request can still act on.
func Summarize(findings []model.Finding) Summary {
	var s Summary
	for _, f := range findings {
		s.Total++
		s.BySeverity.add(f.Severity)
		switch f.Status {
		case model.FindingOpen:
			s.Open.add(f.Severity)
			if f.AutoFixable {
				s.AutoFixable++
			}
		case model.FindingFixed:
			s.Fixed++
		case model.FindingIgnored:
			s.Ignored++
		}
	}
	return s
}

// Band buckets a score for display.
type Band string

const (
	BandGood Band = "good"
	BandFair Band = "fair"
	BandPoor Band = "poor"
)

// BandFor maps >=90 to good, >=70 to fair and anything lower to poor.
func BandFor(score float64) Band {
	switch {
	case score >= 90:
		return BandGood
	case score >= 70:
		return BandFair
	default:
		return BandPoor
	}
}
