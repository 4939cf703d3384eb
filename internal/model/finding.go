package model

import "time"

// Severity ranks how much a finding hurts users.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityMajor    Severity = "Major"
	SeverityMinor    Severity = "Minor"
)

// SeverityRank sorts Critical first.
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityMajor:
		return 1
	case SeverityMinor:
		return 2
	default:
		return 3
	}
}

// Severities lists every severity, most severe first.
func Severities() []Severity {
	return []Severity{SeverityCritical, SeverityMajor, SeverityMinor}
}

// FindingStatus tracks remediation of a finding.
type FindingStatus string

const (
	FindingOpen    FindingStatus = "Open"
	FindingFixed   FindingStatus = "Fixed"
	FindingIgnored FindingStatus = "Ignored"
)

// TextSize selects the contrast threshold pair.
type TextSize string

const (
	TextNormal TextSize = "normal"
	TextLarge  TextSize = "large"
)

// Finding is one detected violation.
type Finding struct {
	ID            string   `json:"id"`
	RunID         string   `json:"run_id"`
	PageURL       string   `json:"page_url"`
	RuleID        string   `json:"rule_id"`
	Severity      Severity `json:"severity"`
	WCAGCriterion string   `json:"wcag_criterion"`
	Description   string   `json:"description"`

	// ElementSelector locates the offending element; empty for page-level findings.
	ElementSelector string `json:"element_selector,omitempty"`

	// Snippet is the offending markup the fix transformation rewrites.
	Snippet string `json:"snippet,omitempty"`

	AutoFixable  bool   `json:"auto_fixable"`
	SuggestedFix string `json:"suggested_fix,omitempty"`

	// FixValue is the machine-readable input of the fix (alt text, colour, anchor id).
	FixValue string `json:"fix_value,omitempty"`

	Status       FindingStatus `json:"status"`
	FixedAt      *time.Time    `json:"fixed_at,omitempty"`
	AppliedPatch string        `json:"applied_patch,omitempty"`
}

// Clone copies f including its pointer fields.
func (f Finding) Clone() Finding {
	if f.FixedAt != nil {
		t := *f.FixedAt
		f.FixedAt = &t
	}
	return f
}
