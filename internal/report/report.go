// Package report builds the remediation report for a run: findings grouped
// by severity and rule, the most frequent problems, and prioritised
// guidance.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/rules"
	"github.com/raysh454/a11yscan/internal/scoring"
)

// TopRulesLimit caps RunReport.TopRules.
const TopRulesLimit = 5

// RuleGroup is every finding of one rule at one severity.
type RuleGroup struct {
	RuleID    string          `json:"rule_id"`
	Name      string          `json:"name"`
	Criterion string          `json:"wcag_criterion"`
	Count     int             `json:"count"`
	Open      int             `json:"open"`
	Findings  []model.Finding `json:"findings"`
}

// SeverityGroup holds the rule groups of one severity.
type SeverityGroup struct {
	Severity model.Severity `json:"severity"`
	Count    int            `json:"count"`
	Rules    []RuleGroup    `json:"rules"`
}

// RuleCount is one entry of the most frequent rules.
type RuleCount struct {
	RuleID string `json:"rule_id"`
	Name   string `json:"name"`
	Count  int    `json:"count"`
}

// Recommendation is one piece of prioritised guidance. Priority starts at 1.
type Recommendation struct {
	Priority int            `json:"priority"`
	RuleID   string         `json:"rule_id"`
	Severity model.Severity `json:"severity"`
	Count    int            `json:"count"`
	Text     string         `json:"text"`
}

// PageSummary is the per-page breakdown.
type PageSummary struct {
	URL        string          `json:"url"`
	Depth      int             `json:"depth"`
	StatusCode int             `json:"status_code,omitempty"`
	Counts     scoring.Counts  `json:"counts"`
	Error      *model.RunError `json:"error,omitempty"`
	RuleErrors int             `json:"rule_errors,omitempty"`
}

// RunReport is the full remediation report.
type RunReport struct {
	RunID       string           `json:"run_id"`
	URL         string           `json:"url"`
	WCAGLevel   model.WCAGLevel  `json:"wcag_level"`
	Status      model.ScanStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`

	// Score is the compliance score recorded at completion. CurrentScore
	// discounts findings fixed since.
	Score        *float64     `json:"compliance_score,omitempty"`
	CurrentScore *float64     `json:"current_score,omitempty"`
	Band         scoring.Band `json:"band,omitempty"`

	PagesScanned    int             `json:"pages_scanned"`
	PagesDiscovered int             `json:"pages_discovered"`
	Summary         scoring.Summary `json:"summary"`

	Groups   []SeverityGroup  `json:"groups"`
	TopRules []RuleCount      `json:"top_rules"`
	Guidance []Recommendation `json:"guidance"`
	Pages    []PageSummary    `json:"pages"`

	Error *model.RunError `json:"error,omitempty"`
}

// Build assembles the report for run. Output depends only on run, so the
// same run always yields the same report.
func Build(run *model.ScanRun) *RunReport {
	findings := run.Findings()
	r := &RunReport{
		RunID:           run.ID,
		URL:             run.Request.URL,
		WCAGLevel:       run.Request.WCAGLevel,
		Status:          run.Status,
		CreatedAt:       run.CreatedAt,
		CompletedAt:     run.CompletedAt,
		PagesScanned:    len(run.Pages),
		PagesDiscovered: run.PagesDiscovered,
		Summary:         scoring.Summarize(findings),
		Error:           run.Error,
	}
	if run.ComplianceScore != nil {
		score := *run.ComplianceScore
		current := scoring.CurrentScore(findings)
		r.Score = &score
		r.CurrentScore = &current
		r.Band = scoring.BandFor(score)
	}

	r.Groups = group(findings)
	r.TopRules = topRules(findings)
	r.Guidance = guidance(r.Groups)
	for _, p := range run.Pages {
		ps := PageSummary{
			URL:        p.URL,
			Depth:      p.Depth,
			StatusCode: p.StatusCode,
			Error:      p.Error,
			RuleErrors: len(p.RuleErrors),
		}
		for _, f := range p.Findings {
			switch f.Severity {
			case model.SeverityCritical:
				ps.Counts.Critical++
			case model.SeverityMajor:
				ps.Counts.Major++
			case model.SeverityMinor:
				ps.Counts.Minor++
			}
		}
		r.Pages = append(r.Pages, ps)
	}
	return r
}

func ruleName(id string) string {
	if info, ok := rules.Describe(id); ok {
		return info.Name
	}
	return id
}

func group(findings []model.Finding) []SeverityGroup {
	var out []SeverityGroup
	for _, sev := range model.Severities() {
		sg := SeverityGroup{Severity: sev}
		idx := map[string]int{}
		for _, f := range findings {
			if f.Severity != sev {
				continue
			}
			i, ok := idx[f.RuleID]
			if !ok {
				i = len(sg.Rules)
				idx[f.RuleID] = i
				sg.Rules = append(sg.Rules, RuleGroup{
					RuleID:    f.RuleID,
					Name:      ruleName(f.RuleID),
					Criterion: f.WCAGCriterion,
				})
			}
			rg := &sg.Rules[i]
			rg.Count++
			if f.Status == model.FindingOpen {
				rg.Open++
			}
			rg.Findings = append(rg.Findings, f)
			sg.Count++
		}
		if sg.Count == 0 {
			continue
		}
		sort.SliceStable(sg.Rules, func(a, b int) bool {
			if sg.Rules[a].Count != sg.Rules[b].Count {
				return sg.Rules[a].Count > sg.Rules[b].Count
			}
			return sg.Rules[a].RuleID < sg.Rules[b].RuleID
		})
		out = append(out, sg)
	}
	return out
}

func topRules(findings []model.Finding) []RuleCount {
	counts := map[string]int{}
	for _, f := range findings {
		counts[f.RuleID]++
	}
	out := make([]RuleCount, 0, len(counts))
	for id, n := range counts {
		out = append(out, RuleCount{RuleID: id, Name: ruleName(id), Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].RuleID < out[j].RuleID
	})
	if len(out) > TopRulesLimit {
		out = out[:TopRulesLimit]
	}
	return out
}

// guidance emits one recommendation per rule with open findings, ordered by
// its most severe open finding, then open count, then rule id.
func guidance(groups []SeverityGroup) []Recommendation {
	type agg struct {
		sev   model.Severity
		count int
		crit  string
	}
	byRule := map[string]*agg{}
	for _, sg := range groups {
		for _, rg := range sg.Rules {
			if rg.Open == 0 {
				continue
			}
			a, ok := byRule[rg.RuleID]
			if !ok {
				// Groups arrive most severe first, so the first one seen wins.
				a = &agg{sev: sg.Severity, crit: rg.Criterion}
				byRule[rg.RuleID] = a
			}
			a.count += rg.Open
		}
	}

	out := make([]Recommendation, 0, len(byRule))
	for id, a := range byRule {
		text := fmt.Sprintf("%s (%d open, WCAG %s).", ruleName(id), a.count, a.crit)
		if info, ok := rules.Describe(id); ok {
			text += " " + info.Guidance
		}
		out = append(out, Recommendation{RuleID: id, Severity: a.sev, Count: a.count, Text: text})
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := model.SeverityRank(out[i].Severity), model.SeverityRank(out[j].Severity)
		if ri != rj {
			return ri < rj
		}
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].RuleID < out[j].RuleID
	})
	for i := range out {
		out[i].Priority = i + 1
	}
	return out
}
