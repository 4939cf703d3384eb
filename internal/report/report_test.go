package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/rules"
	"github.com/raysh454/a11yscan/internal/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fnd(id, page, rule string, sev model.Severity, status model.FindingStatus) model.Finding {
	return model.Finding{
		ID: id, RunID: "run-1", PageURL: page, RuleID: rule, Severity: sev,
		WCAGCriterion: "1.1.1", Status: status, ElementSelector: "html > body > img",
		Description: "d|pipe", SuggestedFix: "fix it", AutoFixable: rule == rules.IDImageAlt,
	}
}

func sampleRun() *model.ScanRun {
	score := 68.0
	done := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &model.ScanRun{
		ID:              "run-1",
		Request:         model.ScanRequest{URL: "https://site.test/", WCAGLevel: model.LevelAA, MaxDepth: 1, MaxPages: 5},
		Status:          model.StatusCompleted,
		CreatedAt:       done.Add(-time.Minute),
		CompletedAt:     &done,
		PagesDiscovered: 3,
		ComplianceScore: &score,
		Pages: []model.PageResult{
			{
				URL: "https://site.test/", Depth: 0, StatusCode: 200,
				Findings: []model.Finding{
					fnd("f1", "https://site.test/", rules.IDImageAlt, model.SeverityMajor, model.FindingOpen),
					fnd("f2", "https://site.test/", rules.IDColorContrast, model.SeverityCritical, model.FindingOpen),
					fnd("f3", "https://site.test/", rules.IDLandmarks, model.SeverityMinor, model.FindingOpen),
				},
			},
			{
				URL: "https://site.test/a", Depth: 1, StatusCode: 200,
				Findings: []model.Finding{
					fnd("f4", "https://site.test/a", rules.IDImageAlt, model.SeverityMajor, model.FindingFixed),
					fnd("f5", "https://site.test/a", rules.IDImageAlt, model.SeverityMajor, model.FindingOpen),
					fnd("f6", "https://site.test/a", rules.IDColorContrast, model.SeverityMajor, model.FindingIgnored),
				},
				RuleErrors: []model.RuleError{{RuleID: "x", Message: "boom"}},
			},
			{
				URL: "https://site.test/b", Depth: 1, StatusCode: 500,
				Error: &model.RunError{Kind: model.FetchError, Message: "http status 500"},
			},
		},
	}
}

// ─── Build ───

func TestBuild_Grouping(t *testing.T) {
	t.Parallel()
	r := Build(sampleRun())

	require.Len(t, r.Groups, 3)
	assert.Equal(t, model.SeverityCritical, r.Groups[0].Severity)
	assert.Equal(t, model.SeverityMajor, r.Groups[1].Severity)
	assert.Equal(t, model.SeverityMinor, r.Groups[2].Severity)

	major := r.Groups[1]
	assert.Equal(t, 4, major.Count)
	require.Len(t, major.Rules, 2)
	assert.Equal(t, rules.IDImageAlt, major.Rules[0].RuleID)
	assert.Equal(t, 3, major.Rules[0].Count)
	assert.Equal(t, 2, major.Rules[0].Open)
	assert.Equal(t, "Images must have alternative text", major.Rules[0].Name)
	assert.Equal(t, rules.IDColorContrast, major.Rules[1].RuleID)
	assert.Equal(t, 0, major.Rules[1].Open)

	var ids []string
	for _, f := range major.Rules[0].Findings {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"f1", "f4", "f5"}, ids)
}

func TestBuild_ScoresAndSummary(t *testing.T) {
	t.Parallel()
	r := Build(sampleRun())

	require.NotNil(t, r.Score)
	assert.Equal(t, 68.0, *r.Score)
	require.NotNil(t, r.CurrentScore)
	// Open: 1 critical, 2 major, 1 minor.
	assert.Equal(t, 78.0, *r.CurrentScore)
	assert.Equal(t, scoring.BandPoor, r.Band)

	assert.Equal(t, 6, r.Summary.Total)
	assert.Equal(t, 1, r.Summary.Fixed)
	assert.Equal(t, 1, r.Summary.Ignored)
	assert.Equal(t, 3, r.PagesScanned)
	assert.Equal(t, 3, r.PagesDiscovered)
}

func TestBuild_NoScoreBeforeCompletion(t *testing.T) {
	t.Parallel()
	run := sampleRun()
	run.Status = model.StatusInProgress
	run.ComplianceScore = nil
	run.CompletedAt = nil

	r := Build(run)
	assert.Nil(t, r.Score)
	assert.Nil(t, r.CurrentScore)
	assert.Empty(t, r.Band)
}

func TestBuild_TopRulesAndGuidance(t *testing.T) {
	t.Parallel()
	r := Build(sampleRun())

	require.Len(t, r.TopRules, 3)
	assert.Equal(t, RuleCount{RuleID: rules.IDImageAlt, Name: "Images must have alternative text", Count: 3}, r.TopRules[0])
	assert.Equal(t, rules.IDColorContrast, r.TopRules[1].RuleID)
	assert.Equal(t, 2, r.TopRules[1].Count)
	assert.Equal(t, rules.IDLandmarks, r.TopRules[2].RuleID)

	require.Len(t, r.Guidance, 3)
	assert.Equal(t, rules.IDColorContrast, r.Guidance[0].RuleID)
	assert.Equal(t, model.SeverityCritical, r.Guidance[0].Severity)
	assert.Equal(t, 1, r.Guidance[0].Priority)
	assert.Equal(t, rules.IDImageAlt, r.Guidance[1].RuleID)
	assert.Equal(t, 2, r.Guidance[1].Count)
	assert.Equal(t, rules.IDLandmarks, r.Guidance[2].RuleID)
	assert.Contains(t, r.Guidance[1].Text, "alt attribute")
}

func TestBuild_PageBreakdown(t *testing.T) {
	t.Parallel()
	r := Build(sampleRun())

	require.Len(t, r.Pages, 3)
	assert.Equal(t, scoring.Counts{Critical: 1, Major: 1, Minor: 1}, r.Pages[0].Counts)
	assert.Equal(t, 1, r.Pages[1].RuleErrors)
	require.NotNil(t, r.Pages[2].Error)
	assert.Equal(t, model.FetchError, r.Pages[2].Error.Kind)
}

func TestBuild_Deterministic(t *testing.T) {
	t.Parallel()
	a, err := json.Marshal(Build(sampleRun()))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		b, err := json.Marshal(Build(sampleRun()))
		require.NoError(t, err)
		assert.JSONEq(t, string(a), string(b))
	}
}

// ─── Formatters ───

func TestGetFormatter(t *testing.T) {
	t.Parallel()
	f, err := GetFormatter("table")
	require.NoError(t, err)
	assert.IsType(t, &TableFormatter{}, f)

	f, err = GetFormatter("json")
	require.NoError(t, err)
	assert.IsType(t, &JSONFormatter{}, f)

	f, err = GetFormatter("markdown")
	require.NoError(t, err)
	assert.IsType(t, &MarkdownFormatter{}, f)

	f, err = GetFormatter("html")
	require.NoError(t, err)
	assert.IsType(t, &HTMLFormatter{}, f)

	_, err = GetFormatter("xml")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown")
}

func TestTableFormatter(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, (&TableFormatter{}).Format(&buf, Build(sampleRun())))

	out := buf.String()
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "Score: 68/100 (poor), 78/100 after applied fixes")
	assert.Contains(t, out, "html > body > img")
	assert.Contains(t, out, "6 findings (1 critical, 4 major, 1 minor)")
	assert.Contains(t, out, "Recommendations:")
	assert.Contains(t, out, "https://site.test/b")
}

func TestTableFormatter_NoFindings(t *testing.T) {
	t.Parallel()
	run := sampleRun()
	run.Pages = []model.PageResult{{URL: "https://site.test/", StatusCode: 200}}
	var buf bytes.Buffer
	require.NoError(t, (&TableFormatter{}).Format(&buf, Build(run)))
	assert.Contains(t, buf.String(), "No findings")
}

func TestJSONFormatter(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).Format(&buf, Build(sampleRun())))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.Equal(t, 68.0, decoded["compliance_score"])
	assert.Len(t, decoded["groups"], 3)
}

func TestMarkdownFormatter(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, (&MarkdownFormatter{}).Format(&buf, Build(sampleRun())))

	out := buf.String()
	assert.Contains(t, out, "## Accessibility report: https://site.test/")
	assert.Contains(t, out, "| Severity | Rule | WCAG |")
	assert.Contains(t, out, "| **Critical** |")
	assert.Contains(t, out, "### Recommendations")
	// Every table row has the same number of unescaped pipes.
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "| **") {
			assert.Equal(t, 8, strings.Count(line, "|")-strings.Count(line, `\|`), line)
		}
	}
}

func TestHTMLFormatter_EscapesContent(t *testing.T) {
	t.Parallel()
	run := sampleRun()
	run.Pages[0].Findings[0].SuggestedFix = `<script>alert(1)</script>`
	var buf bytes.Buffer
	require.NoError(t, (&HTMLFormatter{}).Format(&buf, Build(run)))

	out := buf.String()
	assert.Contains(t, out, "<!DOCTYPE html>")
	assert.Contains(t, out, `class="badge critical"`)
	assert.NotContains(t, out, "<script>alert(1)</script>")
	assert.Contains(t, out, "&lt;script&gt;")
}
