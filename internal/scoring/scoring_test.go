package scoring

import (
	"testing"

	"github.com/raysh454/a11yscan/internal/model"
	"github.com/stretchr/testify/assert"
)

func f(sev model.Severity, status model.FindingStatus) model.Finding {
	return model.Finding{Severity: sev, Status: status}
}

func TestFromCounts(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   Counts
		want float64
	}{
		{"empty", Counts{}, 100},
		{"mixed", Counts{Critical: 1, Major: 2, Minor: 3}, 74},
		{"one each", Counts{Critical: 1, Major: 1}, 85},
		{"floor at zero", Counts{Critical: 11}, 0},
		{"exactly zero", Counts{Critical: 10}, 0},
		{"minors only", Counts{Minor: 5}, 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromCounts(tt.in))
		})
	}
}

func TestScore_StatusHandling(t *testing.T) {
	t.Parallel()
	findings := []model.Finding{
		f(model.SeverityCritical, model.FindingOpen),
		f(model.SeverityMajor, model.FindingFixed),
		f(model.SeverityMajor, model.FindingIgnored),
		f(model.SeverityMinor, model.FindingOpen),
	}
	assert.Equal(t, 83.0, Score(findings))
	assert.Equal(t, 88.0, CurrentScore(findings))
}

func TestScore_MonotoneInFindings(t *testing.T) {
	t.Parallel()
	var findings []model.Finding
	prev := Score(findings)
	for _, sev := range []model.Severity{model.SeverityMinor, model.SeverityMajor, model.SeverityCritical, model.SeverityMinor} {
		findings = append(findings, f(sev, model.FindingOpen))
		next := Score(findings)
		assert.LessOrEqual(t, next, prev)
		assert.GreaterOrEqual(t, next, 0.0)
		prev = next
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	fixable := f(model.SeverityMajor, model.FindingOpen)
	fixable.AutoFixable = true
	fixedFixable := f(model.SeverityMajor, model.FindingFixed)
	fixedFixable.AutoFixable = true

	s := Summarize([]model.Finding{
		fixable,
		fixedFixable,
		f(model.SeverityCritical, model.FindingOpen),
		f(model.SeverityMinor, model.FindingIgnored),
	})

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, Counts{Critical: 1, Major: 2, Minor: 1}, s.BySeverity)
	assert.Equal(t, Counts{Critical: 1, Major: 1}, s.Open)
	assert.Equal(t, 1, s.Fixed)
	assert.Equal(t, 1, s.Ignored)
	assert.Equal(t, 1, s.AutoFixable)
	assert.Equal(t, 2, s.Open.Total())
	assert.Equal(t, 2, s.BySeverity.Of(model.SeverityMajor))
}

func TestBandFor(t *testing.T) {
	t.Parallel()
	assert.Equal(t, BandGood, BandFor(100))
	assert.Equal(t, BandGood, BandFor(90))
	assert.Equal(t, BandFair, BandFor(89.9))
	assert.Equal(t, BandFair, BandFor(70))
	assert.Equal(t, BandPoor, BandFor(69))
	assert.Equal(t, BandPoor, BandFor(0))
}
