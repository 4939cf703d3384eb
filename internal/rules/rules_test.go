package rules_test

import (
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/raysh454/a11yscan/internal/dom"
	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/rules"
	"github.com/raysh454/a11yscan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cleanChrome wraps body content in a page that passes the structural rules,
// so each test sees only the findings it sets up.
func cleanChrome(content string) string {
	return `<!doctype html><html><head><title>t</title></head><body>
<a href="#main">Skip to main content</a>
<nav><a href="/">Home</a></nav>
<main id="main"><h1>Title</h1>` + content + `</main></body></html>`
}

func parse(t *testing.T, body string) *dom.Document {
	t.Helper()
	d, err := dom.Parse("https://example.test/p", []byte(body))
	require.NoError(t, err)
	return d
}

func evaluate(t *testing.T, body string, level model.WCAGLevel) []model.Finding {
	t.Helper()
	e := rules.NewEngine(&testutil.DummyLogger{})
	fs, errs := e.Evaluate(parse(t, body), rules.Options{Level: level})
	require.Empty(t, errs)
	return fs
}

func byRule(fs []model.Finding, id string) []model.Finding {
	var out []model.Finding
	for _, f := range fs {
		if f.RuleID == id {
			out = append(out, f)
		}
	}
	return out
}

// ─── Engine ───

func TestEngine_CleanPageHasNoFindings(t *testing.T) {
	t.Parallel()
	fs := evaluate(t, cleanChrome(`<p>Plain text</p><img src="a.png" alt="A cat">
		<label for="q">Search</label><input id="q" type="text">`), model.LevelAAA)
	assert.Empty(t, fs)
}

func TestEngine_Deterministic(t *testing.T) {
	t.Parallel()
	page := `<html><body><img src="x.png"><p style="color:#aaa">low</p><h3>skip</h3><input type="text"></body></html>`
	first := evaluate(t, page, model.LevelAA)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, evaluate(t, page, model.LevelAA))
	}
	require.NotEmpty(t, first)
}

func TestEngine_OrderFollowsRegistration(t *testing.T) {
	t.Parallel()
	fs := evaluate(t, `<html><body><input type="text"><img src="x.png"></body></html>`, model.LevelAA)
	var ids []string
	for _, f := range fs {
		ids = append(ids, f.RuleID)
	}
	assert.Equal(t, []string{
		rules.IDImageAlt,
		rules.IDFormLabel,
		rules.IDHeadingStructure,
		rules.IDSkipLink,
		rules.IDLandmarks,
		rules.IDLandmarks,
	}, ids)
}

type panicRule struct{}

func (panicRule) Info() rules.Info {
	return rules.Info{ID: "boom", Level: model.LevelA}
}

func (panicRule) Check(*dom.Document, rules.Options) ([]model.Finding, error) {
	panic("nil map")
}

type errRule struct{}

func (errRule) Info() rules.Info {
	return rules.Info{ID: "broken", Level: model.LevelA}
}

func (errRule) Check(*dom.Document, rules.Options) ([]model.Finding, error) {
	return []model.Finding{{RuleID: "broken"}}, errors.New("bad state")
}

func TestEngine_RuleFailuresAreIsolated(t *testing.T) {
	t.Parallel()
	all := append([]rules.Rule{panicRule{}, errRule{}}, rules.Default()...)
	e := rules.NewEngine(&testutil.DummyLogger{}, all...)

	fs, errs := e.Evaluate(parse(t, `<html><body><img src="x.png"></body></html>`), rules.Options{Level: model.LevelAA})
	require.Len(t, errs, 2)
	assert.Equal(t, "boom", errs[0].RuleID)
	assert.Contains(t, errs[0].Message, "nil map")
	assert.Equal(t, "broken", errs[1].RuleID)
	assert.Equal(t, "bad state", errs[1].Message)

	assert.NotEmpty(t, byRule(fs, rules.IDImageAlt), "later rules still run")
	assert.Empty(t, byRule(fs, "broken"), "findings of a failed rule are dropped")
}

func TestEngine_LevelGating(t *testing.T) {
	t.Parallel()
	page := cleanChrome(`<p style="color:#999">grey</p><a href="/x" style="outline:none">x</a>`)

	atA := evaluate(t, page, model.LevelA)
	assert.Empty(t, byRule(atA, rules.IDColorContrast))
	assert.Empty(t, byRule(atA, rules.IDFocusVisible))

	atAA := evaluate(t, page, model.LevelAA)
	assert.Len(t, byRule(atAA, rules.IDColorContrast), 1)
	assert.Len(t, byRule(atAA, rules.IDFocusVisible), 1)
}

func TestDescribe(t *testing.T) {
	t.Parallel()
	info, ok := rules.Describe(rules.IDSkipLink)
	require.True(t, ok)
	assert.Equal(t, "2.4.1", info.Criterion)
	assert.NotEmpty(t, info.Guidance)

	_, ok = rules.Describe("nope")
	assert.False(t, ok)
}

// ─── image-alt ───

func TestImageAlt(t *testing.T) {
	t.Parallel()
	fs := byRule(evaluate(t, cleanChrome(`
		<img src="/img/team-photo_2024.jpg">
		<img src="/img/logo.png" title="Company logo">
		<img src="/a.png" alt="">
		<img src="/spacer.gif" role="presentation">
		<a href="/home"><img src="/icons/home.svg" alt=""></a>
		<a href="/about"><img src="/icons/i.svg" alt="">About</a>
		<figure><img src="/c/3f9a0b1c2d4e5f60.jpg"><figcaption>Sunset over the bay</figcaption></figure>
		<img src="/c/3f9a0b1c2d4e5f60.jpg">
		<div style="display:none"><img src="/hidden.png"></div>
	`), model.LevelAA), rules.IDImageAlt)

	require.Len(t, fs, 5)
	want := []string{"Team photo 2024", "Company logo", "Home", "Sunset over the bay", rules.FallbackAltText}
	for i, f := range fs {
		assert.Equal(t, model.SeverityMajor, f.Severity)
		assert.Equal(t, "1.1.1", f.WCAGCriterion)
		assert.True(t, f.AutoFixable)
		assert.Equal(t, model.FindingOpen, f.Status)
		assert.Equal(t, want[i], f.FixValue, "finding %d", i)
		assert.Contains(t, f.Snippet, "<img")
		assert.NotEmpty(t, f.ElementSelector)
	}
	assert.Contains(t, fs[2].Description, "only content of a link")
}

func TestImageAlt_NonASCIIFilenames(t *testing.T) {
	t.Parallel()
	fs := byRule(evaluate(t, cleanChrome(`
		<img src="/img/école-photo.jpg">
		<img src="/img/%C3%A9t%C3%A9_2024.png">
		<img src="/img/Øresund-bridge.webp">
	`), model.LevelAA), rules.IDImageAlt)

	require.Len(t, fs, 3)
	want := []string{"École photo", "Été 2024", "Øresund bridge"}
	for i, f := range fs {
		assert.True(t, utf8.ValidString(f.FixValue), "finding %d: %q", i, f.FixValue)
		assert.Equal(t, want[i], f.FixValue)
	}
}

// ─── color-contrast ───

func TestColorContrast(t *testing.T) {
	t.Parallel()
	fs := byRule(evaluate(t, cleanChrome(`
		<p id="ok" style="color:#767676">passes AA</p>
		<p id="major" style="color:#777777">just fails</p>
		<p id="critical" style="color:#b3b3b3">very light</p>
		<p id="large" style="color:#949494; font-size:24px">large passes</p>
		<div style="background:#000"><p id="dark" style="color:#333">dark on black</p></div>
		<div style="background:url(bg.png)"><p style="color:#eee">unknown bg</p></div>
		<p style="color:#eee; display:none">hidden</p>
	`), model.LevelAA), rules.IDColorContrast)

	require.Len(t, fs, 3)

	assert.Contains(t, fs[0].ElementSelector, "#major")
	assert.Equal(t, model.SeverityMajor, fs[0].Severity)
	assert.Contains(t, fs[0].Description, "4.48:1")

	assert.Contains(t, fs[1].ElementSelector, "#critical")
	assert.Equal(t, model.SeverityCritical, fs[1].Severity)

	assert.Contains(t, fs[2].ElementSelector, "#dark")
	assert.Equal(t, model.SeverityCritical, fs[2].Severity)

	for _, f := range fs {
		assert.True(t, f.AutoFixable)
		assert.Regexp(t, `^#[0-9a-f]{6}$`, f.FixValue)
		assert.Equal(t, "1.4.3", f.WCAGCriterion)
	}
}

func TestColorContrast_AAAUsesStricterThreshold(t *testing.T) {
	t.Parallel()
	fs := byRule(evaluate(t, cleanChrome(`<p style="color:#767676">AA only</p>`), model.LevelAAA), rules.IDColorContrast)
	require.Len(t, fs, 1)
	assert.Equal(t, "1.4.6", fs[0].WCAGCriterion)
	assert.Equal(t, model.SeverityMajor, fs[0].Severity)
}

// ─── form-label ───

func TestFormLabel(t *testing.T) {
	t.Parallel()
	fs := byRule(evaluate(t, cleanChrome(`
		<label for="a">A</label><input id="a">
		<label>B <input type="email"></label>
		<input aria-label="C">
		<span id="dlbl">D</span><input aria-labelledby="dlbl">
		<input type="hidden" name="csrf">
		<input type="submit" value="Go">
		<input id="bad1" type="text">
		<select id="bad2"><option>1</option></select>
		<textarea id="bad3"></textarea>
	`), model.LevelA), rules.IDFormLabel)

	require.Len(t, fs, 3)
	for _, f := range fs {
		assert.Equal(t, model.SeverityCritical, f.Severity)
		assert.False(t, f.AutoFixable)
	}
	assert.Contains(t, fs[0].ElementSelector, "bad1")
	assert.Contains(t, fs[1].ElementSelector, "bad2")
	assert.Contains(t, fs[2].ElementSelector, "bad3")
}

// ─── heading-structure ───

func TestHeadingStructure(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		body  string
		descs []string
	}{
		{"clean", `<h1>a</h1><h2>b</h2><h3>c</h3><h2>d</h2>`, nil},
		{"missing h1", `<h2>a</h2><h3>b</h3>`, []string{"Page has no level-one heading"}},
		{"skip", `<h1>a</h1><h2>b</h2><h4>c</h4><h6>d</h6>`, []string{
			"Heading level jumps from h2 to h4",
			"Heading level jumps from h4 to h6",
		}},
		{"no headings", `<p>x</p>`, []string{"Page has no level-one heading"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fs := byRule(evaluate(t, `<html><body>`+tt.body+`</body></html>`, model.LevelA), rules.IDHeadingStructure)
			var got []string
			for _, f := range fs {
				assert.Equal(t, model.SeverityMinor, f.Severity)
				got = append(got, f.Description)
			}
			assert.Equal(t, tt.descs, got)
		})
	}
}

// ─── skip-link ───

func TestSkipLink(t *testing.T) {
	t.Parallel()

	fs := byRule(evaluate(t, `<html><body><header><a href="/">Logo</a></header>
		<nav><a href="/a">A</a></nav><main id="content"><h1>x</h1></main></body></html>`, model.LevelA), rules.IDSkipLink)
	require.Len(t, fs, 1)
	assert.True(t, fs[0].AutoFixable)
	assert.Equal(t, "content", fs[0].FixValue)
	assert.Equal(t, "html > body > nav", fs[0].ElementSelector)
	assert.Contains(t, fs[0].Snippet, "<nav>")

	fs = byRule(evaluate(t, `<html><body><main><h1>x</h1></main></body></html>`, model.LevelA), rules.IDSkipLink)
	require.Len(t, fs, 1)
	assert.Equal(t, rules.DefaultSkipTarget, fs[0].FixValue)

	fs = byRule(evaluate(t, cleanChrome(""), model.LevelA), rules.IDSkipLink)
	assert.Empty(t, fs)
}

// ─── focus-visible ───

func TestFocusVisible(t *testing.T) {
	t.Parallel()
	page := `<html><head><style>
		.bare { outline: none }
		.ring { outline: 0 }
		.ring:focus-visible { box-shadow: 0 0 0 3px #005fcc }
		.thick:focus { outline: 2px solid #005fcc }
		.kill:focus { outline: none }
	</style></head><body>
		<a class="bare" href="/a">a</a>
		<button class="ring">b</button>
		<a class="bare thick" href="/c">c</a>
		<input class="kill" aria-label="d">
		<div class="bare">not focusable</div>
		<div class="bare" tabindex="0">focusable div</div>
		<button class="bare" disabled>disabled</button>
	</body></html>`

	fs := byRule(evaluate(t, page, model.LevelAA), rules.IDFocusVisible)
	require.Len(t, fs, 3)
	assert.Contains(t, fs[0].Snippet, `href="/a"`)
	assert.Contains(t, fs[1].Snippet, "<input")
	assert.Contains(t, fs[2].Snippet, `tabindex="0"`)
	for _, f := range fs {
		assert.Equal(t, model.SeverityMajor, f.Severity)
		assert.Equal(t, "2.4.7", f.WCAGCriterion)
	}
}

// ─── landmarks ───

func TestLandmarks(t *testing.T) {
	t.Parallel()

	fs := byRule(evaluate(t, `<html><body><h1>x</h1></body></html>`, model.LevelA), rules.IDLandmarks)
	require.Len(t, fs, 2)
	assert.Equal(t, "Page has no main landmark", fs[0].Description)
	assert.Equal(t, "Page has no navigation landmark", fs[1].Description)
	assert.Empty(t, fs[0].ElementSelector)

	fs = byRule(evaluate(t, `<html><body><div role="navigation"></div><div role="main"></div></body></html>`, model.LevelA), rules.IDLandmarks)
	assert.Empty(t, fs)
}
