package report

import (
	"html/template"
	"io"
	"strings"

	"github.com/raysh454/a11yscan/internal/model"
)

// HTMLFormatter renders a self-contained HTML report.
type HTMLFormatter struct{}

func (f *HTMLFormatter) Format(w io.Writer, r *RunReport) error {
	return htmlTpl.Execute(w, r)
}

var funcMap = template.FuncMap{
	"severityClass": func(s model.Severity) string { return strings.ToLower(string(s)) },
	"scoreLine":     scoreLine,
	"summaryLine":   summaryLine,
	"element":       elementLabel,
}

var htmlTpl = template.Must(template.New("report").Funcs(funcMap).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Accessibility report: {{.URL}}</title>
<style>` + cssStyles + `</style>
</head>
<body>
<main class="container">
  <h1>Accessibility report</h1>
  <p class="meta">{{.URL}} &middot; WCAG {{.WCAGLevel}} &middot; run <code>{{.RunID}}</code></p>
  <p class="score">{{scoreLine .}}</p>
  <p>{{summaryLine .}}</p>
  {{with .Error}}<div class="error-box">{{.Kind}}: {{.Message}}</div>{{end}}

  {{range .Groups}}
  <section>
    <h2><span class="badge {{severityClass .Severity}}">{{.Severity}}</span> {{.Count}} findings</h2>
    {{range .Rules}}
    <h3>{{.Name}} <small>WCAG {{.Criterion}}, {{.Open}} open of {{.Count}}</small></h3>
    <table>
      <thead><tr><th scope="col">Page</th><th scope="col">Element</th><th scope="col">Status</th><th scope="col">Suggested fix</th></tr></thead>
      <tbody>
        {{range .Findings}}
        <tr>
          <td>{{.PageURL}}</td>
          <td><code>{{element .}}</code></td>
          <td>{{.Status}}</td>
          <td>{{.SuggestedFix}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
    {{end}}
  </section>
  {{else}}
  <p class="no-findings">No findings.</p>
  {{end}}

  {{if .Guidance}}
  <section>
    <h2>Recommendations</h2>
    <ol>
      {{range .Guidance}}<li><span class="badge {{severityClass .Severity}}">{{.Severity}}</span> {{.Text}}</li>{{end}}
    </ol>
  </section>
  {{end}}
</main>
</body>
</html>`))

const cssStyles = `
*{box-sizing:border-box;margin:0;padding:0}
body{font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,Helvetica,Arial,sans-serif;
     line-height:1.6;color:#1a1a2e;background:#f5f5fa;padding:2rem}
.container{max-width:1080px;margin:0 auto}
h1{margin-bottom:.5rem;font-size:1.8rem}
h2{margin:1.5rem 0 .75rem;font-size:1.3rem;border-bottom:2px solid #e0e0e0;padding-bottom:.3rem}
h3{margin:1rem 0 .5rem;font-size:1.05rem}
h3 small{color:#555;font-weight:400}
.meta{color:#444}
.score{font-size:1.2rem;font-weight:600;margin:.5rem 0}
.badge{display:inline-block;padding:2px 10px;border-radius:12px;font-size:.8rem;font-weight:700;color:#fff;text-transform:uppercase}
.badge.critical{background:#b71c1c}
.badge.major{background:#8a5300}
.badge.minor{background:#01579b}
table{width:100%;border-collapse:collapse;margin-bottom:1rem}
th,td{text-align:left;padding:.5rem .75rem;border-bottom:1px solid #e0e0e0;vertical-align:top}
th{background:#eaeaea;font-weight:600}
code{font-size:.85rem;word-break:break-all}
.error-box{background:#ffebee;color:#b71c1c;padding:.75rem 1rem;border-radius:6px;margin:1rem 0}
.no-findings{color:#555;font-style:italic}
ol{padding-left:1.5rem}
`
