package app

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/raysh454/a11yscan/internal/demosite"
	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/rules"
	"github.com/raysh454/a11yscan/internal/store"
	"github.com/raysh454/a11yscan/internal/testutil"
	"github.com/raysh454/a11yscan/internal/webclient"
)

const demoRoot = "https://demo.test/"

// newTestOrchestrator wires an orchestrator to an in-memory store and wc.
// mutate may adjust the default config before construction.
func newTestOrchestrator(t *testing.T, wc webclient.WebClient, mutate func(*Config)) *Orchestrator {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Fetcher.PageTimeout = 5 * time.Second
	if mutate != nil {
		mutate(cfg)
	}
	o, err := NewOrchestrator(cfg, store.NewMemoryStore(), wc, &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.Shutdown(ctx)
	})
	return o
}

func demoClient(version int) *testutil.DummyWebClient {
	return &testutil.DummyWebClient{Pages: demosite.Pages("https://demo.test", version)}
}

func demoRequest() model.ScanRequest {
	return model.ScanRequest{URL: demoRoot, MaxDepth: 2, MaxPages: 10}
}

func startAndWait(t *testing.T, o *Orchestrator, req model.ScanRequest) *model.ScanRun {
	t.Helper()
	id, err := o.StartScan(context.Background(), req)
	if err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	return waitRun(t, o, id)
}

func waitRun(t *testing.T, o *Orchestrator, id string) *model.ScanRun {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	run, err := o.Wait(ctx, id)
	if err != nil {
		t.Fatalf("Wait(%s): %v", id, err)
	}
	return run
}

func waitStatus(t *testing.T, o *Orchestrator, id string, want model.ScanStatus) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st, err := o.GetRunStatus(context.Background(), id)
		if err == nil && st.Status == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("run %s never reached %s", id, want)
}

// ─── Construction ──────────────────────────────────────────────────────

func TestNewOrchestrator_RequiresCollaborators(t *testing.T) {
	t.Parallel()
	if _, err := NewOrchestrator(nil, nil, &testutil.DummyWebClient{}, nil); err == nil {
		t.Error("expected error for nil store")
	}
	if _, err := NewOrchestrator(nil, store.NewMemoryStore(), nil, nil); err == nil {
		t.Error("expected error for nil webclient")
	}
	o, err := NewOrchestrator(nil, store.NewMemoryStore(), &testutil.DummyWebClient{}, nil)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	if o.cfg.RunTimeout != DefaultRunTimeout {
		t.Errorf("expected default run timeout, got %s", o.cfg.RunTimeout)
	}
	if len(o.Rules()) != len(rules.Default()) {
		t.Errorf("expected default rule set, got %d rules", len(o.Rules()))
	}
}

// ─── Scan lifecycle ────────────────────────────────────────────────────

func TestStartScan_AuditsDemoSite(t *testing.T) {
	t.Parallel()
	o := newTestOrchestrator(t, demoClient(demosite.VersionBroken), nil)

	run := startAndWait(t, o, demoRequest())
	if run.Status != model.StatusCompleted {
		t.Fatalf("expected Completed, got %s (%+v)", run.Status, run.Error)
	}
	if run.ComplianceScore == nil || *run.ComplianceScore != 61 {
		t.Fatalf("expected score 61, got %v", run.ComplianceScore)
	}
	if run.StartedAt == nil || run.CompletedAt == nil {
		t.Error("expected start and completion times")
	}

	wantPages := []string{demoRoot, "https://demo.test/catalog", "https://demo.test/contact", "https://demo.test/books/1"}
	if len(run.Pages) != len(wantPages) {
		t.Fatalf("expected %d pages, got %d", len(wantPages), len(run.Pages))
	}
	for i, p := range run.Pages {
		if p.URL != wantPages[i] || p.Seq != i {
			t.Errorf("page %d = %s (seq %d), want %s", i, p.URL, p.Seq, wantPages[i])
		}
	}
	if run.PagesDiscovered != 4 {
		t.Errorf("expected 4 pages discovered, got %d", run.PagesDiscovered)
	}

	missing := run.Pages[3]
	if missing.Error == nil || missing.Error.Kind != model.FetchError {
		t.Errorf("expected FetchError marker on missing page, got %+v", missing.Error)
	}
	if len(missing.Findings) != 0 {
		t.Errorf("expected no findings on errored page")
	}

	seen := map[string]bool{}
	for _, f := range run.Findings() {
		if f.RunID != run.ID {
			t.Errorf("finding %s has run id %q", f.ID, f.RunID)
		}
		if seen[f.ID] {
			t.Errorf("duplicate finding id %s", f.ID)
		}
		seen[f.ID] = true
		if f.Status != model.FindingOpen {
			t.Errorf("expected Open finding, got %s", f.Status)
		}
	}
	if len(seen) != 7 {
		t.Errorf("expected 7 findings, got %d", len(seen))
	}
}

// A page whose only defects are one image without alt and one text block
// at about 2:1 contrast yields exactly those two findings and scores 85.
func TestStartScan_ImageAndContrastOnly(t *testing.T) {
	t.Parallel()
	const page = `<!DOCTYPE html><html lang="en"><head><title>Gallery</title></head><body>
<a href="#main">Skip to main content</a>
<nav><a href="/">Home</a></nav>
<main id="main">
<h1>Gallery</h1>
<img src="/static/harbour.png">
<p style="color:#b5b5b5">Pale caption text</p>
</main>
</body></html>`
	wc := &testutil.DummyWebClient{Pages: map[string]string{"https://gallery.test/": page}}
	o := newTestOrchestrator(t, wc, nil)

	run := startAndWait(t, o, model.ScanRequest{URL: "https://gallery.test/", MaxDepth: 0, MaxPages: 1})
	if run.Status != model.StatusCompleted {
		t.Fatalf("expected Completed, got %s (%+v)", run.Status, run.Error)
	}
	findings := run.Findings()
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d: %+v", len(findings), findings)
	}
	want := map[string]struct {
		severity  model.Severity
		criterion string
	}{
		rules.IDImageAlt:      {model.SeverityMajor, "1.1.1"},
		rules.IDColorContrast: {model.SeverityCritical, "1.4.3"},
	}
	for _, f := range findings {
		w, ok := want[f.RuleID]
		if !ok {
			t.Errorf("unexpected finding %s", f.RuleID)
			continue
		}
		if f.Severity != w.severity || f.WCAGCriterion != w.criterion {
			t.Errorf("%s: got %s %s, want %s %s", f.RuleID, f.Severity, f.WCAGCriterion, w.severity, w.criterion)
		}
		delete(want, f.RuleID)
	}
	if run.ComplianceScore == nil || *run.ComplianceScore != 85 {
		t.Fatalf("expected score 85, got %v", run.ComplianceScore)
	}
}

func TestStartScan_FixedSiteScoresFull(t *testing.T) {
	t.Parallel()
	o := newTestOrchestrator(t, demoClient(demosite.VersionFixed), nil)

	run := startAndWait(t, o, demoRequest())
	if run.ComplianceScore == nil || *run.ComplianceScore != 100 {
		t.Fatalf("expected score 100, got %v", run.ComplianceScore)
	}
	if n := len(run.Findings()); n != 0 {
		t.Errorf("expected no findings, got %d", n)
	}
}

func TestStartScan_OverHTTP(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(demosite.New(demosite.DefaultConfig()).Handler())
	defer srv.Close()

	wc, err := webclient.NewWebClient(webclient.DefaultConfig(), &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("NewWebClient: %v", err)
	}
	defer wc.Close()
	o := newTestOrchestrator(t, wc, nil)

	run := startAndWait(t, o, model.ScanRequest{URL: srv.URL + "/", MaxDepth: 2, MaxPages: 10})
	if run.Status != model.StatusCompleted {
		t.Fatalf("expected Completed, got %s (%+v)", run.Status, run.Error)
	}
	if *run.ComplianceScore != 61 {
		t.Errorf("expected score 61, got %v", *run.ComplianceScore)
	}
}

func TestFindingIDs_AreDeterministic(t *testing.T) {
	t.Parallel()
	o := newTestOrchestrator(t, demoClient(demosite.VersionBroken), nil)
	run := startAndWait(t, o, demoRequest())

	for _, p := range run.Pages {
		ordinals := map[string]int{}
		for _, f := range p.Findings {
			key := f.RuleID + "|" + f.ElementSelector
			want := FindingID(run.ID, p.URL, f.RuleID, f.ElementSelector, ordinals[key])
			ordinals[key]++
			if f.ID != want {
				t.Errorf("finding id %s, want %s", f.ID, want)
			}
		}
	}
	if FindingID(run.ID, demoRoot, "image-alt", "img", 0) == FindingID(run.ID, demoRoot, "image-alt", "img", 1) {
		t.Error("ordinal must separate ids")
	}
}

func TestStartScan_InvalidRequest(t *testing.T) {
	t.Parallel()
	o := newTestOrchestrator(t, demoClient(demosite.VersionBroken), nil)

	for _, req := range []model.ScanRequest{
		{URL: ""},
		{URL: "ftp://demo.test/"},
		{URL: demoRoot, WCAGLevel: "AAAA"},
		{URL: demoRoot, MaxDepth: -1, MaxPages: 3},
	} {
		_, err := o.StartScan(context.Background(), req)
		if !model.IsKind(err, model.InvalidInput) {
			t.Errorf("StartScan(%+v): expected InvalidInput, got %v", req, err)
		}
	}
	runs, err := o.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no runs recorded, got %d", len(runs))
	}
}

func TestStartScan_UnreachableSeedFails(t *testing.T) {
	t.Parallel()
	wc := demoClient(demosite.VersionBroken)
	wc.FailURLs = map[string]bool{demoRoot: true}
	o := newTestOrchestrator(t, wc, nil)

	run := startAndWait(t, o, demoRequest())
	if run.Status != model.StatusFailed {
		t.Fatalf("expected Failed, got %s", run.Status)
	}
	if run.Error == nil || run.Error.Kind != model.OrchestrationFailure || run.Error.Message == "" {
		t.Errorf("expected OrchestrationFailure with reason, got %+v", run.Error)
	}
	if run.ComplianceScore != nil {
		t.Error("failed run must not carry a score")
	}
}

func TestRunTimeout_FailsRun(t *testing.T) {
	t.Parallel()
	wc := demoClient(demosite.VersionBroken)
	wc.SlowURLs = map[string]time.Duration{demoRoot: 3 * time.Second}
	o := newTestOrchestrator(t, wc, func(c *Config) { c.RunTimeout = 50 * time.Millisecond })

	run := startAndWait(t, o, demoRequest())
	if run.Status != model.StatusFailed || run.Error == nil || run.Error.Kind != model.Timeout {
		t.Fatalf("expected Failed/Timeout, got %s %+v", run.Status, run.Error)
	}
}

func TestCancelScan(t *testing.T) {
	t.Parallel()
	wc := demoClient(demosite.VersionBroken)
	wc.SlowURLs = map[string]time.Duration{demoRoot: 3 * time.Second}
	o := newTestOrchestrator(t, wc, nil)
	ctx := context.Background()

	id, err := o.StartScan(ctx, demoRequest())
	if err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	if err := o.CancelScan(ctx, id); err != nil {
		t.Fatalf("CancelScan: %v", err)
	}
	run := waitRun(t, o, id)
	if run.Status != model.StatusFailed || run.Error == nil || run.Error.Kind != model.Cancelled {
		t.Fatalf("expected Failed/Cancelled, got %s %+v", run.Status, run.Error)
	}

	if err := o.CancelScan(ctx, id); !errors.Is(err, ErrRunFinished) {
		t.Errorf("expected ErrRunFinished, got %v", err)
	}
	if err := o.CancelScan(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestMaxConcurrentRuns_QueuesAsPending(t *testing.T) {
	t.Parallel()
	wc := &testutil.DummyWebClient{
		Pages:         map[string]string{demoRoot: "<html><body><main><h1>x</h1></main></body></html>"},
		ResponseDelay: 200 * time.Millisecond,
	}
	o := newTestOrchestrator(t, wc, func(c *Config) { c.MaxConcurrentRuns = 1 })
	ctx := context.Background()

	first, err := o.StartScan(ctx, demoRequest())
	if err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	waitStatus(t, o, first, model.StatusInProgress)

	second, err := o.StartScan(ctx, demoRequest())
	if err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	st, err := o.GetRunStatus(ctx, second)
	if err != nil {
		t.Fatalf("GetRunStatus: %v", err)
	}
	if st.Status != model.StatusPending {
		t.Errorf("expected second run Pending, got %s", st.Status)
	}

	for _, id := range []string{first, second} {
		if run := waitRun(t, o, id); run.Status != model.StatusCompleted {
			t.Errorf("run %s ended %s", id, run.Status)
		}
	}
	if wc.MaxInFlight() != 1 {
		t.Errorf("expected one fetch at a time, got %d", wc.MaxInFlight())
	}
}

func TestAuditPanic_FailsRun(t *testing.T) {
	t.Parallel()
	o := newTestOrchestrator(t, demoClient(demosite.VersionBroken), nil)
	o.engine = nil

	run := startAndWait(t, o, demoRequest())
	if run.Status != model.StatusFailed || run.Error == nil || run.Error.Kind != model.OrchestrationFailure {
		t.Fatalf("expected Failed/OrchestrationFailure, got %s %+v", run.Status, run.Error)
	}
}

// ─── Status & reporting ────────────────────────────────────────────────

func TestGetRunStatus(t *testing.T) {
	t.Parallel()
	o := newTestOrchestrator(t, demoClient(demosite.VersionBroken), nil)
	run := startAndWait(t, o, demoRequest())

	st, err := o.GetRunStatus(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRunStatus: %v", err)
	}
	if st.Progress != 1 || st.PagesScanned != 4 || st.PagesDiscovered != 4 {
		t.Errorf("unexpected progress %+v", st)
	}
	if st.Summary == nil || st.Summary.Total != 7 {
		t.Errorf("expected summary of 7 findings, got %+v", st.Summary)
	}

	if _, err := o.GetRunStatus(context.Background(), "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestStatusOf_Progress(t *testing.T) {
	t.Parallel()
	run := &model.ScanRun{
		ID:              "r",
		Status:          model.StatusInProgress,
		Pages:           []model.PageResult{{URL: "a"}},
		PagesDiscovered: 4,
	}
	if got := statusOf(run).Progress; got != 0.25 {
		t.Errorf("expected 0.25, got %v", got)
	}
	run.PagesDiscovered = 0
	if got := statusOf(run).Progress; got != 0 {
		t.Errorf("expected 0 with nothing discovered, got %v", got)
	}
}

func TestGetRunReport(t *testing.T) {
	t.Parallel()
	o := newTestOrchestrator(t, demoClient(demosite.VersionBroken), nil)
	run := startAndWait(t, o, demoRequest())

	rep, err := o.GetRunReport(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRunReport: %v", err)
	}
	if rep.PagesScanned != 4 || len(rep.Guidance) == 0 {
		t.Errorf("unexpected report %+v", rep)
	}
	if rep.Guidance[0].Severity != model.SeverityCritical {
		t.Errorf("expected critical guidance first, got %s", rep.Guidance[0].Severity)
	}
}

func TestListFindings_Filters(t *testing.T) {
	t.Parallel()
	o := newTestOrchestrator(t, demoClient(demosite.VersionBroken), func(c *Config) { c.RunRetention = 0 })
	run := startAndWait(t, o, demoRequest())
	ctx := context.Background()

	crit, err := o.ListFindings(ctx, run.ID, store.FindingFilter{Severity: model.SeverityCritical})
	if err != nil {
		t.Fatalf("ListFindings: %v", err)
	}
	if len(crit) != 2 {
		t.Errorf("expected 2 critical findings, got %d", len(crit))
	}
	alt, err := o.ListFindings(ctx, run.ID, store.FindingFilter{RuleID: rules.IDImageAlt, Status: model.FindingOpen})
	if err != nil {
		t.Fatalf("ListFindings: %v", err)
	}
	if len(alt) != 2 {
		t.Errorf("expected 2 open image-alt findings, got %d", len(alt))
	}
	if _, err := o.ListFindings(ctx, "missing", store.FindingFilter{}); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	t.Parallel()
	o := newTestOrchestrator(t, demoClient(demosite.VersionBroken), nil)
	a := startAndWait(t, o, demoRequest())
	time.Sleep(2 * time.Millisecond)
	b := startAndWait(t, o, demoRequest())

	runs, err := o.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != b.ID || runs[1].ID != a.ID {
		t.Fatalf("unexpected order %v", runs)
	}
	if runs[0].Pages != nil {
		t.Error("ListRuns must return headers only")
	}
}

func TestSubscribe_EndsWithResult(t *testing.T) {
	t.Parallel()
	wc := demoClient(demosite.VersionBroken)
	wc.ResponseDelay = 10 * time.Millisecond
	o := newTestOrchestrator(t, wc, nil)
	ctx := context.Background()

	id, err := o.StartScan(ctx, demoRequest())
	if err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	events, unsubscribe, err := o.Subscribe(ctx, id)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsubscribe()

	var last RunEvent
	timeout := time.After(10 * time.Second)
	for done := false; !done; {
		select {
		case ev, ok := <-events:
			if !ok {
				done = true
				continue
			}
			if ev.RunID != id {
				t.Errorf("event for wrong run %s", ev.RunID)
			}
			last = ev
		case <-timeout:
			t.Fatal("event stream never closed")
		}
	}
	if !last.Final() || last.Status != model.StatusCompleted || last.Score == nil {
		t.Errorf("expected final Completed event with score, got %+v", last)
	}

	// A finished run replays only its result.
	replay, _, err := o.Subscribe(ctx, id)
	if err != nil {
		t.Fatalf("Subscribe after completion: %v", err)
	}
	ev, ok := <-replay
	if !ok || !ev.Final() {
		t.Errorf("expected result replay, got %+v", ev)
	}
	if _, ok := <-replay; ok {
		t.Error("expected replay channel to be closed")
	}
}

// ─── Fixes & overrides ─────────────────────────────────────────────────

func TestApplyFixes_KeepsHistoricalScore(t *testing.T) {
	t.Parallel()
	o := newTestOrchestrator(t, demoClient(demosite.VersionBroken), nil)
	run := startAndWait(t, o, demoRequest())
	ctx := context.Background()

	res, err := o.ApplyFixes(ctx, run.ID, nil)
	if err != nil {
		t.Fatalf("ApplyFixes: %v", err)
	}
	if res.AppliedCount != 4 || len(res.Failures) != 0 {
		t.Fatalf("expected 4 fixes and no failures, got %+v", res)
	}

	rep, err := o.GetRunReport(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRunReport: %v", err)
	}
	if *rep.Score != 61 {
		t.Errorf("historical score changed to %v", *rep.Score)
	}
	if rep.CurrentScore == nil || *rep.CurrentScore != 83 {
		t.Errorf("expected current score 83, got %v", rep.CurrentScore)
	}

	again, err := o.ApplyFixes(ctx, run.ID, nil)
	if err != nil {
		t.Fatalf("ApplyFixes again: %v", err)
	}
	if again.AppliedCount != 0 {
		t.Errorf("expected nothing left to fix, got %d", again.AppliedCount)
	}
}

func TestApplyFixes_RejectsRunningRun(t *testing.T) {
	t.Parallel()
	wc := demoClient(demosite.VersionBroken)
	wc.SlowURLs = map[string]time.Duration{demoRoot: 3 * time.Second}
	o := newTestOrchestrator(t, wc, nil)
	ctx := context.Background()

	id, err := o.StartScan(ctx, demoRequest())
	if err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	if _, err := o.ApplyFixes(ctx, id, nil); !errors.Is(err, ErrRunNotCompleted) {
		t.Errorf("expected ErrRunNotCompleted, got %v", err)
	}
	if _, err := o.IgnoreFinding(ctx, id, "x"); !errors.Is(err, ErrRunNotCompleted) {
		t.Errorf("expected ErrRunNotCompleted, got %v", err)
	}
	_ = o.CancelScan(ctx, id)
}

func TestIgnoreFinding(t *testing.T) {
	t.Parallel()
	o := newTestOrchestrator(t, demoClient(demosite.VersionBroken), nil)
	run := startAndWait(t, o, demoRequest())
	ctx := context.Background()

	crit, err := o.ListFindings(ctx, run.ID, store.FindingFilter{RuleID: rules.IDFormLabel})
	if err != nil || len(crit) != 1 {
		t.Fatalf("expected one form-label finding, got %d (%v)", len(crit), err)
	}
	f, err := o.IgnoreFinding(ctx, run.ID, crit[0].ID)
	if err != nil {
		t.Fatalf("IgnoreFinding: %v", err)
	}
	if f.Status != model.FindingIgnored {
		t.Errorf("expected Ignored, got %s", f.Status)
	}

	ignored, err := o.ListFindings(ctx, run.ID, store.FindingFilter{Status: model.FindingIgnored})
	if err != nil {
		t.Fatalf("ListFindings: %v", err)
	}
	if len(ignored) != 1 || ignored[0].ID != crit[0].ID {
		t.Errorf("expected the ignored finding to be stored, got %v", ignored)
	}
}

// ─── Housekeeping ──────────────────────────────────────────────────────

func TestCheckContrast(t *testing.T) {
	t.Parallel()
	o := newTestOrchestrator(t, &testutil.DummyWebClient{}, nil)

	res, err := o.CheckContrast("#000", "#fff", model.TextNormal)
	if err != nil {
		t.Fatalf("CheckContrast: %v", err)
	}
	if !res.PassesAA || !res.PassesAAA {
		t.Errorf("black on white must pass, got %+v", res)
	}
	if _, err := o.CheckContrast("nope", "#fff", model.TextNormal); !model.IsKind(err, model.InvalidInput) {
		t.Errorf("expected InvalidInput, got %v", err)
	}
}

func TestRetention_ServesFromStore(t *testing.T) {
	t.Parallel()
	o := newTestOrchestrator(t, demoClient(demosite.VersionBroken), func(c *Config) { c.RunRetention = time.Millisecond })
	run := startAndWait(t, o, demoRequest())

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, cached := o.state(run.ID); !cached {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("run never evicted")
		}
		time.Sleep(5 * time.Millisecond)
	}

	st, err := o.GetRunStatus(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRunStatus: %v", err)
	}
	if st.Status != model.StatusCompleted || *st.Score != 61 || st.PagesScanned != 4 {
		t.Errorf("unexpected stored status %+v", st)
	}
}

func TestPurgeOlderThan(t *testing.T) {
	t.Parallel()
	o := newTestOrchestrator(t, demoClient(demosite.VersionBroken), nil)
	run := startAndWait(t, o, demoRequest())
	ctx := context.Background()

	n, err := o.PurgeOlderThan(ctx, time.Hour)
	if err != nil {
		t.Fatalf("PurgeOlderThan: %v", err)
	}
	if n != 0 {
		t.Errorf("expected nothing purged, got %d", n)
	}

	time.Sleep(2 * time.Millisecond)
	n, err = o.PurgeOlderThan(ctx, 0)
	if err != nil {
		t.Fatalf("PurgeOlderThan: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 run purged, got %d", n)
	}
	if _, err := o.GetRunStatus(ctx, run.ID); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected purged run to be gone, got %v", err)
	}
}

func TestShutdown_CancelsRunsAndRejectsNewOnes(t *testing.T) {
	t.Parallel()
	wc := demoClient(demosite.VersionBroken)
	wc.SlowURLs = map[string]time.Duration{demoRoot: 3 * time.Second}
	st := store.NewMemoryStore()
	o, err := NewOrchestrator(nil, st, wc, &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	ctx := context.Background()

	id, err := o.StartScan(ctx, demoRequest())
	if err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := o.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	stored, err := st.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if stored.Status != model.StatusFailed || stored.Error == nil || stored.Error.Kind != model.Cancelled {
		t.Errorf("expected persisted Failed/Cancelled, got %s %+v", stored.Status, stored.Error)
	}
	if _, err := o.StartScan(ctx, demoRequest()); !errors.Is(err, ErrShuttingDown) {
		t.Errorf("expected ErrShuttingDown, got %v", err)
	}
}
