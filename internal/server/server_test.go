package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raysh454/a11yscan/internal/app"
	"github.com/raysh454/a11yscan/internal/demosite"
	"github.com/raysh454/a11yscan/internal/server"
	"github.com/raysh454/a11yscan/internal/store"
	"github.com/raysh454/a11yscan/internal/testutil"
)

func newTestServer(t *testing.T) *server.Server {
	t.Helper()

	logger := &testutil.DummyLogger{}
	wc := &testutil.DummyWebClient{Pages: demosite.Pages("https://demo.test", demosite.VersionBroken)}
	orch, err := app.NewOrchestrator(app.DefaultConfig(), store.NewMemoryStore(), wc, logger)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = orch.Shutdown(ctx)
	})

	cfg := server.DefaultConfig()
	cfg.ListenAddr = ":0"
	cfg.Logger = logger
	s, err := server.NewServer(cfg, orch)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func doJSON(t *testing.T, s http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON response: %v (body: %s)", err, rec.Body.String())
	}
}

// completedScan starts a scan of the demo site and waits for it to finish.
func completedScan(t *testing.T, s *server.Server) string {
	t.Helper()
	rec := doJSON(t, s, "POST", "/scans", `{"url":"https://demo.test/","max_depth":2,"max_pages":10}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var started server.StartScanResponse
	decodeJSON(t, rec, &started)
	if started.RunID == "" || started.Status != "Pending" {
		t.Fatalf("unexpected start response: %+v", started)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	run, err := s.Orchestrator().Wait(ctx, started.RunID)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if run.Status != "Completed" {
		t.Fatalf("expected Completed, got %s (%+v)", run.Status, run.Error)
	}
	return started.RunID
}

// ─── CORS ──────────────────────────────────────────────────────────────

func TestServer_CORS_HeaderPresent(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/scans", "")

	origin := rec.Header().Get("Access-Control-Allow-Origin")
	if origin != "*" {
		t.Errorf("expected CORS origin *, got %q", origin)
	}
}

func TestServer_OptionsPreflight(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "OPTIONS", "/scans", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for OPTIONS, got %d", rec.Code)
	}
	if methods := rec.Header().Get("Access-Control-Allow-Methods"); methods != "GET, POST" {
		t.Errorf("unexpected Allow-Methods %q", methods)
	}
}

func TestNewServer_RequiresOrchestrator(t *testing.T) {
	t.Parallel()
	if _, err := server.NewServer(server.DefaultConfig(), nil); err == nil {
		t.Error("expected error for nil orchestrator")
	}
}

// ─── Scans ─────────────────────────────────────────────────────────────

func TestServer_StartScan_Rejects(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	for name, body := range map[string]string{
		"invalid json":  `{invalid}`,
		"unknown field": `{"url":"https://demo.test/","depth":3}`,
		"bad scheme":    `{"url":"ftp://demo.test/"}`,
		"bad level":     `{"url":"https://demo.test/","wcag_level":"B"}`,
		"missing url":   `{}`,
	} {
		rec := doJSON(t, s, "POST", "/scans", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, rec.Code)
			continue
		}
		var e server.ErrorResponse
		decodeJSON(t, rec, &e)
		if e.Kind != "InvalidInput" {
			t.Errorf("%s: expected InvalidInput kind, got %q", name, e.Kind)
		}
	}
}

func TestServer_ScanLifecycle(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	id := completedScan(t, s)

	rec := doJSON(t, s, "GET", "/scans/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var st app.RunStatus
	decodeJSON(t, rec, &st)
	if st.Progress != 1 || st.PagesScanned != 4 {
		t.Errorf("unexpected status: %+v", st)
	}
	if st.Score == nil || *st.Score != 61 {
		t.Errorf("expected score 61, got %v", st.Score)
	}

	rec = doJSON(t, s, "GET", "/scans/"+id+"/report", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for report, got %d", rec.Code)
	}
	var rep map[string]any
	decodeJSON(t, rec, &rep)
	if rep["compliance_score"] != float64(61) {
		t.Errorf("expected report score 61, got %v", rep["compliance_score"])
	}

	rec = doJSON(t, s, "GET", "/scans", "")
	var runs []map[string]any
	decodeJSON(t, rec, &runs)
	if len(runs) != 1 || runs[0]["id"] != id {
		t.Errorf("expected the run in the listing, got %v", runs)
	}

	rec = doJSON(t, s, "DELETE", "/scans/"+id, "")
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 cancelling a finished run, got %d", rec.Code)
	}
}

func TestServer_GetScan_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	for _, path := range []string{"/scans/nonexistent", "/scans/nonexistent/report", "/scans/nonexistent/findings"} {
		if rec := doJSON(t, s, "GET", path, ""); rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
	}
	if rec := doJSON(t, s, "DELETE", "/scans/nonexistent", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 cancelling unknown run, got %d", rec.Code)
	}
}

func TestServer_ListScans_BadLimit(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	if rec := doJSON(t, s, "GET", "/scans?limit=-1", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

// ─── Findings ──────────────────────────────────────────────────────────

func TestServer_ListFindings_Filters(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	id := completedScan(t, s)

	var all []map[string]any
	decodeJSON(t, doJSON(t, s, "GET", "/scans/"+id+"/findings", ""), &all)
	if len(all) != 7 {
		t.Errorf("expected 7 findings, got %d", len(all))
	}

	var critical []map[string]any
	decodeJSON(t, doJSON(t, s, "GET", "/scans/"+id+"/findings?severity=critical", ""), &critical)
	if len(critical) != 2 {
		t.Errorf("expected 2 critical findings, got %d", len(critical))
	}

	var none []map[string]any
	decodeJSON(t, doJSON(t, s, "GET", "/scans/"+id+"/findings?status=Fixed", ""), &none)
	if none == nil || len(none) != 0 {
		t.Errorf("expected an empty list of fixed findings, got %v", none)
	}

	if rec := doJSON(t, s, "GET", "/scans/"+id+"/findings?severity=bogus", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown severity, got %d", rec.Code)
	}
}

func TestServer_ApplyFixesAndIgnore(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	id := completedScan(t, s)

	rec := doJSON(t, s, "POST", "/scans/"+id+"/fixes", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res map[string]any
	decodeJSON(t, rec, &res)
	if res["applied_count"] != float64(4) {
		t.Errorf("expected 4 fixes applied, got %v", res["applied_count"])
	}

	var open []map[string]any
	decodeJSON(t, doJSON(t, s, "GET", "/scans/"+id+"/findings?status=open", ""), &open)
	if len(open) != 3 {
		t.Fatalf("expected 3 open findings, got %d", len(open))
	}
	findingID := open[0]["id"].(string)

	rec = doJSON(t, s, "POST", "/scans/"+id+"/findings/"+findingID+"/ignore", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 ignoring, got %d: %s", rec.Code, rec.Body.String())
	}
	var f map[string]any
	decodeJSON(t, rec, &f)
	if f["status"] != "Ignored" {
		t.Errorf("expected Ignored, got %v", f["status"])
	}

	if rec := doJSON(t, s, "POST", "/scans/"+id+"/findings/nonexistent/ignore", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown finding, got %d", rec.Code)
	}
	if rec := doJSON(t, s, "POST", "/scans/"+id+"/fixes", `not-json`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid JSON, got %d", rec.Code)
	}
}

// ─── Tools ─────────────────────────────────────────────────────────────

func TestServer_CheckContrast(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "POST", "/contrast", `{"foreground":"#000","background":"#fff"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res map[string]any
	decodeJSON(t, rec, &res)
	if res["ratio"] != float64(21) || res["passes_aaa"] != true {
		t.Errorf("unexpected contrast result: %v", res)
	}

	if rec := doJSON(t, s, "POST", "/contrast", `{"foreground":"nope","background":"#fff"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad colour, got %d", rec.Code)
	}
	if rec := doJSON(t, s, "POST", "/contrast", `{"foreground":"#000","background":"#fff","text_size":"huge"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad size, got %d", rec.Code)
	}
}

func TestServer_ListRules(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	var rs []map[string]any
	decodeJSON(t, doJSON(t, s, "GET", "/rules", ""), &rs)
	if len(rs) != 7 {
		t.Errorf("expected 7 rules, got %d", len(rs))
	}
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, "GET", "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp server.HealthResponse
	decodeJSON(t, rec, &resp)
	if resp.Status != "ok" {
		t.Fatalf("expected status ok, got %q", resp.Status)
	}
}

func TestServer_SwaggerDoc(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/swagger/doc.json", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/scans/{runID}/fixes") {
		t.Error("expected the fixes route in the swagger document")
	}
}

// ─── WebSocket ─────────────────────────────────────────────────────────

func TestServer_ScanWS_FinishedRun(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	id := completedScan(t, s)

	ts := httptest.NewServer(s)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/scans/" + id
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var ev app.RunEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if !ev.Final() || ev.Status != "Completed" || ev.RunID != id {
		t.Errorf("unexpected event: %+v", ev)
	}

	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal close after the result, got %v", err)
	}
}

func TestServer_ScanWS_UnknownRun(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/ws/scans/nonexistent", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
