package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/a11yscan/internal/app"
	"github.com/raysh454/a11yscan/internal/demosite"
	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/report"
	"github.com/raysh454/a11yscan/internal/server"
	"github.com/raysh454/a11yscan/internal/store"
	"github.com/raysh454/a11yscan/internal/testutil"
)

// resetFlags restores every flag to its default so values set by one
// invocation do not leak into the next.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// executeCmd runs the command tree and returns what it wrote to stdout.
// Progress and logs written to stderr are dropped.
func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	resetFlags(rootCmd)
	color.NoColor = true

	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs(args)

	// Capture stdout for anything that writes to os.Stdout directly.
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	var captured bytes.Buffer
	done := make(chan struct{})
	go func() {
		captured.ReadFrom(r)
		close(done)
	}()

	err := rootCmd.Execute()

	w.Close()
	os.Stdout = oldStdout
	<-done

	return out.String() + captured.String(), err
}

func demoServer(t *testing.T) *httptest.Server {
	t.Helper()
	site := demosite.New(demosite.Config{InitialVersion: demosite.VersionBroken})
	ts := httptest.NewServer(site.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestVersionCommand(t *testing.T) {
	output, err := executeCmd(t, "version")
	require.NoError(t, err)
	assert.Contains(t, output, "a11yscan version")
}

func TestScanMissingURL(t *testing.T) {
	_, err := executeCmd(t, "scan")
	assert.Error(t, err)
}

func TestScanUnknownFormat(t *testing.T) {
	_, err := executeCmd(t, "scan", "https://example.com", "-o", "yaml")
	assert.Error(t, err)
}

func TestScanInvalidURL(t *testing.T) {
	db := filepath.Join(t.TempDir(), "a11yscan.db")
	_, err := executeCmd(t, "scan", "ftp://example.com", "--db", db)
	assert.Error(t, err)
}

func TestScanWorkflow(t *testing.T) {
	ts := demoServer(t)
	db := filepath.Join(t.TempDir(), "a11yscan.db")

	output, err := executeCmd(t, "scan", ts.URL+"/", "--db", db, "--depth", "2", "--max-pages", "10", "-o", "json")
	require.NoError(t, err)

	var rep report.RunReport
	require.NoError(t, json.Unmarshal([]byte(output), &rep), output)
	require.NotNil(t, rep.Score)
	assert.Equal(t, 61.0, *rep.Score)
	assert.Equal(t, 4, rep.PagesScanned)
	assert.Equal(t, 7, rep.Summary.Total)
	runID := rep.RunID

	// Later invocations read the run back from the database.
	output, err = executeCmd(t, "runs", "--db", db, "-o", "json")
	require.NoError(t, err)
	var runs []model.ScanRun
	require.NoError(t, json.Unmarshal([]byte(output), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)

	output, err = executeCmd(t, "runs", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, output, runID)

	output, err = executeCmd(t, "status", runID, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, output, "Completed")
	assert.Contains(t, output, "Score:    61")

	output, err = executeCmd(t, "report", runID, "--db", db, "-o", "markdown")
	require.NoError(t, err)
	assert.Contains(t, output, "## Accessibility report")

	output, err = executeCmd(t, "fix", runID, "--db", db, "-o", "json")
	require.NoError(t, err)
	var res struct {
		AppliedCount int `json:"applied_count"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &res))
	assert.Equal(t, 4, res.AppliedCount)

	output, err = executeCmd(t, "report", runID, "--db", db, "-o", "json")
	require.NoError(t, err)
	rep = report.RunReport{}
	require.NoError(t, json.Unmarshal([]byte(output), &rep))
	require.NotNil(t, rep.CurrentScore)
	assert.Equal(t, 83.0, *rep.CurrentScore)

	var openID string
	for _, sg := range rep.Groups {
		for _, rg := range sg.Rules {
			for _, f := range rg.Findings {
				if f.Status == model.FindingOpen && openID == "" {
					openID = f.ID
				}
			}
		}
	}
	require.NotEmpty(t, openID)

	output, err = executeCmd(t, "ignore", runID, openID, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, output, "Ignored")

	_, err = executeCmd(t, "ignore", runID, "nonexistent", "--db", db)
	assert.Error(t, err)
}

// apiServer runs the HTTP API over an in-memory orchestrator that serves the
// broken demo site at https://demo.test.
func apiServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := &testutil.DummyLogger{}
	wc := &testutil.DummyWebClient{Pages: demosite.Pages("https://demo.test", demosite.VersionBroken)}
	orch, err := app.NewOrchestrator(app.DefaultConfig(), store.NewMemoryStore(), wc, logger)
	require.NoError(t, err)
	cfg := server.DefaultConfig()
	cfg.Logger = logger
	srv, err := server.NewServer(cfg, orch)
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = orch.Shutdown(ctx)
	})
	return ts
}

func TestScanViaServer(t *testing.T) {
	api := apiServer(t)

	output, err := executeCmd(t, "scan", "https://demo.test/", "--server", api.URL, "--depth", "2", "--max-pages", "10", "-o", "json")
	require.NoError(t, err)
	var rep report.RunReport
	require.NoError(t, json.Unmarshal([]byte(output), &rep), output)
	require.NotNil(t, rep.Score)
	assert.Equal(t, 61.0, *rep.Score)
	assert.Equal(t, 4, rep.PagesScanned)

	output, err = executeCmd(t, "status", rep.RunID, "--server", api.URL)
	require.NoError(t, err)
	assert.Contains(t, output, "Completed")

	output, err = executeCmd(t, "fix", rep.RunID, "--server", api.URL)
	require.NoError(t, err)
	assert.Contains(t, output, "Applied 4 fixes")

	_, err = executeCmd(t, "status", "nonexistent", "--server", api.URL)
	assert.Error(t, err)
}

func TestStatusUnknownRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "a11yscan.db")
	_, err := executeCmd(t, "status", "nonexistent", "--db", db)
	assert.Error(t, err)
}

func TestRunsEmpty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "a11yscan.db")
	output, err := executeCmd(t, "runs", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, output, "No runs recorded.")
}

func TestContrastCommand(t *testing.T) {
	output, err := executeCmd(t, "contrast", "#000", "#fff", "-o", "json")
	require.NoError(t, err)
	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(output), &res))
	assert.Equal(t, 21.0, res["ratio"])

	output, err = executeCmd(t, "contrast", "#777", "white")
	require.NoError(t, err)
	assert.Contains(t, output, "AA:    fail")
	assert.Contains(t, output, "Use #")

	output, err = executeCmd(t, "contrast", "#777", "white", "--large")
	require.NoError(t, err)
	assert.Contains(t, output, "AA:    pass")

	_, err = executeCmd(t, "contrast", "nope", "white")
	assert.Error(t, err)
}

func TestHelpListsCommands(t *testing.T) {
	output, err := executeCmd(t, "--help")
	require.NoError(t, err)
	for _, name := range []string{"scan", "status", "report", "runs", "fix", "ignore", "contrast", "serve", "version"} {
		assert.Contains(t, output, name)
	}
}
