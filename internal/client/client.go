// Package client talks to a running a11yscan API server. Its methods mirror
// the orchestrator's, so callers can switch between an in-process
// orchestrator and a remote one.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/raysh454/a11yscan/internal/app"
	"github.com/raysh454/a11yscan/internal/contrast"
	"github.com/raysh454/a11yscan/internal/fix"
	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/report"
	"github.com/raysh454/a11yscan/internal/store"
)

// DefaultPollInterval is how often Wait polls the run status.
const DefaultPollInterval = 500 * time.Millisecond

// ErrNotFound is matched by errors for 404 responses.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Kind       model.ErrorKind
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("api %d: %s: %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("api %d: %s", e.StatusCode, e.Message)
}

// sentinels are the server-side errors a status code can carry. The server
// reports them by message, so they are matched on that.
var sentinels = map[int][]error{
	http.StatusNotFound:           {store.ErrRunNotFound, store.ErrFindingNotFound},
	http.StatusConflict:           {app.ErrRunNotCompleted, app.ErrRunFinished, fix.ErrAlreadyFixed},
	http.StatusServiceUnavailable: {app.ErrShuttingDown},
}

// Is lets API errors match ErrNotFound and the orchestrator's sentinels, so
// callers handle remote and in-process errors alike.
func (e *APIError) Is(target error) bool {
	if target == ErrNotFound {
		return e.StatusCode == http.StatusNotFound
	}
	for _, s := range sentinels[e.StatusCode] {
		if target == s && strings.Contains(e.Message, s.Error()) {
			return true
		}
	}
	return false
}

// Client is an HTTP client for the a11yscan API.
type Client struct {
	baseURL      *url.URL
	http         *http.Client
	logger       logging.Logger
	PollInterval time.Duration
}

// New creates a client for the server at baseURL. A nil httpClient uses a
// client with a 30 second timeout.
func New(baseURL string, httpClient *http.Client, logger logging.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q must be http or https", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Client{
		baseURL:      u,
		http:         httpClient,
		logger:       logger.With(logging.Field{Key: "component", Value: "api-client"}),
		PollInterval: DefaultPollInterval,
	}, nil
}

// StartScan submits req and returns the new run id.
func (c *Client) StartScan(ctx context.Context, req model.ScanRequest) (string, error) {
	var resp struct {
		RunID string `json:"run_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/scans", req, &resp); err != nil {
		return "", fmt.Errorf("StartScan: %w", err)
	}
	c.logger.Info("submitted scan", logging.Field{Key: "url", Value: req.URL}, logging.Field{Key: "run_id", Value: resp.RunID})
	return resp.RunID, nil
}

// GetRunStatus returns the status and progress of a run.
func (c *Client) GetRunStatus(ctx context.Context, id string) (*app.RunStatus, error) {
	var st app.RunStatus
	if err := c.do(ctx, http.MethodGet, "/scans/"+url.PathEscape(id), nil, &st); err != nil {
		return nil, fmt.Errorf("GetRunStatus: %w", err)
	}
	return &st, nil
}

// Wait polls the run until it is terminal or ctx ends. progress, when set,
// is called after every poll.
func (c *Client) Wait(ctx context.Context, id string, progress func(scanned, discovered int)) (*app.RunStatus, error) {
	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()
	for {
		st, err := c.GetRunStatus(ctx, id)
		if err != nil {
			return nil, err
		}
		if progress != nil {
			progress(st.PagesScanned, st.PagesDiscovered)
		}
		if st.Status.Terminal() {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// ScanAndWait submits req and waits up to timeout for the run to finish.
func (c *Client) ScanAndWait(ctx context.Context, req model.ScanRequest, timeout time.Duration) (*app.RunStatus, error) {
	id, err := c.StartScan(ctx, req)
	if err != nil {
		return nil, err
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Wait(waitCtx, id, nil)
}

// GetRunReport returns the remediation report of a run.
func (c *Client) GetRunReport(ctx context.Context, id string) (*report.RunReport, error) {
	var rep report.RunReport
	if err := c.do(ctx, http.MethodGet, "/scans/"+url.PathEscape(id)+"/report", nil, &rep); err != nil {
		return nil, fmt.Errorf("GetRunReport: %w", err)
	}
	return &rep, nil
}

// ListRuns lists runs newest first; limit 0 lists all.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]*model.ScanRun, error) {
	path := "/scans"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var runs []*model.ScanRun
	if err := c.do(ctx, http.MethodGet, path, nil, &runs); err != nil {
		return nil, fmt.Errorf("ListRuns: %w", err)
	}
	return runs, nil
}

// ListFindings lists the findings of a run, optionally filtered.
func (c *Client) ListFindings(ctx context.Context, id string, filter store.FindingFilter) ([]model.Finding, error) {
	q := url.Values{}
	if filter.Severity != "" {
		q.Set("severity", string(filter.Severity))
	}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.RuleID != "" {
		q.Set("rule", filter.RuleID)
	}
	if filter.PageURL != "" {
		q.Set("page", filter.PageURL)
	}
	path := "/scans/" + url.PathEscape(id) + "/findings"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var fs []model.Finding
	if err := c.do(ctx, http.MethodGet, path, nil, &fs); err != nil {
		return nil, fmt.Errorf("ListFindings: %w", err)
	}
	return fs, nil
}

// ApplyFixes fixes the named findings, or every auto-fixable one when ids is empty.
func (c *Client) ApplyFixes(ctx context.Context, id string, findingIDs []string) (*fix.Result, error) {
	body := map[string][]string{"finding_ids": findingIDs}
	var res fix.Result
	if err := c.do(ctx, http.MethodPost, "/scans/"+url.PathEscape(id)+"/fixes", body, &res); err != nil {
		return nil, fmt.Errorf("ApplyFixes: %w", err)
	}
	return &res, nil
}

// IgnoreFinding marks one finding Ignored.
func (c *Client) IgnoreFinding(ctx context.Context, id, findingID string) (*model.Finding, error) {
	var f model.Finding
	path := "/scans/" + url.PathEscape(id) + "/findings/" + url.PathEscape(findingID) + "/ignore"
	if err := c.do(ctx, http.MethodPost, path, nil, &f); err != nil {
		return nil, fmt.Errorf("IgnoreFinding: %w", err)
	}
	return &f, nil
}

// CancelScan asks the server to cancel a pending or running scan.
func (c *Client) CancelScan(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/scans/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("CancelScan: %w", err)
	}
	return nil
}

// CheckContrast runs a contrast check on the server.
func (c *Client) CheckContrast(ctx context.Context, foreground, background string, size model.TextSize) (*contrast.Result, error) {
	body := map[string]string{"foreground": foreground, "background": background, "text_size": string(size)}
	var res contrast.Result
	if err := c.do(ctx, http.MethodPost, "/contrast", body, &res); err != nil {
		return nil, fmt.Errorf("CheckContrast: %w", err)
	}
	return &res, nil
}

// Health checks if the server is ready to accept requests.
func (c *Client) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, &resp); err != nil {
		return "", fmt.Errorf("Health: %w", err)
	}
	return resp.Status, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var e struct {
			Error string          `json:"error"`
			Kind  model.ErrorKind `json:"kind"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			apiErr.Message, apiErr.Kind = e.Error, e.Kind
		}
		c.logger.Debug("api error",
			logging.Field{Key: "method", Value: method},
			logging.Field{Key: "path", Value: path},
			logging.Err(apiErr))
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
