// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/webclient"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// ErrorCount returns the number of recorded error messages.
func (l *DummyLogger) ErrorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Errors)
}

// ─── WebClient ─────────────────────────────────────────────────────────

// ErrDummyFetch is returned for URLs listed in DummyWebClient.FailURLs.
var ErrDummyFetch = errors.New("dummy fetch fail")

// DummyWebClient implements webclient.WebClient.
//
// With Pages nil it returns body "ok:<url>" with status 200 for every URL.
// With Pages set it serves those bodies as text/html and answers 404 for
// anything else. Set FailURLs[url] = true to force a transport error.
// Redirects[url] serves the target's page and reports it as FinalURL.
type DummyWebClient struct {
	ResponseDelay time.Duration
	FailURLs      map[string]bool
	Redirects     map[string]string
	Pages         map[string]string
	Statuses      map[string]int
	ContentTypes  map[string]string

	// SlowURLs delays only the listed URLs.
	SlowURLs map[string]time.Duration

	mu       sync.Mutex
	Requests []*webclient.Request

	inFlight    int32
	maxInFlight int32
}

func (d *DummyWebClient) Do(ctx context.Context, req *webclient.Request) (*webclient.Response, error) {
	cur := atomic.AddInt32(&d.inFlight, 1)
	defer atomic.AddInt32(&d.inFlight, -1)
	for {
		prev := atomic.LoadInt32(&d.maxInFlight)
		if cur <= prev || atomic.CompareAndSwapInt32(&d.maxInFlight, prev, cur) {
			break
		}
	}

	delay := d.ResponseDelay
	if extra, ok := d.SlowURLs[req.URL]; ok {
		delay = extra
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	d.Requests = append(d.Requests, req)
	d.mu.Unlock()

	if d.FailURLs != nil && d.FailURLs[req.URL] {
		return nil, ErrDummyFetch
	}

	resp := &webclient.Response{
		Request:    req,
		Headers:    http.Header{},
		StatusCode: http.StatusOK,
		FetchedAt:  time.Now().UTC(),
	}
	target := req.URL
	if to, ok := d.Redirects[req.URL]; ok {
		target = to
		resp.FinalURL = to
	}
	if d.Pages == nil {
		resp.Body = []byte("ok:" + target)
		return resp, nil
	}

	body, ok := d.Pages[target]
	if !ok {
		resp.StatusCode = http.StatusNotFound
		resp.Body = []byte("not found")
		return resp, nil
	}
	resp.Body = []byte(body)
	resp.Headers.Set("Content-Type", "text/html; charset=utf-8")
	if ct, ok := d.ContentTypes[target]; ok {
		resp.Headers.Set("Content-Type", ct)
	}
	if code, ok := d.Statuses[target]; ok {
		resp.StatusCode = code
	}
	return resp, nil
}

func (d *DummyWebClient) Get(ctx context.Context, url string) (*webclient.Response, error) {
	return d.Do(ctx, &webclient.Request{Method: "GET", URL: url})
}

func (d *DummyWebClient) Close() error { return nil }

// RequestedURLs returns the URLs requested so far, in order.
func (d *DummyWebClient) RequestedURLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.Requests))
	for i, r := range d.Requests {
		out[i] = r.URL
	}
	return out
}

// MaxInFlight is the highest number of concurrent Do calls observed.
func (d *DummyWebClient) MaxInFlight() int {
	return int(atomic.LoadInt32(&d.maxInFlight))
}
