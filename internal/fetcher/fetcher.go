// Package fetcher downloads batches of pages on a bounded worker pool.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/webclient"
)

// Target is one page to fetch. Depth and Seq are carried through untouched.
type Target struct {
	URL   string
	Depth int
	Seq   int
}

// Result pairs a target with its response or a *model.ScanError of kind
// FetchError.
type Result struct {
	Target
	Response *webclient.Response
	Err      error
}

// Fetcher fetches pages concurrently, never exceeding MaxConcurrency
// in-flight requests.
type Fetcher struct {
	cfg    Config
	wc     webclient.WebClient
	logger logging.Logger
}

// New creates a new Fetcher with the given webclient and logger.
func New(cfg Config, wc webclient.WebClient, logger logging.Logger) (*Fetcher, error) {
	if wc == nil {
		return nil, fmt.Errorf("fetcher: webclient is nil")
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = DefaultPageTimeout
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Fetcher{
		cfg:    cfg,
		wc:     wc,
		logger: logger.With(logging.Field{Key: "component", Value: "fetcher"}),
	}, nil
}

// Fetch starts fetching targets and returns a channel that yields exactly one
// Result per target and is closed afterwards. Targets not yet started when
// ctx is done are reported as failed without touching the network. The
// caller must drain the channel.
func (f *Fetcher) Fetch(ctx context.Context, targets []Target) <-chan Result {
	out := make(chan Result, len(targets))
	var wg sync.WaitGroup
	sem := make(chan struct{}, f.cfg.MaxConcurrency)

	for _, t := range targets {
		wg.Add(1)

		go func(t Target) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				out <- Result{Target: t, Err: &model.ScanError{Kind: model.FetchError, URL: t.URL, Err: fmt.Errorf("not started: %w", ctx.Err())}}
				return
			}
			defer func() { <-sem }()

			resp, err := f.HTTPGet(ctx, t.URL)
			out <- Result{Target: t, Response: resp, Err: err}
		}(t)
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// HTTPGet fetches one page under the per-page timeout. Transport failures,
// timeouts and HTTP error statuses all come back as FetchError.
func (f *Fetcher) HTTPGet(ctx context.Context, page string) (*webclient.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, &model.ScanError{Kind: model.FetchError, URL: page, Err: fmt.Errorf("not started: %w", err)}
	}

	pageCtx, cancel := context.WithTimeout(ctx, f.cfg.PageTimeout)
	defer cancel()

	resp, err := f.wc.Get(pageCtx, page)
	if err != nil {
		if errors.Is(pageCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("page timeout after %s: %w", f.cfg.PageTimeout, err)
		}
		f.logger.Debug("error while fetching page",
			logging.Field{Key: "url", Value: page},
			logging.Err(err))
		return nil, &model.ScanError{Kind: model.FetchError, URL: page, Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return resp, &model.ScanError{Kind: model.FetchError, URL: page, Err: fmt.Errorf("http status %d", resp.StatusCode)}
	}
	return resp, nil
}
