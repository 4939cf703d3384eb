package webclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/raysh454/a11yscan/internal/logging"
)

// ChromedpClient renders pages in headless Chrome so rules see the DOM
// after scripts ran. Only GET is supported.
type ChromedpClient struct {
	cfg         Config
	logger      logging.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromedpClient prepares an allocator. Chrome itself is launched lazily
// on the first request.
func NewChromedpClient(cfg Config, logger logging.Logger) (*ChromedpClient, error) {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	cfg = cfg.withDefaults()

	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &ChromedpClient{
		cfg:         cfg,
		logger:      logger.With(logging.Field{Key: "backend", Value: "chromedp"}),
		allocCtx:    allocCtx,
		allocCancel: cancel,
	}, nil
}

// waitNetworkIdle returns a channel that is closed once no request has been
// in flight for idleAfter.
func waitNetworkIdle(ctx context.Context, idleAfter time.Duration) <-chan struct{} {
	idleChan := make(chan struct{})
	var activeReqs int32
	var timer *time.Timer
	var timerMutex sync.Mutex
	var once sync.Once

	startTimer := func() {
		timerMutex.Lock()
		defer timerMutex.Unlock()

		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(idleAfter, func() {
			if atomic.LoadInt32(&activeReqs) <= 0 {
				once.Do(func() { close(idleChan) })
			}
		})
	}

	chromedp.ListenTarget(ctx, func(ev any) {
		switch ev.(type) {
		case *network.EventRequestWillBeSent:
			atomic.AddInt32(&activeReqs, 1)
		case *network.EventLoadingFinished, *network.EventLoadingFailed:
			if atomic.AddInt32(&activeReqs, -1) <= 0 {
				startTimer()
			}
		}
	})

	// Pages with no subresources never emit a finishing event after load.
	startTimer()
	return idleChan
}

func (c *ChromedpClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}
	if m := strings.ToUpper(req.Method); m != "" && m != http.MethodGet {
		return nil, fmt.Errorf("chromedp: method %s not supported", m)
	}

	tabCtx, cancel := chromedp.NewContext(c.allocCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	idle := waitNetworkIdle(tabCtx, c.cfg.IdleAfter)

	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		return nil, fmt.Errorf("chromedp: enable network: %w", err)
	}
	navResp, err := chromedp.RunResponse(tabCtx, chromedp.Navigate(req.URL))
	if err != nil {
		c.logger.Debug("navigation failed", logging.Field{Key: "url", Value: req.URL}, logging.Err(err))
		return nil, fmt.Errorf("chromedp: navigate %s: %w", req.URL, err)
	}

	select {
	case <-idle:
	case <-tabCtx.Done():
		return nil, fmt.Errorf("chromedp: wait for idle: %w", context.Cause(tabCtx))
	}

	var doc string
	var location string
	if err := chromedp.Run(tabCtx,
		chromedp.OuterHTML("html", &doc, chromedp.ByQuery),
		chromedp.Location(&location),
	); err != nil {
		return nil, fmt.Errorf("chromedp: read dom: %w", err)
	}

	resp := &Response{
		Request:    req,
		Headers:    http.Header{},
		Body:       []byte(doc),
		StatusCode: http.StatusOK,
		FetchedAt:  time.Now().UTC(),
		FinalURL:   location,
	}
	if navResp != nil {
		resp.StatusCode = int(navResp.Status)
		for k, v := range navResp.Headers {
			resp.Headers.Set(k, fmt.Sprint(v))
		}
	}
	// The serialized DOM is always HTML regardless of the original response.
	resp.Headers.Set("Content-Type", "text/html; charset=utf-8")
	if int64(len(resp.Body)) > c.cfg.MaxBodyBytes {
		resp.Body = resp.Body[:c.cfg.MaxBodyBytes]
	}
	return resp, nil
}

func (c *ChromedpClient) Get(ctx context.Context, url string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, URL: url})
}

func (c *ChromedpClient) Close() error {
	c.allocCancel()
	return nil
}
