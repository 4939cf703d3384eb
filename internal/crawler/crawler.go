// Package crawler walks a site breadth-first from a seed URL, handing each
// fetched and parsed page to the caller as soon as it is ready.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/raysh454/a11yscan/internal/dom"
	"github.com/raysh454/a11yscan/internal/fetcher"
	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/utils"
)

var (
	// ErrNotHTML marks responses the crawler cannot audit.
	ErrNotHTML = errors.New("response is not html")

	// ErrRedirectOutOfScope marks pages that redirected off the crawled site.
	ErrRedirectOutOfScope = errors.New("redirected out of scope")
)

// Page is one visited URL. Exactly one of Doc and Err is set.
type Page struct {
	URL        string
	Depth      int
	Seq        int
	StatusCode int
	FetchedAt  time.Time
	Doc        *dom.Document
	Err        error
}

// Hooks receive crawl progress. Both are called from the goroutine running
// Crawl and may be nil.
type Hooks struct {
	// Page is called once per visited URL, in completion order.
	Page func(Page)

	// Discovered reports the number of URLs accepted for visiting so far.
	// It never exceeds the request's MaxPages.
	Discovered func(total int)
}

// Stats summarises a finished crawl.
type Stats struct {
	Visited int
	// Truncated is set when MaxPages stopped in-scope links from being followed.
	Truncated bool
}

// Crawler holds the fetch pool shared by a run's levels.
type Crawler struct {
	fetcher *fetcher.Fetcher
	logger  logging.Logger
}

// New creates a Crawler fetching through f.
func New(f *fetcher.Fetcher, logger logging.Logger) *Crawler {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Crawler{
		fetcher: f,
		logger:  logger.With(logging.Field{Key: "component", Value: "crawler"}),
	}
}

// crawl is the coordinator state for one Crawl call. Only the goroutine
// running Crawl touches it.
type crawl struct {
	req       model.ScanRequest
	scope     *utils.Scope
	visited   map[string]struct{}
	enqueued  int
	seq       int
	truncated bool
	hooks     Hooks
}

// Crawl visits pages level by level from req.URL. The request must already
// be normalised. A seed that cannot be fetched fails the crawl with an
// OrchestrationFailure; every other page failure is delivered as a Page
// with Err set. When ctx ends the crawl stops after the level in flight and
// returns ctx.Err().
func (c *Crawler) Crawl(ctx context.Context, req model.ScanRequest, hooks Hooks) (*Stats, error) {
	seed, err := utils.Canonicalize(req.URL, utils.CrawlCanonicalization)
	if err != nil {
		return nil, model.NewError(model.InvalidInput, fmt.Errorf("seed url: %w", err))
	}
	scope, err := utils.NewScope(seed, req.IncludeSubdomains)
	if err != nil {
		return nil, model.NewError(model.InvalidInput, fmt.Errorf("seed scope: %w", err))
	}

	cr := &crawl{
		req:      req,
		scope:    scope,
		visited:  map[string]struct{}{seed: {}},
		enqueued: 1,
		seq:      1,
		hooks:    hooks,
	}
	cr.discovered()

	level := []fetcher.Target{{URL: seed, Depth: 0, Seq: 0}}
	for len(level) > 0 {
		c.logger.Debug("crawling level",
			logging.Field{Key: "depth", Value: level[0].Depth},
			logging.Field{Key: "pages", Value: len(level)})

		pages, err := c.fetchLevel(ctx, cr, level)
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return &Stats{Visited: cr.enqueued, Truncated: cr.truncated}, err
		}
		level = cr.nextLevel(pages)
	}

	c.logger.Info("crawl finished",
		logging.Field{Key: "seed", Value: seed},
		logging.Field{Key: "visited", Value: cr.enqueued},
		logging.Field{Key: "truncated", Value: cr.truncated})
	return &Stats{Visited: cr.enqueued, Truncated: cr.truncated}, nil
}

// fetchLevel fetches and parses one BFS level, emitting pages as they
// complete, and returns the parsed pages ordered by Seq.
func (c *Crawler) fetchLevel(ctx context.Context, cr *crawl, level []fetcher.Target) ([]Page, error) {
	var pages []Page
	for res := range c.fetcher.Fetch(ctx, level) {
		if res.Depth == 0 && res.Err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &model.ScanError{Kind: model.OrchestrationFailure, URL: res.URL, Err: fmt.Errorf("seed unreachable: %w", res.Err)}
		}

		if res.Err == nil && res.Response != nil && res.Response.FinalURL != "" {
			if res.Depth == 0 {
				c.rebase(cr, res.Response.FinalURL)
			} else if !cr.allows(res.Response.FinalURL) {
				res.Err = &model.ScanError{Kind: model.FetchError, URL: res.URL,
					Err: fmt.Errorf("%w: %s", ErrRedirectOutOfScope, res.Response.FinalURL)}
			}
		}

		p := c.toPage(res)
		if cr.hooks.Page != nil {
			cr.hooks.Page(p)
		}
		if p.Doc != nil {
			pages = append(pages, p)
		}
		// Record where redirects landed so the target is not crawled again.
		if res.Response != nil && res.Response.FinalURL != "" {
			if canon, err := utils.Canonicalize(res.Response.FinalURL, utils.CrawlCanonicalization); err == nil && canon != res.URL {
				cr.visited[canon] = struct{}{}
			}
		}
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Seq < pages[j].Seq })
	return pages, nil
}

// rebase re-anchors the scope on where the seed landed, so a seed that
// redirects (http to https, apex to www) crawls the site it actually serves.
func (c *Crawler) rebase(cr *crawl, final string) {
	if cr.allows(final) {
		return
	}
	canon, err := utils.Canonicalize(final, utils.CrawlCanonicalization)
	if err != nil {
		return
	}
	scope, err := utils.NewScope(canon, cr.req.IncludeSubdomains)
	if err != nil {
		return
	}
	c.logger.Info("seed redirected, crawl scope moved",
		logging.Field{Key: "seed", Value: cr.req.URL},
		logging.Field{Key: "final", Value: canon})
	cr.scope = scope
}

func (cr *crawl) allows(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && cr.scope.Allows(u)
}

func (c *Crawler) toPage(res fetcher.Result) Page {
	p := Page{URL: res.URL, Depth: res.Depth, Seq: res.Seq, FetchedAt: time.Now().UTC()}
	if res.Response != nil {
		p.StatusCode = res.Response.StatusCode
		if !res.Response.FetchedAt.IsZero() {
			p.FetchedAt = res.Response.FetchedAt
		}
	}
	if res.Err != nil {
		p.Err = res.Err
		return p
	}
	if !res.Response.IsHTML() {
		p.Err = &model.ScanError{Kind: model.ParseError, URL: res.URL,
			Err: fmt.Errorf("%w: %s", ErrNotHTML, res.Response.Headers.Get("Content-Type"))}
		return p
	}

	doc, err := dom.Parse(baseFor(res), res.Response.Body)
	if err != nil {
		c.logger.Debug("error parsing page",
			logging.Field{Key: "url", Value: res.URL},
			logging.Err(err))
		p.Err = err
		return p
	}
	p.Doc = doc
	return p
}

// baseFor resolves links against where the response actually came from.
func baseFor(res fetcher.Result) string {
	if res.Response != nil && res.Response.FinalURL != "" {
		return res.Response.FinalURL
	}
	return res.URL
}

func (cr *crawl) discovered() {
	if cr.hooks.Discovered != nil {
		cr.hooks.Discovered(cr.enqueued)
	}
}

// nextLevel collects unvisited in-scope links from pages, in page then
// document order, until the depth or page bound is hit.
func (cr *crawl) nextLevel(pages []Page) []fetcher.Target {
	var next []fetcher.Target
	for _, p := range pages {
		if p.Depth+1 > cr.req.MaxDepth {
			continue
		}
		for _, link := range Links(p.Doc) {
			if !cr.scope.Allows(link) {
				continue
			}
			canon := utils.CanonicalizeURL(link, utils.CrawlCanonicalization)
			if _, seen := cr.visited[canon]; seen {
				continue
			}
			if cr.enqueued >= cr.req.MaxPages {
				cr.truncated = true
				return next
			}
			cr.visited[canon] = struct{}{}
			cr.enqueued++
			next = append(next, fetcher.Target{URL: canon, Depth: p.Depth + 1, Seq: cr.seq})
			cr.seq++
			cr.discovered()
		}
	}
	return next
}

// Links returns the crawlable targets of doc's a[href] and area[href]
// elements in document order, resolved against the document base.
func Links(doc *dom.Document) []*url.URL {
	base := doc.BaseURL()
	var out []*url.URL
	doc.Doc.Find("a[href], area[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if u, ok := utils.ResolveLink(base, href); ok {
			out = append(out, u)
		}
	})
	return out
}
