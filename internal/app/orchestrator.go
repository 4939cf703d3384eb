package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raysh454/a11yscan/internal/contrast"
	"github.com/raysh454/a11yscan/internal/crawler"
	"github.com/raysh454/a11yscan/internal/fetcher"
	"github.com/raysh454/a11yscan/internal/fix"
	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/report"
	"github.com/raysh454/a11yscan/internal/rules"
	"github.com/raysh454/a11yscan/internal/scoring"
	"github.com/raysh454/a11yscan/internal/store"
	"github.com/raysh454/a11yscan/internal/webclient"
)

var (
	ErrRunNotFound     = store.ErrRunNotFound
	ErrRunNotCompleted = fix.ErrRunNotCompleted
	ErrRunFinished     = errors.New("run already finished")
	ErrShuttingDown    = errors.New("orchestrator is shutting down")
)

// RunStatus is the externally observable state of a run.
type RunStatus struct {
	RunID  string           `json:"run_id"`
	URL    string           `json:"url"`
	Status model.ScanStatus `json:"status"`

	// Progress is pages scanned over pages discovered so far, so it can
	// move backwards while the crawl is still finding pages.
	Progress        float64 `json:"progress"`
	PagesScanned    int     `json:"pages_scanned"`
	PagesDiscovered int     `json:"pages_discovered"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Score   *float64         `json:"compliance_score,omitempty"`
	Summary *scoring.Summary `json:"summary,omitempty"`
	Error   *model.RunError  `json:"error,omitempty"`
}

func statusOf(run *model.ScanRun) *RunStatus {
	s := &RunStatus{
		RunID:           run.ID,
		URL:             run.Request.URL,
		Status:          run.Status,
		PagesScanned:    len(run.Pages),
		PagesDiscovered: run.PagesDiscovered,
		CreatedAt:       run.CreatedAt,
		StartedAt:       run.StartedAt,
		CompletedAt:     run.CompletedAt,
		Score:           run.ComplianceScore,
		Error:           run.Error,
	}
	switch {
	case run.Status == model.StatusCompleted:
		s.Progress = 1
	case run.PagesDiscovered > 0:
		s.Progress = float64(len(run.Pages)) / float64(run.PagesDiscovered)
		if s.Progress > 1 {
			s.Progress = 1
		}
	}
	if len(run.Pages) > 0 {
		sum := scoring.Summarize(run.Findings())
		s.Summary = &sum
	}
	return s
}

// runState is the in-memory owner of one run. The run is only mutated under
// mu; readers get clones.
type runState struct {
	id  string
	req model.ScanRequest

	mu        sync.Mutex
	run       *model.ScanRun
	cancelled bool
	panicErr  error

	cancel context.CancelFunc
	done   chan struct{}
}

func (st *runState) snapshot() *model.ScanRun {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.run.Clone()
}

// Orchestrator drives scan runs from request to scored result. Every run
// executes on its own goroutine; MaxConcurrentRuns of them crawl at once.
type Orchestrator struct {
	cfg    *Config
	store  store.Store
	wc     webclient.WebClient
	engine *rules.Engine
	fixer  *fix.Applicator
	events *broker
	logger logging.Logger
	slots  chan struct{}
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	runs   map[string]*runState
	closed bool
}

// NewOrchestrator ties together config, persistence, the shared web client
// and logger.
func NewOrchestrator(cfg *Config, st store.Store, wc webclient.WebClient, logger logging.Logger) (*Orchestrator, error) {
	if st == nil {
		return nil, errors.New("orchestrator: store is nil")
	}
	if wc == nil {
		return nil, errors.New("orchestrator: webclient is nil")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:    cfg,
		store:  st,
		wc:     wc,
		engine: rules.NewEngine(logger),
		fixer:  fix.New(st, logger),
		events: newBroker(),
		logger: logger.With(logging.Field{Key: "component", Value: "orchestrator"}),
		slots:  make(chan struct{}, cfg.MaxConcurrentRuns),
		now:    func() time.Time { return time.Now().UTC() },
		ctx:    ctx,
		cancel: cancel,
		runs:   make(map[string]*runState),
	}, nil
}

// Rules lists the audit rules every run evaluates.
func (o *Orchestrator) Rules() []rules.Info { return o.engine.Rules() }

// StartScan validates req, records a Pending run and starts it in the
// background. It returns as soon as the run is persisted.
func (o *Orchestrator) StartScan(ctx context.Context, req model.ScanRequest) (string, error) {
	norm, err := req.Normalize()
	if err != nil {
		return "", err
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return "", ErrShuttingDown
	}
	id := uuid.NewString()
	run := &model.ScanRun{
		ID:        id,
		Request:   norm,
		Status:    model.StatusPending,
		CreatedAt: o.now(),
	}
	runCtx, cancel := context.WithCancel(o.ctx)
	st := &runState{id: id, req: norm, run: run, cancel: cancel, done: make(chan struct{})}
	o.runs[id] = st
	o.wg.Add(1)
	o.mu.Unlock()

	if err := o.store.SaveRun(ctx, run.Clone()); err != nil {
		o.mu.Lock()
		delete(o.runs, id)
		o.mu.Unlock()
		cancel()
		o.wg.Done()
		return "", model.NewError(model.OrchestrationFailure, fmt.Errorf("persist run: %w", err))
	}

	o.logger.Info("scan queued",
		logging.Field{Key: "run_id", Value: id},
		logging.Field{Key: "url", Value: norm.URL},
		logging.Field{Key: "wcag_level", Value: norm.WCAGLevel})
	o.events.publish(RunEvent{RunID: id, Type: EventStatus, Status: model.StatusPending})

	go o.execute(runCtx, st)
	return id, nil
}

func (o *Orchestrator) execute(ctx context.Context, st *runState) {
	logger := o.logger.With(logging.Field{Key: "run_id", Value: st.id})
	defer o.wg.Done()
	defer func() {
		close(st.done)
		time.AfterFunc(o.cfg.RunRetention, func() { o.evict(st.id) })
	}()
	defer st.cancel()
	defer func() {
		if r := recover(); r != nil {
			o.finish(st, model.NewError(model.OrchestrationFailure, fmt.Errorf("panic: %v", r)), logger)
		}
	}()

	select {
	case o.slots <- struct{}{}:
		defer func() { <-o.slots }()
	case <-ctx.Done():
		o.finish(st, o.failure(st, ctx, ctx.Err()), logger)
		return
	}

	st.mu.Lock()
	started := o.now()
	st.run.Status = model.StatusInProgress
	st.run.StartedAt = &started
	snap := st.run.Clone()
	st.mu.Unlock()
	o.persist(snap, logger)
	o.events.publish(RunEvent{RunID: st.id, Type: EventStatus, Status: model.StatusInProgress})
	logger.Info("scan started")

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.RunTimeout)
	defer cancel()

	err := o.crawlAndAudit(runCtx, cancel, st, logger)
	o.finish(st, o.failure(st, runCtx, err), logger)
}

// failure maps how a run ended onto the error taxonomy. nil means the run
// completed.
func (o *Orchestrator) failure(st *runState, runCtx context.Context, err error) error {
	st.mu.Lock()
	cancelled, panicErr := st.cancelled, st.panicErr
	st.mu.Unlock()

	switch {
	case panicErr != nil:
		return model.NewError(model.OrchestrationFailure, panicErr)
	case err == nil:
		return nil
	case cancelled:
		return model.NewError(model.Cancelled, errors.New("run cancelled by request"))
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return model.NewError(model.Timeout, fmt.Errorf("run exceeded %s", o.cfg.RunTimeout))
	case o.ctx.Err() != nil:
		return model.NewError(model.Cancelled, errors.New("orchestrator shut down"))
	default:
		return err
	}
}

// crawlAndAudit streams crawled pages into the audit pool and returns once
// every delivered page has been recorded.
func (o *Orchestrator) crawlAndAudit(ctx context.Context, abort context.CancelFunc, st *runState, logger logging.Logger) error {
	f, err := fetcher.New(o.cfg.Fetcher, o.wc, logger)
	if err != nil {
		return model.NewError(model.OrchestrationFailure, err)
	}
	c := crawler.New(f, logger)

	pages := make(chan crawler.Page, o.cfg.AuditWorkers)
	var wg sync.WaitGroup
	for i := 0; i < o.cfg.AuditWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range pages {
				o.auditPage(st, p, abort, logger)
			}
		}()
	}

	_, err = c.Crawl(ctx, st.req, crawler.Hooks{
		Page: func(p crawler.Page) { pages <- p },
		Discovered: func(n int) {
			st.mu.Lock()
			st.run.PagesDiscovered = n
			ev := progressEvent(st.run)
			st.mu.Unlock()
			o.events.publish(ev)
		},
	})
	close(pages)
	wg.Wait()
	return err
}

func progressEvent(run *model.ScanRun) RunEvent {
	return RunEvent{
		RunID:           run.ID,
		Type:            EventProgress,
		Status:          run.Status,
		PagesScanned:    len(run.Pages),
		PagesDiscovered: run.PagesDiscovered,
	}
}

func (o *Orchestrator) auditPage(st *runState, p crawler.Page, abort context.CancelFunc, logger logging.Logger) {
	defer func() {
		if r := recover(); r != nil {
			st.mu.Lock()
			if st.panicErr == nil {
				st.panicErr = fmt.Errorf("panic auditing %s: %v", p.URL, r)
			}
			st.mu.Unlock()
			abort()
		}
	}()

	pr := o.evaluate(st.id, st.req.WCAGLevel, p)
	if pr.Error != nil {
		logger.Debug("page recorded with error",
			logging.Field{Key: "url", Value: p.URL},
			logging.Field{Key: "kind", Value: pr.Error.Kind})
	}

	st.mu.Lock()
	st.run.Pages = append(st.run.Pages, pr)
	ev := progressEvent(st.run)
	st.mu.Unlock()
	o.events.publish(ev)
}

// evaluate turns one crawled page into its PageResult.
func (o *Orchestrator) evaluate(runID string, level model.WCAGLevel, p crawler.Page) model.PageResult {
	pr := model.PageResult{
		URL:        p.URL,
		Depth:      p.Depth,
		Seq:        p.Seq,
		StatusCode: p.StatusCode,
		FetchedAt:  p.FetchedAt,
	}
	if p.Err != nil {
		pr.Error = model.AsRunError(p.Err, model.FetchError)
		return pr
	}

	findings, ruleErrs := o.engine.Evaluate(p.Doc, rules.Options{Level: level})
	ordinals := make(map[string]int)
	for i := range findings {
		f := &findings[i]
		f.RunID = runID
		f.PageURL = p.URL
		key := f.RuleID + "|" + f.ElementSelector
		f.ID = FindingID(runID, p.URL, f.RuleID, f.ElementSelector, ordinals[key])
		ordinals[key]++
	}
	pr.Findings = findings
	pr.RuleErrors = ruleErrs
	return pr
}

// FindingID derives a stable id for a finding: the same run, page, rule and
// element always yield the same id. ordinal separates repeated findings of
// one rule on one element.
func FindingID(runID, pageURL, ruleID, selector string, ordinal int) string {
	ns, err := uuid.Parse(runID)
	if err != nil {
		ns = uuid.NameSpaceURL
	}
	name := fmt.Sprintf("%s|%s|%s|%d", pageURL, ruleID, selector, ordinal)
	return uuid.NewSHA1(ns, []byte(name)).String()
}

// finish moves the run to its terminal state, persists it and notifies
// subscribers. It is the only place run failures are logged.
func (o *Orchestrator) finish(st *runState, runErr error, logger logging.Logger) {
	st.mu.Lock()
	run := st.run
	if run.Status.Terminal() {
		st.mu.Unlock()
		return
	}
	now := o.now()
	sort.SliceStable(run.Pages, func(i, j int) bool { return run.Pages[i].Seq < run.Pages[j].Seq })
	run.CompletedAt = &now
	if runErr != nil {
		run.Status = model.StatusFailed
		run.Error = model.AsRunError(runErr, model.OrchestrationFailure)
	} else {
		score := scoring.Score(run.Findings())
		run.Status = model.StatusCompleted
		run.ComplianceScore = &score
	}
	snap := run.Clone()
	st.mu.Unlock()

	o.persist(snap, logger)

	if runErr != nil {
		logger.Error("scan failed",
			logging.Field{Key: "kind", Value: snap.Error.Kind},
			logging.Field{Key: "reason", Value: snap.Error.Message},
			logging.Field{Key: "pages_scanned", Value: len(snap.Pages)})
	} else {
		logger.Info("scan completed",
			logging.Field{Key: "compliance_score", Value: *snap.ComplianceScore},
			logging.Field{Key: "pages_scanned", Value: len(snap.Pages)},
			logging.Field{Key: "findings", Value: len(snap.Findings())})
	}

	o.events.publish(RunEvent{
		RunID:           snap.ID,
		Type:            EventResult,
		Status:          snap.Status,
		Error:           snap.Error,
		PagesScanned:    len(snap.Pages),
		PagesDiscovered: snap.PagesDiscovered,
		Score:           snap.ComplianceScore,
	})
	o.events.finish(snap.ID)
}

// persist saves a run snapshot. A store failure is logged and the run goes
// on; the in-memory copy stays authoritative until eviction.
func (o *Orchestrator) persist(run *model.ScanRun, logger logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.store.SaveRun(ctx, run); err != nil {
		logger.Warn("failed to persist run",
			logging.Field{Key: "status", Value: run.Status},
			logging.Err(err))
	}
}

func (o *Orchestrator) state(id string) (*runState, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.runs[id]
	return st, ok
}

// evict drops a finished run from memory; later reads go to the store.
func (o *Orchestrator) evict(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if st, ok := o.runs[id]; ok {
		select {
		case <-st.done:
			delete(o.runs, id)
		default:
		}
	}
}

// GetRun returns a copy of the run with all its pages and findings.
func (o *Orchestrator) GetRun(ctx context.Context, id string) (*model.ScanRun, error) {
	if st, ok := o.state(id); ok {
		return st.snapshot(), nil
	}
	run, err := o.store.GetRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// GetRunStatus reports status, progress and, once available, the score and
// severity summary.
func (o *Orchestrator) GetRunStatus(ctx context.Context, id string) (*RunStatus, error) {
	run, err := o.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	return statusOf(run), nil
}

// GetRunReport builds the remediation report of a run. Runs still in
// progress yield a partial report without a score.
func (o *Orchestrator) GetRunReport(ctx context.Context, id string) (*report.RunReport, error) {
	run, err := o.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	return report.Build(run), nil
}

// ListRuns returns run headers newest first, with live status for runs
// still held in memory.
func (o *Orchestrator) ListRuns(ctx context.Context, limit int) ([]*model.ScanRun, error) {
	runs, err := o.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	for i, r := range runs {
		if st, ok := o.state(r.ID); ok {
			live := st.snapshot()
			live.Pages = nil
			runs[i] = live
		}
	}
	return runs, nil
}

// ListFindings returns the findings of a run that pass filter.
func (o *Orchestrator) ListFindings(ctx context.Context, id string, filter store.FindingFilter) ([]model.Finding, error) {
	if st, ok := o.state(id); ok {
		var out []model.Finding
		for _, f := range st.snapshot().Findings() {
			if filter.Match(f) {
				out = append(out, f)
			}
		}
		return out, nil
	}
	findings, err := o.store.ListFindings(ctx, id, filter)
	if err != nil {
		return nil, fmt.Errorf("list findings of %s: %w", id, err)
	}
	return findings, nil
}

// ensureSettled fails with ErrRunNotCompleted while the run is still owned
// by its goroutine.
func (o *Orchestrator) ensureSettled(id string) error {
	st, ok := o.state(id)
	if !ok {
		return nil
	}
	select {
	case <-st.done:
		return nil
	default:
		return fmt.Errorf("%w: run %s is still running", ErrRunNotCompleted, id)
	}
}

// ApplyFixes applies automatic fixes to a completed run. With no ids every
// Open auto-fixable finding is attempted.
func (o *Orchestrator) ApplyFixes(ctx context.Context, id string, findingIDs []string) (*fix.Result, error) {
	if err := o.ensureSettled(id); err != nil {
		return nil, err
	}
	res, err := o.fixer.Apply(ctx, id, findingIDs)
	if err != nil {
		return res, fmt.Errorf("apply fixes to %s: %w", id, err)
	}
	o.evict(id)
	return res, nil
}

// IgnoreFinding records a user override of one finding.
func (o *Orchestrator) IgnoreFinding(ctx context.Context, id, findingID string) (*model.Finding, error) {
	if err := o.ensureSettled(id); err != nil {
		return nil, err
	}
	f, err := o.fixer.Ignore(ctx, id, findingID)
	if err != nil {
		return nil, err
	}
	o.evict(id)
	return f, nil
}

// CheckContrast is a synchronous contrast check between two colours.
func (o *Orchestrator) CheckContrast(foreground, background string, size model.TextSize) (*contrast.Result, error) {
	return contrast.Check(foreground, background, size)
}

// CancelScan stops a pending or running scan. The run ends Failed with a
// Cancelled error once in-flight fetches return.
func (o *Orchestrator) CancelScan(ctx context.Context, id string) error {
	st, ok := o.state(id)
	if !ok {
		if _, err := o.store.GetRun(ctx, id); err != nil {
			return fmt.Errorf("cancel %s: %w", id, err)
		}
		return ErrRunFinished
	}
	select {
	case <-st.done:
		return ErrRunFinished
	default:
	}

	st.mu.Lock()
	st.cancelled = true
	st.mu.Unlock()
	st.cancel()
	o.logger.Info("scan cancel requested", logging.Field{Key: "run_id", Value: id})
	return nil
}

// Subscribe streams the events of a run. The channel is closed after the
// result event; for a finished run it carries only that event. The returned
// func unsubscribes early.
func (o *Orchestrator) Subscribe(ctx context.Context, id string) (<-chan RunEvent, func(), error) {
	st, ok := o.state(id)
	if ok {
		// Registration happens under the run lock so a concurrent finish
		// either sees the subscriber or has already published.
		st.mu.Lock()
		terminal := st.run.Status.Terminal()
		if !terminal {
			ch, unsub := o.events.subscribe(id)
			ch <- progressEvent(st.run)
			st.mu.Unlock()
			return ch, unsub, nil
		}
		st.mu.Unlock()
	}

	run, err := o.GetRun(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan RunEvent, 1)
	ch <- RunEvent{
		RunID:           run.ID,
		Type:            EventResult,
		Status:          run.Status,
		Error:           run.Error,
		PagesScanned:    len(run.Pages),
		PagesDiscovered: run.PagesDiscovered,
		Score:           run.ComplianceScore,
	}
	close(ch)
	return ch, func() {}, nil
}

// Wait blocks until the run is terminal or ctx ends, and returns the run.
func (o *Orchestrator) Wait(ctx context.Context, id string) (*model.ScanRun, error) {
	if st, ok := o.state(id); ok {
		select {
		case <-st.done:
			return st.snapshot(), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return o.GetRun(ctx, id)
}

// PurgeOlderThan deletes finished runs created more than age ago.
func (o *Orchestrator) PurgeOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := o.now().Add(-age)
	n, err := o.store.PurgeBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge runs: %w", err)
	}

	o.mu.Lock()
	for id, st := range o.runs {
		select {
		case <-st.done:
			if st.run.CreatedAt.Before(cutoff) {
				delete(o.runs, id)
			}
		default:
		}
	}
	o.mu.Unlock()

	o.logger.Info("purged runs",
		logging.Field{Key: "removed", Value: n},
		logging.Field{Key: "cutoff", Value: cutoff})
	return n, nil
}

// Shutdown stops accepting scans, cancels the ones in flight and waits for
// them to record their final state.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.cancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown: %w", ctx.Err())
	}
}
