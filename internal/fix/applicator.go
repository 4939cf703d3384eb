// Package fix applies automatic remediations to recorded findings.
package fix

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/store"
	"github.com/sergi/go-diff/diffmatchpatch"
)

var (
	ErrRunNotCompleted = errors.New("run is not completed")
	ErrAlreadyFixed    = errors.New("finding is already fixed")
)

// Failure explains why one requested finding was not fixed.
type Failure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Result summarises one Apply batch.
type Result struct {
	RunID        string    `json:"run_id"`
	AppliedCount int       `json:"applied_count"`
	Applied      []string  `json:"applied"`
	AlreadyFixed []string  `json:"already_fixed,omitempty"`
	Failures     []Failure `json:"failures,omitempty"`
}

// Applicator rewrites the snippets of auto-fixable findings and persists
// the new finding state. Batches against the same run are serialised.
type Applicator struct {
	store  store.Store
	logger logging.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New returns an Applicator backed by st.
func New(st store.Store, logger logging.Logger) *Applicator {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Applicator{
		store:  st,
		logger: logger.With(logging.Field{Key: "component", Value: "fix-applicator"}),
		now:    func() time.Time { return time.Now().UTC() },
		locks:  make(map[string]*sync.Mutex),
	}
}

func (a *Applicator) runLock(runID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.locks[runID]
	if !ok {
		l = &sync.Mutex{}
		a.locks[runID] = l
	}
	return l
}

func (a *Applicator) loadCompleted(ctx context.Context, runID string) (*model.ScanRun, error) {
	run, err := a.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != model.StatusCompleted {
		return nil, fmt.Errorf("%w: run %s is %s", ErrRunNotCompleted, runID, run.Status)
	}
	return run, nil
}

// Apply fixes the listed findings of a completed run. With no ids every
// Open auto-fixable finding is attempted. Per-finding problems are
// reported in the result; the error is reserved for run-level failures.
func (a *Applicator) Apply(ctx context.Context, runID string, ids []string) (*Result, error) {
	l := a.runLock(runID)
	l.Lock()
	defer l.Unlock()

	run, err := a.loadCompleted(ctx, runID)
	if err != nil {
		return nil, err
	}

	index := make(map[string]*model.Finding)
	var all []string
	for pi := range run.Pages {
		for fi := range run.Pages[pi].Findings {
			f := &run.Pages[pi].Findings[fi]
			index[f.ID] = f
			if f.Status == model.FindingOpen && f.AutoFixable {
				all = append(all, f.ID)
			}
		}
	}
	if len(ids) == 0 {
		ids = all
	}

	res := &Result{RunID: runID, Applied: []string{}}
	dmp := diffmatchpatch.New()
	for _, id := range ids {
		f, ok := index[id]
		if !ok {
			res.Failures = append(res.Failures, Failure{ID: id, Reason: store.ErrFindingNotFound.Error()})
			continue
		}
		switch {
		case f.Status == model.FindingFixed:
			res.AlreadyFixed = append(res.AlreadyFixed, id)
			continue
		case f.Status == model.FindingIgnored:
			res.Failures = append(res.Failures, Failure{ID: id, Reason: "finding is ignored"})
			continue
		case !f.AutoFixable:
			res.Failures = append(res.Failures, Failure{ID: id, Reason: ErrNotFixable.Error()})
			continue
		}

		fixed, err := Transform(*f)
		if err != nil {
			res.Failures = append(res.Failures, Failure{ID: id, Reason: err.Error()})
			continue
		}

		now := a.now()
		updated := f.Clone()
		updated.Status = model.FindingFixed
		updated.FixedAt = &now
		updated.AppliedPatch = dmp.PatchToText(dmp.PatchMake(f.Snippet, fixed))
		if err := a.store.UpdateFinding(ctx, updated); err != nil {
			return res, fmt.Errorf("persist finding %s: %w", id, err)
		}
		*f = updated
		res.Applied = append(res.Applied, id)
	}
	res.AppliedCount = len(res.Applied)

	a.logger.Info("fixes applied",
		logging.Field{Key: "run_id", Value: runID},
		logging.Field{Key: "applied", Value: res.AppliedCount},
		logging.Field{Key: "already_fixed", Value: len(res.AlreadyFixed)},
		logging.Field{Key: "failures", Value: len(res.Failures)})
	return res, nil
}

// Ignore marks an Open finding as Ignored. Ignoring an Ignored finding is a
// no-op; a Fixed finding cannot be ignored.
func (a *Applicator) Ignore(ctx context.Context, runID, findingID string) (*model.Finding, error) {
	l := a.runLock(runID)
	l.Lock()
	defer l.Unlock()

	run, err := a.loadCompleted(ctx, runID)
	if err != nil {
		return nil, err
	}
	for _, f := range run.Findings() {
		if f.ID != findingID {
			continue
		}
		switch f.Status {
		case model.FindingIgnored:
			return &f, nil
		case model.FindingFixed:
			return nil, fmt.Errorf("ignore %s: %w", findingID, ErrAlreadyFixed)
		}
		f.Status = model.FindingIgnored
		if err := a.store.UpdateFinding(ctx, f); err != nil {
			return nil, fmt.Errorf("persist finding %s: %w", findingID, err)
		}
		a.logger.Info("finding ignored",
			logging.Field{Key: "run_id", Value: runID},
			logging.Field{Key: "finding_id", Value: findingID})
		return &f, nil
	}
	return nil, fmt.Errorf("ignore %s: %w", findingID, store.ErrFindingNotFound)
}
