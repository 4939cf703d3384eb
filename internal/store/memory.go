package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/raysh454/a11yscan/internal/model"
)

// MemoryStore keeps runs in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*model.ScanRun
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*model.ScanRun)}
}

func (m *MemoryStore) SaveRun(_ context.Context, run *model.ScanRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run.Clone()
	return nil
}

func (m *MemoryStore) GetRun(_ context.Context, id string) (*model.ScanRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run.Clone(), nil
}

func (m *MemoryStore) ListRuns(_ context.Context, limit int) ([]*model.ScanRun, error) {
	m.mu.RLock()
	out := make([]*model.ScanRun, 0, len(m.runs))
	for _, r := range m.runs {
		h := *r
		h.Pages = nil
		out = append(out, h.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ListFindings(_ context.Context, runID string, filter FindingFilter) ([]model.Finding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	var out []model.Finding
	for _, f := range run.Findings() {
		if filter.Match(f) {
			out = append(out, f.Clone())
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateFinding(_ context.Context, f model.Finding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[f.RunID]
	if !ok {
		return ErrRunNotFound
	}
	for pi := range run.Pages {
		for fi := range run.Pages[pi].Findings {
			cur := &run.Pages[pi].Findings[fi]
			if cur.ID != f.ID {
				continue
			}
			updated := f.Clone()
			cur.Status = updated.Status
			cur.FixedAt = updated.FixedAt
			cur.AppliedPatch = updated.AppliedPatch
			return nil
		}
	}
	return ErrFindingNotFound
}

func (m *MemoryStore) PurgeBefore(_ context.Context, t time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, r := range m.runs {
		if r.Status.Terminal() && r.CreatedAt.Before(t) {
			delete(m.runs, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Close() error { return nil }
