// Package store persists scan runs, their page results and findings.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/raysh454/a11yscan/internal/model"
)

var (
	ErrRunNotFound     = errors.New("run not found")
	ErrFindingNotFound = errors.New("finding not found")
)

// FindingFilter narrows ListFindings. Zero fields match everything.
type FindingFilter struct {
	Severity model.Severity
	Status   model.FindingStatus
	RuleID   string
	PageURL  string
}

// Match reports whether f passes the filter.
func (ff FindingFilter) Match(f model.Finding) bool {
	return (ff.Severity == "" || f.Severity == ff.Severity) &&
		(ff.Status == "" || f.Status == ff.Status) &&
		(ff.RuleID == "" || f.RuleID == ff.RuleID) &&
		(ff.PageURL == "" || f.PageURL == ff.PageURL)
}

// Store is the persistence collaborator of the orchestrator. Runs handed
// in and out are copies; callers may keep mutating their own.
type Store interface {
	// SaveRun inserts or fully replaces run, its pages and findings.
	SaveRun(ctx context.Context, run *model.ScanRun) error

	// GetRun returns ErrRunNotFound for unknown ids.
	GetRun(ctx context.Context, id string) (*model.ScanRun, error)

	// ListRuns returns run headers (no pages) newest first. limit <= 0
	// means no limit.
	ListRuns(ctx context.Context, limit int) ([]*model.ScanRun, error)

	// ListFindings returns the run's findings in page then rule order.
	ListFindings(ctx context.Context, runID string, filter FindingFilter) ([]model.Finding, error)

	// UpdateFinding persists the mutable fields of f: status, fixed time
	// and applied patch.
	UpdateFinding(ctx context.Context, f model.Finding) error

	// PurgeBefore deletes terminal runs created before t and returns how
	// many were removed.
	PurgeBefore(ctx context.Context, t time.Time) (int, error)

	Close() error
}
