package model

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"
)

// WCAGLevel is the conformance level a scan audits against.
type WCAGLevel string

const (
	LevelA   WCAGLevel = "A"
	LevelAA  WCAGLevel = "AA"
	LevelAAA WCAGLevel = "AAA"
)

// Rank orders levels so A < AA < AAA. Unknown levels rank 0.
func (l WCAGLevel) Rank() int {
	switch l {
	case LevelA:
		return 1
	case LevelAA:
		return 2
	case LevelAAA:
		return 3
	default:
		return 0
	}
}

// Valid reports whether l is one of A, AA or AAA.
func (l WCAGLevel) Valid() bool { return l.Rank() > 0 }

// Includes reports whether auditing at l covers criteria of level other.
func (l WCAGLevel) Includes(other WCAGLevel) bool {
	return other.Rank() > 0 && other.Rank() <= l.Rank()
}

// Request defaults applied by Normalize.
const (
	DefaultMaxDepth = 3
	DefaultMaxPages = 10
	DefaultScheme   = "https"
)

// ScanRequest describes what to crawl and audit. It is immutable once a run
// has been created from it.
type ScanRequest struct {
	// URL is the seed page.
	URL string `json:"url"`

	// WCAGLevel is the conformance level to audit against.
	WCAGLevel WCAGLevel `json:"wcag_level"`

	// MaxDepth bounds link distance from the seed (seed = 0).
	MaxDepth int `json:"max_depth"`

	// MaxPages bounds the number of pages visited, seed included.
	MaxPages int `json:"max_pages"`

	// IncludeSubdomains widens the crawl scope to the seed's registrable domain.
	IncludeSubdomains bool `json:"include_subdomains"`
}

// DecodeScanRequest reads a JSON request body, rejecting unknown fields.
func DecodeScanRequest(r io.Reader) (ScanRequest, error) {
	var req ScanRequest
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return ScanRequest{}, NewError(InvalidInput, fmt.Errorf("decode scan request: %w", err))
	}
	return req, nil
}

// Normalize fills defaults and validates the request. A zero MaxDepth is
// treated as "unset" only when MaxPages is also zero, so callers can still
// ask for a seed-only scan with MaxDepth 0 and an explicit MaxPages.
func (r ScanRequest) Normalize() (ScanRequest, error) {
	out := r
	out.URL = strings.TrimSpace(out.URL)
	if out.URL == "" {
		return out, NewError(InvalidInput, fmt.Errorf("url is required"))
	}
	if !strings.Contains(out.URL, "://") {
		out.URL = DefaultScheme + "://" + out.URL
	}
	u, err := url.Parse(out.URL)
	if err != nil {
		return out, NewError(InvalidInput, fmt.Errorf("parse url %q: %w", out.URL, err))
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return out, NewError(InvalidInput, fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
	if u.Hostname() == "" {
		return out, NewError(InvalidInput, fmt.Errorf("url %q has no host", out.URL))
	}

	if out.WCAGLevel == "" {
		out.WCAGLevel = LevelAA
	}
	out.WCAGLevel = WCAGLevel(strings.ToUpper(string(out.WCAGLevel)))
	if !out.WCAGLevel.Valid() {
		return out, NewError(InvalidInput, fmt.Errorf("unknown wcag level %q", r.WCAGLevel))
	}

	if out.MaxDepth == 0 && out.MaxPages == 0 {
		out.MaxDepth = DefaultMaxDepth
	}
	if out.MaxPages == 0 {
		out.MaxPages = DefaultMaxPages
	}
	if out.MaxDepth < 0 {
		return out, NewError(InvalidInput, fmt.Errorf("max_depth must be >= 0, got %d", out.MaxDepth))
	}
	if out.MaxPages < 1 {
		return out, NewError(InvalidInput, fmt.Errorf("max_pages must be >= 1, got %d", out.MaxPages))
	}
	return out, nil
}

// ScanStatus is the lifecycle state of a run.
type ScanStatus string

const (
	StatusPending    ScanStatus = "Pending"
	StatusInProgress ScanStatus = "InProgress"
	StatusCompleted  ScanStatus = "Completed"
	StatusFailed     ScanStatus = "Failed"
)

// Terminal reports whether no further transition can happen.
func (s ScanStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// RunError is the serializable failure attached to a run or a page.
type RunError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// RuleError records a rule that failed on one page.
type RuleError struct {
	RuleID  string `json:"rule_id"`
	Message string `json:"message"`
}

// PageResult is the audit outcome for one fetched page.
type PageResult struct {
	URL        string      `json:"url"`
	Depth      int         `json:"depth"`
	Seq        int         `json:"seq"`
	StatusCode int         `json:"status_code,omitempty"`
	FetchedAt  time.Time   `json:"fetched_at"`
	Findings   []Finding   `json:"findings"`
	Error      *RunError   `json:"error,omitempty"`
	RuleErrors []RuleError `json:"rule_errors,omitempty"`
}

// ScanRun is one execution of a ScanRequest.
type ScanRun struct {
	ID      string      `json:"id"`
	Request ScanRequest `json:"request"`
	Status  ScanStatus  `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Pages is kept in crawl discovery order once the run is terminal.
	Pages           []PageResult `json:"pages_scanned"`
	PagesDiscovered int          `json:"pages_discovered"`

	// ComplianceScore stays nil until the run is Completed.
	ComplianceScore *float64 `json:"compliance_score,omitempty"`

	Error *RunError `json:"error,omitempty"`
}

// Findings flattens every page's findings in page order.
func (r *ScanRun) Findings() []Finding {
	var out []Finding
	for _, p := range r.Pages {
		out = append(out, p.Findings...)
	}
	return out
}

// Clone returns a deep copy safe to hand to other goroutines.
func (r *ScanRun) Clone() *ScanRun {
	if r == nil {
		return nil
	}
	c := *r
	if r.StartedAt != nil {
		t := *r.StartedAt
		c.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	if r.ComplianceScore != nil {
		s := *r.ComplianceScore
		c.ComplianceScore = &s
	}
	if r.Error != nil {
		e := *r.Error
		c.Error = &e
	}
	if r.Pages == nil {
		return &c
	}
	c.Pages = make([]PageResult, len(r.Pages))
	for i, p := range r.Pages {
		cp := p
		if p.Findings != nil {
			cp.Findings = make([]Finding, len(p.Findings))
			for j, f := range p.Findings {
				cp.Findings[j] = f.Clone()
			}
		}
		cp.RuleErrors = append([]RuleError(nil), p.RuleErrors...)
		if p.Error != nil {
			e := *p.Error
			cp.Error = &e
		}
		c.Pages[i] = cp
	}
	return &c
}
