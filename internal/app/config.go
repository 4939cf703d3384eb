package app

import (
	"time"

	"github.com/raysh454/a11yscan/internal/fetcher"
	"github.com/raysh454/a11yscan/internal/webclient"
)

// Config holds the runtime options of the orchestrator and the components
// it builds for every run.
type Config struct {
	// Fetcher bounds per-run fetch concurrency and the per-page timeout.
	Fetcher fetcher.Config

	// WebClient selects the HTTP backend shared by all runs.
	WebClient webclient.Config

	// AuditWorkers parse and evaluate fetched pages of one run.
	AuditWorkers int

	// RunTimeout force-fails a run still in progress after this long.
	RunTimeout time.Duration

	// MaxConcurrentRuns bounds runs in progress; the rest wait as Pending.
	MaxConcurrentRuns int

	// RunRetention is how long a finished run stays cached in memory before
	// reads go to the store.
	RunRetention time.Duration

	// DBPath is the SQLite database file. Empty selects the in-memory store.
	DBPath string

	LogLevel string
}

const (
	DefaultAuditWorkers      = 4
	DefaultRunTimeout        = 30 * time.Minute
	DefaultMaxConcurrentRuns = 4
	DefaultRunRetention      = 10 * time.Minute
)

// DefaultConfig returns a Config populated with the production defaults.
func DefaultConfig() *Config {
	return &Config{
		Fetcher:           fetcher.DefaultConfig(),
		WebClient:         webclient.DefaultConfig(),
		AuditWorkers:      DefaultAuditWorkers,
		RunTimeout:        DefaultRunTimeout,
		MaxConcurrentRuns: DefaultMaxConcurrentRuns,
		RunRetention:      DefaultRunRetention,
		LogLevel:          "info",
	}
}

func (c *Config) withDefaults() *Config {
	out := *c
	if out.AuditWorkers <= 0 {
		out.AuditWorkers = DefaultAuditWorkers
	}
	if out.RunTimeout <= 0 {
		out.RunTimeout = DefaultRunTimeout
	}
	if out.MaxConcurrentRuns <= 0 {
		out.MaxConcurrentRuns = DefaultMaxConcurrentRuns
	}
	if out.RunRetention < 0 {
		out.RunRetention = 0
	}
	return &out
}
