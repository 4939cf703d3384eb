package fetcher

import "time"

type Config struct {
	// MaxConcurrency bounds simultaneous fetches within one run.
	MaxConcurrency int

	// PageTimeout bounds a single page fetch.
	PageTimeout time.Duration
}

const (
	DefaultMaxConcurrency = 4
	DefaultPageTimeout    = 15 * time.Second
)

// DefaultConfig returns the fetch limits used when none are configured.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: DefaultMaxConcurrency,
		PageTimeout:    DefaultPageTimeout,
	}
}
