package webclient

import "time"

type Client string

const (
	ClientNetHTTP  Client = "nethttp"
	ClientChromedp Client = "chromedp"
)

// Config selects and tunes a WebClient backend.
type Config struct {
	Client Client

	// Timeout bounds a single request. The fetcher normally imposes a
	// tighter per-page deadline through the context.
	Timeout time.Duration

	UserAgent string

	// MaxBodyBytes truncates response bodies; 0 means DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// Chromedp options.
	Headless  bool
	IdleAfter time.Duration
}

const (
	DefaultTimeout      = 30 * time.Second
	DefaultUserAgent    = "a11yscan/0.1 (+https://github.com/raysh454/a11yscan)"
	DefaultMaxBodyBytes = 5 << 20
	DefaultIdleAfter    = 500 * time.Millisecond
)

// DefaultConfig returns the plain HTTP backend with default limits.
func DefaultConfig() Config {
	return Config{
		Client:       ClientNetHTTP,
		Timeout:      DefaultTimeout,
		UserAgent:    DefaultUserAgent,
		MaxBodyBytes: DefaultMaxBodyBytes,
		Headless:     true,
		IdleAfter:    DefaultIdleAfter,
	}
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.IdleAfter <= 0 {
		c.IdleAfter = DefaultIdleAfter
	}
	return c
}
