// Package webclient fetches pages for the crawler. Backends share one small
// interface so a plain HTTP fetch and a headless-browser render are
// interchangeable.
package webclient

import "context"

// WebClient performs HTTP-like requests.
type WebClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)

	// Get is a convenience method for simple GET requests.
	Get(ctx context.Context, url string) (*Response, error)

	Close() error
}
