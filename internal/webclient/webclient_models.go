package webclient

import (
	"mime"
	"net/http"
	"strings"
	"time"
)

type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

type Response struct {
	Request    *Request
	Headers    http.Header
	Body       []byte
	StatusCode int
	FetchedAt  time.Time

	// FinalURL is the URL after redirects; empty when unknown.
	FinalURL string
}

// IsHTML reports whether the response declares an HTML media type. A
// missing Content-Type is treated as HTML.
func (r *Response) IsHTML() bool {
	if r == nil {
		return false
	}
	ct := r.Headers.Get("Content-Type")
	if ct == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.Contains(strings.ToLower(ct), "html")
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}
