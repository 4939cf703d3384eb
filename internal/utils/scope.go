package utils

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Scope decides which discovered links belong to a crawl.
type Scope struct {
	seed              *url.URL
	includeSubdomains bool
	registrable       string
}

// NewScope anchors a scope on seed. With includeSubdomains the scope is the
// seed's registrable domain (eTLD+1) instead of its exact origin.
func NewScope(seed string, includeSubdomains bool) (*Scope, error) {
	u, err := url.Parse(seed)
	if err != nil {
		return nil, fmt.Errorf("parse seed %q: %w", seed, err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("seed %q has no host", seed)
	}
	s := &Scope{seed: u, includeSubdomains: includeSubdomains}
	s.registrable = registrableDomain(u.Hostname())
	return s, nil
}

// Allows reports whether u is inside the scope.
func (s *Scope) Allows(u *url.URL) bool {
	if u == nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	if s.includeSubdomains {
		return registrableDomain(u.Hostname()) == s.registrable
	}
	return SameOrigin(s.seed, u)
}

// SameOrigin compares scheme, host and effective port.
func SameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) &&
		strings.EqualFold(a.Hostname(), b.Hostname()) &&
		effectivePort(a) == effectivePort(b)
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		return "80"
	case "https":
		return "443"
	}
	return ""
}

// registrableDomain returns eTLD+1 for host. IPs and single-label hosts such
// as localhost have no public suffix and are their own domain.
func registrableDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if net.ParseIP(host) != nil {
		return host
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}

var skippedSchemes = map[string]struct{}{
	"mailto": {}, "tel": {}, "javascript": {}, "data": {}, "ftp": {}, "sms": {},
}

// Extensions that are never HTML pages.
var skippedExtensions = map[string]struct{}{
	".pdf": {}, ".zip": {}, ".gz": {}, ".tar": {}, ".rar": {}, ".7z": {},
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".svg": {}, ".webp": {}, ".ico": {}, ".bmp": {},
	".mp3": {}, ".mp4": {}, ".webm": {}, ".avi": {}, ".mov": {}, ".wav": {},
	".css": {}, ".js": {}, ".json": {}, ".xml": {}, ".txt": {}, ".csv": {},
	".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {}, ".exe": {}, ".dmg": {},
}

// ResolveLink resolves href against base. It returns false for links that
// can never be crawlable pages (other schemes, binary resources, empty or
// fragment-only hrefs).
func ResolveLink(base *url.URL, href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return nil, false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}
	if _, skip := skippedSchemes[strings.ToLower(ref.Scheme)]; skip {
		return nil, false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return nil, false
	}
	if _, skip := skippedExtensions[strings.ToLower(path.Ext(abs.Path))]; skip {
		return nil, false
	}
	return abs, true
}
