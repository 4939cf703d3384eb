// Package demosite serves a small bookshop site with known accessibility
// defects, and a remediated version of it, for demos and end-to-end tests.
package demosite

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

// DemoSite is the HTTP server of the demo pages.
type DemoSite struct {
	cfg   Config
	pages map[string]PageDefinition

	mu      sync.RWMutex
	version int
}

// New creates a demo site serving cfg.InitialVersion.
func New(cfg Config) *DemoSite {
	if cfg.InitialVersion != VersionFixed {
		cfg.InitialVersion = VersionBroken
	}
	pageMap := make(map[string]PageDefinition)
	for _, p := range GetAllPages() {
		pageMap[p.Path] = p
	}
	return &DemoSite{cfg: cfg, pages: pageMap, version: cfg.InitialVersion}
}

// Version returns the version currently served.
func (s *DemoSite) Version() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// SetVersion switches every page to version v. Unknown versions are
// rejected.
func (s *DemoSite) SetVersion(v int) error {
	if v != VersionBroken && v != VersionFixed {
		return fmt.Errorf("unknown version %d", v)
	}
	s.mu.Lock()
	s.version = v
	s.mu.Unlock()
	return nil
}

// Handler routes the demo pages and the version control endpoints.
func (s *DemoSite) Handler() http.Handler {
	r := chi.NewRouter()
	for path := range s.pages {
		r.Get(path, s.pageHandler(path))
	}
	r.Get("/demo/version", s.getVersionHandler)
	r.Post("/demo/set-version", s.setVersionHandler)
	return r
}

// Start listens on cfg.Port until the server fails.
func (s *DemoSite) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	fmt.Printf("Demo site starting on http://localhost%s\n", addr)
	fmt.Printf("Switch versions with: curl -X POST 'http://localhost%s/demo/set-version?v=2'\n", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *DemoSite) pageHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := s.pages[path].Versions[s.Version()]
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}
}

func (s *DemoSite) getVersionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{"version": s.Version()})
}

func (s *DemoSite) setVersionHandler(w http.ResponseWriter, r *http.Request) {
	v, err := strconv.Atoi(r.URL.Query().Get("v"))
	if err != nil {
		http.Error(w, "v must be a number", http.StatusBadRequest)
		return
	}
	if err := s.SetVersion(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.getVersionHandler(w, r)
}

// Pages renders every page at version v keyed by its absolute URL under
// base, for tests that serve the site without HTTP.
func Pages(base string, version int) map[string]string {
	base = strings.TrimRight(base, "/")
	out := make(map[string]string)
	for _, p := range GetAllPages() {
		out[base+p.Path] = p.Versions[version]
	}
	return out
}
