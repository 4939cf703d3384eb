package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/raysh454/a11yscan/docs/swagger" // registers the swagger spec
	"github.com/raysh454/a11yscan/internal/app"
	"github.com/raysh454/a11yscan/internal/fix"
	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/store"
)

// Server is the HTTP + WebSocket API surface over an orchestrator.
type Server struct {
	cfg          Config
	orchestrator *app.Orchestrator
	router       chi.Router
	upgrader     websocket.Upgrader
	logger       logging.Logger
}

// NewServer wires the routes onto orch. The caller owns orch and shuts it
// down after the HTTP server has stopped.
func NewServer(cfg Config, orch *app.Orchestrator) (*Server, error) {
	if orch == nil {
		return nil, errors.New("server: orchestrator is nil")
	}
	def := DefaultConfig()
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if cfg.AllowedOrigin == "" {
		cfg.AllowedOrigin = def.AllowedOrigin
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("Server")
	}

	s := &Server{
		cfg:          cfg,
		orchestrator: orch,
		router:       chi.NewRouter(),
		logger:       logger,
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	s.routes()
	return s, nil
}

// Orchestrator returns the underlying orchestrator for advanced use (tests, etc.).
func (s *Server) Orchestrator() *app.Orchestrator {
	return s.orchestrator
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/scans", s.optionsHandler("GET, POST"))
	r.Options("/scans/{runID}", s.optionsHandler("GET, DELETE"))
	r.Options("/scans/{runID}/fixes", s.optionsHandler("POST"))
	r.Options("/scans/{runID}/findings/{findingID}/ignore", s.optionsHandler("POST"))
	r.Options("/contrast", s.optionsHandler("POST"))

	// Scans
	r.Post("/scans", s.handleStartScan)
	r.Get("/scans", s.handleListScans)
	r.Get("/scans/{runID}", s.handleGetScan)
	r.Delete("/scans/{runID}", s.handleCancelScan)
	r.Get("/scans/{runID}/report", s.handleGetReport)

	// Findings and remediation
	r.Get("/scans/{runID}/findings", s.handleListFindings)
	r.Post("/scans/{runID}/fixes", s.handleApplyFixes)
	r.Post("/scans/{runID}/findings/{findingID}/ignore", s.handleIgnoreFinding)

	// Tools
	r.Post("/contrast", s.handleCheckContrast)
	r.Get("/rules", s.handleListRules)
	r.Get("/healthz", s.handleHealth)

	// WebSocket for run progress
	r.Get("/ws/scans/{runID}", s.handleScanWS)

	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.cfg.AllowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.cfg.AllowedOrigin == "*" {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || strings.EqualFold(origin, s.cfg.AllowedOrigin)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}

	if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
		if bodyBytes, err := io.ReadAll(r.Body); err == nil {
			fields = append(fields, logging.Field{Key: "body", Value: string(bodyBytes)})
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	s.logger.Debug("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: 0, // allow streaming
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeFailure maps an orchestrator error onto a status code.
func (s *Server) writeFailure(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrRunNotFound), errors.Is(err, store.ErrFindingNotFound):
		status = http.StatusNotFound
	case model.IsKind(err, model.InvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, app.ErrRunNotCompleted), errors.Is(err, app.ErrRunFinished), errors.Is(err, fix.ErrAlreadyFixed):
		status = http.StatusConflict
	case errors.Is(err, app.ErrShuttingDown):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.logger.Error(op, logging.Err(err))
	} else {
		s.logger.Debug(op, logging.Err(err))
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: string(model.KindOf(err))})
}

// --- HTTP handlers ---

// Scans

// handleStartScan godoc
// @Summary Start a scan
// @Tags scans
// @Accept json
// @Produce json
// @Param request body model.ScanRequest true "Scan request"
// @Success 202 {object} StartScanResponse
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /scans [post]
func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	req, err := model.DecodeScanRequest(r.Body)
	if err != nil {
		s.writeFailure(w, "decoding scan request", err)
		return
	}

	id, err := s.orchestrator.StartScan(r.Context(), req)
	if err != nil {
		s.writeFailure(w, "starting scan", err)
		return
	}
	s.logger.Info("started scan", logging.Field{Key: "run_id", Value: id}, logging.Field{Key: "url", Value: req.URL})
	writeJSON(w, http.StatusAccepted, StartScanResponse{RunID: id, Status: string(model.StatusPending)})
}

// handleListScans godoc
// @Summary List scans, newest first
// @Tags scans
// @Produce json
// @Param limit query int false "Maximum number of runs"
// @Success 200 {array} model.ScanRun
// @Router /scans [get]
func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if ls := r.URL.Query().Get("limit"); ls != "" {
		v, err := strconv.Atoi(ls)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = v
	}

	runs, err := s.orchestrator.ListRuns(r.Context(), limit)
	if err != nil {
		s.writeFailure(w, "listing scans", err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleGetScan godoc
// @Summary Scan status and progress
// @Tags scans
// @Produce json
// @Param runID path string true "Run ID"
// @Success 200 {object} app.RunStatus
// @Failure 404 {object} ErrorResponse
// @Router /scans/{runID} [get]
func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	st, err := s.orchestrator.GetRunStatus(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.writeFailure(w, "getting scan", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleCancelScan godoc
// @Summary Cancel a pending or running scan
// @Tags scans
// @Param runID path string true "Run ID"
// @Success 202
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /scans/{runID} [delete]
func (s *Server) handleCancelScan(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if err := s.orchestrator.CancelScan(r.Context(), runID); err != nil {
		s.writeFailure(w, "cancelling scan", err)
		return
	}
	s.logger.Info("cancelled scan", logging.Field{Key: "run_id", Value: runID})
	w.WriteHeader(http.StatusAccepted)
}

// handleGetReport godoc
// @Summary Remediation report
// @Tags scans
// @Produce json
// @Param runID path string true "Run ID"
// @Success 200 {object} report.RunReport
// @Failure 404 {object} ErrorResponse
// @Router /scans/{runID}/report [get]
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.orchestrator.GetRunReport(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.writeFailure(w, "building report", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Findings

// handleListFindings godoc
// @Summary List findings of a run
// @Tags findings
// @Produce json
// @Param runID path string true "Run ID"
// @Param severity query string false "Critical, Major or Minor"
// @Param status query string false "Open, Fixed or Ignored"
// @Param rule query string false "Rule ID"
// @Param page query string false "Page URL"
// @Success 200 {array} model.Finding
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /scans/{runID}/findings [get]
func (s *Server) handleListFindings(w http.ResponseWriter, r *http.Request) {
	filter, err := findingFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fs, err := s.orchestrator.ListFindings(r.Context(), chi.URLParam(r, "runID"), filter)
	if err != nil {
		s.writeFailure(w, "listing findings", err)
		return
	}
	if fs == nil {
		fs = []model.Finding{}
	}
	writeJSON(w, http.StatusOK, fs)
}

func findingFilter(q url.Values) (store.FindingFilter, error) {
	f := store.FindingFilter{
		RuleID:  q.Get("rule"),
		PageURL: q.Get("page"),
	}
	if v := q.Get("severity"); v != "" {
		for _, sev := range model.Severities() {
			if strings.EqualFold(v, string(sev)) {
				f.Severity = sev
			}
		}
		if f.Severity == "" {
			return f, fmt.Errorf("unknown severity %q", v)
		}
	}
	if v := q.Get("status"); v != "" {
		for _, st := range []model.FindingStatus{model.FindingOpen, model.FindingFixed, model.FindingIgnored} {
			if strings.EqualFold(v, string(st)) {
				f.Status = st
			}
		}
		if f.Status == "" {
			return f, fmt.Errorf("unknown status %q", v)
		}
	}
	return f, nil
}

// handleApplyFixes godoc
// @Summary Apply automatic fixes
// @Tags findings
// @Accept json
// @Produce json
// @Param runID path string true "Run ID"
// @Param request body ApplyFixesRequest false "Findings to fix"
// @Success 200 {object} fix.Result
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /scans/{runID}/fixes [post]
func (s *Server) handleApplyFixes(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	var body ApplyFixesRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	res, err := s.orchestrator.ApplyFixes(r.Context(), runID, body.FindingIDs)
	if err != nil {
		s.writeFailure(w, "applying fixes", err)
		return
	}
	s.logger.Info("applied fixes",
		logging.Field{Key: "run_id", Value: runID},
		logging.Field{Key: "applied", Value: res.AppliedCount},
		logging.Field{Key: "failed", Value: len(res.Failures)})
	writeJSON(w, http.StatusOK, res)
}

// handleIgnoreFinding godoc
// @Summary Ignore a finding
// @Tags findings
// @Produce json
// @Param runID path string true "Run ID"
// @Param findingID path string true "Finding ID"
// @Success 200 {object} model.Finding
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /scans/{runID}/findings/{findingID}/ignore [post]
func (s *Server) handleIgnoreFinding(w http.ResponseWriter, r *http.Request) {
	f, err := s.orchestrator.IgnoreFinding(r.Context(), chi.URLParam(r, "runID"), chi.URLParam(r, "findingID"))
	if err != nil {
		s.writeFailure(w, "ignoring finding", err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// Tools

// handleCheckContrast godoc
// @Summary Check the contrast of a colour pair
// @Tags tools
// @Accept json
// @Produce json
// @Param request body ContrastRequest true "Colours"
// @Success 200 {object} contrast.Result
// @Failure 400 {object} ErrorResponse
// @Router /contrast [post]
func (s *Server) handleCheckContrast(w http.ResponseWriter, r *http.Request) {
	var body ContrastRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	res, err := s.orchestrator.CheckContrast(body.Foreground, body.Background, model.TextSize(strings.ToLower(body.TextSize)))
	if err != nil {
		s.writeFailure(w, "checking contrast", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleListRules godoc
// @Summary List the audit rules
// @Tags tools
// @Produce json
// @Success 200 {array} rules.Info
// @Router /rules [get]
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orchestrator.Rules())
}

// handleHealth godoc
// @Summary Health check
// @Tags tools
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /healthz [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// WebSockets

// handleScanWS streams a run's events until its result event, then closes.
func (s *Server) handleScanWS(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	events, unsubscribe, err := s.orchestrator.Subscribe(r.Context(), runID)
	if err != nil {
		s.writeFailure(w, "subscribing to scan", err)
		return
	}
	defer unsubscribe()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Err(err))
		return
	}
	defer conn.Close()

	// Drain client frames so a closed connection is noticed while idle.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				s.logger.Debug("websocket write failed", logging.Field{Key: "run_id", Value: runID}, logging.Err(err))
				return
			}
		}
	}
}
