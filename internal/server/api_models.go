package server

// StartScanResponse is returned when a scan has been accepted.
type StartScanResponse struct {
	RunID  string `json:"run_id" example:"6f1c1c2e-8d4b-4c1a-9a57-1d2f3e4a5b6c"`
	Status string `json:"status" example:"Pending"`
}

// ApplyFixesRequest names the findings to fix. An empty list fixes every
// open auto-fixable finding of the run.
type ApplyFixesRequest struct {
	FindingIDs []string `json:"finding_ids" example:"[\"0b6d6c3e-6a7f-5d0c-9a55-1f0e2b8c4d21\"]"`
}

// ContrastRequest is a standalone colour pair check.
type ContrastRequest struct {
	Foreground string `json:"foreground" example:"#777777"`
	Background string `json:"background" example:"#ffffff"`
	TextSize   string `json:"text_size" example:"normal"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error" example:"run not found"`
	Kind  string `json:"kind,omitempty" example:"InvalidInput"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}
