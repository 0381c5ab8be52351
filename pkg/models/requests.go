package models

import "time"

// InvestigateRequest is the body of POST /investigate.
type InvestigateRequest struct {
	Goal            string `json:"goal"`
	TargetNamespace string `json:"target_namespace,omitempty"`
	TurnBudget      int    `json:"turn_budget,omitempty"`
}

// InvestigateResponse is the 200 response of POST /investigate.
type InvestigateResponse struct {
	InvestigationID string `json:"investigation_id"`
	JobName         string `json:"job_name"`
	LogStreamHint   string `json:"log_stream_hint"`
}

// InvestigationStatusResponse is the response of GET /investigations/{id}.
type InvestigationStatusResponse struct {
	State      InvestigationState `json:"state"`
	CreatedAt  time.Time          `json:"created_at"`
	TerminalAt *time.Time         `json:"terminal_at"`
	Error      string             `json:"error,omitempty"`
}

// InvestigationListResponse is the response of GET /investigations.
type InvestigationListResponse struct {
	Investigations []*Investigation `json:"investigations"`
	TotalCount     int              `json:"total_count"`
}

// ErrorResponse is the JSON error envelope for all non-2xx responses.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}
