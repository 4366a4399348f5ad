package models

import "air-server/internal/model"

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error codes used in ErrorResponse.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInvalidID      = "INVALID_ID"
	CodeUnknownField   = "UNKNOWN_FIELD"
	CodeNotFound       = "NOT_FOUND"
	CodeInternal       = "INTERNAL_ERROR"
)

// NewError builds an ErrorResponse.
func NewError(code, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: code, Message: message}}
}

// StatusResponse reports a read that could not be served.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Store   string `json:"store"`
}

// CallsResponse lists audit records.
type CallsResponse struct {
	Items []model.AuditRecord `json:"items"`
	Count int                 `json:"count"`
}

// CountResponse is returned by GET /api/calls/count.
type CountResponse struct {
	Count int `json:"count"`
}

// DistinctResponse is returned by GET /api/calls/distinct/:field.
type DistinctResponse struct {
	Field  string `json:"field"`
	Values []any  `json:"values"`
}
