package model

import "time"

// AuditRecord is one logged call to the API. Records are created once and
// only ever removed by an administrative purge.
type AuditRecord struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Machine      string    `json:"machine"`
	Username     string    `json:"username"`
	ClientIP     string    `json:"client_ip"`
	Endpoint     string    `json:"endpoint"`
	StatusCode   int       `json:"status_code"`
	Parameters   string    `json:"parameters"`    // serialized request arguments (JSON)
	ResponseTime float64   `json:"response_time"` // milliseconds
	Method       string    `json:"method"`
	ResponseBody *string   `json:"response_body"`
	ErrorMessage *string   `json:"error_message"`
	UserAgent    string    `json:"user_agent"`
	Referrer     string    `json:"referrer"`
}

// Column names, as stored and as exposed in JSON.
const (
	ColID           = "id"
	ColTimestamp    = "timestamp"
	ColMachine      = "machine"
	ColUsername     = "username"
	ColClientIP     = "client_ip"
	ColEndpoint     = "endpoint"
	ColStatusCode   = "status_code"
	ColParameters   = "parameters"
	ColResponseTime = "response_time"
	ColMethod       = "method"
	ColResponseBody = "response_body"
	ColErrorMessage = "error_message"
	ColUserAgent    = "user_agent"
	ColReferrer     = "referrer"
)

// AuditColumns lists every column in table order.
var AuditColumns = []string{
	ColID,
	ColTimestamp,
	ColMachine,
	ColUsername,
	ColClientIP,
	ColEndpoint,
	ColStatusCode,
	ColParameters,
	ColResponseTime,
	ColMethod,
	ColResponseBody,
	ColErrorMessage,
	ColUserAgent,
	ColReferrer,
}

// ColumnKind is the storage type of a column.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindInt
	KindFloat
	KindTime
)

// ColumnKinds maps each column to its storage type.
var ColumnKinds = map[string]ColumnKind{
	ColID:           KindInt,
	ColTimestamp:    KindTime,
	ColMachine:      KindText,
	ColUsername:     KindText,
	ColClientIP:     KindText,
	ColEndpoint:     KindText,
	ColStatusCode:   KindInt,
	ColParameters:   KindText,
	ColResponseTime: KindFloat,
	ColMethod:       KindText,
	ColResponseBody: KindText,
	ColErrorMessage: KindText,
	ColUserAgent:    KindText,
	ColReferrer:     KindText,
}

// Field returns the value of the named column. Optional columns that are
// unset yield nil. ok is false for unknown columns.
func (r AuditRecord) Field(name string) (v any, ok bool) {
	switch name {
	case ColID:
		return r.ID, true
	case ColTimestamp:
		return r.Timestamp, true
	case ColMachine:
		return r.Machine, true
	case ColUsername:
		return r.Username, true
	case ColClientIP:
		return r.ClientIP, true
	case ColEndpoint:
		return r.Endpoint, true
	case ColStatusCode:
		return r.StatusCode, true
	case ColParameters:
		return r.Parameters, true
	case ColResponseTime:
		return r.ResponseTime, true
	case ColMethod:
		return r.Method, true
	case ColResponseBody:
		return derefOrNil(r.ResponseBody), true
	case ColErrorMessage:
		return derefOrNil(r.ErrorMessage), true
	case ColUserAgent:
		return r.UserAgent, true
	case ColReferrer:
		return r.Referrer, true
	default:
		return nil, false
	}
}

// Fields returns the record as a column→value map.
func (r AuditRecord) Fields() map[string]any {
	out := make(map[string]any, len(AuditColumns))
	for _, c := range AuditColumns {
		out[c], _ = r.Field(c)
	}
	return out
}

// IsSuccess reports a 2xx status.
func (r AuditRecord) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

// IsError reports a 4xx or 5xx status.
func (r AuditRecord) IsError() bool {
	return r.StatusCode >= 400
}

// StringPtr returns a pointer to s, or nil for "".
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
