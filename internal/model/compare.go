package model

import (
	"fmt"
	"strings"
	"time"
)

// ColumnWidths caps the length of bounded text columns.
var ColumnWidths = map[string]int{
	ColMachine:      128,
	ColUsername:     128,
	ColClientIP:     128,
	ColEndpoint:     128,
	ColMethod:       10,
	ColErrorMessage: 512,
	ColUserAgent:    256,
	ColReferrer:     256,
}

// Clamp truncates bounded text columns to their width.
func (r AuditRecord) Clamp() AuditRecord {
	r.Machine = truncate(r.Machine, ColumnWidths[ColMachine])
	r.Username = truncate(r.Username, ColumnWidths[ColUsername])
	r.ClientIP = truncate(r.ClientIP, ColumnWidths[ColClientIP])
	r.Endpoint = truncate(r.Endpoint, ColumnWidths[ColEndpoint])
	r.Method = truncate(r.Method, ColumnWidths[ColMethod])
	r.UserAgent = truncate(r.UserAgent, ColumnWidths[ColUserAgent])
	r.Referrer = truncate(r.Referrer, ColumnWidths[ColReferrer])
	if r.ErrorMessage != nil {
		s := truncate(*r.ErrorMessage, ColumnWidths[ColErrorMessage])
		r.ErrorMessage = &s
	}
	return r
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	// Back off to a rune boundary.
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// CompareValues orders two column values. nil sorts first; mixed types fall
// back to their text form.
func CompareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	switch x := a.(type) {
	case int64:
		if y, ok := toFloat(b); ok {
			return cmpFloat(float64(x), y)
		}
	case int:
		if y, ok := toFloat(b); ok {
			return cmpFloat(float64(x), y)
		}
	case float64:
		if y, ok := toFloat(b); ok {
			return cmpFloat(x, y)
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
