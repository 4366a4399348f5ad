package auditlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"air-server/internal/model"
)

// Store is the append-only log of API calls. Every method is safe for
// concurrent use and is transactional per record; DeleteAll and BulkInsert
// are all-or-nothing.
type Store interface {
	Append(ctx context.Context, rec model.AuditRecord) (model.AuditRecord, error)
	BulkInsert(ctx context.Context, recs []model.AuditRecord) (int, error)
	Paginate(ctx context.Context, page, perPage int, filters Filters) (Page, error)
	FindByID(ctx context.Context, id int64) (*model.AuditRecord, error)
	Update(ctx context.Context, id int64, patch Patch) (*model.AuditRecord, error)
	DeleteByID(ctx context.Context, id int64) (DeleteResult, error)
	DeleteAll(ctx context.Context) (DeleteResult, error)
	CountBy(ctx context.Context, filters Filters) (int, error)
	DistinctValues(ctx context.Context, field string) ([]any, error)
	All(ctx context.Context, filters Filters) ([]model.AuditRecord, error)
	Search(ctx context.Context, term string, fields []string) ([]model.AuditRecord, error)
	Close()
}

// Filters restricts a query by column equality. Several values for one
// column match any of them; a nil value matches NULL.
type Filters map[string][]any

// Patch sets columns of an existing record.
type Patch map[string]any

// DefaultPerPage applies when Paginate is called with perPage < 1.
const DefaultPerPage = 20

// Page is one page of records ordered by id.
type Page struct {
	Items       []model.AuditRecord `json:"items"`
	Total       int                 `json:"total"`
	Pages       int                 `json:"pages"`
	CurrentPage int                 `json:"current_page"`
	PerPage     int                 `json:"per_page"`
}

const (
	StatusSuccess  = "success"
	StatusNotFound = "record not found"
	StatusError    = "error"
)

// DeleteResult reports the outcome of a delete.
type DeleteResult struct {
	Status      string `json:"status"`
	RowsDeleted *int64 `json:"rows_deleted,omitempty"`
	Message     string `json:"message,omitempty"`
}

// ErrUnknownField is returned for filters, patches or searches naming a
// column the log does not have.
var ErrUnknownField = errors.New("unknown field")

// ErrImmutableField is returned for patches touching the id.
var ErrImmutableField = errors.New("field cannot be changed")

// StorageError wraps a failure of the underlying storage.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("auditlog: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// NormalizeFilters checks column names and coerces every value to the
// column's type, so "500" filters status_code as the integer 500.
func NormalizeFilters(f Filters) (Filters, error) {
	out := make(Filters, len(f))
	for col, vals := range f {
		kind, ok := model.ColumnKinds[col]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, col)
		}
		norm := make([]any, 0, len(vals))
		for _, v := range vals {
			c, err := Coerce(kind, v)
			if err != nil {
				return nil, fmt.Errorf("filter %s: %w", col, err)
			}
			norm = append(norm, c)
		}
		out[col] = norm
	}
	return out, nil
}

// NormalizePatch checks column names and coerces values. The id cannot be
// patched.
func NormalizePatch(p Patch) (Patch, error) {
	out := make(Patch, len(p))
	for col, v := range p {
		if col == model.ColID {
			return nil, fmt.Errorf("%w: %q", ErrImmutableField, col)
		}
		kind, ok := model.ColumnKinds[col]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, col)
		}
		c, err := Coerce(kind, v)
		if err != nil {
			return nil, fmt.Errorf("patch %s: %w", col, err)
		}
		out[col] = c
	}
	return out, nil
}

// CheckFields validates column names.
func CheckFields(fields ...string) error {
	for _, f := range fields {
		if _, ok := model.ColumnKinds[f]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownField, f)
		}
	}
	return nil
}

// TextColumns lists the searchable text columns in table order.
func TextColumns() []string {
	var out []string
	for _, c := range model.AuditColumns {
		if model.ColumnKinds[c] == model.KindText {
			out = append(out, c)
		}
	}
	return out
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Coerce converts v to the Go type used for kind: int64, float64,
// time.Time or string. nil passes through.
func Coerce(kind model.ColumnKind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case model.KindInt:
		switch x := v.(type) {
		case int:
			return int64(x), nil
		case int32:
			return int64(x), nil
		case int64:
			return x, nil
		case float64:
			if x != math.Trunc(x) {
				return nil, fmt.Errorf("%v is not an integer", x)
			}
			return int64(x), nil
		case json.Number:
			return strconv.ParseInt(x.String(), 10, 64)
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%q is not an integer", x)
			}
			return n, nil
		}
	case model.KindFloat:
		switch x := v.(type) {
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case float64:
			return x, nil
		case json.Number:
			return x.Float64()
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if err != nil {
				return nil, fmt.Errorf("%q is not a number", x)
			}
			return f, nil
		}
	case model.KindTime:
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case string:
			s := strings.TrimSpace(x)
			for _, layout := range timeLayouts {
				if t, err := time.Parse(layout, s); err == nil {
					return t, nil
				}
			}
			return nil, fmt.Errorf("%q is not a timestamp", x)
		}
	case model.KindText:
		switch x := v.(type) {
		case string:
			return x, nil
		case json.Number:
			return x.String(), nil
		default:
			return fmt.Sprint(x), nil
		}
	}
	return nil, fmt.Errorf("unsupported value %v (%T)", v, v)
}

// Matches reports whether rec satisfies normalized filters.
func Matches(rec model.AuditRecord, f Filters) bool {
	for col, vals := range f {
		fv, _ := rec.Field(col)
		got, err := Coerce(model.ColumnKinds[col], fv)
		if err != nil {
			return false
		}
		hit := false
		for _, want := range vals {
			if equalValues(got, want) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return model.CompareValues(a, b) == 0
}

// applyPatch sets normalized patch values on rec.
func applyPatch(rec *model.AuditRecord, p Patch) {
	for col, v := range p {
		switch col {
		case model.ColTimestamp:
			if t, ok := v.(time.Time); ok {
				rec.Timestamp = t
			}
		case model.ColMachine:
			rec.Machine = text(v)
		case model.ColUsername:
			rec.Username = text(v)
		case model.ColClientIP:
			rec.ClientIP = text(v)
		case model.ColEndpoint:
			rec.Endpoint = text(v)
		case model.ColStatusCode:
			n, _ := v.(int64)
			rec.StatusCode = int(n)
		case model.ColParameters:
			rec.Parameters = text(v)
		case model.ColResponseTime:
			rec.ResponseTime, _ = v.(float64)
		case model.ColMethod:
			rec.Method = text(v)
		case model.ColResponseBody:
			rec.ResponseBody = optionalText(v)
		case model.ColErrorMessage:
			rec.ErrorMessage = optionalText(v)
		case model.ColUserAgent:
			rec.UserAgent = text(v)
		case model.ColReferrer:
			rec.Referrer = text(v)
		}
	}
}

func text(v any) string {
	s, _ := v.(string)
	return s
}

func optionalText(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

// sortedKeys gives filters a stable iteration order.
func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func pageCount(total, perPage int) int {
	if total == 0 {
		return 0
	}
	return (total-1)/perPage + 1
}

// pageOffset returns the index of the first record on page, or false when
// the page lies past the last record. The check precedes the multiply so
// huge page numbers cannot overflow.
func pageOffset(page, perPage, total int) (int, bool) {
	if page < 1 || page > pageCount(total, perPage) {
		return 0, false
	}
	return (page - 1) * perPage, true
}

func int64Ptr(n int64) *int64 { return &n }
