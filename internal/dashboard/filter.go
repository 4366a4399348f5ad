package dashboard

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"air-server/internal/model"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// ColumnFilter narrows rows on one column. Numeric columns compare against
// Number with Op; text columns match Text as a case-insensitive substring.
type ColumnFilter struct {
	Column string
	Op     string
	Number float64
	Text   string
}

var operators = []string{">=", "<=", "!=", "=", ">", "<"}

// ParseColumnFilter reads raw as entered in a column's filter box:
// "> 0.5" or "500" for numeric columns, any text for the rest.
func ParseColumnFilter(column, raw string) (ColumnFilter, error) {
	col, ok := columnByID(column)
	if !ok {
		return ColumnFilter{}, fmt.Errorf("unknown column %q", column)
	}
	raw = strings.TrimSpace(raw)
	if !col.Numeric {
		return ColumnFilter{Column: column, Text: strings.ToLower(raw)}, nil
	}
	op := "="
	for _, candidate := range operators {
		if strings.HasPrefix(raw, candidate) {
			op = candidate
			raw = strings.TrimSpace(raw[len(candidate):])
			break
		}
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return ColumnFilter{}, fmt.Errorf("filter on %s: %q is not a number", column, raw)
	}
	return ColumnFilter{Column: column, Op: op, Number: n}, nil
}

// Match reports whether the displayed value v passes the filter.
func (f ColumnFilter) Match(v any) bool {
	if f.Op == "" {
		if v == nil {
			return f.Text == ""
		}
		return strings.Contains(strings.ToLower(fmt.Sprint(v)), f.Text)
	}
	x, ok := number(v)
	if !ok {
		return false
	}
	switch f.Op {
	case "=":
		return x == f.Number
	case "!=":
		return x != f.Number
	case ">":
		return x > f.Number
	case ">=":
		return x >= f.Number
	case "<":
		return x < f.Number
	case "<=":
		return x <= f.Number
	}
	return false
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// ErrNotBoolean is returned when a where expression yields a non-boolean.
var ErrNotBoolean = errors.New("expression must evaluate to a boolean")

// ExprError reports a where expression that failed to compile or run.
type ExprError struct {
	Expr string
	Err  error
}

func (e *ExprError) Error() string {
	return fmt.Sprintf("where %q: %v", e.Expr, e.Err)
}

func (e *ExprError) Unwrap() error { return e.Err }

// RowFilter is a compiled where expression, e.g.
//
//	status_code >= 400 && username != "Unknown"
//
// evaluated against a record's raw columns plus "now", the time of the
// request:
//
//	timestamp > now - duration("1h")
type RowFilter struct {
	expr    string
	program *exprvm.Program
}

// CompileRowFilter compiles expression. An empty expression yields nil,
// which keeps every row.
func CompileRowFilter(expression string) (*RowFilter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, nil
	}
	program, err := exprlang.Compile(expression,
		exprlang.Env(rowEnv(model.AuditRecord{}.Fields(), time.Time{})),
		exprlang.DisableBuiltin("now"),
		exprlang.AsBool(),
	)
	if err != nil {
		return nil, &ExprError{Expr: expression, Err: err}
	}
	return &RowFilter{expr: expression, program: program}, nil
}

// rowEnv is the variable set a where expression sees. Compiling against a
// zero record types each column; unknown names fail to compile.
func rowEnv(fields map[string]any, now time.Time) map[string]any {
	env := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		env[k] = v
	}
	env["now"] = now
	return env
}

// Keep evaluates the filter for one record's fields.
func (f *RowFilter) Keep(fields map[string]any, now time.Time) (bool, error) {
	if f == nil {
		return true, nil
	}
	out, err := exprlang.Run(f.program, rowEnv(fields, now))
	if err != nil {
		return false, &ExprError{Expr: f.expr, Err: err}
	}
	b, ok := out.(bool)
	if !ok {
		return false, &ExprError{Expr: f.expr, Err: ErrNotBoolean}
	}
	return b, nil
}
