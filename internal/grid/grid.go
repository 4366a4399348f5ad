package grid

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultFallback is used by Clean when no grid text was supplied.
const DefaultFallback = `[["#N/A"]]`

// Grid is a spreadsheet-shaped payload: rows of JSON cells.
// Numbers are kept as json.Number so they round-trip unchanged.
type Grid [][]any

// ParseError reports grid text that is not a JSON array of arrays.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid grid %s: %v", abbreviate(e.Input), e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes JSON text into a Grid. The top level must be an array whose
// elements are themselves arrays; cells may be any JSON value.
func Parse(raw string) (Grid, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var top any
	if err := dec.Decode(&top); err != nil {
		return nil, &ParseError{Input: raw, Err: err}
	}
	if dec.More() {
		return nil, &ParseError{Input: raw, Err: fmt.Errorf("unexpected data after grid")}
	}
	rows, ok := top.([]any)
	if !ok {
		return nil, &ParseError{Input: raw, Err: fmt.Errorf("grid is %s, expected an array", kindOf(top))}
	}

	g := make(Grid, 0, len(rows))
	for i, r := range rows {
		row, ok := r.([]any)
		if !ok {
			return nil, &ParseError{Input: raw, Err: fmt.Errorf("row %d is %s, expected an array", i, kindOf(r))}
		}
		g = append(g, row)
	}
	return g, nil
}

// Clean parses raw (or fallback when raw is empty), drops empty rows and
// columns, and replaces the remaining empty cells with "".
func Clean(raw, fallback string) (Grid, error) {
	if strings.TrimSpace(raw) == "" {
		raw = fallback
	}
	g, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	g = RemoveEmptyRowsAndCols(g)
	return ReplaceEmptyValues(g, ""), nil
}

// RemoveEmptyRowsAndCols drops rows whose cells are all blank, then columns
// whose cells are all blank (see IsBlank). Ragged rows are truncated to the
// shortest row by the column pass (see Transpose).
func RemoveEmptyRowsAndCols(g Grid) Grid {
	rows := make(Grid, 0, len(g))
	for _, row := range g {
		if anyPresent(row) {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return Grid{}
	}

	cols := make(Grid, 0)
	for _, col := range Transpose(rows) {
		if anyPresent(col) {
			cols = append(cols, col)
		}
	}
	return Transpose(cols)
}

// ReplaceEmptyValues returns a copy of g with every empty cell set to replacement.
func ReplaceEmptyValues(g Grid, replacement any) Grid {
	out := make(Grid, len(g))
	for i, row := range g {
		r := make([]any, len(row))
		for j, cell := range row {
			if IsEmpty(cell) {
				r[j] = replacement
			} else {
				r[j] = cell
			}
		}
		out[i] = r
	}
	return out
}

// Transpose swaps rows and columns. Ragged input is zipped to the shortest
// row: cells beyond it are dropped.
func Transpose(g Grid) Grid {
	if len(g) == 0 {
		return Grid{}
	}
	width := len(g[0])
	for _, row := range g[1:] {
		if len(row) < width {
			width = len(row)
		}
	}
	out := make(Grid, width)
	for j := 0; j < width; j++ {
		col := make([]any, len(g))
		for i := range g {
			col[i] = g[i][j]
		}
		out[j] = col
	}
	return out
}

// IsEmpty reports whether a cell carries no data: null, "", [] or {}.
// Numbers and booleans always count as data here; ReplaceEmptyValues keeps
// them.
func IsEmpty(cell any) bool {
	switch v := cell.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

// CellString renders a cell as text, e.g. for use as a field name.
func CellString(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return fmt.Sprint(v)
		}
		return strings.TrimSuffix(buf.String(), "\n")
	}
}

// IsBlank is the test used to drop whole rows and columns: an empty cell,
// false, or a number equal to zero.
func IsBlank(cell any) bool {
	switch v := cell.(type) {
	case bool:
		return !v
	case json.Number:
		f, err := v.Float64()
		return err == nil && f == 0
	case float64:
		return v == 0
	case int:
		return v == 0
	default:
		return IsEmpty(cell)
	}
}

func anyPresent(cells []any) bool {
	for _, c := range cells {
		if !IsBlank(c) {
			return true
		}
	}
	return false
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "a string"
	case json.Number:
		return "a number"
	case bool:
		return "a boolean"
	case map[string]any:
		return "an object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func abbreviate(s string) string {
	const limit = 64
	if len(s) <= limit {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%q...", s[:limit])
}
