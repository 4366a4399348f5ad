package pricing

import (
	"fmt"

	"air-server/internal/grid"
)

// Orientation says whether scenarios vary down rows or across columns of the
// input grids.
type Orientation string

const (
	OrientationRows    Orientation = "rows"
	OrientationColumns Orientation = "columns"
)

// ShapeError reports grids whose dimensions cannot be turned into scenarios.
type ShapeError struct {
	Reason string
}

func (e *ShapeError) Error() string {
	return "shape mismatch: " + e.Reason
}

// Field is one named value of a scenario.
type Field struct {
	Name  string
	Value any
}

// Scenario is one priced case: field names from the parameters grid paired
// with one row of the values grid, in column order.
type Scenario struct {
	Fields []Field
}

// Get returns the value of the named field.
func (s Scenario) Get(name string) (any, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Map returns the scenario as a name→value map.
func (s Scenario) Map() map[string]any {
	out := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		out[f.Name] = f.Value
	}
	return out
}

// DetectOrientation applies the row-count heuristic: a parameters grid with
// more rows than its first row has cells is laid out in columns. It is a
// heuristic, not a shape detector, and small non-square grids can fool it.
func DetectOrientation(parameters grid.Grid) Orientation {
	if len(parameters) > 0 && len(parameters) > len(parameters[0]) {
		return OrientationColumns
	}
	return OrientationRows
}

// Orient transposes both grids when the parameters are laid out in columns.
func Orient(parameters, values grid.Grid) (grid.Grid, grid.Grid, Orientation) {
	o := DetectOrientation(parameters)
	if o == OrientationColumns {
		return grid.Transpose(parameters), grid.Transpose(values), o
	}
	return parameters, values, o
}

// BuildScenarios zips the first parameters row (field names) with each
// values row. A values row shorter or longer than the name row is truncated
// to the shorter of the two; no padding is added. A repeated name keeps its
// first position and takes the later value.
func BuildScenarios(parameters, values grid.Grid) ([]Scenario, error) {
	scenarios := make([]Scenario, 0, len(values))
	if len(values) == 0 {
		return scenarios, nil
	}
	if len(parameters) == 0 {
		return nil, &ShapeError{Reason: fmt.Sprintf("no parameter names for %d value rows", len(values))}
	}

	names := parameters[0]
	for _, row := range values {
		n := len(names)
		if len(row) < n {
			n = len(row)
		}
		s := Scenario{Fields: make([]Field, 0, n)}
		index := make(map[string]int, n)
		for i := 0; i < n; i++ {
			name := grid.CellString(names[i])
			if at, dup := index[name]; dup {
				s.Fields[at].Value = row[i]
				continue
			}
			index[name] = len(s.Fields)
			s.Fields = append(s.Fields, Field{Name: name, Value: row[i]})
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}
