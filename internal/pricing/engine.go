package pricing

import (
	"fmt"
	"strings"

	"air-server/internal/grid"
	"air-server/internal/model"
)

// Request is a pricing call as received: grid payloads still as JSON text.
type Request struct {
	Parameters string
	Values     string
	Option1    *string
	Option2    *string
	Culture    *string
}

// Result is what a pricing run produced, with the cleaned inputs kept for
// diagnostics.
type Result struct {
	Rows        []model.ResultRow
	Parameters  grid.Grid
	Values      grid.Grid
	Orientation Orientation
	Options     Options
}

type Engine struct {
	pricer Pricer
}

// New returns an engine backed by pricer, or by a StubPricer when nil.
func New(pricer Pricer) *Engine {
	if pricer == nil {
		pricer = NewStubPricer()
	}
	return &Engine{pricer: pricer}
}

func (e *Engine) Pricer() Pricer { return e.pricer }

// Run cleans both grids, orients them, builds one scenario per values row
// and prices each. Errors are *grid.ParseError, *ShapeError or come from
// the pricer.
func (e *Engine) Run(req Request) (*Result, error) {
	parameters, err := grid.Clean(req.Parameters, grid.DefaultFallback)
	if err != nil {
		return nil, fmt.Errorf("parameters: %w", err)
	}
	values, err := grid.Clean(req.Values, grid.DefaultFallback)
	if err != nil {
		return nil, fmt.Errorf("values: %w", err)
	}

	res := &Result{
		Parameters: parameters,
		Values:     values,
		Options: Options{
			Option1: lower(req.Option1),
			Option2: lower(req.Option2),
			Culture: req.Culture,
		},
	}

	parameters, values, res.Orientation = Orient(parameters, values)

	scenarios, err := BuildScenarios(parameters, values)
	if err != nil {
		return nil, err
	}

	res.Rows = make([]model.ResultRow, 0, len(scenarios))
	for idx, s := range scenarios {
		row, err := e.pricer.Price(Context{
			Index:    idx,
			Scenario: s,
			Options:  res.Options,
		})
		if err != nil {
			return nil, fmt.Errorf("scenario %d: %w", idx, err)
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

func lower(s *string) *string {
	if s == nil {
		return nil
	}
	l := strings.ToLower(*s)
	return &l
}
