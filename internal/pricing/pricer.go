package pricing

import (
	"math/rand"
	"time"

	"air-server/internal/model"

	"github.com/google/uuid"
)

// Options are the free-text switches sent alongside the grids, already
// lower-cased. Nil means the caller did not send the field.
type Options struct {
	Option1 *string
	Option2 *string
	Culture *string
}

type Context struct {
	Index    int
	Scenario Scenario
	Options  Options
}

// Pricer turns one scenario into a row of result items.
type Pricer interface {
	Name() string
	Price(ctx Context) (model.ResultRow, error)
}

// DateLayout formats dates returned to clients.
const DateLayout = "2006-01-02"

// StubPricer stands in for a pricing library. It returns an identifier, a
// pseudo-random float in [1, 2) and today's date for every scenario.
type StubPricer struct {
	NewID func() string
	Rand  func() float64
	Now   func() time.Time
}

func NewStubPricer() *StubPricer {
	return &StubPricer{
		NewID: func() string { return "AIR - " + uuid.NewString() },
		Rand:  rand.Float64,
		Now:   time.Now,
	}
}

func (p *StubPricer) Name() string { return "stub" }

func (p *StubPricer) Price(ctx Context) (model.ResultRow, error) {
	return model.ResultRow{
		{Value: p.NewID(), Type: model.ItemString},
		{Value: 1 + p.Rand(), Type: model.ItemFloat},
		{Value: p.Now().Format(DateLayout), Type: model.ItemDate},
	}, nil
}
