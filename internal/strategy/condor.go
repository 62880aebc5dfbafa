package strategy

import (
	"fmt"
	"math"
	"time"

	apperrors "github.com/smq100/inish-optionanalysis-sub000/internal/errors"
	"github.com/smq100/inish-optionanalysis-sub000/internal/leg"
	"github.com/smq100/inish-optionanalysis-sub000/internal/market"
	"github.com/smq100/inish-optionanalysis-sub000/internal/models"
)

var ironProducts = []models.Product{models.ProductCall, models.ProductCall, models.ProductPut, models.ProductPut}

// IronCondor is a call vertical above a put vertical. Legs 0 and 1 are
// calls, legs 2 and 3 puts, with strikes strictly decreasing.
type IronCondor struct {
	base
}

// NewIronCondor builds a condor around center. The short strikes sit inner
// away from center and the wings a further wing beyond them. A short
// (credit) condor sells the inner strikes; a long one buys them.
func NewIronCondor(mkt *market.Context, direction models.Direction, center, inner, wing float64, expiry time.Time, quantity int, cfg leg.Config) (*IronCondor, error) {
	legs, err := newIronLegs(mkt, direction, center, inner, wing, expiry, quantity, cfg)
	if err != nil {
		return nil, err
	}
	return &IronCondor{base: newBase(KindIronCondor, direction, mkt, legs...)}, nil
}

func (s *IronCondor) Analyze() (*Analysis, error) { return s.run(s) }

func (s *IronCondor) validate() error {
	if err := s.checkLegs(ironProducts); err != nil {
		return err
	}
	if err := s.checkIronDirections(); err != nil {
		return err
	}
	return s.checkDescending([2]int{0, 1}, [2]int{1, 2}, [2]int{2, 3})
}

func (s *IronCondor) compute() (*Analysis, error) {
	return s.iron(false)
}

// IronButterfly is an iron condor whose inner strikes coincide.
type IronButterfly struct {
	base
}

// NewIronButterfly builds a butterfly centered on center with wings of the
// given width.
func NewIronButterfly(mkt *market.Context, direction models.Direction, center, wing float64, expiry time.Time, quantity int, cfg leg.Config) (*IronButterfly, error) {
	legs, err := newIronLegs(mkt, direction, center, 0, wing, expiry, quantity, cfg)
	if err != nil {
		return nil, err
	}
	return &IronButterfly{base: newBase(KindIronButterfly, direction, mkt, legs...)}, nil
}

func (s *IronButterfly) Analyze() (*Analysis, error) { return s.run(s) }

func (s *IronButterfly) validate() error {
	if err := s.checkLegs(ironProducts); err != nil {
		return err
	}
	if err := s.checkIronDirections(); err != nil {
		return err
	}
	if s.legs[1].Strike() != s.legs[2].Strike() {
		return apperrors.NewStrategyError(string(s.kind),
			fmt.Sprintf("inner strikes must match (%.2f != %.2f)", s.legs[1].Strike(), s.legs[2].Strike()))
	}
	return s.checkDescending([2]int{0, 1}, [2]int{2, 3})
}

func (s *IronButterfly) compute() (*Analysis, error) {
	return s.iron(true)
}

func newIronLegs(mkt *market.Context, direction models.Direction, center, inner, wing float64, expiry time.Time, quantity int, cfg leg.Config) ([]*leg.Leg, error) {
	if direction != models.DirectionLong && direction != models.DirectionShort {
		return nil, apperrors.NewValidationError("direction", direction, "must be long or short", apperrors.ErrUnknownEnum)
	}

	wingSide, innerSide := models.DirectionLong, models.DirectionShort
	if direction == models.DirectionLong {
		wingSide, innerSide = innerSide, wingSide
	}

	specs := []struct {
		product   models.Product
		direction models.Direction
		strike    float64
	}{
		{models.ProductCall, wingSide, center + inner + wing},
		{models.ProductCall, innerSide, center + inner},
		{models.ProductPut, innerSide, center - inner},
		{models.ProductPut, wingSide, center - inner - wing},
	}

	legs := make([]*leg.Leg, len(specs))
	for i, sp := range specs {
		l, err := leg.New(mkt, sp.product, sp.direction, sp.strike, expiry, quantity, cfg)
		if err != nil {
			return nil, err
		}
		legs[i] = l
	}
	return legs, nil
}

// checkIronDirections requires each vertical to pair a long and a short
// leg with matching wings.
func (b *base) checkIronDirections() error {
	d := b.legs
	if d[0].Direction() == d[1].Direction() || d[2].Direction() == d[3].Direction() || d[0].Direction() != d[3].Direction() {
		return apperrors.NewStrategyError(string(b.kind), "wings and inner legs must take opposite sides")
	}
	return nil
}

// iron analyzes a four-leg condor or butterfly.
func (b *base) iron(butterfly bool) (*Analysis, error) {
	if err := b.price(); err != nil {
		return nil, err
	}
	tables, err := b.tables()
	if err != nil {
		return nil, err
	}

	qty := float64(b.quantity())
	p := make([]float64, 4)
	k := make([]float64, 4)
	weights := make([]float64, 4)
	var net float64
	for i, l := range b.legs {
		p[i], k[i] = l.Price(), l.Strike()
		weights[i] = l.Direction().Sign() * qty
		net += l.Direction().Sign() * p[i]
	}

	total := (math.Abs(p[0]-p[1]) + math.Abs(p[3]-p[2])) * qty
	width := math.Max(k[0]-k[1], k[2]-k[3]) * qty

	cd := Credit
	offset := total
	if net > 0 {
		cd, offset = Debit, -total
	}
	table := profitTable(tables, weights, offset)

	var maxGain, maxLoss float64
	if cd == Credit {
		maxGain, maxLoss = total, math.Max(0, width-total)
	} else {
		maxGain, maxLoss = math.Max(0, width-total), total
	}

	upper := k[1] + total/qty
	lower := k[2] - total/qty
	inside := b.probAbove(lower) - b.probAbove(upper)
	if inside < 0 {
		inside = 0
	}

	pop := inside
	if cd == Debit {
		pop = 1 - inside
	}
	if butterfly {
		pop = 0
		if width > 0 {
			pop = math.Max(0, 1-maxGain/width)
		}
	}

	return b.newAnalysis(cd, total, maxGain, maxLoss, []float64{upper, lower}, Neutral, pop, table), nil
}
