package strategy

import (
	"math"
	"time"

	apperrors "github.com/smq100/inish-optionanalysis-sub000/internal/errors"
	"github.com/smq100/inish-optionanalysis-sub000/internal/leg"
	"github.com/smq100/inish-optionanalysis-sub000/internal/market"
	"github.com/smq100/inish-optionanalysis-sub000/internal/models"
)

// Vertical is a two-leg spread of one product at different strikes.
// Leg 0 is always the long leg.
type Vertical struct {
	base
	product models.Product
}

// NewVertical builds a vertical spread anchored at strike. A long
// (debit) spread buys strike and sells strike+width for calls or
// strike-width for puts; a short (credit) spread sells strike and buys the
// other.
func NewVertical(mkt *market.Context, product models.Product, direction models.Direction, strike, width float64, expiry time.Time, quantity int, cfg leg.Config) (*Vertical, error) {
	if width <= 0 {
		return nil, apperrors.NewValidationError("width", width, "must be positive", apperrors.ErrInvalidStrike)
	}

	other := strike + width
	if product == models.ProductPut {
		other = strike - width
	}

	longStrike, shortStrike := strike, other
	if direction == models.DirectionShort {
		longStrike, shortStrike = other, strike
	}

	long, err := leg.New(mkt, product, models.DirectionLong, longStrike, expiry, quantity, cfg)
	if err != nil {
		return nil, err
	}
	short, err := leg.New(mkt, product, models.DirectionShort, shortStrike, expiry, quantity, cfg)
	if err != nil {
		return nil, err
	}

	return &Vertical{base: newBase(KindVertical, direction, mkt, long, short), product: product}, nil
}

// Product returns the option type of both legs.
func (s *Vertical) Product() models.Product { return s.product }

func (s *Vertical) Analyze() (*Analysis, error) { return s.run(s) }

func (s *Vertical) validate() error {
	if err := s.checkLegs([]models.Product{s.product, s.product}); err != nil {
		return err
	}
	if s.legs[0].Direction() != models.DirectionLong || s.legs[1].Direction() != models.DirectionShort {
		return apperrors.NewStrategyError(string(s.kind), "leg 0 must be long and leg 1 short")
	}
	if s.legs[0].Strike() == s.legs[1].Strike() {
		return apperrors.NewStrategyError(string(s.kind), "strikes must differ")
	}
	return nil
}

func (s *Vertical) compute() (*Analysis, error) {
	if err := s.price(); err != nil {
		return nil, err
	}
	tables, err := s.tables()
	if err != nil {
		return nil, err
	}

	qty := float64(s.quantity())
	p0, p1 := s.legs[0].Price(), s.legs[1].Price()
	k0, k1 := s.legs[0].Strike(), s.legs[1].Strike()
	total := math.Abs(p0-p1) * qty
	width := math.Abs(k0-k1) * qty

	cd := Credit
	offset := total
	if p0 > p1 {
		cd, offset = Debit, -total
	}
	table := profitTable(tables, []float64{qty, -qty}, offset)

	var maxGain, maxLoss float64
	if cd == Debit {
		maxGain, maxLoss = math.Max(0, width-total), total
	} else {
		maxGain, maxLoss = total, math.Max(0, width-total)
	}

	var breakeven float64
	if s.product == models.ProductCall {
		breakeven = math.Min(k0, k1) + total/qty
	} else {
		breakeven = math.Max(k0, k1) - total/qty
	}

	// Owning the lower strike profits from a rise for either product.
	sentiment, pop := Bearish, 1-s.probAbove(breakeven)
	if k0 < k1 {
		sentiment, pop = Bullish, s.probAbove(breakeven)
	}

	return s.newAnalysis(cd, total, maxGain, maxLoss, []float64{breakeven}, sentiment, pop, table), nil
}
