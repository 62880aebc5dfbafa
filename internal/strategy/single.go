package strategy

import (
	"math"
	"time"

	"github.com/smq100/inish-optionanalysis-sub000/internal/leg"
	"github.com/smq100/inish-optionanalysis-sub000/internal/market"
	"github.com/smq100/inish-optionanalysis-sub000/internal/models"
)

// Call is a single long or short call.
type Call struct {
	base
}

// NewCall creates a single call position.
func NewCall(mkt *market.Context, direction models.Direction, strike float64, expiry time.Time, quantity int, cfg leg.Config) (*Call, error) {
	l, err := leg.New(mkt, models.ProductCall, direction, strike, expiry, quantity, cfg)
	if err != nil {
		return nil, err
	}
	return &Call{base: newBase(KindCall, direction, mkt, l)}, nil
}

func (s *Call) Analyze() (*Analysis, error) { return s.run(s) }

func (s *Call) validate() error {
	return s.checkLegs([]models.Product{models.ProductCall})
}

func (s *Call) compute() (*Analysis, error) {
	return s.single()
}

// Put is a single long or short put.
type Put struct {
	base
}

// NewPut creates a single put position.
func NewPut(mkt *market.Context, direction models.Direction, strike float64, expiry time.Time, quantity int, cfg leg.Config) (*Put, error) {
	l, err := leg.New(mkt, models.ProductPut, direction, strike, expiry, quantity, cfg)
	if err != nil {
		return nil, err
	}
	return &Put{base: newBase(KindPut, direction, mkt, l)}, nil
}

func (s *Put) Analyze() (*Analysis, error) { return s.run(s) }

func (s *Put) validate() error {
	return s.checkLegs([]models.Product{models.ProductPut})
}

func (s *Put) compute() (*Analysis, error) {
	return s.single()
}

// single analyzes a one-leg position. Profit is per unit times quantity;
// a short position's profit is not floored.
func (b *base) single() (*Analysis, error) {
	if err := b.price(); err != nil {
		return nil, err
	}
	tables, err := b.tables()
	if err != nil {
		return nil, err
	}

	l := b.legs[0]
	qty := float64(l.Quantity())
	premium := l.Price()
	amount := premium * qty
	long := l.Direction() == models.DirectionLong

	var cd CreditDebit
	var weight, offset float64
	if long {
		cd, weight, offset = Debit, qty, -amount
	} else {
		// No floor at -amount. Short losses track the option value, as the
		// max loss below does.
		cd, weight, offset = Credit, -qty, amount
	}
	table := profitTable(tables, []float64{weight}, offset)

	var maxGain, maxLoss, breakeven, pop float64
	var sentiment Sentiment
	if l.Product() == models.ProductCall {
		breakeven = l.Strike() + premium
		above := b.probAbove(breakeven)
		if long {
			maxGain, maxLoss, sentiment, pop = Unbounded, amount, Bullish, above
		} else {
			maxGain, maxLoss, sentiment, pop = amount, Unbounded, Bearish, 1-above
		}
	} else {
		breakeven = l.Strike() - premium
		above := b.probAbove(breakeven)
		intrinsic := math.Max(0, (l.Strike()-premium)*qty)
		if long {
			maxGain, maxLoss, sentiment, pop = intrinsic, amount, Bearish, 1-above
		} else {
			maxGain, maxLoss, sentiment, pop = amount, intrinsic, Bullish, above
		}
	}

	return b.newAnalysis(cd, amount, maxGain, maxLoss, []float64{breakeven}, sentiment, pop, table), nil
}
