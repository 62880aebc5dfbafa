// Package leg implements a single option position: volatility selection,
// pricing and the spot by date value table.
package leg

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/smq100/inish-optionanalysis-sub000/internal/errors"
	"github.com/smq100/inish-optionanalysis-sub000/internal/logging"
	"github.com/smq100/inish-optionanalysis-sub000/internal/market"
	"github.com/smq100/inish-optionanalysis-sub000/internal/models"
	"github.com/smq100/inish-optionanalysis-sub000/internal/pricing"
)

const (
	// DefaultImpliedVolCutoff is the implied volatility below which a
	// quote is treated as stale and historical volatility is used.
	DefaultImpliedVolCutoff = 0.020

	// minTimeToMaturity is the same-day threshold in years.
	minTimeToMaturity = 0.0003
	// expiryEpsilon replaces same-day times to maturity.
	expiryEpsilon = 1e-9
)

// Config holds pricing settings shared by legs.
type Config struct {
	Method           pricing.Method
	MonteCarlo       pricing.MonteCarloConfig
	ImpliedVolCutoff float64
	DateStepDays     int
	HalfRows         int
}

// DefaultConfig returns Black-Scholes pricing with the default grid.
func DefaultConfig() Config {
	return Config{
		Method:           pricing.MethodBlackScholes,
		MonteCarlo:       pricing.MonteCarloConfig{Simulations: pricing.DefaultSimulations, Seed: 42},
		ImpliedVolCutoff: DefaultImpliedVolCutoff,
		DateStepDays:     1,
		HalfRows:         DefaultHalfRows,
	}
}

// Leg couples one option contract to a quantity, a direction and the
// market it is priced in.
type Leg struct {
	contract  *models.OptionContract
	quantity  int
	direction models.Direction
	market    *market.Context
	cfg       Config
	logger    zerolog.Logger

	volatilityDelta float64

	priced       bool
	effectiveVol float64
	table        *ValueTable
	tableGrid    Grid
}

// New validates inputs and creates an unpriced leg.
func New(mkt *market.Context, product models.Product, direction models.Direction, strike float64, expiry time.Time, quantity int, cfg Config) (*Leg, error) {
	if mkt == nil {
		return nil, apperrors.NewValidationError("market", nil, "market context is required", apperrors.ErrInvalidTicker)
	}
	if quantity < 1 {
		return nil, apperrors.NewValidationError("quantity", quantity, "must be at least 1", apperrors.ErrInvalidQuantity)
	}
	if direction != models.DirectionLong && direction != models.DirectionShort {
		return nil, apperrors.NewValidationError("direction", direction, "must be long or short", apperrors.ErrUnknownEnum)
	}
	if cfg.Method != pricing.MethodBlackScholes && cfg.Method != pricing.MethodMonteCarlo {
		return nil, apperrors.NewValidationError("method", cfg.Method, "unknown pricing method", apperrors.ErrUnknownEnum)
	}

	contract, err := models.NewOptionContract(mkt.Ticker(), product, strike, expiry, mkt.Now())
	if err != nil {
		return nil, err
	}

	if cfg.DateStepDays <= 0 {
		cfg.DateStepDays = 1
	}
	if cfg.HalfRows <= 0 {
		cfg.HalfRows = DefaultHalfRows
	}

	return &Leg{
		contract:  contract,
		quantity:  quantity,
		direction: direction,
		market:    mkt,
		cfg:       cfg,
		logger:    zerolog.Nop(),
	}, nil
}

// WithLogger sets the leg logger.
func (l *Leg) WithLogger(logger zerolog.Logger) *Leg {
	l.logger = logger
	return l
}

func (l *Leg) Contract() *models.OptionContract { return l.contract }
func (l *Leg) Product() models.Product          { return l.contract.Product }
func (l *Leg) Strike() float64                  { return l.contract.Strike }
func (l *Leg) Expiry() time.Time                { return l.contract.Expiry }
func (l *Leg) Quantity() int                    { return l.quantity }
func (l *Leg) Direction() models.Direction      { return l.direction }
func (l *Leg) Market() *market.Context          { return l.market }
func (l *Leg) Method() pricing.Method           { return l.cfg.Method }
func (l *Leg) Config() Config                   { return l.cfg }

// Priced reports whether Calculate has run since the last change.
func (l *Leg) Priced() bool { return l.priced }

// Price returns the effective price per unit.
func (l *Leg) Price() float64 { return l.contract.EffectivePrice }

// Volatility returns the effective volatility of the last calculation.
func (l *Leg) Volatility() float64 { return l.effectiveVol }

func (l *Leg) invalidate() {
	l.priced = false
	l.table = nil
}

// SetStrike changes the strike. Any matched quote is dropped.
func (l *Leg) SetStrike(strike float64) error {
	if strike <= 0 {
		return apperrors.NewValidationError("strike", strike, "must be positive", apperrors.ErrInvalidStrike)
	}
	l.contract.Strike = strike
	l.clearQuote()
	l.invalidate()
	return nil
}

// SetExpiry changes the expiry. Any matched quote is dropped.
func (l *Leg) SetExpiry(expiry time.Time) error {
	if !models.Date(expiry).After(l.market.Today()) {
		return apperrors.NewValidationError("expiry", expiry.Format("2006-01-02"), "must be in the future", apperrors.ErrExpiryInPast)
	}
	l.contract.Expiry = models.Date(expiry)
	l.clearQuote()
	l.invalidate()
	return nil
}

// SetDirection changes the side of the position.
func (l *Leg) SetDirection(direction models.Direction) error {
	if direction != models.DirectionLong && direction != models.DirectionShort {
		return apperrors.NewValidationError("direction", direction, "must be long or short", apperrors.ErrUnknownEnum)
	}
	l.direction = direction
	l.invalidate()
	return nil
}

// SetQuantity changes the number of contracts.
func (l *Leg) SetQuantity(quantity int) error {
	if quantity < 1 {
		return apperrors.NewValidationError("quantity", quantity, "must be at least 1", apperrors.ErrInvalidQuantity)
	}
	l.quantity = quantity
	return nil
}

// SetVolatility sets the user volatility. nil clears it; zero selects the
// historical volatility.
func (l *Leg) SetVolatility(vol *float64) error {
	if vol != nil && *vol < 0 {
		return apperrors.NewValidationError("volatility", *vol, "must be non-negative", nil)
	}
	if vol == nil {
		l.contract.UserVolatility = nil
	} else {
		v := *vol
		l.contract.UserVolatility = &v
	}
	l.invalidate()
	return nil
}

// SetVolatilityDelta sets the multiplicative adjustment applied after
// volatility selection, e.g. 0.1 prices at 110% of the selected volatility.
func (l *Leg) SetVolatilityDelta(delta float64) error {
	if delta <= -1 {
		return apperrors.NewValidationError("volatility_delta", delta, "must be greater than -1", nil)
	}
	l.volatilityDelta = delta
	l.invalidate()
	return nil
}

// ApplyQuote loads implied volatility and last price from a chain row.
func (l *Leg) ApplyQuote(q models.ChainQuote) {
	l.contract.ApplyQuote(q)
	l.invalidate()
}

// MatchChain applies the chain row with this leg's product and strike.
// Returns false when no row matches.
func (l *Leg) MatchChain(quotes []models.ChainQuote) bool {
	for _, q := range quotes {
		if q.Product == l.contract.Product && math.Abs(q.Strike-l.contract.Strike) < 1e-9 {
			l.ApplyQuote(q)
			return true
		}
	}
	return false
}

func (l *Leg) clearQuote() {
	l.contract.ContractID = ""
	l.contract.ImpliedVolatility = 0
	l.contract.LastPrice = 0
}

// ResolveVolatility selects the volatility to price with: a positive user
// volatility wins; a zero user volatility or an implied volatility below
// cutoff selects historical; otherwise implied.
func ResolveVolatility(user *float64, implied, historical, cutoff float64) float64 {
	switch {
	case user != nil && *user > 0:
		return *user
	case user != nil || implied < cutoff:
		return historical
	default:
		return implied
	}
}

// EffectiveVolatility returns the resolved volatility with the delta adjustment.
func (l *Leg) EffectiveVolatility() float64 {
	c := l.contract
	vol := ResolveVolatility(c.UserVolatility, c.ImpliedVolatility, l.market.HistoricalVolatility(), l.cfg.ImpliedVolCutoff)
	return vol * (1 + l.volatilityDelta)
}

func (l *Leg) model() (pricing.Model, error) {
	tm, err := l.market.TimeToMaturity(l.contract.Expiry)
	if err != nil {
		return nil, err
	}
	in := pricing.Inputs{
		Spot:           l.market.SpotPrice(),
		Strike:         l.contract.Strike,
		Rate:           l.market.RiskFreeRate(),
		Dividend:       l.market.DividendYield(),
		Volatility:     l.effectiveVol,
		TimeToMaturity: tm,
	}
	return pricing.New(l.cfg.Method, in, l.cfg.MonteCarlo)
}

func (l *Leg) pick(call, put float64) float64 {
	if l.contract.Product == models.ProductCall {
		return call
	}
	return put
}

// Calculate prices the contract. The effective price is the last traded
// price when one is known, otherwise the model price. Greeks are filled
// when requested and the model supports them.
func (l *Leg) Calculate(withGreeks bool) (float64, models.Greeks, error) {
	c := l.contract
	c.HistoricalVolatility = l.market.HistoricalVolatility()
	l.effectiveVol = l.EffectiveVolatility()

	m, err := l.model()
	if err != nil {
		return 0, models.Greeks{}, apperrors.Wrapf(err, "pricing %s %s %.2f", c.Ticker, c.Product, c.Strike)
	}

	c.CalculatedPrice = l.pick(m.Price())
	if c.LastPrice > 0 {
		c.EffectivePrice = c.LastPrice
	} else {
		c.EffectivePrice = c.CalculatedPrice
	}

	c.Greeks = models.Greeks{}
	if withGreeks {
		callG, putG, err := m.Greeks()
		switch {
		case err == nil:
			if c.Product == models.ProductCall {
				c.Greeks = callG
			} else {
				c.Greeks = putG
			}
		case apperrors.Is(err, apperrors.ErrGreeksUnsupported):
			l.logger.Debug().Str("method", string(l.cfg.Method)).Msg("Greeks unavailable for pricing method")
		default:
			return 0, models.Greeks{}, err
		}
	}

	l.priced = true
	l.table = nil

	logging.LogPricing(l.logger, c.Ticker, string(c.Product), string(l.cfg.Method), c.Strike, l.effectiveVol, c.CalculatedPrice)
	return c.EffectivePrice, c.Greeks, nil
}

// TableOption configures GenerateValueTable.
type TableOption func(*Grid)

// WithGrid replaces the default grid centered on the strike.
func WithGrid(g Grid) TableOption {
	return func(dst *Grid) { *dst = g }
}

// GenerateValueTable prices the option at every spot row and date column
// of the grid, holding the effective volatility fixed. Repeated calls with
// the same grid return the cached table.
func (l *Leg) GenerateValueTable(opts ...TableOption) (*ValueTable, error) {
	if !l.priced {
		return nil, apperrors.NewDataError("value_table", l.contract.Ticker, "leg has not been calculated", apperrors.ErrNotPriced)
	}

	grid := DefaultGrid(l.contract.Strike, l.cfg.HalfRows)
	for _, opt := range opts {
		opt(&grid)
	}
	if grid.Step <= 0 {
		return nil, apperrors.NewValidationError("grid", grid, "step must be positive", nil)
	}
	if l.table != nil && l.tableGrid == grid {
		return l.table, nil
	}

	m, err := l.model()
	if err != nil {
		return nil, err
	}

	expiry := l.contract.Expiry
	table := NewValueTable(grid.Spots(), columnDates(l.market.Today(), expiry, l.cfg.DateStepDays))
	for col, date := range table.Dates {
		tm, err := market.TimeBetween(date, expiry)
		if err != nil {
			return nil, err
		}
		if tm < minTimeToMaturity {
			tm = expiryEpsilon
		}
		for row, spot := range table.Spots {
			table.Values[row][col] = l.pick(m.Price(pricing.WithSpot(spot), pricing.WithTimeToMaturity(tm)))
		}
	}

	l.table = table
	l.tableGrid = grid

	l.logger.Debug().
		Str("symbol", l.contract.Ticker).
		Int("rows", table.Rows()).
		Int("cols", table.Cols()).
		Msg("Value table generated")
	return table, nil
}

// Payoff returns the value of one contract at expiry for the given spot.
func (l *Leg) Payoff(spot float64) float64 {
	return l.contract.Intrinsic(spot)
}

// String describes the leg, e.g. "long 2 SPY 2026-04-17 500.00 call".
func (l *Leg) String() string {
	c := l.contract
	return fmt.Sprintf("%s %d %s %s %.2f %s", l.direction, l.quantity, c.Ticker, c.Expiry.Format("2006-01-02"), c.Strike, c.Product)
}
