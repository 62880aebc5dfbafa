// Package market derives the scalar pricing inputs for an underlying.
package market

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"

	apperrors "github.com/smq100/inish-optionanalysis-sub000/internal/errors"
	"github.com/smq100/inish-optionanalysis-sub000/internal/logging"
	"github.com/smq100/inish-optionanalysis-sub000/internal/marketdata"
	"github.com/smq100/inish-optionanalysis-sub000/internal/models"
)

const (
	// TradingDaysPerYear annualizes daily return volatility.
	TradingDaysPerYear = 252
	// DaysPerYear converts calendar days to years.
	DaysPerYear = 365.0
	// DefaultLookbackDays is the history window when none is given.
	DefaultLookbackDays = 365
)

// Context holds spot, historical volatility, risk-free rate and dividend
// yield for one underlying, and the clock that maturities are measured
// against. It is built once per pricing call.
type Context struct {
	ticker     string
	spot       float64
	volatility float64
	rate       float64
	dividend   float64
	now        func() time.Time
	history    []models.Candle
}

// Option configures New.
type Option func(*options)

type options struct {
	lookbackDays int
	dividend     float64
	now          func() time.Time
}

// WithLookbackDays sets the history window used for spot and volatility.
func WithLookbackDays(days int) Option {
	return func(o *options) { o.lookbackDays = days }
}

// WithDividendYield sets the continuous dividend yield.
func WithDividendYield(q float64) Option {
	return func(o *options) { o.dividend = q }
}

// WithClock sets the clock used for time to maturity.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New loads history and the risk-free rate for ticker from provider.
func New(ctx context.Context, provider marketdata.Provider, ticker string, opts ...Option) (*Context, error) {
	o := options{lookbackDays: DefaultLookbackDays, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	if ticker == "" {
		return nil, apperrors.NewValidationError("ticker", ticker, "ticker is required", apperrors.ErrInvalidTicker)
	}
	valid, err := provider.IsValidTicker(ctx, ticker)
	if err != nil {
		return nil, apperrors.Wrapf(err, "validating %s", ticker)
	}
	if !valid {
		return nil, apperrors.NewValidationError("ticker", ticker, "unknown ticker", apperrors.ErrInvalidTicker)
	}

	history, err := provider.GetPriceHistory(ctx, ticker, o.lookbackDays)
	if err != nil {
		return nil, apperrors.Wrapf(err, "loading history for %s", ticker)
	}
	if len(history) == 0 {
		return nil, apperrors.NewDataError("history", ticker, "empty price history", apperrors.ErrInsufficientHistory)
	}

	rate, err := provider.GetRiskFreeRate(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, "loading risk-free rate")
	}

	vol, err := HistoricalVolatility(history)
	if err != nil {
		return nil, apperrors.Wrapf(err, "volatility for %s", ticker)
	}

	logger := logging.WithSymbol(logging.FromContext(ctx), ticker)
	logger.Debug().
		Int("candles", len(history)).
		Float64("spot", history[len(history)-1].Close).
		Float64("volatility", vol).
		Float64("rate", rate).
		Msg("Market context loaded")

	return &Context{
		ticker:     ticker,
		spot:       history[len(history)-1].Close,
		volatility: vol,
		rate:       rate,
		dividend:   o.dividend,
		now:        o.now,
		history:    history,
	}, nil
}

// NewStatic builds a context from known inputs.
func NewStatic(ticker string, spot, volatility, rate, dividend float64, now func() time.Time) (*Context, error) {
	if spot <= 0 {
		return nil, apperrors.NewValidationError("spot", spot, "must be positive", apperrors.ErrInvalidStrike)
	}
	if volatility < 0 {
		return nil, apperrors.NewValidationError("volatility", volatility, "must be non-negative", nil)
	}
	if now == nil {
		now = time.Now
	}
	return &Context{
		ticker:     ticker,
		spot:       spot,
		volatility: volatility,
		rate:       rate,
		dividend:   dividend,
		now:        now,
	}, nil
}

// Ticker returns the underlying symbol.
func (c *Context) Ticker() string { return c.ticker }

// SpotPrice returns the most recent close.
func (c *Context) SpotPrice() float64 { return c.spot }

// HistoricalVolatility returns the annualized volatility of daily log returns.
func (c *Context) HistoricalVolatility() float64 { return c.volatility }

// RiskFreeRate returns the risk-free rate as a decimal fraction.
func (c *Context) RiskFreeRate() float64 { return c.rate }

// DividendYield returns the continuous dividend yield.
func (c *Context) DividendYield() float64 { return c.dividend }

// History returns the candles the context was built from.
func (c *Context) History() []models.Candle { return c.history }

// Now returns the context clock reading.
func (c *Context) Now() time.Time { return c.now() }

// Today returns the calendar date of Now.
func (c *Context) Today() time.Time { return models.Date(c.now()) }

// TimeToMaturity returns whole days from today to expiry divided by 365.
func (c *Context) TimeToMaturity(expiry time.Time) (float64, error) {
	return TimeBetween(c.Today(), expiry)
}

// TimeBetween returns whole days from from to expiry divided by 365.
func TimeBetween(from, expiry time.Time) (float64, error) {
	days := models.DaysBetween(from, expiry)
	if days < 0 {
		return 0, apperrors.NewValidationError("expiry", expiry.Format("2006-01-02"),
			fmt.Sprintf("%d days in the past", -days), apperrors.ErrExpiryInPast)
	}
	return float64(days) / DaysPerYear, nil
}

// HistoricalVolatility computes stdev(ln(c_t/c_t-1)) * sqrt(252) over the
// closes. With a single return the population deviation (zero) is used.
func HistoricalVolatility(candles []models.Candle) (float64, error) {
	if len(candles) < 2 {
		return 0, apperrors.NewDataError("history", "", fmt.Sprintf("%d price points", len(candles)), apperrors.ErrInsufficientHistory)
	}

	returns := make(stats.Float64Data, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev, cur := candles[i-1].Close, candles[i].Close
		if prev <= 0 || cur <= 0 {
			return 0, apperrors.NewDataError("history", "", fmt.Sprintf("non-positive close at %s", candles[i].Timestamp.Format("2006-01-02")), apperrors.ErrInsufficientHistory)
		}
		returns = append(returns, math.Log(cur/prev))
	}

	var sd float64
	var err error
	if len(returns) > 1 {
		sd, err = returns.StandardDeviationSample()
	} else {
		sd, err = returns.StandardDeviationPopulation()
	}
	if err != nil {
		return 0, apperrors.NewDataError("history", "", "standard deviation", err)
	}

	return sd * math.Sqrt(TradingDaysPerYear), nil
}
