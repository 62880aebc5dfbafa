// Package pricing provides option pricing models.
//
// Two models are available: a closed-form Black-Scholes model with
// continuous dividend yield and a terminal-value Monte Carlo simulation.
// Models are cheap to build and are created per pricing call. Price and
// Greeks accept overrides for spot, time to maturity and volatility so a
// valuation grid can be recomputed without rebuilding the model.
package pricing

import (
	"fmt"
	"math"
	"strings"

	apperrors "github.com/smq100/inish-optionanalysis-sub000/internal/errors"
	"github.com/smq100/inish-optionanalysis-sub000/internal/models"
)

// Method identifies a pricing model.
type Method string

const (
	MethodBlackScholes Method = "black-scholes"
	MethodMonteCarlo   Method = "monte-carlo"
)

// ParseMethod parses a pricing method name.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "black-scholes", "blackscholes", "bs", "":
		return MethodBlackScholes, nil
	case "monte-carlo", "montecarlo", "mc":
		return MethodMonteCarlo, nil
	default:
		return "", apperrors.NewValidationError("method", s, "unknown pricing method", apperrors.ErrUnknownEnum)
	}
}

// Inputs holds the scalar inputs of a pricing model.
type Inputs struct {
	Spot           float64
	Strike         float64
	Rate           float64
	Dividend       float64
	Volatility     float64
	TimeToMaturity float64 // years
}

// Validate checks that inputs can be priced.
func (in Inputs) Validate() error {
	if in.Spot <= 0 {
		return apperrors.NewValidationError("spot", in.Spot, "must be positive", apperrors.ErrInvalidStrike)
	}
	if in.Strike <= 0 {
		return apperrors.NewValidationError("strike", in.Strike, "must be positive", apperrors.ErrInvalidStrike)
	}
	if in.Volatility < 0 {
		return apperrors.NewValidationError("volatility", in.Volatility, "must be non-negative", nil)
	}
	if in.TimeToMaturity < 0 {
		return apperrors.NewValidationError("time_to_maturity", in.TimeToMaturity, "must be non-negative", apperrors.ErrExpiryInPast)
	}
	return nil
}

// Override replaces one input for a single Price or Greeks call.
type Override func(*Inputs)

// WithSpot overrides the spot price.
func WithSpot(spot float64) Override {
	return func(in *Inputs) { in.Spot = spot }
}

// WithTimeToMaturity overrides the time to maturity in years.
func WithTimeToMaturity(t float64) Override {
	return func(in *Inputs) { in.TimeToMaturity = t }
}

// WithVolatility overrides the annualized volatility.
func WithVolatility(vol float64) Override {
	return func(in *Inputs) { in.Volatility = vol }
}

func (in Inputs) apply(opts []Override) Inputs {
	for _, opt := range opts {
		opt(&in)
	}
	return in
}

// Model prices European calls and puts on the same underlying and strike.
type Model interface {
	Method() Method
	Inputs() Inputs
	Price(opts ...Override) (call, put float64)
	Greeks(opts ...Override) (call, put models.Greeks, err error)
}

// MonteCarloConfig configures the simulation model.
type MonteCarloConfig struct {
	Simulations int
	Seed        uint64 // 0 seeds from the clock
}

// DefaultSimulations is the Monte Carlo path count when none is configured.
// The standard error of the estimate shrinks with the square root of this value.
const DefaultSimulations = 100000

// New builds the model for method.
func New(method Method, in Inputs, mc MonteCarloConfig) (Model, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	switch method {
	case MethodBlackScholes:
		return NewBlackScholes(in), nil
	case MethodMonteCarlo:
		return NewMonteCarlo(in, mc), nil
	default:
		return nil, apperrors.NewValidationError("method", method, fmt.Sprintf("unsupported pricing method %q", method), apperrors.ErrUnknownEnum)
	}
}

// forwardIntrinsic is the limit price when no time value remains.
func forwardIntrinsic(in Inputs) (call, put float64) {
	s := in.Spot * math.Exp(-in.Dividend*in.TimeToMaturity)
	k := in.Strike * math.Exp(-in.Rate*in.TimeToMaturity)
	return max(0, s-k), max(0, k-s)
}
