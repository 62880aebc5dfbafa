package models

import (
	"time"

	apperrors "github.com/smq100/inish-optionanalysis-sub000/internal/errors"
)

// Greeks represents option price sensitivities.
// Theta is per calendar day, Vega per 1% volatility and Rho per 1% rate.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// OptionContract represents a single option contract and its pricing outputs.
type OptionContract struct {
	Ticker  string    `json:"ticker"`
	Product Product   `json:"product"`
	Strike  float64   `json:"strike"`
	Expiry  time.Time `json:"expiry"`

	// UserVolatility is nil when unset. Zero selects the historical volatility.
	UserVolatility       *float64 `json:"user_volatility,omitempty"`
	ImpliedVolatility    float64  `json:"implied_volatility"`
	HistoricalVolatility float64  `json:"historical_volatility"`

	ContractID string  `json:"contract_id,omitempty"`
	LastPrice  float64 `json:"last_price"`

	CalculatedPrice float64 `json:"calculated_price"`
	EffectivePrice  float64 `json:"effective_price"`
	Greeks          Greeks  `json:"greeks"`
}

// NewOptionContract validates and creates a contract. The expiry must be
// strictly after the calendar day of now.
func NewOptionContract(ticker string, product Product, strike float64, expiry, now time.Time) (*OptionContract, error) {
	if ticker == "" {
		return nil, apperrors.NewValidationError("ticker", ticker, "ticker is required", apperrors.ErrInvalidTicker)
	}
	if product != ProductCall && product != ProductPut {
		return nil, apperrors.NewValidationError("product", product, "must be call or put", apperrors.ErrUnknownEnum)
	}
	if strike <= 0 {
		return nil, apperrors.NewValidationError("strike", strike, "must be positive", apperrors.ErrInvalidStrike)
	}
	if !Date(expiry).After(Date(now)) {
		return nil, apperrors.NewValidationError("expiry", expiry.Format("2006-01-02"), "must be in the future", apperrors.ErrExpiryInPast)
	}

	return &OptionContract{
		Ticker:  ticker,
		Product: product,
		Strike:  strike,
		Expiry:  Date(expiry),
	}, nil
}

// Intrinsic returns the exercise value of the contract at the given spot.
func (c *OptionContract) Intrinsic(spot float64) float64 {
	var v float64
	if c.Product == ProductCall {
		v = spot - c.Strike
	} else {
		v = c.Strike - spot
	}
	if v < 0 {
		return 0
	}
	return v
}

// ApplyQuote copies market fields from a matched chain row.
func (c *OptionContract) ApplyQuote(q ChainQuote) {
	c.ContractID = q.ContractID
	c.ImpliedVolatility = q.ImpliedVolatility
	c.LastPrice = q.LastPrice
}

// Clone returns a deep copy of the contract.
func (c *OptionContract) Clone() *OptionContract {
	cp := *c
	if c.UserVolatility != nil {
		v := *c.UserVolatility
		cp.UserVolatility = &v
	}
	return &cp
}
