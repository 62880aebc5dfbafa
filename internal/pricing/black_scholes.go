package pricing

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/smq100/inish-optionanalysis-sub000/internal/models"
)

// normCDF is the standard normal cumulative distribution.
func normCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// normPDF is the standard normal density.
func normPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}

// NormCDF exposes the standard normal CDF for probability estimates.
func NormCDF(x float64) float64 {
	return normCDF(x)
}

// BlackScholes is the closed-form European option model with a continuous
// dividend yield.
type BlackScholes struct {
	in Inputs
}

// NewBlackScholes creates a Black-Scholes model.
func NewBlackScholes(in Inputs) *BlackScholes {
	return &BlackScholes{in: in}
}

// Method returns MethodBlackScholes.
func (m *BlackScholes) Method() Method { return MethodBlackScholes }

// Inputs returns the model inputs.
func (m *BlackScholes) Inputs() Inputs { return m.in }

func d1d2(in Inputs) (d1, d2 float64) {
	sqrtT := math.Sqrt(in.TimeToMaturity)
	d1 = (math.Log(in.Spot/in.Strike) + (in.Rate-in.Dividend+0.5*in.Volatility*in.Volatility)*in.TimeToMaturity) /
		(in.Volatility * sqrtT)
	d2 = d1 - in.Volatility*sqrtT
	return d1, d2
}

// Price returns the call and put values. With no time or no volatility the
// result is the discounted intrinsic value.
func (m *BlackScholes) Price(opts ...Override) (call, put float64) {
	in := m.in.apply(opts)
	if in.TimeToMaturity <= 0 || in.Volatility <= 0 {
		return forwardIntrinsic(in)
	}

	d1, d2 := d1d2(in)
	dq := math.Exp(-in.Dividend * in.TimeToMaturity)
	dr := math.Exp(-in.Rate * in.TimeToMaturity)

	call = in.Spot*dq*normCDF(d1) - in.Strike*dr*normCDF(d2)
	put = in.Strike*dr*normCDF(-d2) - in.Spot*dq*normCDF(-d1)
	return max(0, call), max(0, put)
}

// Greeks returns call and put sensitivities. Theta is per calendar day,
// vega and rho per one percentage point.
func (m *BlackScholes) Greeks(opts ...Override) (call, put models.Greeks, err error) {
	in := m.in.apply(opts)
	dq := math.Exp(-in.Dividend * in.TimeToMaturity)

	if in.TimeToMaturity <= 0 || in.Volatility <= 0 {
		c, p := forwardIntrinsic(in)
		if c > 0 {
			call.Delta = dq
		}
		if p > 0 {
			put.Delta = -dq
		}
		return call, put, nil
	}

	d1, d2 := d1d2(in)
	dr := math.Exp(-in.Rate * in.TimeToMaturity)
	sqrtT := math.Sqrt(in.TimeToMaturity)
	pdf := normPDF(d1)

	gamma := dq * pdf / (in.Spot * in.Volatility * sqrtT)
	vega := in.Spot * dq * pdf * sqrtT / 100
	decay := -in.Spot * dq * pdf * in.Volatility / (2 * sqrtT)

	call = models.Greeks{
		Delta: dq * normCDF(d1),
		Gamma: gamma,
		Theta: (decay - in.Rate*in.Strike*dr*normCDF(d2) + in.Dividend*in.Spot*dq*normCDF(d1)) / 365,
		Vega:  vega,
		Rho:   in.Strike * in.TimeToMaturity * dr * normCDF(d2) / 100,
	}
	put = models.Greeks{
		Delta: dq * (normCDF(d1) - 1),
		Gamma: gamma,
		Theta: (decay + in.Rate*in.Strike*dr*normCDF(-d2) - in.Dividend*in.Spot*dq*normCDF(-d1)) / 365,
		Vega:  vega,
		Rho:   -in.Strike * in.TimeToMaturity * dr * normCDF(-d2) / 100,
	}
	return call, put, nil
}
