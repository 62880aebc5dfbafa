package leg

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/smq100/inish-optionanalysis-sub000/internal/errors"
	"github.com/smq100/inish-optionanalysis-sub000/internal/market"
	"github.com/smq100/inish-optionanalysis-sub000/internal/models"
	"github.com/smq100/inish-optionanalysis-sub000/internal/pricing"
)

var now = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func testMarket(t *testing.T, spot, vol, rate float64) *market.Context {
	t.Helper()
	mkt, err := market.NewStatic("TEST", spot, vol, rate, 0, clock)
	require.NoError(t, err)
	return mkt
}

func newLeg(t *testing.T, mkt *market.Context, product models.Product, direction models.Direction, strike float64, days int) *Leg {
	t.Helper()
	l, err := New(mkt, product, direction, strike, now.AddDate(0, 0, days), 1, DefaultConfig())
	require.NoError(t, err)
	return l
}

func TestStepFor(t *testing.T) {
	cases := []struct {
		price, step float64
	}{
		{1, 0.10}, {2.5, 0.25}, {4.99, 0.25}, {10, 0.50}, {50, 1},
		{100, 2.5}, {199, 2.5}, {250, 5}, {750, 10}, {1500, 20}, {5000, 30},
	}
	for _, c := range cases {
		assert.Equal(t, c.step, StepFor(c.price), "price %v", c.price)
	}
}

func TestGridSpots(t *testing.T) {
	spots := DefaultGrid(100, 20).Spots()
	require.Len(t, spots, 41)
	assert.Equal(t, 150.0, spots[0])
	assert.Equal(t, 100.0, spots[20])
	assert.Equal(t, 50.0, spots[40])

	// Rows that would go below zero are dropped.
	low := Grid{Center: 1, Step: 0.1, HalfRows: 20}.Spots()
	assert.Greater(t, low[len(low)-1], 0.0)
	assert.Len(t, low, 30)
}

func TestSharedGridCoversStrikes(t *testing.T) {
	strikes := []float64{130, 120, 80, 70}
	g := SharedGrid(strikes, 5)
	assert.Equal(t, 100.0, g.Center)
	assert.Equal(t, 2.5, g.Step)

	spots := g.Spots()
	for _, k := range strikes {
		assert.GreaterOrEqual(t, spots[0]-k, 2*g.Step, "strike %v near top edge", k)
		assert.GreaterOrEqual(t, k-spots[len(spots)-1], 2*g.Step, "strike %v near bottom edge", k)
	}
}

func TestColumnDatesEndOnExpiry(t *testing.T) {
	today := models.Date(now)
	expiry := today.AddDate(0, 0, 10)

	dates := columnDates(today, expiry, 3)
	require.Len(t, dates, 5)
	assert.True(t, dates[0].Equal(today))
	assert.True(t, dates[3].Equal(today.AddDate(0, 0, 9)))
	assert.True(t, dates[4].Equal(expiry))
}

func TestNewValidates(t *testing.T) {
	mkt := testMarket(t, 100, 0.3, 0.05)
	expiry := now.AddDate(0, 0, 30)

	_, err := New(mkt, models.ProductCall, models.DirectionLong, 100, expiry, 0, DefaultConfig())
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuantity)

	_, err = New(mkt, models.ProductCall, models.DirectionLong, -1, expiry, 1, DefaultConfig())
	assert.ErrorIs(t, err, apperrors.ErrInvalidStrike)

	_, err = New(mkt, models.ProductCall, models.DirectionLong, 100, now, 1, DefaultConfig())
	assert.ErrorIs(t, err, apperrors.ErrExpiryInPast)

	_, err = New(mkt, models.Product("straddle"), models.DirectionLong, 100, expiry, 1, DefaultConfig())
	assert.ErrorIs(t, err, apperrors.ErrUnknownEnum)

	cfg := DefaultConfig()
	cfg.Method = "binomial"
	_, err = New(mkt, models.ProductCall, models.DirectionLong, 100, expiry, 1, cfg)
	assert.ErrorIs(t, err, apperrors.ErrUnknownEnum)
}

func TestResolveVolatility(t *testing.T) {
	zero, user := 0.0, 0.45

	assert.Equal(t, 0.45, ResolveVolatility(&user, 0.30, 0.20, 0.02))
	assert.Equal(t, 0.20, ResolveVolatility(&zero, 0.30, 0.20, 0.02))
	assert.Equal(t, 0.20, ResolveVolatility(nil, 0.01, 0.20, 0.02))
	assert.Equal(t, 0.30, ResolveVolatility(nil, 0.30, 0.20, 0.02))
}

func TestEffectiveVolatilityDelta(t *testing.T) {
	mkt := testMarket(t, 100, 0.20, 0.05)
	l := newLeg(t, mkt, models.ProductCall, models.DirectionLong, 100, 30)

	require.NoError(t, l.SetVolatilityDelta(0.1))
	assert.InDelta(t, 0.22, l.EffectiveVolatility(), 1e-12)

	assert.Error(t, l.SetVolatilityDelta(-1))
}

func TestCalculateUsesQuoteWhenTraded(t *testing.T) {
	mkt := testMarket(t, 100, 0.30, 0.05)
	l := newLeg(t, mkt, models.ProductCall, models.DirectionLong, 100, 30)

	price, greeks, err := l.Calculate(true)
	require.NoError(t, err)
	assert.True(t, l.Priced())
	assert.InDelta(t, 3.62, price, 0.05)
	assert.Greater(t, greeks.Delta, 0.5)

	matched := l.MatchChain([]models.ChainQuote{
		{Product: models.ProductPut, Strike: 100, LastPrice: 9},
		{ContractID: "TEST-C100", Product: models.ProductCall, Strike: 100, LastPrice: 4.10, ImpliedVolatility: 0.35},
	})
	require.True(t, matched)
	assert.False(t, l.Priced(), "quote invalidates pricing")

	price, _, err = l.Calculate(false)
	require.NoError(t, err)
	assert.Equal(t, 4.10, price)
	assert.Equal(t, 0.35, l.Volatility())
	assert.Greater(t, l.Contract().CalculatedPrice, 0.0)
	assert.Equal(t, models.Greeks{}, l.Contract().Greeks)

	assert.False(t, l.MatchChain(nil))
}

func TestCalculateMonteCarloSkipsGreeks(t *testing.T) {
	mkt := testMarket(t, 100, 0.30, 0.05)
	cfg := DefaultConfig()
	cfg.Method = pricing.MethodMonteCarlo
	cfg.MonteCarlo = pricing.MonteCarloConfig{Simulations: 20000, Seed: 7}

	l, err := New(mkt, models.ProductPut, models.DirectionLong, 100, now.AddDate(0, 0, 30), 1, cfg)
	require.NoError(t, err)

	price, greeks, err := l.Calculate(true)
	require.NoError(t, err)
	assert.Greater(t, price, 0.0)
	assert.Equal(t, models.Greeks{}, greeks)
}

func TestValueTableRequiresCalculate(t *testing.T) {
	l := newLeg(t, testMarket(t, 100, 0.3, 0.05), models.ProductCall, models.DirectionLong, 100, 30)

	_, err := l.GenerateValueTable()
	assert.ErrorIs(t, err, apperrors.ErrNotPriced)
}

func TestValueTableShapeAndCache(t *testing.T) {
	l := newLeg(t, testMarket(t, 100, 0.3, 0.05), models.ProductCall, models.DirectionLong, 100, 10)
	_, _, err := l.Calculate(false)
	require.NoError(t, err)

	table, err := l.GenerateValueTable()
	require.NoError(t, err)
	assert.Equal(t, 41, table.Rows())
	assert.Equal(t, 11, table.Cols())
	assert.True(t, table.Dates[table.Cols()-1].Equal(l.Expiry()))

	again, err := l.GenerateValueTable()
	require.NoError(t, err)
	assert.Same(t, table, again)

	shared, err := l.GenerateValueTable(WithGrid(SharedGrid([]float64{110, 90}, 10)))
	require.NoError(t, err)
	assert.NotSame(t, table, shared)

	require.NoError(t, l.SetStrike(105))
	assert.False(t, l.Priced())
	_, err = l.GenerateValueTable()
	assert.ErrorIs(t, err, apperrors.ErrNotPriced)
}

func TestSettersInvalidate(t *testing.T) {
	l := newLeg(t, testMarket(t, 100, 0.3, 0.05), models.ProductPut, models.DirectionLong, 100, 30)
	vol := 0.5

	setters := map[string]func() error{
		"expiry":    func() error { return l.SetExpiry(now.AddDate(0, 0, 45)) },
		"direction": func() error { return l.SetDirection(models.DirectionShort) },
		"vol":       func() error { return l.SetVolatility(&vol) },
		"delta":     func() error { return l.SetVolatilityDelta(0.05) },
	}
	for name, set := range setters {
		_, _, err := l.Calculate(false)
		require.NoError(t, err)
		require.NoError(t, set(), name)
		assert.False(t, l.Priced(), name)
	}

	assert.ErrorIs(t, l.SetExpiry(now.AddDate(0, 0, -1)), apperrors.ErrExpiryInPast)
	assert.ErrorIs(t, l.SetQuantity(0), apperrors.ErrInvalidQuantity)
	require.NoError(t, l.SetQuantity(3))
	assert.Equal(t, 3, l.Quantity())
}

func TestValueTableExpiryColumnIsIntrinsic(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("expiry column equals payoff", prop.ForAll(
		func(strike, vol float64, days int, isCall bool) bool {
			product := models.ProductPut
			if isCall {
				product = models.ProductCall
			}
			mkt, err := market.NewStatic("TEST", strike, vol, 0.04, 0, clock)
			if err != nil {
				return false
			}
			l, err := New(mkt, product, models.DirectionLong, strike, now.AddDate(0, 0, days), 1, DefaultConfig())
			if err != nil {
				return false
			}
			if _, _, err := l.Calculate(false); err != nil {
				return false
			}
			table, err := l.GenerateValueTable()
			if err != nil {
				return false
			}
			// The expiry column is priced 1e-9 years out, so at-the-money
			// rows keep a sliver of time value.
			tol := 1e-3 + 1e-4*strike
			for i, v := range table.ExpiryColumn() {
				if math.Abs(v-l.Payoff(table.Spots[i])) > tol {
					return false
				}
			}
			return true
		},
		gen.Float64Range(5, 1500),
		gen.Float64Range(0.05, 1.0),
		gen.IntRange(1, 60),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
