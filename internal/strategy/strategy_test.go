package strategy

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
	"github.com/smq100/inish-optionanalysis-sub000/internal/leg"
	"github.com/smq100/inish-optionanalysis-sub000/internal/market"
	"github.com/smq100/inish-optionanalysis-sub000/internal/models"
	"github.com/smq100/inish-optionanalysis-sub000/internal/pricing"
)

var now = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func days(n int) time.Time { return now.AddDate(0, 0, n) }

func testMarket(t *testing.T) *market.Context {
	t.Helper()
	mkt, err := market.NewStatic("TEST", 100, 0.20, 0.05, 0, clock)
	require.NoError(t, err)
	return mkt
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Iron-Condor")
	require.NoError(t, err)
	assert.Equal(t, KindIronCondor, k)

	k, err = ParseKind("ib")
	require.NoError(t, err)
	assert.Equal(t, KindIronButterfly, k)

	_, err = ParseKind("strangle")
	assert.ErrorIs(t, err, apperrors.ErrUnknownEnum)
}

func TestLongCallScenario(t *testing.T) {
	s, err := NewCall(testMarket(t), models.DirectionLong, 100, days(91), 1, leg.DefaultConfig())
	require.NoError(t, err)
	assert.True(t, s.Analysis().Empty())

	a, err := s.Analyze()
	require.NoError(t, err)
	require.NoError(t, s.Errors())

	assert.Equal(t, Debit, a.CreditDebit)
	assert.Equal(t, Bullish, a.Sentiment)
	assert.InDelta(t, 4.61, a.Amount, 0.005)
	assert.Equal(t, a.Amount, a.MaxLoss)
	assert.Equal(t, Unbounded, a.MaxGain)
	require.Len(t, a.Breakevens, 1)
	assert.InDelta(t, 104.61, a.Breakeven(), 0.01)
	assert.Greater(t, a.Pop, 0.0)
	assert.Less(t, a.Pop, 0.5)
	require.Len(t, a.Positions, 1)
	assert.Equal(t, 100.0, a.Positions[0].Contract.Strike)

	gain, loss := s.MaxGainLoss()
	assert.Equal(t, Unbounded, gain)
	assert.Equal(t, a.Amount, loss)

	// Deep in the money at expiry the profit is intrinsic less premium.
	table := s.ProfitTable()
	top := table.ExpiryColumn()[0]
	assert.InDelta(t, table.Spots[0]-100-a.Amount, top, 0.02)
}

func TestShortPut(t *testing.T) {
	s, err := NewPut(testMarket(t), models.DirectionShort, 95, days(30), 2, leg.DefaultConfig())
	require.NoError(t, err)

	a, err := s.Analyze()
	require.NoError(t, err)

	assert.Equal(t, Credit, a.CreditDebit)
	assert.Equal(t, Bullish, a.Sentiment)
	assert.InDelta(t, 0.99, a.Amount, 0.01)
	assert.Equal(t, a.Amount, a.MaxGain)
	assert.InDelta(t, (95-0.495)*2, a.MaxLoss, 0.02)
	assert.InDelta(t, 94.505, a.Breakeven(), 0.01)
	assert.Greater(t, a.Pop, 0.5)

	// Short profit is not floored at the premium.
	table := s.ProfitTable()
	bottom := table.ExpiryColumn()[table.Rows()-1]
	assert.Less(t, bottom, -a.Amount)
}

func TestVerticalDebitCall(t *testing.T) {
	s, err := NewVertical(testMarket(t), models.ProductCall, models.DirectionLong, 100, 5, days(30), 1, leg.DefaultConfig())
	require.NoError(t, err)

	a, err := s.Analyze()
	require.NoError(t, err)

	assert.Equal(t, 100.0, s.Legs()[0].Strike())
	assert.Equal(t, models.DirectionLong, s.Legs()[0].Direction())
	assert.Equal(t, Debit, a.CreditDebit)
	assert.Equal(t, Bullish, a.Sentiment)
	assert.InDelta(t, 1.76, a.Amount, 0.01)
	assert.Equal(t, a.Amount, a.MaxLoss)
	assert.InDelta(t, 5-1.76, a.MaxGain, 0.01)
	assert.InDelta(t, 101.76, a.Breakeven(), 0.01)

	col := s.ProfitTable().ExpiryColumn()
	assert.InDelta(t, a.MaxGain, col[0], 0.02)
	assert.InDelta(t, -a.MaxLoss, col[len(col)-1], 0.02)
}

func TestVerticalCreditPut(t *testing.T) {
	s, err := NewVertical(testMarket(t), models.ProductPut, models.DirectionShort, 100, 5, days(30), 3, leg.DefaultConfig())
	require.NoError(t, err)

	a, err := s.Analyze()
	require.NoError(t, err)

	assert.Equal(t, 95.0, s.Legs()[0].Strike(), "long leg is the wing")
	assert.Equal(t, Credit, a.CreditDebit)
	assert.Equal(t, Bullish, a.Sentiment)
	assert.Equal(t, a.Amount, a.MaxGain)
	assert.InDelta(t, 100-a.Amount/3, a.Breakeven(), 0.01)
}

func TestVerticalMaxGainPlusMaxLossIsWidth(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("gain + loss == width * quantity", prop.ForAll(
		func(offset, width float64, qty int, isCall, isLong bool) bool {
			product, direction := models.ProductPut, models.DirectionShort
			if isCall {
				product = models.ProductCall
			}
			if isLong {
				direction = models.DirectionLong
			}
			mkt, err := market.NewStatic("TEST", 100, 0.25, 0.04, 0, clock)
			if err != nil {
				return false
			}
			s, err := NewVertical(mkt, product, direction, 100+offset, width, days(45), qty, leg.DefaultConfig())
			if err != nil {
				return false
			}
			a, err := s.Analyze()
			if err != nil {
				return false
			}
			return math.Abs(a.MaxGain+a.MaxLoss-width*float64(qty)) < 0.011
		},
		gen.Float64Range(-10, 10),
		gen.Float64Range(1, 15),
		gen.IntRange(1, 10),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	cfg := leg.DefaultConfig()
	cfg.Method = pricing.MethodMonteCarlo
	cfg.MonteCarlo = pricing.MonteCarloConfig{Simulations: 5000, Seed: 11}

	s, err := NewIronCondor(testMarket(t), models.DirectionShort, 100, 5, 5, days(30), 1, cfg)
	require.NoError(t, err)

	first, err := s.Analyze()
	require.NoError(t, err)
	second, err := s.Analyze()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotSame(t, first, second)
}

func TestIronCondorShortCredit(t *testing.T) {
	s, err := NewIronCondor(testMarket(t), models.DirectionShort, 100, 5, 5, days(30), 2, leg.DefaultConfig())
	require.NoError(t, err)

	legs := s.Legs()
	require.Len(t, legs, 4)
	assert.Equal(t, []float64{110, 105, 95, 90}, []float64{legs[0].Strike(), legs[1].Strike(), legs[2].Strike(), legs[3].Strike()})

	a, err := s.Analyze()
	require.NoError(t, err)

	assert.Equal(t, Credit, a.CreditDebit)
	assert.Equal(t, Neutral, a.Sentiment)
	assert.Equal(t, a.Amount, a.MaxGain)
	assert.InDelta(t, 10-a.Amount, a.MaxLoss, 0.01)
	require.Len(t, a.Breakevens, 2)
	assert.InDelta(t, 105+a.Amount/2, a.Breakevens[0], 0.01)
	assert.InDelta(t, 95-a.Amount/2, a.Breakevens[1], 0.01)
	assert.Greater(t, a.Pop, 0.5)
	assert.Less(t, a.Pop, 1.0)

	col := s.ProfitTable().ExpiryColumn()
	center := s.ProfitTable().Row(100)
	require.GreaterOrEqual(t, center, 0)
	assert.InDelta(t, a.MaxGain, col[center], 0.02)
	assert.InDelta(t, -a.MaxLoss, col[0], 0.02)
}

func TestIronCondorOrderingErrorKeepsAnalysis(t *testing.T) {
	s, err := NewIronCondor(testMarket(t), models.DirectionShort, 100, 5, 5, days(30), 1, leg.DefaultConfig())
	require.NoError(t, err)

	good, err := s.Analyze()
	require.NoError(t, err)

	require.NoError(t, s.Legs()[1].SetStrike(90))
	stale, err := s.Analyze()
	assert.ErrorIs(t, err, apperrors.ErrInvalidStrategy)
	assert.ErrorIs(t, s.Errors(), apperrors.ErrInvalidStrategy)
	assert.Same(t, good, stale)
	assert.False(t, s.Legs()[1].Priced(), "validation runs before pricing")

	require.NoError(t, s.Legs()[1].SetStrike(105))
	_, err = s.Analyze()
	require.NoError(t, err)
	assert.NoError(t, s.Errors())
}

func TestIronCondorZeroInnerWidthFails(t *testing.T) {
	s, err := NewIronCondor(testMarket(t), models.DirectionShort, 100, 0, 5, days(30), 1, leg.DefaultConfig())
	require.NoError(t, err)

	a, err := s.Analyze()
	assert.ErrorIs(t, err, apperrors.ErrInvalidStrategy)
	assert.True(t, a.Empty())
}

func TestIronButterfly(t *testing.T) {
	s, err := NewIronButterfly(testMarket(t), models.DirectionShort, 100, 10, days(30), 1, leg.DefaultConfig())
	require.NoError(t, err)

	a, err := s.Analyze()
	require.NoError(t, err)

	assert.Equal(t, Credit, a.CreditDebit)
	assert.Equal(t, a.Amount, a.MaxGain)
	assert.InDelta(t, 1-a.MaxGain/10, a.Pop, 0.001)
	assert.InDelta(t, 200.0, a.Breakevens[0]+a.Breakevens[1], 0.02)

	require.NoError(t, s.Legs()[2].SetStrike(95))
	_, err = s.Analyze()
	assert.ErrorIs(t, err, apperrors.ErrInvalidStrategy)
}

func TestLongIronCondorIsDebit(t *testing.T) {
	s, err := NewIronCondor(testMarket(t), models.DirectionLong, 100, 5, 5, days(30), 1, leg.DefaultConfig())
	require.NoError(t, err)

	a, err := s.Analyze()
	require.NoError(t, err)

	assert.Equal(t, Debit, a.CreditDebit)
	assert.Equal(t, a.Amount, a.MaxLoss)
	assert.InDelta(t, 5-a.Amount, a.MaxGain, 0.01)
	assert.Less(t, a.Pop, 0.5)
}

func TestScoreBoundsUnboundedSides(t *testing.T) {
	table := leg.NewValueTable([]float64{120, 100, 80}, []time.Time{now})
	table.Values[0][0] = 15
	table.Values[1][0] = -5
	table.Values[2][0] = -5

	assert.InDelta(t, 0.4*15-0.6*5, score(0.4, Unbounded, 5, table), 1e-12)
	assert.InDelta(t, 0.4*3-0.6*5, score(0.4, 3, Unbounded, table), 1e-12)
}
