// Package strategy composes legs into option strategies and derives their
// risk profile: net credit or debit, max gain and loss, breakevens and the
// profit table.
package strategy

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/smq100/inish-optionanalysis-sub000/internal/errors"
	"github.com/smq100/inish-optionanalysis-sub000/internal/leg"
	"github.com/smq100/inish-optionanalysis-sub000/internal/logging"
	"github.com/smq100/inish-optionanalysis-sub000/internal/market"
	"github.com/smq100/inish-optionanalysis-sub000/internal/models"
	"github.com/smq100/inish-optionanalysis-sub000/internal/pricing"
	"github.com/smq100/inish-optionanalysis-sub000/pkg/utils"
)

// Unbounded marks a max gain or max loss with no limit.
const Unbounded = -1.0

// Kind identifies a strategy shape.
type Kind string

const (
	KindCall          Kind = "call"
	KindPut           Kind = "put"
	KindVertical      Kind = "vertical"
	KindIronCondor    Kind = "iron-condor"
	KindIronButterfly Kind = "iron-butterfly"
)

// ParseKind parses a strategy name.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call":
		return KindCall, nil
	case "put":
		return KindPut, nil
	case "vertical", "vert":
		return KindVertical, nil
	case "iron-condor", "ironcondor", "ic":
		return KindIronCondor, nil
	case "iron-butterfly", "ironbutterfly", "ib":
		return KindIronButterfly, nil
	default:
		return "", apperrors.NewValidationError("strategy", s, "unknown strategy", apperrors.ErrUnknownEnum)
	}
}

// CreditDebit tells whether opening the position pays or receives premium.
type CreditDebit string

const (
	Credit CreditDebit = "credit"
	Debit  CreditDebit = "debit"
)

// Sentiment is the market view a strategy expresses.
type Sentiment string

const (
	Bullish Sentiment = "bullish"
	Bearish Sentiment = "bearish"
	Neutral Sentiment = "neutral"
)

// Position is an immutable copy of one leg taken at analysis time.
type Position struct {
	Contract   models.OptionContract `json:"contract"`
	Direction  models.Direction      `json:"direction"`
	Quantity   int                   `json:"quantity"`
	Method     pricing.Method        `json:"method"`
	Price      float64               `json:"price"`
	Volatility float64               `json:"volatility"`
}

// Analysis is the risk profile of a strategy. It is rebuilt in full on
// every successful Analyze. Money fields are rounded to cents.
type Analysis struct {
	Strategy    Kind             `json:"strategy"`
	Ticker      string           `json:"ticker"`
	Direction   models.Direction `json:"direction"`
	CreditDebit CreditDebit      `json:"credit_debit"`
	Amount      float64          `json:"amount"`
	MaxGain     float64          `json:"max_gain"`
	MaxLoss     float64          `json:"max_loss"`
	Breakevens  []float64        `json:"breakevens"`
	Sentiment   Sentiment        `json:"sentiment"`
	Pop         float64          `json:"pop"`
	Score       float64          `json:"score"`
	Positions   []Position       `json:"positions"`
	ProfitTable *leg.ValueTable  `json:"profit_table,omitempty"`
}

// Empty reports whether the analysis has never been computed.
func (a *Analysis) Empty() bool { return a.ProfitTable == nil }

// Breakeven returns the first breakeven, or zero.
func (a *Analysis) Breakeven() float64 {
	if len(a.Breakevens) == 0 {
		return 0
	}
	return a.Breakevens[0]
}

// Strategy is implemented by Call, Put, Vertical, IronCondor and IronButterfly.
type Strategy interface {
	Kind() Kind
	Ticker() string
	Direction() models.Direction
	Legs() []*leg.Leg
	// Analyze validates the legs and recomputes the analysis. On failure
	// the error is recorded and the previous analysis is returned.
	Analyze() (*Analysis, error)
	Analysis() *Analysis
	Errors() error
	Breakevens() []float64
	MaxGainLoss() (gain, loss float64)
	ProfitTable() *leg.ValueTable
	SetLogger(logger zerolog.Logger)

	sealed()
}

// shape holds the per-variant rules.
type shape interface {
	validate() error
	compute() (*Analysis, error)
}

// base carries the state common to all variants.
type base struct {
	kind      Kind
	direction models.Direction
	market    *market.Context
	legs      []*leg.Leg
	analysis  *Analysis
	err       error
	logger    zerolog.Logger
}

func newBase(kind Kind, direction models.Direction, mkt *market.Context, legs ...*leg.Leg) base {
	return base{
		kind:      kind,
		direction: direction,
		market:    mkt,
		legs:      legs,
		analysis:  &Analysis{Strategy: kind, Ticker: mkt.Ticker(), Direction: direction},
		logger:    zerolog.Nop(),
	}
}

func (b *base) sealed() {}

func (b *base) Kind() Kind                  { return b.kind }
func (b *base) Ticker() string              { return b.market.Ticker() }
func (b *base) Direction() models.Direction { return b.direction }
func (b *base) Legs() []*leg.Leg            { return b.legs }
func (b *base) Analysis() *Analysis         { return b.analysis }
func (b *base) Errors() error               { return b.err }

// SetLogger sets the logger used by the strategy and its legs.
func (b *base) SetLogger(logger zerolog.Logger) {
	b.logger = logging.WithSymbol(logger, b.market.Ticker())
	for _, l := range b.legs {
		l.WithLogger(b.logger)
	}
}

func (b *base) Breakevens() []float64 {
	return append([]float64(nil), b.analysis.Breakevens...)
}

func (b *base) MaxGainLoss() (float64, float64) {
	return b.analysis.MaxGain, b.analysis.MaxLoss
}

func (b *base) ProfitTable() *leg.ValueTable { return b.analysis.ProfitTable }

func (b *base) quantity() int { return b.legs[0].Quantity() }

// run validates, then computes and stores a fresh analysis.
func (b *base) run(s shape) (*Analysis, error) {
	if err := s.validate(); err != nil {
		b.err = err
		b.logger.Debug().Err(err).Str("strategy", string(b.kind)).Msg("Strategy validation failed")
		return b.analysis, err
	}

	a, err := s.compute()
	if err != nil {
		b.err = err
		return b.analysis, err
	}

	b.analysis = a
	b.err = nil
	logging.LogAnalysis(b.logger, a.Ticker, string(a.Strategy), string(a.CreditDebit), a.Amount, a.MaxGain, a.MaxLoss)
	return a, nil
}

// price calculates every leg not yet priced.
func (b *base) price() error {
	for _, l := range b.legs {
		if l.Priced() {
			continue
		}
		if _, _, err := l.Calculate(true); err != nil {
			return err
		}
	}
	return nil
}

// tables generates the leg value tables on one grid.
func (b *base) tables() ([]*leg.ValueTable, error) {
	var opts []leg.TableOption
	if len(b.legs) > 1 {
		strikes := make([]float64, len(b.legs))
		for i, l := range b.legs {
			strikes[i] = l.Strike()
		}
		opts = append(opts, leg.WithGrid(leg.SharedGrid(strikes, b.legs[0].Config().HalfRows)))
	}

	out := make([]*leg.ValueTable, len(b.legs))
	for i, l := range b.legs {
		t, err := l.GenerateValueTable(opts...)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// profitTable returns sum(weights[i]*tables[i]) + offset cell by cell.
func profitTable(tables []*leg.ValueTable, weights []float64, offset float64) *leg.ValueTable {
	first := tables[0]
	out := leg.NewValueTable(append([]float64(nil), first.Spots...), append([]time.Time(nil), first.Dates...))
	for r := range out.Values {
		for c := range out.Values[r] {
			v := offset
			for i, t := range tables {
				v += weights[i] * t.Values[r][c]
			}
			out.Values[r][c] = utils.RoundCents(v)
		}
	}
	return out
}

func (b *base) positions() []Position {
	out := make([]Position, len(b.legs))
	for i, l := range b.legs {
		out[i] = Position{
			Contract:   *l.Contract().Clone(),
			Direction:  l.Direction(),
			Quantity:   l.Quantity(),
			Method:     l.Method(),
			Price:      l.Price(),
			Volatility: l.Volatility(),
		}
	}
	return out
}

// newAnalysis fills the fields shared by all shapes and derives the score.
func (b *base) newAnalysis(cd CreditDebit, amount, maxGain, maxLoss float64, breakevens []float64, sentiment Sentiment, pop float64, table *leg.ValueTable) *Analysis {
	rounded := make([]float64, len(breakevens))
	for i, be := range breakevens {
		rounded[i] = utils.RoundCents(be)
	}

	return &Analysis{
		Strategy:    b.kind,
		Ticker:      b.market.Ticker(),
		Direction:   b.direction,
		CreditDebit: cd,
		Amount:      utils.RoundCents(amount),
		MaxGain:     utils.RoundCents(maxGain),
		MaxLoss:     utils.RoundCents(maxLoss),
		Breakevens:  rounded,
		Sentiment:   sentiment,
		Pop:         pop,
		Score:       utils.RoundCents(score(pop, maxGain, maxLoss, table)),
		Positions:   b.positions(),
		ProfitTable: table,
	}
}

// score is pop*gain - (1-pop)*loss. Unbounded sides are capped by the
// best and worst expiry profit on the grid.
func score(pop, maxGain, maxLoss float64, table *leg.ValueTable) float64 {
	col := table.ExpiryColumn()
	hi, lo := math.Inf(-1), math.Inf(1)
	for _, v := range col {
		hi = math.Max(hi, v)
		lo = math.Min(lo, v)
	}
	if maxGain == Unbounded {
		maxGain = math.Max(0, hi)
	}
	if maxLoss == Unbounded {
		maxLoss = math.Max(0, -lo)
	}
	return pop*maxGain - (1-pop)*maxLoss
}

// volatility returns the mean effective volatility across legs.
func (b *base) volatility() float64 {
	var sum float64
	for _, l := range b.legs {
		sum += l.Volatility()
	}
	return sum / float64(len(b.legs))
}

// probAbove returns the risk-neutral lognormal probability that the
// underlying finishes above level at the first leg's expiry.
func (b *base) probAbove(level float64) float64 {
	if level <= 0 {
		return 1
	}
	t, err := b.market.TimeToMaturity(b.legs[0].Expiry())
	if err != nil {
		t = 0
	}
	s := b.market.SpotPrice()
	drift := b.market.RiskFreeRate() - b.market.DividendYield()
	vol := b.volatility()

	if vol <= 0 || t <= 0 {
		if s*math.Exp(drift*t) > level {
			return 1
		}
		return 0
	}
	d2 := (math.Log(s/level) + (drift-vol*vol/2)*t) / (vol * math.Sqrt(t))
	return pricing.NormCDF(d2)
}

// checkLegs verifies count, products, directions and a common expiry.
func (b *base) checkLegs(products []models.Product) error {
	if len(b.legs) != len(products) {
		return apperrors.NewStrategyError(string(b.kind), fmt.Sprintf("expected %d legs, got %d", len(products), len(b.legs)))
	}
	expiry := b.legs[0].Expiry()
	for i, l := range b.legs {
		if l.Product() != products[i] {
			return apperrors.NewStrategyError(string(b.kind), fmt.Sprintf("leg %d must be a %s", i, products[i]))
		}
		if !l.Expiry().Equal(expiry) {
			return apperrors.NewStrategyError(string(b.kind), "legs must share one expiry")
		}
		if l.Quantity() != b.legs[0].Quantity() {
			return apperrors.NewStrategyError(string(b.kind), "legs must share one quantity")
		}
	}
	return nil
}

// checkDescending verifies strikes strictly decrease across each pair.
func (b *base) checkDescending(pairs ...[2]int) error {
	for _, p := range pairs {
		hi, lo := b.legs[p[0]].Strike(), b.legs[p[1]].Strike()
		if hi <= lo {
			return apperrors.NewStrategyError(string(b.kind),
				fmt.Sprintf("strike of leg %d (%.2f) must be above leg %d (%.2f)", p[0], hi, p[1], lo))
		}
	}
	return nil
}
