package marketdata

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "github.com/smq100/inish-optionanalysis-sub000/internal/errors"
	"github.com/smq100/inish-optionanalysis-sub000/internal/models"
)

// MemoryProvider serves market data held in memory. It backs pre-loaded
// batch specs and tests.
type MemoryProvider struct {
	mu      sync.RWMutex
	rate    float64
	history map[string][]models.Candle
	chains  map[string]map[string][]models.ChainQuote
	calls   map[string]int
}

// NewMemoryProvider creates an empty provider returning rate.
func NewMemoryProvider(rate float64) *MemoryProvider {
	return &MemoryProvider{
		rate:    rate,
		history: make(map[string][]models.Candle),
		chains:  make(map[string]map[string][]models.ChainQuote),
		calls:   make(map[string]int),
	}
}

// SetHistory stores daily candles for ticker.
func (p *MemoryProvider) SetHistory(ticker string, candles []models.Candle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sorted := append([]models.Candle(nil), candles...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })
	p.history[normalizeTicker(ticker)] = sorted
}

// SetChain stores the option chain of ticker for expiry.
func (p *MemoryProvider) SetChain(ticker string, expiry time.Time, quotes []models.ChainQuote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := normalizeTicker(ticker)
	if p.chains[t] == nil {
		p.chains[t] = make(map[string][]models.ChainQuote)
	}
	p.chains[t][models.Date(expiry).Format("2006-01-02")] = append([]models.ChainQuote(nil), quotes...)
}

// Calls returns how many times op was invoked.
func (p *MemoryProvider) Calls(op string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.calls[op]
}

func (p *MemoryProvider) record(op string) {
	p.calls[op]++
}

// IsValidTicker implements Provider.
func (p *MemoryProvider) IsValidTicker(ctx context.Context, ticker string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("valid_ticker")
	_, ok := p.history[normalizeTicker(ticker)]
	return ok, nil
}

// GetPriceHistory implements Provider. The lookback is counted back from
// the most recent candle.
func (p *MemoryProvider) GetPriceHistory(ctx context.Context, ticker string, lookbackDays int) ([]models.Candle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("price_history")

	candles, ok := p.history[normalizeTicker(ticker)]
	if !ok {
		return nil, apperrors.NewDataError("history", ticker, "no history", apperrors.ErrDataNotFound)
	}
	if lookbackDays <= 0 || len(candles) == 0 {
		return append([]models.Candle(nil), candles...), nil
	}

	cutoff := models.Date(candles[len(candles)-1].Timestamp).AddDate(0, 0, -lookbackDays)
	var out []models.Candle
	for _, c := range candles {
		if !c.Timestamp.Before(cutoff) {
			out = append(out, c)
		}
	}
	return out, nil
}

// GetRiskFreeRate implements Provider.
func (p *MemoryProvider) GetRiskFreeRate(ctx context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("risk_free_rate")
	return p.rate, nil
}

// GetOptionChain implements Provider.
func (p *MemoryProvider) GetOptionChain(ctx context.Context, ticker string, expiry time.Time) ([]models.ChainQuote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("option_chain")

	quotes, ok := p.chains[normalizeTicker(ticker)][models.Date(expiry).Format("2006-01-02")]
	if !ok {
		return nil, apperrors.NewDataError("chain", ticker, "no chain for expiry", apperrors.ErrDataNotFound)
	}
	return append([]models.ChainQuote(nil), quotes...), nil
}

// GetExpiryDates implements Provider.
func (p *MemoryProvider) GetExpiryDates(ctx context.Context, ticker string) ([]time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("expiry_dates")

	var dates []time.Time
	for key := range p.chains[normalizeTicker(ticker)] {
		d, err := time.Parse("2006-01-02", key)
		if err == nil {
			dates = append(dates, d)
		}
	}
	if len(dates) == 0 {
		return nil, apperrors.NewDataError("expiries", ticker, "no option chains", apperrors.ErrDataNotFound)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}
