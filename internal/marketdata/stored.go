package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/smq100/inish-optionanalysis-sub000/internal/models"
	"github.com/smq100/inish-optionanalysis-sub000/internal/store"
)

// StoreProvider keeps price history in the SQLite store. History synced
// within the freshness window is served locally; otherwise it is fetched
// from the wrapped provider and saved. If the fetch fails, whatever the
// store holds is returned. Other calls pass through.
type StoreProvider struct {
	Provider
	store     store.DataStore
	freshness time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

// NewStoreProvider wraps inner with a history cache in st.
func NewStoreProvider(inner Provider, st store.DataStore, freshness time.Duration, logger zerolog.Logger) *StoreProvider {
	return &StoreProvider{
		Provider:  inner,
		store:     st,
		freshness: freshness,
		now:       time.Now,
		logger:    logger,
	}
}

// GetPriceHistory implements Provider.
func (p *StoreProvider) GetPriceHistory(ctx context.Context, ticker string, lookbackDays int) ([]models.Candle, error) {
	ticker = normalizeTicker(ticker)
	now := p.now()
	to := models.Date(now).Add(24*time.Hour - time.Nanosecond)
	from := models.Date(now).AddDate(0, 0, -lookbackDays)

	cached, err := p.store.GetCandles(ctx, ticker, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get cached candles: %w", err)
	}

	key := store.HistorySyncKey(ticker, lookbackDays)
	freshness := store.GetDataFreshness(p.store, key, p.freshness, now)
	if freshness.IsFresh && len(cached) > 0 {
		p.logger.Debug().Str("symbol", ticker).Str("freshness", store.FormatFreshness(freshness)).Msg("Serving history from store")
		return cached, nil
	}

	candles, err := p.Provider.GetPriceHistory(ctx, ticker, lookbackDays)
	if err != nil {
		if len(cached) > 0 {
			p.logger.Warn().Err(err).Str("symbol", ticker).
				Str("freshness", store.FormatFreshness(freshness)).
				Msg("History fetch failed, using stored candles")
			return cached, nil
		}
		return nil, err
	}

	if err := p.store.SaveCandles(ctx, ticker, candles); err != nil {
		p.logger.Warn().Err(err).Str("symbol", ticker).Msg("Failed to cache candles")
		return candles, nil
	}
	if err := store.MarkSynced(p.store, key, now); err != nil {
		p.logger.Warn().Err(err).Str("symbol", ticker).Msg("Failed to mark candles synced")
	}

	return candles, nil
}
