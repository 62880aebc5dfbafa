// Package marketdata defines the market data collaborator used by pricing
// and ships file, cache, resilience and SQLite backed implementations.
package marketdata

import (
	"context"
	"time"

	"github.com/smq100/inish-optionanalysis-sub000/internal/models"
)

// Provider supplies price history, rates and option chains.
type Provider interface {
	IsValidTicker(ctx context.Context, ticker string) (bool, error)
	// GetPriceHistory returns daily candles in ascending date order covering
	// the last lookbackDays calendar days.
	GetPriceHistory(ctx context.Context, ticker string, lookbackDays int) ([]models.Candle, error)
	// GetRiskFreeRate returns the short-term treasury yield as a decimal fraction.
	GetRiskFreeRate(ctx context.Context) (float64, error)
	GetOptionChain(ctx context.Context, ticker string, expiry time.Time) ([]models.ChainQuote, error)
	GetExpiryDates(ctx context.Context, ticker string) ([]time.Time, error)
}
