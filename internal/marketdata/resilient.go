package marketdata

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/smq100/inish-optionanalysis-sub000/internal/errors"
	"github.com/smq100/inish-optionanalysis-sub000/internal/logging"
	"github.com/smq100/inish-optionanalysis-sub000/internal/models"
	"github.com/smq100/inish-optionanalysis-sub000/internal/performance"
	"github.com/smq100/inish-optionanalysis-sub000/internal/resilience"
	"github.com/smq100/inish-optionanalysis-sub000/pkg/utils"
)

// ResilientConfig configures ResilientProvider.
type ResilientConfig struct {
	Retry   utils.RetryConfig
	Breaker resilience.CircuitBreakerConfig
	// RateLimit is requests per second across all operations; 0 disables.
	RateLimit float64
}

// DefaultResilientConfig returns retry and breaker defaults.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		Retry:   utils.DefaultRetryConfig(),
		Breaker: resilience.DefaultCircuitBreakerConfig(),
	}
}

// permanent reports errors that retrying cannot fix.
func permanent(err error) bool {
	return apperrors.Is(err, apperrors.ErrDataNotFound) ||
		apperrors.Is(err, apperrors.ErrInvalidTicker) ||
		apperrors.Is(err, context.Canceled) ||
		apperrors.Is(err, resilience.ErrCircuitOpen)
}

// ResilientProvider retries transient failures with backoff, throttles
// request rate and trips a circuit breaker per operation when the source
// keeps failing.
type ResilientProvider struct {
	inner    Provider
	retry    utils.RetryConfig
	breakers *resilience.Registry
	limiter  *performance.RateLimiter
	logger   zerolog.Logger
}

// NewResilientProvider wraps inner.
func NewResilientProvider(inner Provider, cfg ResilientConfig, logger zerolog.Logger) *ResilientProvider {
	cfg.Retry.Retryable = func(err error) bool { return !permanent(err) }
	cfg.Breaker.Neutral = func(err error) bool {
		return apperrors.Is(err, apperrors.ErrDataNotFound) || apperrors.Is(err, apperrors.ErrInvalidTicker)
	}

	p := &ResilientProvider{
		inner:    inner,
		retry:    cfg.Retry,
		breakers: resilience.NewRegistry(cfg.Breaker),
		logger:   logger,
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		p.limiter = performance.NewRateLimiter(cfg.RateLimit, burst)
	}
	return p
}

// BreakerStats returns the state of every operation's circuit breaker.
func (p *ResilientProvider) BreakerStats() []resilience.CircuitBreakerStats {
	return p.breakers.AllStats()
}

func guarded[T any](ctx context.Context, p *ResilientProvider, op, subject string, fn func(context.Context) (T, error)) (T, error) {
	cb := p.breakers.Get(op)
	start := time.Now()

	v, err := utils.RetryWithResult(ctx, p.retry, func() (T, error) {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				var zero T
				return zero, err
			}
		}
		return resilience.Call(ctx, cb, fn)
	})

	logging.LogAPICall(p.logger, op, subject, time.Since(start), err)
	return v, err
}

// IsValidTicker implements Provider.
func (p *ResilientProvider) IsValidTicker(ctx context.Context, ticker string) (bool, error) {
	return guarded(ctx, p, "valid_ticker", ticker, func(ctx context.Context) (bool, error) {
		return p.inner.IsValidTicker(ctx, ticker)
	})
}

// GetPriceHistory implements Provider.
func (p *ResilientProvider) GetPriceHistory(ctx context.Context, ticker string, lookbackDays int) ([]models.Candle, error) {
	return guarded(ctx, p, "price_history", ticker, func(ctx context.Context) ([]models.Candle, error) {
		return p.inner.GetPriceHistory(ctx, ticker, lookbackDays)
	})
}

// GetRiskFreeRate implements Provider.
func (p *ResilientProvider) GetRiskFreeRate(ctx context.Context) (float64, error) {
	return guarded(ctx, p, "risk_free_rate", "", func(ctx context.Context) (float64, error) {
		return p.inner.GetRiskFreeRate(ctx)
	})
}

// GetOptionChain implements Provider.
func (p *ResilientProvider) GetOptionChain(ctx context.Context, ticker string, expiry time.Time) ([]models.ChainQuote, error) {
	return guarded(ctx, p, "option_chain", ticker, func(ctx context.Context) ([]models.ChainQuote, error) {
		return p.inner.GetOptionChain(ctx, ticker, expiry)
	})
}

// GetExpiryDates implements Provider.
func (p *ResilientProvider) GetExpiryDates(ctx context.Context, ticker string) ([]time.Time, error) {
	return guarded(ctx, p, "expiry_dates", ticker, func(ctx context.Context) ([]time.Time, error) {
		return p.inner.GetExpiryDates(ctx, ticker)
	})
}
