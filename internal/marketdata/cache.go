package marketdata

import (
	"context"
	"sync"
	"time"

	"github.com/smq100/inish-optionanalysis-sub000/internal/models"
)

// Cache memoizes provider results for one ticker at a time. Every entry
// expires after the TTL, and all ticker-scoped entries are dropped as soon
// as a different ticker is requested. The risk-free rate is not ticker
// scoped and only expires by TTL.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	ticker   string
	valid    *cacheEntry[bool]
	history  map[int]cacheEntry[[]models.Candle]
	chains   map[string]cacheEntry[[]models.ChainQuote]
	expiries *cacheEntry[[]time.Time]
	rate     *cacheEntry[float64]

	hits   int64
	misses int64
}

type cacheEntry[T any] struct {
	value T
	at    time.Time
}

// NewCache creates a cache whose entries live for ttl. A ttl of zero
// disables expiry.
func NewCache(ttl time.Duration) *Cache {
	c := &Cache{ttl: ttl, now: time.Now}
	c.resetTicker("")
	return c
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Ticker string
	Hits   int64
	Misses int64
}

// Stats returns hit and miss counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Ticker: c.ticker, Hits: c.hits, Misses: c.misses}
}

// Invalidate drops every entry.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetTicker("")
	c.rate = nil
}

func (c *Cache) resetTicker(ticker string) {
	c.ticker = ticker
	c.valid = nil
	c.history = make(map[int]cacheEntry[[]models.Candle])
	c.chains = make(map[string]cacheEntry[[]models.ChainQuote])
	c.expiries = nil
}

// switchTo applies the ticker invalidation rule. Caller holds mu.
func (c *Cache) switchTo(ticker string) {
	ticker = normalizeTicker(ticker)
	if ticker != c.ticker {
		c.resetTicker(ticker)
	}
}

func (c *Cache) fresh(at time.Time) bool {
	return c.ttl <= 0 || c.now().Sub(at) < c.ttl
}

func (c *Cache) count(hit bool) {
	if hit {
		c.hits++
	} else {
		c.misses++
	}
}

// CachedProvider serves Provider calls from a shared Cache, falling back
// to the wrapped provider on a miss.
type CachedProvider struct {
	inner Provider
	cache *Cache
}

// NewCachedProvider wraps inner with cache.
func NewCachedProvider(inner Provider, cache *Cache) *CachedProvider {
	return &CachedProvider{inner: inner, cache: cache}
}

// IsValidTicker implements Provider.
func (p *CachedProvider) IsValidTicker(ctx context.Context, ticker string) (bool, error) {
	c := p.cache
	c.mu.Lock()
	c.switchTo(ticker)
	if c.valid != nil && c.fresh(c.valid.at) {
		c.count(true)
		v := c.valid.value
		c.mu.Unlock()
		return v, nil
	}
	c.count(false)
	c.mu.Unlock()

	ok, err := p.inner.IsValidTicker(ctx, ticker)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	if c.ticker == normalizeTicker(ticker) {
		c.valid = &cacheEntry[bool]{value: ok, at: c.now()}
	}
	c.mu.Unlock()
	return ok, nil
}

// GetPriceHistory implements Provider.
func (p *CachedProvider) GetPriceHistory(ctx context.Context, ticker string, lookbackDays int) ([]models.Candle, error) {
	c := p.cache
	c.mu.Lock()
	c.switchTo(ticker)
	if e, ok := c.history[lookbackDays]; ok && c.fresh(e.at) {
		c.count(true)
		c.mu.Unlock()
		return append([]models.Candle(nil), e.value...), nil
	}
	c.count(false)
	c.mu.Unlock()

	candles, err := p.inner.GetPriceHistory(ctx, ticker, lookbackDays)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.ticker == normalizeTicker(ticker) {
		c.history[lookbackDays] = cacheEntry[[]models.Candle]{value: candles, at: c.now()}
	}
	c.mu.Unlock()
	return append([]models.Candle(nil), candles...), nil
}

// GetRiskFreeRate implements Provider.
func (p *CachedProvider) GetRiskFreeRate(ctx context.Context) (float64, error) {
	c := p.cache
	c.mu.Lock()
	if c.rate != nil && c.fresh(c.rate.at) {
		c.count(true)
		v := c.rate.value
		c.mu.Unlock()
		return v, nil
	}
	c.count(false)
	c.mu.Unlock()

	rate, err := p.inner.GetRiskFreeRate(ctx)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.rate = &cacheEntry[float64]{value: rate, at: c.now()}
	c.mu.Unlock()
	return rate, nil
}

// GetOptionChain implements Provider.
func (p *CachedProvider) GetOptionChain(ctx context.Context, ticker string, expiry time.Time) ([]models.ChainQuote, error) {
	key := models.Date(expiry).Format("2006-01-02")

	c := p.cache
	c.mu.Lock()
	c.switchTo(ticker)
	if e, ok := c.chains[key]; ok && c.fresh(e.at) {
		c.count(true)
		c.mu.Unlock()
		return append([]models.ChainQuote(nil), e.value...), nil
	}
	c.count(false)
	c.mu.Unlock()

	quotes, err := p.inner.GetOptionChain(ctx, ticker, expiry)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.ticker == normalizeTicker(ticker) {
		c.chains[key] = cacheEntry[[]models.ChainQuote]{value: quotes, at: c.now()}
	}
	c.mu.Unlock()
	return append([]models.ChainQuote(nil), quotes...), nil
}

// GetExpiryDates implements Provider.
func (p *CachedProvider) GetExpiryDates(ctx context.Context, ticker string) ([]time.Time, error) {
	c := p.cache
	c.mu.Lock()
	c.switchTo(ticker)
	if c.expiries != nil && c.fresh(c.expiries.at) {
		c.count(true)
		v := append([]time.Time(nil), c.expiries.value...)
		c.mu.Unlock()
		return v, nil
	}
	c.count(false)
	c.mu.Unlock()

	dates, err := p.inner.GetExpiryDates(ctx, ticker)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.ticker == normalizeTicker(ticker) {
		c.expiries = &cacheEntry[[]time.Time]{value: dates, at: c.now()}
	}
	c.mu.Unlock()
	return append([]time.Time(nil), dates...), nil
}
