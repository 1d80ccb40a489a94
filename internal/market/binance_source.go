package market

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"strategy-core/pkg/cache"
	marketbinance "strategy-core/pkg/market/binance"
	"strategy-core/pkg/ratelimit"
)

// RESTClient is the subset of the Binance REST client the source needs.
type RESTClient interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]marketbinance.Kline, error)
	TickerPrice(ctx context.Context, symbol string) (float64, error)
}

const (
	defaultRequestTimeout = 5 * time.Second
	// Streamed prices older than this fall back to REST.
	priceFreshness = 30 * time.Second
)

type barKey struct {
	symbol    string
	timeframe string
}

type cachedBars struct {
	fetchedAt time.Time
	limit     int // limit the bars were fetched with
	bars      []Candle
}

// covers reports whether the entry answers a request for limit bars. A
// deeper request must refetch even when the entry is fresh.
func (c cachedBars) covers(limit int) bool {
	return c.limit == limit || (limit > 0 && c.limit >= limit)
}

// BinanceSource serves bars and prices from Binance with a short-lived bar
// cache and a shared call budget.
type BinanceSource struct {
	client  RESTClient
	prices  *cache.PriceCache
	limiter *ratelimit.RateLimiter
	barTTL  time.Duration
	timeout time.Duration
	now     func() time.Time

	mu   sync.Mutex
	bars map[barKey]cachedBars
}

// NewBinanceSource wires a REST client, an optional streamed price cache and
// the shared limiter. barTTL is normally the runner poll interval.
func NewBinanceSource(client RESTClient, prices *cache.PriceCache, limiter *ratelimit.RateLimiter, barTTL time.Duration) *BinanceSource {
	return &BinanceSource{
		client:  client,
		prices:  prices,
		limiter: limiter,
		barTTL:  barTTL,
		timeout: defaultRequestTimeout,
		now:     time.Now,
		bars:    make(map[barKey]cachedBars),
	}
}

// FetchBars returns cached bars while they are younger than barTTL and were
// fetched at least as deep as limit. When the limiter rejects a refresh,
// stale bars of sufficient depth are served if any exist.
func (s *BinanceSource) FetchBars(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error) {
	key := barKey{symbol: symbol, timeframe: timeframe}

	s.mu.Lock()
	cached, ok := s.bars[key]
	s.mu.Unlock()
	ok = ok && cached.covers(limit)

	if ok && s.now().Sub(cached.fetchedAt) < s.barTTL {
		return tail(cached.bars, limit), nil
	}

	if s.limiter != nil && !s.limiter.Acquire() {
		if ok {
			log.Printf("market: rate limited, serving cached bars for %s %s", symbol, timeframe)
			return tail(cached.bars, limit), nil
		}
		log.Printf("market: rate limited, skipping bars fetch for %s %s", symbol, timeframe)
		return nil, ErrRateLimited
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	klines, err := s.client.GetKlines(reqCtx, symbol, timeframe, limit)
	if err != nil {
		log.Printf("market: bars fetch %s %s failed: %v", symbol, timeframe, err)
		if errors.Is(err, marketbinance.ErrRateLimited) {
			return nil, fmt.Errorf("fetch bars %s: %w", symbol, ErrRateLimited)
		}
		return nil, fmt.Errorf("fetch bars %s: %w: %v", symbol, ErrDataUnavailable, err)
	}

	bars := FromKlines(klines)
	if len(bars) == 0 {
		return nil, fmt.Errorf("fetch bars %s: %w: empty response", symbol, ErrDataUnavailable)
	}

	s.mu.Lock()
	s.bars[key] = cachedBars{fetchedAt: s.now(), limit: limit, bars: bars}
	s.mu.Unlock()

	if s.prices != nil {
		if _, fresh := s.prices.GetFresh(symbol, priceFreshness); !fresh {
			s.prices.Set(symbol, bars[len(bars)-1].Close)
		}
	}
	return tail(bars, limit), nil
}

// FetchPrice prefers a fresh streamed price, then the REST ticker.
func (s *BinanceSource) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	if s.prices != nil {
		if p, ok := s.prices.GetFresh(symbol, priceFreshness); ok {
			return p, nil
		}
	}

	if s.limiter != nil && !s.limiter.Acquire() {
		log.Printf("market: rate limited, skipping ticker fetch for %s", symbol)
		return 0, ErrRateLimited
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	price, err := s.client.TickerPrice(reqCtx, symbol)
	if err != nil {
		log.Printf("market: ticker fetch %s failed: %v", symbol, err)
		if errors.Is(err, marketbinance.ErrRateLimited) {
			return 0, fmt.Errorf("fetch price %s: %w", symbol, ErrRateLimited)
		}
		return 0, fmt.Errorf("fetch price %s: %w: %v", symbol, ErrDataUnavailable, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("fetch price %s: %w: non-positive price", symbol, ErrDataUnavailable)
	}
	if s.prices != nil {
		s.prices.Set(symbol, price)
	}
	return price, nil
}

// tail returns a copy of the last n bars (all when n <= 0).
func tail(bars []Candle, n int) []Candle {
	if n > 0 && len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	out := make([]Candle, len(bars))
	copy(out, bars)
	return out
}
