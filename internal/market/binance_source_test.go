package market

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"strategy-core/pkg/cache"
	marketbinance "strategy-core/pkg/market/binance"
	"strategy-core/pkg/ratelimit"
)

type fakeREST struct {
	mu         sync.Mutex
	klineCalls int
	priceCalls int
	klines     []marketbinance.Kline
	klineErr   error
	price      float64
	priceErr   error
}

func (f *fakeREST) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]marketbinance.Kline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.klineCalls++
	if f.klineErr != nil {
		return nil, f.klineErr
	}
	if limit > 0 && len(f.klines) > limit {
		return f.klines[len(f.klines)-limit:], nil
	}
	return f.klines, nil
}

func (f *fakeREST) TickerPrice(ctx context.Context, symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.priceCalls++
	return f.price, f.priceErr
}

func sampleKlines(n int) []marketbinance.Kline {
	out := make([]marketbinance.Kline, n)
	for i := range out {
		p := 100 + float64(i)
		out[i] = marketbinance.Kline{OpenTime: int64(i) * 60_000, Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 1}
	}
	return out
}

func TestFetchBarsCachesWithinTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rest := &fakeREST{klines: sampleKlines(30)}
	src := NewBinanceSource(rest, nil, nil, 5*time.Second)
	src.now = func() time.Time { return now }

	ctx := context.Background()
	bars, err := src.FetchBars(ctx, "BTCUSDT", "1m", 20)
	if err != nil {
		t.Fatalf("FetchBars: %v", err)
	}
	if len(bars) != 20 || bars[19].Close != 129 {
		t.Fatalf("unexpected bars len=%d last=%v", len(bars), bars[len(bars)-1].Close)
	}

	now = now.Add(4 * time.Second)
	if _, err := src.FetchBars(ctx, "BTCUSDT", "1m", 20); err != nil {
		t.Fatalf("cached FetchBars: %v", err)
	}
	if rest.klineCalls != 1 {
		t.Fatalf("klineCalls=%d, expected cache hit", rest.klineCalls)
	}

	now = now.Add(2 * time.Second)
	if _, err := src.FetchBars(ctx, "BTCUSDT", "1m", 20); err != nil {
		t.Fatalf("refresh FetchBars: %v", err)
	}
	if rest.klineCalls != 2 {
		t.Fatalf("klineCalls=%d, expected refresh after TTL", rest.klineCalls)
	}
}

func TestFetchBarsRefetchesForDeeperRequest(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rest := &fakeREST{klines: sampleKlines(600)}
	src := NewBinanceSource(rest, nil, nil, 5*time.Second)
	src.now = func() time.Time { return now }
	ctx := context.Background()

	if bars, err := src.FetchBars(ctx, "BTCUSDT", "5m", 120); err != nil || len(bars) != 120 {
		t.Fatalf("runner fetch len=%d err=%v", len(bars), err)
	}

	now = now.Add(time.Second)
	bars, err := src.FetchBars(ctx, "BTCUSDT", "5m", 500)
	if err != nil {
		t.Fatalf("deep FetchBars: %v", err)
	}
	if len(bars) != 500 || rest.klineCalls != 2 {
		t.Fatalf("requested 500 after 120, got len=%d calls=%d", len(bars), rest.klineCalls)
	}

	// The deeper entry now serves the shallow request from cache.
	bars, err = src.FetchBars(ctx, "BTCUSDT", "5m", 120)
	if err != nil || len(bars) != 120 || rest.klineCalls != 2 {
		t.Fatalf("shallow request len=%d calls=%d err=%v", len(bars), rest.klineCalls, err)
	}
	if bars[119].Close != 699 {
		t.Fatalf("last close=%v, want 699", bars[119].Close)
	}
}

func TestFetchBarsServesStaleWhenRateLimited(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	limiter := ratelimit.NewRateLimiter(1, time.Minute).WithClock(clock)
	rest := &fakeREST{klines: sampleKlines(25)}
	src := NewBinanceSource(rest, nil, limiter, time.Second)
	src.now = clock

	ctx := context.Background()
	if _, err := src.FetchBars(ctx, "BTCUSDT", "1m", 25); err != nil {
		t.Fatalf("first FetchBars: %v", err)
	}

	now = now.Add(10 * time.Second) // bar cache expired, limiter still full
	bars, err := src.FetchBars(ctx, "BTCUSDT", "1m", 25)
	if err != nil {
		t.Fatalf("expected stale bars, got %v", err)
	}
	if len(bars) != 25 || rest.klineCalls != 1 {
		t.Fatalf("expected stale cache without REST call, len=%d calls=%d", len(bars), rest.klineCalls)
	}

	if _, err := src.FetchBars(ctx, "ETHUSDT", "1m", 25); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited for uncached key, got %v", err)
	}
	if _, err := src.FetchBars(ctx, "BTCUSDT", "1m", 100); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited when the stale entry is too shallow, got %v", err)
	}
}

func TestFetchBarsClassifiesErrors(t *testing.T) {
	ctx := context.Background()

	rest := &fakeREST{klineErr: errors.New("connection reset")}
	src := NewBinanceSource(rest, nil, nil, time.Second)
	if _, err := src.FetchBars(ctx, "BTCUSDT", "1m", 10); !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}

	rest = &fakeREST{klineErr: marketbinance.ErrRateLimited}
	src = NewBinanceSource(rest, nil, nil, time.Second)
	if _, err := src.FetchBars(ctx, "BTCUSDT", "1m", 10); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	rest = &fakeREST{}
	src = NewBinanceSource(rest, nil, nil, time.Second)
	if _, err := src.FetchBars(ctx, "BTCUSDT", "1m", 10); !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable on empty response, got %v", err)
	}
}

func TestFetchPricePrefersFreshStream(t *testing.T) {
	prices := cache.NewPriceCache()
	prices.Set("BTCUSDT", 42000)
	rest := &fakeREST{price: 41000}
	src := NewBinanceSource(rest, prices, nil, time.Second)

	p, err := src.FetchPrice(context.Background(), "BTCUSDT")
	if err != nil || p != 42000 {
		t.Fatalf("FetchPrice=%v,%v expected streamed 42000", p, err)
	}
	if rest.priceCalls != 0 {
		t.Fatalf("REST called despite fresh stream price")
	}

	p, err = src.FetchPrice(context.Background(), "ETHUSDT")
	if err != nil || p != 41000 || rest.priceCalls != 1 {
		t.Fatalf("expected REST fallback, got %v,%v calls=%d", p, err, rest.priceCalls)
	}
	if cached, ok := prices.Get("ETHUSDT"); !ok || cached != 41000 {
		t.Fatalf("REST price not cached")
	}
}

func TestFetchPriceRejectsZero(t *testing.T) {
	src := NewBinanceSource(&fakeREST{price: 0}, nil, nil, time.Second)
	if _, err := src.FetchPrice(context.Background(), "BTCUSDT"); !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}
