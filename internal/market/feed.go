package market

import (
	"context"
	"log"
	"sync"
	"time"

	"strategy-core/internal/events"
	"strategy-core/pkg/cache"
	marketbinance "strategy-core/pkg/market/binance"
)

const (
	feedInitialBackoff = time.Second
	feedMaxBackoff     = 60 * time.Second
	feedHealthWindow   = 30 * time.Second
)

// TickerSubscriber opens a ticker stream; satisfied by *marketbinance.StreamClient.
type TickerSubscriber interface {
	SubscribeTicker(ctx context.Context, symbol string) (<-chan marketbinance.Ticker, func(), error)
}

// PriceFeed keeps the price cache current from the websocket ticker stream
// and publishes price_updated for every tick.
type PriceFeed struct {
	Stream TickerSubscriber
	Cache  *cache.PriceCache
	Bus    *events.Bus
	Symbol string

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool

	mu          sync.RWMutex
	lastMessage time.Time
}

// NewPriceFeed builds a feed for one symbol.
func NewPriceFeed(stream TickerSubscriber, prices *cache.PriceCache, bus *events.Bus, symbol string) *PriceFeed {
	return &PriceFeed{
		Stream: stream,
		Cache:  prices,
		Bus:    bus,
		Symbol: symbol,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// Run streams until ctx ends, reconnecting with exponential backoff.
func (f *PriceFeed) Run(ctx context.Context) {
	if f.Stream == nil || f.Cache == nil {
		log.Println("market: price feed not fully configured; skipping start")
		return
	}

	backoff := feedInitialBackoff
	for ctx.Err() == nil {
		ch, stop, err := f.Stream.SubscribeTicker(ctx, f.Symbol)
		if err != nil {
			log.Printf("market: ws subscribe %s error: %v", f.Symbol, err)
		} else {
			log.Printf("market: ws subscribed %s", f.Symbol)
			backoff = feedInitialBackoff
			f.consume(ch)
			stop()
			log.Printf("market: ws %s closed", f.Symbol)
		}

		if ctx.Err() != nil {
			return
		}
		log.Printf("market: ws reconnecting in %s", backoff)
		if !f.sleep(ctx, backoff) {
			return
		}
		backoff *= 2
		if backoff > feedMaxBackoff {
			backoff = feedMaxBackoff
		}
	}
}

func (f *PriceFeed) consume(ch <-chan marketbinance.Ticker) {
	for tk := range ch {
		if tk.Price <= 0 {
			continue
		}
		f.mu.Lock()
		f.lastMessage = f.now()
		f.mu.Unlock()

		f.Cache.Set(f.Symbol, tk.Price)
		if f.Bus != nil {
			f.Bus.Publish(events.EventPriceUpdated, events.PricePayload{Symbol: f.Symbol, Price: tk.Price})
		}
	}
}

// Healthy reports whether a tick arrived within the health window.
func (f *PriceFeed) Healthy() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.lastMessage.IsZero() {
		return false
	}
	return f.now().Sub(f.lastMessage) < feedHealthWindow
}

// LastMessage returns when the last tick was received.
func (f *PriceFeed) LastMessage() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastMessage
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
