package market

import "context"

// Source supplies bars and spot prices. Implementations must be safe for
// concurrent use and must not block past ctx.
type Source interface {
	// FetchBars returns up to limit most recent bars, oldest first.
	FetchBars(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)
	// FetchPrice returns the latest price for symbol.
	FetchPrice(ctx context.Context, symbol string) (float64, error)
}
