package ledger

import (
	"context"
	"errors"
	"time"

	"strategy-core/internal/events"
)

// ErrExecutionFailed marks an order the execution sink could not place.
var ErrExecutionFailed = errors.New("execution failed")

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Order statuses written by the ledger. Live orders carry the exchange's
// own status instead.
const (
	StatusPaper  = "paper"
	StatusFailed = "failed"
)

// Order is an append-only record of one placement attempt.
type Order struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Price      float64   `json:"price"`
	Amount     float64   `json:"amount"`
	Status     string    `json:"status"`
	ExternalID string    `json:"external_id,omitempty"`
}

// Position is the long-only holding for one symbol.
type Position struct {
	Symbol      string  `json:"symbol"`
	Amount      float64 `json:"amount"`
	AvgPrice    float64 `json:"avg_price"`
	RealizedPnL float64 `json:"realized_pnl"`
}

// Fill is what an executor reports for a placed order. A zero Price means
// the requested price is used.
type Fill struct {
	Status     string
	ExternalID string
	Price      float64
}

// Executor places orders on a live venue.
type Executor interface {
	Execute(ctx context.Context, symbol string, side Side, amount, price float64) (Fill, error)
}

// Store persists ledger state. Save calls must not block on I/O; load calls
// are only used at startup.
type Store interface {
	SaveOrder(o Order)
	SavePosition(p Position)
	SaveDailyPnL(date string, pnl float64)

	LoadPositions(ctx context.Context) ([]Position, error)
	LoadRecentOrders(ctx context.Context, limit int) ([]Order, error)
	LoadDailyPnL(ctx context.Context, date string) (float64, error)
}

// Publisher receives ledger events; satisfied by *events.Bus.
type Publisher interface {
	Publish(e events.Event, payload any)
}
