package order

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"strategy-core/internal/ledger"
	exchange "strategy-core/pkg/exchanges/common"
)

const defaultSubmitTimeout = 10 * time.Second

// Executor sends ledger orders to an exchange gateway as market orders. It
// satisfies ledger.Executor.
type Executor struct {
	Gateway exchange.Gateway
	Venue   string // name for logging
	Timeout time.Duration
}

// NewExecutor wraps gw.
func NewExecutor(gw exchange.Gateway, venue string) *Executor {
	return &Executor{Gateway: gw, Venue: venue, Timeout: defaultSubmitTimeout}
}

// Execute submits a market order. Rejected, canceled and expired acks are
// reported as ledger.ErrExecutionFailed, as is any transport error.
func (e *Executor) Execute(ctx context.Context, symbol string, side ledger.Side, amount, price float64) (ledger.Fill, error) {
	if e.Gateway == nil {
		return ledger.Fill{}, fmt.Errorf("%w: no gateway configured", ledger.ErrExecutionFailed)
	}

	req := exchange.OrderRequest{
		Symbol:   symbol,
		Side:     toExchangeSide(side),
		Type:     exchange.OrderTypeMarket,
		Qty:      amount,
		ClientID: strings.ReplaceAll(uuid.NewString(), "-", ""),
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	res, err := e.Gateway.SubmitOrder(ctx, req)
	if err != nil {
		log.Printf("executor: submit to %s failed: %v", e.Venue, err)
		return ledger.Fill{}, fmt.Errorf("%w: %v", ledger.ErrExecutionFailed, err)
	}

	switch res.Status {
	case exchange.StatusRejected, exchange.StatusCanceled, exchange.StatusExpired:
		log.Printf("executor: %s order %s %s", e.Venue, res.ExchangeOrderID, res.Status)
		return ledger.Fill{}, fmt.Errorf("%w: order %s %s", ledger.ErrExecutionFailed, res.ExchangeOrderID, strings.ToLower(string(res.Status)))
	}

	log.Printf("executor: %s %s %.6f %s accepted id=%s status=%s", e.Venue, side, amount, symbol, res.ExchangeOrderID, res.Status)
	return ledger.Fill{
		Status:     strings.ToLower(string(res.Status)),
		ExternalID: res.ExchangeOrderID,
		Price:      res.AvgPrice,
	}, nil
}

func toExchangeSide(s ledger.Side) exchange.Side {
	if s == ledger.SideSell {
		return exchange.SideSell
	}
	return exchange.SideBuy
}
