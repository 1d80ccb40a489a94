package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"strategy-core/internal/events"
)

const (
	// startupOrderHistory is how many past orders are loaded at startup.
	startupOrderHistory = 200
	// maxOrderHistory bounds the in-memory order list; the store keeps all.
	maxOrderHistory = 1000
	dateLayout      = "2006-01-02"
)

// Ledger owns positions, the order log and the daily realized P&L. Every
// public mutation runs in one critical section; events and store writes are
// issued after the lock is released, in the order the mutations happened.
// Observers must not place orders from inside a handler.
type Ledger struct {
	mu        sync.RWMutex
	positions map[string]Position
	orders    []Order
	dailyDate string
	dailyPnL  decimal.Decimal
	seq       uint64 // last mutation ticket, guarded by mu

	emitMu   sync.Mutex
	emitCond *sync.Cond
	emitted  uint64 // last ticket whose side effects ran, guarded by emitMu

	executor Executor
	store    Store
	bus      Publisher
	now      func() time.Time
}

// New creates a ledger. executor may be nil for paper trading; store and bus
// are optional.
func New(executor Executor, store Store, bus Publisher) *Ledger {
	l := &Ledger{
		positions: make(map[string]Position),
		executor:  executor,
		store:     store,
		bus:       bus,
		now:       time.Now,
	}
	l.emitCond = sync.NewCond(&l.emitMu)
	return l
}

// WithClock swaps the time source; used by tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Live reports whether orders go to an executor.
func (l *Ledger) Live() bool {
	return l.executor != nil
}

// Load primes positions, recent orders and today's P&L from the store.
func (l *Ledger) Load(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	positions, err := l.store.LoadPositions(ctx)
	if err != nil {
		return fmt.Errorf("load positions: %w", err)
	}
	orders, err := l.store.LoadRecentOrders(ctx, startupOrderHistory)
	if err != nil {
		return fmt.Errorf("load orders: %w", err)
	}
	today := l.now().UTC().Format(dateLayout)
	pnl, err := l.store.LoadDailyPnL(ctx, today)
	if err != nil {
		return fmt.Errorf("load daily pnl: %w", err)
	}

	l.mu.Lock()
	for _, p := range positions {
		l.positions[p.Symbol] = p
	}
	l.orders = append(l.orders[:0], orders...)
	l.dailyDate = today
	l.dailyPnL = decimal.NewFromFloat(pnl)
	l.mu.Unlock()

	log.Printf("ledger: loaded %d positions, %d orders, daily pnl %.2f", len(positions), len(orders), pnl)
	return nil
}

// PlaceOrder records an order and applies its fill. It always returns the
// appended order; a failed live placement has status "failed" and leaves
// positions untouched.
func (l *Ledger) PlaceOrder(ctx context.Context, symbol string, side Side, amount, price float64) Order {
	order := Order{
		ID:     uuid.NewString(),
		Symbol: symbol,
		Side:   side,
		Price:  price,
		Amount: amount,
		Status: StatusPaper,
	}

	fillPrice := price
	filled := true
	if l.executor != nil {
		fill, err := l.executor.Execute(ctx, symbol, side, amount, price)
		if err != nil {
			log.Printf("ledger: live %s %v %s failed: %v", side, amount, symbol, err)
			order.Status = StatusFailed
			filled = false
		} else {
			order.Status = fill.Status
			order.ExternalID = fill.ExternalID
			if fill.Price > 0 {
				fillPrice = fill.Price
			}
		}
	}

	l.mu.Lock()
	order.Timestamp = l.now().UTC()
	var (
		pos      Position
		daily    float64
		date     string
		realized bool
	)
	if filled {
		pos, realized = l.applyFill(symbol, side, amount, fillPrice)
		daily, date = l.dailyPnL.InexactFloat64(), l.dailyDate
	}
	l.orders = append(l.orders, order)
	if len(l.orders) > maxOrderHistory {
		l.orders = append([]Order(nil), l.orders[len(l.orders)-maxOrderHistory:]...)
	}
	l.seq++
	ticket := l.seq
	l.mu.Unlock()

	l.inTurn(ticket, func() {
		l.emit(order, pos, filled, realized, date, daily)
	})

	if order.Status == StatusPaper {
		log.Printf("ledger: paper %s %.6f %s @ %.2f", side, amount, symbol, price)
	} else if filled {
		log.Printf("ledger: live %s %.6f %s submitted (%s)", side, amount, symbol, order.Status)
	}
	return order
}

// inTurn runs fn once every earlier ticket has finished its side effects, so
// the store and observers see snapshots in mutation order.
func (l *Ledger) inTurn(ticket uint64, fn func()) {
	l.emitMu.Lock()
	for l.emitted != ticket-1 {
		l.emitCond.Wait()
	}
	l.emitMu.Unlock()

	defer func() {
		l.emitMu.Lock()
		l.emitted = ticket
		l.emitCond.Broadcast()
		l.emitMu.Unlock()
	}()
	fn()
}

func (l *Ledger) emit(order Order, pos Position, filled, realized bool, date string, daily float64) {
	if l.store != nil {
		l.store.SaveOrder(order)
		if filled {
			l.store.SavePosition(pos)
			if realized {
				l.store.SaveDailyPnL(date, daily)
			}
		}
	}
	if l.bus != nil {
		if filled {
			l.bus.Publish(events.EventPositionUpdated, pos)
		}
		l.bus.Publish(events.EventOrderPlaced, order)
	}
}

// applyFill mutates the position for symbol. Caller holds l.mu. It reports
// whether P&L was realized.
func (l *Ledger) applyFill(symbol string, side Side, amount, price float64) (Position, bool) {
	pos := l.positions[symbol]
	pos.Symbol = symbol

	held := decimal.NewFromFloat(pos.Amount)
	avg := decimal.NewFromFloat(pos.AvgPrice)
	qty := decimal.NewFromFloat(amount)
	px := decimal.NewFromFloat(price)

	realized := false
	switch side {
	case SideBuy:
		next := held.Add(qty)
		if next.IsPositive() {
			pos.AvgPrice = held.Mul(avg).Add(qty.Mul(px)).Div(next).InexactFloat64()
		}
		pos.Amount = next.InexactFloat64()
	case SideSell:
		pnl := px.Sub(avg).Mul(qty)
		pos.RealizedPnL = decimal.NewFromFloat(pos.RealizedPnL).Add(pnl).InexactFloat64()
		l.addDailyPnL(pnl)
		realized = true

		next := held.Sub(qty)
		if !next.IsPositive() {
			pos.Amount, pos.AvgPrice = 0, 0
		} else {
			pos.Amount = next.InexactFloat64()
		}
	}

	l.positions[symbol] = pos
	return pos, realized
}

// addDailyPnL accumulates realized P&L, resetting the total on the first
// realization of a new UTC day. Caller holds l.mu.
func (l *Ledger) addDailyPnL(pnl decimal.Decimal) {
	today := l.now().UTC().Format(dateLayout)
	if l.dailyDate != today {
		l.dailyDate = today
		l.dailyPnL = decimal.Zero
	}
	l.dailyPnL = l.dailyPnL.Add(pnl)
}

// FlattenAll sells every open position at the price returned by priceOf.
// Symbols without a positive price are skipped and logged. It returns the
// orders placed.
func (l *Ledger) FlattenAll(ctx context.Context, priceOf func(ctx context.Context, symbol string) (float64, error)) []Order {
	var placed []Order
	for _, pos := range l.Positions() {
		if pos.Amount <= 0 {
			continue
		}
		price, err := priceOf(ctx, pos.Symbol)
		if err == nil && price <= 0 {
			err = errors.New("non-positive price")
		}
		if err != nil {
			log.Printf("ledger: could not get price for %s, position left open: %v", pos.Symbol, err)
			continue
		}
		placed = append(placed, l.PlaceOrder(ctx, pos.Symbol, SideSell, pos.Amount, price))
	}
	return placed
}

// Position returns the snapshot for symbol (zero value if none).
func (l *Ledger) Position(symbol string) Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p := l.positions[symbol]
	p.Symbol = symbol
	return p
}

// Positions returns a snapshot of all positions sorted by symbol.
func (l *Ledger) Positions() []Position {
	l.mu.RLock()
	res := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		res = append(res, p)
	}
	l.mu.RUnlock()
	sort.Slice(res, func(i, j int) bool { return res[i].Symbol < res[j].Symbol })
	return res
}

// Orders returns up to limit most recent orders, oldest first (all when
// limit <= 0).
func (l *Ledger) Orders(limit int) []Order {
	l.mu.RLock()
	defer l.mu.RUnlock()
	src := l.orders
	if limit > 0 && len(src) > limit {
		src = src[len(src)-limit:]
	}
	out := make([]Order, len(src))
	copy(out, src)
	return out
}

// RealizedToday returns today's realized P&L. A total recorded on an
// earlier UTC day reads as 0.
func (l *Ledger) RealizedToday() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.dailyDate != l.now().UTC().Format(dateLayout) {
		return 0
	}
	return l.dailyPnL.InexactFloat64()
}
