package ledger

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"strategy-core/internal/events"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newPaperLedger(bus Publisher) (*Ledger, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	return New(nil, nil, bus).WithClock(clock.Now), clock
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestPaperBuy(t *testing.T) {
	l, _ := newPaperLedger(nil)
	o := l.PlaceOrder(context.Background(), "BTCUSDT", SideBuy, 0.1, 50000)
	if o.Status != StatusPaper || o.Side != SideBuy || o.Symbol != "BTCUSDT" || o.ID == "" {
		t.Fatalf("unexpected order %+v", o)
	}
	p := l.Position("BTCUSDT")
	if p.Amount != 0.1 || p.AvgPrice != 50000 {
		t.Fatalf("unexpected position %+v", p)
	}
}

func TestWeightedAverage(t *testing.T) {
	l, _ := newPaperLedger(nil)
	ctx := context.Background()
	l.PlaceOrder(ctx, "BTCUSDT", SideBuy, 0.1, 50000)
	l.PlaceOrder(ctx, "BTCUSDT", SideBuy, 0.1, 60000)
	p := l.Position("BTCUSDT")
	if p.Amount != 0.2 || p.AvgPrice != 55000 {
		t.Fatalf("unexpected position %+v", p)
	}
}

func TestSellRealizesPnL(t *testing.T) {
	l, _ := newPaperLedger(nil)
	ctx := context.Background()
	l.PlaceOrder(ctx, "BTCUSDT", SideBuy, 0.1, 50000)
	l.PlaceOrder(ctx, "BTCUSDT", SideSell, 0.1, 55000)
	p := l.Position("BTCUSDT")
	if p.Amount != 0 || p.AvgPrice != 0 {
		t.Fatalf("flat position must reset avg, got %+v", p)
	}
	if p.RealizedPnL != 500 {
		t.Fatalf("RealizedPnL=%v, want 500", p.RealizedPnL)
	}
	if l.RealizedToday() != 500 {
		t.Fatalf("RealizedToday=%v, want 500", l.RealizedToday())
	}
}

func TestPartialSellKeepsAverage(t *testing.T) {
	l, _ := newPaperLedger(nil)
	ctx := context.Background()
	l.PlaceOrder(ctx, "ETHUSDT", SideBuy, 2, 100)
	l.PlaceOrder(ctx, "ETHUSDT", SideSell, 0.5, 90)
	p := l.Position("ETHUSDT")
	if p.Amount != 1.5 || p.AvgPrice != 100 || p.RealizedPnL != -5 {
		t.Fatalf("unexpected position %+v", p)
	}
}

func TestOversellClampsToZero(t *testing.T) {
	l, _ := newPaperLedger(nil)
	ctx := context.Background()
	l.PlaceOrder(ctx, "ETHUSDT", SideBuy, 1, 100)
	l.PlaceOrder(ctx, "ETHUSDT", SideSell, 3, 110)
	p := l.Position("ETHUSDT")
	if p.Amount != 0 || p.AvgPrice != 0 {
		t.Fatalf("position must clamp at zero, got %+v", p)
	}
	if p.RealizedPnL != 30 {
		t.Fatalf("RealizedPnL=%v, want 30", p.RealizedPnL)
	}
}

func TestDailyPnLResetsOnNewUTCDay(t *testing.T) {
	l, clock := newPaperLedger(nil)
	ctx := context.Background()
	l.PlaceOrder(ctx, "BTCUSDT", SideBuy, 1, 100)
	l.PlaceOrder(ctx, "BTCUSDT", SideSell, 1, 110)
	if l.RealizedToday() != 10 {
		t.Fatalf("RealizedToday=%v, want 10", l.RealizedToday())
	}

	clock.Advance(24 * time.Hour)
	if l.RealizedToday() != 0 {
		t.Fatalf("previous day total must not leak, got %v", l.RealizedToday())
	}
	l.PlaceOrder(ctx, "BTCUSDT", SideBuy, 1, 100)
	l.PlaceOrder(ctx, "BTCUSDT", SideSell, 1, 95)
	if l.RealizedToday() != -5 {
		t.Fatalf("RealizedToday=%v, want -5", l.RealizedToday())
	}
	if l.Position("BTCUSDT").RealizedPnL != 5 {
		t.Fatalf("position realized must accumulate across days")
	}
}

func TestOrdersGrowAndEventsEmitted(t *testing.T) {
	bus := events.NewBus()
	var orders []Order
	var positions []Position
	bus.On(events.EventOrderPlaced, func(p any) { orders = append(orders, p.(Order)) })
	bus.On(events.EventPositionUpdated, func(p any) { positions = append(positions, p.(Position)) })

	l, _ := newPaperLedger(bus)
	ctx := context.Background()
	l.PlaceOrder(ctx, "BTCUSDT", SideBuy, 0.1, 50000)
	l.PlaceOrder(ctx, "ETHUSDT", SideBuy, 1, 3000)

	if got := len(l.Orders(0)); got != 2 {
		t.Fatalf("orders=%d, want 2", got)
	}
	if len(orders) != 2 || orders[0].Side != SideBuy {
		t.Fatalf("order events %+v", orders)
	}
	if len(positions) != 2 || positions[1].Symbol != "ETHUSDT" {
		t.Fatalf("position events %+v", positions)
	}
	if got := l.Orders(1); len(got) != 1 || got[0].Symbol != "ETHUSDT" {
		t.Fatalf("Orders(1)=%+v", got)
	}
}

type fakeExecutor struct {
	fill Fill
	err  error
}

func (f fakeExecutor) Execute(context.Context, string, Side, float64, float64) (Fill, error) {
	return f.fill, f.err
}

func TestLiveFillUsesExecutorPrice(t *testing.T) {
	exec := fakeExecutor{fill: Fill{Status: "filled", ExternalID: "42", Price: 101}}
	l := New(exec, nil, nil)
	o := l.PlaceOrder(context.Background(), "BTCUSDT", SideBuy, 1, 100)
	if o.Status != "filled" || o.ExternalID != "42" || o.Price != 100 {
		t.Fatalf("unexpected order %+v", o)
	}
	if p := l.Position("BTCUSDT"); p.AvgPrice != 101 {
		t.Fatalf("fill must use executor price, got %+v", p)
	}

	exec.fill.Price = 0
	l = New(exec, nil, nil)
	l.PlaceOrder(context.Background(), "BTCUSDT", SideBuy, 1, 100)
	if p := l.Position("BTCUSDT"); p.AvgPrice != 100 {
		t.Fatalf("zero executor price must fall back to requested, got %+v", p)
	}
}

func TestLiveFailureRecordsFailedOrderWithoutFill(t *testing.T) {
	bus := events.NewBus()
	var positionEvents int
	bus.On(events.EventPositionUpdated, func(any) { positionEvents++ })

	l := New(fakeExecutor{err: errors.New("insufficient balance")}, nil, bus)
	o := l.PlaceOrder(context.Background(), "BTCUSDT", SideBuy, 1, 100)
	if o.Status != StatusFailed {
		t.Fatalf("Status=%q, want failed", o.Status)
	}
	if p := l.Position("BTCUSDT"); p.Amount != 0 {
		t.Fatalf("failed order must not fill, got %+v", p)
	}
	if len(l.Orders(0)) != 1 || positionEvents != 0 {
		t.Fatalf("failed order must be logged without a position update")
	}
}

func TestConcurrentOrdersStayConsistent(t *testing.T) {
	l, _ := newPaperLedger(nil)
	ctx := context.Background()
	l.PlaceOrder(ctx, "BTCUSDT", SideBuy, 100, 10)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); l.PlaceOrder(ctx, "BTCUSDT", SideBuy, 1, 10) }()
		go func() { defer wg.Done(); l.PlaceOrder(ctx, "BTCUSDT", SideSell, 1, 12) }()
	}
	wg.Wait()

	p := l.Position("BTCUSDT")
	if !approx(p.Amount, 100) || !approx(p.AvgPrice, 10) {
		t.Fatalf("unexpected position %+v", p)
	}
	if !approx(p.RealizedPnL, 100) || !approx(l.RealizedToday(), 100) {
		t.Fatalf("realized=%v today=%v, want 100", p.RealizedPnL, l.RealizedToday())
	}
	if len(l.Orders(0)) != 101 {
		t.Fatalf("orders=%d, want 101", len(l.Orders(0)))
	}
}

type memStore struct {
	mu        sync.Mutex
	orders    []Order
	positions map[string]Position
	daily     map[string]float64
}

func newMemStore() *memStore {
	return &memStore{positions: map[string]Position{}, daily: map[string]float64{}}
}

func (m *memStore) SaveOrder(o Order) { m.mu.Lock(); m.orders = append(m.orders, o); m.mu.Unlock() }
func (m *memStore) SavePosition(p Position) {
	m.mu.Lock()
	m.positions[p.Symbol] = p
	m.mu.Unlock()
}
func (m *memStore) SaveDailyPnL(date string, pnl float64) {
	m.mu.Lock()
	m.daily[date] = pnl
	m.mu.Unlock()
}
func (m *memStore) LoadPositions(context.Context) ([]Position, error) {
	var out []Position
	for _, p := range m.positions {
		out = append(out, p)
	}
	return out, nil
}
func (m *memStore) LoadRecentOrders(_ context.Context, limit int) ([]Order, error) {
	if len(m.orders) > limit {
		return m.orders[len(m.orders)-limit:], nil
	}
	return m.orders, nil
}
func (m *memStore) LoadDailyPnL(_ context.Context, date string) (float64, error) {
	return m.daily[date], nil
}

func TestStoreRoundTripAndStartupLoad(t *testing.T) {
	store := newMemStore()
	clock := &fakeClock{t: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	l := New(nil, store, nil).WithClock(clock.Now)
	ctx := context.Background()
	l.PlaceOrder(ctx, "BTCUSDT", SideBuy, 2, 100)
	l.PlaceOrder(ctx, "BTCUSDT", SideSell, 1, 120)

	if len(store.orders) != 2 || store.daily["2024-03-10"] != 20 {
		t.Fatalf("store not written: orders=%d daily=%v", len(store.orders), store.daily)
	}

	restarted := New(nil, store, nil).WithClock(clock.Now)
	if err := restarted.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p := restarted.Position("BTCUSDT"); p.Amount != 1 || p.AvgPrice != 100 || p.RealizedPnL != 20 {
		t.Fatalf("restored position %+v", p)
	}
	if restarted.RealizedToday() != 20 || len(restarted.Orders(0)) != 2 {
		t.Fatalf("restored pnl=%v orders=%d", restarted.RealizedToday(), len(restarted.Orders(0)))
	}
}

func TestFlattenAllSkipsMissingPrices(t *testing.T) {
	l, _ := newPaperLedger(nil)
	ctx := context.Background()
	l.PlaceOrder(ctx, "BTCUSDT", SideBuy, 1, 100)
	l.PlaceOrder(ctx, "ETHUSDT", SideBuy, 2, 50)
	l.PlaceOrder(ctx, "SOLUSDT", SideBuy, 3, 10)

	prices := map[string]float64{"BTCUSDT": 110, "SOLUSDT": 0}
	placed := l.FlattenAll(ctx, func(_ context.Context, symbol string) (float64, error) {
		if p, ok := prices[symbol]; ok {
			return p, nil
		}
		return 0, errors.New("no price")
	})

	if len(placed) != 1 || placed[0].Symbol != "BTCUSDT" {
		t.Fatalf("placed %+v", placed)
	}
	if l.Position("BTCUSDT").Amount != 0 || l.Position("ETHUSDT").Amount != 2 || l.Position("SOLUSDT").Amount != 3 {
		t.Fatalf("unexpected positions %+v", l.Positions())
	}
}

// gatedStore blocks the first SaveOrder until release is closed and keeps
// every position snapshot it receives.
type gatedStore struct {
	*memStore
	once     sync.Once
	entered  chan struct{}
	release  chan struct{}
	snapshot []Position
}

func (g *gatedStore) SaveOrder(o Order) {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	g.memStore.SaveOrder(o)
}

func (g *gatedStore) SavePosition(p Position) {
	g.mu.Lock()
	g.snapshot = append(g.snapshot, p)
	g.mu.Unlock()
	g.memStore.SavePosition(p)
}

func TestOverlappingOrdersPersistInMutationOrder(t *testing.T) {
	store := &gatedStore{memStore: newMemStore(), entered: make(chan struct{}), release: make(chan struct{})}
	bus := events.NewBus()
	var (
		evMu    sync.Mutex
		updates []Position
	)
	bus.On(events.EventPositionUpdated, func(p any) {
		evMu.Lock()
		updates = append(updates, p.(Position))
		evMu.Unlock()
	})
	l := New(nil, store, bus)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); l.PlaceOrder(ctx, "BTCUSDT", SideBuy, 0.1, 50000) }()
	<-store.entered

	go func() { defer wg.Done(); l.PlaceOrder(ctx, "BTCUSDT", SideBuy, 0.1, 60000) }()
	deadline := time.Now().Add(2 * time.Second)
	for !approx(l.Position("BTCUSDT").Amount, 0.2) {
		if time.Now().After(deadline) {
			t.Fatalf("second order never applied")
		}
		time.Sleep(time.Millisecond)
	}
	close(store.release)
	wg.Wait()

	mem := l.Position("BTCUSDT")
	saved := store.positions["BTCUSDT"]
	if !approx(saved.Amount, mem.Amount) || !approx(saved.AvgPrice, 55000) {
		t.Fatalf("in-memory=%+v last persisted=%+v", mem, saved)
	}
	if len(store.snapshot) != 2 || !approx(store.snapshot[0].Amount, 0.1) {
		t.Fatalf("snapshots out of order: %+v", store.snapshot)
	}

	evMu.Lock()
	defer evMu.Unlock()
	if len(updates) != 2 || !approx(updates[1].AvgPrice, 55000) {
		t.Fatalf("position events out of order: %+v", updates)
	}
}
