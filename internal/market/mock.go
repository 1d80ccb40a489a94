package market

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// MockSource generates a deterministic random-walk candle series for local
// development and demos. The same seed always yields the same bars.
type MockSource struct {
	StartPrice float64
	Step       float64 // max fractional move per bar, e.g. 0.004
	Seed       int64

	now func() time.Time

	mu     sync.Mutex
	series map[string]*mockSeries
}

type mockSeries struct {
	rng       *rand.Rand
	frame     time.Duration
	bars      []Candle
	lastClose float64
}

// NewMockSource returns a seeded mock source anchored at the wall clock.
func NewMockSource(seed int64, startPrice float64) *MockSource {
	if startPrice <= 0 {
		startPrice = 100.0
	}
	return &MockSource{
		StartPrice: startPrice,
		Step:       0.004,
		Seed:       seed,
		now:        time.Now,
		series:     make(map[string]*mockSeries),
	}
}

// WithClock swaps the time source; used by tests.
func (m *MockSource) WithClock(now func() time.Time) *MockSource {
	m.now = now
	return m
}

// FetchBars returns the last limit bars up to the bar containing now.
func (m *MockSource) FetchBars(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frame, err := ParseTimeframe(timeframe)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	if limit <= 0 {
		limit = 100
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.seriesFor(symbol, timeframe, frame, limit)
	m.extend(s, limit)
	return tail(s.bars, limit), nil
}

// FetchPrice returns the close of the most recent bar of any series for
// symbol, or the start price before any bars exist.
func (m *MockSource) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, s := range m.series {
		if len(key) > len(symbol) && key[:len(symbol)+1] == symbol+"|" {
			m.extend(s, 0)
			return s.lastClose, nil
		}
	}
	return m.StartPrice, nil
}

func (m *MockSource) seriesFor(symbol, timeframe string, frame time.Duration, limit int) *mockSeries {
	key := symbol + "|" + timeframe
	if s, ok := m.series[key]; ok {
		return s
	}
	// Backfill so the first call already has history.
	start := m.now().Truncate(frame).Add(-time.Duration(limit) * frame)
	s := &mockSeries{
		rng:       rand.New(rand.NewSource(m.Seed)),
		frame:     frame,
		lastClose: m.StartPrice,
		bars:      []Candle{{OpenTime: start.UnixMilli(), Open: m.StartPrice, High: m.StartPrice, Low: m.StartPrice, Close: m.StartPrice}},
	}
	m.series[key] = s
	return s
}

// extend appends bars until the series reaches the bar containing now and
// trims history to a bounded size.
func (m *MockSource) extend(s *mockSeries, keep int) {
	current := m.now().Truncate(s.frame).UnixMilli()
	for s.bars[len(s.bars)-1].OpenTime < current {
		prev := s.bars[len(s.bars)-1]
		open := prev.Close
		next := open * (1 + (s.rng.Float64()*2-1)*m.Step)
		wick := open * m.Step * s.rng.Float64() * 0.5
		high := max(open, next) + wick
		low := min(open, next) - wick
		s.bars = append(s.bars, Candle{
			OpenTime: prev.OpenTime + s.frame.Milliseconds(),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    next,
			Volume:   1 + s.rng.Float64()*10,
		})
		s.lastClose = next
	}
	if limit := max(keep, 1000); len(s.bars) > 2*limit {
		s.bars = append([]Candle(nil), s.bars[len(s.bars)-limit:]...)
	}
}
