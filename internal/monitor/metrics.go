package monitor

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks runner activity.
type Metrics struct {
	CycleLatency *LatencyHistogram
	APILatency   *LatencyHistogram

	cycles       atomic.Uint64
	skipped      atomic.Uint64
	signals      atomic.Uint64
	orders       atomic.Uint64
	failedOrders atomic.Uint64
	riskAlerts   atomic.Uint64
	priceTicks   atomic.Uint64
	errors       atomic.Uint64
	apiRequests  atomic.Uint64
	apiErrors    atomic.Uint64

	started time.Time
}

// NewMetrics creates an empty metrics set.
func NewMetrics() *Metrics {
	return &Metrics{
		CycleLatency: NewLatencyHistogram(1000),
		APILatency:   NewLatencyHistogram(1000),
		started:      time.Now(),
	}
}

func (m *Metrics) IncCycles()       { m.cycles.Add(1) }
func (m *Metrics) IncSkipped()      { m.skipped.Add(1) }
func (m *Metrics) IncSignals()      { m.signals.Add(1) }
func (m *Metrics) IncOrders()       { m.orders.Add(1) }
func (m *Metrics) IncFailedOrders() { m.failedOrders.Add(1) }
func (m *Metrics) IncRiskAlerts()   { m.riskAlerts.Add(1) }
func (m *Metrics) IncPriceTicks()   { m.priceTicks.Add(1) }
func (m *Metrics) IncErrors()       { m.errors.Add(1) }
func (m *Metrics) IncAPIRequests()  { m.apiRequests.Add(1) }
func (m *Metrics) IncAPIErrors()    { m.apiErrors.Add(1) }

// Snapshot is a point-in-time copy of the metrics.
type Snapshot struct {
	CycleLatency   LatencyStats `json:"cycle_latency_ms"`
	APILatency     LatencyStats `json:"api_latency_ms"`
	Cycles         uint64       `json:"cycles"`
	SkippedCycles  uint64       `json:"skipped_cycles"`
	Signals        uint64       `json:"signals"`
	Orders         uint64       `json:"orders"`
	FailedOrders   uint64       `json:"failed_orders"`
	RiskAlerts     uint64       `json:"risk_alerts"`
	PriceTicks     uint64       `json:"price_ticks"`
	Errors         uint64       `json:"errors"`
	APIRequests    uint64       `json:"api_requests"`
	APIErrors      uint64       `json:"api_errors"`
	GoroutineCount int          `json:"goroutine_count"`
	HeapAlloc      uint64       `json:"heap_alloc_bytes"`
	Uptime         string       `json:"uptime"`
	Timestamp      time.Time    `json:"timestamp"`
}

// Snapshot returns the current counters and latency stats.
func (m *Metrics) Snapshot() Snapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return Snapshot{
		CycleLatency:   m.CycleLatency.Stats(),
		APILatency:     m.APILatency.Stats(),
		Cycles:         m.cycles.Load(),
		SkippedCycles:  m.skipped.Load(),
		Signals:        m.signals.Load(),
		Orders:         m.orders.Load(),
		FailedOrders:   m.failedOrders.Load(),
		RiskAlerts:     m.riskAlerts.Load(),
		PriceTicks:     m.priceTicks.Load(),
		Errors:         m.errors.Load(),
		APIRequests:    m.apiRequests.Load(),
		APIErrors:      m.apiErrors.Load(),
		GoroutineCount: runtime.NumGoroutine(),
		HeapAlloc:      mem.HeapAlloc,
		Uptime:         time.Since(m.started).Round(time.Second).String(),
		Timestamp:      time.Now(),
	}
}

// LatencyHistogram keeps the last N latency samples in a ring buffer.
// Stats are recomputed lazily.
type LatencyHistogram struct {
	mu      sync.Mutex
	samples []float64
	next    int
	full    bool
	dirty   bool
	cached  LatencyStats
}

// LatencyStats holds computed latency statistics in milliseconds.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

// NewLatencyHistogram creates a sliding window of size samples.
func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{samples: make([]float64, size)}
}

// Record adds a sample in milliseconds.
func (h *LatencyHistogram) Record(ms float64) {
	h.mu.Lock()
	h.samples[h.next] = ms
	h.next++
	if h.next == len(h.samples) {
		h.next = 0
		h.full = true
	}
	h.dirty = true
	h.mu.Unlock()
}

// RecordDuration records d in milliseconds.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

// Stats returns min, max, avg and percentiles of the window.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.dirty {
		return h.cached
	}

	n := h.next
	if h.full {
		n = len(h.samples)
	}
	if n == 0 {
		return LatencyStats{}
	}
	sorted := make([]float64, n)
	copy(sorted, h.samples[:n])
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	h.cached = LatencyStats{
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[int(float64(n-1)*0.95)],
		P99:   sorted[int(float64(n-1)*0.99)],
		Count: n,
	}
	h.dirty = false
	return h.cached
}

// Timer measures one operation.
type Timer struct {
	start     time.Time
	histogram *LatencyHistogram
}

// NewTimer starts a timer recording into h.
func NewTimer(h *LatencyHistogram) *Timer {
	return &Timer{start: time.Now(), histogram: h}
}

// Stop records and returns the elapsed time.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if t.histogram != nil {
		t.histogram.RecordDuration(elapsed)
	}
	return elapsed
}
