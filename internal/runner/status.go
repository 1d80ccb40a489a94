package runner

import (
	"time"

	"strategy-core/internal/ledger"
	"strategy-core/internal/monitor"
)

// Status is a read-only view of the runner for the API.
type Status struct {
	State         State           `json:"state"`
	Strategy      string          `json:"strategy"`
	Symbol        string          `json:"symbol"`
	Timeframe     string          `json:"timeframe"`
	PollInterval  string          `json:"poll_interval"`
	LastCycle     time.Time       `json:"last_cycle,omitempty"`
	LastTrade     time.Time       `json:"last_trade,omitempty"`
	LastSignal    string          `json:"last_signal"`
	LastSkip      string          `json:"last_skip,omitempty"`
	Position      ledger.Position `json:"position"`
	RealizedToday float64         `json:"realized_today"`
}

// Status returns the current runner view.
func (r *Runner) Status() Status {
	r.mu.RLock()
	st := Status{
		Strategy:     r.strat.Name(),
		Symbol:       r.cfg.Symbol,
		Timeframe:    r.cfg.Timeframe,
		PollInterval: r.cfg.PollInterval.String(),
		LastCycle:    r.lastCycle,
		LastTrade:    r.lastTrade,
		LastSignal:   r.lastSignal.String(),
		LastSkip:     r.lastSkip,
		State:        StateIdle,
	}
	if r.active {
		st.State = StateActive
	}
	r.mu.RUnlock()

	st.Position = r.ledger.Position(r.cfg.Symbol)
	st.RealizedToday = r.ledger.RealizedToday()
	return st
}

// Metrics returns the runner's metrics set.
func (r *Runner) Metrics() *monitor.Metrics {
	return r.metrics
}
