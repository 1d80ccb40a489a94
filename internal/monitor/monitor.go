package monitor

import (
	"context"
	"fmt"
	"log"

	"strategy-core/internal/events"
	"strategy-core/internal/ledger"
)

// Monitor counts bus traffic into Metrics and forwards risk alerts.
type Monitor struct {
	Bus     *events.Bus
	Metrics *Metrics
	AlertFn func(string)
}

// Start subscribes to the bus until ctx ends.
func (m *Monitor) Start(ctx context.Context) {
	if m.Bus == nil || m.Metrics == nil {
		log.Println("monitor: not fully configured; skipping")
		return
	}
	if m.AlertFn == nil {
		m.AlertFn = func(s string) { log.Printf("monitor: ALERT %s", s) }
	}

	orders, unsubOrders := m.Bus.Subscribe(events.EventOrderPlaced, 100)
	alerts, unsubAlerts := m.Bus.Subscribe(events.EventRiskAlert, 50)
	prices, unsubPrices := m.Bus.Subscribe(events.EventPriceUpdated, 100)

	go func() {
		defer unsubOrders()
		defer unsubAlerts()
		defer unsubPrices()
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-orders:
				m.Metrics.IncOrders()
				if o, ok := msg.(ledger.Order); ok && o.Status == ledger.StatusFailed {
					m.Metrics.IncFailedOrders()
				}
			case msg := <-alerts:
				m.AlertFn(formatAlert(msg))
				m.Metrics.IncRiskAlerts()
			case <-prices:
				m.Metrics.IncPriceTicks()
			}
		}
	}()
}

func formatAlert(msg any) string {
	switch a := msg.(type) {
	case events.RiskAlertPayload:
		return fmt.Sprintf("%s %s: %s", a.Symbol, a.Reason, a.Detail)
	case string:
		return a
	default:
		return "alert triggered"
	}
}
