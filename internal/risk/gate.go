package risk

import (
	"fmt"
	"time"
)

// GateReason names why new entries are blocked.
type GateReason string

const (
	GateOpen      GateReason = ""
	GateDailyLoss GateReason = "daily_loss"
	GateCooldown  GateReason = "cooldown"
)

// Gate decides whether the runner may act on a signal this cycle.
// realizedToday is the ledger's daily realized total; lastTrade is the
// cooldown anchor (zero when no trade happened yet). The daily loss gate
// closes once realizedToday <= -MaxDailyLoss, so a MaxDailyLoss of 0 pauses
// entries until the next UTC day.
func Gate(cfg Config, realizedToday float64, lastTrade, now time.Time) (GateReason, string) {
	if realizedToday <= -cfg.MaxDailyLoss {
		return GateDailyLoss, fmt.Sprintf("realized today %.2f reached max daily loss %.2f", realizedToday, cfg.MaxDailyLoss)
	}
	if !lastTrade.IsZero() {
		if elapsed := now.Sub(lastTrade); elapsed < cfg.Cooldown() {
			return GateCooldown, fmt.Sprintf("cooldown %s remaining", (cfg.Cooldown() - elapsed).Round(time.Second))
		}
	}
	return GateOpen, ""
}
