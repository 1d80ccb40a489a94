package events

// Event enumerates high-level topics inside the strategy core.
type Event string

const (
	EventOrderPlaced     Event = "order_placed"
	EventPositionUpdated Event = "position_updated"
	EventStrategySignal  Event = "strategy_signal"
	EventEmergencyStop   Event = "emergency_stop"
	EventPriceUpdated    Event = "price_updated"
	EventRiskAlert       Event = "risk_alert"
)

// AllEvents lists every topic, in a stable order, for bridges that forward
// the whole bus (the API websocket).
var AllEvents = []Event{
	EventOrderPlaced,
	EventPositionUpdated,
	EventStrategySignal,
	EventEmergencyStop,
	EventPriceUpdated,
	EventRiskAlert,
}

// SignalPayload accompanies EventStrategySignal.
type SignalPayload struct {
	Strategy string  `json:"strategy"`
	Signal   string  `json:"signal"`
	Price    float64 `json:"price"`
	Amount   float64 `json:"amount"`
}

// PricePayload accompanies EventPriceUpdated.
type PricePayload struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// RiskAlertPayload accompanies EventRiskAlert.
type RiskAlertPayload struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"` // stop_loss, take_profit, daily_loss
	Detail string `json:"detail"`
}

// EmergencyStopPayload accompanies EventEmergencyStop.
type EmergencyStopPayload struct {
	Reason string `json:"reason"`
}
