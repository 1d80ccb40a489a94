package risk

import (
	"log"
	"sync"
)

// Manager holds the active risk configuration. Readers take a value
// snapshot per cycle; Update swaps the whole config atomically, so a cycle
// never sees a half-applied change.
type Manager struct {
	mu     sync.RWMutex
	config Config
}

// NewManager validates cfg and returns a manager holding it.
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Printf("risk manager initialized: stop_loss=%.2f%% take_profit=%.2f%% max_daily_loss=%.2f cooldown=%ds",
		cfg.StopLossPct, cfg.TakeProfitPct, cfg.MaxDailyLoss, cfg.CooldownSeconds)
	return &Manager{config: cfg}, nil
}

// Config returns a snapshot of the active configuration.
func (m *Manager) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Update replaces the configuration after validation.
func (m *Manager) Update(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	log.Printf("risk config updated: %+v", cfg)
	return nil
}
