package strategy

import (
	"fmt"
	"strings"
)

var registry = []Strategy{
	Momentum{},
	MeanReversion{},
	Breakout{},
	Scalping{},
	ContraMomentum{},
}

// All returns every registered strategy in display order.
func All() []Strategy {
	out := make([]Strategy, len(registry))
	copy(out, registry)
	return out
}

// Names returns registered strategy names in display order.
func Names() []string {
	names := make([]string, len(registry))
	for i, s := range registry {
		names[i] = s.Name()
	}
	return names
}

// Get looks a strategy up by name. Matching ignores case, spaces, dashes
// and underscores, so "mean_reversion" finds "Mean Reversion".
func Get(name string) (Strategy, error) {
	key := normalize(name)
	for _, s := range registry {
		if normalize(s.Name()) == key {
			return s, nil
		}
	}
	return nil, fmt.Errorf("unknown strategy %q (available: %s)", name, strings.Join(Names(), ", "))
}

func normalize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))
}
