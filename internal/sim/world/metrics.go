package world

import (
	"maps"
	"time"
)

// WorldMetrics is a thread-safe read-only view of the economy.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Users        int       `json:"users"`
	StoreEntries int       `json:"store_entries"`
	LastRestock  time.Time `json:"last_restock"`
	CatalogItems int       `json:"catalog_items"`
	Recipes      int       `json:"recipes"`

	MoneySupply int64 `json:"money_supply"`

	Commands uint64            `json:"commands"`
	Failures map[string]uint64 `json:"failures,omitempty"`
	Restocks uint64            `json:"restocks"`
	Saves    uint64            `json:"saves_requested"`

	QueueDepths QueueDepths `json:"queue_depths"`
}

type QueueDepths struct {
	Inbox int `json:"inbox"`
	Do    int `json:"do"`
	Save  int `json:"save"`
}

// loopStats is owned by the loop goroutine.
type loopStats struct {
	commands uint64
	failures map[string]uint64
	restocks uint64
	saves    uint64
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	m, _ := w.metrics.Load().(WorldMetrics)
	return m
}

func (w *World) publishMetrics() {
	var supply int64
	for _, id := range w.ledger.IDs() {
		if u, ok := w.ledger.Find(id); ok {
			supply += u.Balance
		}
	}
	w.metrics.Store(WorldMetrics{
		Users:        w.ledger.Len(),
		StoreEntries: w.store.Len(),
		LastRestock:  w.store.LastRestock(),
		CatalogItems: w.cat.Len(),
		Recipes:      w.merges.Len(),
		MoneySupply:  supply,
		Commands:     w.stats.commands,
		Failures:     maps.Clone(w.stats.failures),
		Restocks:     w.stats.restocks,
		Saves:        w.stats.saves,
		QueueDepths: QueueDepths{
			Inbox: len(w.inbox),
			Do:    len(w.do),
			Save:  len(w.saveReq),
		},
	})
}
