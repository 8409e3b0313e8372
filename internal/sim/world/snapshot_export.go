package world

import (
	"procoin.app/internal/persistence/snapshot"
	"procoin.app/internal/sim/economy"
)

// ExportLedger takes a deep copy of every account in the persisted shape.
// Must run on the loop.
func (w *World) ExportLedger() snapshot.LedgerV1 {
	accts := w.ledger.Export()
	doc := make(snapshot.LedgerV1, len(accts))
	for id, a := range accts {
		doc[id] = snapshot.AccountV1{Balance: a.Balance, Inventory: a.Inventory}
	}
	return doc
}

// ImportLedger replaces the ledger with doc. Boost is recomputed and accrual
// reset for every user; unknown items are dropped.
func (w *World) ImportLedger(doc snapshot.LedgerV1) {
	accts := make(map[string]economy.Account, len(doc))
	for id, a := range doc {
		inv := make(map[string]int, len(a.Inventory))
		for itemID, qty := range a.Inventory {
			if qty > 0 {
				inv[itemID] = qty
			}
		}
		accts[id] = economy.Account{Balance: max(a.Balance, 0), Inventory: inv}
	}
	w.ledger.Import(accts, w.cat)
	w.publishMetrics()
	w.log.Printf("ledger loaded: %d users", w.ledger.Len())
}
