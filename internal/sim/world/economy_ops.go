package world

import (
	"sort"

	"procoin.app/internal/sim/catalogs"
	"procoin.app/internal/sim/economy"
)

func (w *World) lookup(query string) (*catalogs.Item, error) {
	it, ok := w.cat.LookupByName(query)
	if !ok {
		return nil, &economy.Error{Code: economy.CodeItemNotFound, Msg: "Item " + query + " not found!", Have: -1}
	}
	return it, nil
}

func userNotFound() error {
	return &economy.Error{Code: economy.CodeUserNotFound, Msg: "Unknown user!", Have: -1}
}

func (w *World) saleNoise() economy.SaleNoise {
	return economy.SaleNoise{Rand: w.rng, Min: w.cfg.SellPriceMin, Max: w.cfg.SellPriceMax}
}

// Buy purchases qty of the named item for userID and returns the total cost.
func (w *World) Buy(userID, query string, qty int) (int64, *catalogs.Item, error) {
	it, err := w.lookup(query)
	if err != nil {
		return 0, nil, err
	}
	paid, err := w.ledger.GetOrCreate(userID).Buy(it, qty, w.store)
	return paid, it, err
}

// Sell sells qty of the named item and returns the proceeds.
func (w *World) Sell(userID, query string, qty int) (int64, *catalogs.Item, error) {
	it, err := w.lookup(query)
	if err != nil {
		return 0, nil, err
	}
	got, err := w.ledger.GetOrCreate(userID).Sell(it, qty, w.store, w.saleNoise())
	return got, it, err
}

// Give moves qty of the named item from sourceID to an existing targetID.
func (w *World) Give(sourceID, targetID, query string, qty int) (*catalogs.Item, error) {
	src := w.ledger.GetOrCreate(sourceID)
	dst, ok := w.ledger.Find(targetID)
	if !ok {
		return nil, userNotFound()
	}
	if sourceID == targetID {
		return nil, &economy.Error{Code: economy.CodeSelfTransfer, Msg: "You can't give items to yourself!", Have: -1}
	}
	it, err := w.lookup(query)
	if err != nil {
		return nil, err
	}
	switch {
	case qty < 0:
		return nil, &economy.Error{Code: economy.CodeInvalidQuantity, Msg: "You cannot steal from someone!", Have: -1}
	case qty == 0:
		return nil, &economy.Error{Code: economy.CodeInvalidQuantity, Msg: "You cannot give someone nothing!", Have: -1}
	}
	if err := src.TakeItem(it, qty, false); err != nil {
		return nil, err
	}
	dst.AddItem(it, qty)
	return it, nil
}

// Pay transfers amount from sourceID to targetID. Both accounts must exist;
// nothing is debited unless the credit is certain to follow.
func (w *World) Pay(sourceID, targetID string, amount int64) error {
	switch {
	case amount < 0:
		return &economy.Error{Code: economy.CodeInvalidQuantity, Msg: "You cannot steal from someone!", Have: -1}
	case amount == 0:
		return &economy.Error{Code: economy.CodeInvalidQuantity, Msg: "You cannot pay someone nothing!", Have: -1}
	case sourceID == targetID:
		return &economy.Error{Code: economy.CodeSelfTransfer, Msg: "I mean, you could pay yourself, but it'd do absolutely nothing.", Have: -1}
	}
	if _, ok := w.ledger.Find(sourceID); !ok {
		return userNotFound()
	}
	dst, ok := w.ledger.Find(targetID)
	if !ok {
		return userNotFound()
	}
	if amount > maxInt64-dst.Balance {
		return &economy.Error{Code: economy.CodeInvalidQuantity, Msg: "That payment would overflow the recipient's balance!", Have: -1}
	}
	if err := w.ledger.RemoveCash(sourceID, amount); err != nil {
		return err
	}
	return w.ledger.AddCash(targetID, amount)
}

const maxInt64 = 1<<63 - 1

// Merge combines the named items amount times.
func (w *World) Merge(userID string, queries []string, amount int) (string, *catalogs.Item, error) {
	items := make([]*catalogs.Item, 0, len(queries))
	for _, q := range queries {
		it, err := w.lookup(q)
		if err != nil {
			return "", nil, err
		}
		items = append(items, it)
	}
	return w.merges.Merge(w.ledger.GetOrCreate(userID), items, amount)
}

// RemoveCurse spends one scroll to cleanse one random cursed item. With some
// risk (always, above the wealth threshold) a random non-cursed item is
// destroyed too, only once the cleanse has succeeded. On any error the
// inventory is left as it was.
func (w *World) RemoveCurse(userID string) (cleansed, destroyed *catalogs.Item, err error) {
	u := w.ledger.GetOrCreate(userID)
	scroll, ok := w.cat.Lookup(w.cfg.Curse.ScrollItemID)
	if !ok {
		return nil, nil, &economy.Error{Code: economy.CodeItemNotFound, Msg: "Scrolls of remove curse do not exist!", Have: -1}
	}
	if err := u.AssertHas(scroll, 1); err != nil {
		return nil, nil, err
	}

	var cursed, plain []*catalogs.Item
	inv := u.Inventory()
	ids := make([]string, 0, len(inv))
	for id := range inv {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		it, ok := w.cat.Lookup(id)
		if !ok {
			continue
		}
		switch {
		case it.Cursed:
			cursed = append(cursed, it)
		case it.ID == scroll.ID && inv[id] < 2:
			// the last scroll is spent, not destroyed
		default:
			plain = append(plain, it)
		}
	}
	if len(cursed) == 0 {
		return nil, nil, &economy.Error{Code: economy.CodeNoCursedItems, Msg: "You cannot use a scroll of remove curse when you do not have a cursed item!", Have: -1}
	}
	cleansed = cursed[w.rng.Intn(len(cursed))]
	if (u.Balance > w.cfg.Curse.WealthThreshold || w.rng.Intn(w.cfg.Curse.RiskOneIn) == 0) && len(plain) > 0 {
		destroyed = plain[w.rng.Intn(len(plain))]
	}

	if err := u.TakeItem(scroll, 1, false); err != nil {
		return nil, nil, err
	}
	if err := u.TakeItem(cleansed, 1, true); err != nil {
		u.AddItem(scroll, 1)
		return nil, nil, err
	}
	if destroyed != nil {
		if err := u.TakeItem(destroyed, 1, false); err != nil {
			u.AddItem(cleansed, 1)
			u.AddItem(scroll, 1)
			return nil, nil, err
		}
	}
	return cleansed, destroyed, nil
}

// ShowStore renders the current store listing.
func (w *World) ShowStore() string { return w.store.Listing() }

// ListMerges renders every recipe.
func (w *World) ListMerges() string { return w.merges.ListRecipes() }

// Inventory renders userID's inventory pages.
func (w *World) Inventory(userID string) []string {
	return w.ledger.GetOrCreate(userID).RenderInventory(w.cat, w.cfg.InventoryPageChars)
}

// Balance returns userID's balance, creating the account if needed.
func (w *World) Balance(userID string) int64 { return w.ledger.GetOrCreate(userID).Balance }

// AddCash and RemoveCash are admin grants and fines on existing users.
func (w *World) AddCash(userID string, amount int64) error {
	return w.ledger.AddCash(userID, amount)
}

func (w *World) RemoveCash(userID string, amount int64) error {
	return w.ledger.RemoveCash(userID, amount)
}

// AccrueIncome credits userID's passive income if due.
func (w *World) AccrueIncome(userID string) int64 {
	return w.ledger.GetOrCreate(userID).AccruePassiveIncome(w.now(), w.cfg.PassiveIncomePeriod)
}
