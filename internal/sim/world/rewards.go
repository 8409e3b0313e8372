package world

import (
	"slices"

	"procoin.app/internal/sim/catalogs"
	"procoin.app/internal/sim/economy"
)

// AwardPrize grants userID one random non-cursed item cheaper than the prize cap.
func (w *World) AwardPrize(userID string) (*catalogs.Item, error) {
	return w.award(userID, func(it *catalogs.Item) bool {
		return !it.Cursed && it.Cost < w.cfg.PrizeMaxCost
	})
}

// AwardCurse grants userID one random cursed item with no positive boost.
func (w *World) AwardCurse(userID string) (*catalogs.Item, error) {
	return w.award(userID, func(it *catalogs.Item) bool {
		return it.Cursed && it.Boost <= 0
	})
}

func (w *World) award(userID string, keep func(*catalogs.Item) bool) (*catalogs.Item, error) {
	pool := slices.Collect(w.cat.Filter(keep))
	if len(pool) == 0 {
		return nil, &economy.Error{Code: economy.CodeItemNotFound, Msg: "There is nothing to award!", Have: -1}
	}
	it := pool[w.rng.Intn(len(pool))]
	w.ledger.GetOrCreate(userID).AddItem(it, 1)
	return it, nil
}
