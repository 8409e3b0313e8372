package economy

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"procoin.app/internal/sim/catalogs"
)

// StoreConfig controls store partitioning and regeneration.
type StoreConfig struct {
	OrdinarySlots int
	BigSlots      int
	// BigItemCost splits stockable items into the ordinary (< cost) and big (>= cost) pools.
	BigItemCost int64
}

// Store is the rotating stock of purchasable items. Stock is keyed by item ID;
// an absent entry means zero stock.
type Store struct {
	cfg StoreConfig
	cat *catalogs.Catalog
	rng Rand

	ordinary []*catalogs.Item
	big      []*catalogs.Item

	stock       map[string]int
	lastRestock time.Time
}

// NewStore partitions the catalog into pools. The store starts empty; call
// Regenerate to fill it.
func NewStore(cat *catalogs.Catalog, cfg StoreConfig, rng Rand) *Store {
	s := &Store{cfg: cfg, rng: rng, stock: map[string]int{}}
	s.Repartition(cat)
	return s
}

// Repartition rebuilds the pools from cat. Current stock is kept for items
// that are still stockable and dropped for the rest.
func (s *Store) Repartition(cat *catalogs.Catalog) {
	s.cat = cat
	s.ordinary = s.ordinary[:0]
	s.big = s.big[:0]
	for it := range cat.Filter((*catalogs.Item).Stockable) {
		if it.Cost >= s.cfg.BigItemCost {
			s.big = append(s.big, it)
		} else {
			s.ordinary = append(s.ordinary, it)
		}
	}
	for id := range s.stock {
		if it, ok := cat.Lookup(id); !ok || !it.Stockable() {
			delete(s.stock, id)
		}
	}
}

// Pools returns the ordinary and big pools in catalog order.
func (s *Store) Pools() (ordinary, big []*catalogs.Item) {
	return append([]*catalogs.Item(nil), s.ordinary...), append([]*catalogs.Item(nil), s.big...)
}

// Regenerate replaces all stock with a fresh sample of distinct items from
// each pool, each stocked at its default quantity.
func (s *Store) Regenerate(now time.Time) {
	clear(s.stock)
	for _, it := range sample(s.rng, s.ordinary, s.cfg.OrdinarySlots) {
		s.stock[it.ID] = it.DefaultQty
	}
	for _, it := range sample(s.rng, s.big, s.cfg.BigSlots) {
		s.stock[it.ID] = it.DefaultQty
	}
	s.lastRestock = now
}

func (s *Store) LastRestock() time.Time { return s.lastRestock }

// Stock returns the current stock for an item ID.
func (s *Store) Stock(id string) int { return s.stock[id] }

// Len returns the number of in-stock entries.
func (s *Store) Len() int { return len(s.stock) }

// Buy removes qty of it from stock.
func (s *Store) Buy(it *catalogs.Item, qty int) error {
	if qty < 1 {
		return quantityError(int64(qty), "buy")
	}
	have := s.stock[it.ID]
	if have < qty {
		var e *Error
		if have == 0 {
			e = newErr(CodeInsufficientStock, "%s is not in stock!", it.Name)
		} else {
			e = newErr(CodeInsufficientStock, "The store only has %d %s%s, not %d!", have, it.Name, plural(have), qty)
		}
		e.Have = have
		return e
	}
	if have == qty {
		delete(s.stock, it.ID)
	} else {
		s.stock[it.ID] = have - qty
	}
	return nil
}

// Sell returns qty of it to stock. Always succeeds for qty >= 1; the store
// has no cap. Items withdrawn from sale (default_qty 0) are accepted but
// never listed.
func (s *Store) Sell(it *catalogs.Item, qty int) error {
	if qty < 1 {
		return quantityError(int64(qty), "sell")
	}
	if !it.Stockable() {
		return nil
	}
	s.stock[it.ID] += qty
	return nil
}

// StockEntry is one in-stock item.
type StockEntry struct {
	Item *catalogs.Item
	Qty  int
}

// Entries returns in-stock items ordered by cost, then ID. Entries whose ID
// no longer resolves are skipped.
func (s *Store) Entries() []StockEntry {
	out := make([]StockEntry, 0, len(s.stock))
	for id, qty := range s.stock {
		it, ok := s.cat.Lookup(id)
		if !ok || qty <= 0 {
			continue
		}
		out = append(out, StockEntry{Item: it, Qty: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Item.Cost != out[j].Item.Cost {
			return out[i].Item.Cost < out[j].Item.Cost
		}
		return out[i].Item.ID < out[j].Item.ID
	})
	return out
}

// Listing renders one "<qty>x <item>" line per in-stock item, cheapest first.
func (s *Store) Listing() string {
	var b strings.Builder
	for i, e := range s.Entries() {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.Itoa(e.Qty))
		b.WriteString("x ")
		b.WriteString(e.Item.String())
	}
	return b.String()
}

// SetStock overwrites stock directly. Used when restoring state and by tests;
// qty <= 0 or non-stockable items remove the entry.
func (s *Store) SetStock(id string, qty int) {
	it, ok := s.cat.Lookup(id)
	if !ok || !it.Stockable() || qty <= 0 {
		delete(s.stock, id)
		return
	}
	s.stock[id] = qty
}
