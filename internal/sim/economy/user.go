package economy

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"procoin.app/internal/sim/catalogs"
)

// User is one ledger account. Boost is a cache of
// 1 + sum(item.boost * qty) and is kept in step by every inventory mutation.
type User struct {
	ID      string
	Balance int64

	inventory   map[string]int
	boost       int64
	lastAccrual time.Time
}

func newUser(id string, balance int64) *User {
	return &User{ID: id, Balance: balance, inventory: map[string]int{}, boost: 1}
}

func (u *User) Boost() int64 { return u.boost }

// Qty returns the held quantity of an item ID.
func (u *User) Qty(id string) int { return u.inventory[id] }

// Inventory returns a copy of the item ID to quantity map.
func (u *User) Inventory() map[string]int {
	out := make(map[string]int, len(u.inventory))
	for id, n := range u.inventory {
		out[id] = n
	}
	return out
}

// TotalItems sums every held quantity.
func (u *User) TotalItems() int {
	n := 0
	for _, q := range u.inventory {
		n += q
	}
	return n
}

// AssertHas checks that qty of it could be taken without mutating anything.
func (u *User) AssertHas(it *catalogs.Item, qty int) error {
	return u.check(it, qty, false)
}

func (u *User) check(it *catalogs.Item, qty int, allowCursed bool) error {
	have := u.inventory[it.ID]
	if qty > have {
		return insufficientItems(have, qty, it.Name)
	}
	if it.Cursed && !allowCursed {
		return cursedItem(it.Name)
	}
	return nil
}

// TakeItem removes qty of it. Cursed items are refused unless allowCursed.
func (u *User) TakeItem(it *catalogs.Item, qty int, allowCursed bool) error {
	if qty < 1 {
		return quantityError(int64(qty), "remove")
	}
	if err := u.check(it, qty, allowCursed); err != nil {
		return err
	}
	left := u.inventory[it.ID] - qty
	if left > 0 {
		u.inventory[it.ID] = left
	} else {
		delete(u.inventory, it.ID)
	}
	u.boost -= it.Boost * int64(qty)
	return nil
}

// AddItem credits qty of it. qty must be positive.
func (u *User) AddItem(it *catalogs.Item, qty int) {
	if qty <= 0 {
		panic("economy: AddItem with non-positive quantity " + strconv.Itoa(qty))
	}
	u.inventory[it.ID] += qty
	u.boost += it.Boost * int64(qty)
}

// mulCost returns cost*qty, or ok=false on overflow.
func mulCost(cost int64, qty int) (int64, bool) {
	q := int64(qty)
	if q <= 0 || cost < 0 {
		return 0, false
	}
	if cost != 0 && q > math.MaxInt64/cost {
		return 0, false
	}
	return cost * q, true
}

// Buy purchases qty of it from st and returns the total paid. When the store
// has the stock but the balance falls short the failure is CannotAfford;
// otherwise the store's stock failure wins.
func (u *User) Buy(it *catalogs.Item, qty int, st *Store) (int64, error) {
	if qty < 1 {
		return 0, quantityError(int64(qty), "buy")
	}
	total, ok := mulCost(it.Cost, qty)
	affordable := ok && total <= u.Balance
	if !affordable && st.Stock(it.ID) >= qty {
		return 0, newErr(CodeCannotAfford, "You cannot afford %d %s%s!", qty, it.Name, plural(qty))
	}
	if err := st.Buy(it, qty); err != nil {
		return 0, err
	}
	if !affordable {
		st.SetStock(it.ID, st.Stock(it.ID)+qty)
		return 0, newErr(CodeInternal, "store sold %s without enough stock check", it.ID)
	}
	u.Balance -= total
	u.AddItem(it, qty)
	return total, nil
}

// SaleNoise scales sale proceeds by a factor drawn uniformly from [Min, Max].
type SaleNoise struct {
	Rand Rand
	Min  float64
	Max  float64
}

func (n SaleNoise) proceeds(cost int64, qty int) int64 {
	v := math.Floor(float64(cost) * float64(qty) * uniform(n.Rand, n.Min, n.Max))
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	if v < 0 {
		return 0
	}
	return int64(v)
}

// Sell returns qty of it to st and credits the noisy proceeds.
func (u *User) Sell(it *catalogs.Item, qty int, st *Store, noise SaleNoise) (int64, error) {
	if qty < 1 {
		return 0, quantityError(int64(qty), "sell")
	}
	if err := u.TakeItem(it, qty, false); err != nil {
		return 0, err
	}
	if err := st.Sell(it, qty); err != nil {
		u.AddItem(it, qty)
		return 0, err
	}
	got := noise.proceeds(it.Cost, qty)
	if got > math.MaxInt64-u.Balance {
		got = math.MaxInt64 - u.Balance
	}
	u.Balance += got
	return got, nil
}

// RecalcBoost recomputes the boost cache from scratch. Inventory entries the
// catalog does not know are removed; their IDs are returned.
func (u *User) RecalcBoost(cat *catalogs.Catalog) (dropped []string) {
	boost := int64(1)
	for id, qty := range u.inventory {
		it, ok := cat.Lookup(id)
		if !ok || qty <= 0 {
			delete(u.inventory, id)
			dropped = append(dropped, id)
			continue
		}
		boost += it.Boost * int64(qty)
	}
	sort.Strings(dropped)
	u.boost = boost
	return dropped
}

// AccruePassiveIncome credits max(boost, 0) once per period and returns the
// amount credited. The anchor advances by exactly one period per credit, so
// a caller that was away catches up one payment per call.
func (u *User) AccruePassiveIncome(now time.Time, period time.Duration) int64 {
	if u.lastAccrual.IsZero() {
		u.lastAccrual = now
		return u.credit(max(u.boost, 0))
	}
	if now.Before(u.lastAccrual.Add(period)) {
		return 0
	}
	u.lastAccrual = u.lastAccrual.Add(period)
	return u.credit(max(u.boost, 0))
}

func (u *User) credit(n int64) int64 {
	if n > math.MaxInt64-u.Balance {
		n = math.MaxInt64 - u.Balance
	}
	u.Balance += n
	return n
}

// ResetAccrual clears the passive-income anchor. Loaded users start fresh.
func (u *User) ResetAccrual() { u.lastAccrual = time.Time{} }

// RenderInventory paginates the inventory. Every page starts with the
// balance, ends with the totals footer and is at most pageChars runes.
// Pages split only between lines; a single line longer than a page gets a
// page of its own.
func (u *User) RenderInventory(cat *catalogs.Catalog, pageChars int) []string {
	type row struct {
		key  string
		id   string
		line string
	}
	rows := make([]row, 0, len(u.inventory))
	total := 0
	for id, qty := range u.inventory {
		it, ok := cat.Lookup(id)
		if !ok {
			continue
		}
		total += qty
		rows = append(rows, row{
			key:  strings.ToLower(it.Name),
			id:   id,
			line: strconv.Itoa(qty) + "x " + it.PrefixedName() + ": " + catalogs.FormatCurrency(it.Boost) + "\n",
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].key != rows[j].key {
			return rows[i].key < rows[j].key
		}
		return rows[i].id < rows[j].id
	})

	header := "Balance: " + catalogs.FormatCurrency(u.Balance) + "\n\n"
	footer := "\nTotal items: " + catalogs.FormatCurrency(int64(total)) +
		"\nTotal boost: " + catalogs.FormatCurrency(u.boost)
	budget := pageChars - utf8.RuneCountInString(header) - utf8.RuneCountInString(footer)

	var pages []string
	var body strings.Builder
	used, lines := 0, 0
	flush := func() {
		pages = append(pages, header+body.String()+footer)
		body.Reset()
		used, lines = 0, 0
	}
	for _, r := range rows {
		n := utf8.RuneCountInString(r.line)
		if lines > 0 && used+n > budget {
			flush()
		}
		body.WriteString(r.line)
		used += n
		lines++
	}
	flush()
	return pages
}
