package economy

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func newTestStore(t *testing.T) (*Store, Rand) {
	t.Helper()
	r := seeded(7)
	return NewStore(testCatalog(t), StoreConfig{OrdinarySlots: 6, BigSlots: 3, BigItemCost: 100_000_000}, r), r
}

func TestBuyScenario(t *testing.T) {
	c := testCatalog(t)
	st := NewStore(c, StoreConfig{OrdinarySlots: 6, BigSlots: 3, BigItemCost: 100_000_000}, seeded(1))
	st.SetStock("a", 5)
	l := NewLedger(100, nil)
	u := l.GetOrCreate("alice")

	paid, err := u.Buy(item(t, c, "a"), 3, st)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if paid != 30 || u.Balance != 70 {
		t.Fatalf("paid=%d balance=%d want 30/70", paid, u.Balance)
	}
	if u.Qty("a") != 3 || len(u.Inventory()) != 1 {
		t.Fatalf("inventory=%v", u.Inventory())
	}
	if st.Stock("a") != 2 {
		t.Fatalf("stock=%d want 2", st.Stock("a"))
	}
	expectBoost(t, u, c)
}

func TestBuyStockFailureBeatsAffordability(t *testing.T) {
	c := testCatalog(t)
	st, _ := newTestStore(t)
	u := NewLedger(5, nil).GetOrCreate("bob")
	a := item(t, c, "a")

	if _, err := u.Buy(a, 1, st); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("no stock and no money: got %v", err)
	}
	st.SetStock("a", 5)
	if _, err := u.Buy(a, 1, st); !errors.Is(err, ErrCannotAfford) {
		t.Fatalf("stock but no money: got %v", err)
	}
	if st.Stock("a") != 5 || u.Balance != 5 || u.Qty("a") != 0 {
		t.Fatalf("failed buy mutated state")
	}
	if _, err := u.Buy(a, math.MaxInt, st); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("overflowing qty: got %v", err)
	}
}

func TestBuySellRoundTripProceedsWithinNoise(t *testing.T) {
	c := testCatalog(t)
	for seed := int64(0); seed < 40; seed++ {
		r := seeded(seed)
		st := NewStore(c, StoreConfig{OrdinarySlots: 6, BigSlots: 3, BigItemCost: 100_000_000}, r)
		st.SetStock("c", 9)
		u := NewLedger(1_000, nil).GetOrCreate("carol")
		it := item(t, c, "c")
		qty := int(seed%4) + 1
		paid, err := u.Buy(it, qty, st)
		if err != nil {
			t.Fatalf("buy: %v", err)
		}
		afterBuy := u.Balance
		got, err := u.Sell(it, qty, st, SaleNoise{Rand: r, Min: 0.85, Max: 1.05})
		if err != nil {
			t.Fatalf("sell: %v", err)
		}
		lo := int64(math.Floor(float64(paid) * 0.85))
		hi := int64(math.Floor(float64(paid) * 1.05))
		if got < lo || got > hi || u.Balance-afterBuy != got {
			t.Fatalf("proceeds=%d want [%d,%d]", got, lo, hi)
		}
		if u.Qty("c") != 0 || st.Stock("c") != 9 {
			t.Fatalf("round trip: qty=%d stock=%d", u.Qty("c"), st.Stock("c"))
		}
		expectBoost(t, u, c)
	}
}

func TestSellFloorsProceeds(t *testing.T) {
	c := testCatalog(t)
	st, _ := newTestStore(t)
	u := NewLedger(0, nil).GetOrCreate("dan")
	u.AddItem(item(t, c, "d"), 1)
	got, err := u.Sell(item(t, c, "d"), 1, st, SaleNoise{Rand: &scripted{floats: []float64{0.999}}, Min: 0.85, Max: 1.05})
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if got != 3 {
		t.Fatalf("proceeds=%d want floor(3*1.0498)=3", got)
	}
}

func TestSellRefusesCursedAndMissing(t *testing.T) {
	c := testCatalog(t)
	st, r := newTestStore(t)
	u := NewLedger(0, nil).GetOrCreate("eve")
	noise := SaleNoise{Rand: r, Min: 0.85, Max: 1.05}
	skull := item(t, c, "skull")
	u.AddItem(skull, 1)
	if _, err := u.Sell(skull, 1, st, noise); !errors.Is(err, ErrCursedItem) {
		t.Fatalf("cursed sell: got %v", err)
	}
	_, err := u.Sell(item(t, c, "a"), 2, st, noise)
	var e *Error
	if !errors.As(err, &e) || e.Code != CodeInsufficientItems || e.Have != 0 {
		t.Fatalf("missing sell: got %v", err)
	}
	if !strings.Contains(e.Msg, "You only have 0 Apples, not 2") {
		t.Fatalf("message=%q", e.Msg)
	}
	if _, err := u.Sell(item(t, c, "a"), 0, st, noise); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("zero sell: got %v", err)
	}
	if u.Qty("skull") != 1 {
		t.Fatalf("failed sell changed inventory")
	}
	expectBoost(t, u, c)
}

func TestTakeItemAllowCursed(t *testing.T) {
	c := testCatalog(t)
	u := NewLedger(0, nil).GetOrCreate("fay")
	skull := item(t, c, "skull")
	u.AddItem(skull, 2)
	if err := u.AssertHas(skull, 1); !errors.Is(err, ErrCursedItem) {
		t.Fatalf("assert cursed: got %v", err)
	}
	if err := u.TakeItem(skull, 2, true); err != nil {
		t.Fatalf("take cursed: %v", err)
	}
	if _, ok := u.Inventory()["skull"]; ok {
		t.Fatalf("zero entry must be deleted")
	}
	if u.Boost() != 1 {
		t.Fatalf("boost=%d want 1", u.Boost())
	}
}

func TestRecalcBoostDropsUnknownItems(t *testing.T) {
	c := testCatalog(t)
	l := NewLedger(0, nil)
	l.Import(map[string]Account{
		"gus": {Balance: 9, Inventory: map[string]int{"b": 2, "ghost": 4, "d": 1}},
	}, c)
	u, ok := l.Find("gus")
	if !ok {
		t.Fatalf("imported user missing")
	}
	if _, ok := u.Inventory()["ghost"]; ok {
		t.Fatalf("unknown item kept")
	}
	if u.Boost() != 1+2*3-1 {
		t.Fatalf("boost=%d want 6", u.Boost())
	}
	expectBoost(t, u, c)
}

func TestPassiveIncome(t *testing.T) {
	c := testCatalog(t)
	u := NewLedger(0, nil).GetOrCreate("hal")
	u.AddItem(item(t, c, "b"), 1) // boost 4
	t0 := time.Unix(10_000, 0)
	period := 20 * time.Second

	if got := u.AccruePassiveIncome(t0, period); got != 4 {
		t.Fatalf("first accrual=%d want 4", got)
	}
	if got := u.AccruePassiveIncome(t0.Add(19*time.Second), period); got != 0 {
		t.Fatalf("early accrual=%d", got)
	}
	if got := u.AccruePassiveIncome(t0.Add(25*time.Second), period); got != 4 {
		t.Fatalf("second accrual=%d", got)
	}
	// anchor moved to t0+20s, not t0+25s
	if got := u.AccruePassiveIncome(t0.Add(40*time.Second), period); got != 4 {
		t.Fatalf("third accrual=%d", got)
	}
	// anchor is t0+40s; idle until t0+100s pays once per call until it
	// reaches t0+100s, then stops.
	idle := t0.Add(100 * time.Second)
	for i := range 3 {
		if got := u.AccruePassiveIncome(idle, period); got != 4 {
			t.Fatalf("idle accrual %d=%d want 4", i, got)
		}
	}
	if got := u.AccruePassiveIncome(idle, period); got != 0 {
		t.Fatalf("caught-up accrual=%d want 0", got)
	}
	if got := u.AccruePassiveIncome(idle.Add(19*time.Second), period); got != 0 {
		t.Fatalf("early accrual after catch-up=%d", got)
	}
	if u.Balance != 24 {
		t.Fatalf("balance=%d want 24", u.Balance)
	}
}

func TestPassiveIncomeNeverNegative(t *testing.T) {
	c := testCatalog(t)
	u := NewLedger(10, nil).GetOrCreate("ivy")
	u.AddItem(item(t, c, "skull"), 1)
	if got := u.AccruePassiveIncome(time.Unix(1, 0), 20*time.Second); got != 0 || u.Balance != 10 {
		t.Fatalf("negative boost credited=%d balance=%d", got, u.Balance)
	}
}

func TestRenderInventoryPages(t *testing.T) {
	c := testCatalog(t)
	u := NewLedger(1_234_567, nil).GetOrCreate("jo")
	u.AddItem(item(t, c, "c"), 2)
	u.AddItem(item(t, c, "a"), 1)
	u.AddItem(item(t, c, "g"), 1)

	pages := u.RenderInventory(c, 2048)
	if len(pages) != 1 {
		t.Fatalf("pages=%d want 1", len(pages))
	}
	want := "Balance: 1,234,567\n\n" +
		"1x Apple: 0\n" +
		"2x Cherry: 1\n" +
		"1x 💎 Gold Bar: 100\n" +
		"\nTotal items: 4\nTotal boost: 103"
	if pages[0] != want {
		t.Fatalf("page:\n%s\nwant:\n%s", pages[0], want)
	}

	small := u.RenderInventory(c, 75)
	if len(small) < 2 {
		t.Fatalf("expected pagination, got %d page(s)", len(small))
	}
	lines := 0
	for _, p := range small {
		if utf8.RuneCountInString(p) > 75 {
			t.Fatalf("page over limit: %d runes", utf8.RuneCountInString(p))
		}
		if !strings.HasPrefix(p, "Balance: 1,234,567\n\n") || !strings.HasSuffix(p, "Total boost: 103") {
			t.Fatalf("page missing header/footer: %q", p)
		}
		lines += strings.Count(p, "x ")
	}
	if lines != 3 {
		t.Fatalf("lines across pages=%d want 3", lines)
	}
}

func TestRenderEmptyInventory(t *testing.T) {
	c := testCatalog(t)
	u := NewLedger(5, nil).GetOrCreate("kim")
	pages := u.RenderInventory(c, 2048)
	if len(pages) != 1 || !strings.HasSuffix(pages[0], "Total items: 0\nTotal boost: 1") {
		t.Fatalf("pages=%q", pages)
	}
}
