package economy

import (
	"math/rand"
	"testing"

	"procoin.app/internal/sim/catalogs"
)

const testItems = `{
  "a": {"name": "Apple", "cost": 10, "boost": 0, "default_qty": 5},
  "b": {"name": "Banana Bread", "cost": 40, "boost": 3, "merges": [["a", "a"]]},
  "c": {"name": "Cherry", "cost": 7, "boost": 1, "default_qty": 9},
  "d": {"name": "Durian", "cost": 3, "boost": -1, "default_qty": 2},
  "e": {"name": "Eggplant", "cost": 5, "boost": 2, "default_qty": 0},
  "f": {"name": "Fruit Salad", "cost": 200, "boost": 12, "merges": [["a", "c", "d"]]},
  "g": {"name": "Gold Bar", "cost": 150000000, "boost": 100, "default_qty": 1},
  "h": {"name": "Heavy Crown", "cost": 900000000, "boost": 500, "default_qty": 1},
  "skull": {"name": "Skull", "cost": 0, "boost": -50, "cursed": true},
  "remove_curse": {"name": "Scroll of Remove Curse", "cost": 1000, "boost": 0, "default_qty": 1}
}`

func testCatalog(t *testing.T) *catalogs.Catalog {
	t.Helper()
	c, err := catalogs.Parse([]byte(testItems))
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return c
}

func item(t *testing.T, c *catalogs.Catalog, id string) *catalogs.Item {
	t.Helper()
	it, err := c.Get(id)
	if err != nil {
		t.Fatalf("item %s: %v", id, err)
	}
	return it
}

func seeded(n int64) Rand { return rand.New(rand.NewSource(n)) }

// scripted replays fixed draws and then repeats the last one.
type scripted struct {
	ints   []int
	floats []float64
}

func (s *scripted) Intn(n int) int {
	if len(s.ints) == 0 {
		return 0
	}
	v := s.ints[0]
	if len(s.ints) > 1 {
		s.ints = s.ints[1:]
	}
	return v % n
}

func (s *scripted) Float64() float64 {
	if len(s.floats) == 0 {
		return 0
	}
	v := s.floats[0]
	if len(s.floats) > 1 {
		s.floats = s.floats[1:]
	}
	return v
}

func expectBoost(t *testing.T, u *User, c *catalogs.Catalog) {
	t.Helper()
	want := int64(1)
	for id, qty := range u.Inventory() {
		want += item(t, c, id).Boost * int64(qty)
	}
	if u.Boost() != want {
		t.Fatalf("boost cache drifted: got=%d want=%d", u.Boost(), want)
	}
}
