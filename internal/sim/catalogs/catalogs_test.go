package catalogs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleDoc = `{
  "apple": {"name": "Apple", "cost": 10, "boost": 0, "default_qty": 5},
  "pie": {"name": "Apple Pie", "cost": 50, "boost": 2, "merges": [["apple", "apple"]]},
  "panic": {"name": "Don't Panic", "cost": 1500000, "boost": -3, "default quantity": 2},
  "skull": {"name": "Skull", "cost": 0, "boost": -10, "cursed": true},
  "gem": {"name": "Gem", "cost": 250000000, "boost": 1000, "default_qty": 1}
}`

func mustParse(t *testing.T, doc string) *Catalog {
	t.Helper()
	c, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return c
}

func TestParseKeepsInsertionOrder(t *testing.T) {
	c := mustParse(t, sampleDoc)
	var ids []string
	for it := range c.Items() {
		ids = append(ids, it.ID)
	}
	want := []string{"apple", "pie", "panic", "skull", "gem"}
	if len(ids) != len(want) {
		t.Fatalf("ids=%v want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids=%v want %v", ids, want)
		}
	}
	if c.Digest == "" {
		t.Fatalf("expected digest")
	}
}

func TestParseFields(t *testing.T) {
	c := mustParse(t, sampleDoc)
	pie, err := c.Get("pie")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if pie.Cost != 50 || pie.Boost != 2 || pie.DefaultQty != 0 || pie.Cursed {
		t.Fatalf("pie=%+v", pie)
	}
	if len(pie.Merges) != 1 || len(pie.Merges[0]) != 2 {
		t.Fatalf("pie merges=%v", pie.Merges)
	}
	dp, _ := c.Lookup("panic")
	if dp.DefaultQty != 2 {
		t.Fatalf("legacy default quantity: got=%d want=2", dp.DefaultQty)
	}
	skull, _ := c.Lookup("skull")
	if !skull.Cursed || skull.Stockable() {
		t.Fatalf("skull=%+v", skull)
	}
}

func TestGetUnknown(t *testing.T) {
	c := mustParse(t, sampleDoc)
	if _, err := c.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLookupByNameIgnoresCaseAndApostrophes(t *testing.T) {
	c := mustParse(t, sampleDoc)
	for _, q := range []string{"Don't Panic", "dont panic", "DONT PANIC", "  don’t panic "} {
		it, ok := c.LookupByName(q)
		if !ok || it.ID != "panic" {
			t.Fatalf("LookupByName(%q)=%v,%v", q, it, ok)
		}
	}
	if _, ok := c.LookupByName("panic"); ok {
		t.Fatalf("bare ID must not resolve as a name")
	}
	if it, ok := c.LookupByName("#panic"); !ok || it.ID != "panic" {
		t.Fatalf("#panic should resolve by id")
	}
	if _, ok := c.LookupByName("#Don't Panic"); ok {
		t.Fatalf("#-escaped query must not fall back to name lookup")
	}
}

func TestLookupByNameFirstWins(t *testing.T) {
	c, err := New([]*Item{
		{ID: "b", Name: "Twin"},
		{ID: "a", Name: "twin"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	it, ok := c.LookupByName("TWIN")
	if !ok || it.ID != "b" {
		t.Fatalf("got %v want b", it)
	}
}

func TestFilterIsLazyAndReiterable(t *testing.T) {
	c := mustParse(t, sampleDoc)
	seq := c.Filter(func(it *Item) bool { return it.Stockable() })
	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	if got := count(); got != 3 {
		t.Fatalf("stockable=%d want 3", got)
	}
	if got := count(); got != 3 {
		t.Fatalf("second pass=%d want 3", got)
	}
	for it := range c.Items() {
		if it.ID == "apple" {
			break
		}
	}
}

func TestUnknownRecipeRefIsIntegrityError(t *testing.T) {
	_, err := Parse([]byte(`{"pie": {"name": "Pie", "cost": 1, "boost": 0, "merges": [["ghost"]]}}`))
	var ie *IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("expected IntegrityError, got %v", err)
	}
	if ie.ItemID != "pie" || ie.Ref != "ghost" {
		t.Fatalf("integrity error=%+v", ie)
	}
}

func TestMalformedEntryNamesItemAndField(t *testing.T) {
	cases := []struct {
		doc   string
		field string
	}{
		{`{"x": {"name": "X", "cost": "ten", "boost": 0}}`, "cost"},
		{`{"x": {"name": "X", "cost": 1}}`, ""},
		{`{"x": {"name": 5, "cost": 1, "boost": 0}}`, "name"},
		{`{"x": {"name": "X", "cost": -1, "boost": 0}}`, "cost"},
		{`{"x": {"name": "X", "cost": 1, "boost": 0, "cursed": "yes"}}`, "cursed"},
	}
	for _, tc := range cases {
		_, err := Parse([]byte(tc.doc))
		var de *DefinitionError
		if !errors.As(err, &de) {
			t.Fatalf("%s: expected DefinitionError, got %v", tc.doc, err)
		}
		if de.ItemID != "x" {
			t.Fatalf("%s: item=%q want x", tc.doc, de.ItemID)
		}
		if tc.field != "" && de.Field != tc.field {
			t.Fatalf("%s: field=%q want %q", tc.doc, de.Field, tc.field)
		}
	}
}

func TestDuplicateKeyKeepsLastValue(t *testing.T) {
	c := mustParse(t, `{"a": {"name": "A", "cost": 1, "boost": 0}, "b": {"name": "B", "cost": 2, "boost": 0}, "a": {"name": "A2", "cost": 3, "boost": 0}}`)
	first := ""
	for it := range c.Items() {
		first = it.ID
		break
	}
	a, _ := c.Lookup("a")
	if first != "a" || a.Name != "A2" || c.Len() != 2 {
		t.Fatalf("first=%q a=%+v len=%d", first, a, c.Len())
	}
}

func TestLoadFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	if err := os.WriteFile(path, []byte(sampleDoc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Len() != 5 {
		t.Fatalf("len=%d", c.Len())
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestItemString(t *testing.T) {
	c := mustParse(t, sampleDoc)
	gem, _ := c.Lookup("gem")
	if got, want := gem.String(), "💎 Gem (250,000,000 💰, provides a boost of 1,000 💰)"; got != want {
		t.Fatalf("got=%q want=%q", got, want)
	}
	apple, _ := c.Lookup("apple")
	if got, want := apple.String(), "Apple (10 💰)"; got != want {
		t.Fatalf("got=%q want=%q", got, want)
	}
	dp, _ := c.Lookup("panic")
	if got, want := dp.PrefixedName(), "$ Don't Panic"; got != want {
		t.Fatalf("got=%q want=%q", got, want)
	}
	if Prefix(10_000_000) != "$$" || Prefix(999_999) != "" {
		t.Fatalf("tier prefixes wrong")
	}
}
