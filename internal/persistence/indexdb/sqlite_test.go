package indexdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"procoin.app/internal/persistence/snapshot"
	"procoin.app/internal/sim/catalogs"
	"procoin.app/internal/sim/tuning"
)

const testItems = `{
  "a": {"name": "Apple", "cost": 10, "boost": 0, "default_qty": 5},
  "b": {"name": "Bread", "cost": 40, "boost": 3, "merges": [["a", "a"]]},
  "s": {"name": "Skull", "cost": 0, "boost": -5, "cursed": true}
}`

func waitIndexed(t *testing.T, idx *SQLiteIndex, n uint64) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if idx.Stats().Indexed >= n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("index did not catch up: %+v", idx.Stats())
}

func TestSQLiteIndex_CatalogAndSaves(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	cat, err := catalogs.Parse([]byte(testItems))
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	ctx := context.Background()
	if err := idx.UpsertCatalog(ctx, []byte(testItems), cat, tuning.Defaults()); err != nil {
		t.Fatalf("UpsertCatalog: %v", err)
	}

	idx.RecordSave(snapshot.SaveInfo{
		Path: "users.json", At: time.Unix(100, 0), Bytes: 10,
		Doc: snapshot.LedgerV1{
			"u1": {Balance: 70, Inventory: map[string]int{"a": 3}},
			"u2": {Balance: 500, Inventory: map[string]int{"a": 1, "b": 2}},
		},
	})
	idx.RecordSave(snapshot.SaveInfo{
		Path: "users.json", At: time.Unix(200, 0), Bytes: 12,
		Doc: snapshot.LedgerV1{
			"u1": {Balance: 900, Inventory: map[string]int{"b": 1}},
			"u2": {Balance: 500, Inventory: map[string]int{}},
			"u3": {Balance: 1, Inventory: map[string]int{"a": 7}},
		},
	})
	waitIndexed(t, idx, 2)
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := OpenReader(dbPath)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	items, err := r.Items(ctx)
	if err != nil || len(items) != 3 {
		t.Fatalf("items=%v err=%v", items, err)
	}
	if items[0].ID != "s" || !items[0].Cursed || items[2].Recipes != 1 {
		t.Fatalf("items=%+v", items)
	}

	top, err := r.TopBalances(ctx, 2)
	if err != nil {
		t.Fatalf("TopBalances: %v", err)
	}
	if len(top) != 2 || top[0].UserID != "u1" || top[0].Balance != 900 || top[1].UserID != "u2" {
		t.Fatalf("top=%+v", top)
	}

	saves, err := r.Saves(ctx, 10)
	if err != nil || len(saves) != 2 {
		t.Fatalf("saves=%v err=%v", saves, err)
	}
	if saves[0].Users != 3 || saves[0].TotalBalance != 1401 {
		t.Fatalf("latest save=%+v", saves[0])
	}

	holders, err := r.Holders(ctx, "a", 10)
	if err != nil {
		t.Fatalf("Holders: %v", err)
	}
	if len(holders) != 1 || holders[0].UserID != "u3" || holders[0].Qty != 7 {
		t.Fatalf("holders=%+v", holders)
	}
}

func TestSQLiteIndex_DropsOnBackpressure(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan saveRow, 1)}
	s.RecordSave(snapshot.SaveInfo{})
	s.RecordSave(snapshot.SaveInfo{})
	st := s.Stats()
	if st.Dropped != 1 {
		t.Fatalf("Dropped=%d want=1", st.Dropped)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}
