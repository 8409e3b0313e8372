package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

func sampleLedger() LedgerV1 {
	return LedgerV1{
		"1": {Balance: 1_000_000, Inventory: map[string]int{"a": 3}},
		"2": {Balance: 5, Inventory: map[string]int{}},
	}
}

func TestReadLedgerMissingFileIsEmpty(t *testing.T) {
	doc, err := ReadLedger(filepath.Join(t.TempDir(), "users.json"))
	if err != nil {
		t.Fatalf("ReadLedger: %v", err)
	}
	if doc == nil || len(doc) != 0 {
		t.Fatalf("doc=%v", doc)
	}
}

func TestWriteLedgerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "users.json")
	want := sampleLedger()
	if _, err := WriteLedger(path, want); err != nil {
		t.Fatalf("WriteLedger: %v", err)
	}
	got, err := ReadLedger(path)
	if err != nil {
		t.Fatalf("ReadLedger: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
	ents, _ := os.ReadDir(filepath.Dir(path))
	if len(ents) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(ents))
	}
}

func TestDecodeLedgerNormalizesNilInventory(t *testing.T) {
	doc, err := DecodeLedger([]byte(`{"7": {"balance": 3}}`))
	if err != nil {
		t.Fatalf("DecodeLedger: %v", err)
	}
	if doc["7"].Inventory == nil || doc["7"].Balance != 3 {
		t.Fatalf("doc=%+v", doc)
	}
	if _, err := DecodeLedger([]byte(`{"7": `)); err == nil || !strings.Contains(err.Error(), "users.json") {
		t.Fatalf("err=%v", err)
	}
}

func TestArchiveRoundTripAndPrune(t *testing.T) {
	dir := t.TempDir()
	base := time.Unix(1_700_000_000, 0)
	for i := 0; i < 4; i++ {
		if _, err := WriteArchive(dir, sampleLedger(), base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("WriteArchive: %v", err)
		}
	}
	paths, err := ListArchives(dir)
	if err != nil || len(paths) != 4 {
		t.Fatalf("paths=%v err=%v", paths, err)
	}
	got, err := ReadArchive(paths[3])
	if err != nil {
		t.Fatalf("ReadArchive: %v", err)
	}
	if !reflect.DeepEqual(got, sampleLedger()) {
		t.Fatalf("archive=%v", got)
	}
	removed, err := PruneArchives(dir, 2)
	if err != nil || removed != 2 {
		t.Fatalf("removed=%d err=%v", removed, err)
	}
	left, _ := ListArchives(dir)
	if len(left) != 2 || left[1] != paths[3] {
		t.Fatalf("left=%v", left)
	}
}

func TestWriterSaveBlockingAndHook(t *testing.T) {
	dir := t.TempDir()
	var mu sync.Mutex
	var infos []SaveInfo
	w := NewWriter(filepath.Join(dir, "users.json"), WriterOptions{
		ArchiveDir: filepath.Join(dir, "snapshots"),
		OnSaved: func(si SaveInfo) {
			mu.Lock()
			infos = append(infos, si)
			mu.Unlock()
		},
	})
	if err := w.SaveBlocking(sampleLedger()); err != nil {
		t.Fatalf("SaveBlocking: %v", err)
	}
	got, err := ReadLedger(w.Path())
	if err != nil || len(got) != 2 {
		t.Fatalf("got=%v err=%v", got, err)
	}
	mu.Lock()
	if len(infos) != 1 || infos[0].Users != 2 || infos[0].Archive == "" {
		t.Fatalf("infos=%+v", infos)
	}
	mu.Unlock()
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.SaveBlocking(sampleLedger()); err != ErrClosed {
		t.Fatalf("after close: %v", err)
	}
}

func TestWriterAsyncSaveFlushedOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	w := NewWriter(path, WriterOptions{})
	for i := 0; i < 50; i++ {
		w.Save(LedgerV1{"u": {Balance: int64(i), Inventory: map[string]int{}}})
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	got, err := ReadLedger(path)
	if err != nil {
		t.Fatalf("ReadLedger: %v", err)
	}
	if got["u"].Balance != 49 {
		t.Fatalf("latest save lost: balance=%d", got["u"].Balance)
	}
	st := w.Stats()
	if st.Saves == 0 || st.Saves+st.Dropped != 50 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestWriterWaitAndStaleSkip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	w := NewWriter(path, WriterOptions{})
	defer w.Close()

	gen := w.Save(LedgerV1{"u": {Balance: 1, Inventory: map[string]int{}}})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := w.Wait(ctx, gen); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	got, _ := ReadLedger(path)
	if got["u"].Balance != 1 {
		t.Fatalf("balance=%d want=1", got["u"].Balance)
	}

	// A generation older than what is on disk must not overwrite it.
	if err := w.SaveBlocking(LedgerV1{"u": {Balance: 3, Inventory: map[string]int{}}}); err != nil {
		t.Fatalf("SaveBlocking: %v", err)
	}
	if err := w.write(gen, LedgerV1{"u": {Balance: 2, Inventory: map[string]int{}}}); err != nil {
		t.Fatalf("stale write: %v", err)
	}
	got, _ = ReadLedger(path)
	if got["u"].Balance != 3 {
		t.Fatalf("balance=%d want=3", got["u"].Balance)
	}
	if err := w.Wait(ctx, gen); err != nil {
		t.Fatalf("Wait on superseded gen: %v", err)
	}
}
