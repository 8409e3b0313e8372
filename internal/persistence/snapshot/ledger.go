package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// AccountV1 is one user in the ledger document.
type AccountV1 struct {
	Balance   int64          `json:"balance"`
	Inventory map[string]int `json:"inventory"`
}

// LedgerV1 is the on-disk ledger: user ID to account.
type LedgerV1 map[string]AccountV1

// Users returns the number of accounts.
func (l LedgerV1) Users() int { return len(l) }

// ReadLedger loads a ledger document. A missing file is an empty ledger.
func ReadLedger(path string) (LedgerV1, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return LedgerV1{}, nil
	}
	if err != nil {
		return nil, err
	}
	return DecodeLedger(raw)
}

// DecodeLedger parses a ledger document, normalizing nil inventories.
func DecodeLedger(raw []byte) (LedgerV1, error) {
	var doc LedgerV1
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("users.json: %w", err)
	}
	if doc == nil {
		doc = LedgerV1{}
	}
	for id, a := range doc {
		if a.Inventory == nil {
			a.Inventory = map[string]int{}
			doc[id] = a
		}
	}
	return doc, nil
}

// WriteLedger replaces path atomically: the document goes to a temp file in
// the same directory which is then renamed over the target.
func WriteLedger(path string, doc LedgerV1) (int, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return 0, err
	}
	tmp := f.Name()
	if _, err := f.Write(raw); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return 0, err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return 0, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	return len(raw), nil
}
