package indexdb

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"procoin.app/internal/persistence/snapshot"
	"procoin.app/internal/sim/catalogs"
	"procoin.app/internal/sim/tuning"
)

// SQLiteIndex is a secondary, queryable copy of the catalog and of each
// ledger save. The JSON ledger stays the source of truth; saves are indexed
// on a background goroutine and dropped when it falls behind.
type SQLiteIndex struct {
	db *sqlx.DB

	ch   chan saveRow
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	indexed atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

type saveRow struct {
	SavedAt string
	Path    string
	Archive string
	Bytes   int
	Doc     snapshot.LedgerV1
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 64)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{db: db, ch: make(chan saveRow, queue)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sqlx.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			cost INTEGER NOT NULL,
			boost INTEGER NOT NULL,
			default_qty INTEGER NOT NULL,
			cursed INTEGER NOT NULL,
			recipes INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS saves (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			saved_at TEXT NOT NULL,
			path TEXT NOT NULL,
			archive TEXT NOT NULL,
			users INTEGER NOT NULL,
			bytes INTEGER NOT NULL,
			total_balance INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS balances (
			user_id TEXT PRIMARY KEY,
			balance INTEGER NOT NULL,
			items INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_balances_balance ON balances(balance);`,
		`CREATE TABLE IF NOT EXISTS holdings (
			user_id TEXT NOT NULL,
			item_id TEXT NOT NULL,
			qty INTEGER NOT NULL,
			PRIMARY KEY (user_id, item_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_holdings_item ON holdings(item_id, qty);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordSave queues a completed ledger save for indexing. It never blocks.
func (s *SQLiteIndex) RecordSave(info snapshot.SaveInfo) {
	if s == nil || s.closed.Load() {
		return
	}
	r := saveRow{
		SavedAt: info.At.UTC().Format(time.RFC3339Nano),
		Path:    info.Path,
		Archive: info.Archive,
		Bytes:   info.Bytes,
		Doc:     info.Doc,
	}
	select {
	case s.ch <- r:
	default:
		s.dropped.Add(1)
	}
}

// UpsertCatalog stores the raw definitions document, the tuning in effect
// and one row per item.
func (s *SQLiteIndex) UpsertCatalog(ctx context.Context, raw []byte, cat *catalogs.Catalog, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tuneJSON, _ := json.Marshal(tune)
	sum := sha256.Sum256(tuneJSON)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	upsert := `INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`
	if len(raw) > 0 {
		if _, err := tx.Exec(upsert, "items_defs", cat.Digest, string(raw), now); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(upsert, "tuning", hex.EncodeToString(sum[:]), string(tuneJSON), now); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM items`); err != nil {
		return err
	}
	for it := range cat.Items() {
		row := ItemRow{
			ID:         it.ID,
			Name:       it.Name,
			Cost:       it.Cost,
			Boost:      it.Boost,
			DefaultQty: it.DefaultQty,
			Cursed:     it.Cursed,
			Recipes:    len(it.Merges),
		}
		if _, err := tx.NamedExec(`INSERT INTO items(id,name,cost,boost,default_qty,cursed,recipes)
			VALUES(:id,:name,:cost,:boost,:default_qty,:cursed,:recipes)`, row); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	for r := range s.ch {
		if err := s.writeSave(context.Background(), r); err != nil {
			s.failed.Add(1)
			continue
		}
		s.indexed.Add(1)
	}
}

// writeSave appends a saves row and replaces balances and holdings with the
// saved document.
func (s *SQLiteIndex) writeSave(ctx context.Context, r saveRow) error {
	ids := make([]string, 0, len(r.Doc))
	var total int64
	for id, a := range r.Doc {
		ids = append(ids, id)
		total += a.Balance
	}
	sort.Strings(ids)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT INTO saves(saved_at,path,archive,users,bytes,total_balance) VALUES(?,?,?,?,?,?)`,
		r.SavedAt, r.Path, r.Archive, len(r.Doc), r.Bytes, total); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM balances`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM holdings`); err != nil {
		return err
	}
	insBal, err := tx.Preparex(`INSERT INTO balances(user_id,balance,items) VALUES(?,?,?)`)
	if err != nil {
		return err
	}
	defer insBal.Close()
	insHold, err := tx.Preparex(`INSERT INTO holdings(user_id,item_id,qty) VALUES(?,?,?)`)
	if err != nil {
		return err
	}
	defer insHold.Close()

	for _, id := range ids {
		a := r.Doc[id]
		n := 0
		for itemID, qty := range a.Inventory {
			if qty <= 0 {
				continue
			}
			n += qty
			if _, err := insHold.Exec(id, itemID, qty); err != nil {
				return err
			}
		}
		if _, err := insBal.Exec(id, a.Balance, n); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Stats reports indexing counters for /metrics.
type Stats struct {
	Indexed       uint64
	Dropped       uint64
	Failed        uint64
	QueueDepth    int
	QueueCapacity int
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		Indexed:       s.indexed.Load(),
		Dropped:       s.dropped.Load(),
		Failed:        s.failed.Load(),
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
	}
}
