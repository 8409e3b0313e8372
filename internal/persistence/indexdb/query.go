package indexdb

import (
	"context"
	"os"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

type ItemRow struct {
	ID         string `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	Cost       int64  `db:"cost" json:"cost"`
	Boost      int64  `db:"boost" json:"boost"`
	DefaultQty int    `db:"default_qty" json:"default_qty"`
	Cursed     bool   `db:"cursed" json:"cursed"`
	Recipes    int    `db:"recipes" json:"recipes"`
}

type BalanceRow struct {
	UserID  string `db:"user_id" json:"user_id"`
	Balance int64  `db:"balance" json:"balance"`
	Items   int    `db:"items" json:"items"`
}

type SaveRow struct {
	ID           int64  `db:"id" json:"id"`
	SavedAt      string `db:"saved_at" json:"saved_at"`
	Path         string `db:"path" json:"path"`
	Archive      string `db:"archive" json:"archive"`
	Users        int    `db:"users" json:"users"`
	Bytes        int    `db:"bytes" json:"bytes"`
	TotalBalance int64  `db:"total_balance" json:"total_balance"`
}

type HolderRow struct {
	UserID string `db:"user_id" json:"user_id"`
	Qty    int    `db:"qty" json:"qty"`
}

// Reader queries an index file, for cmd/admin.
type Reader struct {
	db *sqlx.DB
}

func OpenReader(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

func (r *Reader) TopBalances(ctx context.Context, limit int) ([]BalanceRow, error) {
	var out []BalanceRow
	err := r.db.SelectContext(ctx, &out,
		`SELECT user_id, balance, items FROM balances ORDER BY balance DESC, user_id ASC LIMIT ?`, limit)
	return out, err
}

func (r *Reader) Saves(ctx context.Context, limit int) ([]SaveRow, error) {
	var out []SaveRow
	err := r.db.SelectContext(ctx, &out,
		`SELECT id, saved_at, path, archive, users, bytes, total_balance FROM saves ORDER BY id DESC LIMIT ?`, limit)
	return out, err
}

func (r *Reader) Items(ctx context.Context) ([]ItemRow, error) {
	var out []ItemRow
	err := r.db.SelectContext(ctx, &out,
		`SELECT id, name, cost, boost, default_qty, cursed, recipes FROM items ORDER BY cost ASC, id ASC`)
	return out, err
}

func (r *Reader) Holders(ctx context.Context, itemID string, limit int) ([]HolderRow, error) {
	var out []HolderRow
	err := r.db.SelectContext(ctx, &out,
		`SELECT user_id, qty FROM holdings WHERE item_id = ? ORDER BY qty DESC, user_id ASC LIMIT ?`, itemID, limit)
	return out, err
}
