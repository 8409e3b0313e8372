package economy

import (
	"log"
	"math"
	"sort"

	"procoin.app/internal/sim/catalogs"
)

// Account is the persisted shape of a user: balance and inventory only.
type Account struct {
	Balance   int64
	Inventory map[string]int
}

// Ledger maps user IDs to users. It is not safe for concurrent use; the
// world loop owns it.
type Ledger struct {
	users           map[string]*User
	startingBalance int64
	log             *log.Logger
}

func NewLedger(startingBalance int64, logger *log.Logger) *Ledger {
	if logger == nil {
		logger = log.Default()
	}
	return &Ledger{users: map[string]*User{}, startingBalance: startingBalance, log: logger}
}

// GetOrCreate returns the user, creating it with the starting balance on
// first access.
func (l *Ledger) GetOrCreate(id string) *User {
	if u, ok := l.users[id]; ok {
		return u
	}
	u := newUser(id, l.startingBalance)
	l.users[id] = u
	return u
}

// Find returns the user without creating it.
func (l *Ledger) Find(id string) (*User, bool) {
	u, ok := l.users[id]
	return u, ok
}

func (l *Ledger) Len() int { return len(l.users) }

// IDs returns every user ID, sorted.
func (l *Ledger) IDs() []string {
	ids := make([]string, 0, len(l.users))
	for id := range l.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RecalcBoost recomputes a user's boost and logs any inventory entries that
// had to be dropped.
func (l *Ledger) RecalcBoost(u *User, cat *catalogs.Catalog) {
	for _, id := range u.RecalcBoost(cat) {
		l.log.Printf("WARN: user %s: dropping unknown item %q from inventory", u.ID, id)
	}
}

// RecalcAll recomputes every user's boost against cat.
func (l *Ledger) RecalcAll(cat *catalogs.Catalog) {
	for _, id := range l.IDs() {
		l.RecalcBoost(l.users[id], cat)
	}
}

// AddCash credits an existing user.
func (l *Ledger) AddCash(id string, amount int64) error {
	if amount < 0 {
		return newErr(CodeInvalidQuantity, "You can't add a negative amount!")
	}
	u, ok := l.users[id]
	if !ok {
		return newErr(CodeUserNotFound, "Unknown user!")
	}
	if amount > math.MaxInt64-u.Balance {
		return newErr(CodeInvalidQuantity, "That would overflow the balance!")
	}
	u.Balance += amount
	return nil
}

// RemoveCash debits an existing user; the balance never goes negative.
func (l *Ledger) RemoveCash(id string, amount int64) error {
	if amount < 0 {
		return newErr(CodeInvalidQuantity, "You can't remove a negative amount!")
	}
	u, ok := l.users[id]
	if !ok {
		return newErr(CodeUserNotFound, "Unknown user!")
	}
	if amount > u.Balance {
		return newErr(CodeCannotAfford, "You cannot afford that!")
	}
	u.Balance -= amount
	return nil
}

// Export takes a deep copy of every account.
func (l *Ledger) Export() map[string]Account {
	out := make(map[string]Account, len(l.users))
	for id, u := range l.users {
		out[id] = Account{Balance: u.Balance, Inventory: u.Inventory()}
	}
	return out
}

// Import replaces the ledger contents. Boost is recomputed and the accrual
// anchor reset for every user; unknown items are dropped with a warning.
func (l *Ledger) Import(accounts map[string]Account, cat *catalogs.Catalog) {
	l.users = make(map[string]*User, len(accounts))
	for id, a := range accounts {
		u := newUser(id, a.Balance)
		for itemID, qty := range a.Inventory {
			u.inventory[itemID] = qty
		}
		l.users[id] = u
	}
	l.RecalcAll(cat)
}
