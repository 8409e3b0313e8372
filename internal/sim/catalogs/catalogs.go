package catalogs

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"golang.org/x/text/cases"
)

// ErrNotFound is returned by Get for unknown item IDs.
var ErrNotFound = errors.New("item not found")

// IDPrefix marks a lookup query as a literal item ID ("#00042").
const IDPrefix = "#"

// Item is an immutable item definition. Items are shared by pointer; two
// items are the same item iff their IDs match.
type Item struct {
	ID         string
	Name       string
	Cost       int64
	Boost      int64
	DefaultQty int
	Cursed     bool

	// Merges holds the recipes producing this item, each a multiset of item IDs.
	Merges [][]string
}

// Stockable reports whether the store may ever offer the item.
func (it *Item) Stockable() bool { return it.DefaultQty > 0 }

// Catalog is the registry of item definitions loaded at startup.
// It is read-only after construction and safe for concurrent readers.
type Catalog struct {
	items  []*Item
	byID   map[string]*Item
	byName map[string]*Item

	Digest string
}

// New builds a catalog from items in insertion order. Duplicate IDs and
// recipe references to unknown items are rejected.
func New(items []*Item) (*Catalog, error) {
	c := &Catalog{
		items:  make([]*Item, 0, len(items)),
		byID:   make(map[string]*Item, len(items)),
		byName: make(map[string]*Item, len(items)),
	}
	for _, it := range items {
		if it == nil {
			continue
		}
		if it.ID == "" {
			return nil, &DefinitionError{Field: "id", Reason: "empty id"}
		}
		if _, dup := c.byID[it.ID]; dup {
			return nil, &DefinitionError{ItemID: it.ID, Field: "id", Reason: "duplicate id"}
		}
		c.items = append(c.items, it)
		c.byID[it.ID] = it
		key := NormalizeName(it.Name)
		if _, taken := c.byName[key]; !taken {
			c.byName[key] = it
		}
	}
	for _, it := range c.items {
		for _, recipe := range it.Merges {
			if len(recipe) == 0 {
				return nil, &DefinitionError{ItemID: it.ID, Field: "merges", Reason: "empty recipe"}
			}
			for _, ref := range recipe {
				if _, ok := c.byID[ref]; !ok {
					return nil, &IntegrityError{ItemID: it.ID, Ref: ref}
				}
			}
		}
	}
	return c, nil
}

// Len returns the number of items.
func (c *Catalog) Len() int { return len(c.items) }

// Items returns all items in insertion order.
func (c *Catalog) Items() iter.Seq[*Item] { return c.Filter(nil) }

// Filter lazily yields the items matching keep, in insertion order.
// A nil keep yields every item.
func (c *Catalog) Filter(keep func(*Item) bool) iter.Seq[*Item] {
	return func(yield func(*Item) bool) {
		for _, it := range c.items {
			if keep != nil && !keep(it) {
				continue
			}
			if !yield(it) {
				return
			}
		}
	}
}

// Lookup returns the item with the given ID.
func (c *Catalog) Lookup(id string) (*Item, bool) {
	it, ok := c.byID[id]
	return it, ok
}

// Get returns the item with the given ID or an error wrapping ErrNotFound.
func (c *Catalog) Get(id string) (*Item, error) {
	it, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return it, nil
}

// LookupByName resolves a user-typed item name. Names compare after
// NormalizeName; a query starting with IDPrefix is an exact ID instead.
// The first item in insertion order wins when names collide.
func (c *Catalog) LookupByName(query string) (*Item, bool) {
	q := strings.TrimSpace(query)
	if id, ok := strings.CutPrefix(q, IDPrefix); ok {
		return c.Lookup(strings.TrimSpace(id))
	}
	it, ok := c.byName[NormalizeName(q)]
	return it, ok
}

var apostrophes = strings.NewReplacer("'", "", "’", "", "‘", "")

// NormalizeName trims, drops apostrophes and case-folds an item name.
func NormalizeName(s string) string {
	s = apostrophes.Replace(strings.TrimSpace(s))
	return cases.Fold().String(s)
}
