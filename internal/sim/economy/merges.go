package economy

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"procoin.app/internal/sim/catalogs"
)

// Merges resolves unordered ingredient multisets to result items.
type Merges struct {
	cat   *catalogs.Catalog
	table map[string]*catalogs.Item
	keys  map[string][]*catalogs.Item
}

func NewMerges(cat *catalogs.Catalog) *Merges {
	m := &Merges{}
	m.Rebuild(cat)
	return m
}

// recipeKey canonicalizes an ingredient list: IDs sorted, then joined with
// their lengths so IDs containing separators cannot collide.
func recipeKey(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	var b strings.Builder
	for _, id := range sorted {
		b.WriteString(strconv.Itoa(len(id)))
		b.WriteByte(':')
		b.WriteString(id)
	}
	return b.String()
}

// Rebuild resyncs the table with cat. Later items win on duplicate recipes.
func (m *Merges) Rebuild(cat *catalogs.Catalog) {
	m.cat = cat
	m.table = map[string]*catalogs.Item{}
	m.keys = map[string][]*catalogs.Item{}
	for it := range cat.Items() {
		for _, recipe := range it.Merges {
			if len(recipe) == 0 {
				continue
			}
			k := recipeKey(recipe)
			m.table[k] = it
			if _, ok := m.keys[k]; ok {
				continue
			}
			ings := make([]*catalogs.Item, 0, len(recipe))
			for _, id := range recipe {
				if ing, ok := cat.Lookup(id); ok {
					ings = append(ings, ing)
				}
			}
			m.keys[k] = ings
		}
	}
}

// Len returns the number of distinct recipes.
func (m *Merges) Len() int { return len(m.table) }

// Resolve returns the item produced by items, in any order.
func (m *Merges) Resolve(items []*catalogs.Item) (*catalogs.Item, bool) {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	res, ok := m.table[recipeKey(ids)]
	return res, ok
}

// ListRecipes renders "A + B → result" per recipe, ingredient names sorted,
// lines sorted.
func (m *Merges) ListRecipes() string {
	lines := make([]string, 0, len(m.table))
	for k, res := range m.table {
		ings := m.keys[k]
		names := make([]string, len(ings))
		for i, it := range ings {
			names[i] = it.Name
		}
		sort.Strings(names)
		lines = append(lines, strings.Join(names, " + ")+" → "+res.String())
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

// describe renders "'A'", "'A' and 'B'" or "'A', 'B', and 'C'".
func describe(items []*catalogs.Item) string {
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = "'" + it.PrefixedName() + "'"
	}
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	}
	names[len(names)-1] = "and " + names[len(names)-1]
	return strings.Join(names, ", ")
}

// Merge converts amount sets of items into amount of the recipe result. All
// holdings are checked before anything is consumed; a failure while consuming
// refunds what was already taken.
func (m *Merges) Merge(u *User, items []*catalogs.Item, amount int) (string, *catalogs.Item, error) {
	if len(items) == 0 || amount < 1 {
		return "", nil, newErr(CodeInvalidQuantity, "You... uhh... merge nothing to make absolutely nothing!")
	}
	if amount > math.MaxInt32/len(items) {
		return "", nil, newErr(CodeInvalidQuantity, "You can't merge that many!")
	}
	sorted := append([]*catalogs.Item(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	names := describe(sorted)

	result, ok := m.Resolve(sorted)
	if !ok {
		return names, nil, newErr(CodeNoRecipe, "You can't merge %s!", names)
	}

	required := map[string]int{}
	order := make([]*catalogs.Item, 0, len(sorted))
	for _, it := range sorted {
		if _, seen := required[it.ID]; !seen {
			order = append(order, it)
		}
		required[it.ID] += amount
	}
	for _, it := range order {
		if err := u.AssertHas(it, required[it.ID]); err != nil {
			return names, nil, err
		}
	}

	for i, it := range sorted {
		if err := u.TakeItem(it, amount, false); err != nil {
			for _, back := range sorted[:i] {
				u.AddItem(back, amount)
			}
			return names, nil, err
		}
	}
	u.AddItem(result, amount)
	return names, result, nil
}
