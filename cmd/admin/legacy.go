package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"procoin.app/internal/persistence/snapshot"
	"procoin.app/internal/sim/catalogs"
)

func importCmd(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	itemsPath := fs.String("items", "./configs/items.json", "items.json path")
	inPath := fs.String("in", "./users.json", "legacy users.json")
	outPath := fs.String("out", "", "ledger output path (default: rewrite -in)")
	_ = fs.Parse(args)

	cat, err := catalogs.Load(*itemsPath)
	if err != nil {
		fail(1, "load catalog:", err)
	}
	fmt.Fprintln(os.Stderr, "Loading users.json...")
	raw, err := os.ReadFile(*inPath)
	if err != nil {
		fail(1, "read:", err)
	}
	fmt.Fprintln(os.Stderr, "Converting...")
	doc, err := convertLegacy(raw, cat, os.Stderr)
	if err != nil {
		fail(1, "convert:", err)
	}
	dst := *outPath
	if dst == "" {
		dst = *inPath
	}
	n, err := snapshot.WriteLedger(dst, doc)
	if err != nil {
		fail(1, "write:", err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %d users (%d bytes) to %s\n", len(doc), n, dst)
}

type legacyUpgrade struct {
	Name     string  `yaml:"name"`
	Quantity float64 `yaml:"quantity"`
}

type legacyUser struct {
	Balance   float64                  `yaml:"balance"`
	Inventory map[string]int           `yaml:"inventory"`
	Upgrades  map[string]legacyUpgrade `yaml:"upgrades"`
}

// legacyNameVariants yields the spellings tried for an exported upgrade name.
func legacyNameVariants(name string) []string {
	name = strings.ReplaceAll(name, "/'", "'")
	return []string{
		name,
		strings.ReplaceAll(name, "'", " "),
		strings.ReplaceAll(name, "'", "'s"),
	}
}

// convertLegacy turns a CoinGames export into a ledger document. The export
// is parsed as YAML so its sloppier JSON still loads. Upgrades are matched to
// items by name and merged into any inventory already present; unknown names
// are reported once each.
func convertLegacy(raw []byte, cat *catalogs.Catalog, warn io.Writer) (snapshot.LedgerV1, error) {
	var users map[string]legacyUser
	if err := yaml.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("users.json: %w", err)
	}

	resolved := map[string]*catalogs.Item{}
	unknown := map[string]bool{}
	lookup := func(name string) *catalogs.Item {
		if it, ok := resolved[name]; ok {
			return it
		}
		for _, v := range legacyNameVariants(name) {
			if it, ok := cat.LookupByName(v); ok {
				resolved[name] = it
				return it
			}
		}
		if !unknown[name] {
			unknown[name] = true
			fmt.Fprintf(warn, "WARNING: Unknown item %q\n", name)
		}
		return nil
	}

	doc := make(snapshot.LedgerV1, len(users))
	ids := make([]string, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		u := users[id]
		inv := map[string]int{}
		for itemID, qty := range u.Inventory {
			if _, ok := cat.Lookup(itemID); ok && qty > 0 {
				inv[itemID] += qty
			}
		}

		keys := make([]string, 0, len(u.Upgrades))
		for k := range u.Upgrades {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			up := u.Upgrades[k]
			it := lookup(up.Name)
			if it == nil {
				continue
			}
			if qty := int(up.Quantity); qty > 0 {
				inv[it.ID] += qty
			}
		}

		bal := math.Floor(u.Balance)
		switch {
		case bal < 0:
			bal = 0
		case bal > math.MaxInt64:
			bal = math.MaxInt64
		}
		doc[id] = snapshot.AccountV1{Balance: int64(bal), Inventory: inv}
	}
	return doc, nil
}
