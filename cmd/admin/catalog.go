package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"slices"
	"strconv"
	"strings"

	"procoin.app/internal/sim/catalogs"
)

func exportCmd(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	itemsPath := fs.String("items", "./configs/items.json", "items.json path")
	_ = fs.Parse(args)

	cat, err := catalogs.Load(*itemsPath)
	if err != nil {
		fail(1, "load:", err)
	}
	if err := writeCSV(os.Stdout, cat); err != nil {
		fail(1, "write:", err)
	}
}

// writeCSV dumps the catalog in definition order.
func writeCSV(w io.Writer, cat *catalogs.Catalog) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "name", "cost", "boost", "default_qty", "cursed"}); err != nil {
		return err
	}
	for it := range cat.Items() {
		rec := []string{
			it.ID,
			it.Name,
			strconv.FormatInt(it.Cost, 10),
			strconv.FormatInt(it.Boost, 10),
			strconv.Itoa(it.DefaultQty),
			strconv.FormatBool(it.Cursed),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func sortCmd(args []string) {
	fs := flag.NewFlagSet("sort", flag.ExitOnError)
	itemsPath := fs.String("items", "./configs/items.json", "items.json path")
	dryRun := fs.Bool("n", false, "print the result instead of rewriting the file")
	_ = fs.Parse(args)

	raw, err := os.ReadFile(*itemsPath)
	if err != nil {
		fail(1, "read:", err)
	}
	out, assigned, err := canonicalize(raw, rand.New(rand.NewSource(rand.Int63())))
	if err != nil {
		fail(1, "sort:", err)
	}
	for _, a := range assigned {
		fmt.Fprintf(os.Stderr, "Assigned item %q an ID of %q\n", a.Name, a.ID)
	}
	if *dryRun {
		_, _ = os.Stdout.Write(out)
		return
	}
	if err := os.WriteFile(*itemsPath, out, 0o644); err != nil {
		fail(1, "write:", err)
	}
}

type assignedID struct {
	Old  string
	ID   string
	Name string
}

// isPlaceholderID marks entries that still need a real ID.
func isPlaceholderID(id string) bool {
	return id == "" || id == "NEW" || strings.HasPrefix(id, "NEW:")
}

// canonicalize gives placeholder entries fresh numeric IDs (rewriting recipe
// references to them), then re-serializes the catalog sorted by lowercase
// name with every recipe sorted. The output parses to the same catalog.
func canonicalize(raw []byte, rng *rand.Rand) ([]byte, []assignedID, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("items.json: %w", err)
	}

	var placeholders []string
	for id := range doc {
		if isPlaceholderID(id) {
			placeholders = append(placeholders, id)
		}
	}
	slices.Sort(placeholders)

	digits := max(len(strconv.Itoa(len(doc))), 5) + 1
	limit := 1
	for range digits {
		limit *= 10
	}
	renames := map[string]string{}
	var assigned []assignedID
	for _, old := range placeholders {
		var id string
		for id == "" || doc[id] != nil || slices.Contains(placeholders, id) {
			id = fmt.Sprintf("%0*d", digits, rng.Intn(limit))
		}
		doc[id] = doc[old]
		delete(doc, old)
		renames[old] = id
		var named struct {
			Name string `json:"name"`
		}
		_ = json.Unmarshal(doc[id], &named)
		assigned = append(assigned, assignedID{Old: old, ID: id, Name: named.Name})
	}
	if len(renames) > 0 {
		for id, entry := range doc {
			fixed, err := renameMergeRefs(entry, renames)
			if err != nil {
				return nil, nil, fmt.Errorf("items.json: %q: %w", id, err)
			}
			doc[id] = fixed
		}
	}

	renamed, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, err
	}
	cat, err := catalogs.Parse(renamed)
	if err != nil {
		return nil, nil, err
	}
	out, err := encodeSorted(cat)
	if err != nil {
		return nil, nil, err
	}
	return out, assigned, nil
}

func renameMergeRefs(entry json.RawMessage, renames map[string]string) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(entry, &fields); err != nil {
		return nil, err
	}
	rawMerges, ok := fields["merges"]
	if !ok {
		return entry, nil
	}
	var merges [][]string
	if err := json.Unmarshal(rawMerges, &merges); err != nil {
		return nil, err
	}
	for _, recipe := range merges {
		for i, ref := range recipe {
			if id, ok := renames[ref]; ok {
				recipe[i] = id
			}
		}
	}
	b, err := json.Marshal(merges)
	if err != nil {
		return nil, err
	}
	fields["merges"] = b
	return json.Marshal(fields)
}

// canonicalItem fixes the field order of a written entry.
type canonicalItem struct {
	Name       string     `json:"name"`
	Cost       int64      `json:"cost"`
	Boost      int64      `json:"boost"`
	DefaultQty int        `json:"default_qty"`
	Merges     [][]string `json:"merges,omitempty"`
	Cursed     bool       `json:"cursed,omitempty"`
}

func encodeSorted(cat *catalogs.Catalog) ([]byte, error) {
	items := slices.Collect(cat.Items())
	slices.SortStableFunc(items, func(a, b *catalogs.Item) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})

	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, it := range items {
		ci := canonicalItem{
			Name:       it.Name,
			Cost:       it.Cost,
			Boost:      it.Boost,
			DefaultQty: it.DefaultQty,
			Cursed:     it.Cursed,
		}
		for _, recipe := range it.Merges {
			r := slices.Clone(recipe)
			slices.SortFunc(r, func(a, b string) int { return strings.Compare(strings.ToLower(a), strings.ToLower(b)) })
			ci.Merges = append(ci.Merges, r)
		}
		slices.SortFunc(ci.Merges, slices.Compare[[]string])

		key, _ := json.Marshal(it.ID)
		body, err := json.MarshalIndent(ci, "    ", "    ")
		if err != nil {
			return nil, err
		}
		buf.WriteString("    ")
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(body)
		if i < len(items)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}
