package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"procoin.app/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	itemID := fs.String("item", "", "item id (holders)")
	_ = fs.Parse(args)

	q := "saves"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "procoin.sqlite")
	}
	r, err := indexdb.OpenReader(path)
	if err != nil {
		fail(1, "open:", err)
	}
	defer r.Close()

	ctx := context.Background()
	switch q {
	case "top":
		rows, err := r.TopBalances(ctx, *limit)
		if err != nil {
			fail(1, "query:", err)
		}
		for _, row := range rows {
			printJSON(row)
		}

	case "saves":
		rows, err := r.Saves(ctx, *limit)
		if err != nil {
			fail(1, "query:", err)
		}
		for _, row := range rows {
			printJSON(row)
		}

	case "items":
		rows, err := r.Items(ctx)
		if err != nil {
			fail(1, "query:", err)
		}
		for _, row := range rows {
			printJSON(row)
		}

	case "holders":
		if strings.TrimSpace(*itemID) == "" {
			fail(2, "missing -item")
		}
		rows, err := r.Holders(ctx, strings.TrimSpace(*itemID), *limit)
		if err != nil {
			fail(1, "query:", err)
		}
		for _, row := range rows {
			printJSON(row)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fail(2, "usage: admin db [-data ./data|-db PATH] [-limit N] [-item ID] top|saves|items|holders")
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
