package main

import (
	"flag"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"procoin.app/internal/persistence/snapshot"
)

type archiveSummary struct {
	Path         string `json:"path"`
	Users        int    `json:"users"`
	TotalBalance int64  `json:"total_balance"`
	Items        int    `json:"items"`
}

func summarize(path string, doc snapshot.LedgerV1) archiveSummary {
	s := archiveSummary{Path: path, Users: doc.Users()}
	for _, a := range doc {
		s.TotalBalance += a.Balance
		for _, n := range a.Inventory {
			s.Items += n
		}
	}
	return s
}

// snapshotsCmd lists archives (newest last) or dumps one as a ledger document.
func snapshotsCmd(args []string) {
	fs := flag.NewFlagSet("snapshots", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	show := fs.String("show", "", "archive to dump (path, file name, or \"latest\")")
	_ = fs.Parse(args)

	dir := filepath.Join(*dataDir, "snapshots")
	paths, err := snapshot.ListArchives(dir)
	if err != nil {
		fail(1, "list:", err)
	}

	name := strings.TrimSpace(*show)
	if name == "" {
		for _, p := range paths {
			doc, err := snapshot.ReadArchive(p)
			if err != nil {
				fail(1, "read:", p, err)
			}
			printJSON(summarize(p, doc))
		}
		return
	}

	var path string
	switch {
	case name == "latest":
		if len(paths) == 0 {
			fail(1, "no archives in", dir)
		}
		path = paths[len(paths)-1]
	case slices.Contains(paths, name):
		path = name
	default:
		path = filepath.Join(dir, filepath.Base(name))
		if _, err := os.Stat(path); err != nil {
			fail(1, "archive:", err)
		}
	}
	doc, err := snapshot.ReadArchive(path)
	if err != nil {
		fail(1, "read:", err)
	}
	printJSON(doc)
}
