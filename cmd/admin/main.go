package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	args := os.Args[2:]
	switch os.Args[1] {
	case "export":
		exportCmd(args)
	case "sort":
		sortCmd(args)
	case "import":
		importCmd(args)
	case "db":
		dbCmd(args)
	case "snapshots":
		snapshotsCmd(args)
	case "state":
		stateCmd(args)
	case "save":
		saveCmd(args)
	case "prize", "curse":
		awardCmd(os.Args[1], args)
	case "cash":
		cashCmd(args)
	case "reload":
		reloadCmd(args)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: admin <command> [flags]

catalog:
  export     write items.json as CSV to stdout
  sort       assign IDs to NEW entries and rewrite items.json in canonical order
  import     convert a legacy CoinGames users.json into a ledger document

offline:
  db         query the sqlite index (top|saves|items|holders)
  snapshots  list or dump compressed ledger archives

live server (loopback):
  state | save | prize | curse | cash | reload`)
}

func fail(code int, args ...any) {
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(code)
}
