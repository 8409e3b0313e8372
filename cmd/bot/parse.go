package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"procoin.app/internal/protocol"
)

var errEmpty = errors.New("empty line")

// parseLine turns a typed command into a CMD message:
//
//	buy <item...> [qty]     sell <item...> [qty]
//	give <user> <item...> [qty]
//	pay <user> <amount>
//	merge <item> + <item> [+ ...] [xN]
//	removecurse | store | merges | inv | bal
func parseLine(line string) (protocol.CmdMsg, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return protocol.CmdMsg{}, errEmpty
	}
	cmd := protocol.CmdMsg{Type: protocol.TypeCmd, ProtocolVersion: protocol.Version}
	verb, args := strings.ToLower(fields[0]), fields[1:]

	switch verb {
	case "buy", "sell":
		cmd.Cmd = strings.ToUpper(verb)
		item, qty, err := itemAndQty(args)
		if err != nil {
			return cmd, err
		}
		cmd.Item, cmd.Qty = item, qty
	case "give":
		if len(args) < 2 {
			return cmd, fmt.Errorf("usage: give <user> <item> [qty]")
		}
		cmd.Cmd = protocol.CmdGive
		cmd.Target = args[0]
		item, qty, err := itemAndQty(args[1:])
		if err != nil {
			return cmd, err
		}
		cmd.Item, cmd.Qty = item, qty
	case "pay":
		if len(args) != 2 {
			return cmd, fmt.Errorf("usage: pay <user> <amount>")
		}
		n, err := strconv.ParseInt(strings.ReplaceAll(args[1], ",", ""), 10, 64)
		if err != nil {
			return cmd, fmt.Errorf("bad amount %q", args[1])
		}
		cmd.Cmd, cmd.Target, cmd.Amount = protocol.CmdPay, args[0], n
	case "merge":
		cmd.Cmd = protocol.CmdMerge
		rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
		if i := strings.LastIndex(rest, " x"); i >= 0 {
			if n, err := strconv.ParseInt(strings.TrimSpace(rest[i+2:]), 10, 64); err == nil {
				cmd.Qty = &n
				rest = rest[:i]
			}
		}
		for _, part := range strings.Split(rest, "+") {
			if part = strings.TrimSpace(part); part != "" {
				cmd.Items = append(cmd.Items, part)
			}
		}
		if len(cmd.Items) == 0 {
			return cmd, fmt.Errorf("usage: merge <item> + <item> [xN]")
		}
	case "removecurse", "remove_curse":
		cmd.Cmd = protocol.CmdRemoveCurse
	case "store", "shop":
		cmd.Cmd = protocol.CmdStore
	case "merges", "recipes":
		cmd.Cmd = protocol.CmdMerges
	case "inv", "inventory":
		cmd.Cmd = protocol.CmdInventory
	case "bal", "balance":
		cmd.Cmd = protocol.CmdBalance
	default:
		return cmd, fmt.Errorf("unknown command %q", verb)
	}
	return cmd, nil
}

// itemAndQty splits "<item words...> [qty]"; a trailing integer is the quantity.
func itemAndQty(args []string) (string, *int64, error) {
	if len(args) == 0 {
		return "", nil, fmt.Errorf("missing item")
	}
	if len(args) > 1 {
		if n, err := strconv.ParseInt(args[len(args)-1], 10, 64); err == nil {
			return strings.Join(args[:len(args)-1], " "), &n, nil
		}
	}
	return strings.Join(args, " "), nil, nil
}
