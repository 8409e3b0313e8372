package world

import (
	"context"
	"errors"
	"fmt"
	"math"

	"procoin.app/internal/protocol"
	"procoin.app/internal/sim/catalogs"
	"procoin.app/internal/sim/economy"
)

func itemRef(it *catalogs.Item) *protocol.ItemRef {
	if it == nil {
		return nil
	}
	return &protocol.ItemRef{ID: it.ID, Name: it.Name, Display: it.PrefixedName()}
}

func qtyArg(cmd protocol.CmdMsg) (int, error) {
	q := cmd.QtyOr(1)
	if q > math.MaxInt32 || q < math.MinInt32 {
		return 0, &economy.Error{Code: economy.CodeInvalidQuantity, Msg: "That's way too many!", Have: -1}
	}
	return int(q), nil
}

// dispatch runs one command on the loop. Passive income is credited before
// the command itself so the result reflects it.
func (w *World) dispatch(userID string, cmd protocol.CmdMsg) protocol.ResultMsg {
	res := protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		ID:              cmd.ID,
		Cmd:             cmd.Cmd,
	}
	w.stats.commands++
	if userID == "" {
		return w.fail(res, &economy.Error{Code: protocol.ErrBadRequest, Msg: "missing user", Have: -1})
	}
	w.AccrueIncome(userID)

	err := w.apply(userID, cmd, &res)
	res.Balance = w.ledger.GetOrCreate(userID).Balance
	if err != nil {
		return w.fail(res, err)
	}
	res.OK = true
	return res
}

func (w *World) apply(userID string, cmd protocol.CmdMsg, res *protocol.ResultMsg) error {
	switch cmd.Cmd {
	case protocol.CmdBuy:
		qty, err := qtyArg(cmd)
		if err != nil {
			return err
		}
		paid, it, err := w.Buy(userID, cmd.Item, qty)
		res.Item = itemRef(it)
		if err != nil {
			return err
		}
		res.Amount = paid
		res.Message = fmt.Sprintf("You bought %d %s for %s %s!", qty, it.PrefixedName(), catalogs.CurrencySymbol, catalogs.FormatCurrency(paid))

	case protocol.CmdSell:
		qty, err := qtyArg(cmd)
		if err != nil {
			return err
		}
		got, it, err := w.Sell(userID, cmd.Item, qty)
		res.Item = itemRef(it)
		if err != nil {
			return err
		}
		res.Amount = got
		res.Message = fmt.Sprintf("You sold %d %s for %s %s!", qty, it.PrefixedName(), catalogs.CurrencySymbol, catalogs.FormatCurrency(got))

	case protocol.CmdGive:
		qty, err := qtyArg(cmd)
		if err != nil {
			return err
		}
		it, err := w.Give(userID, cmd.Target, cmd.Item, qty)
		res.Item = itemRef(it)
		if err != nil {
			return err
		}
		res.Amount = int64(qty)
		res.Message = fmt.Sprintf("You gave %d %s to %s.", qty, it.PrefixedName(), cmd.Target)

	case protocol.CmdPay:
		if err := w.Pay(userID, cmd.Target, cmd.Amount); err != nil {
			return err
		}
		res.Amount = cmd.Amount
		res.Message = fmt.Sprintf("You paid %s %s %s.", cmd.Target, catalogs.CurrencySymbol, catalogs.FormatCurrency(cmd.Amount))

	case protocol.CmdMerge:
		qty, err := qtyArg(cmd)
		if err != nil {
			return err
		}
		names, it, err := w.Merge(userID, cmd.Items, qty)
		res.Item = itemRef(it)
		if err != nil {
			return err
		}
		res.Amount = int64(qty)
		res.Message = fmt.Sprintf("You merged %s into %d %s!", names, qty, it.PrefixedName())

	case protocol.CmdRemoveCurse:
		cleansed, destroyed, err := w.RemoveCurse(userID)
		res.Item = itemRef(cleansed)
		res.Removed = itemRef(destroyed)
		if err != nil {
			return err
		}
		res.Message = fmt.Sprintf("The curse is lifted from your %s.", cleansed.PrefixedName())
		if destroyed != nil {
			res.Message += fmt.Sprintf(" Your %s crumbled to dust.", destroyed.PrefixedName())
		}

	case protocol.CmdStore:
		res.Text = w.ShowStore()
	case protocol.CmdMerges:
		res.Text = w.ListMerges()
	case protocol.CmdInventory:
		res.Pages = w.Inventory(userID)
	case protocol.CmdBalance:
		u := w.ledger.GetOrCreate(userID)
		res.Amount = u.Boost()
		res.Message = fmt.Sprintf("Balance: %s %s, boost %d", catalogs.CurrencySymbol, catalogs.FormatCurrency(u.Balance), u.Boost())

	default:
		return &economy.Error{Code: protocol.ErrBadRequest, Msg: "unknown command: " + cmd.Cmd, Have: -1}
	}
	return nil
}

func (w *World) fail(res protocol.ResultMsg, err error) protocol.ResultMsg {
	res.OK = false
	res.Code = economy.CodeOf(err)
	res.Message = err.Error()
	var e *economy.Error
	if errors.As(err, &e) && e.Have >= 0 {
		have := e.Have
		res.Have = &have
	}
	if res.Code == economy.CodeInternal {
		w.log.Printf("cmd %s: %v", res.Cmd, err)
	}
	w.stats.failures[res.Code]++
	return res
}

// Hello creates userID's account if needed and returns the WELCOME body.
// SessionID is left for the transport to fill.
func (w *World) Hello(ctx context.Context, userID string) (protocol.WelcomeMsg, error) {
	var msg protocol.WelcomeMsg
	err := w.Do(ctx, func(w *World) error {
		w.AccrueIncome(userID)
		msg = protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			UserID:          userID,
			Balance:         w.ledger.GetOrCreate(userID).Balance,
			Catalog: protocol.CatalogInfo{
				Digest:  w.cat.Digest,
				Items:   w.cat.Len(),
				Recipes: w.merges.Len(),
			},
		}
		return nil
	})
	return msg, err
}
