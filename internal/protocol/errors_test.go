package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrBadRequest,
		ErrRateLimit,
		ErrBusy,
		ErrItemNotFound,
		ErrUserNotFound,
		ErrInsufficientStock,
		ErrCannotAfford,
		ErrInsufficientItems,
		ErrCursedItem,
		ErrInvalidQuantity,
		ErrNoRecipe,
		ErrSelfTransfer,
		ErrNoCursedItems,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestIsKnownCmd(t *testing.T) {
	for _, c := range []string{CmdBuy, CmdSell, CmdGive, CmdPay, CmdMerge, CmdRemoveCurse, CmdStore, CmdMerges, CmdInventory, CmdBalance} {
		if !IsKnownCmd(c) {
			t.Fatalf("expected known cmd: %q", c)
		}
	}
	if IsKnownCmd("buy") {
		t.Fatalf("commands are case-sensitive")
	}
}

func TestDecodeBase(t *testing.T) {
	m, err := DecodeBase([]byte(`{"type":"CMD","protocol_version":"1.0","cmd":"STORE"}`))
	if err != nil || m.Type != TypeCmd || m.ProtocolVersion != Version {
		t.Fatalf("m=%+v err=%v", m, err)
	}
}

func TestCmdQtyDefault(t *testing.T) {
	var m CmdMsg
	if m.QtyOr(1) != 1 {
		t.Fatalf("missing qty should default")
	}
	zero := int64(0)
	m.Qty = &zero
	if m.QtyOr(1) != 0 {
		t.Fatalf("explicit zero must be kept")
	}
}
