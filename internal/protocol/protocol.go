package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeCmd     = "CMD"
	TypeResult  = "RESULT"
)

// Commands carried by CMD.
const (
	CmdBuy         = "BUY"
	CmdSell        = "SELL"
	CmdGive        = "GIVE"
	CmdPay         = "PAY"
	CmdMerge       = "MERGE"
	CmdRemoveCurse = "REMOVE_CURSE"
	CmdStore       = "STORE"
	CmdMerges      = "MERGES"
	CmdInventory   = "INVENTORY"
	CmdBalance     = "BALANCE"
)

var knownCmds = map[string]struct{}{
	CmdBuy: {}, CmdSell: {}, CmdGive: {}, CmdPay: {}, CmdMerge: {},
	CmdRemoveCurse: {}, CmdStore: {}, CmdMerges: {}, CmdInventory: {}, CmdBalance: {},
}

func IsKnownCmd(cmd string) bool {
	_, ok := knownCmds[cmd]
	return ok
}

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
