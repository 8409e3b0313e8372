package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	UserID          string     `json:"user_id"`
	ClientName      string     `json:"client_name,omitempty"`
	Auth            *HelloAuth `json:"auth,omitempty"`
}

type HelloAuth struct {
	Token string `json:"token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	UserID          string      `json:"user_id"`
	Balance         int64       `json:"balance"`
	Catalog         CatalogInfo `json:"catalog"`
}

type CatalogInfo struct {
	Digest  string `json:"digest"`
	Items   int    `json:"items"`
	Recipes int    `json:"recipes"`
}

// CMD (client -> server). Fields are used per command:
// BUY/SELL: item, qty. GIVE: target, item, qty. PAY: target, amount.
// MERGE: items, qty. The rest take no arguments. A missing qty means 1.
type CmdMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	ID              string   `json:"id,omitempty"`
	Cmd             string   `json:"cmd"`
	Item            string   `json:"item,omitempty"`
	Items           []string `json:"items,omitempty"`
	Qty             *int64   `json:"qty,omitempty"`
	Target          string   `json:"target,omitempty"`
	Amount          int64    `json:"amount,omitempty"`
}

// RESULT (server -> client), one per CMD.
type ResultMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	ID              string   `json:"id,omitempty"`
	Cmd             string   `json:"cmd"`
	OK              bool     `json:"ok"`
	Code            string   `json:"code,omitempty"`
	Message         string   `json:"message,omitempty"`
	Have            *int     `json:"have,omitempty"`
	Amount          int64    `json:"amount,omitempty"`
	Balance         int64    `json:"balance"`
	Item            *ItemRef `json:"item,omitempty"`
	Removed         *ItemRef `json:"removed,omitempty"`
	Text            string   `json:"text,omitempty"`
	Pages           []string `json:"pages,omitempty"`
}

type ItemRef struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Display string `json:"display"`
}

// QtyOr returns the requested quantity, or def when none was sent.
func (m CmdMsg) QtyOr(def int64) int64 {
	if m.Qty == nil {
		return def
	}
	return *m.Qty
}
