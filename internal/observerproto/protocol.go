package observerproto

// Version is the observer protocol version (separate from the command WS protocol).
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeMarket    = "MARKET"
)

// Client -> Server. First message on the observer WS connection; may be
// re-sent to change settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	IntervalMS      int    `json:"interval_ms"`
	TopN            int    `json:"top_n"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string        `json:"protocol_version"`
	CurrencySymbol  string        `json:"currency_symbol"`
	Catalog         CatalogInfo   `json:"catalog"`
	Economy         EconomyParams `json:"economy"`
}

type CatalogInfo struct {
	Items   int    `json:"items"`
	Recipes int    `json:"recipes"`
	Digest  string `json:"digest"`
}

type EconomyParams struct {
	StartingBalance    int64  `json:"starting_balance"`
	RestockEverySec    int64  `json:"restock_every_sec"`
	PassiveIncomeSec   int64  `json:"passive_income_period_sec"`
	OrdinaryStockSlots int    `json:"ordinary_stock_slots"`
	BigStockSlots      int    `json:"big_stock_slots"`
	CurseScrollItemID  string `json:"curse_scroll_item_id"`
}

// Server -> Client. Sent once per interval.
type MarketMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Seq             uint64 `json:"seq"`
	AtUnixMS        int64  `json:"at_unix_ms"`

	LastRestockUnix int64 `json:"last_restock_unix"`
	Users           int   `json:"users"`
	MoneySupply     int64 `json:"money_supply"`

	Store []StockState `json:"store"`
	Top   []Holder     `json:"top,omitempty"`
}

type StockState struct {
	ItemID  string `json:"item_id"`
	Display string `json:"display"`
	Cost    int64  `json:"cost"`
	Boost   int64  `json:"boost"`
	Qty     int    `json:"qty"`
}

type Holder struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
	Boost   int64  `json:"boost"`
}
