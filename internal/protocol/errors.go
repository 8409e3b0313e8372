package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrBadRequest      = "E_BAD_REQUEST"
	ErrRateLimit       = "E_RATE_LIMIT"
	ErrBusy            = "E_BUSY"

	// Economy.
	ErrItemNotFound      = "E_ITEM_NOT_FOUND"
	ErrUserNotFound      = "E_USER_NOT_FOUND"
	ErrInsufficientStock = "E_INSUFFICIENT_STOCK"
	ErrCannotAfford      = "E_CANNOT_AFFORD"
	ErrInsufficientItems = "E_INSUFFICIENT_ITEMS"
	ErrCursedItem        = "E_CURSED_ITEM"
	ErrInvalidQuantity   = "E_INVALID_QUANTITY"
	ErrNoRecipe          = "E_NO_RECIPE"
	ErrSelfTransfer      = "E_SELF_TRANSFER"
	ErrNoCursedItems     = "E_NO_CURSED_ITEMS"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:   {},
	ErrBadRequest:        {},
	ErrRateLimit:         {},
	ErrBusy:              {},
	ErrItemNotFound:      {},
	ErrUserNotFound:      {},
	ErrInsufficientStock: {},
	ErrCannotAfford:      {},
	ErrInsufficientItems: {},
	ErrCursedItem:        {},
	ErrInvalidQuantity:   {},
	ErrNoRecipe:          {},
	ErrSelfTransfer:      {},
	ErrNoCursedItems:     {},
	ErrInternal:          {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
