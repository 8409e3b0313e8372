package economy

import (
	"errors"
	"fmt"
)

// Error codes. They share the E_* namespace with the protocol package so a
// transport can forward them verbatim.
const (
	CodeItemNotFound      = "E_ITEM_NOT_FOUND"
	CodeUserNotFound      = "E_USER_NOT_FOUND"
	CodeInsufficientStock = "E_INSUFFICIENT_STOCK"
	CodeCannotAfford      = "E_CANNOT_AFFORD"
	CodeInsufficientItems = "E_INSUFFICIENT_ITEMS"
	CodeCursedItem        = "E_CURSED_ITEM"
	CodeInvalidQuantity   = "E_INVALID_QUANTITY"
	CodeNoRecipe          = "E_NO_RECIPE"
	CodeSelfTransfer      = "E_SELF_TRANSFER"
	CodeNoCursedItems     = "E_NO_CURSED_ITEMS"
	CodeInternal          = "E_INTERNAL"
)

// Error is a recoverable economy failure. Msg is plain text; rendering it for
// a chat surface is the caller's job.
type Error struct {
	Code string
	Msg  string

	// Have is the quantity actually available when the failure is about
	// quantities (held items, store stock). -1 when not applicable.
	Have int
}

func (e *Error) Error() string { return e.Msg }

// Is matches any *Error with the same code, so sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrItemNotFound      = &Error{Code: CodeItemNotFound, Msg: "item not found", Have: -1}
	ErrUserNotFound      = &Error{Code: CodeUserNotFound, Msg: "user not found", Have: -1}
	ErrInsufficientStock = &Error{Code: CodeInsufficientStock, Msg: "insufficient stock", Have: -1}
	ErrCannotAfford      = &Error{Code: CodeCannotAfford, Msg: "cannot afford", Have: -1}
	ErrInsufficientItems = &Error{Code: CodeInsufficientItems, Msg: "insufficient items", Have: -1}
	ErrCursedItem        = &Error{Code: CodeCursedItem, Msg: "cursed item", Have: -1}
	ErrInvalidQuantity   = &Error{Code: CodeInvalidQuantity, Msg: "invalid quantity", Have: -1}
	ErrNoRecipe          = &Error{Code: CodeNoRecipe, Msg: "no recipe", Have: -1}
	ErrSelfTransfer      = &Error{Code: CodeSelfTransfer, Msg: "self transfer", Have: -1}
	ErrNoCursedItems     = &Error{Code: CodeNoCursedItems, Msg: "no cursed items", Have: -1}
)

func newErr(code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...), Have: -1}
}

// CodeOf returns the economy code carried by err, CodeInternal for foreign
// errors, or "" for nil.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func insufficientItems(have, want int, name string) *Error {
	e := newErr(CodeInsufficientItems, "You only have %d %s%s, not %d!", have, name, plural(have), want)
	e.Have = have
	return e
}

func cursedItem(name string) *Error {
	return newErr(CodeCursedItem, "You cannot remove cursed items! (%s)", name)
}

// quantityError distinguishes the zero and negative cases; verb names the
// attempted action ("buy", "sell", "give").
func quantityError(qty int64, verb string) *Error {
	if qty < 0 {
		if verb == "give" {
			return newErr(CodeInvalidQuantity, "You can't steal items!")
		}
		return newErr(CodeInvalidQuantity, "You can't %s a negative amount!", verb)
	}
	return newErr(CodeInvalidQuantity, "You must %s at least one item!", verb)
}
