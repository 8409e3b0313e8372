package catalogs

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CurrencySymbol follows every amount in item display strings.
const CurrencySymbol = "💰"

type tier struct {
	minCost int64
	prefix  string
}

// Most expensive first.
var tiers = []tier{
	{100_000_000, "💎"},
	{10_000_000, "$$"},
	{1_000_000, "$"},
}

var printer = message.NewPrinter(language.English)

// FormatCurrency renders an amount with thousands separators ("1,234,567").
func FormatCurrency(amount int64) string {
	return printer.Sprintf("%d", amount)
}

// Prefix returns the price-tier marker for an item cost, or "".
func Prefix(cost int64) string {
	for _, t := range tiers {
		if cost >= t.minCost {
			return t.prefix
		}
	}
	return ""
}

// PrefixedName is the item name behind its price-tier marker.
func (it *Item) PrefixedName() string {
	if p := Prefix(it.Cost); p != "" {
		return p + " " + it.Name
	}
	return it.Name
}

// String renders "💎 Name (cost 💰, provides a boost of B 💰)". The boost
// clause is omitted for zero-boost items.
func (it *Item) String() string {
	s := it.PrefixedName() + " (" + FormatCurrency(it.Cost) + " " + CurrencySymbol
	if it.Boost != 0 {
		s += ", provides a boost of " + FormatCurrency(it.Boost) + " " + CurrencySymbol
	}
	return s + ")"
}
