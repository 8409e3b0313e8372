package catalogs

import "fmt"

// DefinitionError reports a malformed entry in the item definitions document.
type DefinitionError struct {
	ItemID string
	Field  string
	Reason string
}

func (e *DefinitionError) Error() string {
	switch {
	case e.ItemID == "" && e.Field == "":
		return "items.json: " + e.Reason
	case e.ItemID == "":
		return fmt.Sprintf("items.json: %s: %s", e.Field, e.Reason)
	case e.Field == "":
		return fmt.Sprintf("items.json: item %q: %s", e.ItemID, e.Reason)
	}
	return fmt.Sprintf("items.json: item %q field %q: %s", e.ItemID, e.Field, e.Reason)
}

// IntegrityError reports a merge recipe that references an unknown item.
// It is fatal: a catalog that fails this check must not be served.
type IntegrityError struct {
	ItemID string
	Ref    string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("items.json: invalid item ID in merge for %q: %q", e.ItemID, e.Ref)
}
