package catalogs

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed items.schema.json
var itemsSchemaJSON string

const itemsSchemaURL = "https://procoin.app/schemas/items.schema.json"

var (
	itemsSchemaOnce sync.Once
	itemsSchema     *jsonschema.Schema
	itemsSchemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	itemsSchemaOnce.Do(func() {
		itemsSchema, itemsSchemaErr = jsonschema.CompileString(itemsSchemaURL, itemsSchemaJSON)
	})
	return itemsSchema, itemsSchemaErr
}

// SchemaJSON returns the JSON schema used to validate definitions documents.
func SchemaJSON() string { return itemsSchemaJSON }

// Load reads and parses an item definitions document from disk.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse builds a catalog from a definitions document: a JSON object mapping
// item IDs to {name, cost, boost, default_qty, merges, cursed}.
func Parse(raw []byte) (*Catalog, error) {
	if err := validate(raw); err != nil {
		return nil, err
	}
	entries, err := decodeOrdered(raw)
	if err != nil {
		return nil, fmt.Errorf("items.json: %w", err)
	}
	items := make([]*Item, 0, len(entries))
	for _, e := range entries {
		it, err := decodeItem(e.id, e.raw)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	c, err := New(items)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(raw)
	c.Digest = hex.EncodeToString(sum[:])
	return c, nil
}

func validate(raw []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("items schema: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	err = schema.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("items.json: %w", err)
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	id, field := splitInstanceLocation(ve.InstanceLocation)
	return &DefinitionError{ItemID: id, Field: field, Reason: ve.Message}
}

// splitInstanceLocation maps a JSON pointer such as "/apple/cost" onto the
// item ID and top-level field it addresses.
func splitInstanceLocation(ptr string) (id, field string) {
	parts := strings.Split(strings.TrimPrefix(ptr, "/"), "/")
	unescape := strings.NewReplacer("~1", "/", "~0", "~")
	if len(parts) > 0 {
		id = unescape.Replace(parts[0])
	}
	if len(parts) > 1 {
		field = unescape.Replace(parts[1])
	}
	return id, field
}

type rawEntry struct {
	id  string
	raw json.RawMessage
}

// decodeOrdered walks the top-level object keeping key order. A repeated key
// keeps its first position and its last value.
func decodeOrdered(raw []byte) ([]rawEntry, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("top level must be an object of item definitions")
	}
	var out []rawEntry
	pos := map[string]int{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		id, _ := tok.(string)
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("item %q: %w", id, err)
		}
		if i, seen := pos[id]; seen {
			out[i].raw = v
			continue
		}
		pos[id] = len(out)
		out = append(out, rawEntry{id: id, raw: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

type itemDef struct {
	Name       *string    `json:"name"`
	Cost       *int64     `json:"cost"`
	Boost      *int64     `json:"boost"`
	DefaultQty *int       `json:"default_qty"`
	LegacyQty  *int       `json:"default quantity"`
	Merges     [][]string `json:"merges"`
	Cursed     bool       `json:"cursed"`
}

func decodeItem(id string, raw json.RawMessage) (*Item, error) {
	var d itemDef
	if err := json.Unmarshal(raw, &d); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			return nil, &DefinitionError{ItemID: id, Field: te.Field, Reason: "expected " + te.Type.String() + ", got " + te.Value}
		}
		return nil, &DefinitionError{ItemID: id, Reason: err.Error()}
	}
	switch {
	case d.Name == nil:
		return nil, &DefinitionError{ItemID: id, Field: "name", Reason: "missing"}
	case d.Cost == nil:
		return nil, &DefinitionError{ItemID: id, Field: "cost", Reason: "missing"}
	case d.Boost == nil:
		return nil, &DefinitionError{ItemID: id, Field: "boost", Reason: "missing"}
	case *d.Cost < 0:
		return nil, &DefinitionError{ItemID: id, Field: "cost", Reason: "must be >= 0"}
	}
	qty := 0
	switch {
	case d.DefaultQty != nil:
		qty = *d.DefaultQty
	case d.LegacyQty != nil:
		qty = *d.LegacyQty
	}
	if qty < 0 {
		return nil, &DefinitionError{ItemID: id, Field: "default_qty", Reason: "must be >= 0"}
	}
	return &Item{
		ID:         id,
		Name:       *d.Name,
		Cost:       *d.Cost,
		Boost:      *d.Boost,
		DefaultQty: qty,
		Cursed:     d.Cursed,
		Merges:     d.Merges,
	}, nil
}
