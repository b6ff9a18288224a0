// Package symbols holds the curated symbol catalog and merges it with
// provider search results.
package symbols

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"PriceKeeper/internal/model"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog is an immutable, ordered list of curated symbols.
type Catalog struct {
	entries []model.SymbolEntry
}

type catalogFile struct {
	Symbols []model.SymbolEntry `yaml:"symbols"`
}

// NewCatalog builds a catalog from entries, upper-casing symbols and dropping
// blanks and duplicates. Encounter order is kept.
func NewCatalog(entries []model.SymbolEntry) *Catalog {
	seen := make(map[string]bool, len(entries))
	out := make([]model.SymbolEntry, 0, len(entries))
	for _, e := range entries {
		e.Symbol = model.NormalizeSymbol(e.Symbol)
		if e.Symbol == "" || seen[e.Symbol] {
			continue
		}
		seen[e.Symbol] = true
		out = append(out, e)
	}
	return &Catalog{entries: out}
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return NewCatalog(f.Symbols), nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads the catalog at path, or returns Default when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Entries returns a copy of the catalog contents.
func (c *Catalog) Entries() []model.SymbolEntry {
	return append([]model.SymbolEntry(nil), c.entries...)
}

func (c *Catalog) Len() int { return len(c.entries) }

// Match returns up to limit entries whose symbol starts with query or whose
// name contains it, case-insensitively, in catalog order.
func (c *Catalog) Match(query string, limit int) []model.SymbolEntry {
	q := strings.ToLower(query)
	var out []model.SymbolEntry
	for _, e := range c.entries {
		if len(out) >= limit {
			break
		}
		if strings.HasPrefix(strings.ToLower(e.Symbol), q) ||
			strings.Contains(strings.ToLower(e.Name), q) {
			out = append(out, e)
		}
	}
	return out
}
