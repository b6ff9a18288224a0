package symbols

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"PriceKeeper/internal/model"
)

// DefaultLimit applies when a search asks for zero or fewer results.
const DefaultLimit = 10

// Searcher is the provider side of a symbol search.
type Searcher interface {
	FetchSearch(ctx context.Context, query string, limit int) ([]model.SymbolSuggestion, error)
}

// acceptedKinds are the provider asset kinds surfaced to callers.
var acceptedKinds = map[string]bool{
	"equity": true,
	"etf":    true,
}

// Merger combines catalog matches with provider search results.
type Merger struct {
	catalog  *Catalog
	provider Searcher
}

// NewMerger creates a Merger. provider may be nil for catalog-only search.
func NewMerger(catalog *Catalog, provider Searcher) *Merger {
	if catalog == nil {
		catalog = NewCatalog(nil)
	}
	return &Merger{catalog: catalog, provider: provider}
}

// Search returns catalog matches topped up with provider hits, exact symbol
// matches first. Provider failures only cost the provider hits; complete is
// false when that happened.
func (m *Merger) Search(ctx context.Context, query string, limit int) (results []model.SymbolSuggestion, complete bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.SymbolSuggestion{}, true
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	local := m.catalog.Match(query, limit)
	results = make([]model.SymbolSuggestion, 0, limit)
	complete = true
	seen := make(map[string]bool, limit)
	for _, e := range local {
		results = append(results, e.Suggestion())
		seen[strings.ToUpper(e.Symbol)] = true
	}

	if remaining := limit - len(results); remaining > 0 && m.provider != nil {
		hits, err := m.provider.FetchSearch(ctx, query, remaining)
		if err != nil {
			log.Warn().Err(err).Str("query", query).Msg("provider search failed, returning catalog matches only")
			complete = false
		}
		for _, h := range hits {
			if len(results) >= limit {
				break
			}
			key := strings.ToUpper(h.Symbol)
			if key == "" || seen[key] || !acceptedKinds[strings.ToLower(h.AssetType)] {
				continue
			}
			seen[key] = true
			results = append(results, h)
		}
	}

	rank(results, query)
	return results, complete
}

// rank puts exact symbol matches first, then orders by symbol.
func rank(results []model.SymbolSuggestion, query string) {
	sort.SliceStable(results, func(i, j int) bool {
		ei := strings.EqualFold(results[i].Symbol, query)
		ej := strings.EqualFold(results[j].Symbol, query)
		if ei != ej {
			return ei
		}
		return results[i].Symbol < results[j].Symbol
	})
}
