package model

// SymbolEntry is a tradable instrument, either curated or returned by a provider search.
type SymbolEntry struct {
	Symbol    string `yaml:"symbol" json:"symbol"`
	Name      string `yaml:"name" json:"name"`
	Exchange  string `yaml:"exchange" json:"exchange"`
	AssetType string `yaml:"asset_type" json:"assetType"`
	IPODate   string `yaml:"ipo_date" json:"ipoDate"`
	Status    string `yaml:"status" json:"status"`
}

// Suggestion projects the entry onto what search callers receive.
func (e SymbolEntry) Suggestion() SymbolSuggestion {
	return SymbolSuggestion{
		Symbol:    e.Symbol,
		Name:      e.Name,
		Exchange:  e.Exchange,
		AssetType: e.AssetType,
	}
}

// SymbolSuggestion is a single symbol search hit.
type SymbolSuggestion struct {
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	Exchange  string `json:"exchange"`
	AssetType string `json:"assetType"`
}
