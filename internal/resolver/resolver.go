// Package resolver maps portfolio assets to the market symbol and provider
// category used to price them. Resolution is a pure function of the asset
// record: it never touches the network or the database.
package resolver

import (
	"strings"

	apperrors "github.com/stvowns/portfolio-tracker-starter-sub001/internal/errors"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/models"
)

// Category tells the market client which provider route serves a symbol.
type Category string

const (
	CategoryCommodity Category = "COMMODITY"
	CategoryEquity    Category = "EQUITY"
	CategoryCrypto    Category = "CRYPTO"
	CategoryFund      Category = "FUND"
	CategoryCurrency  Category = "CURRENCY"
)

// Resolution is the outcome of resolving one asset.
type Resolution struct {
	Symbol   string   `json:"symbol"`
	Category Category `json:"category"`
}

// Key identifies the resolution in caches.
func (r Resolution) Key() string {
	return string(r.Category) + ":" + r.Symbol
}

// Rule derives a symbol when Applies holds. Rules are evaluated in order and
// the first one producing a non-empty symbol wins.
type Rule struct {
	Name    string
	Applies func(a *models.Asset) bool
	Symbol  func(a *models.Asset) string
}

// RuleSet is the ordered rule list for one asset type.
type RuleSet struct {
	Category Category
	Rules    []Rule
}

// Table maps asset types to their rule sets. Types without an entry use the
// table's fallback set.
type Table struct {
	ByType   map[models.AssetType]RuleSet
	Fallback RuleSet
}

// Resolver evaluates a Table.
type Resolver struct {
	table Table
}

// New creates a Resolver over the given table.
func New(table Table) *Resolver {
	return &Resolver{table: table}
}

// Default returns a Resolver using DefaultTable.
func Default() *Resolver {
	return New(DefaultTable())
}

// Resolve returns the external lookup symbol and category for the asset, or
// ErrUnresolvableAsset when no rule yields a symbol.
func (r *Resolver) Resolve(asset *models.Asset) (Resolution, error) {
	if asset == nil {
		return Resolution{}, apperrors.ErrUnresolvableAsset
	}

	set, ok := r.table.ByType[asset.AssetType]
	if !ok {
		set = r.table.Fallback
	}

	for _, rule := range set.Rules {
		if rule.Applies != nil && !rule.Applies(asset) {
			continue
		}
		if symbol := strings.TrimSpace(rule.Symbol(asset)); symbol != "" {
			return Resolution{Symbol: symbol, Category: set.Category}, nil
		}
	}

	return Resolution{}, apperrors.WithMessage(apperrors.ErrUnresolvableAsset,
		"No market symbol can be derived for "+describe(asset))
}

// ParseCategory matches s against the provider categories, ignoring case.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case CategoryCommodity, CategoryEquity, CategoryCrypto, CategoryFund, CategoryCurrency:
		return c, true
	}
	return "", false
}

// ResolveSymbol resolves a bare symbol lookup. kind is an asset type or a
// provider category, tried in that order; empty means STOCK. Asset types go
// through the rule table, categories take the uppercased symbol unchanged.
func (r *Resolver) ResolveSymbol(symbol, kind string) (Resolution, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return Resolution{}, apperrors.WithMessage(apperrors.ErrValidation, "symbol is required")
	}
	if strings.TrimSpace(kind) == "" {
		kind = string(models.AssetTypeStock)
	}

	if assetType, ok := models.ParseAssetType(kind); ok {
		return r.Resolve(&models.Asset{AssetType: assetType, Name: symbol, Symbol: symbol})
	}
	if category, ok := ParseCategory(kind); ok {
		return Resolution{Symbol: strings.ToUpper(symbol), Category: category}, nil
	}
	return Resolution{}, apperrors.WithMessage(apperrors.ErrValidation, "unknown price type "+kind)
}

func describe(a *models.Asset) string {
	if a.Name != "" {
		return string(a.AssetType) + " asset " + a.Name
	}
	return string(a.AssetType) + " asset " + a.ID
}

// DefaultTable is the production rule table.
func DefaultTable() Table {
	equity := RuleSet{
		Category: CategoryEquity,
		Rules:    []Rule{tickerRule()},
	}

	return Table{
		ByType: map[models.AssetType]RuleSet{
			models.AssetTypeGold: {
				Category: CategoryCommodity,
				Rules:    []Rule{fixed("GOLD")},
			},
			models.AssetTypeSilver: {
				Category: CategoryCommodity,
				Rules:    []Rule{fixed("SILVER")},
			},
			models.AssetTypeCrypto: {
				Category: CategoryCrypto,
				Rules: []Rule{
					nameContains("bitcoin", "BTC"),
					nameContains("ethereum", "ETH"),
					{
						Name:    "ticker_without_usd_suffix",
						Applies: hasTicker,
						Symbol: func(a *models.Asset) string {
							return stripUSDSuffix(strings.ToUpper(strings.TrimSpace(a.Symbol)))
						},
					},
					{
						Name:   "uppercased_name",
						Symbol: func(a *models.Asset) string { return strings.ToUpper(strings.TrimSpace(a.Name)) },
					},
				},
			},
			models.AssetTypeFund: {
				Category: CategoryFund,
				Rules: []Rule{
					tickerRule(),
					{
						Name:   "display_name",
						Symbol: func(a *models.Asset) string { return a.Name },
					},
				},
			},
			models.AssetTypeStock: equity,
		},
		Fallback: equity,
	}
}

func hasTicker(a *models.Asset) bool {
	return strings.TrimSpace(a.Symbol) != ""
}

func fixed(symbol string) Rule {
	return Rule{
		Name:   "fixed_" + strings.ToLower(symbol),
		Symbol: func(*models.Asset) string { return symbol },
	}
}

func nameContains(fragment, symbol string) Rule {
	return Rule{
		Name: "name_contains_" + fragment,
		Applies: func(a *models.Asset) bool {
			return strings.Contains(strings.ToLower(a.Name), fragment)
		},
		Symbol: func(*models.Asset) string { return symbol },
	}
}

func tickerRule() Rule {
	return Rule{
		Name:    "ticker",
		Applies: hasTicker,
		Symbol:  func(a *models.Asset) string { return strings.ToUpper(strings.TrimSpace(a.Symbol)) },
	}
}

func stripUSDSuffix(s string) string {
	if trimmed, ok := strings.CutSuffix(s, "-USD"); ok {
		return trimmed
	}
	if trimmed, ok := strings.CutSuffix(s, "USD"); ok {
		return trimmed
	}
	return s
}
