package analysis

import (
	stderrors "errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/titanous/json5"

	"sjsage522/meliscraper/internal/models"
	"sjsage522/meliscraper/pkg/errors"
)

// ErrInvalidPrice is returned when a commission is requested for a missing,
// zero or negative price.
var ErrInvalidPrice = stderrors.New("invalid_price")

// DefaultCategory is the rate table key used for unknown categories.
const DefaultCategory = "default"

// TierRates holds the commission rate of each publication tier.
type TierRates struct {
	Classic float64 `json:"classic"`
	Gold    float64 `json:"gold"`
	Premium float64 `json:"premium"`
}

// For returns the rate for tier, using the classic rate for unknown tiers.
func (r TierRates) For(tier string) float64 {
	switch tier {
	case models.TierGold:
		return r.Gold
	case models.TierPremium:
		return r.Premium
	default:
		return r.Classic
	}
}

// RateTable maps a category id to its tier rates.
type RateTable map[string]TierRates

// DefaultRateTable returns the built-in sample of category rates.
func DefaultRateTable() RateTable {
	return RateTable{
		"MLA1051":       {Classic: 0.13, Gold: 0.11, Premium: 0.09},    // phones
		"MLA1648":       {Classic: 0.15, Gold: 0.13, Premium: 0.11},    // computing
		"MLA1694":       {Classic: 0.155, Gold: 0.135, Premium: 0.115}, // PC components
		"MLA1000":       {Classic: 0.14, Gold: 0.12, Premium: 0.10},    // electronics
		"MLA1574":       {Classic: 0.16, Gold: 0.14, Premium: 0.12},    // home
		"MLA1499":       {Classic: 0.17, Gold: 0.15, Premium: 0.13},    // construction
		"MLA1430":       {Classic: 0.18, Gold: 0.16, Premium: 0.14},    // clothing
		"MLA1144":       {Classic: 0.16, Gold: 0.14, Premium: 0.12},    // footwear
		DefaultCategory: {Classic: 0.16, Gold: 0.14, Premium: 0.12},
	}
}

// LoadRateTable reads a JSON5 rate table from path and lays it over the
// defaults. An empty path returns the defaults.
func LoadRateTable(path string) (RateTable, error) {
	table := DefaultRateTable()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfiguration("failed to read commission rates file", err)
	}

	var override RateTable
	if err := json5.Unmarshal(data, &override); err != nil {
		return nil, errors.NewConfiguration("failed to parse commission rates file", err)
	}
	for category, rates := range override {
		if rates.Classic < 0 || rates.Gold < 0 || rates.Premium < 0 || rates.Classic >= 1 || rates.Gold >= 1 || rates.Premium >= 1 {
			return nil, errors.NewConfiguration(fmt.Sprintf("commission rates for %s must be in [0,1)", category), nil)
		}
		if !(rates.Classic > rates.Gold && rates.Gold > rates.Premium) {
			return nil, errors.NewConfiguration(fmt.Sprintf("commission rates for %s must decrease from classic to gold to premium", category), nil)
		}
		table[category] = rates
	}
	return table, nil
}

// Lookup returns the rate for a category and tier, falling back to the
// default category.
func (t RateTable) Lookup(categoryID, tier string) float64 {
	rates, ok := t[categoryID]
	if !ok {
		rates, ok = t[DefaultCategory]
		if !ok {
			rates = DefaultRateTable()[DefaultCategory]
		}
	}
	return rates.For(tier)
}

// PublicationTier maps a listing type id ("gold_special", "gold_pro",
// "free", ...) to a tier. Premium wins over gold.
func PublicationTier(listingType string) string {
	lower := strings.ToLower(listingType)
	switch {
	case strings.Contains(lower, models.TierPremium):
		return models.TierPremium
	case strings.Contains(lower, models.TierGold):
		return models.TierGold
	default:
		return models.TierClassic
	}
}

// CalculateCommission estimates the marketplace fee for a sale at price.
func CalculateCommission(price float64, categoryID, listingType string, table RateTable) (*models.CommissionEstimate, error) {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return nil, ErrInvalidPrice
	}
	if table == nil {
		table = DefaultRateTable()
	}

	tier := PublicationTier(listingType)
	rate := table.Lookup(categoryID, tier)
	commission := price * rate
	net := price - commission

	if categoryID == "" {
		categoryID = "unknown"
	}
	return &models.CommissionEstimate{
		OriginalPrice:        price,
		CommissionRate:       rate,
		CommissionPercentage: fmt.Sprintf("%.1f%%", rate*100),
		CommissionAmount:     fmt.Sprintf("%.2f", commission),
		NetAmount:            fmt.Sprintf("%.2f", net),
		ProfitMargin:         fmt.Sprintf("%.1f%%", net/price*100),
		PublicationType:      tier,
		CategoryID:           categoryID,
	}, nil
}

// ApplyCommission sets the commission estimate of rec, or its commission
// error when the price is unusable.
func ApplyCommission(rec *models.ProductRecord, table RateTable) {
	estimate, err := CalculateCommission(rec.PriceValue(), rec.CategoryID, rec.PublicationType, table)
	if err != nil {
		rec.Commission = nil
		rec.CommissionError = err.Error()
		return
	}
	rec.Commission = estimate
	rec.CommissionError = ""
}
