package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"

	"sjsage522/meliscraper/internal/models"
)

// Thresholds controls when a price gap counts as an arbitrage opportunity.
// Both limits are exclusive.
type Thresholds struct {
	MinPercent    float64
	MinDifference float64
	KeyLength     int
}

// DefaultThresholds flags gaps above 20% and above 1000 currency units.
func DefaultThresholds() Thresholds {
	return Thresholds{MinPercent: 20, MinDifference: 1000, KeyLength: 50}
}

// potentialProfitShare is the part of a price gap assumed to be capturable.
const potentialProfitShare = 0.7

// GroupKey normalizes a title into the key used to group listings of the same
// product: lowercased, punctuation removed, whitespace collapsed, truncated
// to n runes.
func GroupKey(title string, n int) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	key := strings.Join(strings.Fields(b.String()), " ")
	if runes := []rune(key); n > 0 && len(runes) > n {
		key = strings.TrimSpace(string(runes[:n]))
	}
	return key
}

// DetectArbitrage groups records by title key and reports groups whose
// cheapest and most expensive listings differ by more than both thresholds.
// The result is sorted by absolute difference, largest first. Records without
// a positive price are ignored.
func DetectArbitrage(records []models.ProductRecord, th Thresholds) []models.ArbitrageOpportunity {
	var order []string
	groups := make(map[string][]models.ProductRecord)
	for _, rec := range records {
		if rec.PriceValue() <= 0 {
			continue
		}
		key := GroupKey(rec.Title, th.KeyLength)
		if key == "" {
			continue
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], rec)
	}

	type scored struct {
		opportunity models.ArbitrageOpportunity
		difference  float64
	}
	var found []scored

	for _, key := range order {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].PriceValue() < group[j].PriceValue()
		})

		cheapest, priciest := group[0], group[len(group)-1]
		low, high := cheapest.PriceValue(), priciest.PriceValue()
		difference := high - low
		percent := difference / low * 100
		if percent <= th.MinPercent || difference <= th.MinDifference {
			continue
		}

		similarity := matchr.JaroWinkler(cheapest.Title, priciest.Title, false)
		found = append(found, scored{
			difference: difference,
			opportunity: models.ArbitrageOpportunity{
				ProductGroup:         key,
				CheapestOption:       option(cheapest),
				MostExpensiveOption:  option(priciest),
				PriceDifference:      fmt.Sprintf("%.2f", difference),
				PercentageDifference: fmt.Sprintf("%.1f%%", percent),
				PotentialProfit:      fmt.Sprintf("%.2f", difference*potentialProfitShare),
				TotalVariants:        len(group),
				TitleSimilarity:      math.Round(similarity*1000) / 1000,
			},
		})
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].difference > found[j].difference
	})

	out := make([]models.ArbitrageOpportunity, len(found))
	for i, s := range found {
		out[i] = s.opportunity
	}
	return out
}

func option(rec models.ProductRecord) models.ArbitrageOption {
	return models.ArbitrageOption{
		ProductID: rec.ProductID,
		Title:     rec.Title,
		Price:     rec.PriceValue(),
		Seller:    rec.Seller,
		Link:      rec.Link,
	}
}
