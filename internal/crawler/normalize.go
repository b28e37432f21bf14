package crawler

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"sjsage522/meliscraper/config"
	"sjsage522/meliscraper/helpers"
	"sjsage522/meliscraper/internal/models"
)

var (
	soldPattern    = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(mil|k)?\s*vend`)
	ratingPattern  = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	integerPattern = regexp.MustCompile(`\d[\d.,]*`)
	sellerPrefixes = []string{"vendido por ", "vendido pela ", "por ", "por: "}
)

// ParsePrice converts a displayed amount ("12.345", "1.234,56", "$ 99") to a
// number. A separator followed by exactly three digits groups thousands; any
// other final separator is the decimal point. ok is false when s has no digits.
func ParsePrice(s string) (float64, bool) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	clean := strings.Trim(b.String(), ".,")
	if clean == "" {
		return 0, false
	}

	last := strings.LastIndexAny(clean, ".,")
	if last >= 0 && len(clean)-last-1 != 3 {
		intPart := stripSeparators(clean[:last])
		clean = intPart + "." + clean[last+1:]
	} else {
		clean = stripSeparators(clean)
	}

	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func stripSeparators(s string) string {
	return strings.NewReplacer(".", "", ",", "").Replace(s)
}

// parseAmount combines a fraction text and an optional cents text.
func parseAmount(fraction, cents string) *float64 {
	v, ok := ParsePrice(fraction)
	if !ok {
		return nil
	}
	if c, err := strconv.Atoi(strings.TrimSpace(cents)); err == nil && c > 0 && c < 100 {
		v += float64(c) / 100
	}
	return &v
}

// pricePrinter groups thousands the way the storefront shows prices.
var pricePrinter = message.NewPrinter(language.Spanish)

// FormatPrice renders amount with dot-grouped thousands and no decimals,
// e.g. "$ 12.345". A nil amount gives "".
func FormatPrice(amount *float64, symbol string) string {
	if amount == nil {
		return ""
	}
	out := pricePrinter.Sprintf("%d", int64(math.Round(*amount)))
	if symbol == "" {
		return out
	}
	return symbol + " " + out
}

// Discount reports whether both prices are present and differ, and the
// rounded percentage off the original, clamped to [0,100].
func Discount(price, original *float64) (bool, *int) {
	if price == nil || original == nil || *price == *original {
		return false, nil
	}
	pct := 0
	if *original > 0 {
		pct = int(math.Round(100 * (*original - *price) / *original))
	}
	pct = max(0, min(100, pct))
	return true, &pct
}

// InPriceRange reports whether price lies within [minPrice, maxPrice]. A
// missing price counts as zero.
func InPriceRange(price *float64, minPrice, maxPrice float64) bool {
	v := 0.0
	if price != nil {
		v = *price
	}
	return v >= minPrice && v <= maxPrice
}

// BuildRecord turns a raw listing into a normalized record.
func BuildRecord(raw models.RawListing, country config.Country, extractedAt time.Time) models.ProductRecord {
	rec := models.ProductRecord{
		ProductID:     raw.ProductID,
		Title:         raw.Title,
		Link:          resolveLink(country.BaseURL(), raw.Link),
		Price:         parseAmount(raw.PriceText, raw.PriceCents),
		OriginalPrice: parseAmount(raw.OriginalPriceText, raw.OriginalCents),
		Currency:      country.Currency,
		Seller:        stripSellerPrefix(raw.Seller),
		Location:      raw.Location,
		Condition:     raw.Condition,
		SoldQuantity:  ParseSold(raw.SoldText),
		Installments:  raw.Installments,
		Rating:        parseRating(raw.RatingText),
		ReviewsCount:  parseInteger(raw.ReviewsText),
		ImageURL:      raw.ImageURL,
		FreeShipping:  raw.FreeShipping,
		Promotions:    raw.Promotions,
		GuessedFields: raw.Guessed,
		Position:      raw.Position,
		ExtractedAt:   extractedAt,
	}
	rec.PublicationType = publicationTypeFromInstallments(raw.Installments)
	return NormalizeRecord(rec, country.CurrencySymbol)
}

// NormalizeRecord cleans text fields and recomputes every derived field from
// the numeric prices. Applying it to its own output changes nothing.
func NormalizeRecord(rec models.ProductRecord, currencySymbol string) models.ProductRecord {
	rec.ProductID = strings.ToUpper(strings.TrimSpace(rec.ProductID))
	rec.Title = helpers.CollapseSpaces(rec.Title)
	rec.Seller = cleanSeller(rec.Seller)
	rec.Location = helpers.CollapseSpaces(rec.Location)
	rec.Condition = helpers.CollapseSpaces(rec.Condition)
	rec.Installments = helpers.CollapseSpaces(rec.Installments)

	rec.PriceFormatted = FormatPrice(rec.Price, currencySymbol)
	rec.HasDiscount, rec.DiscountPercentage = Discount(rec.Price, rec.OriginalPrice)
	if rec.PublicationType == "" {
		rec.PublicationType = models.TierClassic
	}
	rec.Status = models.StatusActive
	return rec
}

func cleanSeller(s string) string {
	s = helpers.CollapseSpaces(s)
	if s == "" {
		return models.DefaultSeller
	}
	return s
}

// stripSellerPrefix removes one "Por"/"Vendido por" label from the seller text
// read off a search card.
func stripSellerPrefix(s string) string {
	s = helpers.CollapseSpaces(s)
	lower := strings.ToLower(s)
	for _, p := range sellerPrefixes {
		if strings.HasPrefix(lower, p) {
			return strings.TrimSpace(s[len(p):])
		}
	}
	return s
}

// publicationTypeFromInstallments guesses the tier from the search card:
// interest-free installments are only offered on premium listings.
func publicationTypeFromInstallments(installments string) string {
	lower := strings.ToLower(installments)
	if strings.Contains(lower, "sin interés") || strings.Contains(lower, "sin interes") || strings.Contains(lower, "sem juros") {
		return models.TierPremium
	}
	return models.TierClassic
}

func resolveLink(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.IsAbs() {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	return b.ResolveReference(u).String()
}

// ParseSold reads a sold count such as "+100 vendidos" or "+5mil vendidos".
func ParseSold(s string) *int {
	m := soldPattern.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return nil
	}
	if m[2] != "" {
		v *= 1000
	}
	n := int(math.Round(v))
	return &n
}

func parseRating(s string) *float64 {
	m := ratingPattern.FindString(s)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
	if err != nil || v < 0 || v > 5 {
		return nil
	}
	return &v
}

func parseInteger(s string) *int {
	m := integerPattern.FindString(s)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(stripSeparators(m))
	if err != nil {
		return nil
	}
	return &n
}
