package analysis

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"sjsage522/meliscraper/internal/crawler"
	"sjsage522/meliscraper/internal/models"
	"sjsage522/meliscraper/pkg/errors"
)

// ErrNoProducts is returned when a report is requested for an empty batch.
var ErrNoProducts = stderrors.New("no products to analyze")

// topSellersLimit caps the seller ranking in a report.
const topSellersLimit = 10

// ReportOptions configures GenerateReport.
type ReportOptions struct {
	Thresholds      Thresholds
	DetectArbitrage bool
	CurrencySymbol  string
	Now             func() time.Time
}

// GenerateReport aggregates a completed batch. Quartiles use ordinal rank on
// the sorted positive prices, without interpolation.
func GenerateReport(records []models.ProductRecord, opts ReportOptions) (*models.MarketReport, error) {
	if len(records) == 0 {
		return nil, ErrNoProducts
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	report := &models.MarketReport{
		TotalProducts:          len(records),
		PriceAnalysis:          priceAnalysis(records, opts.CurrencySymbol),
		MarketConcentration:    marketConcentration(records),
		CategoryDistribution:   categoryDistribution(records),
		ArbitrageOpportunities: []models.ArbitrageOpportunity{},
		GeneratedAt:            now().UTC(),
	}
	if opts.DetectArbitrage {
		report.ArbitrageOpportunities = DetectArbitrage(records, opts.Thresholds)
	}
	return report, nil
}

// SaveReport writes report as indented JSON, creating parent directories.
func SaveReport(path string, report *models.MarketReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.NewPublisher("report", "marshal report", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewPublisher("report", "create report directory", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.NewPublisher("report", "write "+path, err)
	}
	return nil
}

func priceAnalysis(records []models.ProductRecord, symbol string) models.PriceAnalysis {
	var prices []float64
	for _, rec := range records {
		if p := rec.PriceValue(); p > 0 {
			prices = append(prices, p)
		}
	}
	if len(prices) == 0 {
		return models.PriceAnalysis{}
	}
	sort.Float64s(prices)

	sum := 0.0
	for _, p := range prices {
		sum += p
	}
	n := len(prices)
	pa := models.PriceAnalysis{
		Min:     prices[0],
		Max:     prices[n-1],
		Average: sum / float64(n),
		Median:  prices[n/2],
		Q1:      prices[int(float64(n)*0.25)],
		Q3:      prices[int(float64(n)*0.75)],
	}
	pa.PriceRange = crawler.FormatPrice(&pa.Min, symbol) + " - " + crawler.FormatPrice(&pa.Max, symbol)
	pa.AverageFormatted = crawler.FormatPrice(&pa.Average, symbol)
	return pa
}

func marketConcentration(records []models.ProductRecord) models.MarketConcentration {
	counts := countBy(records, func(r models.ProductRecord) string { return r.Seller })

	mc := models.MarketConcentration{
		TopSellers:               []models.SellerCount{},
		TotalSellers:             len(counts),
		AverageProductsPerSeller: "0.0",
	}
	for i, c := range counts {
		if i == topSellersLimit {
			break
		}
		mc.TopSellers = append(mc.TopSellers, models.SellerCount{Seller: c.key, ProductCount: c.count})
	}
	if len(counts) > 0 {
		mc.AverageProductsPerSeller = fmt.Sprintf("%.1f", float64(len(records))/float64(len(counts)))
	}
	return mc
}

func categoryDistribution(records []models.ProductRecord) []models.CategoryShare {
	counts := countBy(records, func(r models.ProductRecord) string { return r.CategoryID })

	shares := make([]models.CategoryShare, 0, len(counts))
	for _, c := range counts {
		shares = append(shares, models.CategoryShare{
			Category:   c.key,
			Count:      c.count,
			Percentage: fmt.Sprintf("%.1f%%", float64(c.count)/float64(len(records))*100),
		})
	}
	return shares
}

type keyCount struct {
	key   string
	count int
}

// countBy counts non-empty keys and orders them by count, largest first, ties
// in first-seen order.
func countBy(records []models.ProductRecord, key func(models.ProductRecord) string) []keyCount {
	index := make(map[string]int)
	var counts []keyCount
	for _, rec := range records {
		k := key(rec)
		if k == "" {
			continue
		}
		if i, ok := index[k]; ok {
			counts[i].count++
			continue
		}
		index[k] = len(counts)
		counts = append(counts, keyCount{key: k, count: 1})
	}
	sort.SliceStable(counts, func(i, j int) bool { return counts[i].count > counts[j].count })
	return counts
}
