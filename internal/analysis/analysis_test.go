package analysis

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/meliscraper/internal/models"
	"sjsage522/meliscraper/pkg/errors"
)

func price(v float64) *float64 { return &v }

func record(id, title string, p float64, seller, category string) models.ProductRecord {
	return models.ProductRecord{
		ProductID:  id,
		Title:      title,
		Price:      price(p),
		Seller:     seller,
		CategoryID: category,
		Link:       "https://articulo.mercadolibre.com.ar/" + id,
	}
}

func TestCalculateCommission(t *testing.T) {
	table := RateTable{DefaultCategory: {Classic: 0.16, Gold: 0.14, Premium: 0.12}}

	estimate, err := CalculateCommission(100000, "", "", table)
	require.NoError(t, err)
	assert.Equal(t, 0.16, estimate.CommissionRate)
	assert.Equal(t, "16.0%", estimate.CommissionPercentage)
	assert.Equal(t, "16000.00", estimate.CommissionAmount)
	assert.Equal(t, "84000.00", estimate.NetAmount)
	assert.Equal(t, "84.0%", estimate.ProfitMargin)
	assert.Equal(t, models.TierClassic, estimate.PublicationType)
	assert.Equal(t, "unknown", estimate.CategoryID)
	assert.Equal(t, 100000.0, estimate.OriginalPrice)
}

func TestCalculateCommissionInvalidPrice(t *testing.T) {
	for _, p := range []float64{0, -10} {
		estimate, err := CalculateCommission(p, "MLA1051", "gold_pro", nil)
		assert.Nil(t, estimate)
		assert.ErrorIs(t, err, ErrInvalidPrice)
		assert.Equal(t, "invalid_price", err.Error())
	}
}

func TestCalculateCommissionUsesCategoryAndTier(t *testing.T) {
	tests := []struct {
		category    string
		listingType string
		rate        float64
		tier        string
	}{
		{"MLA1051", "gold_special", 0.11, models.TierGold},
		{"MLA1051", "gold_premium", 0.09, models.TierPremium},
		{"MLA1694", "free", 0.155, models.TierClassic},
		{"MLA9999", "gold_pro", 0.14, models.TierGold},
		{"MLA1430", models.TierPremium, 0.14, models.TierPremium},
	}

	for _, tt := range tests {
		t.Run(tt.category+"/"+tt.listingType, func(t *testing.T) {
			estimate, err := CalculateCommission(1000, tt.category, tt.listingType, DefaultRateTable())
			require.NoError(t, err)
			assert.Equal(t, tt.rate, estimate.CommissionRate)
			assert.Equal(t, tt.tier, estimate.PublicationType)
		})
	}
}

func TestApplyCommission(t *testing.T) {
	rec := record("MLA1", "x", 50000, "s", "MLA1648")
	rec.PublicationType = models.TierPremium
	ApplyCommission(&rec, DefaultRateTable())
	require.NotNil(t, rec.Commission)
	assert.Equal(t, "5500.00", rec.Commission.CommissionAmount)
	assert.Empty(t, rec.CommissionError)

	missing := models.ProductRecord{ProductID: "MLA2", Title: "y"}
	ApplyCommission(&missing, DefaultRateTable())
	assert.Nil(t, missing.Commission)
	assert.Equal(t, "invalid_price", missing.CommissionError)
}

func TestLoadRateTable(t *testing.T) {
	table, err := LoadRateTable("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRateTable(), table)

	path := filepath.Join(t.TempDir(), "rates.json5")
	content := `{
		// tools
		MLA407134: {classic: 0.2, gold: 0.18, premium: 0.15},
		default: {classic: 0.17, gold: 0.15, premium: 0.13},
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table, err = LoadRateTable(path)
	require.NoError(t, err)
	assert.Equal(t, 0.18, table.Lookup("MLA407134", models.TierGold))
	assert.Equal(t, 0.13, table.Lookup("MLA0", models.TierPremium))
	assert.Equal(t, 0.13, table.Lookup("MLA1051", models.TierClassic))

	bad := filepath.Join(t.TempDir(), "bad.json5")
	require.NoError(t, os.WriteFile(bad, []byte(`{default: {classic: 1.5}}`), 0o644))
	_, err = LoadRateTable(bad)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))

	unordered := filepath.Join(t.TempDir(), "unordered.json5")
	require.NoError(t, os.WriteFile(unordered, []byte(`{MLA1648: {classic: 0.1, gold: 0.12, premium: 0.08}}`), 0o644))
	_, err = LoadRateTable(unordered)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))

	_, err = LoadRateTable(filepath.Join(t.TempDir(), "missing.json5"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))
}

func TestPublicationTier(t *testing.T) {
	assert.Equal(t, models.TierPremium, PublicationTier("gold_premium"))
	assert.Equal(t, models.TierGold, PublicationTier("gold_special"))
	assert.Equal(t, models.TierClassic, PublicationTier("free"))
	assert.Equal(t, models.TierClassic, PublicationTier(""))
}

func TestGroupKey(t *testing.T) {
	assert.Equal(t, "memoria ram 16gb ddr4", GroupKey("  Memoria RAM, 16GB -- DDR4!! ", 50))
	assert.Equal(t, "teclado mecánico", GroupKey("Teclado Mecánico", 50))
	assert.Equal(t, "abc", GroupKey("abc def", 4))
	assert.Len(t, []rune(GroupKey("ñandú ñandú ñandú ñandú ñandú ñandú ñandú ñandú ñandú ñandú ñandú", 50)), 50)
}

func TestDetectArbitrage(t *testing.T) {
	records := []models.ProductRecord{
		record("MLA1", "Memoria RAM 16GB DDR4", 13000, "Tienda B", ""),
		record("MLA2", "Memoria RAM 16GB DDR4", 10000, "Tienda A", ""),
	}

	opportunities := DetectArbitrage(records, DefaultThresholds())
	require.Len(t, opportunities, 1)

	o := opportunities[0]
	assert.Equal(t, "memoria ram 16gb ddr4", o.ProductGroup)
	assert.Equal(t, "3000.00", o.PriceDifference)
	assert.Equal(t, "30.0%", o.PercentageDifference)
	assert.Equal(t, "2100.00", o.PotentialProfit)
	assert.Equal(t, 2, o.TotalVariants)
	assert.Equal(t, "MLA2", o.CheapestOption.ProductID)
	assert.Equal(t, 10000.0, o.CheapestOption.Price)
	assert.Equal(t, "MLA1", o.MostExpensiveOption.ProductID)
	assert.Equal(t, 1.0, o.TitleSimilarity)
}

func TestDetectArbitrageBelowThresholds(t *testing.T) {
	small := []models.ProductRecord{
		record("MLA1", "Mouse Logitech G203", 10000, "a", ""),
		record("MLA2", "Mouse Logitech G203", 10500, "b", ""),
	}
	assert.Empty(t, DetectArbitrage(small, DefaultThresholds()))

	cheap := []models.ProductRecord{
		record("MLA1", "Cable USB", 1000, "a", ""),
		record("MLA2", "Cable USB", 1900, "b", ""),
	}
	assert.Empty(t, DetectArbitrage(cheap, DefaultThresholds()))

	single := []models.ProductRecord{record("MLA1", "Monitor", 10000, "a", "")}
	assert.Empty(t, DetectArbitrage(single, DefaultThresholds()))
}

func TestDetectArbitrageSkipsMissingPrices(t *testing.T) {
	records := []models.ProductRecord{
		record("MLA1", "Monitor 24", 100000, "a", ""),
		{ProductID: "MLA2", Title: "Monitor 24", Seller: "b"},
	}
	assert.Empty(t, DetectArbitrage(records, DefaultThresholds()))
}

func TestDetectArbitrageSortsByDifference(t *testing.T) {
	records := []models.ProductRecord{
		record("MLA1", "Notebook", 500000, "a", ""),
		record("MLA2", "Notebook", 700000, "b", ""),
		record("MLA3", "Auriculares", 20000, "a", ""),
		record("MLA4", "Auriculares", 30000, "b", ""),
		record("MLA5", "Auriculares", 26000, "c", ""),
	}

	opportunities := DetectArbitrage(records, DefaultThresholds())
	require.Len(t, opportunities, 2)
	assert.Equal(t, "notebook", opportunities[0].ProductGroup)
	assert.Equal(t, "200000.00", opportunities[0].PriceDifference)
	assert.Equal(t, "auriculares", opportunities[1].ProductGroup)
	assert.Equal(t, 3, opportunities[1].TotalVariants)
}

func TestGenerateReport(t *testing.T) {
	records := []models.ProductRecord{
		record("MLA1", "Memoria RAM 16GB", 10000, "Kingston", "MLA1694"),
		record("MLA2", "Memoria RAM 16GB", 13000, "Corsair", "MLA1694"),
		record("MLA3", "Disco SSD 1TB", 40000, "Kingston", "MLA1648"),
		record("MLA4", "Mouse", 5000, "Logitech", ""),
		{ProductID: "MLA5", Title: "Sin precio", Seller: "Kingston"},
	}
	generatedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	report, err := GenerateReport(records, ReportOptions{
		Thresholds:      DefaultThresholds(),
		DetectArbitrage: true,
		CurrencySymbol:  "$",
		Now:             func() time.Time { return generatedAt },
	})
	require.NoError(t, err)

	assert.Equal(t, 5, report.TotalProducts)

	pa := report.PriceAnalysis
	assert.Equal(t, 5000.0, pa.Min)
	assert.Equal(t, 40000.0, pa.Max)
	assert.Equal(t, 17000.0, pa.Average)
	assert.Equal(t, 13000.0, pa.Median)
	assert.Equal(t, 10000.0, pa.Q1)
	assert.Equal(t, 40000.0, pa.Q3)
	assert.Equal(t, "$ 5.000 - $ 40.000", pa.PriceRange)
	assert.Equal(t, "$ 17.000", pa.AverageFormatted)

	mc := report.MarketConcentration
	assert.Equal(t, 3, mc.TotalSellers)
	assert.Equal(t, "1.7", mc.AverageProductsPerSeller)
	require.NotEmpty(t, mc.TopSellers)
	assert.Equal(t, models.SellerCount{Seller: "Kingston", ProductCount: 3}, mc.TopSellers[0])

	require.Len(t, report.CategoryDistribution, 2)
	assert.Equal(t, models.CategoryShare{Category: "MLA1694", Count: 2, Percentage: "40.0%"}, report.CategoryDistribution[0])
	assert.Equal(t, models.CategoryShare{Category: "MLA1648", Count: 1, Percentage: "20.0%"}, report.CategoryDistribution[1])

	require.Len(t, report.ArbitrageOpportunities, 1)
	assert.Equal(t, generatedAt, report.GeneratedAt)
}

func TestGenerateReportTopSellersCapped(t *testing.T) {
	var records []models.ProductRecord
	for i := 0; i < 15; i++ {
		records = append(records, record("MLA"+string(rune('A'+i)), "x", 100, "seller"+string(rune('A'+i)), ""))
	}

	report, err := GenerateReport(records, ReportOptions{Thresholds: DefaultThresholds()})
	require.NoError(t, err)
	assert.Len(t, report.MarketConcentration.TopSellers, topSellersLimit)
	assert.Equal(t, 15, report.MarketConcentration.TotalSellers)
	assert.Empty(t, report.ArbitrageOpportunities)
}

func TestGenerateReportEmpty(t *testing.T) {
	report, err := GenerateReport(nil, ReportOptions{})
	assert.Nil(t, report)
	assert.ErrorIs(t, err, ErrNoProducts)
}

func TestPrintReport(t *testing.T) {
	records := []models.ProductRecord{
		record("MLA1", "Memoria RAM 16GB", 10000, "Kingston", "MLA1694"),
		record("MLA2", "Memoria RAM 16GB", 13000, "Corsair", "MLA1694"),
	}
	report, err := GenerateReport(records, ReportOptions{Thresholds: DefaultThresholds(), DetectArbitrage: true, CurrencySymbol: "$"})
	require.NoError(t, err)

	var buf bytes.Buffer
	PrintReport(&buf, report)
	out := buf.String()
	assert.Contains(t, out, "Total products")
	assert.Contains(t, out, "Kingston")
	assert.Contains(t, out, "MLA1694")
	assert.Contains(t, out, "3000.00")

	buf.Reset()
	PrintRecords(&buf, records)
	assert.Contains(t, buf.String(), "MLA2")
}
