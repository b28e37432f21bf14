package analysis

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"sjsage522/meliscraper/helpers"
	"sjsage522/meliscraper/internal/models"
)

// PrintReport renders a report as plain-text tables.
func PrintReport(w io.Writer, report *models.MarketReport) {
	pa := report.PriceAnalysis

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Market report")
	t.AppendRows([]table.Row{
		{"Total products", report.TotalProducts},
		{"Price range", pa.PriceRange},
		{"Average", pa.AverageFormatted},
		{"Median", fmt.Sprintf("%.2f", pa.Median)},
		{"Q1 / Q3", fmt.Sprintf("%.2f / %.2f", pa.Q1, pa.Q3)},
		{"Sellers", report.MarketConcentration.TotalSellers},
		{"Products per seller", report.MarketConcentration.AverageProductsPerSeller},
		{"Generated at", report.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
	})
	t.Render()

	if len(report.MarketConcentration.TopSellers) > 0 {
		t = table.NewWriter()
		t.SetOutputMirror(w)
		t.SetTitle("Top sellers")
		t.AppendHeader(table.Row{"#", "Seller", "Products"})
		for i, s := range report.MarketConcentration.TopSellers {
			t.AppendRow(table.Row{i + 1, s.Seller, s.ProductCount})
		}
		t.Render()
	}

	if len(report.CategoryDistribution) > 0 {
		t = table.NewWriter()
		t.SetOutputMirror(w)
		t.SetTitle("Categories")
		t.AppendHeader(table.Row{"Category", "Products", "Share"})
		for _, c := range report.CategoryDistribution {
			t.AppendRow(table.Row{c.Category, c.Count, c.Percentage})
		}
		t.Render()
	}

	if len(report.ArbitrageOpportunities) > 0 {
		t = table.NewWriter()
		t.SetOutputMirror(w)
		t.SetTitle("Arbitrage opportunities")
		t.AppendHeader(table.Row{"Group", "Cheapest", "Most expensive", "Difference", "%", "Variants"})
		for _, o := range report.ArbitrageOpportunities {
			t.AppendRow(table.Row{
				o.ProductGroup,
				fmt.Sprintf("%.2f (%s)", o.CheapestOption.Price, o.CheapestOption.Seller),
				fmt.Sprintf("%.2f (%s)", o.MostExpensiveOption.Price, o.MostExpensiveOption.Seller),
				o.PriceDifference,
				o.PercentageDifference,
				o.TotalVariants,
			})
		}
		t.Render()
	}
}

// PrintRecords renders one row per record.
func PrintRecords(w io.Writer, records []models.ProductRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Pos", "ID", "Title", "Price", "Discount", "Seller", "Commission"})
	for _, r := range records {
		discount := ""
		if r.DiscountPercentage != nil {
			discount = fmt.Sprintf("%d%%", *r.DiscountPercentage)
		}
		commission := r.CommissionError
		if r.Commission != nil {
			commission = r.Commission.CommissionAmount
		}
		t.AppendRow(table.Row{r.Position, r.ProductID, helpers.Truncate(r.Title, 48), r.PriceFormatted, discount, r.Seller, commission})
	}
	t.AppendFooter(table.Row{"", "", "Total", len(records)})
	t.Render()
}
