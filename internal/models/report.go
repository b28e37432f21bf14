package models

import "time"

// MarketReport aggregates a completed batch of records.
type MarketReport struct {
	TotalProducts          int                    `json:"total_products"`
	PriceAnalysis          PriceAnalysis          `json:"price_analysis"`
	MarketConcentration    MarketConcentration    `json:"market_concentration"`
	CategoryDistribution   []CategoryShare        `json:"category_distribution"`
	ArbitrageOpportunities []ArbitrageOpportunity `json:"arbitrage_opportunities"`
	GeneratedAt            time.Time              `json:"generated_at"`
}

// PriceAnalysis holds the price distribution.
type PriceAnalysis struct {
	Min              float64 `json:"min"`
	Max              float64 `json:"max"`
	Average          float64 `json:"average"`
	Median           float64 `json:"median"`
	Q1               float64 `json:"q1"`
	Q3               float64 `json:"q3"`
	PriceRange       string  `json:"price_range"`
	AverageFormatted string  `json:"average_formatted"`
}

// MarketConcentration describes how listings spread over sellers.
type MarketConcentration struct {
	TopSellers               []SellerCount `json:"top_sellers"`
	TotalSellers             int           `json:"total_sellers"`
	AverageProductsPerSeller string        `json:"average_products_per_seller"`
}

// SellerCount is one seller with its listing count.
type SellerCount struct {
	Seller       string `json:"seller"`
	ProductCount int    `json:"product_count"`
}

// CategoryShare is one category with its share of the batch.
type CategoryShare struct {
	Category   string `json:"category"`
	Count      int    `json:"count"`
	Percentage string `json:"percentage"`
}

// ArbitrageOption is one side of an arbitrage opportunity.
type ArbitrageOption struct {
	ProductID string  `json:"product_id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Seller    string  `json:"seller"`
	Link      string  `json:"link,omitempty"`
}

// ArbitrageOpportunity pairs the cheapest and most expensive listing of a
// group of similar titles.
type ArbitrageOpportunity struct {
	ProductGroup         string          `json:"product_group"`
	CheapestOption       ArbitrageOption `json:"cheapest_option"`
	MostExpensiveOption  ArbitrageOption `json:"most_expensive_option"`
	PriceDifference      string          `json:"price_difference"`
	PercentageDifference string          `json:"percentage_difference"`
	PotentialProfit      string          `json:"potential_profit"`
	TotalVariants        int             `json:"total_variants"`
	TitleSimilarity      float64         `json:"title_similarity"`
}
