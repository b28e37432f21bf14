package models

import "time"

// Sources of a ProductDetail
const (
	SourceAPI            = "api"
	SourceDirectScraping = "direct_scraping"
	SourceStub           = "stub"
)

// ErrExtractDetails marks a stub detail record.
const ErrExtractDetails = "failed_to_extract_details"

// ProductDetail is the richer per-item record obtained during enrichment.
type ProductDetail struct {
	ProductID         string      `json:"product_id"`
	Source            string      `json:"source"`
	Status            string      `json:"status,omitempty"`
	Title             string      `json:"title,omitempty"`
	Price             *float64    `json:"price,omitempty"`
	OriginalPrice     *float64    `json:"original_price,omitempty"`
	CurrencyID        string      `json:"currency_id,omitempty"`
	AvailableQuantity *int        `json:"available_quantity,omitempty"`
	SoldQuantity      *int        `json:"sold_quantity,omitempty"`
	Condition         string      `json:"condition,omitempty"`
	Permalink         string      `json:"permalink,omitempty"`
	Thumbnail         string      `json:"thumbnail,omitempty"`
	CategoryID        string      `json:"category_id,omitempty"`
	ListingTypeID     string      `json:"listing_type_id,omitempty"`
	Warranty          string      `json:"warranty,omitempty"`
	Shipping          *Shipping   `json:"shipping,omitempty"`
	Attributes        []Attribute `json:"attributes,omitempty"`
	Seller            *SellerInfo `json:"seller,omitempty"`
	Error             string      `json:"error,omitempty"`
	LastUpdated       time.Time   `json:"last_updated"`
}

// Shipping describes delivery options from the item API.
type Shipping struct {
	FreeShipping bool     `json:"free_shipping"`
	Mode         string   `json:"mode"`
	Tags         []string `json:"tags"`
}

// Attribute is one item attribute from the item API.
type Attribute struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// SellerInfo is the seller reputation summary.
type SellerInfo struct {
	ID         int64  `json:"id"`
	Nickname   string `json:"nickname,omitempty"`
	Level      string `json:"level"`
	PowerLevel string `json:"power_seller_status,omitempty"`
	Completed  int    `json:"completed_transactions,omitempty"`
}
