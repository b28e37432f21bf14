package models

import "time"

// StatusActive is assigned to every listing found in search results. Presence
// in the results is taken to mean the item is available; stock is not checked.
const StatusActive = "active"

// DefaultSeller is used when no storefront label is found.
const DefaultSeller = "Vendedor particular"

// Publication tiers
const (
	TierClassic = "classic"
	TierGold    = "gold"
	TierPremium = "premium"
)

// RawListing holds the strings pulled from one listing element before any
// cleaning. It only lives for one extraction pass.
type RawListing struct {
	Position          int
	ProductID         string
	Title             string
	Link              string
	PriceText         string
	PriceCents        string
	OriginalPriceText string
	OriginalCents     string
	Seller            string
	Location          string
	Condition         string
	SoldText          string
	Installments      string
	RatingText        string
	ReviewsText       string
	ImageURL          string
	FreeShipping      bool
	Promotions        []string
	Guessed           []string
}

// ProductRecord is one accepted listing.
type ProductRecord struct {
	ProductID          string    `json:"product_id"`
	Title              string    `json:"title"`
	Link               string    `json:"link,omitempty"`
	Price              *float64  `json:"price"`
	PriceFormatted     string    `json:"price_formatted,omitempty"`
	OriginalPrice      *float64  `json:"original_price,omitempty"`
	HasDiscount        bool      `json:"has_discount"`
	DiscountPercentage *int      `json:"discount_percentage,omitempty"`
	Currency           string    `json:"currency,omitempty"`
	Seller             string    `json:"seller"`
	Location           string    `json:"location,omitempty"`
	Condition          string    `json:"condition,omitempty"`
	SoldQuantity       *int      `json:"sold_quantity,omitempty"`
	Installments       string    `json:"installments,omitempty"`
	Rating             *float64  `json:"rating,omitempty"`
	ReviewsCount       *int      `json:"reviews_count,omitempty"`
	ImageURL           string    `json:"image_url,omitempty"`
	PublicationType    string    `json:"publication_type,omitempty"`
	FreeShipping       bool      `json:"free_shipping"`
	Promotions         []string  `json:"promotions,omitempty"`
	GuessedFields      []string  `json:"guessed_fields,omitempty"`
	CategoryID         string    `json:"category_id,omitempty"`
	SearchTerm         string    `json:"search_term,omitempty"`
	Page               int       `json:"page,omitempty"`
	Position           int       `json:"position"`
	ExtractedAt        time.Time `json:"extracted_at"`
	Status             string    `json:"status"`

	Commission      *CommissionEstimate `json:"commission,omitempty"`
	CommissionError string              `json:"commission_error,omitempty"`
	Details         *ProductDetail      `json:"details,omitempty"`
}

// PriceValue returns the numeric price, treating a missing price as zero.
func (r ProductRecord) PriceValue() float64 {
	if r.Price == nil {
		return 0
	}
	return *r.Price
}

// CommissionEstimate is the marketplace fee estimate for one listing.
type CommissionEstimate struct {
	OriginalPrice        float64 `json:"original_price"`
	CommissionRate       float64 `json:"commission_rate"`
	CommissionPercentage string  `json:"commission_percentage"`
	CommissionAmount     string  `json:"commission_amount"`
	NetAmount            string  `json:"net_amount"`
	ProfitMargin         string  `json:"profit_margin"`
	PublicationType      string  `json:"publication_type"`
	CategoryID           string  `json:"category_id"`
}
