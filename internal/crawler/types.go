package crawler

import (
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// MaxListingsPerPage caps how many listing elements are read from one page.
const MaxListingsPerPage = 15

// productIDPattern matches the marketplace item code: site prefix (M + two
// letter country) and digits, with an optional dash in URLs. The code may be
// glued to the text before it, as in "item_MLA123456789".
var productIDPattern = regexp.MustCompile(`(M[A-Z]{2})-?(\d{6,})`)

// ElementHandler extracts one string from a listing element. An empty result
// means "not found here" and lets the next handler in a chain run.
type ElementHandler func(*goquery.Selection) string

// Selectors contains the ordered fallback chains for one marketplace layout
// family. Earlier entries belong to newer layouts.
type Selectors struct {
	// ListingContainers is probed in order; the first selector with matches wins.
	ListingContainers []string
	// NoResults marks a rendered page that has no listings at all.
	NoResults []string

	TitleHandlers         []ElementHandler
	LinkHandlers          []ElementHandler
	PriceHandlers         []ElementHandler
	PriceCentsHandlers    []ElementHandler
	OriginalPriceHandlers []ElementHandler
	OriginalCentsHandlers []ElementHandler
	SellerHandlers        []ElementHandler
	LocationHandlers      []ElementHandler
	ConditionHandlers     []ElementHandler
	SoldHandlers          []ElementHandler
	InstallmentsHandlers  []ElementHandler
	RatingHandlers        []ElementHandler
	ReviewsHandlers       []ElementHandler
	ImageHandlers         []ElementHandler

	// FreeShipping elements are scanned for a free-shipping phrase.
	FreeShipping string
	// Promotions elements are collected as promotional labels.
	Promotions string
	// MetadataGroup bounds the free-text heuristic scan.
	MetadataGroup string
}

// CrawlerConfig contains configuration for a search crawler
type CrawlerConfig struct {
	Selectors         Selectors
	MaxItems          int
	MinPrice          float64
	MaxPrice          float64
	IncludePromotions bool

	NavigationTimeout time.Duration
	SelectorTimeout   time.Duration
}
