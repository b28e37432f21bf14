package crawler

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/meliscraper/config"
	"sjsage522/meliscraper/internal/models"
	"sjsage522/meliscraper/logger"
	"sjsage522/meliscraper/pkg/errors"
)

// SearchCrawler extracts product records from search-results pages of one
// marketplace site.
type SearchCrawler struct {
	cfg     CrawlerConfig
	country config.Country
	log     *logger.Logger
	now     func() time.Time
}

// NewSearchCrawler creates a crawler for country.
func NewSearchCrawler(cfg CrawlerConfig, country config.Country, log *logger.Logger) *SearchCrawler {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.MaxItems <= 0 || cfg.MaxItems > MaxListingsPerPage {
		cfg.MaxItems = MaxListingsPerPage
	}
	return &SearchCrawler{
		cfg:     cfg,
		country: country,
		log:     log.WithField("site", country.SiteID),
		now:     time.Now,
	}
}

// Country returns the site the crawler targets.
func (c *SearchCrawler) Country() config.Country {
	return c.country
}

// InRange reports whether rec's price lies within the configured range.
func (c *SearchCrawler) InRange(rec models.ProductRecord) bool {
	return InPriceRange(rec.Price, c.cfg.MinPrice, c.cfg.MaxPrice)
}

// ScrapePage loads one search-results page for term and returns its records.
// Navigation and wait failures come back as page-level errors; the caller
// treats them as an empty page.
func (c *SearchCrawler) ScrapePage(ctx context.Context, page Page, term string, pageNum int) ([]models.ProductRecord, error) {
	url := c.country.SearchURL(term, pageNum)
	log := c.log.WithFields(logger.Fields{"term": term, "page": pageNum})

	navCtx, cancel := withOptionalTimeout(ctx, c.cfg.NavigationTimeout)
	err := page.Navigate(navCtx, url)
	cancel()
	if err != nil {
		return nil, err
	}

	waitCtx, cancel := withOptionalTimeout(ctx, c.cfg.SelectorTimeout)
	err = page.WaitForSelector(waitCtx, c.readySelector())
	cancel()
	if err != nil {
		return nil, err
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.NewParsing(c.country.SiteID, "failed to parse search page", err)
	}

	if _, n := ResolveListingSelector(doc.Selection, c.cfg.Selectors.ListingContainers); n == 0 {
		title, _ := page.Title(ctx)
		log.Info().Str("url", url).Str("title", title).Msg("No listings on page")
		return nil, errors.NewNoResults(c.country.SiteID)
	}

	records := c.Extract(doc, term, pageNum)
	log.Info().Int("records", len(records)).Str("url", url).Msg("Page extracted")
	return records, nil
}

// Extract runs selector resolution, field extraction, normalization and the
// price-range filter over a document. A document with no recognizable
// listing container yields an empty slice.
func (c *SearchCrawler) Extract(doc *goquery.Document, term string, pageNum int) []models.ProductRecord {
	records := []models.ProductRecord{}

	selector, count := ResolveListingSelector(doc.Selection, c.cfg.Selectors.ListingContainers)
	if count == 0 {
		c.log.Debug().Msg("No listing container matched")
		return records
	}

	listings := doc.Find(selector)
	if listings.Length() > c.cfg.MaxItems {
		listings = listings.Slice(0, c.cfg.MaxItems)
	}
	c.log.Debug().Str("selector", selector).Int("matches", count).Int("reading", listings.Length()).Msg("Listing container resolved")

	extractedAt := c.now()
	for _, raw := range c.extractListings(listings) {
		if raw == nil {
			continue
		}
		rec := BuildRecord(*raw, c.country, extractedAt)
		if !c.InRange(rec) {
			c.log.Debug().Str("product_id", rec.ProductID).Float64("price", rec.PriceValue()).Msg("Outside price range")
			continue
		}
		rec.SearchTerm = term
		rec.Page = pageNum
		records = append(records, rec)
	}
	return records
}

// readySelector matches either a listing container or a no-results marker.
func (c *SearchCrawler) readySelector() string {
	parts := make([]string, 0, len(c.cfg.Selectors.ListingContainers)+len(c.cfg.Selectors.NoResults))
	parts = append(parts, c.cfg.Selectors.ListingContainers...)
	parts = append(parts, c.cfg.Selectors.NoResults...)
	return strings.Join(parts, ", ")
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
