package crawler

import (
	"sync"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/meliscraper/internal/models"
)

// ResolveListingSelector probes candidates in order and returns the first
// selector with at least one match, plus its match count. A zero count means
// the page holds no recognizable listings.
func ResolveListingSelector(root *goquery.Selection, candidates []string) (string, int) {
	for _, selector := range candidates {
		if n := root.Find(selector).Length(); n > 0 {
			return selector, n
		}
	}
	return "", 0
}

// extractListings reads each listing element in parallel. The result keeps
// DOM order; dropped candidates are nil.
func (c *SearchCrawler) extractListings(listings *goquery.Selection) []*models.RawListing {
	results := make([]*models.RawListing, listings.Length())
	var wg sync.WaitGroup

	listings.Each(func(i int, s *goquery.Selection) {
		wg.Add(1)
		go func(i int, s *goquery.Selection) {
			defer wg.Done()
			results[i] = c.extractListing(s, i+1)
		}(i, s)
	})

	wg.Wait()
	return results
}

// extractListing pulls every field out of one listing element. It returns nil
// when the title or the product identifier cannot be found.
func (c *SearchCrawler) extractListing(s *goquery.Selection, position int) *models.RawListing {
	sel := c.cfg.Selectors

	title := ApplyHandlers(s, sel.TitleHandlers)
	if title == "" {
		return nil
	}

	link := ApplyHandlers(s, sel.LinkHandlers)
	productID := ExtractProductID(link)
	if productID == "" {
		return nil
	}

	raw := &models.RawListing{
		Position:          position,
		ProductID:         productID,
		Title:             title,
		Link:              link,
		PriceText:         ApplyHandlers(s, sel.PriceHandlers),
		PriceCents:        ApplyHandlers(s, sel.PriceCentsHandlers),
		OriginalPriceText: ApplyHandlers(s, sel.OriginalPriceHandlers),
		OriginalCents:     ApplyHandlers(s, sel.OriginalCentsHandlers),
		Seller:            ApplyHandlers(s, sel.SellerHandlers),
		Location:          ApplyHandlers(s, sel.LocationHandlers),
		Condition:         ApplyHandlers(s, sel.ConditionHandlers),
		SoldText:          ApplyHandlers(s, sel.SoldHandlers),
		Installments:      ApplyHandlers(s, sel.InstallmentsHandlers),
		RatingText:        ApplyHandlers(s, sel.RatingHandlers),
		ReviewsText:       ApplyHandlers(s, sel.ReviewsHandlers),
		ImageURL:          ApplyHandlers(s, sel.ImageHandlers),
		FreeShipping:      hasFreeShipping(s, sel.FreeShipping),
	}
	if c.cfg.IncludePromotions {
		raw.Promotions = collectPromotions(s, sel.Promotions)
	}

	guessMissingFields(s, sel.MetadataGroup, raw)
	return raw
}
