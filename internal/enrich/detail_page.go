package enrich

import (
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/meliscraper/internal/crawler"
	"sjsage522/meliscraper/internal/models"
)

var firstNumber = regexp.MustCompile(`\d+`)

// detailSelectors are the product-page fallback chains.
var detailSelectors = struct {
	Title     []crawler.ElementHandler
	Price     []crawler.ElementHandler
	Available []crawler.ElementHandler
	Sold      []crawler.ElementHandler
	Condition []crawler.ElementHandler
}{
	Title: []crawler.ElementHandler{
		crawler.Text("h1.ui-pdp-title"),
		crawler.Text(".x-item-title-label"),
	},
	Price: []crawler.ElementHandler{
		crawler.Text(".ui-pdp-price__second-line .andes-money-amount__fraction"),
		crawler.Text(".andes-money-amount__fraction"),
		crawler.Text(".price-tag-fraction"),
	},
	Available: []crawler.ElementHandler{
		crawler.Text(".ui-pdp-buybox__quantity__available"),
		crawler.Text(`[data-testid="quantity-available"]`),
	},
	Sold: []crawler.ElementHandler{
		crawler.Text(".ui-pdp-subtitle"),
		crawler.Text(`[data-testid="sales-quantity"]`),
	},
	Condition: []crawler.ElementHandler{
		crawler.Text(".ui-pdp-color--BLACK.ui-pdp-size--XSMALL"),
	},
}

// parseDetailPage reads the limited field set available on a product page.
// ok is false when not even a title is present.
func parseDetailPage(doc *goquery.Document, productID string) (models.ProductDetail, bool) {
	root := doc.Selection
	detail := models.ProductDetail{
		ProductID: productID,
		Source:    models.SourceDirectScraping,
		Title:     crawler.ApplyHandlers(root, detailSelectors.Title),
		Condition: crawler.ApplyHandlers(root, detailSelectors.Condition),
	}
	if detail.Title == "" {
		return detail, false
	}
	if detail.Condition == "" {
		detail.Condition = "unknown"
	}

	if p, ok := crawler.ParsePrice(crawler.ApplyHandlers(root, detailSelectors.Price)); ok {
		detail.Price = &p
	}
	detail.AvailableQuantity = firstInt(crawler.ApplyHandlers(root, detailSelectors.Available))

	sold := crawler.ApplyHandlers(root, detailSelectors.Sold)
	if n := crawler.ParseSold(sold); n != nil {
		detail.SoldQuantity = n
	} else {
		detail.SoldQuantity = firstInt(sold)
	}
	return detail, true
}

func firstInt(s string) *int {
	m := firstNumber.FindString(s)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &n
}
