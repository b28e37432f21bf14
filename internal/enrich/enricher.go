package enrich

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"sjsage522/meliscraper/helpers"
	"sjsage522/meliscraper/internal/analysis"
	"sjsage522/meliscraper/internal/crawler"
	"sjsage522/meliscraper/internal/models"
	"sjsage522/meliscraper/logger"
	"sjsage522/meliscraper/pkg/errors"
)

const pageSource = "product_page"

// Options configures an Enricher.
type Options struct {
	// StoreURL is the storefront root used to build /p/{id} product URLs.
	StoreURL          string
	RatePerSecond     float64
	NavigationTimeout time.Duration
	CurrencySymbol    string
	IncludeSellerData bool
}

// Enricher obtains per-item details. It tries the item API, then the product
// page, then settles for a stub; it never fails.
type Enricher struct {
	api     ItemAPI
	limiter *rate.Limiter
	opts    Options
	log     *logger.Logger
	now     func() time.Time
}

// NewEnricher creates an enricher. api may be nil to skip straight to the
// product page.
func NewEnricher(api ItemAPI, opts Options, log *logger.Logger) *Enricher {
	if log == nil {
		log = logger.Nop()
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	return &Enricher{
		api:     api,
		limiter: rate.NewLimiter(limit, 1),
		opts:    opts,
		log:     log,
		now:     time.Now,
	}
}

// Enrich fetches the details of rec and merges them in. page is the caller's
// tab, used for the product-page fallback; it may be nil.
func (e *Enricher) Enrich(ctx context.Context, page crawler.Page, rec models.ProductRecord) models.ProductRecord {
	detail := e.FetchDetail(ctx, page, rec.ProductID, rec.Link)
	return Merge(rec, detail, e.opts.CurrencySymbol)
}

// FetchDetail runs the degradation chain for one product id.
func (e *Enricher) FetchDetail(ctx context.Context, page crawler.Page, productID, link string) models.ProductDetail {
	log := e.log.WithField("product_id", productID)

	if e.api != nil {
		if e.api.Blocked() {
			log.Debug().Msg("Item API blocked, skipping to product page")
		} else {
			detail, err := e.fromAPI(ctx, productID)
			if err == nil {
				return detail
			}
			log.Warn().Err(err).Msg("Item API failed, trying product page")
		}
	}

	if page != nil {
		detail, err := e.fromPage(ctx, page, productID, link)
		if err == nil {
			return detail
		}
		log.Warn().Err(err).Msg("Product page extraction failed")
	}

	return models.ProductDetail{
		ProductID:   productID,
		Source:      models.SourceStub,
		Error:       models.ErrExtractDetails,
		LastUpdated: e.now().UTC(),
	}
}

func (e *Enricher) fromAPI(ctx context.Context, productID string) (models.ProductDetail, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return models.ProductDetail{}, errors.NewTimeout(apiSource, "rate limiter wait", err)
	}
	item, err := e.api.GetItem(ctx, productID)
	if err != nil {
		return models.ProductDetail{}, err
	}

	detail := detailFromItem(item)
	detail.LastUpdated = e.now().UTC()

	if e.opts.IncludeSellerData && item.SellerID != 0 {
		if err := e.limiter.Wait(ctx); err == nil {
			user, err := e.api.GetUser(ctx, item.SellerID)
			if err != nil {
				e.log.Debug().Err(err).Int64("seller_id", item.SellerID).Msg("Seller lookup failed")
			} else {
				detail.Seller = sellerFromUser(user)
			}
		}
	}
	return detail, nil
}

func (e *Enricher) fromPage(ctx context.Context, page crawler.Page, productID, link string) (models.ProductDetail, error) {
	url := helpers.FirstNonEmpty(link, strings.TrimRight(e.opts.StoreURL, "/")+"/p/"+productID)

	navCtx, cancel := context.WithCancel(ctx)
	if e.opts.NavigationTimeout > 0 {
		navCtx, cancel = context.WithTimeout(ctx, e.opts.NavigationTimeout)
	}
	defer cancel()

	if err := page.Navigate(navCtx, url); err != nil {
		return models.ProductDetail{}, err
	}
	html, err := page.HTML(navCtx)
	if err != nil {
		return models.ProductDetail{}, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.ProductDetail{}, errors.NewParsing(pageSource, "failed to parse product page", err)
	}

	detail, ok := parseDetailPage(doc, productID)
	if !ok {
		return models.ProductDetail{}, errors.NewEnrichment(pageSource, "no product title on "+url, nil)
	}
	detail.Permalink = url
	detail.LastUpdated = e.now().UTC()
	return detail, nil
}

func detailFromItem(item *Item) models.ProductDetail {
	detail := models.ProductDetail{
		ProductID:         item.ID,
		Source:            models.SourceAPI,
		Status:            item.Status,
		Title:             item.Title,
		Price:             item.Price,
		OriginalPrice:     item.OriginalPrice,
		CurrencyID:        item.CurrencyID,
		AvailableQuantity: item.AvailableQuantity,
		SoldQuantity:      item.SoldQuantity,
		Condition:         item.Condition,
		Permalink:         item.Permalink,
		Thumbnail:         item.Thumbnail,
		CategoryID:        item.CategoryID,
		ListingTypeID:     item.ListingTypeID,
		Warranty:          item.Warranty,
		Shipping:          &models.Shipping{Mode: "unknown", Tags: []string{}},
		Attributes:        []models.Attribute{},
	}
	if item.Shipping != nil {
		detail.Shipping.FreeShipping = item.Shipping.FreeShipping
		if item.Shipping.Mode != "" {
			detail.Shipping.Mode = item.Shipping.Mode
		}
		if item.Shipping.Tags != nil {
			detail.Shipping.Tags = item.Shipping.Tags
		}
	}
	for _, a := range item.Attributes {
		detail.Attributes = append(detail.Attributes, models.Attribute{ID: a.ID, Name: a.Name, Value: a.Value()})
	}
	return detail
}

func sellerFromUser(user *User) *models.SellerInfo {
	info := &models.SellerInfo{ID: user.ID, Nickname: user.Nickname, Level: "unknown"}
	if rep := user.SellerReputation; rep != nil {
		if rep.LevelID != "" {
			info.Level = rep.LevelID
		}
		info.PowerLevel = rep.PowerSellerStatus
		info.Completed = rep.Transactions.Completed
	}
	return info
}

// Merge attaches detail to rec and fills the record's gaps from it. Values
// read from the search page are kept; a stub detail changes nothing but the
// attachment.
func Merge(rec models.ProductRecord, detail models.ProductDetail, currencySymbol string) models.ProductRecord {
	d := detail
	rec.Details = &d
	if detail.Source == models.SourceStub {
		return rec
	}

	if rec.Price == nil && detail.Price != nil {
		p := *detail.Price
		rec.Price = &p
	}
	if rec.OriginalPrice == nil && detail.OriginalPrice != nil {
		p := *detail.OriginalPrice
		rec.OriginalPrice = &p
	}
	if rec.SoldQuantity == nil && detail.SoldQuantity != nil {
		n := *detail.SoldQuantity
		rec.SoldQuantity = &n
	}
	if rec.Condition == "" && detail.Condition != "" && detail.Condition != "unknown" {
		rec.Condition = detail.Condition
	}
	if detail.CategoryID != "" {
		rec.CategoryID = detail.CategoryID
	}
	if detail.ListingTypeID != "" {
		rec.PublicationType = analysis.PublicationTier(detail.ListingTypeID)
	}
	if detail.Shipping != nil && detail.Shipping.FreeShipping {
		rec.FreeShipping = true
	}
	if (rec.Seller == "" || rec.Seller == models.DefaultSeller) && detail.Seller != nil && detail.Seller.Nickname != "" {
		rec.Seller = detail.Seller.Nickname
	}
	rec.ImageURL = helpers.FirstNonEmpty(rec.ImageURL, detail.Thumbnail)
	rec.Link = helpers.FirstNonEmpty(rec.Link, detail.Permalink)
	return crawler.NormalizeRecord(rec, currencySymbol)
}
