package crawler

import "sjsage522/meliscraper/config"

// DefaultSelectors returns the fallback chains for the marketplace's search
// result layouts: the poly-card layout first, then the ui-search-result
// layout, then generic markup.
func DefaultSelectors() Selectors {
	return Selectors{
		ListingContainers: []string{
			"div.poly-card",
			"li.ui-search-layout__item",
			"div.ui-search-result",
			"article",
		},
		NoResults: []string{
			".ui-search-rescue",
			".ui-search-rescue__info",
		},
		TitleHandlers: []ElementHandler{
			Text("a.poly-component__title"),
			Text(".poly-component__title-wrapper a"),
			Text("a.ui-search-item__group__element h2"),
			Text("h2.ui-search-item__title"),
			Text(".ui-search-item__title"),
			Attr("a[title]", "title"),
			Text("h2 a"),
			Text("h3 a"),
			Text("a h2"),
			Text("a h3"),
		},
		LinkHandlers: []ElementHandler{
			IDLink("a.poly-component__title"),
			IDLink("a.ui-search-link"),
			IDLink("a.ui-search-item__group__element"),
			IDLink("a[href]"),
		},
		PriceHandlers: []ElementHandler{
			Text(".poly-price__current .andes-money-amount__fraction"),
			Text(".ui-search-price__second-line .andes-money-amount__fraction"),
			Text(".andes-money-amount:not(.andes-money-amount--previous) .andes-money-amount__fraction"),
			Text(".price-tag:not(.price-tag__del) .price-tag-fraction"),
		},
		PriceCentsHandlers: []ElementHandler{
			Text(".poly-price__current .andes-money-amount__cents"),
			Text(".ui-search-price__second-line .andes-money-amount__cents"),
			Text(".andes-money-amount:not(.andes-money-amount--previous) .andes-money-amount__cents"),
		},
		OriginalPriceHandlers: []ElementHandler{
			Text("s.andes-money-amount--previous .andes-money-amount__fraction"),
			Text(".andes-money-amount--previous .andes-money-amount__fraction"),
			Text(".ui-search-price__original-value .andes-money-amount__fraction"),
			Text(".price-tag__del .price-tag-fraction"),
		},
		OriginalCentsHandlers: []ElementHandler{
			Text(".andes-money-amount--previous .andes-money-amount__cents"),
		},
		SellerHandlers: []ElementHandler{
			Text(".poly-component__seller"),
			Text(".ui-search-official-store-label"),
			Text(".ui-search-item__brand-discoverability"),
			Text(".ui-search-item__group__element--seller"),
		},
		LocationHandlers: []ElementHandler{
			Text(".poly-component__location"),
			Text(".ui-search-item__location"),
			Text(".ui-search-item__location-label"),
		},
		ConditionHandlers: []ElementHandler{
			Text(".poly-component__item-condition"),
			Text(".ui-search-item__group__element--condition"),
			Text(".ui-search-item__details"),
		},
		SoldHandlers: []ElementHandler{
			Text(".poly-component__sold"),
			Text(".ui-search-item__sold-quantity"),
		},
		InstallmentsHandlers: []ElementHandler{
			Text(".poly-price__installments"),
			Text(".ui-search-installments"),
			Text(".ui-search-item__group__element--installments"),
		},
		RatingHandlers: []ElementHandler{
			Text(".poly-reviews__rating"),
			Text(".ui-search-reviews__rating-number"),
		},
		ReviewsHandlers: []ElementHandler{
			Text(".poly-reviews__total"),
			Text(".ui-search-reviews__amount"),
		},
		ImageHandlers: []ElementHandler{
			Attr("img.poly-component__picture", "data-src"),
			Attr("img.poly-component__picture", "src"),
			Attr("img.ui-search-result-image__element", "data-src"),
			Attr("img.ui-search-result-image__element", "src"),
			Attr("img", "data-src"),
			Attr("img", "src"),
		},
		FreeShipping:  ".poly-component__shipping, .ui-search-item__shipping, .ui-pb-highlight, [class*='shipping']",
		Promotions:    ".poly-component__highlight, .ui-search-item__highlight-label, .poly-component__ads-promotions, [class*='highlight-label']",
		MetadataGroup: ".poly-card__content, .ui-search-result__content, .ui-search-item__group, .ui-search-result__content-wrapper",
	}
}

// NewCrawlerConfig builds the crawler configuration from the application
// configuration.
func NewCrawlerConfig(cfg *config.Config) CrawlerConfig {
	maxItems := cfg.MaxItemsPerPage
	if maxItems <= 0 || maxItems > MaxListingsPerPage {
		maxItems = MaxListingsPerPage
	}
	return CrawlerConfig{
		Selectors:         DefaultSelectors(),
		MaxItems:          maxItems,
		MinPrice:          cfg.MinPrice,
		MaxPrice:          cfg.MaxPrice,
		IncludePromotions: cfg.IncludePromotions,
		NavigationTimeout: cfg.NavigationTimeout,
		SelectorTimeout:   cfg.SelectorTimeout,
	}
}
