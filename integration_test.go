package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/meliscraper/config"
	"sjsage522/meliscraper/helpers"
	"sjsage522/meliscraper/internal/analysis"
	"sjsage522/meliscraper/internal/crawler"
	"sjsage522/meliscraper/internal/enrich"
	"sjsage522/meliscraper/internal/models"
	"sjsage522/meliscraper/services/cache"
	"sjsage522/meliscraper/services/publisher"
	"sjsage522/meliscraper/services/worker"
)

func listing(id, title, price, seller string) string {
	return fmt.Sprintf(`
<li class="ui-search-layout__item">
  <div class="poly-card">
    <div class="poly-card__content">
      <a class="poly-component__title" href="https://articulo.mercadolibre.com.ar/%s-item-_JM">%s</a>
      <span class="poly-component__seller">Por %s</span>
      <div class="poly-price__current"><span class="andes-money-amount"><span class="andes-money-amount__fraction">%s</span></span></div>
    </div>
  </div>
</li>`, id, title, seller, price)
}

func searchPage(items ...string) string {
	return `<!DOCTYPE html><html><head><title>Disco ssd | MercadoLibre</title></head><body><ol class="ui-search-layout">` +
		strings.Join(items, "") + `</ol></body></html>`
}

const productHTML = `<!DOCTYPE html><html><body>
<h1 class="ui-pdp-title">Disco SSD Kingston</h1>
<span class="ui-pdp-subtitle">Nuevo | +50 vendidos</span>
<span class="ui-pdp-buybox__quantity__available">(4 disponibles)</span>
</body></html>`

const itemPayload = `{
	"id": "MLA100000001",
	"title": "Disco SSD 480GB",
	"price": 10000,
	"category_id": "MLA1648",
	"listing_type_id": "gold_pro",
	"shipping": {"free_shipping": true}
}`

// newMarketplace serves search pages, product pages and the item API. Every
// item lookup but the first is rate limited.
func newMarketplace(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case path == "/items/MLA100000001":
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, itemPayload)
		case strings.HasPrefix(path, "/items/"):
			w.WriteHeader(http.StatusTooManyRequests)
		case path == "/disco-ssd":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			io.WriteString(w, searchPage(
				listing("MLA-100000001", "Disco SSD 480GB", "10.000", "Tienda Uno"),
				listing("MLA-100000002", "Disco SSD 480GB", "13.000", "Tienda Dos"),
			))
		case path == "/disco-ssd_Desde_51":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			io.WriteString(w, searchPage(
				listing("MLA-100000002", "Disco SSD 480GB", "13.000", "Tienda Dos"),
				listing("MLA-100000003", "Disco SSD 2TB NVMe", "40.000", "Tienda Uno"),
			))
		case strings.HasPrefix(path, "/MLA-"):
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			io.WriteString(w, productHTML)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

// redirectFetch sends every request to server, keeping the path.
func redirectFetch(server *httptest.Server) crawler.FetchFunc {
	return func(ctx context.Context, rawURL string) (io.Reader, error) {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, err
		}
		return helpers.FetchWithRandomHeaders(ctx, server.URL+u.Path)
	}
}

// TestIntegration runs the whole scrape over a fake marketplace
func TestIntegration(t *testing.T) {
	server := newMarketplace(t)
	ctx := context.Background()

	country, ok := config.LookupCountry("argentina")
	require.True(t, ok)

	memCache := cache.NewMemoryCache()
	api := enrich.NewAPIClient(server.URL, 5*time.Second, time.Minute, memCache, nil)
	enricher := enrich.NewEnricher(api, enrich.Options{
		StoreURL:          country.BaseURL(),
		NavigationTimeout: 5 * time.Second,
		CurrencySymbol:    country.CurrencySymbol,
	}, nil)

	dir := t.TempDir()
	datasetPath := filepath.Join(dir, "products.jsonl")
	dataset, err := publisher.NewFilePublisher(datasetPath)
	require.NoError(t, err)
	pubs := publisher.MultiPublisher{dataset}

	// Publish to Redis as well when it is running
	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer redisClient.Close()
	redisUp := redisClient.Ping(ctx).Err() == nil
	if redisUp {
		redisClient.Del(ctx, "test_integration:0")
		pubs = append(pubs, publisher.NewRedisPublisher("localhost:6379", 0, "test_integration", 1, 100))
	}

	sc := crawler.NewSearchCrawler(crawler.CrawlerConfig{
		Selectors:         crawler.DefaultSelectors(),
		MaxItems:          crawler.MaxListingsPerPage,
		MaxPrice:          999999999,
		NavigationTimeout: 5 * time.Second,
		SelectorTimeout:   5 * time.Second,
	}, country, nil)

	reportPath := filepath.Join(dir, "market_report.json")
	w := worker.NewWorker(&crawler.HTTPBrowser{Fetch: redirectFetch(server)}, sc, enricher, pubs, worker.Options{
		Terms:       []string{"disco ssd"},
		MaxPages:    2,
		Concurrency: 1,
		Commission:  true,
		Rates:       analysis.DefaultRateTable(),
		Report:      true,
		ReportOptions: analysis.ReportOptions{
			Thresholds:      analysis.DefaultThresholds(),
			DetectArbitrage: true,
			CurrencySymbol:  country.CurrencySymbol,
		},
		ReportPath: reportPath,
	}, nil)

	res, err := w.Run(ctx)
	require.NoError(t, err)
	require.NoError(t, pubs.Close())

	require.Len(t, res.Records, 3)
	assert.Equal(t, 0, res.FailedPages)

	first := res.Records[0]
	assert.Equal(t, "MLA100000001", first.ProductID)
	assert.Equal(t, models.SourceAPI, first.Details.Source)
	assert.Equal(t, "MLA1648", first.CategoryID)
	assert.Equal(t, models.TierGold, first.PublicationType)
	assert.True(t, first.FreeShipping)
	require.NotNil(t, first.Commission)
	assert.Equal(t, "1300.00", first.Commission.CommissionAmount)

	// The rate limit on the second lookup blocks the API for the rest of the run
	for _, rec := range res.Records[1:] {
		assert.Equal(t, models.SourceDirectScraping, rec.Details.Source, rec.ProductID)
		assert.Equal(t, "Disco SSD Kingston", rec.Details.Title)
		require.NotNil(t, rec.Commission)
	}
	_, err = memCache.Get(enrich.BlockKey)
	assert.NoError(t, err)

	saved, err := publisher.ReadDataset(datasetPath)
	require.NoError(t, err)
	require.Len(t, saved, 3)
	assert.Equal(t, "MLA100000003", saved[2].ProductID)

	require.NotNil(t, res.Report)
	assert.Equal(t, 3, res.Report.TotalProducts)
	require.Len(t, res.Report.ArbitrageOpportunities, 1)
	assert.Equal(t, "3000.00", res.Report.ArbitrageOpportunities[0].PriceDifference)
	assert.FileExists(t, reportPath)

	if redisUp {
		n, err := redisClient.XLen(ctx, "test_integration:0").Result()
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	}
}
