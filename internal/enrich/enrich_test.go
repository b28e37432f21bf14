package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/meliscraper/internal/models"
	"sjsage522/meliscraper/pkg/errors"
	"sjsage522/meliscraper/services/cache"
)

const itemJSON = `{
	"id": "MLA123456789",
	"status": "active",
	"title": "Disco SSD 1TB",
	"price": 55000,
	"original_price": 70000,
	"currency_id": "ARS",
	"available_quantity": 12,
	"sold_quantity": 340,
	"condition": "new",
	"permalink": "https://articulo.mercadolibre.com.ar/MLA-123456789",
	"category_id": "MLA1648",
	"listing_type_id": "gold_pro",
	"seller_id": 42,
	"shipping": {"free_shipping": true, "mode": "me2", "tags": ["fulfillment"]},
	"attributes": [
		{"id": "BRAND", "name": "Marca", "value_name": "Kingston"},
		{"id": "CAPACITY", "name": "Capacidad", "value_struct": {"number": 1, "unit": "TB"}},
		{"id": "COLOR", "name": "Color", "values": [{"name": "Negro"}]}
	]
}`

const userJSON = `{
	"id": 42,
	"nickname": "TIENDA_OFICIAL",
	"seller_reputation": {"level_id": "5_green", "power_seller_status": "platinum", "transactions": {"completed": 9000}}
}`

func newAPIServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestAPIClientGetItem(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/items/MLA123456789":
			w.Write([]byte(itemJSON))
		case "/users/42":
			w.Write([]byte(userJSON))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	client := NewAPIClient(srv.URL, time.Second, time.Minute, cache.NewMemoryCache(), nil)

	item, err := client.GetItem(context.Background(), "MLA123456789")
	require.NoError(t, err)
	assert.Equal(t, "Disco SSD 1TB", item.Title)
	require.NotNil(t, item.Price)
	assert.Equal(t, 55000.0, *item.Price)
	require.Len(t, item.Attributes, 3)
	assert.Equal(t, "Kingston", item.Attributes[0].Value())
	assert.Equal(t, "1", item.Attributes[1].Value())
	assert.Equal(t, "Negro", item.Attributes[2].Value())

	user, err := client.GetUser(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "TIENDA_OFICIAL", user.Nickname)

	_, err = client.GetItem(context.Background(), "MLA000000000")
	assert.True(t, errors.IsType(err, errors.ErrorTypeEnrichment))
	assert.False(t, client.Blocked())
}

func TestAPIClientRateLimitSetsBlock(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	store := cache.NewMemoryCache()
	client := NewAPIClient(srv.URL, time.Second, 5*time.Minute, store, nil)

	_, err := client.GetItem(context.Background(), "MLA123456789")
	assert.True(t, errors.IsType(err, errors.ErrorTypeRateLimit))
	assert.True(t, client.Blocked())

	value, err := store.Get(BlockKey)
	require.NoError(t, err)
	assert.Equal(t, "300", string(value))
}

func TestAPIClientErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType errors.ErrorType
	}{
		{"server error", http.StatusBadGateway, "", errors.ErrorTypeNetwork},
		{"not found", http.StatusNotFound, "", errors.ErrorTypeEnrichment},
		{"malformed body", http.StatusOK, "{not json", errors.ErrorTypeSchema},
		{"missing title", http.StatusOK, `{"id": "MLA1"}`, errors.ErrorTypeSchema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			client := NewAPIClient(srv.URL, time.Second, time.Minute, nil, nil)
			_, err := client.GetItem(context.Background(), "MLA1")
			assert.True(t, errors.IsType(err, tt.wantType), "got %v", err)
			assert.False(t, client.Blocked())
		})
	}
}

type fakeAPI struct {
	item    *Item
	user    *User
	itemErr error
	userErr error
	blocked bool
	calls   int
}

func (f *fakeAPI) GetItem(ctx context.Context, id string) (*Item, error) {
	f.calls++
	return f.item, f.itemErr
}

func (f *fakeAPI) GetUser(ctx context.Context, id int64) (*User, error) {
	return f.user, f.userErr
}

func (f *fakeAPI) Blocked() bool { return f.blocked }

type fakePage struct {
	html    string
	navErr  error
	visited []string
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.visited = append(p.visited, url)
	return p.navErr
}
func (p *fakePage) WaitForSelector(ctx context.Context, selector string) error { return nil }
func (p *fakePage) HTML(ctx context.Context) (string, error)                  { return p.html, nil }
func (p *fakePage) Title(ctx context.Context) (string, error)                 { return "", nil }
func (p *fakePage) URL(ctx context.Context) (string, error)                   { return "", nil }
func (p *fakePage) Close() error                                              { return nil }

const productPage = `<html><body>
<h1 class="ui-pdp-title">Disco SSD 1TB Kingston</h1>
<span class="ui-pdp-subtitle">Nuevo | +1000 vendidos</span>
<span class="ui-pdp-buybox__quantity__available">(25 disponibles)</span>
<div class="ui-pdp-price__second-line"><span class="andes-money-amount__fraction">57.500</span></div>
</body></html>`

func testOptions() Options {
	return Options{
		StoreURL:          "https://www.mercadolibre.com.ar",
		CurrencySymbol:    "$",
		IncludeSellerData: true,
	}
}

func decodeItem(t *testing.T) *Item {
	t.Helper()
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/items/") {
			w.Write([]byte(itemJSON))
		}
	})
	item, err := NewAPIClient(srv.URL, time.Second, 0, nil, nil).GetItem(context.Background(), "MLA123456789")
	require.NoError(t, err)
	return item
}

func TestFetchDetailFromAPI(t *testing.T) {
	api := &fakeAPI{item: decodeItem(t), user: &User{ID: 42, Nickname: "TIENDA_OFICIAL"}}
	page := &fakePage{html: productPage}
	e := NewEnricher(api, testOptions(), nil)

	detail := e.FetchDetail(context.Background(), page, "MLA123456789", "")
	assert.Equal(t, models.SourceAPI, detail.Source)
	assert.Equal(t, "gold_pro", detail.ListingTypeID)
	require.NotNil(t, detail.Shipping)
	assert.True(t, detail.Shipping.FreeShipping)
	assert.Equal(t, []string{"fulfillment"}, detail.Shipping.Tags)
	require.NotNil(t, detail.Seller)
	assert.Equal(t, "TIENDA_OFICIAL", detail.Seller.Nickname)
	assert.Equal(t, "unknown", detail.Seller.Level)
	assert.Empty(t, page.visited)
	assert.False(t, detail.LastUpdated.IsZero())
}

func TestFetchDetailSellerLookupIsBestEffort(t *testing.T) {
	api := &fakeAPI{item: decodeItem(t), userErr: errors.NewNetwork("test", "down", nil)}
	e := NewEnricher(api, testOptions(), nil)

	detail := e.FetchDetail(context.Background(), nil, "MLA123456789", "")
	assert.Equal(t, models.SourceAPI, detail.Source)
	assert.Nil(t, detail.Seller)
}

func TestFetchDetailFallsBackToProductPage(t *testing.T) {
	tests := []struct {
		name string
		api  *fakeAPI
	}{
		{"api error", &fakeAPI{itemErr: errors.NewSchema("test", "bad payload")}},
		{"api blocked", &fakeAPI{blocked: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := &fakePage{html: productPage}
			e := NewEnricher(tt.api, testOptions(), nil)

			detail := e.FetchDetail(context.Background(), page, "MLA123456789", "")
			assert.Equal(t, models.SourceDirectScraping, detail.Source)
			assert.Equal(t, "Disco SSD 1TB Kingston", detail.Title)
			require.NotNil(t, detail.Price)
			assert.Equal(t, 57500.0, *detail.Price)
			require.NotNil(t, detail.AvailableQuantity)
			assert.Equal(t, 25, *detail.AvailableQuantity)
			require.NotNil(t, detail.SoldQuantity)
			assert.Equal(t, 1000, *detail.SoldQuantity)
			assert.Equal(t, "unknown", detail.Condition)
			assert.Equal(t, []string{"https://www.mercadolibre.com.ar/p/MLA123456789"}, page.visited)
		})
	}

	t.Run("blocked api is not called", func(t *testing.T) {
		api := &fakeAPI{blocked: true}
		NewEnricher(api, testOptions(), nil).FetchDetail(context.Background(), &fakePage{html: productPage}, "MLA1", "")
		assert.Zero(t, api.calls)
	})

	t.Run("listing link preferred", func(t *testing.T) {
		page := &fakePage{html: productPage}
		e := NewEnricher(nil, testOptions(), nil)
		detail := e.FetchDetail(context.Background(), page, "MLA1", "https://articulo.mercadolibre.com.ar/MLA-1")
		assert.Equal(t, []string{"https://articulo.mercadolibre.com.ar/MLA-1"}, page.visited)
		assert.Equal(t, "https://articulo.mercadolibre.com.ar/MLA-1", detail.Permalink)
	})
}

func TestFetchDetailStub(t *testing.T) {
	tests := []struct {
		name string
		page *fakePage
	}{
		{"navigation error", &fakePage{navErr: errors.NewNavigation("test", "boom", nil)}},
		{"page without title", &fakePage{html: "<html><body><p>Captcha</p></body></html>"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEnricher(&fakeAPI{blocked: true}, testOptions(), nil)
			detail := e.FetchDetail(context.Background(), tt.page, "MLA1", "")
			assert.Equal(t, models.SourceStub, detail.Source)
			assert.Equal(t, models.ErrExtractDetails, detail.Error)
			assert.Equal(t, "MLA1", detail.ProductID)
		})
	}

	t.Run("no page and no api", func(t *testing.T) {
		detail := NewEnricher(nil, testOptions(), nil).FetchDetail(context.Background(), nil, "MLA1", "")
		assert.Equal(t, models.SourceStub, detail.Source)
	})
}

func TestMerge(t *testing.T) {
	price := 60000.0
	base := models.ProductRecord{
		ProductID:       "MLA123456789",
		Title:           "Disco SSD 1TB",
		Price:           &price,
		Seller:          models.DefaultSeller,
		PublicationType: models.TierClassic,
		Status:          models.StatusActive,
	}

	t.Run("api detail fills gaps", func(t *testing.T) {
		api := &fakeAPI{item: decodeItem(t), user: &User{ID: 42, Nickname: "TIENDA_OFICIAL"}}
		e := NewEnricher(api, testOptions(), nil)

		rec := e.Enrich(context.Background(), nil, base)
		require.NotNil(t, rec.Details)
		assert.Equal(t, 60000.0, *rec.Price, "search page price wins")
		require.NotNil(t, rec.OriginalPrice)
		assert.Equal(t, 70000.0, *rec.OriginalPrice)
		assert.True(t, rec.HasDiscount)
		assert.Equal(t, "MLA1648", rec.CategoryID)
		assert.Equal(t, models.TierGold, rec.PublicationType)
		assert.True(t, rec.FreeShipping)
		assert.Equal(t, "TIENDA_OFICIAL", rec.Seller)
		assert.Equal(t, "new", rec.Condition)
		require.NotNil(t, rec.SoldQuantity)
		assert.Equal(t, 340, *rec.SoldQuantity)
		assert.Equal(t, "$ 60.000", rec.PriceFormatted)
	})

	t.Run("stub only attaches", func(t *testing.T) {
		stub := models.ProductDetail{ProductID: base.ProductID, Source: models.SourceStub, Error: models.ErrExtractDetails}
		rec := Merge(base, stub, "$")
		require.NotNil(t, rec.Details)
		assert.Equal(t, models.SourceStub, rec.Details.Source)
		assert.Equal(t, base.Title, rec.Title)
		assert.Equal(t, models.TierClassic, rec.PublicationType)
	})

	t.Run("price filled when missing", func(t *testing.T) {
		rec := base
		rec.Price = nil
		detailPrice := 57500.0
		out := Merge(rec, models.ProductDetail{Source: models.SourceDirectScraping, Price: &detailPrice}, "$")
		require.NotNil(t, out.Price)
		assert.Equal(t, 57500.0, *out.Price)
		assert.Nil(t, base.Details, "input record is not mutated")
	})
}

func TestParseDetailPage(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<html><body>
		<span class="x-item-title-label">Notebook Lenovo</span>
		<span class="ui-pdp-color--BLACK ui-pdp-size--XSMALL">Usado</span>
		<span class="price-tag-fraction">250.000</span>
	</body></html>`))
	require.NoError(t, err)

	detail, ok := parseDetailPage(doc, "MLA9")
	require.True(t, ok)
	assert.Equal(t, "Notebook Lenovo", detail.Title)
	assert.Equal(t, "Usado", detail.Condition)
	require.NotNil(t, detail.Price)
	assert.Equal(t, 250000.0, *detail.Price)
	assert.Nil(t, detail.AvailableQuantity)
	assert.Nil(t, detail.SoldQuantity)
}
