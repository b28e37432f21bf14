package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"sjsage522/meliscraper/helpers"
	"sjsage522/meliscraper/logger"
	"sjsage522/meliscraper/pkg/errors"
	"sjsage522/meliscraper/services/cache"
)

const apiSource = "items_api"

// BlockKey is the cache key set while the item API is rate limiting us.
const BlockKey = "meliscraper:api_blocked"

// Item is the subset of the item API payload the scraper reads.
type Item struct {
	ID                string   `json:"id"`
	Status            string   `json:"status"`
	Title             string   `json:"title"`
	Price             *float64 `json:"price"`
	OriginalPrice     *float64 `json:"original_price"`
	CurrencyID        string   `json:"currency_id"`
	AvailableQuantity *int     `json:"available_quantity"`
	SoldQuantity      *int     `json:"sold_quantity"`
	Condition         string   `json:"condition"`
	Permalink         string   `json:"permalink"`
	Thumbnail         string   `json:"thumbnail"`
	CategoryID        string   `json:"category_id"`
	ListingTypeID     string   `json:"listing_type_id"`
	Warranty          string   `json:"warranty"`
	SellerID          int64    `json:"seller_id"`
	Shipping          *struct {
		FreeShipping bool     `json:"free_shipping"`
		Mode         string   `json:"mode"`
		Tags         []string `json:"tags"`
	} `json:"shipping"`
	Attributes []ItemAttribute `json:"attributes"`
}

// ItemAttribute is one attribute of an item. The value may come in any of
// three shapes.
type ItemAttribute struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ValueName   string `json:"value_name"`
	ValueStruct *struct {
		Number float64 `json:"number"`
		Unit   string  `json:"unit"`
	} `json:"value_struct"`
	Values []struct {
		Name string `json:"name"`
	} `json:"values"`
}

// Value returns the first populated representation of the attribute value.
func (a ItemAttribute) Value() string {
	switch {
	case a.ValueName != "":
		return a.ValueName
	case a.ValueStruct != nil:
		return strconv.FormatFloat(a.ValueStruct.Number, 'f', -1, 64)
	case len(a.Values) > 0:
		return a.Values[0].Name
	}
	return ""
}

// User is the subset of the user API payload the scraper reads.
type User struct {
	ID               int64  `json:"id"`
	Nickname         string `json:"nickname"`
	SellerReputation *struct {
		LevelID           string `json:"level_id"`
		PowerSellerStatus string `json:"power_seller_status"`
		Transactions      struct {
			Completed int `json:"completed"`
		} `json:"transactions"`
	} `json:"seller_reputation"`
}

// ItemAPI is the product-detail collaborator.
type ItemAPI interface {
	GetItem(ctx context.Context, id string) (*Item, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	// Blocked reports whether calls are suspended after a rate limit.
	Blocked() bool
}

// APIClient calls the marketplace REST API.
type APIClient struct {
	client    *resty.Client
	cache     cache.CacheService
	blockTime time.Duration
	log       *logger.Logger
}

// NewAPIClient creates a client for baseURL. cacheSvc holds the rate-limit
// block flag and may be nil.
func NewAPIClient(baseURL string, timeout, blockTime time.Duration, cacheSvc cache.CacheService, log *logger.Logger) *APIClient {
	if log == nil {
		log = logger.Nop()
	}
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	client.SetHeader("user-agent", helpers.RandomUserAgent())
	client.SetHeader("accept", "application/json")

	return &APIClient{
		client:    client,
		cache:     cacheSvc,
		blockTime: blockTime,
		log:       log,
	}
}

// GetItem fetches /items/{id}.
func (c *APIClient) GetItem(ctx context.Context, id string) (*Item, error) {
	var item Item
	if err := c.get(ctx, "/items/"+id, &item); err != nil {
		return nil, err
	}
	if item.ID == "" || item.Title == "" {
		return nil, errors.NewSchema(apiSource, "item payload without id or title for "+id)
	}
	return &item, nil
}

// GetUser fetches /users/{id}.
func (c *APIClient) GetUser(ctx context.Context, id int64) (*User, error) {
	var user User
	if err := c.get(ctx, "/users/"+strconv.FormatInt(id, 10), &user); err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, errors.NewSchema(apiSource, fmt.Sprintf("user payload without id for %d", id))
	}
	return &user, nil
}

// Blocked reports whether the block flag is set.
func (c *APIClient) Blocked() bool {
	if c.cache == nil {
		return false
	}
	_, err := c.cache.Get(BlockKey)
	return err == nil
}

func (c *APIClient) get(ctx context.Context, path string, out interface{}) error {
	res, err := c.client.R().
		SetContext(ctx).
		Get(path)
	if err != nil {
		if ctx.Err() != nil {
			return errors.NewTimeout(apiSource, "request "+path+" cancelled", err)
		}
		return errors.NewNetwork(apiSource, "request "+path+" failed", err)
	}

	switch status := res.StatusCode(); {
	case status == http.StatusTooManyRequests:
		c.block()
		return errors.NewRateLimit(apiSource, c.blockTime)
	case status >= 500:
		return errors.NewNetwork(apiSource, fmt.Sprintf("request %s: status %d", path, status), nil)
	case status != http.StatusOK:
		return errors.NewEnrichment(apiSource, fmt.Sprintf("request %s: status %d", path, status), nil)
	}

	if err := json.Unmarshal(res.Body(), out); err != nil {
		return errors.NewSchema(apiSource, fmt.Sprintf("decode %s: %v", path, err))
	}
	return nil
}

func (c *APIClient) block() {
	if c.cache == nil || c.blockTime <= 0 {
		return
	}
	value := []byte(strconv.Itoa(int(c.blockTime.Seconds())))
	if err := c.cache.Set(BlockKey, value, c.blockTime); err != nil {
		c.log.Warn().Err(err).Msg("Failed to set API block flag")
		return
	}
	c.log.Warn().Dur("block_time", c.blockTime).Msg("Item API rate limited, suspending calls")
}
