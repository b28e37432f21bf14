package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sjsage522/meliscraper/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	// Search input
	SearchTerms     []string
	Country         string
	MaxPages        int
	MinPrice        float64
	MaxPrice        float64
	MaxItemsPerPage int

	// Feature toggles
	IncludeCommissionAnalysis bool
	IncludePromotions         bool
	IncludeSellerData         bool
	DetectArbitrage           bool
	GenerateReport            bool

	// Browser configuration
	Browser           string
	ChromeBin         string
	MaxConcurrency    int
	NavigationTimeout time.Duration
	SelectorTimeout   time.Duration

	// Product API configuration
	APIBaseURL      string
	APITimeout      time.Duration
	APIRatePerSec   float64
	APIBlockTime    time.Duration
	CommissionRates string

	// Arbitrage thresholds
	ArbitrageMinPercent    float64
	ArbitrageMinDifference float64

	// Memcache configuration
	MemcacheAddr string

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Output
	DatasetPath string
	ReportPath  string

	// Environment
	Environment string

	invalid []string
}

// defaults holds every known key with its default value. LoadConfig applies
// them in order and lets the environment override each one.
var defaults = []struct {
	key   string
	value string
}{
	{"SEARCH_TERMS", "memoria ram"},
	{"COUNTRY", "argentina"},
	{"MAX_PAGES", "1"},
	{"MIN_PRICE", "0"},
	{"MAX_PRICE", "999999999"},
	{"MAX_ITEMS_PER_PAGE", "15"},
	{"INCLUDE_COMMISSION_ANALYSIS", "true"},
	{"INCLUDE_PROMOTIONS", "true"},
	{"INCLUDE_SELLER_DATA", "true"},
	{"DETECT_ARBITRAGE", "true"},
	{"GENERATE_REPORT", "true"},
	{"BROWSER", "chrome"},
	{"CHROME_BIN", ""},
	{"MAX_CONCURRENCY", "2"},
	{"NAVIGATION_TIMEOUT_SECONDS", "30"},
	{"SELECTOR_TIMEOUT_SECONDS", "15"},
	{"API_BASE_URL", "https://api.mercadolibre.com"},
	{"API_TIMEOUT_SECONDS", "10"},
	{"API_RATE_PER_SECOND", "5"},
	{"API_BLOCK_SECONDS", "300"},
	{"COMMISSION_RATES_FILE", ""},
	{"ARBITRAGE_MIN_PERCENT", "20"},
	{"ARBITRAGE_MIN_DIFFERENCE", "1000"},
	{"MEMCACHE_ADDR", ""},
	{"REDIS_ADDR", ""},
	{"REDIS_DB", "0"},
	{"REDIS_STREAM", "products"},
	{"REDIS_STREAM_COUNT", "1"},
	{"REDIS_STREAM_MAX_LENGTH", "1000"},
	{"DATASET_PATH", "./output/products.jsonl"},
	{"REPORT_PATH", "./output/market_report.json"},
	{"SCRAPER_ENVIRONMENT", "development"},
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	cfg := &Config{}
	for _, d := range defaults {
		cfg.Set(d.key, getEnv(d.key, d.value))
	}
	return cfg
}

// Set applies a single named option. Values that fail to parse are
// remembered and reported by Validate.
func (c *Config) Set(key, value string) {
	value = strings.TrimSpace(value)
	c.clearInvalid(key)

	switch key {
	case "SEARCH_TERMS":
		c.SearchTerms = splitTerms(value)
	case "COUNTRY":
		c.Country = value
	case "MAX_PAGES":
		c.MaxPages = c.parseInt(key, value)
	case "MIN_PRICE":
		c.MinPrice = c.parseFloat(key, value)
	case "MAX_PRICE":
		c.MaxPrice = c.parseFloat(key, value)
	case "MAX_ITEMS_PER_PAGE":
		c.MaxItemsPerPage = c.parseInt(key, value)
	case "INCLUDE_COMMISSION_ANALYSIS":
		c.IncludeCommissionAnalysis = c.parseBool(key, value)
	case "INCLUDE_PROMOTIONS":
		c.IncludePromotions = c.parseBool(key, value)
	case "INCLUDE_SELLER_DATA":
		c.IncludeSellerData = c.parseBool(key, value)
	case "DETECT_ARBITRAGE":
		c.DetectArbitrage = c.parseBool(key, value)
	case "GENERATE_REPORT":
		c.GenerateReport = c.parseBool(key, value)
	case "BROWSER":
		c.Browser = strings.ToLower(value)
	case "CHROME_BIN":
		c.ChromeBin = value
	case "MAX_CONCURRENCY":
		c.MaxConcurrency = c.parseInt(key, value)
	case "NAVIGATION_TIMEOUT_SECONDS":
		c.NavigationTimeout = time.Duration(c.parseInt(key, value)) * time.Second
	case "SELECTOR_TIMEOUT_SECONDS":
		c.SelectorTimeout = time.Duration(c.parseInt(key, value)) * time.Second
	case "API_BASE_URL":
		c.APIBaseURL = strings.TrimRight(value, "/")
	case "API_TIMEOUT_SECONDS":
		c.APITimeout = time.Duration(c.parseInt(key, value)) * time.Second
	case "API_RATE_PER_SECOND":
		c.APIRatePerSec = c.parseFloat(key, value)
	case "API_BLOCK_SECONDS":
		c.APIBlockTime = time.Duration(c.parseInt(key, value)) * time.Second
	case "COMMISSION_RATES_FILE":
		c.CommissionRates = value
	case "ARBITRAGE_MIN_PERCENT":
		c.ArbitrageMinPercent = c.parseFloat(key, value)
	case "ARBITRAGE_MIN_DIFFERENCE":
		c.ArbitrageMinDifference = c.parseFloat(key, value)
	case "MEMCACHE_ADDR":
		c.MemcacheAddr = value
	case "REDIS_ADDR":
		c.RedisAddr = value
	case "REDIS_DB":
		c.RedisDB = c.parseInt(key, value)
	case "REDIS_STREAM":
		c.RedisStream = value
	case "REDIS_STREAM_COUNT":
		c.RedisStreamCount = c.parseInt(key, value)
	case "REDIS_STREAM_MAX_LENGTH":
		c.RedisStreamMaxLength = c.parseInt(key, value)
	case "DATASET_PATH":
		c.DatasetPath = value
	case "REPORT_PATH":
		c.ReportPath = value
	case "SCRAPER_ENVIRONMENT":
		c.Environment = value
	default:
		c.invalid = append(c.invalid, key+" (unknown option)")
	}
}

// Validate checks the configuration and returns a configuration error
// describing the first problem found.
func (c *Config) Validate() error {
	if len(c.invalid) > 0 {
		return errors.NewConfiguration("invalid values: "+strings.Join(c.invalid, ", "), nil)
	}
	if len(c.SearchTerms) == 0 {
		return errors.NewConfiguration("at least one search term is required", nil)
	}
	if _, ok := LookupCountry(c.Country); !ok {
		return errors.NewConfiguration(fmt.Sprintf("unknown country %q", c.Country), nil)
	}
	if c.MinPrice < 0 || c.MaxPrice < 0 {
		return errors.NewConfiguration("price bounds must not be negative", nil)
	}
	if c.MinPrice > c.MaxPrice {
		return errors.NewConfiguration(fmt.Sprintf("min price %.2f is above max price %.2f", c.MinPrice, c.MaxPrice), nil)
	}
	if c.MaxPages < 1 {
		return errors.NewConfiguration("max pages must be at least 1", nil)
	}
	if c.MaxItemsPerPage < 1 {
		return errors.NewConfiguration("max items per page must be at least 1", nil)
	}
	if c.MaxConcurrency < 1 {
		return errors.NewConfiguration("max concurrency must be at least 1", nil)
	}
	if c.Browser != "chrome" && c.Browser != "http" {
		return errors.NewConfiguration(fmt.Sprintf("unknown browser %q", c.Browser), nil)
	}
	if c.RedisAddr != "" && c.RedisStreamCount < 1 {
		return errors.NewConfiguration("redis stream count must be at least 1", nil)
	}
	return nil
}

// SelectedCountry returns the configured country. Call Validate first.
func (c *Config) SelectedCountry() Country {
	country, _ := LookupCountry(c.Country)
	return country
}

// EnrichmentEnabled reports whether per-item API lookups are needed.
func (c *Config) EnrichmentEnabled() bool {
	return c.IncludeSellerData || c.IncludeCommissionAnalysis
}

func (c *Config) parseInt(key, value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		c.invalid = append(c.invalid, key)
		return 0
	}
	return n
}

func (c *Config) parseFloat(key, value string) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		c.invalid = append(c.invalid, key)
		return 0
	}
	return f
}

func (c *Config) parseBool(key, value string) bool {
	b, err := strconv.ParseBool(value)
	if err != nil {
		c.invalid = append(c.invalid, key)
		return false
	}
	return b
}

func (c *Config) clearInvalid(key string) {
	kept := c.invalid[:0]
	for _, k := range c.invalid {
		if k != key {
			kept = append(kept, k)
		}
	}
	c.invalid = kept
}

func splitTerms(value string) []string {
	var terms []string
	for _, t := range strings.Split(value, ",") {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
