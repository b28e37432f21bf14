package commands

import (
	"context"

	"github.com/spf13/cobra"

	"sjsage522/meliscraper/config"
	"sjsage522/meliscraper/internal/analysis"
	"sjsage522/meliscraper/internal/crawler"
	"sjsage522/meliscraper/internal/enrich"
	"sjsage522/meliscraper/logger"
	"sjsage522/meliscraper/services/cache"
	"sjsage522/meliscraper/services/publisher"
	"sjsage522/meliscraper/services/worker"
)

var scrapeOptions = []optionFlag{
	{name: "terms", key: "SEARCH_TERMS", usage: "comma separated search terms"},
	{name: "country", key: "COUNTRY", usage: "marketplace country name or code"},
	{name: "pages", key: "MAX_PAGES", usage: "result pages per term"},
	{name: "min-price", key: "MIN_PRICE", usage: "lowest accepted price"},
	{name: "max-price", key: "MAX_PRICE", usage: "highest accepted price"},
	{name: "items", key: "MAX_ITEMS_PER_PAGE", usage: "listings read per page (at most 15)"},
	{name: "browser", key: "BROWSER", usage: "page collaborator: chrome or http"},
	{name: "concurrency", key: "MAX_CONCURRENCY", usage: "browser tabs used in parallel"},
	{name: "commission", key: "INCLUDE_COMMISSION_ANALYSIS", usage: "estimate marketplace commissions", toggle: true},
	{name: "promotions", key: "INCLUDE_PROMOTIONS", usage: "collect promotion labels", toggle: true},
	{name: "seller-data", key: "INCLUDE_SELLER_DATA", usage: "look up seller reputation", toggle: true},
	{name: "arbitrage", key: "DETECT_ARBITRAGE", usage: "detect price arbitrage in the report", toggle: true},
	{name: "report", key: "GENERATE_REPORT", usage: "generate the market report", toggle: true},
	{name: "dataset", key: "DATASET_PATH", usage: "JSON lines output path, empty disables"},
	{name: "report-path", key: "REPORT_PATH", usage: "market report output path, empty disables"},
	{name: "rates", key: "COMMISSION_RATES_FILE", usage: "JSON5 commission rate table"},
}

var printRecords *bool

func init() {
	registerOptionFlags(scrapeCmd.Flags(), scrapeOptions)
	printRecords = scrapeCmd.Flags().Bool("print", false, "print the scraped records as a table")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--terms a,b] [--country ar] [--pages N]",
	Short: "Scrapes search results, enriches them and writes records and a market report.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		applyOptionFlags(cmd.Flags(), cfg, scrapeOptions)
		if err := cfg.Validate(); err != nil {
			return err
		}

		services, err := initializeServices(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer services.Cleanup()

		res, err := services.Worker.Run(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if *printRecords {
			analysis.PrintRecords(out, res.Records)
		}
		if res.Report != nil {
			analysis.PrintReport(out, res.Report)
		}
		return nil
	},
}

// Services holds all the initialized services
type Services struct {
	Browser   crawler.Browser
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Worker    *worker.Worker
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	log := logger.ForWorker()
	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close publisher")
		}
	}
	if s.Browser != nil {
		s.Browser.Close()
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}
	country := cfg.SelectedCountry()

	rates := analysis.DefaultRateTable()
	if cfg.CommissionRates != "" {
		loaded, err := analysis.LoadRateTable(cfg.CommissionRates)
		if err != nil {
			return nil, err
		}
		rates = loaded
	}

	services.Cache = newCache(cfg)

	pub, err := newPublisher(ctx, cfg)
	if err != nil {
		return nil, err
	}
	services.Publisher = pub

	switch cfg.Browser {
	case "http":
		services.Browser = crawler.NewHTTPBrowser()
	default:
		browser, err := crawler.NewChromeBrowser(crawler.ChromeOptions{
			ExecPath: cfg.ChromeBin,
			Headless: true,
		}, logger.ForCrawler("chrome"))
		if err != nil {
			services.Cleanup()
			return nil, err
		}
		services.Browser = browser
	}

	var enricher *enrich.Enricher
	if cfg.EnrichmentEnabled() {
		api := enrich.NewAPIClient(cfg.APIBaseURL, cfg.APITimeout, cfg.APIBlockTime, services.Cache, logger.ForEnricher())
		enricher = enrich.NewEnricher(api, enrich.Options{
			StoreURL:          country.BaseURL(),
			RatePerSecond:     cfg.APIRatePerSec,
			NavigationTimeout: cfg.NavigationTimeout,
			CurrencySymbol:    country.CurrencySymbol,
			IncludeSellerData: cfg.IncludeSellerData,
		}, logger.ForEnricher())
	}

	sc := crawler.NewSearchCrawler(crawler.NewCrawlerConfig(cfg), country, logger.ForCrawler(country.Name))

	var wp publisher.Publisher
	if len(pub) > 0 {
		wp = pub
	}
	services.Worker = worker.NewWorker(services.Browser, sc, enricher, wp, worker.Options{
		Terms:       cfg.SearchTerms,
		MaxPages:    cfg.MaxPages,
		Concurrency: cfg.MaxConcurrency,
		Commission:  cfg.IncludeCommissionAnalysis,
		Rates:       rates,
		Report:      cfg.GenerateReport,
		ReportOptions: analysis.ReportOptions{
			Thresholds: analysis.Thresholds{
				MinPercent:    cfg.ArbitrageMinPercent,
				MinDifference: cfg.ArbitrageMinDifference,
				KeyLength:     analysis.DefaultThresholds().KeyLength,
			},
			DetectArbitrage: cfg.DetectArbitrage,
			CurrencySymbol:  country.CurrencySymbol,
		},
		ReportPath: cfg.ReportPath,
	}, logger.ForWorker())

	logger.ForWorker().Info().
		Str("environment", cfg.Environment).
		Str("country", country.Name).
		Strs("terms", cfg.SearchTerms).
		Int("pages", cfg.MaxPages).
		Str("browser", cfg.Browser).
		Bool("enrichment", enricher != nil).
		Msg("Services initialized")

	return services, nil
}

// newCache returns memcached when it answers and an in-process cache
// otherwise.
func newCache(cfg *config.Config) cache.CacheService {
	log := logger.ForCache()
	if cfg.MemcacheAddr == "" {
		return cache.NewMemoryCache()
	}
	mc := cache.NewMemcacheService(cfg.MemcacheAddr)
	if err := mc.Ping(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unavailable, using in-process cache")
		return cache.NewMemoryCache()
	}
	log.Info().Str("addr", cfg.MemcacheAddr).Msg("Connected to Memcache")
	return mc
}

func newPublisher(ctx context.Context, cfg *config.Config) (publisher.MultiPublisher, error) {
	log := logger.ForPublisher()
	var pubs publisher.MultiPublisher

	if cfg.DatasetPath != "" {
		fp, err := publisher.NewFilePublisher(cfg.DatasetPath)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, fp)
		log.Info().Str("path", cfg.DatasetPath).Msg("Writing dataset")
	}

	if cfg.RedisAddr != "" {
		rp := publisher.NewRedisPublisher(cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, cfg.RedisStreamCount, cfg.RedisStreamMaxLength)
		if err := rp.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable, not publishing to streams")
			rp.Close()
		} else {
			pubs = append(pubs, rp)
			log.Info().
				Str("addr", cfg.RedisAddr).
				Int("db", cfg.RedisDB).
				Str("stream", cfg.RedisStream).
				Msg("Connected to Redis")
		}
	}
	return pubs, nil
}
