package worker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"sjsage522/meliscraper/internal/analysis"
	"sjsage522/meliscraper/internal/crawler"
	"sjsage522/meliscraper/internal/enrich"
	"sjsage522/meliscraper/internal/models"
	"sjsage522/meliscraper/logger"
	"sjsage522/meliscraper/pkg/errors"
	"sjsage522/meliscraper/services/publisher"
)

// Job is one search-results page to scrape.
type Job struct {
	Term string
	Page int
}

// Options configures a run.
type Options struct {
	Terms       []string
	MaxPages    int
	Concurrency int

	// Commission enables per-record commission estimates using Rates.
	Commission bool
	Rates      analysis.RateTable

	// Report enables the market report, written to ReportPath when set.
	Report        bool
	ReportOptions analysis.ReportOptions
	ReportPath    string
}

// Result is the outcome of a run.
type Result struct {
	RunID       string
	Records     []models.ProductRecord
	Report      *models.MarketReport
	Pages       int
	FailedPages int
	Duration    time.Duration
}

// Worker handles the scraping, enrichment and publishing process
type Worker struct {
	browser   crawler.Browser
	crawler   *crawler.SearchCrawler
	enricher  *enrich.Enricher
	publisher publisher.Publisher
	opts      Options
	log       *logger.Logger
	newRunID  func() string
}

// NewWorker creates a new worker. enricher and pub may be nil.
func NewWorker(
	browser crawler.Browser,
	sc *crawler.SearchCrawler,
	enricher *enrich.Enricher,
	pub publisher.Publisher,
	opts Options,
	log *logger.Logger,
) *Worker {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Worker{
		browser:   browser,
		crawler:   sc,
		enricher:  enricher,
		publisher: pub,
		opts:      opts,
		log:       log,
		newRunID:  uuid.NewString,
	}
}

// Jobs expands the configured terms into one job per result page, terms
// first.
func (w *Worker) Jobs() []Job {
	var jobs []Job
	for _, term := range w.opts.Terms {
		for p := 1; p <= w.opts.MaxPages; p++ {
			jobs = append(jobs, Job{Term: term, Page: p})
		}
	}
	return jobs
}

// Run scrapes every job on a bounded pool of tabs and returns the records in
// job order. Page-level failures leave an empty page; a fatal error aborts
// the run.
func (w *Worker) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: w.newRunID()}
	log := w.log.WithField("run_id", res.RunID)

	jobs := w.Jobs()
	res.Pages = len(jobs)
	log.Info().Int("jobs", len(jobs)).Int("concurrency", w.opts.Concurrency).Msg("Run started")

	pages, failed, err := w.scrape(ctx, log, jobs)
	if err != nil {
		return nil, err
	}
	res.FailedPages = failed

	for _, recs := range pages {
		res.Records = append(res.Records, recs...)
	}
	res.Records = dedupe(res.Records)
	if res.Records == nil {
		res.Records = []models.ProductRecord{}
	}

	if w.opts.Commission {
		for i := range res.Records {
			analysis.ApplyCommission(&res.Records[i], w.opts.Rates)
		}
	}

	w.publish(ctx, log, res.RunID, res.Records)

	if w.opts.Report {
		report, err := analysis.GenerateReport(res.Records, w.opts.ReportOptions)
		switch {
		case stderrors.Is(err, analysis.ErrNoProducts):
			log.Warn().Msg("No products found, skipping report")
		case err != nil:
			return nil, err
		default:
			res.Report = report
			if w.opts.ReportPath != "" {
				if err := analysis.SaveReport(w.opts.ReportPath, report); err != nil {
					log.Error().Err(err).Msg("Failed to save report")
				} else {
					log.Info().Str("path", w.opts.ReportPath).Msg("Report saved")
				}
			}
		}
	}

	res.Duration = time.Since(start)
	log.Info().
		Int("records", len(res.Records)).
		Int("failed_pages", res.FailedPages).
		Dur("elapsed", res.Duration).
		Msg("Run finished")
	return res, nil
}

// scrape runs the jobs on up to Concurrency tabs. Each slot of the returned
// slice belongs to the job with the same index.
func (w *Worker) scrape(ctx context.Context, log *logger.Logger, jobs []Job) ([][]models.ProductRecord, int, error) {
	results := make([][]models.ProductRecord, len(jobs))
	if len(jobs) == 0 {
		return results, 0, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		fatalErr error
		failed   int
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if fatalErr == nil {
			fatalErr = err
			cancel()
		}
	}

	queue := make(chan int)
	go func() {
		defer close(queue)
		for i := range jobs {
			select {
			case queue <- i:
			case <-runCtx.Done():
				return
			}
		}
	}()

	tabs := min(w.opts.Concurrency, len(jobs))
	var wg sync.WaitGroup
	for t := 0; t < tabs; t++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			page, err := w.browser.NewPage(runCtx)
			if err != nil {
				fail(err)
				return
			}
			defer page.Close()

			for i := range queue {
				recs, err := w.processJob(runCtx, log, page, jobs[i])
				if err != nil {
					if errors.IsFatal(err) {
						fail(err)
						return
					}
					mu.Lock()
					failed++
					mu.Unlock()
					continue
				}
				results[i] = recs
			}
		}()
	}
	wg.Wait()

	if fatalErr != nil {
		return nil, failed, fatalErr
	}
	if err := ctx.Err(); err != nil {
		return nil, failed, err
	}
	return results, failed, nil
}

// processJob scrapes one page and enriches its records on the same tab, one
// at a time.
func (w *Worker) processJob(ctx context.Context, log *logger.Logger, page crawler.Page, job Job) ([]models.ProductRecord, error) {
	jobLog := log.WithFields(logger.Fields{"term": job.Term, "page": job.Page})

	records, err := w.crawler.ScrapePage(ctx, page, job.Term, job.Page)
	if err != nil {
		errLog := jobLog.WithError(err)
		switch {
		case errors.IsFatal(err):
		case errors.IsPageLevel(err):
			errLog.Warn().Msg("Page skipped")
		default:
			errLog.Error().Msg("Page skipped")
		}
		return nil, err
	}

	if w.enricher != nil {
		// Enrichment may fill a price the card did not show
		enriched := records[:0]
		for _, rec := range records {
			if ctx.Err() != nil {
				break
			}
			rec = w.enricher.Enrich(ctx, page, rec)
			if !w.crawler.InRange(rec) {
				jobLog.Debug().Str("product_id", rec.ProductID).Float64("price", rec.PriceValue()).Msg("Outside price range after enrichment")
				continue
			}
			enriched = append(enriched, rec)
		}
		records = enriched
	}

	logSample(jobLog, records)
	return records, nil
}

// dedupe keeps the first record of every product id.
func dedupe(records []models.ProductRecord) []models.ProductRecord {
	seen := make(map[string]struct{}, len(records))
	out := records[:0]
	for _, rec := range records {
		if _, ok := seen[rec.ProductID]; ok {
			continue
		}
		seen[rec.ProductID] = struct{}{}
		out = append(out, rec)
	}
	return out
}

func (w *Worker) publish(ctx context.Context, log *logger.Logger, runID string, records []models.ProductRecord) {
	if w.publisher == nil {
		return
	}
	published := 0
	for _, rec := range records {
		if err := w.publisher.Publish(ctx, runID, rec); err != nil {
			log.Error().Err(err).Str("product_id", rec.ProductID).Msg("Failed to publish record")
			continue
		}
		published++
	}

	// Trim all streams after publishing
	if t, ok := w.publisher.(publisher.Trimmer); ok {
		if err := t.TrimStreams(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to trim streams")
		}
	}
	log.Debug().Int("published", published).Msg("Records published")
}

// logSample logs the first record of a page at debug level.
func logSample(log *logger.Logger, records []models.ProductRecord) {
	if len(records) == 0 {
		return
	}
	data, err := json.Marshal(records[0])
	if err != nil {
		return
	}
	var loggable map[string]interface{}
	if err := json.Unmarshal(data, &loggable); err != nil {
		return
	}
	if _, exists := loggable["image_url"]; exists {
		loggable["image_url"] = "OK"
	}
	delete(loggable, "details")
	log.Debug().Interface("sample", loggable).Int("records", len(records)).Msg("Page records")
}
