package crawler

import (
	"context"
	stderrors "errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/meliscraper/helpers"
	"sjsage522/meliscraper/pkg/errors"
)

const httpSource = "http"

// FetchFunc retrieves a document body, decoded to UTF-8.
type FetchFunc func(ctx context.Context, url string) (io.Reader, error)

// HTTPBrowser serves pages from plain HTTP requests with browser-like headers.
// Markup rendered by scripts is not available, so WaitForSelector only checks
// the static document.
type HTTPBrowser struct {
	Fetch FetchFunc
}

// NewHTTPBrowser returns a browser backed by helpers.FetchWithRandomHeaders.
func NewHTTPBrowser() *HTTPBrowser {
	return &HTTPBrowser{Fetch: helpers.FetchWithRandomHeaders}
}

// NewPage returns an empty page.
func (b *HTTPBrowser) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fetch := b.Fetch
	if fetch == nil {
		fetch = helpers.FetchWithRandomHeaders
	}
	return &httpPage{fetch: fetch}, nil
}

// Close is a no-op.
func (b *HTTPBrowser) Close() error { return nil }

type httpPage struct {
	fetch FetchFunc

	mu  sync.Mutex
	url string
	doc *goquery.Document
	raw string
}

func (p *httpPage) Navigate(ctx context.Context, url string) error {
	body, err := p.fetch(ctx, url)
	if err != nil {
		var rateErr *helpers.RateLimitError
		switch {
		case stderrors.As(err, &rateErr):
			return errors.NewRateLimit(httpSource, parseRetryAfter(rateErr.RetryAfter))
		case stderrors.Is(err, context.DeadlineExceeded):
			return errors.NewTimeout(httpSource, "navigation to "+url+" timed out", err)
		default:
			return errors.NewNavigation(httpSource, "failed to navigate to "+url, err)
		}
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return errors.NewNetwork(httpSource, "failed to read body of "+url, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(data)))
	if err != nil {
		return errors.NewParsing(httpSource, "failed to parse "+url, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	p.doc = doc
	p.raw = string(data)
	return nil
}

func (p *httpPage) WaitForSelector(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return errors.NewTimeout(httpSource, "selector wait cancelled: "+selector, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return errors.NewNavigation(httpSource, "no document loaded", nil)
	}
	if p.doc.Find(selector).Length() == 0 {
		return errors.NewTimeout(httpSource, "selector not present: "+selector, nil)
	}
	return nil
}

func (p *httpPage) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return "", errors.NewNavigation(httpSource, "no document loaded", nil)
	}
	return p.raw, nil
}

func (p *httpPage) Title(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return "", errors.NewNavigation(httpSource, "no document loaded", nil)
	}
	return helpers.CollapseSpaces(p.doc.Find("title").First().Text()), nil
}

func (p *httpPage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *httpPage) Close() error { return nil }

// parseRetryAfter reads a Retry-After value given in seconds.
func parseRetryAfter(v string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(v) + "s")
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}
