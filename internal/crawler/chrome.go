package crawler

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"sjsage522/meliscraper/helpers"
	"sjsage522/meliscraper/logger"
	"sjsage522/meliscraper/pkg/errors"
)

const chromeSource = "chrome"

// ChromeOptions configures the headless Chrome allocator.
type ChromeOptions struct {
	ExecPath  string
	UserAgent string
	Headless  bool
}

// ChromeBrowser drives a local headless Chrome through the DevTools protocol.
type ChromeBrowser struct {
	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
	log           *logger.Logger
}

// NewChromeBrowser starts Chrome and opens its first target. A failure here is
// fatal for the run.
func NewChromeBrowser(opts ChromeOptions, log *logger.Logger) (*ChromeBrowser, error) {
	if log == nil {
		log = logger.Nop()
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = helpers.RandomUserAgent()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("lang", "es-AR"),
		chromedp.UserAgent(userAgent),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	// Run with no actions starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, errors.NewLaunch(chromeSource, "failed to start chrome", err)
	}

	log.Info().Str("exec_path", opts.ExecPath).Msg("Chrome started")

	return &ChromeBrowser{
		browserCtx:    browserCtx,
		cancelAlloc:   cancelAlloc,
		cancelBrowser: cancelBrowser,
		log:           log,
	}, nil
}

// NewPage opens a new tab.
func (b *ChromeBrowser) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, errors.NewLaunch(chromeSource, "failed to open tab", err)
	}
	return &chromePage{tabCtx: tabCtx, cancel: cancel}, nil
}

// Close shuts Chrome down.
func (b *ChromeBrowser) Close() error {
	b.cancelBrowser()
	b.cancelAlloc()
	b.log.Debug().Msg("Chrome stopped")
	return nil
}

type chromePage struct {
	tabCtx context.Context
	cancel context.CancelFunc
}

// run executes actions on the tab, bounded by the caller's ctx.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.tabCtx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	start := time.Now()
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return errors.NewTimeout(chromeSource, fmt.Sprintf("navigation to %s timed out after %s", url, time.Since(start).Round(time.Millisecond)), err)
		}
		return errors.NewNavigation(chromeSource, "failed to navigate to "+url, err)
	}
	return nil
}

func (p *chromePage) WaitForSelector(ctx context.Context, selector string) error {
	if err := p.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return errors.NewTimeout(chromeSource, "selector never appeared: "+selector, err)
		}
		return errors.NewNavigation(chromeSource, "wait for selector failed: "+selector, err)
	}
	return nil
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", errors.NewParsing(chromeSource, "failed to read document", err)
	}
	return html, nil
}

func (p *chromePage) Title(ctx context.Context) (string, error) {
	var title string
	if err := p.run(ctx, chromedp.Title(&title)); err != nil {
		return "", errors.NewNavigation(chromeSource, "failed to read title", err)
	}
	return title, nil
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var location string
	if err := p.run(ctx, chromedp.Location(&location)); err != nil {
		return "", errors.NewNavigation(chromeSource, "failed to read location", err)
	}
	return location, nil
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}
