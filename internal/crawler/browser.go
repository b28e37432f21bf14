package crawler

import "context"

// Page is one browser tab. Every blocking call honors ctx cancellation and
// deadline.
type Page interface {
	// Navigate loads url and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error
	// WaitForSelector blocks until selector matches at least one element.
	WaitForSelector(ctx context.Context, selector string) error
	// HTML returns the rendered document markup.
	HTML(ctx context.Context) (string, error)
	// Title returns the document title.
	Title(ctx context.Context) (string, error)
	// URL returns the current location after redirects.
	URL(ctx context.Context) (string, error)
	// Close releases the tab.
	Close() error
}

// Browser hands out pages.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}
