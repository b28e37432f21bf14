package publisher

import (
	"context"
	"errors"

	"sjsage522/meliscraper/internal/models"
)

// Publisher represents a sink for accepted product records
type Publisher interface {
	// Publish appends one record to the sink
	Publish(ctx context.Context, runID string, rec models.ProductRecord) error

	// Close flushes and releases the sink
	Close() error
}

// Trimmer is implemented by sinks with a bounded retention.
type Trimmer interface {
	// TrimStreams trims all streams to the configured maximum length
	TrimStreams(ctx context.Context) error
}

// MultiPublisher fans every record out to several publishers.
type MultiPublisher []Publisher

// Publish forwards rec to every publisher. All of them are tried even when
// one fails.
func (m MultiPublisher) Publish(ctx context.Context, runID string, rec models.ProductRecord) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, runID, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// TrimStreams trims every member that supports it.
func (m MultiPublisher) TrimStreams(ctx context.Context) error {
	var errs []error
	for _, p := range m {
		if t, ok := p.(Trimmer); ok {
			if err := t.TrimStreams(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every publisher.
func (m MultiPublisher) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
