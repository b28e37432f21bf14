package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNavigation represents a failed page navigation
	ErrorTypeNavigation ErrorType = "navigation"
	// ErrorTypeTimeout represents a page-load or selector-wait timeout
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeNoResults represents a page where no listing container matched
	ErrorTypeNoResults ErrorType = "no_results"
	// ErrorTypeNetwork represents network-related errors
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeParsing represents HTML parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeSchema represents an unexpected API payload
	ErrorTypeSchema ErrorType = "schema"
	// ErrorTypeEnrichment represents a failed per-item enrichment
	ErrorTypeEnrichment ErrorType = "enrichment"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeLaunch represents a browser or collaborator launch failure
	ErrorTypeLaunch ErrorType = "launch"
)

// ScrapeError represents a scraper-specific error
type ScrapeError struct {
	Type    ErrorType
	Source  string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Source, e.Message)
}

// Unwrap returns the underlying error
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// IsPageLevel reports whether the error ends one page's extraction without
// aborting the run.
func (e *ScrapeError) IsPageLevel() bool {
	switch e.Type {
	case ErrorTypeNavigation, ErrorTypeTimeout, ErrorTypeNoResults, ErrorTypeNetwork, ErrorTypeParsing:
		return true
	default:
		return false
	}
}

// IsFatal reports whether the run must abort.
func (e *ScrapeError) IsFatal() bool {
	return e.Type == ErrorTypeLaunch || e.Type == ErrorTypeConfiguration
}

// IsType reports whether err wraps a ScrapeError of the given type.
func IsType(err error, errType ErrorType) bool {
	var se *ScrapeError
	if stderrors.As(err, &se) {
		return se.Type == errType
	}
	return false
}

// IsFatal reports whether err wraps a fatal ScrapeError.
func IsFatal(err error) bool {
	var se *ScrapeError
	if stderrors.As(err, &se) {
		return se.IsFatal()
	}
	return false
}

// IsPageLevel reports whether err wraps a page-level ScrapeError.
func IsPageLevel(err error) bool {
	var se *ScrapeError
	if stderrors.As(err, &se) {
		return se.IsPageLevel()
	}
	return false
}

// New creates a new ScrapeError
func New(errType ErrorType, source, message string, err error) *ScrapeError {
	return &ScrapeError{
		Type:    errType,
		Source:  source,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewNavigation creates a new navigation error
func NewNavigation(source, message string, err error) *ScrapeError {
	return New(ErrorTypeNavigation, source, message, err)
}

// NewTimeout creates a new timeout error
func NewTimeout(source, message string, err error) *ScrapeError {
	return New(ErrorTypeTimeout, source, message, err)
}

// NewNoResults creates a new no-results error
func NewNoResults(source string) *ScrapeError {
	return New(ErrorTypeNoResults, source, "no listing container matched", nil)
}

// NewNetwork creates a new network error
func NewNetwork(source, message string, err error) *ScrapeError {
	return New(ErrorTypeNetwork, source, message, err)
}

// NewParsing creates a new parsing error
func NewParsing(source, message string, err error) *ScrapeError {
	return New(ErrorTypeParsing, source, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(source string, duration time.Duration) *ScrapeError {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, source, message, nil)
}

// NewSchema creates a new schema error
func NewSchema(source, message string) *ScrapeError {
	return New(ErrorTypeSchema, source, message, nil)
}

// NewEnrichment creates a new enrichment error
func NewEnrichment(source, message string, err error) *ScrapeError {
	return New(ErrorTypeEnrichment, source, message, err)
}

// NewCache creates a new cache error
func NewCache(source, message string, err error) *ScrapeError {
	return New(ErrorTypeCache, source, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(source, message string, err error) *ScrapeError {
	return New(ErrorTypePublisher, source, message, err)
}

// NewValidation creates a new validation error
func NewValidation(source, message string) *ScrapeError {
	return New(ErrorTypeValidation, source, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *ScrapeError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// NewLaunch creates a new launch error
func NewLaunch(source, message string, err error) *ScrapeError {
	return New(ErrorTypeLaunch, source, message, err)
}
