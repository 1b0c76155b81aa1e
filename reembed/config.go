package reembed

import (
	"errors"
	"time"
)

// Config holds configuration for an embedding run.
type Config struct {
	// MaxInFlight is the maximum number of concurrent embedding calls.
	MaxInFlight int

	// Timeout bounds a single embedding call. A call that times out counts as
	// a failed attempt for that document only. Zero disables the timeout.
	Timeout time.Duration

	// MaxRetries is the maximum number of attempts per document.
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// RequestsPerSecond limits the rate of embedding calls. Zero means unlimited.
	RequestsPerSecond float64

	// Burst is the number of calls allowed at once under the rate limit.
	Burst int

	// Force re-embeds every document, stale or not.
	Force bool

	// Normalize scales embeddings to unit length before they are stored.
	Normalize bool

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxInFlight:    4,
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
		Burst:          1,
		ReportInterval: 10,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.MaxInFlight < 1 {
		return errors.New("reembed config: MaxInFlight must be at least 1")
	}
	if c.Timeout < 0 {
		return errors.New("reembed config: Timeout cannot be negative")
	}
	if c.MaxRetries < 1 {
		return errors.New("reembed config: MaxRetries must be at least 1")
	}
	if c.RetryDelay < 0 {
		return errors.New("reembed config: RetryDelay cannot be negative")
	}
	if c.RequestsPerSecond < 0 {
		return errors.New("reembed config: RequestsPerSecond cannot be negative")
	}
	if c.RequestsPerSecond > 0 && c.Burst < 1 {
		return errors.New("reembed config: Burst must be at least 1 when rate limited")
	}
	if c.ReportInterval < 1 {
		return errors.New("reembed config: ReportInterval must be at least 1")
	}
	return nil
}
