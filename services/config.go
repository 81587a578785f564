package services

import (
	"time"
)

// DefaultConfig is the bulk dispatch configuration used unless overridden.
var DefaultConfig = Config{
	DispatchInterval: time.Second,
	MaxRetries:       1,
	RetryDelay:       2 * time.Second,
}

// Config holds the bulk dispatch tunables.
type Config struct {
	// DispatchInterval is the minimum delay between two submissions of a batch.
	DispatchInterval time.Duration
	// MaxRetries bounds the extra attempts for an item rejected for a reason
	// that is safe to retry.
	MaxRetries uint
	RetryDelay time.Duration
}

// Option overrides part of the configuration.
type Option func(*Config)

// WithDispatchInterval sets the minimum delay between two submissions.
func WithDispatchInterval(interval time.Duration) Option {
	return func(cfg *Config) {
		cfg.DispatchInterval = interval
	}
}

// WithMaxRetries sets how many times a retryable item is attempted again.
func WithMaxRetries(retries uint) Option {
	return func(cfg *Config) {
		cfg.MaxRetries = retries
	}
}

// WithRetryDelay sets the wait before a retry.
func WithRetryDelay(delay time.Duration) Option {
	return func(cfg *Config) {
		cfg.RetryDelay = delay
	}
}
