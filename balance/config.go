package balance

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultConfig is the cache configuration used unless overridden.
var DefaultConfig = Config{
	TTL:         10 * time.Second,
	Size:        4096,
	BaseReserve: decimal.RequireFromString("0.5"),
}

// Config holds the cache tunables.
type Config struct {
	TTL         time.Duration
	Size        int
	BaseReserve decimal.Decimal
}

// Option overrides part of the configuration.
type Option func(*Config)

// WithTTL sets how long a snapshot stays valid.
func WithTTL(ttl time.Duration) Option {
	return func(cfg *Config) {
		cfg.TTL = ttl
	}
}

// WithSize bounds the number of cached accounts.
func WithSize(size int) Option {
	return func(cfg *Config) {
		cfg.Size = size
	}
}

// WithBaseReserve sets the network base reserve in lumens.
func WithBaseReserve(reserve decimal.Decimal) Option {
	return func(cfg *Config) {
		cfg.BaseReserve = reserve
	}
}
