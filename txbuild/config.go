package txbuild

import (
	"time"

	"github.com/stellar/go/txnbuild"
)

// DefaultConfig uses the network minimum fee and a three minute validity window.
var DefaultConfig = Config{
	BaseFee: txnbuild.MinBaseFee,
	Timeout: 180 * time.Second,
}

// Config holds the builder tunables.
type Config struct {
	BaseFee int64
	Timeout time.Duration
}

// Option overrides part of the configuration.
type Option func(*Config)

// WithBaseFee sets the per-operation fee in stroops.
func WithBaseFee(fee int64) Option {
	return func(cfg *Config) {
		cfg.BaseFee = fee
	}
}

// WithTimeout sets how long a built transaction stays valid.
func WithTimeout(timeout time.Duration) Option {
	return func(cfg *Config) {
		cfg.Timeout = timeout
	}
}
