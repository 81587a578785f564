// Package config loads the payment engine settings from the environment and
// lets command line flags override them.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/network"

	"github.com/saif727/stellar-payroll-engine/balance"
	"github.com/saif727/stellar-payroll-engine/services"
	"github.com/saif727/stellar-payroll-engine/txbuild"
)

const (
	NetworkTestnet = "testnet"
	NetworkPublic  = "public"
)

// Config holds the settings of a payment engine process.
type Config struct {
	Network       string
	HorizonURL    string
	SignerSecret  string
	SignerURL     string
	SignerAccount string
	DatabaseURL   string
	Port          uint16
	LogLevel      string

	BalanceTTL       time.Duration
	BaseReserve      float64
	BaseFee          int64
	TxTimeout        time.Duration
	DispatchInterval time.Duration
	MaxRetries       uint
	RequestTimeout   time.Duration
}

// FromEnv reads the environment, falling back to defaults for anything unset.
func FromEnv() Config {
	reserve, _ := balance.DefaultConfig.BaseReserve.Float64()

	cfg := Config{
		Network:       env("STELLAR_NETWORK", NetworkTestnet),
		HorizonURL:    os.Getenv("HORIZON_URL"),
		SignerSecret:  os.Getenv("SIGNER_SECRET"),
		SignerURL:     os.Getenv("SIGNER_URL"),
		SignerAccount: os.Getenv("SIGNER_ACCOUNT"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Port:          8080,
		LogLevel:      env("LOG_LEVEL", "info"),

		BalanceTTL:       balance.DefaultConfig.TTL,
		BaseReserve:      reserve,
		BaseFee:          txbuild.DefaultConfig.BaseFee,
		TxTimeout:        txbuild.DefaultConfig.Timeout,
		DispatchInterval: services.DefaultConfig.DispatchInterval,
		MaxRetries:       services.DefaultConfig.MaxRetries,
		RequestTimeout:   30 * time.Second,
	}

	port := os.Getenv("PORT")
	if port != "" {
		var p uint16
		_, err := fmt.Sscan(port, &p)
		if err == nil {
			cfg.Port = p
		}
	}

	return cfg
}

// Bind registers flags on the set, using the current values as defaults.
func (c *Config) Bind(flags *pflag.FlagSet) {
	flags.StringVarP(&c.Network, "network", "n", c.Network, "Stellar network (testnet or public)")
	flags.StringVar(&c.HorizonURL, "horizon", c.HorizonURL, "Horizon URL, defaults to the network's public instance")
	flags.StringVar(&c.SignerURL, "signer-url", c.SignerURL, "remote signer endpoint")
	flags.StringVar(&c.SignerAccount, "signer-account", c.SignerAccount, "account the remote signer signs for")
	flags.StringVar(&c.DatabaseURL, "database", c.DatabaseURL, "Postgres URL for payment records")
	flags.Uint16VarP(&c.Port, "port", "p", c.Port, "port to serve the HTTP API on")
	flags.StringVarP(&c.LogLevel, "level", "l", c.LogLevel, "log output level")

	flags.DurationVar(&c.BalanceTTL, "balance-ttl", c.BalanceTTL, "time to live of cached balances")
	flags.Float64Var(&c.BaseReserve, "base-reserve", c.BaseReserve, "network base reserve in lumens")
	flags.Int64Var(&c.BaseFee, "base-fee", c.BaseFee, "fee per operation in stroops")
	flags.DurationVar(&c.TxTimeout, "tx-timeout", c.TxTimeout, "validity window of built transactions")
	flags.DurationVar(&c.DispatchInterval, "dispatch-interval", c.DispatchInterval, "minimum delay between bulk submissions")
	flags.UintVar(&c.MaxRetries, "max-retries", c.MaxRetries, "retries for bulk items rejected for a retryable reason")
	flags.DurationVar(&c.RequestTimeout, "request-timeout", c.RequestTimeout, "timeout of requests to Horizon and the remote signer")
}

// Validate checks the settings for consistency.
func (c Config) Validate() error {
	var errs []error
	if c.Network != NetworkTestnet && c.Network != NetworkPublic {
		errs = append(errs, fmt.Errorf("unknown network %q", c.Network))
	}
	if c.SignerSecret != "" && c.SignerURL != "" {
		errs = append(errs, errors.New("signer secret and signer URL are mutually exclusive"))
	}
	if c.SignerURL != "" && c.SignerAccount == "" {
		errs = append(errs, errors.New("remote signer requires a signer account"))
	}
	if c.BaseFee < 100 {
		errs = append(errs, fmt.Errorf("base fee %d is below the network minimum of 100", c.BaseFee))
	}
	if c.BaseReserve <= 0 {
		errs = append(errs, errors.New("base reserve must be positive"))
	}
	if c.TxTimeout < time.Second {
		errs = append(errs, errors.New("transaction timeout must be at least one second"))
	}
	return errors.Join(errs...)
}

// Testnet reports whether the test network is selected.
func (c Config) Testnet() bool {
	return c.Network == NetworkTestnet
}

// Passphrase returns the network passphrase transactions are signed for.
func (c Config) Passphrase() string {
	if c.Testnet() {
		return network.TestNetworkPassphrase
	}
	return network.PublicNetworkPassphrase
}

// Horizon returns a client for the configured Horizon instance.
func (c Config) Horizon() *horizonclient.Client {
	if c.HorizonURL == "" {
		if c.Testnet() {
			return horizonclient.DefaultTestNetClient
		}
		return horizonclient.DefaultPublicNetClient
	}

	client := horizonclient.Client{
		HorizonURL: strings.TrimRight(c.HorizonURL, "/") + "/",
		HTTP:       &http.Client{Timeout: c.RequestTimeout},
	}
	return &client
}

func env(key string, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}
