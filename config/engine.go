package config

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/saif727/stellar-payroll-engine/balance"
	"github.com/saif727/stellar-payroll-engine/ledger"
	"github.com/saif727/stellar-payroll-engine/services"
	"github.com/saif727/stellar-payroll-engine/signer"
	"github.com/saif727/stellar-payroll-engine/submit"
	"github.com/saif727/stellar-payroll-engine/txbuild"
)

// ErrNoSigner is returned when neither a signer secret nor a remote signer is
// configured.
var ErrNoSigner = errors.New("no signer configured")

// Engine groups the wired payment engine components.
type Engine struct {
	Payments *services.PaymentService
	Bulk     *services.BulkService
}

// NewEngine wires the payment engine against the configured Horizon instance.
func NewEngine(log zerolog.Logger, cfg Config) *Engine {
	provider := ledger.NewHorizon(log, cfg.Horizon())
	resolver := ledger.NewFederation(nil, cfg.Testnet())
	return NewEngineWith(log, cfg, provider, resolver)
}

// NewEngineWith wires the payment engine against the given collaborators.
func NewEngineWith(log zerolog.Logger, cfg Config, provider ledger.Provider, resolver ledger.Resolver) *Engine {
	cache := balance.New(log, provider,
		balance.WithTTL(cfg.BalanceTTL),
		balance.WithBaseReserve(decimal.NewFromFloat(cfg.BaseReserve)),
	)
	builder := txbuild.New(log, provider, cfg.Passphrase(),
		txbuild.WithBaseFee(cfg.BaseFee),
		txbuild.WithTimeout(cfg.TxTimeout),
	)
	submitter := submit.New(log, provider, cfg.Passphrase())

	payments := services.NewPaymentService(log, provider, resolver, cache, builder, submitter)
	bulk := services.NewBulkService(log, payments,
		services.WithDispatchInterval(cfg.DispatchInterval),
		services.WithMaxRetries(cfg.MaxRetries),
	)

	e := Engine{
		Payments: payments,
		Bulk:     bulk,
	}
	return &e
}

// Signer returns the configured signer: a local keypair when a secret is set,
// a remote signer when an endpoint is set.
func (c Config) Signer() (signer.Signer, error) {
	switch {
	case c.SignerSecret != "":
		kp, err := signer.NewKeypair(c.SignerSecret, c.Passphrase())
		if err != nil {
			return nil, fmt.Errorf("could not load signer secret: %w", err)
		}
		return kp, nil
	case c.SignerURL != "":
		return signer.NewRemote(c.SignerURL, c.SignerAccount, c.Passphrase(), c.RequestTimeout), nil
	default:
		return nil, ErrNoSigner
	}
}
