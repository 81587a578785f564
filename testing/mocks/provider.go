package mocks

import (
	"context"
	"testing"

	"github.com/saif727/stellar-payroll-engine/ledger"
)

type Provider struct {
	AccountFunc  func(ctx context.Context, id string) (ledger.Account, error)
	SubmitFunc   func(ctx context.Context, envelope string) (ledger.Receipt, error)
	PaymentsFunc func(ctx context.Context, id string, limit uint) ([]ledger.Payment, error)
}

func BaselineProvider(t *testing.T) *Provider {
	t.Helper()

	p := Provider{
		AccountFunc: func(_ context.Context, id string) (ledger.Account, error) {
			account := ledger.Account{
				ID:            id,
				Sequence:      GenericSequence,
				NativeBalance: "1000.0000000",
			}
			return account, nil
		},
		SubmitFunc: func(context.Context, string) (ledger.Receipt, error) {
			receipt := ledger.Receipt{
				Hash:       GenericHash,
				Ledger:     GenericLedger,
				Successful: true,
			}
			return receipt, nil
		},
		PaymentsFunc: func(context.Context, string, uint) ([]ledger.Payment, error) {
			return nil, nil
		},
	}

	return &p
}

func (p *Provider) Account(ctx context.Context, id string) (ledger.Account, error) {
	return p.AccountFunc(ctx, id)
}

func (p *Provider) Submit(ctx context.Context, envelope string) (ledger.Receipt, error) {
	return p.SubmitFunc(ctx, envelope)
}

func (p *Provider) Payments(ctx context.Context, id string, limit uint) ([]ledger.Payment, error) {
	return p.PaymentsFunc(ctx, id, limit)
}

type Resolver struct {
	ResolveFunc func(ctx context.Context, alias string) (string, error)
}

func BaselineResolver(t *testing.T) *Resolver {
	t.Helper()

	r := Resolver{
		ResolveFunc: func(context.Context, string) (string, error) {
			return GenericAddress(99), nil
		},
	}

	return &r
}

func (r *Resolver) Resolve(ctx context.Context, alias string) (string, error) {
	return r.ResolveFunc(ctx, alias)
}
