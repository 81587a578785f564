// Package services exposes the payment engine to its callers: validation and
// conversion helpers, cached balances, payment history, and single and bulk
// native payments signed by a caller-supplied signer.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/saif727/stellar-payroll-engine/address"
	"github.com/saif727/stellar-payroll-engine/balance"
	"github.com/saif727/stellar-payroll-engine/failure"
	"github.com/saif727/stellar-payroll-engine/ledger"
	"github.com/saif727/stellar-payroll-engine/signer"
	"github.com/saif727/stellar-payroll-engine/submit"
	"github.com/saif727/stellar-payroll-engine/txbuild"
	"github.com/saif727/stellar-payroll-engine/units"
)

// DefaultHistoryLimit is the number of payments History returns when no limit
// is given.
const DefaultHistoryLimit = 20

// PaymentService runs single payments and answers balance and history queries.
type PaymentService struct {
	log       zerolog.Logger
	provider  ledger.Provider
	resolver  ledger.Resolver
	cache     *balance.Cache
	builder   *txbuild.Builder
	submitter *submit.Submitter
	locks     *accountLocks
}

// NewPaymentService creates a payment service. The resolver may be nil, in
// which case alias recipients cannot be paid.
func NewPaymentService(
	log zerolog.Logger,
	provider ledger.Provider,
	resolver ledger.Resolver,
	cache *balance.Cache,
	builder *txbuild.Builder,
	submitter *submit.Submitter,
) *PaymentService {

	s := PaymentService{
		log:       log.With().Str("component", "payment_service").Logger(),
		provider:  provider,
		resolver:  resolver,
		cache:     cache,
		builder:   builder,
		submitter: submitter,
		locks:     newAccountLocks(),
	}

	return &s
}

// ValidateAddress classifies a recipient identifier.
func (s *PaymentService) ValidateAddress(input string) (address.Recipient, error) {
	return address.Validate(input)
}

// ToBaseUnits converts lumens to a stroop string.
func (s *PaymentService) ToBaseUnits(display float64) (string, error) {
	return units.ToBase(display)
}

// ToDisplayUnits converts a stroop string to lumens.
func (s *PaymentService) ToDisplayUnits(base string) (float64, error) {
	return units.ToDisplay(base)
}

// FormatDisplay renders lumens with seven fraction digits.
func (s *PaymentService) FormatDisplay(display float64) (string, error) {
	return units.Format(display)
}

// GetBalance returns the cached balance snapshot of an account.
func (s *PaymentService) GetBalance(ctx context.Context, account string) (balance.Snapshot, error) {
	err := address.ValidateKey(account)
	if err != nil {
		return balance.Snapshot{}, err
	}
	return s.cache.Get(ctx, account)
}

// InvalidateBalance drops the cached balance of an account.
func (s *PaymentService) InvalidateBalance(account string) {
	s.cache.Invalidate(account)
}

// History lists the most recent native payments of an account, newest first.
// An unfunded account has no history.
func (s *PaymentService) History(ctx context.Context, account string, limit uint) ([]ledger.Payment, error) {
	err := address.ValidateKey(account)
	if err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = DefaultHistoryLimit
	}

	payments, err := s.provider.Payments(ctx, account, limit)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return []ledger.Payment{}, nil
	}
	if err != nil {
		return nil, ledger.CategorizeRead(err)
	}

	return payments, nil
}

// SendPayment pays a native amount in lumens from the signer's account to the
// destination. Input errors are returned before any I/O; the balance check is
// advisory and is skipped when the balance cannot be read.
func (s *PaymentService) SendPayment(ctx context.Context, sgn signer.Signer, destination string, amount float64, memo string) (submit.Outcome, error) {
	source, err := identity(sgn)
	if err != nil {
		return submit.Outcome{}, err
	}
	recipient, err := address.Validate(destination)
	if err != nil {
		return submit.Outcome{}, err
	}
	display, err := units.Positive(amount)
	if err != nil {
		return submit.Outcome{}, err
	}
	base, err := units.ToBase(amount)
	if err != nil {
		return submit.Outcome{}, err
	}
	if len(memo) > txbuild.MemoTextMaxLength {
		return submit.Outcome{}, failure.New(failure.ReasonMalformedOperation,
			fmt.Sprintf("memo is %d bytes, limit is %d", len(memo), txbuild.MemoTextMaxLength))
	}

	err = s.preflight(ctx, source, display.Add(s.fee()))
	if err != nil {
		return submit.Outcome{}, err
	}

	release, err := s.locks.acquire(ctx, source)
	if err != nil {
		return submit.Outcome{}, failure.Wrap(failure.ReasonNetworkUnavailable, err)
	}
	defer release()

	account, err := s.resolve(ctx, recipient)
	if err != nil {
		return submit.Outcome{}, err
	}

	outcome, err := s.dispatch(ctx, sgn, txbuild.Request{
		Source:      source,
		Destination: account,
		BaseAmount:  base,
		Memo:        memo,
	})
	if failure.ReasonOf(err) == failure.ReasonSubmissionTimeout {
		// The transfer may have been included.
		s.cache.Invalidate(source)
		s.cache.Invalidate(account)
	}
	if err != nil {
		return submit.Outcome{}, err
	}

	// The recipient may just have been funded.
	s.cache.Invalidate(source)
	s.cache.Invalidate(account)

	return outcome, nil
}

// preflight compares the required amount with the cached spendable balance.
func (s *PaymentService) preflight(ctx context.Context, source string, required decimal.Decimal) error {
	snapshot, err := s.cache.Get(ctx, source)
	if err != nil {
		s.log.Warn().
			Str("source", source).
			Err(err).
			Msg("balance check skipped, leaving sufficiency to the network")
		return nil
	}
	if snapshot.Spendable.LessThan(required) {
		return failure.InsufficientBalance(required, snapshot.Spendable)
	}
	return nil
}

// resolve turns a validated recipient into an account ID.
func (s *PaymentService) resolve(ctx context.Context, recipient address.Recipient) (string, error) {
	if !recipient.IsAlias() {
		return recipient.Address, nil
	}
	if s.resolver == nil {
		return "", failure.New(failure.ReasonDestinationUnreachable,
			fmt.Sprintf("no resolver configured for %s", recipient.Address))
	}

	account, err := s.resolver.Resolve(ctx, recipient.Address)
	if err != nil {
		return "", failure.Wrap(failure.ReasonDestinationUnreachable, err)
	}
	err = address.ValidateKey(account)
	if err != nil {
		return "", failure.New(failure.ReasonDestinationUnreachable,
			fmt.Sprintf("%s resolved to an invalid account: %s", recipient.Address, account))
	}

	s.log.Debug().
		Str("alias", recipient.Address).
		Str("account", account).
		Msg("alias resolved")

	return account, nil
}

// dispatch builds, signs and submits one transfer. Each call reads a fresh
// sequence number.
func (s *PaymentService) dispatch(ctx context.Context, sgn signer.Signer, req txbuild.Request) (submit.Outcome, error) {
	unsigned, err := s.builder.Build(ctx, req)
	if err != nil {
		return submit.Outcome{}, err
	}

	signed, err := sgn.Sign(ctx, unsigned.Envelope)
	switch {
	case errors.Is(err, signer.ErrDeclined):
		return submit.Outcome{}, failure.Wrap(failure.ReasonSigningDeclined, err)
	case errors.Is(err, signer.ErrDisconnected):
		return submit.Outcome{}, failure.Wrap(failure.ReasonSignerNotReady, err)
	case err != nil:
		return submit.Outcome{}, failure.Wrap(failure.ReasonSigningFailed, err)
	}

	return s.submitter.Submit(ctx, unsigned, signed)
}

// fee is the fee of one transfer in lumens.
func (s *PaymentService) fee() decimal.Decimal {
	return decimal.New(s.builder.Fee(), -units.Precision)
}

// identity returns the account of a signer able to sign.
func identity(sgn signer.Signer) (string, error) {
	if sgn == nil || !sgn.Ready() {
		return "", failure.New(failure.ReasonSignerNotReady, "signer is not ready")
	}
	account, ok := sgn.Identity()
	if !ok {
		return "", failure.New(failure.ReasonSignerNotReady, "signer has no current identity")
	}
	err := address.ValidateKey(account)
	if err != nil {
		return "", failure.New(failure.ReasonSignerNotReady, fmt.Sprintf("signer identity is not an account: %s", account))
	}
	return account, nil
}
