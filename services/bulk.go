package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/saif727/stellar-payroll-engine/address"
	"github.com/saif727/stellar-payroll-engine/failure"
	"github.com/saif727/stellar-payroll-engine/signer"
	"github.com/saif727/stellar-payroll-engine/submit"
	"github.com/saif727/stellar-payroll-engine/txbuild"
	"github.com/saif727/stellar-payroll-engine/units"
)

// Status is the final state of one batch item.
type Status string

const (
	StatusSucceeded    Status = "succeeded"
	StatusFailed       Status = "failed"
	StatusNotAttempted Status = "not_attempted"
	// StatusUnknown marks an item whose submission timed out. It may still have
	// been included and must be reconciled against the ledger before it is paid
	// again.
	StatusUnknown Status = "unknown"
)

// Recipient is one requested transfer of a batch. Amount is in lumens.
type Recipient struct {
	Destination string
	Amount      float64
	Memo        string
}

// ItemOutcome is the result for one recipient. Index is the 1-based position in
// the batch. Outcome is only set when Status is StatusSucceeded, and Err only
// when it is StatusFailed or StatusUnknown.
type ItemOutcome struct {
	Index       int
	Destination string
	Account     string
	Amount      decimal.Decimal
	Memo        string
	Status      Status
	Attempts    int
	Outcome     submit.Outcome
	Err         error
}

// BatchResult holds one outcome per recipient, in input order.
type BatchResult struct {
	ID           uuid.UUID
	Source       string
	Items        []ItemOutcome
	Succeeded    int
	Failed       int
	Unknown      int
	NotAttempted int
}

// Successful reports whether at least one payment of the batch went through.
// Callers must inspect the items to learn which.
func (b BatchResult) Successful() bool {
	return b.Succeeded > 0
}

// BulkService pays many recipients from one source account, one at a time.
type BulkService struct {
	log      zerolog.Logger
	payments *PaymentService
	cfg      Config
}

// NewBulkService creates a bulk service dispatching through the given payment
// service.
func NewBulkService(log zerolog.Logger, payments *PaymentService, options ...Option) *BulkService {
	cfg := DefaultConfig
	for _, option := range options {
		option(&cfg)
	}

	b := BulkService{
		log:      log.With().Str("component", "bulk_service").Logger(),
		payments: payments,
		cfg:      cfg,
	}

	return &b
}

type validated struct {
	recipient address.Recipient
	amount    decimal.Decimal
	base      string
	memo      string
}

// SendBulkPayments validates the whole batch, checks the aggregate balance and
// then dispatches the payments sequentially in input order. A failed item does
// not stop the batch unless the signer is gone; a cancelled context stops it
// before the next item. Validation and aggregate balance errors abort the batch
// before any submission.
func (b *BulkService) SendBulkPayments(ctx context.Context, sgn signer.Signer, recipients []Recipient) (BatchResult, error) {
	if len(recipients) == 0 {
		return BatchResult{}, failure.New(failure.ReasonEmptyBatch, "batch has no recipients")
	}
	source, err := identity(sgn)
	if err != nil {
		return BatchResult{}, err
	}
	items, err := validateBatch(recipients)
	if err != nil {
		return BatchResult{}, err
	}

	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.amount)
	}
	total = total.Add(b.payments.fee().Mul(decimal.NewFromInt(int64(len(items)))))

	err = b.preflight(ctx, source, total)
	if err != nil {
		return BatchResult{}, err
	}

	release, err := b.payments.locks.acquire(ctx, source)
	if err != nil {
		return BatchResult{}, failure.Wrap(failure.ReasonNetworkUnavailable, err)
	}
	defer release()

	result := BatchResult{
		ID:     uuid.New(),
		Source: source,
		Items:  make([]ItemOutcome, len(items)),
	}
	for i, item := range items {
		result.Items[i] = ItemOutcome{
			Index:       i + 1,
			Destination: item.recipient.Address,
			Amount:      item.amount,
			Memo:        item.memo,
			Status:      StatusNotAttempted,
		}
	}

	log := b.log.With().
		Str("batch", result.ID.String()).
		Str("source", source).
		Logger()
	log.Info().
		Int("recipients", len(items)).
		Str("total", total.String()).
		Msg("batch dispatch started")

	limiter := rate.NewLimiter(rate.Every(b.cfg.DispatchInterval), 1)
	for i, item := range items {
		err := limiter.Wait(ctx)
		if err != nil {
			log.Warn().Int("recipient", i+1).Err(err).Msg("batch stopped before recipient")
			break
		}

		outcome := &result.Items[i]
		b.dispatchItem(ctx, log, sgn, source, item, outcome)

		if outcome.Status == StatusFailed && signer.Stopped(outcome.Err) {
			log.Warn().
				Int("recipient", outcome.Index).
				Str("reason", string(failure.ReasonOf(outcome.Err))).
				Msg("signer unavailable, remaining recipients not attempted")
			break
		}
	}

	b.payments.cache.Invalidate(source)
	for _, item := range result.Items {
		switch item.Status {
		case StatusSucceeded:
			result.Succeeded++
			b.payments.cache.Invalidate(item.Account)
		case StatusFailed:
			result.Failed++
		case StatusUnknown:
			result.Unknown++
			b.payments.cache.Invalidate(item.Account)
		default:
			result.NotAttempted++
		}
	}

	log.Info().
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Int("unknown", result.Unknown).
		Int("not_attempted", result.NotAttempted).
		Msg("batch dispatch completed")

	return result, nil
}

// dispatchItem runs one recipient to an outcome, retrying rejections that are
// safe to retry against a fresh sequence number.
func (b *BulkService) dispatchItem(ctx context.Context, log zerolog.Logger, sgn signer.Signer, source string, item validated, outcome *ItemOutcome) {
	fail := func(err error) {
		outcome.Status = StatusFailed
		msg := "payment failed"
		if failure.ReasonOf(err) == failure.ReasonSubmissionTimeout {
			outcome.Status = StatusUnknown
			msg = "payment outcome unknown"
		}
		outcome.Err = failure.ForRecipient(err, outcome.Index)
		log.Warn().
			Int("recipient", outcome.Index).
			Str("destination", outcome.Destination).
			Str("reason", string(failure.ReasonOf(err))).
			Err(err).
			Msg(msg)
	}

	if !sgn.Ready() {
		fail(failure.Wrap(failure.ReasonSignerNotReady, signer.ErrDisconnected))
		return
	}

	account, err := b.payments.resolve(ctx, item.recipient)
	if err != nil {
		outcome.Attempts = 1
		fail(err)
		return
	}
	outcome.Account = account

	req := txbuild.Request{
		Source:      source,
		Destination: account,
		BaseAmount:  item.base,
		Memo:        item.memo,
	}

	var last error
	op := func() error {
		outcome.Attempts++
		result, err := b.payments.dispatch(ctx, sgn, req)
		if err == nil {
			outcome.Outcome = result
			return nil
		}
		last = err
		if !failure.Retryable(err) {
			return backoff.Permanent(err)
		}
		log.Debug().
			Int("recipient", outcome.Index).
			Int("attempt", outcome.Attempts).
			Str("reason", string(failure.ReasonOf(err))).
			Msg("retrying payment")
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(b.cfg.RetryDelay), uint64(b.cfg.MaxRetries)),
		ctx,
	)
	err = backoff.Retry(op, policy)
	if err != nil {
		if last != nil {
			err = last
		}
		fail(err)
		return
	}

	outcome.Status = StatusSucceeded
	log.Info().
		Int("recipient", outcome.Index).
		Str("destination", account).
		Str("hash", outcome.Outcome.Hash).
		Int32("ledger", outcome.Outcome.Ledger).
		Msg("payment succeeded")
}

func (b *BulkService) preflight(ctx context.Context, source string, required decimal.Decimal) error {
	snapshot, err := b.payments.cache.Refresh(ctx, source)
	if err != nil {
		b.log.Warn().
			Str("source", source).
			Err(err).
			Msg("aggregate balance check skipped, leaving sufficiency to the network")
		return nil
	}
	if snapshot.Spendable.LessThan(required) {
		return failure.InsufficientBalance(required, snapshot.Spendable)
	}
	return nil
}

// validateBatch checks every recipient and reports all violations at once.
func validateBatch(recipients []Recipient) ([]validated, error) {
	var merr *multierror.Error
	items := make([]validated, 0, len(recipients))
	for i, r := range recipients {
		position := i + 1
		violations := 0
		violate := func(err error) {
			violations++
			merr = multierror.Append(merr, failure.ForRecipient(err, position))
		}

		recipient, err := address.Validate(r.Destination)
		if err != nil {
			violate(err)
		}
		amount, err := units.Positive(r.Amount)
		if err != nil {
			violate(err)
		}
		if len(r.Memo) > txbuild.MemoTextMaxLength {
			violate(failure.New(failure.ReasonMalformedOperation,
				fmt.Sprintf("memo is %d bytes, limit is %d", len(r.Memo), txbuild.MemoTextMaxLength)))
		}
		if violations > 0 {
			continue
		}

		base, err := units.ToBase(r.Amount)
		if err != nil {
			violate(err)
			continue
		}
		items = append(items, validated{
			recipient: recipient,
			amount:    amount,
			base:      base,
			memo:      r.Memo,
		})
	}

	if merr != nil {
		merr.ErrorFormat = formatViolations
	}
	return items, merr.ErrorOrNil()
}

func formatViolations(errs []error) string {
	lines := make([]string, 0, len(errs))
	for _, err := range errs {
		lines = append(lines, err.Error())
	}
	return fmt.Sprintf("batch rejected, %d violation(s): %s", len(errs), strings.Join(lines, "; "))
}

