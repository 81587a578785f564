// Package failure defines the categorized errors returned by the payment engine.
// Raw Horizon problems and transport errors never cross the engine boundary; they
// are re-encoded into an *Error carrying one of the reasons below.
package failure

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Reason tags an engine error.
type Reason string

const (
	ReasonInvalidAddress         Reason = "invalid_address"
	ReasonInvalidAmount          Reason = "invalid_amount"
	ReasonSignerNotReady         Reason = "signer_not_ready"
	ReasonSigningDeclined        Reason = "signing_declined"
	ReasonSigningFailed          Reason = "signing_failed"
	ReasonInsufficientBalance    Reason = "insufficient_balance"
	ReasonSequenceConflict       Reason = "sequence_conflict"
	ReasonDestinationUnreachable Reason = "destination_unreachable"
	ReasonSourceNotFound         Reason = "source_not_found"
	ReasonFeeTooLow              Reason = "fee_too_low"
	ReasonSignatureInvalid       Reason = "signature_invalid"
	ReasonMalformedOperation     Reason = "malformed_operation"
	ReasonTransactionExpired     Reason = "transaction_expired"
	ReasonSubmissionTimeout      Reason = "submission_timeout"
	ReasonRateLimited            Reason = "rate_limited"
	ReasonNetworkUnavailable     Reason = "network_unavailable"
	ReasonEmptyBatch             Reason = "empty_batch"
	ReasonUnknown                Reason = "unknown"
)

// Sentinels for errors.Is; they match any *Error with the same reason.
var (
	ErrInvalidAddress         = &Error{Reason: ReasonInvalidAddress}
	ErrInvalidAmount          = &Error{Reason: ReasonInvalidAmount}
	ErrSignerNotReady         = &Error{Reason: ReasonSignerNotReady}
	ErrSigningDeclined        = &Error{Reason: ReasonSigningDeclined}
	ErrSigningFailed          = &Error{Reason: ReasonSigningFailed}
	ErrInsufficientBalance    = &Error{Reason: ReasonInsufficientBalance}
	ErrSequenceConflict       = &Error{Reason: ReasonSequenceConflict}
	ErrDestinationUnreachable = &Error{Reason: ReasonDestinationUnreachable}
	ErrSourceNotFound         = &Error{Reason: ReasonSourceNotFound}
	ErrFeeTooLow              = &Error{Reason: ReasonFeeTooLow}
	ErrSignatureInvalid       = &Error{Reason: ReasonSignatureInvalid}
	ErrMalformedOperation     = &Error{Reason: ReasonMalformedOperation}
	ErrTransactionExpired     = &Error{Reason: ReasonTransactionExpired}
	ErrSubmissionTimeout      = &Error{Reason: ReasonSubmissionTimeout}
	ErrRateLimited            = &Error{Reason: ReasonRateLimited}
	ErrNetworkUnavailable     = &Error{Reason: ReasonNetworkUnavailable}
	ErrEmptyBatch             = &Error{Reason: ReasonEmptyBatch}
)

// Error is a categorized engine error. Required and Available are only set for
// ReasonInsufficientBalance; Codes holds the raw ledger result codes for logging.
type Error struct {
	Reason    Reason
	Detail    string
	Recipient int
	Required  decimal.Decimal
	Available decimal.Decimal
	Codes     []string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Recipient > 0 {
		fmt.Fprintf(&b, "Recipient %d: ", e.Recipient)
	}
	b.WriteString(e.title())
	switch {
	case e.Reason == ReasonInsufficientBalance && !e.Required.IsZero():
		fmt.Fprintf(&b, " (required: %s, available: %s, shortfall: %s)",
			e.Required.StringFixed(7), e.Available.StringFixed(7), e.Shortfall().StringFixed(7))
	case e.Detail != "":
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same reason, so the package sentinels work
// with errors.Is regardless of detail.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Reason == e.Reason
}

// Shortfall is how much the available balance falls short of the required one.
func (e *Error) Shortfall() decimal.Decimal {
	short := e.Required.Sub(e.Available)
	if short.IsNegative() {
		return decimal.Zero
	}
	return short
}

func (e *Error) title() string {
	switch e.Reason {
	case ReasonInvalidAddress:
		return "invalid address"
	case ReasonInvalidAmount:
		return "invalid amount"
	case ReasonSignerNotReady:
		return "signer not ready"
	case ReasonSigningDeclined:
		return "signing declined"
	case ReasonSigningFailed:
		return "signing failed"
	case ReasonInsufficientBalance:
		return "insufficient balance"
	case ReasonSequenceConflict:
		return "sequence number conflict"
	case ReasonDestinationUnreachable:
		return "destination unreachable"
	case ReasonSourceNotFound:
		return "source account not found"
	case ReasonFeeTooLow:
		return "fee too low"
	case ReasonSignatureInvalid:
		return "signature invalid"
	case ReasonMalformedOperation:
		return "malformed operation"
	case ReasonTransactionExpired:
		return "transaction expired"
	case ReasonSubmissionTimeout:
		return "submission timed out, outcome unknown"
	case ReasonRateLimited:
		return "rate limited"
	case ReasonNetworkUnavailable:
		return "network unavailable"
	case ReasonEmptyBatch:
		return "empty batch"
	default:
		return "unknown error"
	}
}

// New creates an error for the given reason.
func New(reason Reason, detail string) *Error {
	return &Error{Reason: reason, Detail: detail}
}

// Wrap creates an error for the given reason around a cause.
func Wrap(reason Reason, err error) *Error {
	e := Error{Reason: reason, Err: err}
	if err != nil {
		e.Detail = err.Error()
	}
	return &e
}

// InvalidAddress creates an address validation error.
func InvalidAddress(detail string) *Error {
	return New(ReasonInvalidAddress, detail)
}

// InvalidAmount creates an amount validation error.
func InvalidAmount(detail string) *Error {
	return New(ReasonInvalidAmount, detail)
}

// InsufficientBalance creates a sufficiency error naming both sides of the comparison.
func InsufficientBalance(required, available decimal.Decimal) *Error {
	return &Error{
		Reason:    ReasonInsufficientBalance,
		Required:  required,
		Available: available,
	}
}

// Unknown wraps an error that could not be categorized.
func Unknown(err error) *Error {
	return Wrap(ReasonUnknown, err)
}

// ForRecipient returns a copy of the error attributed to a 1-based recipient
// position within a batch.
func ForRecipient(err error, recipient int) *Error {
	var e *Error
	if !errors.As(err, &e) {
		e = Unknown(err)
	}
	dup := *e
	dup.Recipient = recipient
	return &dup
}

// ReasonOf extracts the reason of an engine error, or ReasonUnknown.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ReasonUnknown
}

// Retryable reports whether a rejected payment may be rebuilt against a fresh
// sequence number and sent again without risking a double spend. A timed out
// submission is not retryable; its outcome is unknown.
func Retryable(err error) bool {
	switch ReasonOf(err) {
	case ReasonRateLimited, ReasonSequenceConflict:
		return true
	default:
		return false
	}
}
