package submit

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/saif727/stellar-payroll-engine/failure"
	"github.com/saif727/stellar-payroll-engine/ledger"
)

// Transaction-level result codes.
var transactionCodes = map[string]failure.Reason{
	"tx_bad_seq":                failure.ReasonSequenceConflict,
	"tx_insufficient_balance":   failure.ReasonInsufficientBalance,
	"tx_insufficient_fee":       failure.ReasonFeeTooLow,
	"tx_bad_auth":               failure.ReasonSignatureInvalid,
	"tx_bad_auth_extra":         failure.ReasonSignatureInvalid,
	"tx_no_source_account":      failure.ReasonSourceNotFound,
	"tx_too_early":              failure.ReasonTransactionExpired,
	"tx_too_late":               failure.ReasonTransactionExpired,
	"tx_missing_operation":      failure.ReasonMalformedOperation,
	"tx_malformed":              failure.ReasonMalformedOperation,
	"tx_not_supported":          failure.ReasonMalformedOperation,
	"tx_bad_sponsorship":        failure.ReasonMalformedOperation,
	"tx_bad_min_seq_age_or_gap": failure.ReasonSequenceConflict,
	"tx_internal_error":         failure.ReasonNetworkUnavailable,
}

// Operation-level result codes of a payment.
var operationCodes = map[string]failure.Reason{
	"op_underfunded":         failure.ReasonInsufficientBalance,
	"op_low_reserve":         failure.ReasonInsufficientBalance,
	"op_no_destination":      failure.ReasonDestinationUnreachable,
	"op_no_trust":            failure.ReasonDestinationUnreachable,
	"op_not_authorized":      failure.ReasonDestinationUnreachable,
	"op_line_full":           failure.ReasonDestinationUnreachable,
	"op_no_issuer":           failure.ReasonDestinationUnreachable,
	"op_src_no_trust":        failure.ReasonMalformedOperation,
	"op_src_not_authorized":  failure.ReasonMalformedOperation,
	"op_malformed":           failure.ReasonMalformedOperation,
	"op_not_supported":       failure.ReasonMalformedOperation,
	"op_too_many_subentries": failure.ReasonMalformedOperation,
	"op_bad_auth":            failure.ReasonSignatureInvalid,
	"op_no_account":          failure.ReasonSourceNotFound,
	"op_no_source_account":   failure.ReasonSourceNotFound,
}

// Message fragments used when a rejection carries no result codes.
// TODO: drop message matching once every provider in use reports result codes.
var messageFragments = []struct {
	fragment string
	reason   failure.Reason
}{
	{"insufficient", failure.ReasonInsufficientBalance},
	{"underfunded", failure.ReasonInsufficientBalance},
	{"sequence", failure.ReasonSequenceConflict},
	{"fee", failure.ReasonFeeTooLow},
	{"destination", failure.ReasonDestinationUnreachable},
	{"does not exist", failure.ReasonDestinationUnreachable},
	{"too many requests", failure.ReasonRateLimited},
	{"rate limit", failure.ReasonRateLimited},
	{"timeout", failure.ReasonSubmissionTimeout},
	{"timed out", failure.ReasonSubmissionTimeout},
}

// Categorize maps a submission error to a failure reason. A submission whose
// fate is unknown, because the request may have reached the network, becomes a
// SubmissionTimeout and must be reconciled rather than treated as failed.
func Categorize(err error) *failure.Error {
	if err == nil {
		return nil
	}

	var ferr *failure.Error
	if errors.As(err, &ferr) {
		return ferr
	}

	var rej *ledger.Rejection
	if errors.As(err, &rej) {
		return categorizeRejection(rej, err)
	}

	if unsent(err) {
		return failure.Wrap(failure.ReasonNetworkUnavailable, err)
	}

	var nerr net.Error
	if ledger.IsTimeout(err) || errors.As(err, &nerr) {
		return failure.Wrap(failure.ReasonSubmissionTimeout, err)
	}

	return failure.Unknown(err)
}

func categorizeRejection(rej *ledger.Rejection, err error) *failure.Error {
	if ledger.IsTimeout(rej) {
		return failure.Wrap(failure.ReasonSubmissionTimeout, err)
	}
	if rej.Status == http.StatusTooManyRequests {
		return failure.Wrap(failure.ReasonRateLimited, err)
	}

	reason, code, ok := reasonFromCodes(rej)
	if ok {
		e := failure.Wrap(reason, err)
		e.Detail = fmt.Sprintf("rejected by the network: %s", code)
		e.Codes = rej.Codes()
		return e
	}

	if rej.Status >= http.StatusInternalServerError {
		return failure.Wrap(failure.ReasonNetworkUnavailable, err)
	}

	message := strings.ToLower(rej.Title + " " + rej.Detail)
	for _, match := range messageFragments {
		if strings.Contains(message, match.fragment) {
			e := failure.Wrap(match.reason, err)
			e.Codes = rej.Codes()
			return e
		}
	}

	e := failure.Unknown(err)
	e.Codes = rej.Codes()
	return e
}

// reasonFromCodes picks the most specific code: the first failing operation
// code when the transaction failed as a whole, otherwise the transaction code.
func reasonFromCodes(rej *ledger.Rejection) (failure.Reason, string, bool) {
	txCode := rej.TransactionCode
	if txCode == "tx_fee_bump_inner_failed" && rej.InnerCode != "" {
		txCode = rej.InnerCode
	}

	if txCode == "tx_failed" || txCode == "tx_fee_bump_inner_failed" {
		for _, code := range rej.OperationCodes {
			if code == "op_success" {
				continue
			}
			reason, ok := operationCodes[code]
			if ok {
				return reason, code, true
			}
			return failure.ReasonUnknown, code, true
		}
	}

	reason, ok := transactionCodes[txCode]
	if ok {
		return reason, txCode, true
	}
	if txCode != "" {
		return failure.ReasonUnknown, txCode, true
	}

	return "", "", false
}

// unsent reports whether a transport error happened before the request could
// have left the client.
func unsent(err error) bool {
	var op *net.OpError
	if errors.As(err, &op) && op.Op == "dial" {
		return true
	}
	var dns *net.DNSError
	return errors.As(err, &dns)
}
