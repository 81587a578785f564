package ledger

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/saif727/stellar-payroll-engine/failure"
)

// CategorizeRead maps an error from a read against the network, such as an
// account load, to a failure reason. Reads are idempotent, so a timeout here is
// reported as the network being unavailable rather than as an ambiguous outcome.
func CategorizeRead(err error) *failure.Error {
	if err == nil {
		return nil
	}

	var ferr *failure.Error
	if errors.As(err, &ferr) {
		return ferr
	}

	var rej *Rejection
	if errors.As(err, &rej) {
		switch {
		case rej.Status == http.StatusTooManyRequests:
			return failure.Wrap(failure.ReasonRateLimited, err)
		case rej.Status >= http.StatusInternalServerError:
			return failure.Wrap(failure.ReasonNetworkUnavailable, err)
		default:
			return failure.Unknown(err)
		}
	}

	if IsTransport(err) {
		return failure.Wrap(failure.ReasonNetworkUnavailable, err)
	}

	return failure.Unknown(err)
}

// IsTransport reports whether an error originates below HTTP: dial failures,
// resets, deadlines and cancellations.
func IsTransport(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr)
}

// IsTimeout reports whether an error is a client-side or gateway timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Status == http.StatusGatewayTimeout ||
			rej.Type == "https://stellar.org/horizon-errors/timeout"
	}
	return false
}
