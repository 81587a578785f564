// Package ledger is the port through which the payment engine reaches the
// network: account loads, transaction submission and payment history.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrAccountNotFound is returned when the network has no entry for an account,
// which is the normal state of a key that was never funded.
var ErrAccountNotFound = errors.New("account not found")

// Account is the subset of an account entry the engine needs.
type Account struct {
	ID            string
	Sequence      int64
	NativeBalance string
	SubentryCount int32
	NumSponsoring uint32
	NumSponsored  uint32
}

// Receipt is the network's acknowledgement of an included transaction.
type Receipt struct {
	Hash       string
	Ledger     int32
	Successful bool
}

// Payment is one historical native payment involving an account.
type Payment struct {
	ID        string
	Hash      string
	From      string
	To        string
	Amount    string
	CreatedAt time.Time
}

// Provider loads accounts, submits signed envelopes and looks up payments.
type Provider interface {
	Account(ctx context.Context, id string) (Account, error)
	Submit(ctx context.Context, envelope string) (Receipt, error)
	Payments(ctx context.Context, id string, limit uint) ([]Payment, error)
}

// Resolver turns a federation alias into an account ID.
type Resolver interface {
	Resolve(ctx context.Context, alias string) (string, error)
}

// Rejection is a structured error response from the network. Status is the
// HTTP status code; TransactionCode and OperationCodes are the result codes
// attached to a failed submission, if any.
type Rejection struct {
	Status          int
	Type            string
	Title           string
	Detail          string
	TransactionCode string
	InnerCode       string
	OperationCodes  []string
}

func (r *Rejection) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ledger rejected request (status: %d", r.Status)
	if r.Title != "" {
		fmt.Fprintf(&b, ", title: %s", r.Title)
	}
	if r.TransactionCode != "" {
		fmt.Fprintf(&b, ", tx: %s", r.TransactionCode)
	}
	if r.InnerCode != "" {
		fmt.Fprintf(&b, ", inner: %s", r.InnerCode)
	}
	if len(r.OperationCodes) > 0 {
		fmt.Fprintf(&b, ", ops: %s", strings.Join(r.OperationCodes, ","))
	}
	b.WriteString(")")
	if r.Detail != "" {
		fmt.Fprintf(&b, ": %s", r.Detail)
	}
	return b.String()
}

// Codes returns every result code of the rejection, transaction codes first.
func (r *Rejection) Codes() []string {
	codes := make([]string, 0, len(r.OperationCodes)+2)
	if r.TransactionCode != "" {
		codes = append(codes, r.TransactionCode)
	}
	if r.InnerCode != "" {
		codes = append(codes, r.InnerCode)
	}
	return append(codes, r.OperationCodes...)
}
