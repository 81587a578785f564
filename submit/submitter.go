// Package submit sends signed transactions to the network and turns every
// rejection into a categorized failure. It never retries: a blind retry of a
// sequence-bearing transaction can double spend if the first attempt landed.
package submit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stellar/go/txnbuild"

	"github.com/saif727/stellar-payroll-engine/failure"
	"github.com/saif727/stellar-payroll-engine/ledger"
	"github.com/saif727/stellar-payroll-engine/txbuild"
)

// Outcome is the result of a transaction the network accepted.
type Outcome struct {
	Hash        string
	Ledger      int32
	Accepted    bool
	Source      string
	Destination string
	BaseAmount  string
	Sequence    int64
}

// Submitter posts signed envelopes through a ledger provider.
type Submitter struct {
	log        zerolog.Logger
	provider   ledger.Provider
	passphrase string
	now        func() time.Time
}

// New creates a submitter for the network identified by the passphrase.
func New(log zerolog.Logger, provider ledger.Provider, passphrase string) *Submitter {
	s := Submitter{
		log:        log.With().Str("component", "tx_submitter").Logger(),
		provider:   provider,
		passphrase: passphrase,
		now:        time.Now,
	}
	return &s
}

// Submit checks that the signed envelope is the transaction that was built,
// then submits it. Once the request is sent it runs to an outcome even if the
// context is cancelled.
func (s *Submitter) Submit(ctx context.Context, unsigned txbuild.Unsigned, signed string) (Outcome, error) {
	err := s.verify(unsigned, signed)
	if err != nil {
		return Outcome{}, err
	}
	if s.now().After(unsigned.ExpiresAt) {
		return Outcome{}, failure.New(failure.ReasonTransactionExpired,
			fmt.Sprintf("validity window closed at %s", unsigned.ExpiresAt.UTC().Format(time.RFC3339)))
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, failure.Wrap(failure.ReasonNetworkUnavailable, err)
	}

	log := s.log.With().
		Str("source", unsigned.Source).
		Str("destination", unsigned.Destination).
		Int64("sequence", unsigned.Sequence+1).
		Str("hash", unsigned.Hash).
		Logger()

	receipt, err := s.provider.Submit(context.WithoutCancel(ctx), signed)
	if err != nil {
		ferr := Categorize(err)
		log.Warn().
			Str("reason", string(ferr.Reason)).
			Strs("codes", ferr.Codes).
			Err(err).
			Msg("transaction rejected")
		return Outcome{}, ferr
	}
	if !receipt.Successful {
		log.Warn().Str("hash", receipt.Hash).Msg("transaction included but not successful")
		return Outcome{}, failure.New(failure.ReasonUnknown, fmt.Sprintf("transaction %s was not successful", receipt.Hash))
	}

	log.Info().Int32("ledger", receipt.Ledger).Msg("transaction accepted")

	outcome := Outcome{
		Hash:        receipt.Hash,
		Ledger:      receipt.Ledger,
		Accepted:    true,
		Source:      unsigned.Source,
		Destination: unsigned.Destination,
		BaseAmount:  unsigned.BaseAmount,
		Sequence:    unsigned.Sequence + 1,
	}
	return outcome, nil
}

func (s *Submitter) verify(unsigned txbuild.Unsigned, signed string) error {
	generic, err := txnbuild.TransactionFromXDR(signed)
	if err != nil {
		return failure.New(failure.ReasonMalformedOperation, "signed envelope could not be decoded")
	}
	tx, ok := generic.Transaction()
	if !ok {
		return failure.New(failure.ReasonMalformedOperation, "signed envelope is not a simple transaction")
	}
	hash, err := tx.HashHex(s.passphrase)
	if err != nil {
		return failure.Wrap(failure.ReasonMalformedOperation, err)
	}
	if hash != unsigned.Hash {
		return failure.New(failure.ReasonMalformedOperation, "signed envelope does not match the built transaction")
	}
	if len(tx.Signatures()) == 0 {
		return failure.New(failure.ReasonSignatureInvalid, "signed envelope carries no signature")
	}
	return nil
}
