// Package txbuild assembles unsigned native payments against the source
// account's current sequence number.
package txbuild

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stellar/go/amount"
	"github.com/stellar/go/txnbuild"

	"github.com/saif727/stellar-payroll-engine/address"
	"github.com/saif727/stellar-payroll-engine/failure"
	"github.com/saif727/stellar-payroll-engine/ledger"
	"github.com/saif727/stellar-payroll-engine/units"
)

// MemoTextMaxLength is the largest text memo the network accepts, in bytes.
const MemoTextMaxLength = 28

// Request describes one transfer to build. Destination must already be a
// resolved account ID.
type Request struct {
	Source      string
	Destination string
	BaseAmount  string
	Memo        string
}

// Unsigned is a built transfer awaiting a signature. Sequence is the source
// account's sequence at build time; the transaction consumes Sequence+1.
type Unsigned struct {
	Source      string
	Sequence    int64
	Destination string
	BaseAmount  string
	Fee         int64
	Memo        string
	ExpiresAt   time.Time
	Envelope    string
	Hash        string
}

// Builder creates unsigned transactions.
type Builder struct {
	log        zerolog.Logger
	provider   ledger.Provider
	passphrase string
	cfg        Config
}

// New creates a builder for the network identified by the passphrase.
func New(log zerolog.Logger, provider ledger.Provider, passphrase string, options ...Option) *Builder {
	cfg := DefaultConfig
	for _, option := range options {
		option(&cfg)
	}

	b := Builder{
		log:        log.With().Str("component", "tx_builder").Logger(),
		provider:   provider,
		passphrase: passphrase,
		cfg:        cfg,
	}

	return &b
}

// Fee is the fee in stroops charged for one single-operation transaction.
func (b *Builder) Fee() int64 {
	return b.cfg.BaseFee
}

// Build validates the request, reads the freshest sequence number of the source
// account and assembles the transaction. Invalid input fails before any I/O.
func (b *Builder) Build(ctx context.Context, req Request) (Unsigned, error) {
	err := address.ValidateKey(req.Source)
	if err != nil {
		return Unsigned{}, fmt.Errorf("invalid source: %w", err)
	}
	err = address.ValidateKey(req.Destination)
	if err != nil {
		return Unsigned{}, fmt.Errorf("invalid destination: %w", err)
	}
	base, err := units.ParseBase(req.BaseAmount)
	if err != nil {
		return Unsigned{}, err
	}
	if !base.IsPositive() {
		return Unsigned{}, failure.InvalidAmount("amount must be greater than zero")
	}
	if base.BigInt().BitLen() > 63 {
		return Unsigned{}, failure.InvalidAmount("amount exceeds the maximum representable value")
	}
	if len(req.Memo) > MemoTextMaxLength {
		return Unsigned{}, failure.New(failure.ReasonMalformedOperation,
			fmt.Sprintf("memo is %d bytes, limit is %d", len(req.Memo), MemoTextMaxLength))
	}

	// The sequence number is read fresh for every build; a cached value would
	// produce a transaction the network rejects with tx_bad_seq.
	source, err := b.provider.Account(ctx, req.Source)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return Unsigned{}, failure.New(failure.ReasonSourceNotFound, req.Source)
	}
	if err != nil {
		return Unsigned{}, ledger.CategorizeRead(err)
	}

	account := txnbuild.NewSimpleAccount(req.Source, source.Sequence)
	params := txnbuild.TransactionParams{
		SourceAccount:        &account,
		IncrementSequenceNum: true,
		Operations: []txnbuild.Operation{&txnbuild.Payment{
			Destination: req.Destination,
			Amount:      amount.StringFromInt64(base.IntPart()),
			Asset:       txnbuild.NativeAsset{},
		}},
		BaseFee:       b.cfg.BaseFee,
		Preconditions: txnbuild.Preconditions{TimeBounds: txnbuild.NewTimeout(int64(b.cfg.Timeout / time.Second))},
	}
	if req.Memo != "" {
		params.Memo = txnbuild.MemoText(req.Memo)
	}

	tx, err := txnbuild.NewTransaction(params)
	if err != nil {
		return Unsigned{}, failure.Wrap(failure.ReasonMalformedOperation, err)
	}
	envelope, err := tx.Base64()
	if err != nil {
		return Unsigned{}, failure.Wrap(failure.ReasonMalformedOperation, err)
	}
	hash, err := tx.HashHex(b.passphrase)
	if err != nil {
		return Unsigned{}, failure.Wrap(failure.ReasonMalformedOperation, err)
	}

	unsigned := Unsigned{
		Source:      req.Source,
		Sequence:    source.Sequence,
		Destination: req.Destination,
		BaseAmount:  base.String(),
		Fee:         tx.MaxFee(),
		Memo:        req.Memo,
		ExpiresAt:   time.Unix(tx.Timebounds().MaxTime, 0),
		Envelope:    envelope,
		Hash:        hash,
	}

	b.log.Debug().
		Str("source", unsigned.Source).
		Str("destination", unsigned.Destination).
		Int64("sequence", unsigned.Sequence+1).
		Str("hash", unsigned.Hash).
		Msg("transaction built")

	return unsigned, nil
}
