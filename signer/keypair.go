package signer

import (
	"context"
	"errors"
	"fmt"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
)

// Keypair signs with a key held in process memory, the way a browser-resident
// key holder does. It is meant for operator tooling and tests.
type Keypair struct {
	kp         *keypair.Full
	passphrase string
}

// NewKeypair creates a signer from a secret seed.
func NewKeypair(seed string, passphrase string) (*Keypair, error) {
	kp, err := keypair.ParseFull(seed)
	if err != nil {
		return nil, fmt.Errorf("could not parse secret seed: %w", err)
	}
	return FromFull(kp, passphrase), nil
}

// FromFull wraps an existing full keypair.
func FromFull(kp *keypair.Full, passphrase string) *Keypair {
	k := Keypair{
		kp:         kp,
		passphrase: passphrase,
	}
	return &k
}

// Sign adds the keypair's signature to an envelope.
func (k *Keypair) Sign(ctx context.Context, envelope string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	generic, err := txnbuild.TransactionFromXDR(envelope)
	if err != nil {
		return "", fmt.Errorf("could not decode envelope: %w", err)
	}
	tx, ok := generic.Transaction()
	if !ok {
		return "", errors.New("envelope is not a simple transaction")
	}

	tx, err = tx.Sign(k.passphrase, k.kp)
	if err != nil {
		return "", fmt.Errorf("could not sign transaction: %w", err)
	}

	signed, err := tx.Base64()
	if err != nil {
		return "", fmt.Errorf("could not encode signed transaction: %w", err)
	}

	return signed, nil
}

// Identity returns the keypair's account ID.
func (k *Keypair) Identity() (string, bool) {
	return k.kp.Address(), true
}

// Ready is always true for an in-memory key.
func (k *Keypair) Ready() bool {
	return true
}
