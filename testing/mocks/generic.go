package mocks

import (
	"errors"
	"io"

	"github.com/rs/zerolog"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
)

// Global values commonly needed to test payment engine components.
var (
	NoopLogger = zerolog.New(io.Discard)

	GenericError = errors.New("dummy error")

	GenericPassphrase = network.TestNetworkPassphrase

	GenericSequence = int64(4242)

	GenericHash = "3389e9f0f1a65f19736cacf544c2e825313e8447f569233bb8db39aa607c8889"

	GenericLedger = int32(1337)

	GenericSource = GenericKeypair(0)
)

// GenericKeypair returns a deterministic full keypair for the given index.
func GenericKeypair(index int) *keypair.Full {
	var seed [32]byte
	seed[0] = byte(index)
	seed[1] = byte(index >> 8)
	seed[31] = 0x2a
	kp, err := keypair.FromRawSeed(seed)
	if err != nil {
		panic(err)
	}
	return kp
}

// GenericAddress returns a deterministic valid account ID for the given index.
func GenericAddress(index int) string {
	return GenericKeypair(index).Address()
}
