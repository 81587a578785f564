// Package signer defines the signing capability the payment engine delegates to.
// The engine holds no key material; a signer is supplied by the caller for the
// duration of a session and is never subclassed by the engine.
package signer

import (
	"context"
	"errors"
)

var (
	// ErrDeclined is returned when the key holder refuses to sign.
	ErrDeclined = errors.New("signing declined")
	// ErrDisconnected is returned when the key holder went away mid-session.
	ErrDisconnected = errors.New("signer disconnected")
)

// Signer signs base64 transaction envelopes on behalf of one account.
type Signer interface {
	// Sign returns the signed envelope for an unsigned one.
	Sign(ctx context.Context, envelope string) (string, error)
	// Identity returns the account ID of the key holder, if known.
	Identity() (string, bool)
	// Ready reports whether the signer can currently sign.
	Ready() bool
}

// Stopped reports whether a signer error means no further signature prompts
// can succeed in this session.
func Stopped(err error) bool {
	return errors.Is(err, ErrDeclined) || errors.Is(err, ErrDisconnected)
}
