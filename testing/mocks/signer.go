package mocks

import (
	"context"
	"testing"

	"github.com/saif727/stellar-payroll-engine/signer"
)

type Signer struct {
	SignFunc     func(ctx context.Context, envelope string) (string, error)
	IdentityFunc func() (string, bool)
	ReadyFunc    func() bool
}

// BaselineSigner signs for GenericSource with its real key, so that signed
// envelopes decode and hash like the ones a wallet would return.
func BaselineSigner(t *testing.T) *Signer {
	t.Helper()

	kp := signer.FromFull(GenericSource, GenericPassphrase)
	s := Signer{
		SignFunc: kp.Sign,
		IdentityFunc: func() (string, bool) {
			return GenericSource.Address(), true
		},
		ReadyFunc: func() bool {
			return true
		},
	}

	return &s
}

func (s *Signer) Sign(ctx context.Context, envelope string) (string, error) {
	return s.SignFunc(ctx, envelope)
}

func (s *Signer) Identity() (string, bool) {
	return s.IdentityFunc()
}

func (s *Signer) Ready() bool {
	return s.ReadyFunc()
}
