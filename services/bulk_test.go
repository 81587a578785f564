package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saif727/stellar-payroll-engine/failure"
	"github.com/saif727/stellar-payroll-engine/ledger"
	"github.com/saif727/stellar-payroll-engine/signer"
	"github.com/saif727/stellar-payroll-engine/testing/mocks"
)

func testBulkService(t *testing.T, provider *mocks.Provider, options ...Option) *BulkService {
	t.Helper()

	options = append([]Option{WithDispatchInterval(0), WithRetryDelay(time.Millisecond)}, options...)
	return NewBulkService(mocks.NoopLogger, testPaymentService(t, provider, mocks.BaselineResolver(t)), options...)
}

func threeRecipients() []Recipient {
	return []Recipient{
		{Destination: mocks.GenericAddress(1), Amount: 10, Memo: "jan"},
		{Destination: mocks.GenericAddress(2), Amount: 20},
		{Destination: mocks.GenericAddress(3), Amount: 30},
	}
}

func TestBulkService_SendBulkPayments(t *testing.T) {
	t.Run("nominal case", func(t *testing.T) {
		provider := mocks.BaselineProvider(t)
		var envelopes []string
		provider.SubmitFunc = func(context.Context, string) (ledger.Receipt, error) {
			return ledger.Receipt{Hash: mocks.GenericHash, Ledger: mocks.GenericLedger, Successful: true}, nil
		}
		sgn := mocks.BaselineSigner(t)
		sign := sgn.SignFunc
		sgn.SignFunc = func(ctx context.Context, envelope string) (string, error) {
			envelopes = append(envelopes, envelope)
			return sign(ctx, envelope)
		}

		b := testBulkService(t, provider)
		got, err := b.SendBulkPayments(context.Background(), sgn, threeRecipients())

		require.NoError(t, err)
		assert.NotEmpty(t, got.ID)
		assert.Equal(t, mocks.GenericSource.Address(), got.Source)
		assert.True(t, got.Successful())
		assert.Equal(t, 3, got.Succeeded)
		assert.Zero(t, got.Failed)
		assert.Zero(t, got.NotAttempted)
		assert.Len(t, envelopes, 3)
		require.Len(t, got.Items, 3)
		for i, item := range got.Items {
			assert.Equal(t, i+1, item.Index)
			assert.Equal(t, StatusSucceeded, item.Status)
			assert.Equal(t, 1, item.Attempts)
			assert.Equal(t, mocks.GenericHash, item.Outcome.Hash)
			assert.Equal(t, mocks.GenericAddress(i+1), item.Outcome.Destination)
			assert.NoError(t, item.Err)
		}
		assert.Equal(t, "jan", got.Items[0].Memo)
		assert.Equal(t, "100000000", got.Items[0].Outcome.BaseAmount)
	})

	t.Run("empty batch", func(t *testing.T) {
		b := testBulkService(t, mocks.BaselineProvider(t))
		_, err := b.SendBulkPayments(context.Background(), mocks.BaselineSigner(t), nil)

		assert.ErrorIs(t, err, failure.ErrEmptyBatch)
	})

	t.Run("signer not ready", func(t *testing.T) {
		sgn := mocks.BaselineSigner(t)
		sgn.ReadyFunc = func() bool { return false }

		b := testBulkService(t, mocks.BaselineProvider(t))
		_, err := b.SendBulkPayments(context.Background(), sgn, threeRecipients())

		assert.ErrorIs(t, err, failure.ErrSignerNotReady)
	})

	t.Run("every violation is reported before any network call", func(t *testing.T) {
		provider := mocks.BaselineProvider(t)
		provider.AccountFunc = func(context.Context, string) (ledger.Account, error) {
			t.Fatal("provider must not be called for an invalid batch")
			return ledger.Account{}, nil
		}
		provider.SubmitFunc = func(context.Context, string) (ledger.Receipt, error) {
			t.Fatal("nothing must be submitted for an invalid batch")
			return ledger.Receipt{}, nil
		}
		recipients := []Recipient{
			{Destination: mocks.GenericAddress(1), Amount: 10},
			{Destination: "GBADADDRESS", Amount: 10},
			{Destination: mocks.GenericAddress(3), Amount: 10},
			{Destination: "*example.com", Amount: -1},
		}

		b := testBulkService(t, provider)
		_, err := b.SendBulkPayments(context.Background(), mocks.BaselineSigner(t), recipients)

		require.Error(t, err)
		assert.ErrorIs(t, err, failure.ErrInvalidAddress)
		assert.Contains(t, err.Error(), "Recipient 2: invalid address")
		assert.Contains(t, err.Error(), "Recipient 4: invalid address")
		assert.Contains(t, err.Error(), "Recipient 4: invalid amount")
		assert.NotContains(t, err.Error(), "Recipient 1")
		assert.NotContains(t, err.Error(), "Recipient 3")
	})

	t.Run("one invalid entry aborts the batch", func(t *testing.T) {
		provider := mocks.BaselineProvider(t)
		provider.AccountFunc = func(context.Context, string) (ledger.Account, error) {
			t.Fatal("provider must not be called for an invalid batch")
			return ledger.Account{}, nil
		}
		recipients := threeRecipients()
		recipients[1].Destination = mocks.GenericAddress(2)[:55]

		b := testBulkService(t, provider)
		_, err := b.SendBulkPayments(context.Background(), mocks.BaselineSigner(t), recipients)

		assert.ErrorIs(t, err, failure.ErrInvalidAddress)
		assert.Contains(t, err.Error(), "Recipient 2")
	})

	t.Run("failure of one item does not stop the batch", func(t *testing.T) {
		provider := mocks.BaselineProvider(t)
		submitted := 0
		provider.SubmitFunc = func(context.Context, string) (ledger.Receipt, error) {
			submitted++
			if submitted == 2 {
				return ledger.Receipt{}, &ledger.Rejection{
					Status:          http.StatusBadRequest,
					TransactionCode: "tx_failed",
					OperationCodes:  []string{"op_no_destination"},
				}
			}
			return ledger.Receipt{Hash: mocks.GenericHash, Ledger: mocks.GenericLedger, Successful: true}, nil
		}

		b := testBulkService(t, provider)
		got, err := b.SendBulkPayments(context.Background(), mocks.BaselineSigner(t), threeRecipients())

		require.NoError(t, err)
		require.Len(t, got.Items, 3)
		assert.Equal(t, StatusSucceeded, got.Items[0].Status)
		assert.Equal(t, StatusFailed, got.Items[1].Status)
		assert.Equal(t, StatusSucceeded, got.Items[2].Status)
		assert.ErrorIs(t, got.Items[1].Err, failure.ErrDestinationUnreachable)
		assert.Contains(t, got.Items[1].Err.Error(), "Recipient 2")
		assert.Equal(t, 2, got.Succeeded)
		assert.Equal(t, 1, got.Failed)
		assert.True(t, got.Successful())
	})

	t.Run("declined signature stops the batch", func(t *testing.T) {
		provider := mocks.BaselineProvider(t)
		submitted := 0
		provider.SubmitFunc = func(context.Context, string) (ledger.Receipt, error) {
			submitted++
			return ledger.Receipt{Hash: mocks.GenericHash, Ledger: mocks.GenericLedger, Successful: true}, nil
		}
		sgn := mocks.BaselineSigner(t)
		sign := sgn.SignFunc
		prompts := 0
		sgn.SignFunc = func(ctx context.Context, envelope string) (string, error) {
			prompts++
			if prompts == 2 {
				return "", signer.ErrDeclined
			}
			return sign(ctx, envelope)
		}

		b := testBulkService(t, provider)
		got, err := b.SendBulkPayments(context.Background(), sgn, threeRecipients())

		require.NoError(t, err)
		assert.Equal(t, 2, prompts)
		assert.Equal(t, 1, submitted)
		require.Len(t, got.Items, 3)
		assert.Equal(t, StatusSucceeded, got.Items[0].Status)
		assert.Equal(t, StatusFailed, got.Items[1].Status)
		assert.ErrorIs(t, got.Items[1].Err, failure.ErrSigningDeclined)
		assert.Equal(t, StatusNotAttempted, got.Items[2].Status)
		assert.NoError(t, got.Items[2].Err)
		assert.Equal(t, 1, got.Succeeded)
		assert.Equal(t, 1, got.Failed)
		assert.Equal(t, 1, got.NotAttempted)
	})

	t.Run("signer going away stops the batch", func(t *testing.T) {
		sgn := mocks.BaselineSigner(t)
		ready := 0
		sgn.ReadyFunc = func() bool {
			ready++
			return ready <= 2
		}

		b := testBulkService(t, mocks.BaselineProvider(t))
		got, err := b.SendBulkPayments(context.Background(), sgn, threeRecipients())

		require.NoError(t, err)
		assert.Equal(t, StatusSucceeded, got.Items[0].Status)
		assert.Equal(t, StatusFailed, got.Items[1].Status)
		assert.ErrorIs(t, got.Items[1].Err, failure.ErrSignerNotReady)
		assert.ErrorIs(t, got.Items[1].Err, signer.ErrDisconnected)
		assert.Equal(t, StatusNotAttempted, got.Items[2].Status)
	})

	t.Run("aggregate shortfall of one stroop aborts the batch", func(t *testing.T) {
		provider := mocks.BaselineProvider(t)
		// 60 lumens plus three 100 stroop fees, plus the 1 lumen reserve, minus one stroop.
		provider.AccountFunc = func(_ context.Context, id string) (ledger.Account, error) {
			return ledger.Account{ID: id, Sequence: 1, NativeBalance: "61.0000299"}, nil
		}
		provider.SubmitFunc = func(context.Context, string) (ledger.Receipt, error) {
			t.Fatal("nothing must be submitted when funds are short")
			return ledger.Receipt{}, nil
		}

		b := testBulkService(t, provider)
		_, err := b.SendBulkPayments(context.Background(), mocks.BaselineSigner(t), threeRecipients())

		var ferr *failure.Error
		require.ErrorAs(t, err, &ferr)
		assert.Equal(t, failure.ReasonInsufficientBalance, ferr.Reason)
		assert.Equal(t, "0.0000001", ferr.Shortfall().StringFixed(7))
		assert.Contains(t, err.Error(), "shortfall: 0.0000001")
	})

	t.Run("aggregate balance exactly sufficient", func(t *testing.T) {
		provider := mocks.BaselineProvider(t)
		provider.AccountFunc = func(_ context.Context, id string) (ledger.Account, error) {
			return ledger.Account{ID: id, Sequence: 1, NativeBalance: "61.0000300"}, nil
		}

		b := testBulkService(t, provider)
		got, err := b.SendBulkPayments(context.Background(), mocks.BaselineSigner(t), threeRecipients())

		require.NoError(t, err)
		assert.Equal(t, 3, got.Succeeded)
	})

	t.Run("sequence conflict is retried against a fresh sequence", func(t *testing.T) {
		provider := mocks.BaselineProvider(t)
		sequence := int64(100)
		provider.AccountFunc = func(_ context.Context, id string) (ledger.Account, error) {
			sequence++
			return ledger.Account{ID: id, Sequence: sequence, NativeBalance: "1000"}, nil
		}
		submitted := 0
		provider.SubmitFunc = func(context.Context, string) (ledger.Receipt, error) {
			submitted++
			if submitted == 1 {
				return ledger.Receipt{}, &ledger.Rejection{Status: http.StatusBadRequest, TransactionCode: "tx_bad_seq"}
			}
			return ledger.Receipt{Hash: mocks.GenericHash, Ledger: mocks.GenericLedger, Successful: true}, nil
		}

		b := testBulkService(t, provider)
		got, err := b.SendBulkPayments(context.Background(), mocks.BaselineSigner(t), threeRecipients()[:1])

		require.NoError(t, err)
		assert.Equal(t, StatusSucceeded, got.Items[0].Status)
		assert.Equal(t, 2, got.Items[0].Attempts)
		assert.Equal(t, 2, submitted)
	})

	t.Run("retries are bounded", func(t *testing.T) {
		provider := mocks.BaselineProvider(t)
		submitted := 0
		provider.SubmitFunc = func(context.Context, string) (ledger.Receipt, error) {
			submitted++
			return ledger.Receipt{}, &ledger.Rejection{Status: http.StatusTooManyRequests}
		}

		b := testBulkService(t, provider, WithMaxRetries(2))
		got, err := b.SendBulkPayments(context.Background(), mocks.BaselineSigner(t), threeRecipients()[:1])

		require.NoError(t, err)
		assert.Equal(t, StatusFailed, got.Items[0].Status)
		assert.ErrorIs(t, got.Items[0].Err, failure.ErrRateLimited)
		assert.Equal(t, 3, got.Items[0].Attempts)
		assert.Equal(t, 3, submitted)
		assert.False(t, got.Successful())
	})

	t.Run("ambiguous timeout is never retried", func(t *testing.T) {
		provider := mocks.BaselineProvider(t)
		submitted := 0
		provider.SubmitFunc = func(context.Context, string) (ledger.Receipt, error) {
			submitted++
			return ledger.Receipt{}, &ledger.Rejection{Status: http.StatusGatewayTimeout}
		}

		b := testBulkService(t, provider, WithMaxRetries(3))
		got, err := b.SendBulkPayments(context.Background(), mocks.BaselineSigner(t), threeRecipients()[:1])

		require.NoError(t, err)
		assert.Equal(t, StatusUnknown, got.Items[0].Status)
		assert.ErrorIs(t, got.Items[0].Err, failure.ErrSubmissionTimeout)
		assert.Equal(t, 1, submitted)
	})

	t.Run("timed out item is unknown rather than failed", func(t *testing.T) {
		provider := mocks.BaselineProvider(t)
		loads := make(map[string]int)
		provider.AccountFunc = func(_ context.Context, id string) (ledger.Account, error) {
			loads[id]++
			return ledger.Account{ID: id, Sequence: mocks.GenericSequence, NativeBalance: "1000"}, nil
		}
		submitted := 0
		provider.SubmitFunc = func(context.Context, string) (ledger.Receipt, error) {
			submitted++
			if submitted == 2 {
				return ledger.Receipt{}, &ledger.Rejection{Status: http.StatusGatewayTimeout}
			}
			return ledger.Receipt{Hash: mocks.GenericHash, Ledger: mocks.GenericLedger, Successful: true}, nil
		}

		b := testBulkService(t, provider)
		recipient := mocks.GenericAddress(2)
		_, err := b.payments.GetBalance(context.Background(), recipient)
		require.NoError(t, err)

		got, err := b.SendBulkPayments(context.Background(), mocks.BaselineSigner(t), threeRecipients())

		require.NoError(t, err)
		assert.Equal(t, StatusUnknown, got.Items[1].Status)
		assert.ErrorIs(t, got.Items[1].Err, failure.ErrSubmissionTimeout)
		assert.Equal(t, StatusSucceeded, got.Items[2].Status)
		assert.Equal(t, 2, got.Succeeded)
		assert.Zero(t, got.Failed)
		assert.Equal(t, 1, got.Unknown)
		assert.Less(t, got.Succeeded, len(got.Items))

		before := loads[recipient]
		_, err = b.payments.GetBalance(context.Background(), recipient)
		require.NoError(t, err)
		assert.Equal(t, before+1, loads[recipient])
	})

	t.Run("unreachable network is not retried", func(t *testing.T) {
		provider := mocks.BaselineProvider(t)
		submitted := 0
		provider.SubmitFunc = func(context.Context, string) (ledger.Receipt, error) {
			submitted++
			return ledger.Receipt{}, &ledger.Rejection{Status: http.StatusServiceUnavailable}
		}

		b := testBulkService(t, provider, WithMaxRetries(3))
		got, err := b.SendBulkPayments(context.Background(), mocks.BaselineSigner(t), threeRecipients()[:1])

		require.NoError(t, err)
		assert.Equal(t, StatusFailed, got.Items[0].Status)
		assert.ErrorIs(t, got.Items[0].Err, failure.ErrNetworkUnavailable)
		assert.Equal(t, 1, got.Items[0].Attempts)
		assert.Equal(t, 1, submitted)
	})

	t.Run("signer error other than a decline does not stop the batch", func(t *testing.T) {
		sgn := mocks.BaselineSigner(t)
		sign := sgn.SignFunc
		prompts := 0
		sgn.SignFunc = func(ctx context.Context, envelope string) (string, error) {
			prompts++
			if prompts == 1 {
				return "", mocks.GenericError
			}
			return sign(ctx, envelope)
		}

		b := testBulkService(t, mocks.BaselineProvider(t))
		got, err := b.SendBulkPayments(context.Background(), sgn, threeRecipients())

		require.NoError(t, err)
		assert.ErrorIs(t, got.Items[0].Err, failure.ErrSigningFailed)
		assert.Equal(t, 3, prompts)
		assert.Equal(t, 2, got.Succeeded)
	})

	t.Run("alias resolution failure fails only that item", func(t *testing.T) {
		recipients := threeRecipients()
		recipients[0].Destination = "ghost*example.com"

		b := testBulkService(t, mocks.BaselineProvider(t))
		b.payments.resolver = &mocks.Resolver{
			ResolveFunc: func(context.Context, string) (string, error) {
				return "", mocks.GenericError
			},
		}
		got, err := b.SendBulkPayments(context.Background(), mocks.BaselineSigner(t), recipients)

		require.NoError(t, err)
		assert.ErrorIs(t, got.Items[0].Err, failure.ErrDestinationUnreachable)
		assert.Equal(t, "ghost*example.com", got.Items[0].Destination)
		assert.Equal(t, 2, got.Succeeded)
	})

	t.Run("cancellation stops before the next item", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		provider := mocks.BaselineProvider(t)
		provider.SubmitFunc = func(context.Context, string) (ledger.Receipt, error) {
			cancel()
			return ledger.Receipt{Hash: mocks.GenericHash, Ledger: mocks.GenericLedger, Successful: true}, nil
		}

		b := testBulkService(t, provider)
		got, err := b.SendBulkPayments(ctx, mocks.BaselineSigner(t), threeRecipients())

		require.NoError(t, err)
		assert.Equal(t, StatusSucceeded, got.Items[0].Status)
		assert.Equal(t, StatusNotAttempted, got.Items[1].Status)
		assert.Equal(t, StatusNotAttempted, got.Items[2].Status)
		assert.Equal(t, 2, got.NotAttempted)
	})

	t.Run("dispatch is paced", func(t *testing.T) {
		interval := 30 * time.Millisecond

		b := testBulkService(t, mocks.BaselineProvider(t), WithDispatchInterval(interval))
		start := time.Now()
		got, err := b.SendBulkPayments(context.Background(), mocks.BaselineSigner(t), threeRecipients())

		require.NoError(t, err)
		assert.Equal(t, 3, got.Succeeded)
		assert.GreaterOrEqual(t, time.Since(start), 2*interval-5*time.Millisecond)
	})

	t.Run("sender balance is reloaded after the batch", func(t *testing.T) {
		provider := mocks.BaselineProvider(t)
		loads := 0
		source := mocks.GenericSource.Address()
		provider.AccountFunc = func(_ context.Context, id string) (ledger.Account, error) {
			if id == source {
				loads++
			}
			return ledger.Account{ID: id, Sequence: 1, NativeBalance: "1000"}, nil
		}

		b := testBulkService(t, provider)
		_, err := b.SendBulkPayments(context.Background(), mocks.BaselineSigner(t), threeRecipients())
		require.NoError(t, err)
		before := loads

		_, err = b.payments.GetBalance(context.Background(), source)
		require.NoError(t, err)

		assert.Equal(t, before+1, loads)
	})
}
