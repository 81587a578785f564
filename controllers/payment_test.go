package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saif727/stellar-payroll-engine/balance"
	"github.com/saif727/stellar-payroll-engine/ledger"
	"github.com/saif727/stellar-payroll-engine/models"
	"github.com/saif727/stellar-payroll-engine/records"
	"github.com/saif727/stellar-payroll-engine/services"
	"github.com/saif727/stellar-payroll-engine/signer"
	"github.com/saif727/stellar-payroll-engine/submit"
	"github.com/saif727/stellar-payroll-engine/testing/mocks"
	"github.com/saif727/stellar-payroll-engine/txbuild"
)

type recorderMock struct {
	saved []records.Record
	err   error
}

func (r *recorderMock) Save(_ context.Context, rs ...records.Record) error {
	r.saved = append(r.saved, rs...)
	return r.err
}

func testRouter(t *testing.T, provider *mocks.Provider, sgn signer.Signer, recorder Recorder) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)

	cache := balance.New(mocks.NoopLogger, provider)
	builder := txbuild.New(mocks.NoopLogger, provider, mocks.GenericPassphrase)
	submitter := submit.New(mocks.NoopLogger, provider, mocks.GenericPassphrase)
	payments := services.NewPaymentService(mocks.NoopLogger, provider, mocks.BaselineResolver(t), cache, builder, submitter)
	bulk := services.NewBulkService(mocks.NoopLogger, payments, services.WithDispatchInterval(0))

	ctrl := NewPaymentController(mocks.NoopLogger, payments, bulk, sgn, recorder)
	return NewRouter(mocks.NoopLogger, ctrl)
}

func serve(t *testing.T, router *gin.Engine, method string, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			payload.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&payload).Encode(b))
		}
	}

	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestPaymentController_ValidateAddress(t *testing.T) {
	router := testRouter(t, mocks.BaselineProvider(t), mocks.BaselineSigner(t), nil)

	t.Run("direct key", func(t *testing.T) {
		rec := serve(t, router, http.MethodGet, "/api/v1/addresses/"+mocks.GenericAddress(1), nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var res models.AddressResponse
		decode(t, rec, &res)
		assert.True(t, res.Valid)
		assert.Equal(t, "direct_key", res.Kind)
	})

	t.Run("alias", func(t *testing.T) {
		rec := serve(t, router, http.MethodGet, "/api/v1/addresses/alice*example.com", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var res models.AddressResponse
		decode(t, rec, &res)
		assert.True(t, res.Valid)
		assert.Equal(t, "alias", res.Kind)
		assert.Equal(t, "alice", res.Name)
		assert.Equal(t, "example.com", res.Domain)
	})

	t.Run("invalid", func(t *testing.T) {
		rec := serve(t, router, http.MethodGet, "/api/v1/addresses/user*badtld", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var res models.AddressResponse
		decode(t, rec, &res)
		assert.False(t, res.Valid)
		assert.Contains(t, res.Error, "invalid domain")
	})
}

func TestPaymentController_ConvertAmount(t *testing.T) {
	router := testRouter(t, mocks.BaselineProvider(t), mocks.BaselineSigner(t), nil)

	t.Run("display", func(t *testing.T) {
		rec := serve(t, router, http.MethodGet, "/api/v1/amounts/1.5", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var res models.AmountResponse
		decode(t, rec, &res)
		assert.Equal(t, 1.5, res.Display)
		assert.Equal(t, "15000000", res.Base)
		assert.Equal(t, "1.5000000", res.Formatted)
	})

	t.Run("base", func(t *testing.T) {
		rec := serve(t, router, http.MethodGet, "/api/v1/amounts/15000000?unit=base", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var res models.AmountResponse
		decode(t, rec, &res)
		assert.Equal(t, 1.5, res.Display)
	})

	invalid := []string{
		"/api/v1/amounts/abc",
		"/api/v1/amounts/-1",
		"/api/v1/amounts/NaN",
		"/api/v1/amounts/1.5?unit=base",
		"/api/v1/amounts/1?unit=furlongs",
	}
	for _, path := range invalid {
		t.Run(path, func(t *testing.T) {
			rec := serve(t, router, http.MethodGet, path, nil)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			var res models.ErrorResponse
			decode(t, rec, &res)
			assert.Equal(t, "invalid_amount", res.Reason)
		})
	}
}

func TestPaymentController_Balance(t *testing.T) {
	t.Run("nominal case", func(t *testing.T) {
		router := testRouter(t, mocks.BaselineProvider(t), mocks.BaselineSigner(t), nil)

		rec := serve(t, router, http.MethodGet, "/api/v1/accounts/"+mocks.GenericAddress(1)+"/balance", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var res models.BalanceResponse
		decode(t, rec, &res)
		assert.True(t, res.Funded)
		assert.Equal(t, "1000.0000000", res.Total)
		assert.Equal(t, "999.0000000", res.Spendable)
		assert.Equal(t, "1.0000000", res.MinimumReserve)
	})

	t.Run("unfunded account", func(t *testing.T) {
		provider := mocks.BaselineProvider(t)
		provider.AccountFunc = func(context.Context, string) (ledger.Account, error) {
			return ledger.Account{}, ledger.ErrAccountNotFound
		}
		router := testRouter(t, provider, mocks.BaselineSigner(t), nil)

		rec := serve(t, router, http.MethodGet, "/api/v1/accounts/"+mocks.GenericAddress(1)+"/balance", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var res models.BalanceResponse
		decode(t, rec, &res)
		assert.False(t, res.Funded)
		assert.Equal(t, "0.0000000", res.Total)
	})

	t.Run("provider unavailable", func(t *testing.T) {
		provider := mocks.BaselineProvider(t)
		provider.AccountFunc = func(context.Context, string) (ledger.Account, error) {
			return ledger.Account{}, &ledger.Rejection{Status: http.StatusServiceUnavailable}
		}
		router := testRouter(t, provider, mocks.BaselineSigner(t), nil)

		rec := serve(t, router, http.MethodGet, "/api/v1/accounts/"+mocks.GenericAddress(1)+"/balance", nil)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("invalid account", func(t *testing.T) {
		router := testRouter(t, mocks.BaselineProvider(t), mocks.BaselineSigner(t), nil)

		rec := serve(t, router, http.MethodGet, "/api/v1/accounts/GABC/balance", nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalidate", func(t *testing.T) {
		provider := mocks.BaselineProvider(t)
		loads := 0
		provider.AccountFunc = func(_ context.Context, id string) (ledger.Account, error) {
			loads++
			return ledger.Account{ID: id, NativeBalance: "10"}, nil
		}
		router := testRouter(t, provider, mocks.BaselineSigner(t), nil)
		path := "/api/v1/accounts/" + mocks.GenericAddress(1) + "/balance"

		serve(t, router, http.MethodGet, path, nil)
		rec := serve(t, router, http.MethodDelete, path, nil)
		serve(t, router, http.MethodGet, path, nil)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, 2, loads)
	})
}

func TestPaymentController_History(t *testing.T) {
	account := mocks.GenericAddress(1)

	t.Run("nominal case", func(t *testing.T) {
		provider := mocks.BaselineProvider(t)
		provider.PaymentsFunc = func(_ context.Context, id string, limit uint) ([]ledger.Payment, error) {
			assert.Equal(t, uint(5), limit)
			return []ledger.Payment{{ID: "1", Hash: mocks.GenericHash, From: mocks.GenericSource.Address(), To: id, Amount: "2.0000000"}}, nil
		}
		router := testRouter(t, provider, mocks.BaselineSigner(t), nil)

		rec := serve(t, router, http.MethodGet, "/api/v1/accounts/"+account+"/payments?limit=5", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var res models.HistoryResponse
		decode(t, rec, &res)
		require.Len(t, res.Payments, 1)
		assert.Equal(t, mocks.GenericHash, res.Payments[0].Hash)
		assert.Equal(t, "2.0000000", res.Payments[0].Amount)
	})

	t.Run("limit is capped", func(t *testing.T) {
		provider := mocks.BaselineProvider(t)
		provider.PaymentsFunc = func(_ context.Context, _ string, limit uint) ([]ledger.Payment, error) {
			assert.Equal(t, uint(maxHistoryLimit), limit)
			return nil, nil
		}
		router := testRouter(t, provider, mocks.BaselineSigner(t), nil)

		rec := serve(t, router, http.MethodGet, "/api/v1/accounts/"+account+"/payments?limit=5000", nil)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("invalid limit", func(t *testing.T) {
		router := testRouter(t, mocks.BaselineProvider(t), mocks.BaselineSigner(t), nil)

		rec := serve(t, router, http.MethodGet, "/api/v1/accounts/"+account+"/payments?limit=many", nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPaymentController_SendPayment(t *testing.T) {
	destination := mocks.GenericAddress(1)

	t.Run("nominal case", func(t *testing.T) {
		recorder := &recorderMock{}
		router := testRouter(t, mocks.BaselineProvider(t), mocks.BaselineSigner(t), recorder)

		rec := serve(t, router, http.MethodPost, "/api/v1/payments", models.PaymentRequest{
			Destination: destination,
			Amount:      "2.5",
			Memo:        "march",
		})

		require.Equal(t, http.StatusOK, rec.Code)
		var res models.PaymentResponse
		decode(t, rec, &res)
		assert.Equal(t, mocks.GenericHash, res.TransactionHash)
		assert.Equal(t, mocks.GenericLedger, res.Ledger)
		assert.Equal(t, destination, res.Destination)
		assert.Equal(t, "2.5000000", res.Amount)

		require.Len(t, recorder.saved, 1)
		assert.Equal(t, destination, recorder.saved[0].Recipient)
		assert.Equal(t, "march", recorder.saved[0].Memo)
	})

	t.Run("recording failure does not fail the payment", func(t *testing.T) {
		recorder := &recorderMock{err: mocks.GenericError}
		router := testRouter(t, mocks.BaselineProvider(t), mocks.BaselineSigner(t), recorder)

		rec := serve(t, router, http.MethodPost, "/api/v1/payments", models.PaymentRequest{Destination: destination, Amount: "1"})

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		router := testRouter(t, mocks.BaselineProvider(t), mocks.BaselineSigner(t), nil)

		rec := serve(t, router, http.MethodPost, "/api/v1/payments", `{"destination":`)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		var res models.ErrorResponse
		decode(t, rec, &res)
		assert.Equal(t, reasonInvalidRequest, res.Reason)
	})

	t.Run("missing amount", func(t *testing.T) {
		router := testRouter(t, mocks.BaselineProvider(t), mocks.BaselineSigner(t), nil)

		rec := serve(t, router, http.MethodPost, "/api/v1/payments", models.PaymentRequest{Destination: destination})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid destination", func(t *testing.T) {
		router := testRouter(t, mocks.BaselineProvider(t), mocks.BaselineSigner(t), nil)

		rec := serve(t, router, http.MethodPost, "/api/v1/payments", models.PaymentRequest{Destination: "nobody", Amount: "1"})

		require.Equal(t, http.StatusBadRequest, rec.Code)
		var res models.ErrorResponse
		decode(t, rec, &res)
		assert.Equal(t, "invalid_address", res.Reason)
	})

	t.Run("insufficient balance", func(t *testing.T) {
		provider := mocks.BaselineProvider(t)
		provider.AccountFunc = func(_ context.Context, id string) (ledger.Account, error) {
			return ledger.Account{ID: id, NativeBalance: "2"}, nil
		}
		router := testRouter(t, provider, mocks.BaselineSigner(t), nil)

		rec := serve(t, router, http.MethodPost, "/api/v1/payments", models.PaymentRequest{Destination: destination, Amount: "5"})

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		var res models.ErrorResponse
		decode(t, rec, &res)
		assert.Equal(t, "insufficient_balance", res.Reason)
		assert.Equal(t, "5.0000100", res.Required)
		assert.Equal(t, "1.0000000", res.Available)
		assert.Equal(t, "4.0000100", res.Shortfall)
	})

	t.Run("signer declines", func(t *testing.T) {
		sgn := mocks.BaselineSigner(t)
		sgn.SignFunc = func(context.Context, string) (string, error) {
			return "", signer.ErrDeclined
		}
		router := testRouter(t, mocks.BaselineProvider(t), sgn, nil)

		rec := serve(t, router, http.MethodPost, "/api/v1/payments", models.PaymentRequest{Destination: destination, Amount: "1"})

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("submission timeout", func(t *testing.T) {
		provider := mocks.BaselineProvider(t)
		provider.SubmitFunc = func(context.Context, string) (ledger.Receipt, error) {
			return ledger.Receipt{}, &ledger.Rejection{Status: http.StatusGatewayTimeout}
		}
		router := testRouter(t, provider, mocks.BaselineSigner(t), nil)

		rec := serve(t, router, http.MethodPost, "/api/v1/payments", models.PaymentRequest{Destination: destination, Amount: "1"})

		require.Equal(t, http.StatusGatewayTimeout, rec.Code)
		var res models.ErrorResponse
		decode(t, rec, &res)
		assert.Equal(t, "submission_timeout", res.Reason)
	})
}

func TestPaymentController_SendBulkPayments(t *testing.T) {
	t.Run("nominal case with one failure", func(t *testing.T) {
		provider := mocks.BaselineProvider(t)
		submitted := 0
		provider.SubmitFunc = func(context.Context, string) (ledger.Receipt, error) {
			submitted++
			if submitted == 2 {
				return ledger.Receipt{}, &ledger.Rejection{Status: http.StatusBadRequest, TransactionCode: "tx_failed", OperationCodes: []string{"op_underfunded"}}
			}
			return ledger.Receipt{Hash: mocks.GenericHash, Ledger: mocks.GenericLedger, Successful: true}, nil
		}
		recorder := &recorderMock{}
		router := testRouter(t, provider, mocks.BaselineSigner(t), recorder)

		rec := serve(t, router, http.MethodPost, "/api/v1/payments/bulk", models.BulkPaymentRequest{
			Recipients: []models.PaymentRequest{
				{Destination: mocks.GenericAddress(1), Amount: "1"},
				{Destination: mocks.GenericAddress(2), Amount: "2"},
				{Destination: mocks.GenericAddress(3), Amount: "3"},
			},
		})

		require.Equal(t, http.StatusOK, rec.Code)
		var res models.BulkPaymentResponse
		decode(t, rec, &res)
		assert.NotEmpty(t, res.BatchID)
		assert.True(t, res.Successful)
		assert.Equal(t, 2, res.Succeeded)
		assert.Equal(t, 1, res.Failed)
		require.Len(t, res.Items, 3)
		assert.Equal(t, "succeeded", res.Items[0].Status)
		assert.Equal(t, mocks.GenericHash, res.Items[0].TransactionHash)
		assert.Equal(t, "failed", res.Items[1].Status)
		assert.Equal(t, "insufficient_balance", res.Items[1].Reason)
		assert.Contains(t, res.Items[1].Error, "Recipient 2")
		assert.Equal(t, "3.0000000", res.Items[2].Amount)

		require.Len(t, recorder.saved, 3)
		assert.Equal(t, "failed", recorder.saved[1].Status)
	})

	t.Run("timed out item is reported as unknown", func(t *testing.T) {
		provider := mocks.BaselineProvider(t)
		provider.SubmitFunc = func(context.Context, string) (ledger.Receipt, error) {
			return ledger.Receipt{}, &ledger.Rejection{Status: http.StatusGatewayTimeout}
		}
		recorder := &recorderMock{}
		router := testRouter(t, provider, mocks.BaselineSigner(t), recorder)

		rec := serve(t, router, http.MethodPost, "/api/v1/payments/bulk", models.BulkPaymentRequest{
			Recipients: []models.PaymentRequest{
				{Destination: mocks.GenericAddress(1), Amount: "1"},
			},
		})

		require.Equal(t, http.StatusOK, rec.Code)
		var res models.BulkPaymentResponse
		decode(t, rec, &res)
		assert.False(t, res.Successful)
		assert.Zero(t, res.Failed)
		assert.Equal(t, 1, res.Unknown)
		require.Len(t, res.Items, 1)
		assert.Equal(t, "unknown", res.Items[0].Status)
		assert.Equal(t, "submission_timeout", res.Items[0].Reason)

		require.Len(t, recorder.saved, 1)
		assert.Equal(t, "unknown", recorder.saved[0].Status)
	})

	t.Run("invalid batch lists every violation", func(t *testing.T) {
		router := testRouter(t, mocks.BaselineProvider(t), mocks.BaselineSigner(t), nil)

		rec := serve(t, router, http.MethodPost, "/api/v1/payments/bulk", models.BulkPaymentRequest{
			Recipients: []models.PaymentRequest{
				{Destination: mocks.GenericAddress(1), Amount: "1"},
				{Destination: "GWRONG", Amount: "1"},
				{Destination: mocks.GenericAddress(3), Amount: "lots"},
			},
		})

		require.Equal(t, http.StatusBadRequest, rec.Code)
		var res models.ErrorResponse
		decode(t, rec, &res)
		require.Len(t, res.Violations, 2)
		assert.Equal(t, 2, res.Violations[0].Recipient)
		assert.Equal(t, "invalid_address", res.Violations[0].Reason)
		assert.Equal(t, 3, res.Violations[1].Recipient)
		assert.Equal(t, "invalid_amount", res.Violations[1].Reason)
	})

	t.Run("empty batch", func(t *testing.T) {
		router := testRouter(t, mocks.BaselineProvider(t), mocks.BaselineSigner(t), nil)

		rec := serve(t, router, http.MethodPost, "/api/v1/payments/bulk", `{"recipients":[]}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
