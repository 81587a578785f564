package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stellar/go/clients/horizonclient"
	hProtocol "github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/protocols/horizon/operations"
)

// HorizonAPI is the part of the Horizon client used by the adapter.
type HorizonAPI interface {
	AccountDetail(request horizonclient.AccountRequest) (hProtocol.Account, error)
	SubmitTransactionXDR(transactionXdr string) (hProtocol.Transaction, error)
	Payments(request horizonclient.OperationRequest) (operations.OperationsPage, error)
}

// Horizon implements Provider on top of a Horizon client. It only extracts the
// structure of Horizon problems into a *Rejection; categorizing them is the
// caller's job.
type Horizon struct {
	log    zerolog.Logger
	client HorizonAPI
}

// NewHorizon creates a provider backed by the given client.
func NewHorizon(log zerolog.Logger, client HorizonAPI) *Horizon {
	h := Horizon{
		log:    log.With().Str("component", "horizon").Logger(),
		client: client,
	}
	return &h
}

// Account loads an account entry. It returns ErrAccountNotFound for unfunded
// accounts.
func (h *Horizon) Account(ctx context.Context, id string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	account, err := h.client.AccountDetail(horizonclient.AccountRequest{AccountID: id})
	if horizonclient.IsNotFoundError(err) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("could not load account %s: %w", id, rejection(err))
	}

	a := Account{
		ID:            account.AccountID,
		Sequence:      account.Sequence,
		NativeBalance: "0",
		SubentryCount: account.SubentryCount,
		NumSponsoring: account.NumSponsoring,
		NumSponsored:  account.NumSponsored,
	}
	for _, balance := range account.Balances {
		if balance.Type == "native" {
			a.NativeBalance = balance.Balance
			break
		}
	}

	return a, nil
}

// Submit posts a base64 transaction envelope.
func (h *Horizon) Submit(ctx context.Context, envelope string) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}

	tx, err := h.client.SubmitTransactionXDR(envelope)
	if err != nil {
		return Receipt{}, fmt.Errorf("could not submit transaction: %w", rejection(err))
	}

	h.log.Debug().Str("hash", tx.Hash).Int32("ledger", tx.Ledger).Msg("transaction included")

	r := Receipt{
		Hash:       tx.Hash,
		Ledger:     tx.Ledger,
		Successful: tx.Successful,
	}
	return r, nil
}

// Payments lists the most recent native payments sent or received by an account.
func (h *Horizon) Payments(ctx context.Context, id string, limit uint) ([]Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, err := h.client.Payments(horizonclient.OperationRequest{
		ForAccount: id,
		Order:      horizonclient.OrderDesc,
		Limit:      limit,
	})
	if horizonclient.IsNotFoundError(err) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("could not list payments for %s: %w", id, rejection(err))
	}

	payments := make([]Payment, 0, len(page.Embedded.Records))
	for _, record := range page.Embedded.Records {
		payment, ok := record.(operations.Payment)
		if !ok || payment.Asset.Type != "native" {
			continue
		}
		payments = append(payments, Payment{
			ID:        payment.Base.ID,
			Hash:      payment.Base.TransactionHash,
			From:      payment.From,
			To:        payment.To,
			Amount:    payment.Amount,
			CreatedAt: payment.Base.LedgerCloseTime,
		})
	}

	return payments, nil
}

// rejection converts a Horizon problem response into a *Rejection, leaving
// transport errors untouched.
func rejection(err error) error {
	var herr *horizonclient.Error
	if !errors.As(err, &herr) {
		return err
	}

	r := Rejection{
		Status: herr.Problem.Status,
		Type:   herr.Problem.Type,
		Title:  herr.Problem.Title,
		Detail: herr.Problem.Detail,
	}
	if r.Status == 0 && herr.Response != nil {
		r.Status = herr.Response.StatusCode
	}

	codes, cerr := herr.ResultCodes()
	if cerr == nil && codes != nil {
		r.TransactionCode = codes.TransactionCode
		r.InnerCode = codes.InnerTransactionCode
		r.OperationCodes = codes.OperationCodes
	}

	return &r
}
