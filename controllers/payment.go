package controllers

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/saif727/stellar-payroll-engine/failure"
	"github.com/saif727/stellar-payroll-engine/models"
	"github.com/saif727/stellar-payroll-engine/records"
	"github.com/saif727/stellar-payroll-engine/services"
	"github.com/saif727/stellar-payroll-engine/signer"
	"github.com/saif727/stellar-payroll-engine/units"
)

// maxHistoryLimit is the largest page Horizon serves.
const maxHistoryLimit = 200

// Recorder persists completed payment outcomes.
type Recorder interface {
	Save(ctx context.Context, records ...records.Record) error
}

// PaymentController handles payment-related HTTP requests
type PaymentController struct {
	log      zerolog.Logger
	payments *services.PaymentService
	bulk     *services.BulkService
	signer   signer.Signer
	recorder Recorder
}

// NewPaymentController creates a new PaymentController instance. The recorder
// may be nil, in which case outcomes are not persisted.
func NewPaymentController(
	log zerolog.Logger,
	payments *services.PaymentService,
	bulk *services.BulkService,
	sgn signer.Signer,
	recorder Recorder,
) *PaymentController {

	ctrl := PaymentController{
		log:      log.With().Str("component", "payment_controller").Logger(),
		payments: payments,
		bulk:     bulk,
		signer:   sgn,
		recorder: recorder,
	}

	return &ctrl
}

// Register adds the payment routes to the router.
func (ctrl *PaymentController) Register(router gin.IRouter) {
	v1 := router.Group("/api/v1")
	v1.GET("/addresses/:address", ctrl.ValidateAddress)
	v1.GET("/amounts/:amount", ctrl.ConvertAmount)
	v1.GET("/accounts/:account/balance", ctrl.GetBalance)
	v1.DELETE("/accounts/:account/balance", ctrl.InvalidateBalance)
	v1.GET("/accounts/:account/payments", ctrl.History)
	v1.POST("/payments", ctrl.SendPayment)
	v1.POST("/payments/bulk", ctrl.SendBulkPayments)
}

// ValidateAddress handles GET /api/v1/addresses/:address
func (ctrl *PaymentController) ValidateAddress(c *gin.Context) {
	input := c.Param("address")
	recipient, err := ctrl.payments.ValidateAddress(input)
	if err != nil {
		c.JSON(http.StatusOK, models.AddressResponse{
			Address: input,
			Valid:   false,
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.AddressResponse{
		Address: recipient.Address,
		Valid:   true,
		Kind:    string(recipient.Kind),
		Name:    recipient.Name,
		Domain:  recipient.Domain,
	})
}

// ConvertAmount handles GET /api/v1/amounts/:amount. The amount is in lumens
// unless the unit query parameter is "base".
func (ctrl *PaymentController) ConvertAmount(c *gin.Context) {
	input := c.Param("amount")

	var display float64
	var err error
	switch c.DefaultQuery("unit", "display") {
	case "base":
		display, err = ctrl.payments.ToDisplayUnits(input)
	case "display":
		display, err = parseAmount(input)
	default:
		err = failure.InvalidAmount("unit must be display or base")
	}
	if err != nil {
		respondError(c, err)
		return
	}

	base, err := ctrl.payments.ToBaseUnits(display)
	if err != nil {
		respondError(c, err)
		return
	}
	formatted, err := ctrl.payments.FormatDisplay(display)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AmountResponse{
		Display:   display,
		Base:      base,
		Formatted: formatted,
	})
}

// GetBalance handles GET /api/v1/accounts/:account/balance
func (ctrl *PaymentController) GetBalance(c *gin.Context) {
	snapshot, err := ctrl.payments.GetBalance(c.Request.Context(), c.Param("account"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.BalanceResponse{
		Account:        snapshot.Account,
		Funded:         snapshot.Funded,
		Total:          snapshot.Total.StringFixed(units.Precision),
		Spendable:      snapshot.Spendable.StringFixed(units.Precision),
		MinimumReserve: snapshot.MinimumReserve.StringFixed(units.Precision),
		CapturedAt:     snapshot.CapturedAt.UTC(),
	})
}

// InvalidateBalance handles DELETE /api/v1/accounts/:account/balance
func (ctrl *PaymentController) InvalidateBalance(c *gin.Context) {
	ctrl.payments.InvalidateBalance(c.Param("account"))
	c.Status(http.StatusNoContent)
}

// History handles GET /api/v1/accounts/:account/payments
func (ctrl *PaymentController) History(c *gin.Context) {
	account := c.Param("account")

	var limit uint64
	if raw := c.Query("limit"); raw != "" {
		var err error
		limit, err = strconv.ParseUint(raw, 10, 16)
		if err != nil {
			respondInvalidRequest(c, err)
			return
		}
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	payments, err := ctrl.payments.History(c.Request.Context(), account, uint(limit))
	if err != nil {
		respondError(c, err)
		return
	}

	res := models.HistoryResponse{
		Account:  account,
		Payments: make([]models.PaymentRecord, 0, len(payments)),
	}
	for _, payment := range payments {
		res.Payments = append(res.Payments, models.PaymentRecord{
			ID:        payment.ID,
			Hash:      payment.Hash,
			From:      payment.From,
			To:        payment.To,
			Amount:    payment.Amount,
			CreatedAt: payment.CreatedAt.UTC(),
		})
	}
	c.JSON(http.StatusOK, res)
}

// SendPayment handles POST /api/v1/payments
func (ctrl *PaymentController) SendPayment(c *gin.Context) {
	var req models.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, err)
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	outcome, err := ctrl.payments.SendPayment(c.Request.Context(), ctrl.signer, req.Destination, amount, req.Memo)
	if err != nil {
		respondError(c, err)
		return
	}

	display, _ := units.FromFloat(amount)
	ctrl.record(c.Request.Context(), records.FromPayment(outcome, display, req.Memo))

	c.JSON(http.StatusOK, models.PaymentResponse{
		TransactionHash: outcome.Hash,
		Ledger:          outcome.Ledger,
		Source:          outcome.Source,
		Destination:     outcome.Destination,
		Amount:          display.StringFixed(units.Precision),
		Message:         "payment accepted",
	})
}

// SendBulkPayments handles POST /api/v1/payments/bulk. A batch that ran
// returns 200 even if some or all of its items failed.
func (ctrl *PaymentController) SendBulkPayments(c *gin.Context) {
	var req models.BulkPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, err)
		return
	}

	recipients := make([]services.Recipient, 0, len(req.Recipients))
	for _, r := range req.Recipients {
		amount, err := parseAmount(r.Amount)
		if err != nil {
			// Left to batch validation, which reports it with its position.
			amount = math.NaN()
		}
		recipients = append(recipients, services.Recipient{
			Destination: r.Destination,
			Amount:      amount,
			Memo:        r.Memo,
		})
	}

	result, err := ctrl.bulk.SendBulkPayments(c.Request.Context(), ctrl.signer, recipients)
	if err != nil {
		respondError(c, err)
		return
	}

	ctrl.record(c.Request.Context(), records.FromBatch(result)...)

	res := models.BulkPaymentResponse{
		BatchID:      result.ID.String(),
		Source:       result.Source,
		Successful:   result.Successful(),
		Succeeded:    result.Succeeded,
		Failed:       result.Failed,
		Unknown:      result.Unknown,
		NotAttempted: result.NotAttempted,
		Items:        make([]models.BulkItemResponse, 0, len(result.Items)),
	}
	for _, item := range result.Items {
		out := models.BulkItemResponse{
			Recipient:   item.Index,
			Destination: item.Destination,
			Amount:      item.Amount.StringFixed(units.Precision),
			Status:      string(item.Status),
			Attempts:    item.Attempts,
		}
		switch item.Status {
		case services.StatusSucceeded:
			out.TransactionHash = item.Outcome.Hash
			out.Ledger = item.Outcome.Ledger
		case services.StatusFailed, services.StatusUnknown:
			out.Reason = string(failure.ReasonOf(item.Err))
			out.Error = item.Err.Error()
		}
		res.Items = append(res.Items, out)
	}

	c.JSON(http.StatusOK, res)
}

// record forwards outcomes to the recorder. Failing to record never fails the
// request; the payments already happened.
func (ctrl *PaymentController) record(ctx context.Context, rs ...records.Record) {
	if ctrl.recorder == nil || len(rs) == 0 {
		return
	}
	err := ctrl.recorder.Save(context.WithoutCancel(ctx), rs...)
	if err != nil {
		ctrl.log.Error().Int("records", len(rs)).Err(err).Msg("could not record payment outcomes")
	}
}

func parseAmount(input string) (float64, error) {
	amount, err := strconv.ParseFloat(input, 64)
	if err != nil {
		return 0, failure.InvalidAmount("amount is not a number: " + strconv.Quote(input))
	}
	return amount, nil
}
