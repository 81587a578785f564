package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-multierror"

	"github.com/saif727/stellar-payroll-engine/failure"
	"github.com/saif727/stellar-payroll-engine/models"
)

// reasonInvalidRequest tags request bodies that could not be bound.
const reasonInvalidRequest = "invalid_request"

var statusByReason = map[failure.Reason]int{
	failure.ReasonInvalidAddress:         http.StatusBadRequest,
	failure.ReasonInvalidAmount:          http.StatusBadRequest,
	failure.ReasonMalformedOperation:     http.StatusBadRequest,
	failure.ReasonEmptyBatch:             http.StatusBadRequest,
	failure.ReasonSignerNotReady:         http.StatusServiceUnavailable,
	failure.ReasonSigningDeclined:        http.StatusForbidden,
	failure.ReasonSigningFailed:          http.StatusBadGateway,
	failure.ReasonInsufficientBalance:    http.StatusUnprocessableEntity,
	failure.ReasonDestinationUnreachable: http.StatusUnprocessableEntity,
	failure.ReasonSourceNotFound:         http.StatusUnprocessableEntity,
	failure.ReasonFeeTooLow:              http.StatusUnprocessableEntity,
	failure.ReasonSignatureInvalid:       http.StatusUnprocessableEntity,
	failure.ReasonTransactionExpired:     http.StatusUnprocessableEntity,
	failure.ReasonSequenceConflict:       http.StatusConflict,
	failure.ReasonSubmissionTimeout:      http.StatusGatewayTimeout,
	failure.ReasonRateLimited:            http.StatusTooManyRequests,
	failure.ReasonNetworkUnavailable:     http.StatusServiceUnavailable,
	failure.ReasonUnknown:                http.StatusInternalServerError,
}

// statusOf returns the HTTP status for an engine error.
func statusOf(err error) int {
	status, ok := statusByReason[failure.ReasonOf(err)]
	if !ok {
		return http.StatusInternalServerError
	}
	return status
}

// respondError writes an engine error, listing every violation of a rejected
// batch.
func respondError(c *gin.Context, err error) {
	res := models.ErrorResponse{
		Error:  err.Error(),
		Reason: string(failure.ReasonOf(err)),
	}

	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, violation := range merr.Errors {
			v := models.Violation{
				Reason: string(failure.ReasonOf(violation)),
				Error:  violation.Error(),
			}
			var ferr *failure.Error
			if errors.As(violation, &ferr) {
				v.Recipient = ferr.Recipient
			}
			res.Violations = append(res.Violations, v)
		}
	}

	var ferr *failure.Error
	if errors.As(err, &ferr) && ferr.Reason == failure.ReasonInsufficientBalance && !ferr.Required.IsZero() {
		res.Required = ferr.Required.StringFixed(7)
		res.Available = ferr.Available.StringFixed(7)
		res.Shortfall = ferr.Shortfall().StringFixed(7)
	}

	c.JSON(statusOf(err), res)
}

// respondInvalidRequest writes a request binding error.
func respondInvalidRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:  "invalid request body: " + err.Error(),
		Reason: reasonInvalidRequest,
	})
}
