package models

import (
	"time"
)

// AddressResponse represents the API response for address validation
type AddressResponse struct {
	Address string `json:"address"`
	Valid   bool   `json:"valid"`
	Kind    string `json:"kind,omitempty"`
	Name    string `json:"name,omitempty"`
	Domain  string `json:"domain,omitempty"`
	Error   string `json:"error,omitempty"`
}

// AmountResponse represents the API response for unit conversion
type AmountResponse struct {
	Display   float64 `json:"display"`
	Base      string  `json:"base"`
	Formatted string  `json:"formatted"`
}

// BalanceResponse represents the API response for a cached balance
type BalanceResponse struct {
	Account        string    `json:"account"`
	Funded         bool      `json:"funded"`
	Total          string    `json:"total"`
	Spendable      string    `json:"spendable"`
	MinimumReserve string    `json:"minimum_reserve"`
	CapturedAt     time.Time `json:"captured_at"`
}

// PaymentRecord represents one payment of an account's history
type PaymentRecord struct {
	ID        string    `json:"id"`
	Hash      string    `json:"transaction_hash"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Amount    string    `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryResponse represents the API response for payment history
type HistoryResponse struct {
	Account  string          `json:"account"`
	Payments []PaymentRecord `json:"payments"`
}

// PaymentRequest represents the request body for the payment endpoint
type PaymentRequest struct {
	Destination string `json:"destination" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	Memo        string `json:"memo" binding:"max=28"`
}

// PaymentResponse represents the API response for an accepted payment
type PaymentResponse struct {
	TransactionHash string `json:"transaction_hash"`
	Ledger          int32  `json:"ledger"`
	Source          string `json:"source"`
	Destination     string `json:"destination"`
	Amount          string `json:"amount"`
	Message         string `json:"message"`
}

// BulkPaymentRequest represents the request body for the bulk payment endpoint
type BulkPaymentRequest struct {
	Recipients []PaymentRequest `json:"recipients" binding:"required,min=1,dive"`
}

// BulkItemResponse represents the outcome of one recipient of a batch
type BulkItemResponse struct {
	Recipient       int    `json:"recipient"`
	Destination     string `json:"destination"`
	Amount          string `json:"amount"`
	Status          string `json:"status"`
	Attempts        int    `json:"attempts,omitempty"`
	TransactionHash string `json:"transaction_hash,omitempty"`
	Ledger          int32  `json:"ledger,omitempty"`
	Reason          string `json:"reason,omitempty"`
	Error           string `json:"error,omitempty"`
}

// BulkPaymentResponse represents the API response for the bulk payment endpoint
type BulkPaymentResponse struct {
	BatchID      string             `json:"batch_id"`
	Source       string             `json:"source"`
	Successful   bool               `json:"successful"`
	Succeeded    int                `json:"succeeded"`
	Failed       int                `json:"failed"`
	Unknown      int                `json:"unknown"`
	NotAttempted int                `json:"not_attempted"`
	Items        []BulkItemResponse `json:"items"`
}

// Violation represents one problem of a rejected request
type Violation struct {
	Recipient int    `json:"recipient,omitempty"`
	Reason    string `json:"reason"`
	Error     string `json:"error"`
}

// ErrorResponse represents the API response for a failed request
type ErrorResponse struct {
	Error      string      `json:"error"`
	Reason     string      `json:"reason"`
	Required   string      `json:"required,omitempty"`
	Available  string      `json:"available,omitempty"`
	Shortfall  string      `json:"shortfall,omitempty"`
	Violations []Violation `json:"violations,omitempty"`
}
