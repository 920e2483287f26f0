package dto

import "time"

// CreatePaymentRequest starts a token purchase
type CreatePaymentRequest struct {
	Phone      string `json:"phone" validate:"required,min=8,max=20"`
	FiatAmount uint64 `json:"fiat_amount" validate:"required,gt=0"`
}

// CreatePaymentResponse carries the checkout handoff
type CreatePaymentResponse struct {
	Reference   string    `json:"reference"`
	CheckoutURL string    `json:"checkout_url"`
	TokenAmount uint64    `json:"token_amount"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// GatewayCallbackRequest is the settlement webhook payload
type GatewayCallbackRequest struct {
	Reference   string `json:"reference" validate:"required"`
	Status      string `json:"status" validate:"required"`
	TraceNumber string `json:"trace_number,omitempty"`
	PaidAmount  uint64 `json:"paid_amount,omitempty"`
}

// TransactionDTO is the outward representation of a ledger entry
type TransactionDTO struct {
	UUID         string     `json:"uuid"`
	Direction    string     `json:"direction"`
	Kind         string     `json:"kind"`
	Status       string     `json:"status"`
	Amount       uint64     `json:"amount"`
	BalanceAfter uint64     `json:"balance_after"`
	Description  string     `json:"description,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// BalanceResponse reports the current tums balance
type BalanceResponse struct {
	Phone   string `json:"phone"`
	Balance uint64 `json:"balance"`
}

// TransactionHistoryResponse wraps a page of ledger entries
type TransactionHistoryResponse struct {
	Transactions []TransactionDTO `json:"transactions"`
}
