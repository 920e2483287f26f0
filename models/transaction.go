package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransactionDirection indicates whether a transaction adds to or removes
// from the account balance.
type TransactionDirection string

const (
	TransactionDirectionCredit TransactionDirection = "credit"
	TransactionDirectionDebit  TransactionDirection = "debit"
)

// TransactionKind classifies what the transaction paid for.
type TransactionKind string

const (
	TransactionKindSignupBonus  TransactionKind = "signup_bonus"  // One-time registration credit
	TransactionKindPurchase     TransactionKind = "purchase"      // Gateway fiat purchase of tums
	TransactionKindCoupon       TransactionKind = "coupon"        // Coupon redemption credit
	TransactionKindLinkCreation TransactionKind = "link_creation" // Short link creation cost
	TransactionKindTemporalFee  TransactionKind = "temporal_fee"  // Temporary redirect target fee
	TransactionKindDailyFee     TransactionKind = "daily_fee"     // Daily link maintenance fee
	TransactionKindReversal     TransactionKind = "reversal"      // Gateway chargeback debit
	TransactionKindAdjustment   TransactionKind = "adjustment"    // Manual balance adjustment
)

// TransactionStatus represents the current status of a transaction
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"   // Awaiting gateway settlement
	TransactionStatusCompleted TransactionStatus = "completed" // Settled and reflected in the balance
	TransactionStatusFailed    TransactionStatus = "failed"    // Gateway reported failure
	TransactionStatusCancelled TransactionStatus = "cancelled" // Cancelled by the payer
	TransactionStatusExpired   TransactionStatus = "expired"   // Pending past its settlement window
	TransactionStatusReversed  TransactionStatus = "reversed"  // Charged back after completion
)

// Transaction is an immutable entry in the append-only ledger. Ledger rows
// are only ever inserted or status-transitioned, never rewritten.
type Transaction struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`

	AccountID uint                 `gorm:"not null;index" json:"account_id"`
	Direction TransactionDirection `gorm:"type:varchar(10);not null" json:"direction"`
	Kind      TransactionKind      `gorm:"type:varchar(20);not null;index" json:"kind"`
	Status    TransactionStatus    `gorm:"type:varchar(20);not null;default:'completed';index" json:"status"`

	// Amount is in tums. For purchases the fiat fields record what was paid;
	// the conversion is computed once at creation and never recomputed.
	Amount       uint64 `gorm:"not null" json:"amount"`
	FiatAmount   uint64 `gorm:"not null;default:0" json:"fiat_amount"`
	FiatCurrency string `gorm:"type:varchar(3)" json:"fiat_currency"`

	// BalanceAfter snapshots the account balance after a settled entry.
	BalanceAfter uint64 `gorm:"not null;default:0" json:"balance_after"`

	// Reference is the gateway payment reference for purchase transactions.
	Reference *string `gorm:"type:varchar(64);uniqueIndex:uk_transactions_reference" json:"reference,omitempty"`

	Description string          `gorm:"type:text" json:"description"`
	Metadata    json.RawMessage `gorm:"type:jsonb;default:'{}'" json:"metadata"`

	ExpiresAt   *time.Time `gorm:"index" json:"expires_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Account Account `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"account,omitempty"`
}

// TableName returns the table name for Transaction
func (Transaction) TableName() string { return "transactions" }

// BeforeCreate ensures the UUID is set
func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.UUID == uuid.Nil {
		t.UUID = uuid.New()
	}
	return nil
}

// IsPending returns true if the transaction still awaits settlement
func (t *Transaction) IsPending() bool {
	return t.Status == TransactionStatusPending
}

// IsSettled returns true if the transaction reached a final state
func (t *Transaction) IsSettled() bool {
	return t.Status != TransactionStatusPending
}

// CanBeReversed returns true if a chargeback may be applied
func (t *Transaction) CanBeReversed() bool {
	return t.Status == TransactionStatusCompleted
}

// TransactionFilter represents filter criteria for transaction queries
type TransactionFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	AccountID     *uint
	Direction     *TransactionDirection
	Kind          *TransactionKind
	Status        *TransactionStatus
	Reference     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
