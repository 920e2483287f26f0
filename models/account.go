// Package models contains domain entities for the link and wallet service.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Account is a WhatsApp user identified by normalized phone number.
// Accounts are soft-registered on first contact with a zero-value profile;
// Balance is the current tums balance and never goes below zero.
type Account struct {
	ID    uint    `gorm:"primaryKey" json:"id"`
	Phone string  `gorm:"size:20;not null;uniqueIndex:uk_accounts_phone" json:"phone"`
	Name  string  `gorm:"size:255" json:"name"`
	Email *string `gorm:"size:320" json:"email,omitempty"`

	Balance uint64 `gorm:"not null;default:0" json:"balance"`

	CreatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_accounts_created_at" json:"created_at"`
	UpdatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// TableName returns the table name for Account
func (Account) TableName() string { return "accounts" }

// HasEmail reports whether a contact email has been registered.
func (a *Account) HasEmail() bool {
	return a.Email != nil && *a.Email != ""
}

// AccountFilter represents filter criteria for account queries
type AccountFilter struct {
	ID            *uint
	Phone         *string
	Email         *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
