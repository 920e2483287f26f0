package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Coupon is a promotional code that credits tums on redemption. Codes are
// stored uppercase; RedeemedBy lists the phones that already used the code
// so each account can redeem at most once.
type Coupon struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Code   string `gorm:"size:64;not null;uniqueIndex:uk_coupons_code" json:"code"`
	Amount uint64 `gorm:"not null" json:"amount"`

	IsValid   bool       `gorm:"not null;default:true;index" json:"is_valid"`
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`

	// MaxUses of zero means unlimited.
	MaxUses    uint           `gorm:"not null;default:0" json:"max_uses"`
	UsedCount  uint           `gorm:"not null;default:0" json:"used_count"`
	RedeemedBy pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"redeemed_by"`

	CreatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_coupons_created_at" json:"created_at"`
	UpdatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// TableName returns the table name for Coupon
func (Coupon) TableName() string { return "coupons" }

// IsExhausted reports whether the use cap has been reached.
func (c *Coupon) IsExhausted() bool {
	return c.MaxUses > 0 && c.UsedCount >= c.MaxUses
}

// WasRedeemedBy reports whether the given phone already used this code.
func (c *Coupon) WasRedeemedBy(phone string) bool {
	for _, p := range c.RedeemedBy {
		if p == phone {
			return true
		}
	}
	return false
}

// CouponFilter represents filter criteria for coupon queries
type CouponFilter struct {
	ID            *uint
	Code          *string
	IsValid       *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
