package dto

import "time"

// RedeemCouponRequest redeems a promotional code for an account
type RedeemCouponRequest struct {
	Phone string `json:"phone" validate:"required,min=8,max=20"`
	Code  string `json:"code" validate:"required,min=1,max=64"`
}

// RedeemCouponResponse reports the credited amount
type RedeemCouponResponse struct {
	Code       string `json:"code"`
	Amount     uint64 `json:"amount"`
	NewBalance uint64 `json:"new_balance"`
}

// CreateCouponRequest creates a promotional code (admin only)
type CreateCouponRequest struct {
	Code      string     `json:"code" validate:"required,min=1,max=64"`
	Amount    uint64     `json:"amount" validate:"required,gt=0"`
	MaxUses   uint       `json:"max_uses,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// CouponDTO is the outward representation of a coupon
type CouponDTO struct {
	Code      string     `json:"code"`
	Amount    uint64     `json:"amount"`
	IsValid   bool       `json:"is_valid"`
	MaxUses   uint       `json:"max_uses"`
	UsedCount uint       `json:"used_count"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// CouponListResponse wraps a page of coupons
type CouponListResponse struct {
	Coupons []CouponDTO `json:"coupons"`
}
