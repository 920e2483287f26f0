package utils

import (
	"time"
)

// Token economics constants. Amounts are in tums, the internal token unit.
const (
	// SignupBonusTums is credited once when an account is first registered
	SignupBonusTums = 1000

	// LinkCreationCostTums is debited when a short link is created
	LinkCreationCostTums = 250

	// DailyMaintenanceFeeTums is debited by the billing sweep per active link per day
	DailyMaintenanceFeeTums = 50

	// TemporalRedirectFeeTums is debited when a temporary target is set on a link
	TemporalRedirectFeeTums = 25

	// TumsPerFiatUnit is the purchase conversion rate (tokens per unit of fiat)
	TumsPerFiatUnit = 10

	// FiatCurrency is the settlement currency of the payment gateway
	FiatCurrency = "IDR"
)

// Short code constants
const (
	// RandomCodeLength is the length of generated short codes
	RandomCodeLength = 6

	// RandomCodeMaxAttempts bounds collision retries during generation
	RandomCodeMaxAttempts = 10

	// CustomCodeMinLength and CustomCodeMaxLength bound caller-chosen codes
	CustomCodeMinLength = 4
	CustomCodeMaxLength = 32

	// CouponCodeMinLength is the shortest coupon code accepted for redemption
	CouponCodeMinLength = 4
)

// Billing and settlement time constants
const (
	// PendingPaymentTTL is how long a pending purchase may await settlement
	PendingPaymentTTL = time.Hour

	// BillingCycle is the interval between maintenance fee charges per link
	BillingCycle = 24 * time.Hour

	// DeletionGraceWindow is how long a deactivated link survives before
	// the sweep removes it
	DeletionGraceWindow = 24 * time.Hour

	// BillingClaimTTL is how long a sweep claim on a link is honored before
	// another worker may reclaim it
	BillingClaimTTL = 15 * time.Minute
)

// Rate limiting constants
const (
	// RateLimitWindow is the fixed window size for per-account action limits
	RateLimitWindow = 60 * time.Second

	// RateLimitMaxActions is the number of actions allowed per window
	RateLimitMaxActions = 5
)

// Notification dispatch constants
const (
	// NotificationBatchSize is the number of messages sent per batch
	NotificationBatchSize = 20

	// NotificationBatchPause is the pause between batches
	NotificationBatchPause = 2 * time.Second
)

// Session constants for the admin API
const (
	// AdminAccessTokenTTL is the time-to-live for admin access tokens
	AdminAccessTokenTTL = 24 * time.Hour
)
