package businessflow

import (
	"context"
	"time"
)

// RateLimiter is the per-account action limiter injected into flows.
// Allow consumes one slot; when it returns false the retry-after duration
// tells the caller when the window resets.
type RateLimiter interface {
	Allow(ctx context.Context, phone, action string) (bool, time.Duration, error)
}

// CheckoutRequest is what the payment gateway needs to open a checkout.
type CheckoutRequest struct {
	Reference   string
	FiatAmount  uint64
	Currency    string
	Phone       string
	Description string
}

// PaymentGateway opens hosted checkout sessions with the fiat provider.
type PaymentGateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error)
}

// TokenIssuer mints access tokens for the admin API.
type TokenIssuer interface {
	Issue(adminID uint, username string, ttl time.Duration) (string, error)
}
