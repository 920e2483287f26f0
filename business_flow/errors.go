// Package businessflow contains the core business logic for the wallet and
// link lifecycle workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Account-related errors
	ErrAccountNotFound = errors.New("account not found")
	ErrInvalidPhone    = errors.New("invalid phone number")
	ErrEmailRequired   = errors.New("a registered email is required")
	ErrEmailAlreadySet = errors.New("email is already registered")
	ErrInvalidEmail    = errors.New("invalid email address")

	// Ledger errors
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")

	// Rate limiting errors
	ErrRateLimited = errors.New("too many requests, try again later")

	// Coupon errors
	ErrInvalidCoupon         = errors.New("coupon not found or invalid")
	ErrCouponExpired         = errors.New("coupon has expired")
	ErrCouponExhausted       = errors.New("coupon use limit reached")
	ErrCouponAlreadyRedeemed = errors.New("coupon already redeemed by this account")
	ErrCouponCodeRequired    = errors.New("coupon code is required")
	ErrCouponAlreadyExists   = errors.New("coupon code already exists")

	// Payment errors
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrAlreadySettled   = errors.New("payment already settled")
	ErrPaymentExpired   = errors.New("payment expired")
	ErrGatewayRejected  = errors.New("payment gateway rejected the request")
	ErrUnknownOutcome   = errors.New("unknown settlement outcome")
	ErrInvalidSignature = errors.New("invalid callback signature")

	// Link errors
	ErrLinkNotFound            = errors.New("link not found")
	ErrNotLinkOwner            = errors.New("link belongs to another account")
	ErrLinkNotActive           = errors.New("link is not active")
	ErrLinkNotDeactivated      = errors.New("link is not deactivated")
	ErrGraceExpired            = errors.New("reactivation window has passed")
	ErrInvalidCode             = errors.New("invalid short code")
	ErrCodeUnavailable         = errors.New("short code is already taken")
	ErrCodeGenerationExhausted = errors.New("could not generate a free short code")
	ErrNoTemporalTarget        = errors.New("no temporary target is set")
	ErrTemporalAlreadySet      = errors.New("a temporary target is already set")

	// Admin errors
	ErrAdminNotFound     = errors.New("admin not found")
	ErrAdminInactive     = errors.New("admin account is inactive")
	ErrIncorrectPassword = errors.New("incorrect password")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsAccountNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}

func IsInvalidPhone(err error) bool {
	return errors.Is(err, ErrInvalidPhone)
}

func IsEmailRequired(err error) bool {
	return errors.Is(err, ErrEmailRequired)
}

func IsEmailAlreadySet(err error) bool {
	return errors.Is(err, ErrEmailAlreadySet)
}

func IsInsufficientBalance(err error) bool {
	return errors.Is(err, ErrInsufficientBalance)
}

func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

func IsInvalidCoupon(err error) bool {
	return errors.Is(err, ErrInvalidCoupon)
}

func IsCouponExpired(err error) bool {
	return errors.Is(err, ErrCouponExpired)
}

func IsCouponExhausted(err error) bool {
	return errors.Is(err, ErrCouponExhausted)
}

func IsCouponAlreadyRedeemed(err error) bool {
	return errors.Is(err, ErrCouponAlreadyRedeemed)
}

func IsCouponAlreadyExists(err error) bool {
	return errors.Is(err, ErrCouponAlreadyExists)
}

func IsPaymentNotFound(err error) bool {
	return errors.Is(err, ErrPaymentNotFound)
}

func IsAlreadySettled(err error) bool {
	return errors.Is(err, ErrAlreadySettled)
}

func IsInvalidSignature(err error) bool {
	return errors.Is(err, ErrInvalidSignature)
}

func IsLinkNotFound(err error) bool {
	return errors.Is(err, ErrLinkNotFound)
}

func IsNotLinkOwner(err error) bool {
	return errors.Is(err, ErrNotLinkOwner)
}

func IsLinkNotActive(err error) bool {
	return errors.Is(err, ErrLinkNotActive)
}

func IsLinkNotDeactivated(err error) bool {
	return errors.Is(err, ErrLinkNotDeactivated)
}

func IsGraceExpired(err error) bool {
	return errors.Is(err, ErrGraceExpired)
}

func IsInvalidCode(err error) bool {
	return errors.Is(err, ErrInvalidCode)
}

func IsCodeUnavailable(err error) bool {
	return errors.Is(err, ErrCodeUnavailable)
}

func IsCodeGenerationExhausted(err error) bool {
	return errors.Is(err, ErrCodeGenerationExhausted)
}

func IsNoTemporalTarget(err error) bool {
	return errors.Is(err, ErrNoTemporalTarget)
}

func IsTemporalAlreadySet(err error) bool {
	return errors.Is(err, ErrTemporalAlreadySet)
}

func IsIncorrectPassword(err error) bool {
	return errors.Is(err, ErrIncorrectPassword)
}

func IsAdminNotFound(err error) bool {
	return errors.Is(err, ErrAdminNotFound)
}

func IsAdminInactive(err error) bool {
	return errors.Is(err, ErrAdminInactive)
}
