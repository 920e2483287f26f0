package businessflow

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/linktum-io/linktum/app/dto"
	"github.com/linktum-io/linktum/models"
	"github.com/linktum-io/linktum/repository"
	"github.com/linktum-io/linktum/utils"
	"gorm.io/gorm"
)

// CouponFlow handles coupon redemption and operator coupon management.
type CouponFlow interface {
	Redeem(ctx context.Context, phone, code string) (*dto.RedeemCouponResponse, error)
	Create(ctx context.Context, req *dto.CreateCouponRequest) (*dto.CouponDTO, error)
	Invalidate(ctx context.Context, code string) error
	List(ctx context.Context, limit, offset int) (*dto.CouponListResponse, error)
}

// CouponFlowImpl implements CouponFlow
type CouponFlowImpl struct {
	couponRepo  repository.CouponRepository
	accountRepo repository.AccountRepository
	walletFlow  WalletFlow
	limiter     RateLimiter
	logger      *log.Logger
}

// NewCouponFlow creates a new coupon flow
func NewCouponFlow(
	couponRepo repository.CouponRepository,
	accountRepo repository.AccountRepository,
	walletFlow WalletFlow,
	limiter RateLimiter,
	logger *log.Logger,
) CouponFlow {
	if logger == nil {
		logger = log.Default()
	}
	return &CouponFlowImpl{
		couponRepo:  couponRepo,
		accountRepo: accountRepo,
		walletFlow:  walletFlow,
		limiter:     limiter,
		logger:      logger,
	}
}

// Redeem validates all redemption guards, registers the redeemer through a
// single conditional update, then credits the wallet. A credit failure
// after registration is logged and surfaced but the registration is not
// unwound; the ledger stays append-only.
func (f *CouponFlowImpl) Redeem(ctx context.Context, phone, code string) (*dto.RedeemCouponResponse, error) {
	normalized := utils.NormalizePhone(phone)
	if normalized == "" {
		return nil, NewBusinessError("INVALID_PHONE", "invalid phone number", ErrInvalidPhone)
	}

	allowed, retryAfter, err := f.limiter.Allow(ctx, normalized, ActionRedeemCoupon)
	if err != nil {
		f.logger.Printf("WARN rate limiter unavailable for %s: %v", normalized, err)
	} else if !allowed {
		return nil, NewBusinessErrorf("RATE_LIMITED", "too many attempts, retry in %ds", ErrRateLimited, int(retryAfter.Seconds()))
	}

	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, NewBusinessError("COUPON_CODE_REQUIRED", "coupon code is required", ErrCouponCodeRequired)
	}
	if len(code) < utils.CouponCodeMinLength {
		return nil, NewBusinessError("INVALID_COUPON", "coupon code is too short", ErrInvalidCoupon)
	}

	account, err := f.accountRepo.ByPhone(ctx, normalized)
	if err != nil {
		return nil, NewBusinessError("ACCOUNT_LOOKUP_FAILED", "failed to look up account", err)
	}
	if account == nil {
		return nil, NewBusinessError("ACCOUNT_NOT_FOUND", "account not found", ErrAccountNotFound)
	}
	if !account.HasEmail() {
		return nil, NewBusinessError("EMAIL_REQUIRED", "a registered email is required", ErrEmailRequired)
	}

	coupon, err := f.couponRepo.ByCode(ctx, code)
	if err != nil {
		return nil, NewBusinessError("COUPON_LOOKUP_FAILED", "failed to look up coupon", err)
	}
	if err := f.checkCoupon(coupon, normalized); err != nil {
		return nil, err
	}

	ok, err := f.couponRepo.Redeem(ctx, code, normalized)
	if err != nil {
		return nil, NewBusinessError("COUPON_REDEEM_FAILED", "failed to redeem coupon", err)
	}
	if !ok {
		// Lost a race; re-read to report the guard that now fails.
		coupon, err = f.couponRepo.ByCode(ctx, code)
		if err != nil {
			return nil, NewBusinessError("COUPON_LOOKUP_FAILED", "failed to look up coupon", err)
		}
		if err := f.checkCoupon(coupon, normalized); err != nil {
			return nil, err
		}
		return nil, NewBusinessError("INVALID_COUPON", "coupon not found or invalid", ErrInvalidCoupon)
	}

	entry, err := f.walletFlow.Credit(ctx, normalized, coupon.Amount, models.TransactionKindCoupon, "coupon "+code)
	if err != nil {
		f.logger.Printf("ERROR inconsistency: coupon %s consumed by %s but credit failed: %v", code, normalized, err)
		return nil, NewBusinessError("COUPON_CREDIT_FAILED", "coupon accepted but credit failed, contact support", err)
	}

	return &dto.RedeemCouponResponse{
		Code:       code,
		Amount:     coupon.Amount,
		NewBalance: entry.BalanceAfter,
	}, nil
}

func (f *CouponFlowImpl) checkCoupon(coupon *models.Coupon, phone string) error {
	if coupon == nil || !coupon.IsValid {
		return NewBusinessError("INVALID_COUPON", "coupon not found or invalid", ErrInvalidCoupon)
	}
	if utils.IsExpiredPtr(coupon.ExpiresAt) {
		return NewBusinessError("COUPON_EXPIRED", "coupon has expired", ErrCouponExpired)
	}
	if coupon.WasRedeemedBy(phone) {
		return NewBusinessError("COUPON_ALREADY_REDEEMED", "coupon already redeemed by this account", ErrCouponAlreadyRedeemed)
	}
	if coupon.IsExhausted() {
		return NewBusinessError("COUPON_EXHAUSTED", "coupon use limit reached", ErrCouponExhausted)
	}
	return nil
}

func (f *CouponFlowImpl) Create(ctx context.Context, req *dto.CreateCouponRequest) (*dto.CouponDTO, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		return nil, NewBusinessError("COUPON_CODE_REQUIRED", "coupon code is required", ErrCouponCodeRequired)
	}
	if len(code) < utils.CouponCodeMinLength {
		return nil, NewBusinessError("INVALID_COUPON", "coupon code is too short", ErrInvalidCoupon)
	}

	coupon := &models.Coupon{
		Code:      code,
		Amount:    req.Amount,
		IsValid:   true,
		MaxUses:   req.MaxUses,
		ExpiresAt: req.ExpiresAt,
	}
	if err := f.couponRepo.Save(ctx, coupon); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, NewBusinessError("COUPON_EXISTS", "coupon code already exists", ErrCouponAlreadyExists)
		}
		return nil, NewBusinessError("COUPON_CREATE_FAILED", "failed to create coupon", err)
	}

	mapped := mapCouponDTO(coupon)
	return &mapped, nil
}

func (f *CouponFlowImpl) Invalidate(ctx context.Context, code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	ok, err := f.couponRepo.Invalidate(ctx, code)
	if err != nil {
		return NewBusinessError("COUPON_INVALIDATE_FAILED", "failed to invalidate coupon", err)
	}
	if !ok {
		return NewBusinessError("INVALID_COUPON", "coupon not found or invalid", ErrInvalidCoupon)
	}
	return nil
}

func (f *CouponFlowImpl) List(ctx context.Context, limit, offset int) (*dto.CouponListResponse, error) {
	limit, offset = normalizePage(limit, offset)
	rows, err := f.couponRepo.List(ctx, models.CouponFilter{}, limit, offset)
	if err != nil {
		return nil, NewBusinessError("COUPON_LIST_FAILED", "failed to list coupons", err)
	}
	resp := &dto.CouponListResponse{Coupons: make([]dto.CouponDTO, 0, len(rows))}
	for _, row := range rows {
		resp.Coupons = append(resp.Coupons, mapCouponDTO(row))
	}
	return resp, nil
}
