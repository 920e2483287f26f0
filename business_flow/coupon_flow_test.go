package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/linktum-io/linktum/app/dto"
	"github.com/linktum-io/linktum/models"
	"github.com/linktum-io/linktum/utils"
)

const testPhone = "6281234567890"

func accountWithEmail() *models.Account {
	return &models.Account{
		ID:      1,
		Phone:   testPhone,
		Email:   utils.ToPtr("budi@example.com"),
		Balance: 100,
	}
}

func newCouponFlowForTest(couponRepo *mockCouponRepo, accountRepo *mockAccountRepo, wallet WalletFlow, limiter RateLimiter) CouponFlow {
	if limiter == nil {
		limiter = allowAllLimiter{}
	}
	return NewCouponFlow(couponRepo, accountRepo, wallet, limiter, discardLogger())
}

func TestRedeemHappyPath(t *testing.T) {
	ctx := context.Background()

	accountRepo := &mockAccountRepo{
		byPhoneFunc: func(ctx context.Context, phone string) (*models.Account, error) {
			return accountWithEmail(), nil
		},
		creditFunc: func(ctx context.Context, accountID uint, amount uint64, entry *models.Transaction) error {
			entry.BalanceAfter = 100 + amount
			return nil
		},
	}
	couponRepo := &mockCouponRepo{
		byCodeFunc: func(ctx context.Context, code string) (*models.Coupon, error) {
			assert.Equal(t, "WELCOME50", code, "codes are normalized to uppercase before lookup")
			return &models.Coupon{Code: code, Amount: 500, IsValid: true}, nil
		},
		redeemFunc: func(ctx context.Context, code, phone string) (bool, error) {
			assert.Equal(t, testPhone, phone)
			return true, nil
		},
	}
	wallet := newWalletFlowForTest(accountRepo, &mockTransactionRepo{})
	flow := newCouponFlowForTest(couponRepo, accountRepo, wallet, nil)

	resp, err := flow.Redeem(ctx, "+6281234567890", "  welcome50 ")
	require.NoError(t, err)
	assert.Equal(t, "WELCOME50", resp.Code)
	assert.Equal(t, uint64(500), resp.Amount)
	assert.Equal(t, uint64(600), resp.NewBalance)
}

func TestRedeemRequiresEmail(t *testing.T) {
	accountRepo := &mockAccountRepo{
		byPhoneFunc: func(ctx context.Context, phone string) (*models.Account, error) {
			return &models.Account{ID: 1, Phone: phone}, nil
		},
	}
	flow := newCouponFlowForTest(&mockCouponRepo{}, accountRepo, nil, nil)

	_, err := flow.Redeem(context.Background(), "+6281234567890", "WELCOME50")
	require.Error(t, err)
	assert.True(t, IsEmailRequired(err))
}

func TestRedeemGuards(t *testing.T) {
	past := utils.UTCNow().Add(-time.Hour)

	cases := []struct {
		name   string
		coupon *models.Coupon
		check  func(error) bool
	}{
		{"unknown code", nil, IsInvalidCoupon},
		{"invalidated", &models.Coupon{Code: "X", Amount: 10, IsValid: false}, IsInvalidCoupon},
		{"expired", &models.Coupon{Code: "X", Amount: 10, IsValid: true, ExpiresAt: &past}, IsCouponExpired},
		{"exhausted", &models.Coupon{Code: "X", Amount: 10, IsValid: true, MaxUses: 3, UsedCount: 3}, IsCouponExhausted},
		{"already redeemed", &models.Coupon{Code: "X", Amount: 10, IsValid: true, RedeemedBy: []string{testPhone}}, IsCouponAlreadyRedeemed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			accountRepo := &mockAccountRepo{
				byPhoneFunc: func(ctx context.Context, phone string) (*models.Account, error) {
					return accountWithEmail(), nil
				},
			}
			couponRepo := &mockCouponRepo{
				byCodeFunc: func(ctx context.Context, code string) (*models.Coupon, error) {
					return tc.coupon, nil
				},
			}
			flow := newCouponFlowForTest(couponRepo, accountRepo, nil, nil)

			_, err := flow.Redeem(context.Background(), "+6281234567890", "X123")
			require.Error(t, err)
			assert.True(t, tc.check(err))
		})
	}
}

func TestRedeemRejectsShortCode(t *testing.T) {
	// No coupon repo mocks: a too-short code must fail before any lookup.
	flow := newCouponFlowForTest(&mockCouponRepo{}, &mockAccountRepo{}, nil, nil)

	_, err := flow.Redeem(context.Background(), "+6281234567890", "AB")
	require.Error(t, err)
	assert.True(t, IsInvalidCoupon(err))
}

func TestRedeemLostRaceReportsFreshGuard(t *testing.T) {
	ctx := context.Background()
	lookups := 0

	accountRepo := &mockAccountRepo{
		byPhoneFunc: func(ctx context.Context, phone string) (*models.Account, error) {
			return accountWithEmail(), nil
		},
	}
	couponRepo := &mockCouponRepo{
		byCodeFunc: func(ctx context.Context, code string) (*models.Coupon, error) {
			lookups++
			if lookups == 1 {
				// Looked fine at check time.
				return &models.Coupon{Code: code, Amount: 10, IsValid: true, MaxUses: 1}, nil
			}
			// A concurrent redeemer took the last use.
			return &models.Coupon{Code: code, Amount: 10, IsValid: true, MaxUses: 1, UsedCount: 1}, nil
		},
		redeemFunc: func(ctx context.Context, code, phone string) (bool, error) {
			return false, nil
		},
	}
	flow := newCouponFlowForTest(couponRepo, accountRepo, nil, nil)

	_, err := flow.Redeem(ctx, "+6281234567890", "LAST1")
	require.Error(t, err)
	assert.True(t, IsCouponExhausted(err))
	assert.Equal(t, 2, lookups)
}

func TestRedeemRateLimited(t *testing.T) {
	flow := newCouponFlowForTest(&mockCouponRepo{}, &mockAccountRepo{}, nil, denyAllLimiter{retryAfter: 30 * time.Second})

	_, err := flow.Redeem(context.Background(), "+6281234567890", "WELCOME50")
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
}

func TestCreateCouponNormalizesCode(t *testing.T) {
	var saved *models.Coupon
	couponRepo := &mockCouponRepo{
		saveFunc: func(ctx context.Context, entity *models.Coupon) error {
			saved = entity
			return nil
		},
	}
	flow := newCouponFlowForTest(couponRepo, &mockAccountRepo{}, nil, nil)

	resp, err := flow.Create(context.Background(), &dto.CreateCouponRequest{Code: " promo10 ", Amount: 100, MaxUses: 5})
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "PROMO10", saved.Code)
	assert.True(t, saved.IsValid)
	assert.Equal(t, "PROMO10", resp.Code)

	t.Run("too short", func(t *testing.T) {
		_, err := flow.Create(context.Background(), &dto.CreateCouponRequest{Code: "AB", Amount: 100})
		require.Error(t, err)
		assert.True(t, IsInvalidCoupon(err))
	})
}

func TestCreateCouponDuplicateCode(t *testing.T) {
	couponRepo := &mockCouponRepo{
		saveFunc: func(ctx context.Context, entity *models.Coupon) error {
			return gorm.ErrDuplicatedKey
		},
	}
	flow := newCouponFlowForTest(couponRepo, &mockAccountRepo{}, nil, nil)

	_, err := flow.Create(context.Background(), &dto.CreateCouponRequest{Code: "PROMO10", Amount: 100})
	require.Error(t, err)
	assert.True(t, IsCouponAlreadyExists(err))
}

func TestInvalidateUnknownCoupon(t *testing.T) {
	couponRepo := &mockCouponRepo{
		invalidateFunc: func(ctx context.Context, code string) (bool, error) {
			return false, nil
		},
	}
	flow := newCouponFlowForTest(couponRepo, &mockAccountRepo{}, nil, nil)

	err := flow.Invalidate(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, IsInvalidCoupon(err))
}
