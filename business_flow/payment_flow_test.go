package businessflow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linktum-io/linktum/app/dto"
	"github.com/linktum-io/linktum/models"
	"github.com/linktum-io/linktum/utils"
)

func newPaymentFlowForTest(accountRepo *mockAccountRepo, txRepo *mockTransactionRepo, gateway PaymentGateway, limiter RateLimiter) PaymentFlow {
	if limiter == nil {
		limiter = allowAllLimiter{}
	}
	wallet := newWalletFlowForTest(accountRepo, txRepo)
	return NewPaymentFlow(accountRepo, txRepo, wallet, gateway, limiter, testConfig(), discardLogger())
}

func existingAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{
		createIfAbsentFunc: func(ctx context.Context, phone string) (*models.Account, bool, error) {
			return &models.Account{ID: 1, Phone: phone, Balance: 100}, false, nil
		},
	}
}

func TestCreatePendingConvertsFiatOnce(t *testing.T) {
	ctx := context.Background()
	var saved *models.Transaction

	txRepo := &mockTransactionRepo{
		saveFunc: func(ctx context.Context, entity *models.Transaction) error {
			entity.ID = 42
			saved = entity
			return nil
		},
	}
	gateway := &mockGateway{
		createCheckoutFunc: func(ctx context.Context, req CheckoutRequest) (string, error) {
			assert.Equal(t, uint64(5000), req.FiatAmount, "the gateway is charged in fiat, not tums")
			assert.Equal(t, utils.FiatCurrency, req.Currency)
			return "https://gateway.example/checkout/" + req.Reference, nil
		},
	}
	flow := newPaymentFlowForTest(existingAccountRepo(), txRepo, gateway, nil)

	resp, err := flow.CreatePending(ctx, "+6281234567890", 5000)
	require.NoError(t, err)
	require.NotNil(t, saved)

	assert.Equal(t, uint64(5000*utils.TumsPerFiatUnit), resp.TokenAmount)
	assert.Equal(t, resp.TokenAmount, saved.Amount)
	assert.Equal(t, uint64(5000), saved.FiatAmount)
	assert.Equal(t, models.TransactionStatusPending, saved.Status)
	assert.True(t, strings.HasPrefix(resp.Reference, "PAY-"))
	assert.Contains(t, resp.CheckoutURL, resp.Reference)
	assert.WithinDuration(t, utils.UTCNowAdd(utils.PendingPaymentTTL), resp.ExpiresAt, time.Minute)
}

func TestCreatePendingGatewayRejection(t *testing.T) {
	ctx := context.Background()
	failed := false

	txRepo := &mockTransactionRepo{
		saveFunc: func(ctx context.Context, entity *models.Transaction) error {
			entity.ID = 42
			return nil
		},
		transitionStatusFunc: func(ctx context.Context, id uint, from, to models.TransactionStatus, completedAt *time.Time) (bool, error) {
			assert.Equal(t, models.TransactionStatusPending, from)
			assert.Equal(t, models.TransactionStatusFailed, to)
			failed = true
			return true, nil
		},
	}
	gateway := &mockGateway{
		createCheckoutFunc: func(ctx context.Context, req CheckoutRequest) (string, error) {
			return "", errors.New("gateway 503")
		},
	}
	flow := newPaymentFlowForTest(existingAccountRepo(), txRepo, gateway, nil)

	_, err := flow.CreatePending(ctx, "+6281234567890", 5000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGatewayRejected))
	assert.True(t, failed, "the pending entry is failed when the gateway rejects")
}

func TestCreatePendingRejectsZeroAmount(t *testing.T) {
	flow := newPaymentFlowForTest(existingAccountRepo(), &mockTransactionRepo{}, &mockGateway{}, nil)

	_, err := flow.CreatePending(context.Background(), "+6281234567890", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidAmount))
}

func pendingPurchase(ref string) *models.Transaction {
	return &models.Transaction{
		ID:        42,
		AccountID: 1,
		Direction: models.TransactionDirectionCredit,
		Kind:      models.TransactionKindPurchase,
		Status:    models.TransactionStatusPending,
		Amount:    50000,
		Reference: &ref,
	}
}

func TestSettleSuccessCreditsOnce(t *testing.T) {
	ctx := context.Background()
	settles := 0

	entry := pendingPurchase("PAY-abc")
	accountRepo := &mockAccountRepo{
		settlePurchaseFunc: func(ctx context.Context, accountID, transactionID uint, amount uint64) (bool, error) {
			settles++
			assert.Equal(t, uint(1), accountID)
			assert.Equal(t, uint(42), transactionID)
			assert.Equal(t, uint64(50000), amount)
			entry.Status = models.TransactionStatusCompleted
			entry.BalanceAfter = 50100
			return settles == 1, nil
		},
	}
	txRepo := &mockTransactionRepo{
		byReferenceFunc: func(ctx context.Context, reference string) (*models.Transaction, error) {
			return entry, nil
		},
	}
	flow := newPaymentFlowForTest(accountRepo, txRepo, &mockGateway{}, nil)

	result, err := flow.Settle(ctx, &dto.GatewayCallbackRequest{Reference: "PAY-abc", Status: "SUCCESS"})
	require.NoError(t, err)
	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, uint64(50100), result.BalanceAfter)

	// Replayed callback hits the settled entry.
	_, err = flow.Settle(ctx, &dto.GatewayCallbackRequest{Reference: "PAY-abc", Status: "success"})
	require.Error(t, err)
	assert.True(t, IsAlreadySettled(err))
	assert.Equal(t, 2, settles)
}

func TestSettleUnknownOutcome(t *testing.T) {
	txRepo := &mockTransactionRepo{
		byReferenceFunc: func(ctx context.Context, reference string) (*models.Transaction, error) {
			return pendingPurchase(reference), nil
		},
	}
	flow := newPaymentFlowForTest(&mockAccountRepo{}, txRepo, &mockGateway{}, nil)

	_, err := flow.Settle(context.Background(), &dto.GatewayCallbackRequest{Reference: "PAY-abc", Status: "exploded"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownOutcome))
}

func TestSettleUnknownReference(t *testing.T) {
	txRepo := &mockTransactionRepo{
		byReferenceFunc: func(ctx context.Context, reference string) (*models.Transaction, error) {
			return nil, nil
		},
	}
	flow := newPaymentFlowForTest(&mockAccountRepo{}, txRepo, &mockGateway{}, nil)

	_, err := flow.Settle(context.Background(), &dto.GatewayCallbackRequest{Reference: "PAY-gone", Status: "success"})
	require.Error(t, err)
	assert.True(t, IsPaymentNotFound(err))
}

func TestSettlePendingCallbackIsAcknowledged(t *testing.T) {
	entry := pendingPurchase("PAY-abc")
	txRepo := &mockTransactionRepo{
		byReferenceFunc: func(ctx context.Context, reference string) (*models.Transaction, error) {
			return entry, nil
		},
	}
	// No settle or transition mocks: a pending callback must touch nothing.
	flow := newPaymentFlowForTest(&mockAccountRepo{}, txRepo, &mockGateway{}, nil)

	result, err := flow.Settle(context.Background(), &dto.GatewayCallbackRequest{Reference: "PAY-abc", Status: "pending"})
	require.NoError(t, err)
	assert.Equal(t, "pending", result.Status)
}

func TestSettleFailedMarksEntry(t *testing.T) {
	entry := pendingPurchase("PAY-abc")
	txRepo := &mockTransactionRepo{
		byReferenceFunc: func(ctx context.Context, reference string) (*models.Transaction, error) {
			return entry, nil
		},
		transitionStatusFunc: func(ctx context.Context, id uint, from, to models.TransactionStatus, completedAt *time.Time) (bool, error) {
			assert.Equal(t, models.TransactionStatusPending, from)
			assert.Equal(t, models.TransactionStatusFailed, to)
			entry.Status = to
			return true, nil
		},
	}
	flow := newPaymentFlowForTest(&mockAccountRepo{}, txRepo, &mockGateway{}, nil)

	result, err := flow.Settle(context.Background(), &dto.GatewayCallbackRequest{Reference: "PAY-abc", Status: "failed"})
	require.NoError(t, err)
	assert.Equal(t, "failed", result.Status)
}

func TestSettleReversalClampsAtZero(t *testing.T) {
	ctx := context.Background()

	entry := pendingPurchase("PAY-abc")
	entry.Status = models.TransactionStatusCompleted

	var reversalEntry *models.Transaction
	accountRepo := &mockAccountRepo{
		debitUpToFunc: func(ctx context.Context, accountID uint, amount uint64, e *models.Transaction) (uint64, error) {
			assert.Equal(t, uint64(50000), amount)
			// Only part of the purchase is still in the wallet.
			e.BalanceAfter = 0
			reversalEntry = e
			return 30000, nil
		},
	}
	txRepo := &mockTransactionRepo{
		byReferenceFunc: func(ctx context.Context, reference string) (*models.Transaction, error) {
			return entry, nil
		},
		transitionStatusFunc: func(ctx context.Context, id uint, from, to models.TransactionStatus, completedAt *time.Time) (bool, error) {
			assert.Equal(t, models.TransactionStatusCompleted, from)
			assert.Equal(t, models.TransactionStatusReversed, to)
			return true, nil
		},
	}
	flow := newPaymentFlowForTest(accountRepo, txRepo, &mockGateway{}, nil)

	result, err := flow.Settle(ctx, &dto.GatewayCallbackRequest{Reference: "PAY-abc", Status: "reversed"})
	require.NoError(t, err)
	require.NotNil(t, reversalEntry)
	assert.Equal(t, models.TransactionKindReversal, reversalEntry.Kind)
	assert.Equal(t, uint64(0), result.BalanceAfter, "no debt is carried past zero")
}

func TestSettleReversalOnNonCompletedEntry(t *testing.T) {
	entry := pendingPurchase("PAY-abc")
	txRepo := &mockTransactionRepo{
		byReferenceFunc: func(ctx context.Context, reference string) (*models.Transaction, error) {
			return entry, nil
		},
		transitionStatusFunc: func(ctx context.Context, id uint, from, to models.TransactionStatus, completedAt *time.Time) (bool, error) {
			// Entry is still pending, not completed.
			return false, nil
		},
	}
	flow := newPaymentFlowForTest(&mockAccountRepo{}, txRepo, &mockGateway{}, nil)

	_, err := flow.Settle(context.Background(), &dto.GatewayCallbackRequest{Reference: "PAY-abc", Status: "reversed"})
	require.Error(t, err)
	assert.True(t, IsAlreadySettled(err))
}

func TestSettleDisputeIsInformational(t *testing.T) {
	entry := pendingPurchase("PAY-abc")
	entry.Status = models.TransactionStatusCompleted
	txRepo := &mockTransactionRepo{
		byReferenceFunc: func(ctx context.Context, reference string) (*models.Transaction, error) {
			return entry, nil
		},
	}
	// No transition or debit mocks: a dispute must not move money or state.
	flow := newPaymentFlowForTest(&mockAccountRepo{}, txRepo, &mockGateway{}, nil)

	result, err := flow.Settle(context.Background(), &dto.GatewayCallbackRequest{Reference: "PAY-abc", Status: "dispute"})
	require.NoError(t, err)
	assert.Equal(t, "completed", result.Status)
}

func TestSettleGatewayStatusAliases(t *testing.T) {
	ctx := context.Background()

	t.Run("abandoned cancels the pending entry", func(t *testing.T) {
		entry := pendingPurchase("PAY-abc")
		txRepo := &mockTransactionRepo{
			byReferenceFunc: func(ctx context.Context, reference string) (*models.Transaction, error) {
				return entry, nil
			},
			transitionStatusFunc: func(ctx context.Context, id uint, from, to models.TransactionStatus, completedAt *time.Time) (bool, error) {
				assert.Equal(t, models.TransactionStatusPending, from)
				assert.Equal(t, models.TransactionStatusCancelled, to)
				entry.Status = to
				return true, nil
			},
		}
		flow := newPaymentFlowForTest(&mockAccountRepo{}, txRepo, &mockGateway{}, nil)

		result, err := flow.Settle(ctx, &dto.GatewayCallbackRequest{Reference: "PAY-abc", Status: "abandoned"})
		require.NoError(t, err)
		assert.Equal(t, "cancelled", result.Status)
	})

	t.Run("refunded follows the reversal path", func(t *testing.T) {
		entry := pendingPurchase("PAY-abc")
		entry.Status = models.TransactionStatusCompleted

		debited := false
		accountRepo := &mockAccountRepo{
			debitUpToFunc: func(ctx context.Context, accountID uint, amount uint64, e *models.Transaction) (uint64, error) {
				debited = true
				return amount, nil
			},
		}
		txRepo := &mockTransactionRepo{
			byReferenceFunc: func(ctx context.Context, reference string) (*models.Transaction, error) {
				return entry, nil
			},
			transitionStatusFunc: func(ctx context.Context, id uint, from, to models.TransactionStatus, completedAt *time.Time) (bool, error) {
				assert.Equal(t, models.TransactionStatusCompleted, from)
				assert.Equal(t, models.TransactionStatusReversed, to)
				return true, nil
			},
		}
		flow := newPaymentFlowForTest(accountRepo, txRepo, &mockGateway{}, nil)

		_, err := flow.Settle(ctx, &dto.GatewayCallbackRequest{Reference: "PAY-abc", Status: "refunded"})
		require.NoError(t, err)
		assert.True(t, debited)
	})

	t.Run("processing is acknowledged without changes", func(t *testing.T) {
		entry := pendingPurchase("PAY-abc")
		txRepo := &mockTransactionRepo{
			byReferenceFunc: func(ctx context.Context, reference string) (*models.Transaction, error) {
				return entry, nil
			},
		}
		flow := newPaymentFlowForTest(&mockAccountRepo{}, txRepo, &mockGateway{}, nil)

		result, err := flow.Settle(ctx, &dto.GatewayCallbackRequest{Reference: "PAY-abc", Status: "processing"})
		require.NoError(t, err)
		assert.Equal(t, "pending", result.Status)
	})
}

func TestExpirePending(t *testing.T) {
	txRepo := &mockTransactionRepo{
		expirePendingFunc: func(ctx context.Context, now time.Time) (int64, error) {
			return 3, nil
		},
	}
	flow := newPaymentFlowForTest(&mockAccountRepo{}, txRepo, &mockGateway{}, nil)

	n, err := flow.ExpirePending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
