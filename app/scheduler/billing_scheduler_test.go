package scheduler

import (
	"context"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linktum-io/linktum/app/dto"
	businessflow "github.com/linktum-io/linktum/business_flow"
	"github.com/linktum-io/linktum/config"
	"github.com/linktum-io/linktum/models"
	"github.com/linktum-io/linktum/utils"
)

type sweepLinkRepo struct {
	claimFunc       func(ctx context.Context, now time.Time, claimTTL time.Duration, limit int) ([]*models.Link, error)
	rollBillingFunc func(ctx context.Context, id uint, nextBillingAt time.Time) error
	deactivateFunc  func(ctx context.Context, id uint, reason models.DeactivationReason, at time.Time) (bool, error)
	markWarningFunc func(ctx context.Context, id uint, at time.Time) (bool, error)
	listDueFunc     func(ctx context.Context, cutoff time.Time, limit int) ([]*models.Link, error)
	removeFunc      func(ctx context.Context, id uint) error
}

func (r *sweepLinkRepo) ByID(ctx context.Context, id uint) (*models.Link, error)      { return nil, nil }
func (r *sweepLinkRepo) Save(ctx context.Context, entity *models.Link) error          { return nil }
func (r *sweepLinkRepo) SaveBatch(ctx context.Context, entities []*models.Link) error { return nil }
func (r *sweepLinkRepo) ByCode(ctx context.Context, code string) (*models.Link, error) {
	return nil, nil
}
func (r *sweepLinkRepo) ListByCreator(ctx context.Context, creatorPhone string, limit, offset int) ([]*models.Link, error) {
	return nil, nil
}
func (r *sweepLinkRepo) Reserve(ctx context.Context, link *models.Link) (bool, error) {
	return false, nil
}
func (r *sweepLinkRepo) DiscardReservation(ctx context.Context, id uint) error { return nil }
func (r *sweepLinkRepo) Deactivate(ctx context.Context, id uint, reason models.DeactivationReason, at time.Time) (bool, error) {
	return r.deactivateFunc(ctx, id, reason, at)
}
func (r *sweepLinkRepo) Activate(ctx context.Context, id uint, nextBillingAt time.Time) (bool, error) {
	return false, nil
}
func (r *sweepLinkRepo) SetTemporal(ctx context.Context, id uint, phone *string) error { return nil }
func (r *sweepLinkRepo) IncrementClicks(ctx context.Context, id uint, unique bool) error {
	return nil
}
func (r *sweepLinkRepo) ClaimDueForBilling(ctx context.Context, now time.Time, claimTTL time.Duration, limit int) ([]*models.Link, error) {
	return r.claimFunc(ctx, now, claimTTL, limit)
}
func (r *sweepLinkRepo) RollBilling(ctx context.Context, id uint, nextBillingAt time.Time) error {
	return r.rollBillingFunc(ctx, id, nextBillingAt)
}
func (r *sweepLinkRepo) MarkDeleteWarningSent(ctx context.Context, id uint, at time.Time) (bool, error) {
	return r.markWarningFunc(ctx, id, at)
}
func (r *sweepLinkRepo) ListDueForDeletion(ctx context.Context, cutoff time.Time, limit int) ([]*models.Link, error) {
	return r.listDueFunc(ctx, cutoff, limit)
}
func (r *sweepLinkRepo) Remove(ctx context.Context, id uint) error { return r.removeFunc(ctx, id) }

type sweepClickRepo struct {
	deleteByLinkFunc func(ctx context.Context, linkID uint) (int64, error)
}

func (r *sweepClickRepo) ByID(ctx context.Context, id uint) (*models.LinkClick, error) {
	return nil, nil
}
func (r *sweepClickRepo) Save(ctx context.Context, entity *models.LinkClick) error { return nil }
func (r *sweepClickRepo) SaveBatch(ctx context.Context, entities []*models.LinkClick) error {
	return nil
}
func (r *sweepClickRepo) SaveUnique(ctx context.Context, click *models.LinkClick) (bool, error) {
	return false, nil
}
func (r *sweepClickRepo) DeleteByLink(ctx context.Context, linkID uint) (int64, error) {
	if r.deleteByLinkFunc == nil {
		return 0, nil
	}
	return r.deleteByLinkFunc(ctx, linkID)
}

type sweepWallet struct {
	debitFunc func(ctx context.Context, phone string, amount uint64, kind models.TransactionKind, description string) (*models.Transaction, error)
}

func (w *sweepWallet) EnsureAccount(ctx context.Context, phone, name string) (*models.Account, error) {
	return nil, nil
}
func (w *sweepWallet) RegisterEmail(ctx context.Context, phone, email string) error { return nil }
func (w *sweepWallet) Credit(ctx context.Context, phone string, amount uint64, kind models.TransactionKind, description string) (*models.Transaction, error) {
	return nil, nil
}
func (w *sweepWallet) Debit(ctx context.Context, phone string, amount uint64, kind models.TransactionKind, description string) (*models.Transaction, error) {
	return w.debitFunc(ctx, phone, amount, kind, description)
}
func (w *sweepWallet) Balance(ctx context.Context, phone string) (*dto.BalanceResponse, error) {
	return nil, nil
}
func (w *sweepWallet) History(ctx context.Context, phone string, limit, offset int) (*dto.TransactionHistoryResponse, error) {
	return nil, nil
}

type sweepPayments struct{ expired int64 }

func (p *sweepPayments) CreatePending(ctx context.Context, phone string, fiatAmount uint64) (*dto.CreatePaymentResponse, error) {
	return nil, nil
}
func (p *sweepPayments) Settle(ctx context.Context, req *dto.GatewayCallbackRequest) (*dto.TransactionDTO, error) {
	return nil, nil
}
func (p *sweepPayments) ExpirePending(ctx context.Context) (int64, error) { return p.expired, nil }

type recordingNotifier struct {
	messages []string
	phones   []string
}

func (n *recordingNotifier) Queue(phone, message string) {
	n.phones = append(n.phones, phone)
	n.messages = append(n.messages, message)
}

func testBillingConfig() config.BillingConfig {
	return config.BillingConfig{
		DailyFee:       utils.DailyMaintenanceFeeTums,
		BillingCycle:   utils.BillingCycle,
		GraceWindow:    utils.DeletionGraceWindow,
		ClaimTTL:       utils.BillingClaimTTL,
		SweepBatchSize: 100,
	}
}

func newTestScheduler(linkRepo *sweepLinkRepo, clicks *sweepClickRepo, wallet *sweepWallet, payments *sweepPayments, notifier Notifier) *BillingScheduler {
	if clicks == nil {
		clicks = &sweepClickRepo{}
	}
	return &BillingScheduler{
		linkRepo:    linkRepo,
		clickRepo:   clicks,
		walletFlow:  wallet,
		paymentFlow: payments,
		notifier:    notifier,
		billingCfg:  testBillingConfig(),
		logger:      log.New(discard{}, "", 0),
		interval:    time.Hour,
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestSweepBillsPayingOwners(t *testing.T) {
	due := &models.Link{ID: 1, Code: "myshop", CreatorPhone: "6281234567890", IsActive: true,
		NextBillingAt: utils.UTCNow().Add(-10 * time.Minute)}

	claims := 0
	var rolledTo time.Time
	linkRepo := &sweepLinkRepo{
		claimFunc: func(ctx context.Context, now time.Time, claimTTL time.Duration, limit int) ([]*models.Link, error) {
			claims++
			if claims == 1 {
				return []*models.Link{due}, nil
			}
			return nil, nil
		},
		rollBillingFunc: func(ctx context.Context, id uint, nextBillingAt time.Time) error {
			rolledTo = nextBillingAt
			return nil
		},
		listDueFunc: func(ctx context.Context, cutoff time.Time, limit int) ([]*models.Link, error) {
			return nil, nil
		},
	}
	wallet := &sweepWallet{
		debitFunc: func(ctx context.Context, phone string, amount uint64, kind models.TransactionKind, description string) (*models.Transaction, error) {
			assert.Equal(t, "6281234567890", phone)
			assert.Equal(t, uint64(utils.DailyMaintenanceFeeTums), amount)
			assert.Equal(t, models.TransactionKindDailyFee, kind)
			return &models.Transaction{}, nil
		},
	}
	notifier := &recordingNotifier{}
	s := newTestScheduler(linkRepo, nil, wallet, &sweepPayments{}, notifier)

	s.runOnce(context.Background())

	assert.Equal(t, 2, claims, "the sweep loops until a claim batch comes back empty")
	// The anchor was in the past, so the next one is re-based on now.
	assert.WithinDuration(t, utils.UTCNowAdd(utils.BillingCycle), rolledTo, time.Minute)
	assert.Empty(t, notifier.messages)
}

func TestSweepAdvancesFutureAnchorWithoutDrift(t *testing.T) {
	anchor := utils.UTCNow().Add(30 * time.Minute)
	due := &models.Link{ID: 1, Code: "myshop", CreatorPhone: "6281234567890", IsActive: true,
		NextBillingAt: anchor}

	claims := 0
	var rolledTo time.Time
	linkRepo := &sweepLinkRepo{
		claimFunc: func(ctx context.Context, now time.Time, claimTTL time.Duration, limit int) ([]*models.Link, error) {
			claims++
			if claims == 1 {
				return []*models.Link{due}, nil
			}
			return nil, nil
		},
		rollBillingFunc: func(ctx context.Context, id uint, nextBillingAt time.Time) error {
			rolledTo = nextBillingAt
			return nil
		},
		listDueFunc: func(ctx context.Context, cutoff time.Time, limit int) ([]*models.Link, error) {
			return nil, nil
		},
	}
	wallet := &sweepWallet{
		debitFunc: func(ctx context.Context, phone string, amount uint64, kind models.TransactionKind, description string) (*models.Transaction, error) {
			return &models.Transaction{}, nil
		},
	}
	s := newTestScheduler(linkRepo, nil, wallet, &sweepPayments{}, &recordingNotifier{})

	s.runOnce(context.Background())

	assert.Equal(t, anchor.Add(utils.BillingCycle), rolledTo, "a future anchor advances by exactly one cycle")
}

func TestSweepDeactivatesAndWarnsOnce(t *testing.T) {
	due := &models.Link{ID: 1, Code: "myshop", CreatorPhone: "6281234567890", IsActive: true,
		NextBillingAt: utils.UTCNow().Add(-time.Hour)}

	claims := 0
	warnings := 0
	linkRepo := &sweepLinkRepo{
		claimFunc: func(ctx context.Context, now time.Time, claimTTL time.Duration, limit int) ([]*models.Link, error) {
			claims++
			if claims == 1 {
				return []*models.Link{due}, nil
			}
			return nil, nil
		},
		deactivateFunc: func(ctx context.Context, id uint, reason models.DeactivationReason, at time.Time) (bool, error) {
			assert.Equal(t, models.DeactivationReasonBilling, reason)
			return true, nil
		},
		markWarningFunc: func(ctx context.Context, id uint, at time.Time) (bool, error) {
			warnings++
			// The flag flips only on the first call.
			return warnings == 1, nil
		},
		listDueFunc: func(ctx context.Context, cutoff time.Time, limit int) ([]*models.Link, error) {
			return nil, nil
		},
	}
	wallet := &sweepWallet{
		debitFunc: func(ctx context.Context, phone string, amount uint64, kind models.TransactionKind, description string) (*models.Transaction, error) {
			return nil, businessflow.NewBusinessError("INSUFFICIENT_BALANCE", "insufficient balance", businessflow.ErrInsufficientBalance)
		},
	}
	notifier := &recordingNotifier{}
	s := newTestScheduler(linkRepo, nil, wallet, &sweepPayments{}, notifier)

	s.runOnce(context.Background())

	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "revive myshop")
	assert.Equal(t, "6281234567890", notifier.phones[0])
	assert.False(t, due.IsActive)
}

func TestSweepReapsLinksPastGrace(t *testing.T) {
	stale := &models.Link{ID: 7, Code: "gone", CreatorPhone: "6281234567890"}

	var order []string
	linkRepo := &sweepLinkRepo{
		claimFunc: func(ctx context.Context, now time.Time, claimTTL time.Duration, limit int) ([]*models.Link, error) {
			return nil, nil
		},
		listDueFunc: func(ctx context.Context, cutoff time.Time, limit int) ([]*models.Link, error) {
			assert.WithinDuration(t, utils.UTCNow().Add(-utils.DeletionGraceWindow), cutoff, time.Minute)
			return []*models.Link{stale}, nil
		},
		removeFunc: func(ctx context.Context, id uint) error {
			assert.Equal(t, uint(7), id)
			order = append(order, "remove")
			return nil
		},
	}
	clicks := &sweepClickRepo{
		deleteByLinkFunc: func(ctx context.Context, linkID uint) (int64, error) {
			assert.Equal(t, uint(7), linkID)
			order = append(order, "purge clicks")
			return 12, nil
		},
	}
	notifier := &orderedNotifier{order: &order}
	s := newTestScheduler(linkRepo, clicks, &sweepWallet{}, &sweepPayments{}, notifier)

	s.runOnce(context.Background())

	assert.Equal(t, []string{"notify", "purge clicks", "remove"}, order,
		"the final notice goes out first, then the click history, then the link")
}

// orderedNotifier records when the notice was queued relative to other steps.
type orderedNotifier struct{ order *[]string }

func (n *orderedNotifier) Queue(phone, message string) { *n.order = append(*n.order, "notify") }
