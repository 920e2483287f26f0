package businessflow

import (
	"context"
	"log"
	"time"

	"github.com/linktum-io/linktum/config"
	"github.com/linktum-io/linktum/models"
	"github.com/linktum-io/linktum/utils"
)

// Function-field mocks for the repository interfaces. A nil field means the
// test does not expect that call; invoking it fails loudly via nil deref.

type mockAccountRepo struct {
	byIDFunc           func(ctx context.Context, id uint) (*models.Account, error)
	byPhoneFunc        func(ctx context.Context, phone string) (*models.Account, error)
	createIfAbsentFunc func(ctx context.Context, phone string) (*models.Account, bool, error)
	setEmailFunc       func(ctx context.Context, phone, email string) (bool, error)
	setNameFunc        func(ctx context.Context, phone, name string) error
	creditFunc         func(ctx context.Context, accountID uint, amount uint64, entry *models.Transaction) error
	debitFunc          func(ctx context.Context, accountID uint, amount uint64, entry *models.Transaction) (bool, error)
	debitUpToFunc      func(ctx context.Context, accountID uint, amount uint64, entry *models.Transaction) (uint64, error)
	settlePurchaseFunc func(ctx context.Context, accountID, transactionID uint, amount uint64) (bool, error)
}

func (m *mockAccountRepo) ByID(ctx context.Context, id uint) (*models.Account, error) {
	return m.byIDFunc(ctx, id)
}
func (m *mockAccountRepo) Save(ctx context.Context, entity *models.Account) error { return nil }
func (m *mockAccountRepo) SaveBatch(ctx context.Context, entities []*models.Account) error {
	return nil
}
func (m *mockAccountRepo) ByPhone(ctx context.Context, phone string) (*models.Account, error) {
	return m.byPhoneFunc(ctx, phone)
}
func (m *mockAccountRepo) CreateIfAbsent(ctx context.Context, phone string) (*models.Account, bool, error) {
	return m.createIfAbsentFunc(ctx, phone)
}
func (m *mockAccountRepo) SetEmail(ctx context.Context, phone, email string) (bool, error) {
	return m.setEmailFunc(ctx, phone, email)
}
func (m *mockAccountRepo) SetName(ctx context.Context, phone, name string) error {
	return m.setNameFunc(ctx, phone, name)
}
func (m *mockAccountRepo) Credit(ctx context.Context, accountID uint, amount uint64, entry *models.Transaction) error {
	return m.creditFunc(ctx, accountID, amount, entry)
}
func (m *mockAccountRepo) Debit(ctx context.Context, accountID uint, amount uint64, entry *models.Transaction) (bool, error) {
	return m.debitFunc(ctx, accountID, amount, entry)
}
func (m *mockAccountRepo) DebitUpTo(ctx context.Context, accountID uint, amount uint64, entry *models.Transaction) (uint64, error) {
	return m.debitUpToFunc(ctx, accountID, amount, entry)
}
func (m *mockAccountRepo) SettlePurchase(ctx context.Context, accountID, transactionID uint, amount uint64) (bool, error) {
	return m.settlePurchaseFunc(ctx, accountID, transactionID, amount)
}

type mockTransactionRepo struct {
	saveFunc             func(ctx context.Context, entity *models.Transaction) error
	byReferenceFunc      func(ctx context.Context, reference string) (*models.Transaction, error)
	listByAccountFunc    func(ctx context.Context, accountID uint, limit, offset int) ([]*models.Transaction, error)
	transitionStatusFunc func(ctx context.Context, id uint, from, to models.TransactionStatus, completedAt *time.Time) (bool, error)
	expirePendingFunc    func(ctx context.Context, now time.Time) (int64, error)
}

func (m *mockTransactionRepo) ByID(ctx context.Context, id uint) (*models.Transaction, error) {
	return nil, nil
}
func (m *mockTransactionRepo) Save(ctx context.Context, entity *models.Transaction) error {
	return m.saveFunc(ctx, entity)
}
func (m *mockTransactionRepo) SaveBatch(ctx context.Context, entities []*models.Transaction) error {
	return nil
}
func (m *mockTransactionRepo) ByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	return m.byReferenceFunc(ctx, reference)
}
func (m *mockTransactionRepo) ListByAccount(ctx context.Context, accountID uint, limit, offset int) ([]*models.Transaction, error) {
	return m.listByAccountFunc(ctx, accountID, limit, offset)
}
func (m *mockTransactionRepo) TransitionStatus(ctx context.Context, id uint, from, to models.TransactionStatus, completedAt *time.Time) (bool, error) {
	return m.transitionStatusFunc(ctx, id, from, to, completedAt)
}
func (m *mockTransactionRepo) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	return m.expirePendingFunc(ctx, now)
}

type mockCouponRepo struct {
	saveFunc       func(ctx context.Context, entity *models.Coupon) error
	byCodeFunc     func(ctx context.Context, code string) (*models.Coupon, error)
	listFunc       func(ctx context.Context, filter models.CouponFilter, limit, offset int) ([]*models.Coupon, error)
	redeemFunc     func(ctx context.Context, code, phone string) (bool, error)
	invalidateFunc func(ctx context.Context, code string) (bool, error)
}

func (m *mockCouponRepo) ByID(ctx context.Context, id uint) (*models.Coupon, error) { return nil, nil }
func (m *mockCouponRepo) Save(ctx context.Context, entity *models.Coupon) error {
	return m.saveFunc(ctx, entity)
}
func (m *mockCouponRepo) SaveBatch(ctx context.Context, entities []*models.Coupon) error { return nil }
func (m *mockCouponRepo) ByCode(ctx context.Context, code string) (*models.Coupon, error) {
	return m.byCodeFunc(ctx, code)
}
func (m *mockCouponRepo) List(ctx context.Context, filter models.CouponFilter, limit, offset int) ([]*models.Coupon, error) {
	return m.listFunc(ctx, filter, limit, offset)
}
func (m *mockCouponRepo) Redeem(ctx context.Context, code, phone string) (bool, error) {
	return m.redeemFunc(ctx, code, phone)
}
func (m *mockCouponRepo) Invalidate(ctx context.Context, code string) (bool, error) {
	return m.invalidateFunc(ctx, code)
}

type mockLinkRepo struct {
	byCodeFunc                func(ctx context.Context, code string) (*models.Link, error)
	listByCreatorFunc         func(ctx context.Context, creatorPhone string, limit, offset int) ([]*models.Link, error)
	reserveFunc               func(ctx context.Context, link *models.Link) (bool, error)
	discardReservationFunc    func(ctx context.Context, id uint) error
	deactivateFunc            func(ctx context.Context, id uint, reason models.DeactivationReason, at time.Time) (bool, error)
	activateFunc              func(ctx context.Context, id uint, nextBillingAt time.Time) (bool, error)
	setTemporalFunc           func(ctx context.Context, id uint, phone *string) error
	incrementClicksFunc       func(ctx context.Context, id uint, unique bool) error
	claimDueForBillingFunc    func(ctx context.Context, now time.Time, claimTTL time.Duration, limit int) ([]*models.Link, error)
	rollBillingFunc           func(ctx context.Context, id uint, nextBillingAt time.Time) error
	markDeleteWarningSentFunc func(ctx context.Context, id uint, at time.Time) (bool, error)
	listDueForDeletionFunc    func(ctx context.Context, cutoff time.Time, limit int) ([]*models.Link, error)
	removeFunc                func(ctx context.Context, id uint) error
}

func (m *mockLinkRepo) ByID(ctx context.Context, id uint) (*models.Link, error)  { return nil, nil }
func (m *mockLinkRepo) Save(ctx context.Context, entity *models.Link) error      { return nil }
func (m *mockLinkRepo) SaveBatch(ctx context.Context, entities []*models.Link) error { return nil }
func (m *mockLinkRepo) ByCode(ctx context.Context, code string) (*models.Link, error) {
	return m.byCodeFunc(ctx, code)
}
func (m *mockLinkRepo) ListByCreator(ctx context.Context, creatorPhone string, limit, offset int) ([]*models.Link, error) {
	return m.listByCreatorFunc(ctx, creatorPhone, limit, offset)
}
func (m *mockLinkRepo) Reserve(ctx context.Context, link *models.Link) (bool, error) {
	return m.reserveFunc(ctx, link)
}
func (m *mockLinkRepo) DiscardReservation(ctx context.Context, id uint) error {
	return m.discardReservationFunc(ctx, id)
}
func (m *mockLinkRepo) Deactivate(ctx context.Context, id uint, reason models.DeactivationReason, at time.Time) (bool, error) {
	return m.deactivateFunc(ctx, id, reason, at)
}
func (m *mockLinkRepo) Activate(ctx context.Context, id uint, nextBillingAt time.Time) (bool, error) {
	return m.activateFunc(ctx, id, nextBillingAt)
}
func (m *mockLinkRepo) SetTemporal(ctx context.Context, id uint, phone *string) error {
	return m.setTemporalFunc(ctx, id, phone)
}
func (m *mockLinkRepo) IncrementClicks(ctx context.Context, id uint, unique bool) error {
	return m.incrementClicksFunc(ctx, id, unique)
}
func (m *mockLinkRepo) ClaimDueForBilling(ctx context.Context, now time.Time, claimTTL time.Duration, limit int) ([]*models.Link, error) {
	return m.claimDueForBillingFunc(ctx, now, claimTTL, limit)
}
func (m *mockLinkRepo) RollBilling(ctx context.Context, id uint, nextBillingAt time.Time) error {
	return m.rollBillingFunc(ctx, id, nextBillingAt)
}
func (m *mockLinkRepo) MarkDeleteWarningSent(ctx context.Context, id uint, at time.Time) (bool, error) {
	return m.markDeleteWarningSentFunc(ctx, id, at)
}
func (m *mockLinkRepo) ListDueForDeletion(ctx context.Context, cutoff time.Time, limit int) ([]*models.Link, error) {
	return m.listDueForDeletionFunc(ctx, cutoff, limit)
}
func (m *mockLinkRepo) Remove(ctx context.Context, id uint) error {
	return m.removeFunc(ctx, id)
}

type mockClickRepo struct {
	saveUniqueFunc   func(ctx context.Context, click *models.LinkClick) (bool, error)
	deleteByLinkFunc func(ctx context.Context, linkID uint) (int64, error)
}

func (m *mockClickRepo) ByID(ctx context.Context, id uint) (*models.LinkClick, error) {
	return nil, nil
}
func (m *mockClickRepo) Save(ctx context.Context, entity *models.LinkClick) error       { return nil }
func (m *mockClickRepo) SaveBatch(ctx context.Context, entities []*models.LinkClick) error { return nil }
func (m *mockClickRepo) SaveUnique(ctx context.Context, click *models.LinkClick) (bool, error) {
	return m.saveUniqueFunc(ctx, click)
}
func (m *mockClickRepo) DeleteByLink(ctx context.Context, linkID uint) (int64, error) {
	return m.deleteByLinkFunc(ctx, linkID)
}

// allowAllLimiter never throttles.
type allowAllLimiter struct{}

func (allowAllLimiter) Allow(ctx context.Context, phone, action string) (bool, time.Duration, error) {
	return true, 0, nil
}

// denyAllLimiter always throttles with a fixed retry-after.
type denyAllLimiter struct{ retryAfter time.Duration }

func (l denyAllLimiter) Allow(ctx context.Context, phone, action string) (bool, time.Duration, error) {
	return false, l.retryAfter, nil
}

type mockGateway struct {
	createCheckoutFunc func(ctx context.Context, req CheckoutRequest) (string, error)
}

func (m *mockGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error) {
	return m.createCheckoutFunc(ctx, req)
}

func testConfig() *config.ProductionConfig {
	cfg := &config.ProductionConfig{}
	cfg.Server.PublicBaseURL = "https://lnk.example"
	cfg.Security.FingerprintSalt = "test-salt"
	cfg.Gateway.Currency = utils.FiatCurrency
	cfg.Billing.SignupBonus = utils.SignupBonusTums
	cfg.Billing.LinkCreationCost = utils.LinkCreationCostTums
	cfg.Billing.DailyFee = utils.DailyMaintenanceFeeTums
	cfg.Billing.TemporalFee = utils.TemporalRedirectFeeTums
	cfg.Billing.TumsPerFiatUnit = utils.TumsPerFiatUnit
	cfg.Billing.BillingCycle = utils.BillingCycle
	cfg.Billing.GraceWindow = utils.DeletionGraceWindow
	cfg.Billing.PendingPaymentTTL = utils.PendingPaymentTTL
	cfg.Billing.ClaimTTL = utils.BillingClaimTTL
	return cfg
}

func discardLogger() *log.Logger {
	return log.New(nullWriter{}, "", 0)
}

type nullWriter struct{}

func (nullWriter) Write(p []byte) (int, error) { return len(p), nil }
