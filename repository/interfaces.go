package repository

import (
	"context"
	"time"

	"github.com/linktum-io/linktum/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
}

// AccountRepository defines account persistence plus the atomic balance
// operations of the ledger. Conditional operations report (false, nil)
// when the guard condition did not hold.
type AccountRepository interface {
	Repository[models.Account, models.AccountFilter]
	ByPhone(ctx context.Context, phone string) (*models.Account, error)

	// CreateIfAbsent soft-registers a phone. Returns the account and
	// whether this call created it.
	CreateIfAbsent(ctx context.Context, phone string) (*models.Account, bool, error)

	// SetEmail records the contact email once; false when already set.
	SetEmail(ctx context.Context, phone, email string) (bool, error)
	SetName(ctx context.Context, phone, name string) error

	// Credit atomically increments the balance and appends the ledger entry.
	Credit(ctx context.Context, accountID uint, amount uint64, entry *models.Transaction) error

	// Debit atomically decrements the balance, guarded on balance >= amount,
	// and appends the ledger entry. False means insufficient balance.
	Debit(ctx context.Context, accountID uint, amount uint64, entry *models.Transaction) (bool, error)

	// DebitUpTo decrements by at most amount, clamping the balance at zero,
	// and returns the amount actually debited.
	DebitUpTo(ctx context.Context, accountID uint, amount uint64, entry *models.Transaction) (uint64, error)

	// SettlePurchase completes a pending purchase entry and credits its
	// amount. The pending->completed transition is the idempotency gate:
	// false means the entry was already settled.
	SettlePurchase(ctx context.Context, accountID, transactionID uint, amount uint64) (bool, error)
}

// TransactionRepository defines operations on the append-only ledger log
type TransactionRepository interface {
	Repository[models.Transaction, models.TransactionFilter]
	ByReference(ctx context.Context, reference string) (*models.Transaction, error)
	ListByAccount(ctx context.Context, accountID uint, limit, offset int) ([]*models.Transaction, error)

	// TransitionStatus moves a transaction between statuses in a single
	// conditional update; false means the row was not in `from`.
	TransitionStatus(ctx context.Context, id uint, from, to models.TransactionStatus, completedAt *time.Time) (bool, error)

	// ExpirePending marks pending transactions past their settlement window.
	ExpirePending(ctx context.Context, now time.Time) (int64, error)
}

// CouponRepository defines coupon persistence and atomic redemption
type CouponRepository interface {
	Repository[models.Coupon, models.CouponFilter]
	ByCode(ctx context.Context, code string) (*models.Coupon, error)
	List(ctx context.Context, filter models.CouponFilter, limit, offset int) ([]*models.Coupon, error)

	// Redeem registers phone as a redeemer in one conditional update gated
	// on validity, expiry, the use cap and no prior redemption by phone.
	// False means one of the guards failed.
	Redeem(ctx context.Context, code, phone string) (bool, error)

	Invalidate(ctx context.Context, code string) (bool, error)
}

// LinkRepository defines link persistence, code reservation and billing claims
type LinkRepository interface {
	Repository[models.Link, models.LinkFilter]
	ByCode(ctx context.Context, code string) (*models.Link, error)
	ListByCreator(ctx context.Context, creatorPhone string, limit, offset int) ([]*models.Link, error)

	// Reserve inserts the link, relying on the unique code constraint.
	// False means the code is taken.
	Reserve(ctx context.Context, link *models.Link) (bool, error)

	// DiscardReservation removes a just-reserved link whose payment failed.
	DiscardReservation(ctx context.Context, id uint) error

	Deactivate(ctx context.Context, id uint, reason models.DeactivationReason, at time.Time) (bool, error)
	Activate(ctx context.Context, id uint, nextBillingAt time.Time) (bool, error)
	SetTemporal(ctx context.Context, id uint, phone *string) error
	IncrementClicks(ctx context.Context, id uint, unique bool) error

	// ClaimDueForBilling claims up to limit links due for the daily fee,
	// skipping rows claimed by another worker within the claim TTL.
	ClaimDueForBilling(ctx context.Context, now time.Time, claimTTL time.Duration, limit int) ([]*models.Link, error)

	// RollBilling advances the billing anchor and releases the claim.
	RollBilling(ctx context.Context, id uint, nextBillingAt time.Time) error

	// MarkDeleteWarningSent flips the warning flag; false when already sent.
	MarkDeleteWarningSent(ctx context.Context, id uint, at time.Time) (bool, error)

	// ListDueForDeletion returns deactivated links, whatever the reason,
	// whose grace window lapsed before cutoff.
	ListDueForDeletion(ctx context.Context, cutoff time.Time, limit int) ([]*models.Link, error)

	// Remove soft-deletes a link at the end of its grace window.
	Remove(ctx context.Context, id uint) error
}

// LinkClickRepository defines click fingerprint persistence
type LinkClickRepository interface {
	Repository[models.LinkClick, models.LinkClickFilter]

	// SaveUnique inserts the click unless the fingerprint already exists
	// for the link. False means a repeat visitor.
	SaveUnique(ctx context.Context, click *models.LinkClick) (bool, error)

	// DeleteByLink purges the click history of a reaped link in bulk.
	DeleteByLink(ctx context.Context, linkID uint) (int64, error)
}

// AdminRepository defines operator account persistence
type AdminRepository interface {
	Repository[models.Admin, models.AdminFilter]
	ByUsername(ctx context.Context, username string) (*models.Admin, error)
	UpdateLastLogin(ctx context.Context, id uint, at time.Time) error
}
