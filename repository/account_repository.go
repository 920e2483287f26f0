package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linktum-io/linktum/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountRepositoryImpl implements AccountRepository
type AccountRepositoryImpl struct {
	*BaseRepository[models.Account, models.AccountFilter]
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &AccountRepositoryImpl{BaseRepository: NewBaseRepository[models.Account, models.AccountFilter](db)}
}

func (r *AccountRepositoryImpl) ByPhone(ctx context.Context, phone string) (*models.Account, error) {
	db := r.getDB(ctx)
	var row models.Account
	if err := db.Where("phone = ?", phone).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *AccountRepositoryImpl) CreateIfAbsent(ctx context.Context, phone string) (*models.Account, bool, error) {
	db := r.getDB(ctx)
	account := &models.Account{Phone: phone}
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "phone"}},
		DoNothing: true,
	}).Create(account)
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to register account: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return account, true, nil
	}
	existing, err := r.ByPhone(ctx, phone)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("account %s vanished after registration", phone)
	}
	return existing, false, nil
}

func (r *AccountRepositoryImpl) SetEmail(ctx context.Context, phone, email string) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.Account{}).
		Where("phone = ? AND (email IS NULL OR email = '')", phone).
		Updates(map[string]any{"email": email, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *AccountRepositoryImpl) SetName(ctx context.Context, phone, name string) error {
	db := r.getDB(ctx)
	return db.Model(&models.Account{}).
		Where("phone = ?", phone).
		Updates(map[string]any{"name": name, "updated_at": time.Now().UTC()}).Error
}

// Credit increments the balance and appends the ledger entry in one
// transaction. The entry's BalanceAfter is filled from the update.
func (r *AccountRepositoryImpl) Credit(ctx context.Context, accountID uint, amount uint64, entry *models.Transaction) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	var newBalance uint64
	res := db.Raw(
		"UPDATE accounts SET balance = balance + ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL RETURNING balance",
		amount, time.Now().UTC(), accountID,
	).Scan(&newBalance)
	if res.Error != nil {
		err = fmt.Errorf("failed to credit account %d: %w", accountID, res.Error)
		return err
	}
	if res.RowsAffected == 0 {
		err = fmt.Errorf("account %d not found for credit", accountID)
		return err
	}

	entry.AccountID = accountID
	entry.Amount = amount
	entry.Direction = models.TransactionDirectionCredit
	entry.BalanceAfter = newBalance
	if err = db.Create(entry).Error; err != nil {
		err = fmt.Errorf("failed to append credit entry: %w", err)
		return err
	}
	return nil
}

// Debit is guarded on balance >= amount so the balance never goes negative.
func (r *AccountRepositoryImpl) Debit(ctx context.Context, accountID uint, amount uint64, entry *models.Transaction) (ok bool, err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
	}
	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	var newBalance uint64
	res := db.Raw(
		"UPDATE accounts SET balance = balance - ?, updated_at = ? WHERE id = ? AND balance >= ? AND deleted_at IS NULL RETURNING balance",
		amount, time.Now().UTC(), accountID, amount,
	).Scan(&newBalance)
	if res.Error != nil {
		err = fmt.Errorf("failed to debit account %d: %w", accountID, res.Error)
		return false, err
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	entry.AccountID = accountID
	entry.Amount = amount
	entry.Direction = models.TransactionDirectionDebit
	entry.BalanceAfter = newBalance
	if err = db.Create(entry).Error; err != nil {
		err = fmt.Errorf("failed to append debit entry: %w", err)
		return false, err
	}
	return true, nil
}

// DebitUpTo clamps the debit at the current balance and reports the amount
// actually taken. A zero return with nil error means the balance was
// already zero; the ledger entry is still appended for the audit trail.
func (r *AccountRepositoryImpl) DebitUpTo(ctx context.Context, accountID uint, amount uint64, entry *models.Transaction) (debited uint64, err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return 0, err
	}
	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	var row struct {
		Balance uint64
		Prev    uint64
	}
	res := db.Raw(
		`UPDATE accounts a SET balance = a.balance - LEAST(a.balance, ?), updated_at = ?
		 FROM (SELECT id, balance AS prev FROM accounts WHERE id = ? AND deleted_at IS NULL FOR UPDATE) o
		 WHERE a.id = o.id
		 RETURNING a.balance, o.prev`,
		amount, time.Now().UTC(), accountID,
	).Scan(&row)
	if res.Error != nil {
		err = fmt.Errorf("failed to clamp-debit account %d: %w", accountID, res.Error)
		return 0, err
	}
	if res.RowsAffected == 0 {
		err = fmt.Errorf("account %d not found for clamp-debit", accountID)
		return 0, err
	}

	debited = row.Prev - row.Balance
	entry.AccountID = accountID
	entry.Amount = debited
	entry.Direction = models.TransactionDirectionDebit
	entry.BalanceAfter = row.Balance
	if err = db.Create(entry).Error; err != nil {
		err = fmt.Errorf("failed to append clamp-debit entry: %w", err)
		return 0, err
	}
	return debited, nil
}

// SettlePurchase flips the pending purchase entry to completed and applies
// the credit. The conditional transition guards against double settlement.
func (r *AccountRepositoryImpl) SettlePurchase(ctx context.Context, accountID, transactionID uint, amount uint64) (ok bool, err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
	}
	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	now := time.Now().UTC()
	res := db.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", transactionID, models.TransactionStatusPending).
		Updates(map[string]any{
			"status":       models.TransactionStatusCompleted,
			"completed_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		err = fmt.Errorf("failed to settle purchase %d: %w", transactionID, res.Error)
		return false, err
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	var newBalance uint64
	credit := db.Raw(
		"UPDATE accounts SET balance = balance + ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL RETURNING balance",
		amount, now, accountID,
	).Scan(&newBalance)
	if credit.Error != nil {
		err = fmt.Errorf("failed to credit settled purchase: %w", credit.Error)
		return false, err
	}
	if credit.RowsAffected == 0 {
		err = fmt.Errorf("account %d not found for purchase settlement", accountID)
		return false, err
	}

	if err = db.Model(&models.Transaction{}).
		Where("id = ?", transactionID).
		Update("balance_after", newBalance).Error; err != nil {
		err = fmt.Errorf("failed to snapshot settled balance: %w", err)
		return false, err
	}
	return true, nil
}
