package repository

import (
	"context"
	"errors"
	"time"

	"github.com/linktum-io/linktum/models"
	"gorm.io/gorm"
)

// TransactionRepositoryImpl implements TransactionRepository interface
type TransactionRepositoryImpl struct {
	*BaseRepository[models.Transaction, models.TransactionFilter]
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &TransactionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Transaction, models.TransactionFilter](db),
	}
}

func (r *TransactionRepositoryImpl) ByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	db := r.getDB(ctx)
	var row models.Transaction
	if err := db.Where("reference = ?", reference).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *TransactionRepositoryImpl) ListByAccount(ctx context.Context, accountID uint, limit, offset int) ([]*models.Transaction, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Transaction{}).
		Where("account_id = ?", accountID).
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Transaction
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *TransactionRepositoryImpl) TransitionStatus(ctx context.Context, id uint, from, to models.TransactionStatus, completedAt *time.Time) (bool, error) {
	db := r.getDB(ctx)
	updates := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	if completedAt != nil {
		updates["completed_at"] = *completedAt
	}
	res := db.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *TransactionRepositoryImpl) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.Transaction{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", models.TransactionStatusPending, now).
		Updates(map[string]any{
			"status":     models.TransactionStatusExpired,
			"updated_at": now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
