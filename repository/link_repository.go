package repository

import (
	"context"
	"errors"
	"time"

	"github.com/linktum-io/linktum/models"
	"gorm.io/gorm"
)

// LinkRepositoryImpl implements LinkRepository
type LinkRepositoryImpl struct {
	*BaseRepository[models.Link, models.LinkFilter]
}

func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &LinkRepositoryImpl{BaseRepository: NewBaseRepository[models.Link, models.LinkFilter](db)}
}

func (r *LinkRepositoryImpl) ByCode(ctx context.Context, code string) (*models.Link, error) {
	db := r.getDB(ctx)
	var row models.Link
	if err := db.Where("code = ?", code).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *LinkRepositoryImpl) ListByCreator(ctx context.Context, creatorPhone string, limit, offset int) ([]*models.Link, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Link{}).
		Where("creator_phone = ?", creatorPhone).
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Link
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Reserve claims the short code through the unique constraint on insert.
func (r *LinkRepositoryImpl) Reserve(ctx context.Context, link *models.Link) (bool, error) {
	db := r.getDB(ctx)
	if err := db.Create(link).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *LinkRepositoryImpl) DiscardReservation(ctx context.Context, id uint) error {
	db := r.getDB(ctx)
	return db.Unscoped().Delete(&models.Link{}, id).Error
}

func (r *LinkRepositoryImpl) Deactivate(ctx context.Context, id uint, reason models.DeactivationReason, at time.Time) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.Link{}).
		Where("id = ? AND is_active", id).
		Updates(map[string]any{
			"is_active":          false,
			"reason":             reason,
			"deactivated_at":     at,
			"billing_claimed_at": nil,
			"updated_at":         at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *LinkRepositoryImpl) Activate(ctx context.Context, id uint, nextBillingAt time.Time) (bool, error) {
	db := r.getDB(ctx)
	now := time.Now().UTC()
	res := db.Model(&models.Link{}).
		Where("id = ? AND NOT is_active", id).
		Updates(map[string]any{
			"is_active":              true,
			"reason":                 "",
			"deactivated_at":         nil,
			"delete_warning_sent_at": nil,
			"billing_claimed_at":     nil,
			"next_billing_at":        nextBillingAt,
			"updated_at":             now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *LinkRepositoryImpl) SetTemporal(ctx context.Context, id uint, phone *string) error {
	db := r.getDB(ctx)
	return db.Model(&models.Link{}).
		Where("id = ?", id).
		Updates(map[string]any{"temporal_phone": phone, "updated_at": time.Now().UTC()}).Error
}

func (r *LinkRepositoryImpl) IncrementClicks(ctx context.Context, id uint, unique bool) error {
	db := r.getDB(ctx)
	updates := map[string]any{
		"total_clicks": gorm.Expr("total_clicks + 1"),
		"updated_at":   time.Now().UTC(),
	}
	if unique {
		updates["unique_clicks"] = gorm.Expr("unique_clicks + 1")
	}
	return db.Model(&models.Link{}).Where("id = ?", id).Updates(updates).Error
}

// ClaimDueForBilling marks a batch of due links as claimed so concurrent
// sweep workers never bill the same link twice within the claim TTL.
func (r *LinkRepositoryImpl) ClaimDueForBilling(ctx context.Context, now time.Time, claimTTL time.Duration, limit int) ([]*models.Link, error) {
	db := r.getDB(ctx)
	reclaimBefore := now.Add(-claimTTL)
	var rows []*models.Link
	res := db.Raw(
		`UPDATE links SET billing_claimed_at = ?
		 WHERE id IN (
		   SELECT id FROM links
		   WHERE deleted_at IS NULL AND is_active AND next_billing_at <= ?
		     AND (billing_claimed_at IS NULL OR billing_claimed_at <= ?)
		   ORDER BY next_billing_at
		   LIMIT ?
		   FOR UPDATE SKIP LOCKED
		 )
		 RETURNING *`,
		now, now, reclaimBefore, limit,
	).Scan(&rows)
	if res.Error != nil {
		return nil, res.Error
	}
	return rows, nil
}

func (r *LinkRepositoryImpl) RollBilling(ctx context.Context, id uint, nextBillingAt time.Time) error {
	db := r.getDB(ctx)
	return db.Model(&models.Link{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"next_billing_at":    nextBillingAt,
			"billing_claimed_at": nil,
			"updated_at":         time.Now().UTC(),
		}).Error
}

func (r *LinkRepositoryImpl) MarkDeleteWarningSent(ctx context.Context, id uint, at time.Time) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.Link{}).
		Where("id = ? AND delete_warning_sent_at IS NULL", id).
		Updates(map[string]any{"delete_warning_sent_at": at, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *LinkRepositoryImpl) ListDueForDeletion(ctx context.Context, cutoff time.Time, limit int) ([]*models.Link, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Link{}).
		Where("NOT is_active AND deactivated_at <= ?", cutoff).
		Order("deactivated_at")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []*models.Link
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *LinkRepositoryImpl) Remove(ctx context.Context, id uint) error {
	db := r.getDB(ctx)
	return db.Delete(&models.Link{}, id).Error
}
