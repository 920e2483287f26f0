package repository

import (
	"context"
	"errors"
	"time"

	"github.com/linktum-io/linktum/models"
	"gorm.io/gorm"
)

// CouponRepositoryImpl implements CouponRepository
type CouponRepositoryImpl struct {
	*BaseRepository[models.Coupon, models.CouponFilter]
}

func NewCouponRepository(db *gorm.DB) CouponRepository {
	return &CouponRepositoryImpl{BaseRepository: NewBaseRepository[models.Coupon, models.CouponFilter](db)}
}

func (r *CouponRepositoryImpl) ByCode(ctx context.Context, code string) (*models.Coupon, error) {
	db := r.getDB(ctx)
	var row models.Coupon
	if err := db.Where("code = ?", code).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *CouponRepositoryImpl) applyFilter(db *gorm.DB, f models.CouponFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.Code != nil {
		db = db.Where("code = ?", *f.Code)
	}
	if f.IsValid != nil {
		db = db.Where("is_valid = ?", *f.IsValid)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *CouponRepositoryImpl) List(ctx context.Context, filter models.CouponFilter, limit, offset int) ([]*models.Coupon, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Coupon{}), filter).Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Coupon
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Redeem performs the whole redemption guard set in one conditional update
// so two concurrent redemptions of the same code cannot both pass.
func (r *CouponRepositoryImpl) Redeem(ctx context.Context, code, phone string) (bool, error) {
	db := r.getDB(ctx)
	res := db.Exec(
		`UPDATE coupons
		 SET used_count = used_count + 1, redeemed_by = array_append(redeemed_by, ?), updated_at = ?
		 WHERE code = ? AND is_valid AND deleted_at IS NULL
		   AND (expires_at IS NULL OR expires_at > ?)
		   AND (max_uses = 0 OR used_count < max_uses)
		   AND NOT (? = ANY(redeemed_by))`,
		phone, time.Now().UTC(), code, time.Now().UTC(), phone,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *CouponRepositoryImpl) Invalidate(ctx context.Context, code string) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.Coupon{}).
		Where("code = ? AND is_valid", code).
		Updates(map[string]any{"is_valid": false, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
