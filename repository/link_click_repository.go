package repository

import (
	"context"

	"github.com/linktum-io/linktum/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LinkClickRepositoryImpl implements LinkClickRepository
type LinkClickRepositoryImpl struct {
	*BaseRepository[models.LinkClick, models.LinkClickFilter]
}

func NewLinkClickRepository(db *gorm.DB) LinkClickRepository {
	return &LinkClickRepositoryImpl{BaseRepository: NewBaseRepository[models.LinkClick, models.LinkClickFilter](db)}
}

// SaveUnique relies on the (link_id, fingerprint_hash) constraint: the
// first visitor insert lands, repeats are dropped by ON CONFLICT.
func (r *LinkClickRepositoryImpl) SaveUnique(ctx context.Context, click *models.LinkClick) (bool, error) {
	db := r.getDB(ctx)
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "link_id"}, {Name: "fingerprint_hash"}},
		DoNothing: true,
	}).Create(click)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteByLink removes every click row of a link. Called when the grace
// reaper deletes the link itself.
func (r *LinkClickRepositoryImpl) DeleteByLink(ctx context.Context, linkID uint) (int64, error) {
	db := r.getDB(ctx)
	res := db.Where("link_id = ?", linkID).Delete(&models.LinkClick{})
	return res.RowsAffected, res.Error
}
