// Package repository 封装了所有数据库访问逻辑。
package repository

import (
	"context"

	"gorm.io/gorm"

	"ghar-khoj-ml-go/internal/model"
)

// ListingRepository 定义了对 listings 表的只读数据操作接口。
// 房源由房源管理模块写入，推荐核心只读取。
type ListingRepository interface {
	FindActive(ctx context.Context) ([]*model.Listing, error)
	FindByIDs(ctx context.Context, ids []uint) ([]*model.Listing, error)
	FindActiveByIDs(ctx context.Context, ids []uint, limit int) ([]*model.Listing, error)
}

type listingRepository struct {
	db *gorm.DB
}

// NewListingRepository 创建一个新的 ListingRepository 实例。
func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db}
}

// FindActive 返回全部在租房源，按创建时间倒序，作为一次训练的语料快照。
func (r *listingRepository) FindActive(ctx context.Context) ([]*model.Listing, error) {
	var listings []*model.Listing
	err := r.db.WithContext(ctx).
		Where("status = ?", "active").
		Order("created_at DESC").
		Find(&listings).Error
	return listings, err
}

// FindByIDs 按 ID 批量查询房源。
func (r *listingRepository) FindByIDs(ctx context.Context, ids []uint) ([]*model.Listing, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var listings []*model.Listing
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&listings).Error
	return listings, err
}

// FindActiveByIDs 按 ID 查询在租房源，最新发布的在前，用于冷启动取簇成员。
func (r *listingRepository) FindActiveByIDs(ctx context.Context, ids []uint, limit int) ([]*model.Listing, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var listings []*model.Listing
	query := r.db.WithContext(ctx).
		Where("id IN ? AND status = ?", ids, "active").
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&listings).Error
	return listings, err
}
