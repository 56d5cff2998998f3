package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ghar-khoj-ml-go/internal/model"
)

// ProfileRepository 定义了对 user_preference_profiles 表的数据操作接口。
type ProfileRepository interface {
	Upsert(ctx context.Context, profile *model.UserPreferenceProfile) error
	FindByUserID(ctx context.Context, userID uint) (*model.UserPreferenceProfile, error)
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository 创建一个新的 ProfileRepository 实例。
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

// Upsert 整体覆盖写入用户偏好档案。
func (r *profileRepository) Upsert(ctx context.Context, profile *model.UserPreferenceProfile) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(profile).Error
}

// FindByUserID 查询用户偏好档案，不存在时返回 (nil, nil)。
func (r *profileRepository) FindByUserID(ctx context.Context, userID uint) (*model.UserPreferenceProfile, error) {
	var profile model.UserPreferenceProfile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
