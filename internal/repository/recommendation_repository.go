package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ghar-khoj-ml-go/internal/model"
)

// 用户推荐列表的读缓存有效期。生成通道每半小时才会刷新一次，短缓存足够。
const recommendationCacheTTL = 5 * time.Minute

// RecommendationRepository 定义了对 ml_recommendations 表的数据操作接口。
type RecommendationRepository interface {
	Upsert(ctx context.Context, rec *model.Recommendation) error
	FindByUser(ctx context.Context, userID uint, limit int, recType string) ([]*model.Recommendation, error)
	MarkClicked(ctx context.Context, recID uint) error
	MarkDismissed(ctx context.Context, recID uint) error
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
	InvalidateUserCache(ctx context.Context, userID uint)
}

type recommendationRepository struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewRecommendationRepository 创建一个新的 RecommendationRepository 实例。
func NewRecommendationRepository(db *gorm.DB, rdb *redis.Client) RecommendationRepository {
	return &recommendationRepository{db: db, rdb: rdb}
}

// Upsert 写入一条推荐记录。(user_id, listing_id, rec_type) 冲突时刷新分数、
// 解释与更新时间，保留点击/忽略状态，避免重复生成导致的行累积。
func (r *recommendationRepository) Upsert(ctx context.Context, rec *model.Recommendation) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "user_id"}, {Name: "listing_id"}, {Name: "rec_type"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"confidence_score", "similarity_score", "matching_features",
				"explanation", "updated_at",
			}),
		}).
		Create(rec).Error
}

// FindByUser 返回用户未被忽略的推荐，按置信度降序。
// recType 为空时返回全部类型。结果在 Redis 中短期缓存。
func (r *recommendationRepository) FindByUser(ctx context.Context, userID uint, limit int, recType string) ([]*model.Recommendation, error) {
	cacheKey := r.cacheKey(userID, limit, recType)
	if r.rdb != nil {
		if cached, err := r.rdb.Get(ctx, cacheKey).Result(); err == nil {
			var recs []*model.Recommendation
			if err := json.Unmarshal([]byte(cached), &recs); err == nil {
				return recs, nil
			}
		}
	}

	query := r.db.WithContext(ctx).
		Where("user_id = ? AND dismissed = ?", userID, false)
	if recType != "" {
		query = query.Where("rec_type = ?", recType)
	}
	var recs []*model.Recommendation
	err := query.Order("confidence_score DESC").Limit(limit).Find(&recs).Error
	if err != nil {
		return nil, err
	}

	if r.rdb != nil {
		if data, err := json.Marshal(recs); err == nil {
			r.rdb.Set(ctx, cacheKey, data, recommendationCacheTTL)
		}
	}
	return recs, nil
}

// MarkClicked 记录一次推荐点击。
func (r *recommendationRepository) MarkClicked(ctx context.Context, recID uint) error {
	result := r.db.WithContext(ctx).
		Model(&model.Recommendation{}).
		Where("id = ?", recID).
		Update("clicked", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkDismissed 把推荐标记为已忽略，之后不再出现在读取结果中。
func (r *recommendationRepository) MarkDismissed(ctx context.Context, recID uint) error {
	result := r.db.WithContext(ctx).
		Model(&model.Recommendation{}).
		Where("id = ?", recID).
		Update("dismissed", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteOlderThan 清理超过保留期的推荐，返回删除行数。
// 以 updated_at 为准：重复生成会刷新时间戳，活跃的推荐不会被误删。
func (r *recommendationRepository) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	result := r.db.WithContext(ctx).
		Where("updated_at < ?", cutoff).
		Delete(&model.Recommendation{})
	return result.RowsAffected, result.Error
}

// InvalidateUserCache 在新一轮生成后清除该用户的推荐读缓存。
func (r *recommendationRepository) InvalidateUserCache(ctx context.Context, userID uint) {
	if r.rdb == nil {
		return
	}
	pattern := fmt.Sprintf("ml:recs:%d:*", userID)
	keys, err := r.rdb.Keys(ctx, pattern).Result()
	if err != nil || len(keys) == 0 {
		return
	}
	r.rdb.Del(ctx, keys...)
}

func (r *recommendationRepository) cacheKey(userID uint, limit int, recType string) string {
	if recType == "" {
		recType = "all"
	}
	return fmt.Sprintf("ml:recs:%d:%s:%d", userID, recType, limit)
}
