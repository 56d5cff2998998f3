package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"ghar-khoj-ml-go/internal/model"
)

// MySQL 唯一键冲突的错误码。
const mysqlErrDuplicateEntry = 1062

// 热门榜在 Redis 中的有序集合键。
const trendingCacheKey = "ml:trending:listings"

// ViewedListing 是联表查询出的"浏览事件 + 房源要素"行，供偏好聚合使用。
type ViewedListing struct {
	ListingID  uint    `gorm:"column:listing_id"`
	City       string  `gorm:"column:city"`
	Type       string  `gorm:"column:type"`
	RentAmount float64 `gorm:"column:rent_amount"`
}

// TrendingScore 是一条热门度聚合结果。
type TrendingScore struct {
	ListingID  uint  `gorm:"column:listing_id"`
	Views      int64 `gorm:"column:views"`
	Favourites int64 `gorm:"column:favourites"`
}

// TrendingEntry 是热门榜缓存中的一条记录。
type TrendingEntry struct {
	ListingID uint
	Score     float64
}

// InteractionRepository 定义了对用户交互数据（搜索、浏览、收藏）的数据操作接口。
type InteractionRepository interface {
	CreateSearch(ctx context.Context, search *model.SearchHistory) error
	CreateView(ctx context.Context, view *model.ListingView) error
	CreateFavourite(ctx context.Context, fav *model.Favourite) error

	FindUserSearches(ctx context.Context, userID uint, limit int) ([]*model.SearchHistory, error)
	FindUserViews(ctx context.Context, userID uint, limit int) ([]*ViewedListing, error)
	FindUserFavourites(ctx context.Context, userID uint) ([]*model.Favourite, error)
	ViewedListingIDs(ctx context.Context, userID uint, limit int) ([]uint, error)
	CountRecentInteractions(ctx context.Context, userID uint, days int) (int64, error)
	FindActiveUserIDs(ctx context.Context, days, minInteractions, limit int) ([]uint, error)

	AggregateTrendingScores(ctx context.Context, days int) ([]*TrendingScore, error)
	UpdateTrendingCache(ctx context.Context, entries []TrendingEntry) error
	TopTrending(ctx context.Context, n int) ([]TrendingEntry, error)
}

type interactionRepository struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewInteractionRepository 创建一个新的 InteractionRepository 实例。
func NewInteractionRepository(db *gorm.DB, rdb *redis.Client) InteractionRepository {
	return &interactionRepository{db: db, rdb: rdb}
}

// CreateSearch 写入一条搜索事件。
func (r *interactionRepository) CreateSearch(ctx context.Context, search *model.SearchHistory) error {
	return r.db.WithContext(ctx).Create(search).Error
}

// CreateView 写入一条浏览事件。
func (r *interactionRepository) CreateView(ctx context.Context, view *model.ListingView) error {
	return r.db.WithContext(ctx).Create(view).Error
}

// CreateFavourite 写入一条收藏记录，重复收藏忽略。
func (r *interactionRepository) CreateFavourite(ctx context.Context, fav *model.Favourite) error {
	err := r.db.WithContext(ctx).Create(fav).Error
	if isDuplicateKeyErr(err) {
		return nil
	}
	return err
}

// isDuplicateKeyErr 判断唯一索引冲突。除了 gorm 翻译后的统一错误，
// 还识别驱动原生的 1062，防止未开启 TranslateError 的会话漏判。
func isDuplicateKeyErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry
}

// FindUserSearches 返回用户最近的搜索事件，最新的在前。
func (r *interactionRepository) FindUserSearches(ctx context.Context, userID uint, limit int) ([]*model.SearchHistory, error) {
	var searches []*model.SearchHistory
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&searches).Error
	return searches, err
}

// FindUserViews 返回用户最近浏览的房源及其关键要素，最新的在前。
func (r *interactionRepository) FindUserViews(ctx context.Context, userID uint, limit int) ([]*ViewedListing, error) {
	var views []*ViewedListing
	err := r.db.WithContext(ctx).
		Table("listing_views AS lv").
		Select("lv.listing_id, l.city, l.type, l.rent_amount").
		Joins("JOIN listings l ON l.id = lv.listing_id").
		Where("lv.user_id = ?", userID).
		Order("lv.created_at DESC").
		Limit(limit).
		Scan(&views).Error
	return views, err
}

// FindUserFavourites 返回用户的全部收藏。
func (r *interactionRepository) FindUserFavourites(ctx context.Context, userID uint) ([]*model.Favourite, error) {
	var favs []*model.Favourite
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&favs).Error
	return favs, err
}

// ViewedListingIDs 返回用户最近浏览过的房源 ID 集合（去重由调用方处理）。
func (r *interactionRepository) ViewedListingIDs(ctx context.Context, userID uint, limit int) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&model.ListingView{}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Pluck("listing_id", &ids).Error
	return ids, err
}

// CountRecentInteractions 统计用户最近 N 天的搜索+浏览总次数，用于路径选择。
func (r *interactionRepository) CountRecentInteractions(ctx context.Context, userID uint, days int) (int64, error) {
	since := time.Now().AddDate(0, 0, -days)

	var searchCount int64
	if err := r.db.WithContext(ctx).
		Model(&model.SearchHistory{}).
		Where("user_id = ? AND created_at > ?", userID, since).
		Count(&searchCount).Error; err != nil {
		return 0, err
	}

	var viewCount int64
	if err := r.db.WithContext(ctx).
		Model(&model.ListingView{}).
		Where("user_id = ? AND created_at > ?", userID, since).
		Count(&viewCount).Error; err != nil {
		return 0, err
	}
	return searchCount + viewCount, nil
}

// FindActiveUserIDs 返回最近 N 天内交互次数达到阈值的用户，供调度器批量生成推荐。
func (r *interactionRepository) FindActiveUserIDs(ctx context.Context, days, minInteractions, limit int) ([]uint, error) {
	since := time.Now().AddDate(0, 0, -days)
	var ids []uint
	err := r.db.WithContext(ctx).
		Raw(`SELECT user_id FROM (
			SELECT user_id, COUNT(*) AS cnt FROM (
				SELECT user_id FROM search_history WHERE created_at > ?
				UNION ALL
				SELECT user_id FROM listing_views WHERE created_at > ?
			) AS events
			GROUP BY user_id
			HAVING cnt >= ?
		) AS active ORDER BY user_id LIMIT ?`,
			since, since, minInteractions, limit).
		Scan(&ids).Error
	return ids, err
}

// AggregateTrendingScores 聚合最近 N 天各房源的浏览与收藏次数。
func (r *interactionRepository) AggregateTrendingScores(ctx context.Context, days int) ([]*TrendingScore, error) {
	since := time.Now().AddDate(0, 0, -days)
	var scores []*TrendingScore
	err := r.db.WithContext(ctx).
		Raw(`SELECT lv.listing_id,
			COUNT(lv.id) AS views,
			(SELECT COUNT(*) FROM favourites f
			 WHERE f.listing_id = lv.listing_id AND f.created_at > ?) AS favourites
		FROM listing_views lv
		WHERE lv.created_at > ?
		GROUP BY lv.listing_id`,
			since, since).
		Scan(&scores).Error
	return scores, err
}

// UpdateTrendingCache 用最新的热门度分数整体重建 Redis 有序集合。
func (r *interactionRepository) UpdateTrendingCache(ctx context.Context, entries []TrendingEntry) error {
	if r.rdb == nil {
		return nil
	}
	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, trendingCacheKey)
	if len(entries) > 0 {
		members := make([]*redis.Z, 0, len(entries))
		for _, e := range entries {
			members = append(members, &redis.Z{
				Score:  e.Score,
				Member: strconv.FormatUint(uint64(e.ListingID), 10),
			})
		}
		pipe.ZAdd(ctx, trendingCacheKey, members...)
		pipe.Expire(ctx, trendingCacheKey, 24*time.Hour)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// TopTrending 返回热门榜前 N 条，按分数降序。
func (r *interactionRepository) TopTrending(ctx context.Context, n int) ([]TrendingEntry, error) {
	if r.rdb == nil {
		return nil, nil
	}
	members, err := r.rdb.ZRevRangeWithScores(ctx, trendingCacheKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("读取热门榜缓存失败: %w", err)
	}
	entries := make([]TrendingEntry, 0, len(members))
	for _, m := range members {
		idStr, ok := m.Member.(string)
		if !ok {
			continue
		}
		id, err := strconv.ParseUint(idStr, 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, TrendingEntry{ListingID: uint(id), Score: m.Score})
	}
	return entries, nil
}
