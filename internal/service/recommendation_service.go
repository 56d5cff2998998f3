package service

import (
	"context"
	"fmt"
	"math"

	"ghar-khoj-ml-go/internal/config"
	"ghar-khoj-ml-go/internal/ml"
	"ghar-khoj-ml-go/internal/ml/kmeans"
	"ghar-khoj-ml-go/internal/model"
	"ghar-khoj-ml-go/internal/repository"
	"ghar-khoj-ml-go/pkg/log"
)

// 热门度打分参数：浏览 0.5 分，收藏 1.5 分，置信度按 100 分封顶折算，
// 上限 0.95，保证热门推荐永远排在强个性化匹配之后。
const (
	trendingViewWeight      = 0.5
	trendingFavouriteWeight = 1.5
	trendingScoreDivisor    = 100
	trendingConfidenceCap   = 0.95
)

// 交互活跃度的统计窗口（天）。
const interactionWindowDays = 30

// GenerateResult 是一次推荐生成的汇总结果。
type GenerateResult struct {
	UserID    uint   `json:"userId"`
	RecType   string `json:"recType"`
	Generated int    `json:"generated"`
}

// RecommendationService 是推荐编排层，根据用户活跃度在内容推荐与冷启动之间路由。
type RecommendationService interface {
	GenerateRecommendations(ctx context.Context, userID uint) (*GenerateResult, error)
	GetRecommendationsForUser(ctx context.Context, userID uint, limit int, recType string) ([]*model.Recommendation, error)
	UpdateTrending(ctx context.Context) error
	TrackClick(ctx context.Context, recID uint) error
	TrackDismiss(ctx context.Context, recID uint) error
	PruneExpired(ctx context.Context) (int64, error)
}

type recommendationService struct {
	training        TrainingService
	profiles        ProfileService
	listingRepo     repository.ListingRepository
	interactionRepo repository.InteractionRepository
	recRepo         repository.RecommendationRepository
	profileRepo     repository.ProfileRepository
	recCfg          config.RecommendConfig
}

// NewRecommendationService 创建一个新的 RecommendationService 实例。
func NewRecommendationService(
	training TrainingService,
	profiles ProfileService,
	listingRepo repository.ListingRepository,
	interactionRepo repository.InteractionRepository,
	recRepo repository.RecommendationRepository,
	profileRepo repository.ProfileRepository,
	recCfg config.RecommendConfig,
) RecommendationService {
	return &recommendationService{
		training:        training,
		profiles:        profiles,
		listingRepo:     listingRepo,
		interactionRepo: interactionRepo,
		recRepo:         recRepo,
		profileRepo:     profileRepo,
		recCfg:          recCfg,
	}
}

// GenerateRecommendations 为单个用户生成一轮推荐。
// 近期交互达到阈值的用户走内容推荐，否则走地理冷启动；
// 两条路径都无法产出时回退到热门榜。
func (s *recommendationService) GenerateRecommendations(ctx context.Context, userID uint) (*GenerateResult, error) {
	snap := s.training.Current()
	if snap == nil {
		return nil, ml.ErrModelNotTrained
	}

	count, err := s.interactionRepo.CountRecentInteractions(ctx, userID, interactionWindowDays)
	if err != nil {
		return nil, fmt.Errorf("统计用户交互失败: %w", err)
	}

	if count >= int64(s.recCfg.MinInteractions) {
		result, err := s.generateContentBased(ctx, userID, snap)
		if err != nil {
			return nil, err
		}
		if result.Generated > 0 {
			return result, nil
		}
		log.Infof("[RecommendationService] 用户 %d 内容推荐无产出，回退冷启动", userID)
	}

	result, err := s.generateColdStart(ctx, userID, snap)
	if err != nil || result.Generated > 0 {
		return result, err
	}

	log.Infof("[RecommendationService] 用户 %d 冷启动无产出，回退热门榜", userID)
	return s.generateTrending(ctx, userID)
}

// generateContentBased 基于用户偏好向量与房源向量的余弦相似度生成推荐。
func (s *recommendationService) generateContentBased(ctx context.Context, userID uint, snap *Snapshot) (*GenerateResult, error) {
	result := &GenerateResult{UserID: userID, RecType: model.RecTypeContentBased}

	userVector, err := s.profiles.BuildUserVector(ctx, userID, snap)
	if err != nil {
		return nil, err
	}
	if len(userVector) == 0 {
		return result, nil
	}

	// 多取一倍候选，过滤已浏览后仍能凑满 topN
	similar := snap.Vectorizer.FindSimilar(userVector, snap.PropertyVectors, s.recCfg.TopN*2)

	viewedIDs, err := s.interactionRepo.ViewedListingIDs(ctx, userID, s.recCfg.ViewHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("读取用户浏览记录失败: %w", err)
	}
	viewed := make(map[uint]struct{}, len(viewedIDs))
	for _, id := range viewedIDs {
		viewed[id] = struct{}{}
	}

	candidates := make([]uint, 0, len(similar))
	scores := make(map[uint]float64, len(similar))
	for _, sim := range similar {
		if sim.Score < s.recCfg.SimilarityThreshold {
			continue
		}
		if _, seen := viewed[sim.ListingID]; seen {
			continue
		}
		candidates = append(candidates, sim.ListingID)
		scores[sim.ListingID] = sim.Score
		if len(candidates) >= s.recCfg.TopN {
			break
		}
	}
	if len(candidates) == 0 {
		return result, nil
	}

	listings, err := s.listingRepo.FindByIDs(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("读取候选房源失败: %w", err)
	}
	listingByID := make(map[uint]*model.Listing, len(listings))
	for _, l := range listings {
		listingByID[l.ID] = l
	}

	for _, id := range candidates {
		l, ok := listingByID[id]
		if !ok {
			continue
		}
		score := scores[id]
		rec := &model.Recommendation{
			UserID:          userID,
			ListingID:       id,
			RecType:         model.RecTypeContentBased,
			ConfidenceScore: score,
			SimilarityScore: score,
			MatchingFeatures: model.FeatureMap{
				"city":       l.City,
				"type":       l.Type,
				"rentAmount": l.RentAmount,
				"bedrooms":   l.Bedrooms,
			},
			Explanation: fmt.Sprintf(
				"%.0f%% match based on your search history and preferences. Located in %s, %d bedrooms, Rs. %.0f/month.",
				score*100, l.City, l.Bedrooms, l.RentAmount,
			),
		}
		// 单条写失败只跳过，不中断整批
		if err := s.recRepo.Upsert(ctx, rec); err != nil {
			log.Error("[RecommendationService] 写入内容推荐失败", err)
			continue
		}
		result.Generated++
	}

	s.recRepo.InvalidateUserCache(ctx, userID)
	log.Infof("[RecommendationService] 用户 %d 内容推荐生成完成: %d 条", userID, result.Generated)
	return result, nil
}

// generateColdStart 基于地理/租金聚类为低交互用户生成推荐。
func (s *recommendationService) generateColdStart(ctx context.Context, userID uint, snap *Snapshot) (*GenerateResult, error) {
	result := &GenerateResult{UserID: userID, RecType: model.RecTypeColdStartGeo}
	if snap.Clusterer == nil || !snap.Clusterer.Trained() {
		return result, nil
	}

	pref, err := s.resolvePreference(ctx, userID)
	if err != nil {
		return nil, err
	}

	assignment, err := snap.Clusterer.Predict(pref)
	if err != nil {
		return nil, err
	}

	listings, err := s.listingRepo.FindActiveByIDs(ctx, assignment.Meta.PropertyIDs, s.recCfg.TopN)
	if err != nil {
		return nil, fmt.Errorf("读取簇成员房源失败: %w", err)
	}

	confidence := clamp01(1 - assignment.Distance)
	for _, l := range listings {
		rec := &model.Recommendation{
			UserID:          userID,
			ListingID:       l.ID,
			RecType:         model.RecTypeColdStartGeo,
			ConfidenceScore: confidence,
			MatchingFeatures: model.FeatureMap{
				"clusterId":   assignment.ClusterID,
				"primaryCity": assignment.Meta.PrimaryCity,
				"avgRent":     assignment.Meta.AvgRent,
			},
			Explanation: fmt.Sprintf(
				"Property in %s matching your location and budget preferences (Avg rent: Rs. %.0f)",
				assignment.Meta.PrimaryCity, assignment.Meta.AvgRent,
			),
		}
		if err := s.recRepo.Upsert(ctx, rec); err != nil {
			log.Error("[RecommendationService] 写入冷启动推荐失败", err)
			continue
		}
		result.Generated++
	}

	s.recRepo.InvalidateUserCache(ctx, userID)
	log.Infof("[RecommendationService] 用户 %d 冷启动推荐生成完成: 簇 %d, %d 条", userID, assignment.ClusterID, result.Generated)
	return result, nil
}

// resolvePreference 收集用户的地理/租金偏好点：优先用已有档案，
// 其次用最近一次搜索，两者都没有时返回空偏好（落到默认坐标和默认预算）。
func (s *recommendationService) resolvePreference(ctx context.Context, userID uint) (kmeans.Preference, error) {
	profile, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return kmeans.Preference{}, fmt.Errorf("读取用户偏好档案失败: %w", err)
	}
	if profile != nil {
		pref := kmeans.Preference{
			MinRent: profile.PreferredMinRent,
			MaxRent: profile.PreferredMaxRent,
		}
		if len(profile.PreferredCities) > 0 {
			pref.City = profile.PreferredCities[0]
		}
		return pref, nil
	}

	searches, err := s.interactionRepo.FindUserSearches(ctx, userID, 1)
	if err != nil {
		return kmeans.Preference{}, fmt.Errorf("读取用户搜索历史失败: %w", err)
	}
	if len(searches) > 0 {
		latest := searches[0]
		return kmeans.Preference{
			City:    latest.City,
			MinRent: latest.MinRent,
			MaxRent: latest.MaxRent,
		}, nil
	}
	return kmeans.Preference{}, nil
}

// generateTrending 用热门榜为用户兜底生成推荐。
func (s *recommendationService) generateTrending(ctx context.Context, userID uint) (*GenerateResult, error) {
	result := &GenerateResult{UserID: userID, RecType: model.RecTypeTrending}

	entries, err := s.interactionRepo.TopTrending(ctx, s.recCfg.TopN)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return result, nil
	}

	ids := make([]uint, 0, len(entries))
	scoreByID := make(map[uint]float64, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ListingID)
		scoreByID[e.ListingID] = e.Score
	}

	listings, err := s.listingRepo.FindActiveByIDs(ctx, ids, s.recCfg.TopN)
	if err != nil {
		return nil, fmt.Errorf("读取热门房源失败: %w", err)
	}

	for _, l := range listings {
		confidence := math.Min(trendingConfidenceCap, scoreByID[l.ID]/trendingScoreDivisor)
		rec := &model.Recommendation{
			UserID:          userID,
			ListingID:       l.ID,
			RecType:         model.RecTypeTrending,
			ConfidenceScore: confidence,
			MatchingFeatures: model.FeatureMap{
				"trendingScore": scoreByID[l.ID],
				"city":          l.City,
			},
			Explanation: fmt.Sprintf("Popular in %s: trending among renters this week.", l.City),
		}
		if err := s.recRepo.Upsert(ctx, rec); err != nil {
			log.Error("[RecommendationService] 写入热门推荐失败", err)
			continue
		}
		result.Generated++
	}

	s.recRepo.InvalidateUserCache(ctx, userID)
	return result, nil
}

// GetRecommendationsForUser 读取用户的推荐列表。
func (s *recommendationService) GetRecommendationsForUser(ctx context.Context, userID uint, limit int, recType string) ([]*model.Recommendation, error) {
	if limit <= 0 || limit > s.recCfg.TopN {
		limit = s.recCfg.TopN
	}
	return s.recRepo.FindByUser(ctx, userID, limit, recType)
}

// UpdateTrending 重算最近 7 天的热门度并重建缓存榜单。
func (s *recommendationService) UpdateTrending(ctx context.Context) error {
	scores, err := s.interactionRepo.AggregateTrendingScores(ctx, 7)
	if err != nil {
		return fmt.Errorf("聚合热门度失败: %w", err)
	}

	entries := make([]repository.TrendingEntry, 0, len(scores))
	for _, sc := range scores {
		raw := float64(sc.Views)*trendingViewWeight + float64(sc.Favourites)*trendingFavouriteWeight
		entries = append(entries, repository.TrendingEntry{ListingID: sc.ListingID, Score: raw})
	}

	if err := s.interactionRepo.UpdateTrendingCache(ctx, entries); err != nil {
		return fmt.Errorf("更新热门榜缓存失败: %w", err)
	}
	log.Infof("[RecommendationService] 热门榜更新完成: %d 条", len(entries))
	return nil
}

// TrackClick 记录推荐点击。
func (s *recommendationService) TrackClick(ctx context.Context, recID uint) error {
	return s.recRepo.MarkClicked(ctx, recID)
}

// TrackDismiss 记录推荐忽略。
func (s *recommendationService) TrackDismiss(ctx context.Context, recID uint) error {
	return s.recRepo.MarkDismissed(ctx, recID)
}

// PruneExpired 清理超过保留期的推荐。
func (s *recommendationService) PruneExpired(ctx context.Context) (int64, error) {
	return s.recRepo.DeleteOlderThan(ctx, s.recCfg.RetentionDays)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
