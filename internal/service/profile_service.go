package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"ghar-khoj-ml-go/internal/config"
	"ghar-khoj-ml-go/internal/model"
	"ghar-khoj-ml-go/internal/repository"
	"ghar-khoj-ml-go/pkg/log"
)

// 浏览是比搜索更强的偏好信号，聚合时计双倍权重。
const (
	viewSignalWeight   = 2
	searchSignalWeight = 1
)

// 伪房源文档中最多保留的偏好设施数。
const maxProfileAmenities = 5

// ProfileService 把用户的交互历史聚合为偏好档案和偏好向量。
type ProfileService interface {
	BuildUserVector(ctx context.Context, userID uint, snap *Snapshot) ([]float64, error)
}

type profileService struct {
	interactionRepo repository.InteractionRepository
	profileRepo     repository.ProfileRepository
	recCfg          config.RecommendConfig
}

// NewProfileService 创建一个新的 ProfileService 实例。
func NewProfileService(
	interactionRepo repository.InteractionRepository,
	profileRepo repository.ProfileRepository,
	recCfg config.RecommendConfig,
) ProfileService {
	return &profileService{
		interactionRepo: interactionRepo,
		profileRepo:     profileRepo,
		recCfg:          recCfg,
	}
}

// weightedCounter 统计各取值的加权频次，并记录首次出现顺序用于平局。
type weightedCounter struct {
	counts map[string]int
	order  []string
}

func newWeightedCounter() *weightedCounter {
	return &weightedCounter{counts: make(map[string]int)}
}

func (c *weightedCounter) add(value string, weight int) {
	if value == "" {
		return
	}
	if _, seen := c.counts[value]; !seen {
		c.order = append(c.order, value)
	}
	c.counts[value] += weight
}

// top 返回加权频次最高的前 n 个取值，频次相同取先出现者。
func (c *weightedCounter) top(n int) []string {
	ranked := append([]string(nil), c.order...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return c.counts[ranked[i]] > c.counts[ranked[j]]
	})
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// BuildUserVector 聚合用户最近的搜索与浏览历史，更新偏好档案，
// 并用当前模型快照把偏好转换为 TF-IDF 向量。
// 用户没有任何交互记录时返回 (nil, nil)，由调用方走冷启动路径。
func (s *profileService) BuildUserVector(ctx context.Context, userID uint, snap *Snapshot) ([]float64, error) {
	searches, err := s.interactionRepo.FindUserSearches(ctx, userID, s.recCfg.SearchHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("读取用户搜索历史失败: %w", err)
	}
	views, err := s.interactionRepo.FindUserViews(ctx, userID, s.recCfg.ViewHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("读取用户浏览历史失败: %w", err)
	}
	favourites, err := s.interactionRepo.FindUserFavourites(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("读取用户收藏失败: %w", err)
	}

	if len(searches) == 0 && len(views) == 0 && len(favourites) == 0 {
		return nil, nil
	}

	profile, viewRentAvg := s.aggregate(userID, searches, views)
	profile.ModelVersion = snap.Version

	pseudo := s.buildPseudoListing(profile, viewRentAvg)
	vector := snap.Vectorizer.Transform(pseudo)
	profile.TFIDFVector = model.FloatVector(vector)

	// 档案持久化失败不阻断推荐生成
	if err := s.profileRepo.Upsert(ctx, profile); err != nil {
		log.Error("[ProfileService] 保存用户偏好档案失败", err)
	}

	return vector, nil
}

// aggregate 把搜索和浏览事件折叠为一份偏好档案，
// 并返回浏览房源的租金均值（没有浏览时为 0）。
func (s *profileService) aggregate(userID uint, searches []*model.SearchHistory, views []*repository.ViewedListing) (*model.UserPreferenceProfile, float64) {
	cities := newWeightedCounter()
	types := newWeightedCounter()
	amenities := newWeightedCounter()

	var minRent, maxRent *float64
	var bedroomSum, bedroomCount int

	for _, sh := range searches {
		cities.add(sh.City, searchSignalWeight)
		types.add(sh.PropertyType, searchSignalWeight)
		for _, a := range sh.Amenities {
			amenities.add(a, searchSignalWeight)
		}
		if sh.MinRent != nil && (minRent == nil || *sh.MinRent < *minRent) {
			v := *sh.MinRent
			minRent = &v
		}
		if sh.MaxRent != nil && (maxRent == nil || *sh.MaxRent > *maxRent) {
			v := *sh.MaxRent
			maxRent = &v
		}
		if sh.Bedrooms != nil {
			bedroomSum += *sh.Bedrooms
			bedroomCount++
		}
	}

	var viewRentSum float64
	var viewRentCount int
	for _, v := range views {
		cities.add(v.City, viewSignalWeight)
		types.add(v.Type, viewSignalWeight)
		if v.RentAmount > 0 {
			viewRentSum += v.RentAmount
			viewRentCount++
		}
	}

	profile := &model.UserPreferenceProfile{
		UserID:                 userID,
		PreferredCities:        model.StringList(cities.top(-1)),
		PreferredPropertyTypes: model.StringList(types.top(-1)),
		PreferredAmenities:     model.StringList(amenities.top(maxProfileAmenities)),
		PreferredMinRent:       minRent,
		PreferredMaxRent:       maxRent,
		TotalSearches:          len(searches),
		TotalViews:             len(views),
	}
	if bedroomCount > 0 {
		avg := int(math.Round(float64(bedroomSum) / float64(bedroomCount)))
		profile.PreferredBedrooms = &avg
	}

	var viewRentAvg float64
	if viewRentCount > 0 {
		viewRentAvg = viewRentSum / float64(viewRentCount)
		// 没有搜索预算时用浏览均值补全档案的租金区间
		if profile.PreferredMinRent == nil {
			low := viewRentAvg
			profile.PreferredMinRent = &low
		}
		if profile.PreferredMaxRent == nil {
			high := viewRentAvg
			profile.PreferredMaxRent = &high
		}
	}

	return profile, viewRentAvg
}

// buildPseudoListing 把偏好档案伪装成一条房源记录，复用同一套特征提取和向量化，
// 保证用户向量与房源向量落在同一个特征空间里。
// 租金优先取浏览均值，没有浏览时退回预算中点。
func (s *profileService) buildPseudoListing(profile *model.UserPreferenceProfile, viewRentAvg float64) *model.Listing {
	pseudo := &model.Listing{
		Title:     "User Preference Profile",
		Amenities: model.StringList(profile.PreferredAmenities),
	}
	if len(profile.PreferredCities) > 0 {
		pseudo.City = profile.PreferredCities[0]
		pseudo.Description = "User prefers properties in " + strings.Join(profile.PreferredCities, ", ")
	}
	if len(profile.PreferredPropertyTypes) > 0 {
		pseudo.Type = profile.PreferredPropertyTypes[0]
	}
	if profile.PreferredBedrooms != nil {
		pseudo.Bedrooms = *profile.PreferredBedrooms
	}
	if viewRentAvg > 0 {
		pseudo.RentAmount = viewRentAvg
	} else {
		pseudo.RentAmount = s.preferredRent(profile)
	}
	return pseudo
}

// preferredRent 取偏好租金区间的中点作为伪房源的租金。
func (s *profileService) preferredRent(profile *model.UserPreferenceProfile) float64 {
	switch {
	case profile.PreferredMinRent != nil && profile.PreferredMaxRent != nil:
		return (*profile.PreferredMinRent + *profile.PreferredMaxRent) / 2
	case profile.PreferredMaxRent != nil:
		return *profile.PreferredMaxRent
	case profile.PreferredMinRent != nil:
		return *profile.PreferredMinRent
	default:
		return 0
	}
}
